package backend

import (
	"context"
	"errors"
	"fmt"

	"smartasset/internal/config"
	"smartasset/internal/log"
	"smartasset/internal/storage"
	"smartasset/internal/storage/memory"
	"smartasset/internal/storage/postgres"
)

// FromAppConfig converts the application config to backend config
func FromAppConfig(appConfig *config.Config) (Config, error) {
	if appConfig == nil {
		return Config{}, errors.New("app config is nil")
	}
	t := Type(appConfig.DataBackend)
	if !t.IsValid() {
		return Config{}, fmt.Errorf("invalid backend type in config: %s", appConfig.DataBackend)
	}
	return Config{
		Type:          t,
		URL:           appConfig.StoreURL,
		Key:           appConfig.StoreKey,
		DataDirectory: appConfig.DataDirectory,
	}, nil
}

// Validate validates the backend configuration
func (c Config) Validate() error {
	if !c.Type.IsValid() {
		return fmt.Errorf("invalid backend type: %s", c.Type)
	}
	switch c.Type {
	case PostgresBackend:
		if c.URL == "" {
			return errors.New("LEDGER_STORE_URL is required for postgres backend")
		}
		if c.Key == "" {
			return errors.New("LEDGER_STORE_KEY is required for postgres backend")
		}
	case SQLiteBackend:
		if c.URL == "" {
			return errors.New("LEDGER_STORE_URL (database file path) is required for sqlite backend")
		}
	}
	return nil
}

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger *log.Logger
}

// NewFactory creates a new backend factory
func NewFactory(logger *log.Logger) Factory {
	if logger == nil {
		logger = log.Default()
	}
	return &DefaultFactory{logger: logger.WithComponent(log.ComponentBackend)}
}

// Create implements Factory.Create
func (f *DefaultFactory) Create(ctx context.Context, config Config) (*Result, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	switch config.Type {
	case PostgresBackend:
		return f.createPostgres(ctx, config)
	case SQLiteBackend:
		return f.createSQLite(config)
	case MemoryBackend:
		return f.createMemory(config)
	default:
		return nil, fmt.Errorf("unsupported backend type: %s", config.Type)
	}
}

func (f *DefaultFactory) createPostgres(ctx context.Context, config Config) (*Result, error) {
	store, err := postgres.Open(ctx, postgres.Config{URL: config.URL, Password: config.Key})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize postgres store: %w", err)
	}
	f.logger.InfoContext(ctx, "Initialized postgres backend", log.FieldBackend, PostgresBackend)
	return &Result{Store: store, Cleanup: store.Close}, nil
}

func (f *DefaultFactory) createSQLite(config Config) (*Result, error) {
	repo, err := storage.NewSQLiteRepository(config.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize SQLite repository: %w", err)
	}
	f.logger.Info("Initialized SQLite backend", log.FieldBackend, SQLiteBackend, "db_path", config.URL)
	return &Result{Store: repo, Cleanup: repo.Close}, nil
}

func (f *DefaultFactory) createMemory(config Config) (*Result, error) {
	dataDir := config.DataDirectory
	if dataDir == "" {
		dataDir = "data"
	}
	store := memory.NewFromFiles(dataDir)
	f.logger.Warn("Using in-memory backend, records are lost on restart",
		log.FieldBackend, MemoryBackend, "data_directory", dataDir)
	return &Result{Store: store, Cleanup: store.Close}, nil
}
