package backend

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"smartasset/internal/config"
	"smartasset/internal/log"
)

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr string
	}{
		{"postgres ok", Config{Type: PostgresBackend, URL: "postgres://db/ledger", Key: "s"}, ""},
		{"postgres no key", Config{Type: PostgresBackend, URL: "postgres://db/ledger"}, "LEDGER_STORE_KEY"},
		{"postgres no url", Config{Type: PostgresBackend, Key: "s"}, "LEDGER_STORE_URL"},
		{"sqlite no path", Config{Type: SQLiteBackend}, "LEDGER_STORE_URL"},
		{"memory", Config{Type: MemoryBackend}, ""},
		{"unknown", Config{Type: "sheets"}, "invalid backend type"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestFromAppConfig(t *testing.T) {
	_, err := FromAppConfig(nil)
	assert.Error(t, err)

	cfg, err := FromAppConfig(&config.Config{DataBackend: "sqlite", StoreURL: "data/ledger.db"})
	require.NoError(t, err)
	assert.Equal(t, SQLiteBackend, cfg.Type)
	assert.Equal(t, "data/ledger.db", cfg.URL)

	_, err = FromAppConfig(&config.Config{DataBackend: "oracle"})
	assert.Error(t, err)
}

func TestCreateMemoryAndSQLite(t *testing.T) {
	f := NewFactory(log.Discard())
	ctx := context.Background()

	res, err := f.Create(ctx, Config{Type: MemoryBackend, DataDirectory: t.TempDir()})
	require.NoError(t, err)
	cats, err := res.Store.ListCategories(ctx)
	require.NoError(t, err)
	assert.NotEmpty(t, cats)
	require.NoError(t, res.Cleanup())

	res, err = f.Create(ctx, Config{Type: SQLiteBackend, URL: filepath.Join(t.TempDir(), "ledger.db")})
	require.NoError(t, err)
	require.NoError(t, res.Store.Ping(ctx))
	require.NoError(t, res.Cleanup())
}
