// Package main implements ledgerctl, the admin CLI for the Smart Asset ledger.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"smartasset/internal/amqp"
	"smartasset/internal/backend"
	"smartasset/internal/cli"
	"smartasset/internal/config"
	"smartasset/internal/log"
	"smartasset/internal/services"
)

var (
	// logLevel overrides LOG_LEVEL; the CLI is quiet by default
	logLevel string
	// version information
	version = "dev"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "ledgerctl",
	Short: "Admin CLI for the Smart Asset ledger",
	Long: `ledgerctl operates directly on the configured ledger store.
It reads the same environment (and .env file) as the server.`,
	Version:       version,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		cli.LoadEnvFile()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "log level (debug, info, warn, error)")
}

// session is an open ledger plus what is needed to tear it down.
type session struct {
	cfg    *config.Config
	logger *log.Logger
	ledger *services.LedgerService
}

func (s *session) Close() error {
	return s.ledger.Close()
}

// openLedger validates configuration and opens the store. needInference
// additionally requires the model key.
func openLedger(ctx context.Context, needInference bool) (*session, error) {
	logger := cli.SetupLogger(logLevel)
	cfg := config.Load()
	validate := cfg.ValidateStoreOnly
	if needInference {
		validate = cfg.Validate
	}
	if err := validate(); err != nil {
		return nil, err
	}

	bcfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		return nil, err
	}
	res, err := backend.NewFactory(logger).Create(ctx, bcfg)
	if err != nil {
		return nil, err
	}

	// The memo only helps long-lived processes.
	opts := []services.Option{services.WithLogger(logger)}
	if cfg.AMQPURL != "" {
		if publisher, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, logger); err == nil {
			opts = append(opts, services.WithPublisher(publisher))
		} else {
			logger.Warn("AMQP unavailable, ledger events will not be published", log.FieldError, err)
		}
	}
	return &session{
		cfg:    cfg,
		logger: logger,
		ledger: services.NewLedgerService(res.Store, 0, opts...),
	}, nil
}

func closeSession(cmd *cobra.Command, s *session) {
	if err := s.Close(); err != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "warning: close ledger: %v\n", err)
	}
}
