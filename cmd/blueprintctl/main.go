// Command blueprintctl inspects and maintains blueprint diagram storage
package main

import (
	"context"
	"fmt"
	"os"

	"blueprint-editor/infrastructure/config"
	"blueprint-editor/infrastructure/di"

	"github.com/spf13/cobra"
)

const version = "0.1.0"

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// options are the persistent flags; empty values keep the environment's
// configuration
type options struct {
	storage     string
	databaseURL string
	blobDir     string
	logLevel    string
}

func rootCmd() *cobra.Command {
	opts := &options{}

	cmd := &cobra.Command{
		Use:   "blueprintctl",
		Short: "Inspect and maintain blueprint diagrams",
		Long: `blueprintctl works directly against the configured diagram store.

It reads the same environment variables as the API server; the flags
below override them for one invocation.`,
		SilenceUsage: true,
	}

	pf := cmd.PersistentFlags()
	pf.StringVar(&opts.storage, "storage", "", "diagram store: memory, dynamodb, postgres or sqlite")
	pf.StringVar(&opts.databaseURL, "database-url", "", "database url for the postgres and sqlite stores")
	pf.StringVar(&opts.blobDir, "blob-dir", "", "directory of the local blob store")
	pf.StringVar(&opts.logLevel, "log-level", "warn", "log level (debug, info, warn, error)")

	cmd.AddCommand(
		symbolsCmd(),
		diagramsCmd(opts),
		migrateCmd(opts),
		&cobra.Command{
			Use:   "version",
			Short: "Print version information",
			Run: func(cmd *cobra.Command, args []string) {
				fmt.Fprintf(cmd.OutOrStdout(), "blueprintctl version %s\n", version)
			},
		},
	)
	return cmd
}

// config loads the environment configuration with flag overrides applied
func (o *options) config() (*config.Config, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, err
	}
	if o.storage != "" {
		cfg.StorageBackend = o.storage
	}
	if o.databaseURL != "" {
		cfg.DatabaseURL = o.databaseURL
	}
	if o.blobDir != "" {
		cfg.BlobDir = o.blobDir
	}
	cfg.LogLevel = o.logLevel
	// The CLI never serves events, metrics or HTTP clients
	cfg.EventBackend = config.EventsNone
	cfg.JournalEvents = false
	cfg.CloudWatchNamespace = ""
	cfg.RateLimitPerMinute = 0
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// container wires the application the same way the server does
func (o *options) container(ctx context.Context) (*di.Container, func(), error) {
	cfg, err := o.config()
	if err != nil {
		return nil, nil, err
	}
	logger, _, err := config.NewLogger(cfg)
	if err != nil {
		return nil, nil, err
	}
	c, cleanup, err := di.InitializeContainer(ctx, cfg, logger)
	if err != nil {
		return nil, nil, err
	}
	return c, func() {
		cleanup()
		_ = logger.Sync()
	}, nil
}
