package main

import (
	"context"
	"os"

	"github.com/spf13/cobra"

	"knowledge-base/backend/internal/bootstrap"
	"knowledge-base/backend/pkg/config"
	"knowledge-base/backend/pkg/logger"
)

type rootOptions struct {
	configPath string
	dbPath     string
	verbose    bool
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "kbctl",
		Short: "Maintenance tool for the knowledge base",
		Long: `kbctl migrates the database, seeds demo content and rebuilds or
exports the knowledge graph without going through the HTTP API.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			level := "info"
			if opts.verbose {
				level = "debug"
			}
			return logger.Init("development", level)
		},
	}

	cmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "YAML config file (defaults to $CONFIG_FILE)")
	cmd.PersistentFlags().StringVar(&opts.dbPath, "db", "", "SQLite database path, overrides the config")
	cmd.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "Enable verbose logging")

	cmd.AddCommand(
		newMigrateCmd(opts),
		newSeedCmd(opts),
		newRebuildGraphCmd(opts),
		newExportGraphCmd(opts),
	)
	return cmd
}

// open loads the configuration and opens the stores it names
func (o *rootOptions) open(ctx context.Context) (*bootstrap.Env, error) {
	cfg, err := config.LoadFrom(o.configFile())
	if err != nil {
		return nil, err
	}
	if o.dbPath != "" {
		cfg.DatabasePath = o.dbPath
	}
	return bootstrap.Open(ctx, cfg)
}

func (o *rootOptions) configFile() string {
	if o.configPath != "" {
		return o.configPath
	}
	return os.Getenv("CONFIG_FILE")
}
