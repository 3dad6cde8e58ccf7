package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"db-local-sync/internal/config"
	"db-local-sync/internal/logger"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	ConfigPath string
	Verbose    bool
}

// NewRootCommand creates the root command for the dbsync CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "dbsync",
		Short: "Keep a local MySQL database in line with a remote one",
		Long: `dbsync watches a remote MySQL database and, after you confirm, replaces a
local copy with its content. The local database is always backed up first.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVarP(&opts.ConfigPath, "config", "c", "config.yaml", "path to the config file")
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "debug logging")

	cmd.AddCommand(NewWatchCommand(opts))
	cmd.AddCommand(NewCheckCommand(opts))
	cmd.AddCommand(NewDumpCommand(opts))
	cmd.AddCommand(NewRestoreCommand(opts))
	cmd.AddCommand(NewHistoryCommand(opts))

	return cmd
}

// load reads the config and initializes the logger from it.
func (o *RootOptions) load() (*config.Config, error) {
	cfg, err := config.LoadConfig(o.ConfigPath)
	if err != nil {
		return nil, err
	}

	level := cfg.Logging.Level
	if o.Verbose {
		level = "debug"
	}

	var logOpts []logger.Option
	if cfg.Logging.File != "" {
		logOpts = append(logOpts, logger.WithFile(cfg.Logging.File, cfg.Logging.MaxSizeMB, cfg.Logging.MaxBackups))
	}
	if err := logger.InitLogger(level, cfg.Logging.Format, logOpts...); err != nil {
		return nil, fmt.Errorf("failed to init logger: %w", err)
	}
	return cfg, nil
}
