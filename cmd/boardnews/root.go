package main

import (
	"context"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/yolubot/boardnews/internal/config"
	"github.com/yolubot/boardnews/internal/logging"
)

type rootOptions struct {
	configPath string
	envFile    string
	logLevel   string
	logFormat  string

	cfg    *config.Config
	logger *slog.Logger
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:           "boardnews",
		Short:         "Discover and rank board game news",
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(opts.configPath, opts.envFile)
			if err != nil {
				return err
			}
			level, format := cfg.Log.Level, cfg.Log.Format
			if cmd.Flags().Changed("log-level") {
				level = opts.logLevel
			}
			if cmd.Flags().Changed("log-format") {
				format = opts.logFormat
			}
			opts.cfg = cfg
			opts.logger = logging.New(level, format)
			slog.SetDefault(opts.logger)
			return nil
		},
	}

	pf := cmd.PersistentFlags()
	pf.StringVar(&opts.configPath, "config", "", "path to a YAML or TOML config file")
	pf.StringVar(&opts.envFile, "env-file", ".env", "dotenv file loaded before reading the environment")
	pf.StringVar(&opts.logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	pf.StringVar(&opts.logFormat, "log-format", "text", "log format (text, json)")

	cmd.AddCommand(
		newNewsCmd(opts),
		newServeCmd(opts),
		newStatsCmd(opts),
		newPruneCmd(opts),
	)
	return cmd
}

func (o *rootOptions) app(ctx context.Context) (*app, error) {
	return newApp(ctx, o.cfg, o.logger)
}
