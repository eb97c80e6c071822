// Command formc compiles dynamic form schemas, evaluates gating rules, lists
// domain values, fills forms interactively and serves the reference
// domain-data and schema endpoints.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var (
	configPath string
	debug      bool
	overrides  Config
	config     Config
	logger     = slog.Default()

	rootCmd = &cobra.Command{
		Use:           "formc",
		Short:         "Compile and exercise schema-driven dynamic forms",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			level := slog.LevelInfo
			if debug {
				level = slog.LevelDebug
			}
			logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

			cfg, err := loadConfig(configPath, cmd.Flags().Changed("config"))
			if err != nil {
				return err
			}
			config = cfg.merge(cmd, overrides)
			logger.Debug("formc: configuration loaded", "config", configPath, "source", config.describeSource())
			return nil
		},
	}
)

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&configPath, "config", "formc.yaml", "path to the formc.yaml configuration file")
	flags.BoolVar(&debug, "debug", false, "enable debug logging")
	flags.StringVar(&overrides.Library, "library", "", "control library document (JSON or YAML) merged over the built-in library")
	flags.StringVar(&overrides.Catalog, "catalog", "", "domain value catalog (JSON or YAML); defaults to the bundled example catalog")
	flags.StringVar(&overrides.DomainURL, "domain-url", "", "base URL of a domain-data service")
	flags.StringVar(&overrides.Database, "db", "", "sqlite DSN holding domain_data and form_schema tables")
	flags.BoolVar(&overrides.AllowHTTP, "allow-http", false, "allow schema documents to be fetched over HTTP")

	rootCmd.AddCommand(compileCmd, evalCmd, optionsCmd, fillCmd, serveCmd)
}

func main() {
	if err := run(); err != nil {
		logger.Error("formc: command failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	return rootCmd.ExecuteContext(ctx)
}
