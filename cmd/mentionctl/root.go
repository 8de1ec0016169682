package main

import (
	"context"
	"encoding/json"
	"io"
	"os"

	"github.com/spacesedan/brandpulse/config"
	"github.com/spacesedan/brandpulse/internal/app"
	"github.com/spacesedan/brandpulse/internal/logging"
	"github.com/spf13/cobra"
)

var (
	envName   string
	logLevel  string
	supervise bool
)

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "mentionctl",
		Short:         "Operate the brand mention collector",
		Long:          "mentionctl runs one-off brand collections, backfills missing sentiment, applies manual overrides, follows stored mentions and manages the schema.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if envName == "" {
				envName = os.Getenv("APP_ENV")
			}
			if envName == "" {
				envName = "dev"
			}
			config.LoadEnv(envName)
		},
	}

	rootCmd.PersistentFlags().StringVar(&envName, "env", "", "environment file to load from config/envs (default $APP_ENV or dev)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level override: debug|info|warn|error")
	rootCmd.PersistentFlags().BoolVar(&supervise, "supervise", true, "spawn the scoring service when SENTIMENT_SERVICE_CMD is set")

	rootCmd.AddCommand(newRunCmd())
	rootCmd.AddCommand(newBackfillCmd())
	rootCmd.AddCommand(newOverrideCmd())
	rootCmd.AddCommand(newMigrateCmd())
	rootCmd.AddCommand(newRunsCmd())
	rootCmd.AddCommand(newTailCmd())
	return rootCmd
}

// loadConfig reads the environment and sets up logging.
func loadConfig() config.Config {
	cfg := config.Load()
	level := cfg.LogLevel
	if logLevel != "" {
		level = logLevel
	}
	logging.InitLogger(level)
	return cfg
}

// bootstrap builds the full dependency set and starts the scoring service if
// this invocation supervises it. The caller must Close the app.
func bootstrap(ctx context.Context) (*app.App, error) {
	a, err := app.Bootstrap(ctx, loadConfig(), app.Options{Supervise: supervise})
	if err != nil {
		return nil, err
	}
	a.StartScoring(ctx)
	return a, nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
