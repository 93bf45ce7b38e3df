// Package cmd defines the CLI commands for the feedlens executable.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/feedlens/feedlens/internal/config"
	"github.com/feedlens/feedlens/internal/logging"
)

var cfgFile string

// newRootCmd creates and configures the root command.
func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "feedlens",
		Short: "Engagement metrics extraction for social feed posts.",
		Long: `feedlens discovers post URLs from an infinite-scroll feed and
extracts engagement metrics (views, likes, comments, reposts, shares)
and post content from text renditions fetched through two rotating
backends.`,
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: built-in defaults plus FEEDLENS_* env vars)")

	cmd.AddCommand(newRunCmd())
	cmd.AddCommand(newExtractCmd())

	return cmd
}

// loadConfig reads configuration from the --config file and environment.
func loadConfig() (config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return config.Config{}, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

// newLogger builds the process logger and installs it globally.
func newLogger(cfg config.Config) (*zap.Logger, error) {
	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	zap.ReplaceGlobals(logger)
	return logger, nil
}

// Execute is the main entry point.
func Execute() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "feedlens: %v\n", err)
		os.Exit(1)
	}
}
