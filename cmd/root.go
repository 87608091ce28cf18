// Package cmd defines the CLI commands for the newsforge executable.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/newsforge/newsforge/internal/config"
	"github.com/newsforge/newsforge/internal/logging"
)

var cfgFile string

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "newsforge",
		Short: "News ingestion and hybrid search pipeline",
		Long: `newsforge crawls configured news sources, normalizes and deduplicates
the articles it finds, and serves hybrid (lexical + vector) search over
the result. Each pipeline stage runs as its own subcommand, decoupled
from the others by durable queues.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (defaults and NEWSFORGE_* env vars apply when unset)")
	cmd.AddCommand(newFetchCmd(), newStoreCmd(), newIndexCmd(), newServeCmd(), newSeedCmd())
	return cmd
}

// Execute is the main entry point.
func Execute() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// setup loads configuration and builds a logger named for the pipeline
// stage the subcommand runs.
func setup(stage string) (config.Config, *zap.Logger, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return config.Config{}, nil, fmt.Errorf("load config: %w", err)
	}
	log, err := logging.New(cfg.Logging.Development)
	if err != nil {
		return config.Config{}, nil, fmt.Errorf("build logger: %w", err)
	}
	return cfg, logging.ForStage(log, stage), nil
}
