package cmd

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/newsforge/newsforge/internal/clock/system"
	"github.com/newsforge/newsforge/internal/expand"
	"github.com/newsforge/newsforge/internal/fetcher"
	"github.com/newsforge/newsforge/internal/ratelimit"
	"github.com/newsforge/newsforge/internal/seed"
)

func newFetchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "fetch",
		Short: "Run one crawl over the registered seed sources",
		Long: `Expands every seed source into page tasks, fetches them politely
(per-domain pacing and concurrency caps), and publishes the raw pages to
the queue. The run stops after max_pages successful fetches or when all
discovered tasks are done.`,
		RunE: runFetchCommand,
	}
}

func runFetchCommand(cmd *cobra.Command, _ []string) error {
	cfg, log, err := setup("fetch")
	if err != nil {
		return err
	}
	defer log.Sync() //nolint:errcheck // stderr sync is best effort

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	targets, err := seed.NewRegistry(cfg.Seed.File).ListSeedTargets()
	if err != nil {
		return fmt.Errorf("load seed registry: %w", err)
	}
	if len(targets) == 0 {
		log.Warn("no seed sources registered", zap.String("file", cfg.Seed.File))
		return nil
	}

	publisher, err := buildPublisher(ctx, cfg.Queue)
	if err != nil {
		return fmt.Errorf("build publisher: %w", err)
	}
	defer func() {
		if cerr := publisher.Close(); cerr != nil {
			log.Warn("publisher close failed", zap.Error(cerr))
		}
	}()

	limiter := ratelimit.New(ratelimit.Config{
		MinInterval:   cfg.RateInterval(),
		MaxConcurrent: cfg.Fetch.PerDomainMax,
	})
	expander := expand.NewSelector(expand.Config{
		UserAgent:       cfg.Fetch.UserAgent,
		Timeout:         cfg.FetchTimeout(),
		SectionMaxLinks: cfg.Fetch.SectionMaxLinks,
	})
	f := fetcher.New(fetcher.Config{
		MaxPages:    cfg.Fetch.MaxPages,
		Concurrency: cfg.Fetch.Concurrency,
		UserAgent:   cfg.Fetch.UserAgent,
		Timeout:     cfg.FetchTimeout(),
		MaxRetries:  cfg.Fetch.MaxRetries,
		RawTopic:    cfg.Queue.RawTopic,
	}, expander, limiter, publisher, system.New(), log)

	if _, err := f.Run(ctx, targets); err != nil {
		return fmt.Errorf("fetch run: %w", err)
	}
	return nil
}
