package cmd

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/newsforge/newsforge/internal/index"
	"github.com/newsforge/newsforge/internal/indexer"
)

func newIndexCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "index",
		Short: "Consume change notes and keep the search index current",
		Long: `Runs the indexer stage. Change notes are pulled from the queue,
the named article versions are embedded, and the search index is updated
in place. Stale notes for superseded versions are skipped.`,
		RunE: runIndexCommand,
	}
}

func runIndexCommand(cmd *cobra.Command, _ []string) error {
	cfg, log, err := setup("index")
	if err != nil {
		return err
	}
	defer log.Sync() //nolint:errcheck // stderr sync is best effort

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	consumer, err := buildConsumer(ctx, cfg.Queue, cfg.Queue.NotesTopic, cfg.Queue.NotesSubscription)
	if err != nil {
		return fmt.Errorf("build consumer: %w", err)
	}
	articles, err := buildArticleStore(ctx, cfg.Store)
	if err != nil {
		return fmt.Errorf("build article store: %w", err)
	}
	defer articles.Close()

	idx, err := index.Open(index.Config{Path: cfg.Index.Path, InMemory: cfg.Index.InMemory}, log)
	if err != nil {
		return fmt.Errorf("open index: %w", err)
	}
	defer func() {
		if cerr := idx.Close(); cerr != nil {
			log.Warn("index close failed", zap.Error(cerr))
		}
	}()

	embedder, err := buildEmbedder(cfg.Embed, log)
	if err != nil {
		return fmt.Errorf("build embedder: %w", err)
	}

	svc := indexer.New(indexer.Config{
		Workers:    cfg.Indexer.Workers,
		MaxRetries: cfg.Indexer.MaxRetries,
	}, consumer, articles, idx, embedder, log)

	log.Info("indexer starting",
		zap.String("topic", cfg.Queue.NotesTopic),
		zap.Int("workers", cfg.Indexer.Workers),
	)
	return svc.Run(ctx)
}
