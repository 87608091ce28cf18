package cmd

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/newsforge/newsforge/internal/clock/system"
	"github.com/newsforge/newsforge/internal/extract"
	"github.com/newsforge/newsforge/internal/hash/sha256"
	"github.com/newsforge/newsforge/internal/store"
)

func newStoreCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "store",
		Short: "Consume raw pages, normalize them, and upsert articles",
		Long: `Runs the normalizer stage. Raw pages are pulled from the queue,
reduced to clean article text, deduplicated by content hash, and written
to the document store. Inserts and content changes emit change notes.`,
		RunE: runStoreCommand,
	}
}

func runStoreCommand(cmd *cobra.Command, _ []string) error {
	cfg, log, err := setup("store")
	if err != nil {
		return err
	}
	defer log.Sync() //nolint:errcheck // stderr sync is best effort

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	consumer, err := buildConsumer(ctx, cfg.Queue, cfg.Queue.RawTopic, cfg.Queue.RawSubscription)
	if err != nil {
		return fmt.Errorf("build consumer: %w", err)
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

	articles, err := buildArticleStore(ctx, cfg.Store)
	if err != nil {
		return fmt.Errorf("build article store: %w", err)
	}
	defer articles.Close()

	blobs, err := buildArchive(ctx, cfg.Archive)
	if err != nil {
		return fmt.Errorf("build archive: %w", err)
	}
	defer func() {
		if cerr := blobs.Close(); cerr != nil {
			log.Warn("archive close failed", zap.Error(cerr))
		}
	}()

	svc := store.New(store.Config{
		Workers:    cfg.Store.Workers,
		NotesTopic: cfg.Queue.NotesTopic,
	}, consumer, articles, publisher, blobs, extract.New(cfg.Store.MinBodyChars), sha256.New(), system.New(), log)

	log.Info("store service starting",
		zap.String("topic", cfg.Queue.RawTopic),
		zap.Int("workers", cfg.Store.Workers),
	)
	return svc.Run(ctx)
}
