// Package indexer consumes article change notes and keeps the search index
// in step with the article store.
package indexer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/newsforge/newsforge/internal/news"
	"github.com/newsforge/newsforge/internal/telemetry"
)

// Config holds the indexer settings.
type Config struct {
	Workers    int
	MaxRetries int
}

// Service reindexes articles named by change notes. Re-processing the same
// {id, version} produces the same index record, so redelivery is harmless.
type Service struct {
	cfg      Config
	consumer news.Consumer
	articles news.ArticleStore
	index    news.SearchIndex
	embedder news.Embedder
	log      *zap.Logger
}

// New wires the indexer service.
func New(cfg Config, consumer news.Consumer, articles news.ArticleStore, index news.SearchIndex, embedder news.Embedder, log *zap.Logger) *Service {
	if cfg.Workers <= 0 {
		cfg.Workers = 2
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	return &Service{
		cfg:      cfg,
		consumer: consumer,
		articles: articles,
		index:    index,
		embedder: embedder,
		log:      log,
	}
}

// Run starts the configured number of competing receivers and blocks until
// the context finishes.
func (s *Service) Run(ctx context.Context) error {
	var wg sync.WaitGroup
	errs := make([]error, s.cfg.Workers)
	for i := 0; i < s.cfg.Workers; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs[i] = s.consumer.Receive(ctx, s.Handle)
		}()
	}
	wg.Wait()
	return errors.Join(errs...)
}

// Handle processes one change-note delivery. A failure that might succeed on
// redelivery leaves the message unacked; everything else is acked so the
// note is not replayed forever.
func (s *Service) Handle(ctx context.Context, d news.Delivery) {
	var note news.ChangeNote
	if err := json.Unmarshal(d.Data(), &note); err != nil {
		s.log.Warn("dropping malformed change note", zap.Error(err))
		telemetry.ObserveIndexUpsert("dropped")
		d.Ack()
		return
	}

	outcome, err := s.process(ctx, note)
	if err != nil {
		s.log.Warn("change note processing failed",
			zap.String("id", note.ID),
			zap.Int64("version", note.Version),
			zap.Error(err),
		)
		telemetry.ObserveIndexUpsert("failed")
		d.Nack()
		return
	}
	telemetry.ObserveIndexUpsert(outcome)
	d.Ack()
}

// process reindexes one note. The returned string is the telemetry outcome.
func (s *Service) process(ctx context.Context, note news.ChangeNote) (string, error) {
	article, err := s.articles.Get(ctx, note.ID)
	if errors.Is(err, news.ErrNotFound) {
		// The row vanished; nothing to index, nothing to retry.
		return "skipped", nil
	}
	if err != nil {
		return "", fmt.Errorf("read article %s: %w", note.ID, err)
	}
	if article.Version != note.Version {
		// A newer update already owns the index entry.
		return "skipped", nil
	}

	embedding, err := s.embed(ctx, article.Title+"\n"+article.BodyText)
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return "", err
	}
	if err != nil {
		// Exhausted retries. Drop this record; the prior index entry stays
		// valid and a later version will reindex it.
		s.log.Warn("embedding failed after retries",
			zap.String("id", note.ID),
			zap.Int64("version", note.Version),
			zap.Error(err),
		)
		return "dropped", nil
	}

	rec := news.IndexRecord{
		ID:        article.ID,
		Title:     article.Title,
		BodyText:  article.BodyText,
		Embedding: embedding,
		Version:   article.Version,
	}
	if err := s.index.Upsert(ctx, rec); err != nil {
		return "", fmt.Errorf("upsert record %s: %w", note.ID, err)
	}
	return "ok", nil
}

// embed calls the embedding service with bounded retries on transient
// failures.
func (s *Service) embed(ctx context.Context, text string) ([]float32, error) {
	var lastErr error
	for attempt := 0; attempt < s.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			delay := time.Duration(attempt) * 500 * time.Millisecond
			timer := time.NewTimer(delay)
			select {
			case <-timer.C:
			case <-ctx.Done():
				timer.Stop()
				return nil, ctx.Err()
			}
		}
		embedding, err := s.embedder.EmbedText(ctx, text)
		if err == nil {
			return embedding, nil
		}
		lastErr = err
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			break
		}
	}
	return nil, lastErr
}
