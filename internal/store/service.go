// Package store implements the normalizer stage: it consumes raw pages,
// extracts article content, and upserts deduplicated articles.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/newsforge/newsforge/internal/archive"
	"github.com/newsforge/newsforge/internal/extract"
	"github.com/newsforge/newsforge/internal/news"
	"github.com/newsforge/newsforge/internal/telemetry"
)

// casAttempts bounds the reread-and-retry loop on version conflicts.
const casAttempts = 3

// Config holds the normalizer settings.
type Config struct {
	Workers    int
	NotesTopic string
}

// Service consumes the raw-pages subscription and writes articles. Safe to
// re-run on redelivered pages: identical content never bumps a version.
type Service struct {
	cfg       Config
	consumer  news.Consumer
	articles  news.ArticleStore
	publisher news.Publisher
	blobs     archive.BlobStore
	extractor *extract.Extractor
	hasher    news.Hasher
	clock     news.Clock
	log       *zap.Logger
}

// New wires the normalizer service.
func New(cfg Config, consumer news.Consumer, articles news.ArticleStore, publisher news.Publisher, blobs archive.BlobStore, extractor *extract.Extractor, hasher news.Hasher, clock news.Clock, log *zap.Logger) *Service {
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	if blobs == nil {
		blobs = archive.Nop{}
	}
	return &Service{
		cfg:       cfg,
		consumer:  consumer,
		articles:  articles,
		publisher: publisher,
		blobs:     blobs,
		extractor: extractor,
		hasher:    hasher,
		clock:     clock,
		log:       log,
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

// Handle processes one raw-page delivery. The message is acked only after
// the article row and, when content changed, the change note are durable.
// Failures on the durable path leave the message unacked for redelivery.
func (s *Service) Handle(ctx context.Context, d news.Delivery) {
	var page news.RawPage
	if err := json.Unmarshal(d.Data(), &page); err != nil {
		// Malformed payloads would fail on every redelivery.
		s.log.Warn("dropping malformed raw page", zap.Error(err))
		telemetry.ObserveStoreResult(telemetry.StoreResultDropped)
		d.Ack()
		return
	}

	result, err := s.process(ctx, page)
	if err != nil {
		s.log.Warn("raw page processing failed",
			zap.String("url", page.URL),
			zap.String("source", page.SourceName),
			zap.Error(err),
		)
		telemetry.ObserveStoreResult(telemetry.StoreResultFailed)
		d.Nack()
		return
	}
	telemetry.ObserveStoreResult(result)
	d.Ack()
}

// process normalizes one page and upserts its article. The returned string
// is the telemetry result label.
func (s *Service) process(ctx context.Context, page news.RawPage) (string, error) {
	extraction, err := s.extractor.Extract(page)
	if errors.Is(err, news.ErrEmptyExtraction) {
		// Hubs, stubs, and paywalled shells are not articles.
		return telemetry.StoreResultDropped, nil
	}
	if err != nil {
		return "", fmt.Errorf("extract %s: %w", page.URL, err)
	}

	contentHash, err := s.hasher.Hash([]byte(extraction.BodyText))
	if err != nil {
		return "", fmt.Errorf("hash content: %w", err)
	}
	id, err := news.ArticleID(page.URL)
	if err != nil {
		return "", fmt.Errorf("derive article id: %w", err)
	}

	if _, err := s.blobs.Put(ctx, archive.Key(page.SourceName, contentHash), page.Body); err != nil {
		// The archive is replay insurance, not the system of record.
		s.log.Warn("raw page archive failed", zap.String("url", page.URL), zap.Error(err))
	}

	for attempt := 0; attempt < casAttempts; attempt++ {
		result, err := s.upsert(ctx, id, page, extraction, contentHash)
		if errors.Is(err, news.ErrVersionConflict) {
			continue
		}
		if err != nil {
			return "", err
		}
		return result, nil
	}
	return "", fmt.Errorf("upsert article %s: %w", id, news.ErrVersionConflict)
}

// upsert applies one compare-and-swap round of the dedup rules.
func (s *Service) upsert(ctx context.Context, id string, page news.RawPage, extraction extract.Extraction, contentHash string) (string, error) {
	now := s.clock.Now()

	current, err := s.articles.Get(ctx, id)
	if errors.Is(err, news.ErrNotFound) {
		a := news.Article{
			ID:           id,
			URL:          page.URL,
			CanonicalURL: extraction.CanonicalURL,
			SourceName:   page.SourceName,
			Title:        extraction.Title,
			BodyText:     extraction.BodyText,
			Author:       extraction.Author,
			PublishedAt:  extraction.PublishedAt,
			ContentHash:  contentHash,
			FirstSeenAt:  now,
			LastSeenAt:   now,
			Version:      1,
		}
		if err := s.articles.Insert(ctx, a); err != nil {
			return "", err
		}
		if err := s.notify(ctx, id, a.Version); err != nil {
			return "", err
		}
		return telemetry.StoreResultInserted, nil
	}
	if err != nil {
		return "", fmt.Errorf("read article %s: %w", id, err)
	}

	if current.ContentHash == contentHash {
		// Re-fetch of unchanged content. Touch last_seen only; no note.
		touched := current
		touched.LastSeenAt = now
		if err := s.articles.Update(ctx, touched, current.Version); err != nil {
			return "", err
		}
		return telemetry.StoreResultDuplicate, nil
	}

	updated := current
	updated.URL = page.URL
	updated.CanonicalURL = extraction.CanonicalURL
	updated.Title = extraction.Title
	updated.BodyText = extraction.BodyText
	updated.Author = extraction.Author
	updated.PublishedAt = extraction.PublishedAt
	updated.ContentHash = contentHash
	updated.LastSeenAt = now
	updated.Version = current.Version + 1
	if err := s.articles.Update(ctx, updated, current.Version); err != nil {
		return "", err
	}
	if err := s.notify(ctx, id, updated.Version); err != nil {
		return "", err
	}
	return telemetry.StoreResultUpdated, nil
}

func (s *Service) notify(ctx context.Context, id string, version int64) error {
	note, err := json.Marshal(news.ChangeNote{ID: id, Version: version})
	if err != nil {
		return fmt.Errorf("marshal change note: %w", err)
	}
	if _, err := s.publisher.Publish(ctx, s.cfg.NotesTopic, note); err != nil {
		return fmt.Errorf("publish change note for %s: %w", id, err)
	}
	return nil
}
