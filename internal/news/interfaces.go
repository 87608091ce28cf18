package news

import (
	"context"
	"time"
)

// Publisher sends a message to a named topic. Publish returns only after the
// broker confirms the message is durable.
type Publisher interface {
	Publish(ctx context.Context, topic string, payload []byte) (string, error)
	Close() error
}

// Delivery is a single at-least-once message. A delivery that is Nacked, or
// neither Acked nor Nacked before a crash, is redelivered.
type Delivery interface {
	Data() []byte
	Ack()
	Nack()
}

// Consumer feeds deliveries from one subscription to the handler, possibly
// concurrently. Receive blocks until the context finishes.
type Consumer interface {
	Receive(ctx context.Context, handler func(context.Context, Delivery)) error
}

// ArticleStore persists articles keyed by ID with optimistic concurrency.
type ArticleStore interface {
	// Get returns the article or ErrNotFound.
	Get(ctx context.Context, id string) (Article, error)
	// Insert creates the article; ErrVersionConflict if the ID already exists.
	Insert(ctx context.Context, a Article) error
	// Update replaces the article if the stored version equals expect,
	// otherwise ErrVersionConflict.
	Update(ctx context.Context, a Article, expect int64) error
	Ping(ctx context.Context) error
	Close()
}

// SearchIndex stores combined lexical+vector records and serves both ranking
// signals. Upsert is atomic per ID: a reader never observes lexical fields
// without the matching embedding.
type SearchIndex interface {
	Upsert(ctx context.Context, rec IndexRecord) error
	// Get returns the record or ErrNotFound.
	Get(ctx context.Context, id string) (IndexRecord, error)
	// Lexical ranks records against the query by term relevance (BM25).
	Lexical(ctx context.Context, query string, limit int) ([]SearchHit, error)
	// Vector ranks records by cosine similarity to the embedding.
	Vector(ctx context.Context, embedding []float32, limit int) ([]SearchHit, error)
	Ping(ctx context.Context) error
	Close() error
}

// Embedder turns text into a fixed-length vector. Implementations must be
// safe for concurrent use.
type Embedder interface {
	EmbedText(ctx context.Context, text string) ([]float32, error)
}

// Hasher computes content digests for deduplication.
type Hasher interface {
	Hash(data []byte) (string, error)
}

// Clock returns the current time (swappable in tests).
type Clock interface {
	Now() time.Time
}
