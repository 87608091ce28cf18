// Package news defines core types shared across pipeline stages.
package news

import "time"

// SourceKind selects the expansion strategy for a seed target.
type SourceKind string

// Source kinds understood by the fetcher.
const (
	KindRSS     SourceKind = "rss"
	KindSitemap SourceKind = "sitemap"
	KindSection SourceKind = "section"
)

// SeedTarget is a configured source from which page URLs are discovered.
// Produced by the seed registry and consumed read-only by the fetcher.
type SeedTarget struct {
	Name string     `json:"name"`
	Kind SourceKind `json:"kind"`
	URL  string     `json:"url"`
}

// FetchTask is a concrete page URL scheduled on the fetch pool.
// Ephemeral; it lives only in the pool's pending set.
type FetchTask struct {
	URL          string
	SourceName   string
	DiscoveredAt time.Time
}

// RawPage is the queue message published for each successful download.
// Owned by the fetcher until the store acknowledges it.
type RawPage struct {
	URL        string    `json:"url"`
	SourceName string    `json:"source_name"`
	FetchedAt  time.Time `json:"fetched_at"`
	HTTPStatus int       `json:"http_status"`
	Body       []byte    `json:"body"`
}

// Article is the normalized document-store record. ID is derived from the
// normalized URL; ContentHash fingerprints the normalized body text and
// changes only when BodyText changes.
type Article struct {
	ID           string     `json:"id"`
	URL          string     `json:"url"`
	CanonicalURL string     `json:"canonical_url,omitempty"`
	SourceName   string     `json:"source_name"`
	Title        string     `json:"title"`
	BodyText     string     `json:"body_text"`
	Author       string     `json:"author,omitempty"`
	PublishedAt  *time.Time `json:"published_at,omitempty"`
	ContentHash  string     `json:"content_hash"`
	FirstSeenAt  time.Time  `json:"first_seen_at"`
	LastSeenAt   time.Time  `json:"last_seen_at"`
	Version      int64      `json:"version"`
}

// ChangeNote is published by the store when an article's content changes.
type ChangeNote struct {
	ID      string `json:"id"`
	Version int64  `json:"version"`
}

// IndexRecord combines the lexical fields and the embedding for one article.
// It always reflects the article version that produced it, or is absent.
type IndexRecord struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	BodyText  string    `json:"body_text"`
	Embedding []float32 `json:"embedding"`
	Version   int64     `json:"version"`
}

// SearchHit is one ranked result, constructed per request.
type SearchHit struct {
	ID    string  `json:"id"`
	Score float64 `json:"score"`
	Rank  int     `json:"rank"`
}
