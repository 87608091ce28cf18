// Package postgres provides the Postgres-backed article store.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/newsforge/newsforge/internal/news"
)

var validTableName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

const uniqueViolation = "23505"

// ArticleStoreConfig controls the Postgres connection pool used for article rows.
type ArticleStoreConfig struct {
	DSN             string
	Table           string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

type dbPool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Ping(ctx context.Context) error
	Close()
}

// ArticleStore persists articles in Postgres with a version column for
// optimistic concurrency.
type ArticleStore struct {
	pool  dbPool
	table string
}

// NewArticleStore creates a Postgres-backed ArticleStore using the provided config.
func NewArticleStore(ctx context.Context, cfg ArticleStoreConfig) (*ArticleStore, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("store.dsn is required")
	}
	table := cfg.Table
	if table == "" {
		table = "articles"
	}
	if !validTableName.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return &ArticleStore{pool: pool, table: table}, nil
}

// NewArticleStoreWithPool constructs a store from an existing pool (primarily for testing).
func NewArticleStoreWithPool(pool dbPool, table string) (*ArticleStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	if table == "" {
		table = "articles"
	}
	if !validTableName.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	return &ArticleStore{pool: pool, table: table}, nil
}

// Get returns the article row, or news.ErrNotFound.
func (s *ArticleStore) Get(ctx context.Context, id string) (news.Article, error) {
	query := fmt.Sprintf(`
SELECT id, url, canonical_url, source_name, title, body_text, author,
	published_at, content_hash, first_seen_at, last_seen_at, version
FROM %s WHERE id = $1`, s.table)

	var a news.Article
	err := s.pool.QueryRow(ctx, query, id).Scan(
		&a.ID,
		&a.URL,
		&a.CanonicalURL,
		&a.SourceName,
		&a.Title,
		&a.BodyText,
		&a.Author,
		&a.PublishedAt,
		&a.ContentHash,
		&a.FirstSeenAt,
		&a.LastSeenAt,
		&a.Version,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return news.Article{}, news.ErrNotFound
	}
	if err != nil {
		return news.Article{}, fmt.Errorf("get article %s: %w", id, err)
	}
	return a, nil
}

// Insert creates the article row. A duplicate ID reports news.ErrVersionConflict
// so the caller re-reads and retries its decision.
func (s *ArticleStore) Insert(ctx context.Context, a news.Article) error {
	if a.ID == "" {
		return fmt.Errorf("article id is required")
	}
	query := fmt.Sprintf(`
INSERT INTO %s (
	id, url, canonical_url, source_name, title, body_text, author,
	published_at, content_hash, first_seen_at, last_seen_at, version
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)`, s.table)

	_, err := s.pool.Exec(ctx, query,
		a.ID,
		a.URL,
		a.CanonicalURL,
		a.SourceName,
		a.Title,
		a.BodyText,
		a.Author,
		a.PublishedAt,
		a.ContentHash,
		a.FirstSeenAt,
		a.LastSeenAt,
		a.Version,
	)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return news.ErrVersionConflict
	}
	if err != nil {
		return fmt.Errorf("insert article %s: %w", a.ID, err)
	}
	return nil
}

// Update replaces the row only if the stored version still equals expect.
// A missed guard reports news.ErrVersionConflict.
func (s *ArticleStore) Update(ctx context.Context, a news.Article, expect int64) error {
	if a.ID == "" {
		return fmt.Errorf("article id is required")
	}
	query := fmt.Sprintf(`
UPDATE %s SET
	url = $2,
	canonical_url = $3,
	source_name = $4,
	title = $5,
	body_text = $6,
	author = $7,
	published_at = $8,
	content_hash = $9,
	first_seen_at = $10,
	last_seen_at = $11,
	version = $12
WHERE id = $1 AND version = $13`, s.table)

	tag, err := s.pool.Exec(ctx, query,
		a.ID,
		a.URL,
		a.CanonicalURL,
		a.SourceName,
		a.Title,
		a.BodyText,
		a.Author,
		a.PublishedAt,
		a.ContentHash,
		a.FirstSeenAt,
		a.LastSeenAt,
		a.Version,
		expect,
	)
	if err != nil {
		return fmt.Errorf("update article %s: %w", a.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return news.ErrVersionConflict
	}
	return nil
}

// Ping verifies the database connection.
func (s *ArticleStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close releases the underlying pool resources.
func (s *ArticleStore) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}
