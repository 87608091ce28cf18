// Package expand turns seed targets into concrete page fetch tasks.
// Each news.SourceKind has its own expansion strategy.
package expand

import (
	"context"
	"fmt"
	"time"

	"github.com/newsforge/newsforge/internal/news"
)

// Expander resolves one seed target into zero or more fetch tasks.
type Expander interface {
	Expand(ctx context.Context, target news.SeedTarget) ([]news.FetchTask, error)
}

// Config is shared by all expander kinds.
type Config struct {
	UserAgent string
	Timeout   time.Duration
	// SectionMaxLinks caps link discovery on section pages.
	SectionMaxLinks int
}

// Selector routes targets to the expander for their kind.
type Selector struct {
	rss     Expander
	sitemap Expander
	section Expander
}

// NewSelector wires the three expansion strategies.
func NewSelector(cfg Config) *Selector {
	return &Selector{
		rss:     NewRSSExpander(cfg),
		sitemap: NewSitemapExpander(cfg),
		section: NewSectionExpander(cfg),
	}
}

// Expand dispatches on the target kind.
func (s *Selector) Expand(ctx context.Context, target news.SeedTarget) ([]news.FetchTask, error) {
	switch target.Kind {
	case news.KindRSS:
		return s.rss.Expand(ctx, target)
	case news.KindSitemap:
		return s.sitemap.Expand(ctx, target)
	case news.KindSection:
		return s.section.Expand(ctx, target)
	default:
		return nil, fmt.Errorf("unknown seed kind %q", target.Kind)
	}
}

// dedupeTasks drops repeated URLs while preserving discovery order.
func dedupeTasks(tasks []news.FetchTask) []news.FetchTask {
	seen := make(map[string]struct{}, len(tasks))
	out := tasks[:0]
	for _, task := range tasks {
		norm, err := news.NormalizeURL(task.URL)
		if err != nil {
			continue
		}
		if _, ok := seen[norm]; ok {
			continue
		}
		seen[norm] = struct{}{}
		out = append(out, task)
	}
	return out
}
