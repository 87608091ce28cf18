package expand

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/mmcdole/gofeed"

	"github.com/newsforge/newsforge/internal/news"
)

// RSSExpander resolves an RSS/Atom feed into one task per entry link.
type RSSExpander struct {
	parser *gofeed.Parser
}

// NewRSSExpander builds an RSSExpander.
func NewRSSExpander(cfg Config) *RSSExpander {
	parser := gofeed.NewParser()
	if cfg.UserAgent != "" {
		parser.UserAgent = cfg.UserAgent
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	parser.Client = &http.Client{Timeout: timeout}
	return &RSSExpander{parser: parser}
}

// Expand fetches and parses the feed.
func (e *RSSExpander) Expand(ctx context.Context, target news.SeedTarget) ([]news.FetchTask, error) {
	feed, err := e.parser.ParseURLWithContext(target.URL, ctx)
	if err != nil {
		return nil, fmt.Errorf("parse feed %s: %w", target.URL, err)
	}
	now := time.Now().UTC()
	tasks := make([]news.FetchTask, 0, len(feed.Items))
	for _, item := range feed.Items {
		if item.Link == "" {
			continue
		}
		tasks = append(tasks, news.FetchTask{
			URL:          item.Link,
			SourceName:   target.Name,
			DiscoveredAt: now,
		})
	}
	return dedupeTasks(tasks), nil
}
