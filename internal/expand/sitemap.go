package expand

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/newsforge/newsforge/internal/news"
)

// SitemapExpander resolves a sitemap (or a one-level sitemap index) into one
// task per listed URL.
type SitemapExpander struct {
	client    *http.Client
	userAgent string
}

// NewSitemapExpander builds a SitemapExpander.
func NewSitemapExpander(cfg Config) *SitemapExpander {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	return &SitemapExpander{
		client:    &http.Client{Timeout: timeout},
		userAgent: cfg.UserAgent,
	}
}

type sitemapURLSet struct {
	XMLName xml.Name     `xml:"urlset"`
	URLs    []sitemapLoc `xml:"url"`
}

type sitemapIndex struct {
	XMLName  xml.Name     `xml:"sitemapindex"`
	Sitemaps []sitemapLoc `xml:"sitemap"`
}

type sitemapLoc struct {
	Loc string `xml:"loc"`
}

// Expand downloads the sitemap. A sitemap index is followed one level deep;
// nested indexes are ignored.
func (e *SitemapExpander) Expand(ctx context.Context, target news.SeedTarget) ([]news.FetchTask, error) {
	locs, nested, err := e.fetch(ctx, target.URL)
	if err != nil {
		return nil, err
	}
	for _, child := range nested {
		childLocs, _, err := e.fetch(ctx, child)
		if err != nil {
			// A broken child sitemap should not sink the whole target.
			continue
		}
		locs = append(locs, childLocs...)
	}

	now := time.Now().UTC()
	tasks := make([]news.FetchTask, 0, len(locs))
	for _, loc := range locs {
		if loc == "" {
			continue
		}
		tasks = append(tasks, news.FetchTask{
			URL:          loc,
			SourceName:   target.Name,
			DiscoveredAt: now,
		})
	}
	return dedupeTasks(tasks), nil
}

// fetch returns page locations and, for index documents, child sitemap URLs.
func (e *SitemapExpander) fetch(ctx context.Context, url string) ([]string, []string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("build sitemap request: %w", err)
	}
	if e.userAgent != "" {
		req.Header.Set("User-Agent", e.userAgent)
	}
	resp, err := e.client.Do(req)
	if err != nil {
		return nil, nil, fmt.Errorf("fetch sitemap %s: %w", url, err)
	}
	defer resp.Body.Close() //nolint:errcheck // read-only body
	if resp.StatusCode != http.StatusOK {
		return nil, nil, fmt.Errorf("fetch sitemap %s: status %d", url, resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, 10<<20))
	if err != nil {
		return nil, nil, fmt.Errorf("read sitemap %s: %w", url, err)
	}

	var set sitemapURLSet
	if err := xml.Unmarshal(body, &set); err == nil && len(set.URLs) > 0 {
		locs := make([]string, 0, len(set.URLs))
		for _, u := range set.URLs {
			locs = append(locs, u.Loc)
		}
		return locs, nil, nil
	}

	var index sitemapIndex
	if err := xml.Unmarshal(body, &index); err == nil && len(index.Sitemaps) > 0 {
		children := make([]string, 0, len(index.Sitemaps))
		for _, s := range index.Sitemaps {
			children = append(children, s.Loc)
		}
		return nil, children, nil
	}

	return nil, nil, fmt.Errorf("sitemap %s: no urlset or sitemapindex found", url)
}
