package expand

import (
	"context"
	"net/url"
	"time"

	"github.com/gocolly/colly/v2"

	"github.com/newsforge/newsforge/internal/news"
)

// SectionExpander scrapes a section landing page and turns its same-host
// article links into tasks.
type SectionExpander struct {
	userAgent string
	timeout   time.Duration
	maxLinks  int
}

// NewSectionExpander builds a SectionExpander. maxLinks caps how many
// distinct links one section page may contribute.
func NewSectionExpander(cfg Config) *SectionExpander {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	maxLinks := cfg.SectionMaxLinks
	if maxLinks <= 0 {
		maxLinks = 50
	}
	return &SectionExpander{
		userAgent: cfg.UserAgent,
		timeout:   timeout,
		maxLinks:  maxLinks,
	}
}

// Expand visits the section page once and collects anchor hrefs that resolve
// to the same host. Links are normalized, deduplicated, and capped in
// document order.
func (e *SectionExpander) Expand(ctx context.Context, target news.SeedTarget) ([]news.FetchTask, error) {
	base, err := url.Parse(target.URL)
	if err != nil {
		return nil, err
	}

	opts := []colly.CollectorOption{
		colly.MaxDepth(1),
		colly.AllowedDomains(base.Hostname()),
	}
	if e.userAgent != "" {
		opts = append(opts, colly.UserAgent(e.userAgent))
	}
	collector := colly.NewCollector(opts...)
	collector.SetRequestTimeout(e.timeout)
	collector.Context = ctx

	now := time.Now().UTC()
	var (
		tasks    []news.FetchTask
		collyErr error
	)
	collector.OnHTML("a[href]", func(el *colly.HTMLElement) {
		link := el.Request.AbsoluteURL(el.Attr("href"))
		if link == "" {
			return
		}
		parsed, err := url.Parse(link)
		if err != nil || parsed.Hostname() != base.Hostname() {
			return
		}
		tasks = append(tasks, news.FetchTask{
			URL:          link,
			SourceName:   target.Name,
			DiscoveredAt: now,
		})
	})
	collector.OnError(func(_ *colly.Response, err error) {
		collyErr = err
	})

	if err := collector.Visit(target.URL); err != nil {
		return nil, err
	}
	collector.Wait()
	if collyErr != nil && len(tasks) == 0 {
		return nil, collyErr
	}

	tasks = dedupeTasks(tasks)
	if len(tasks) > e.maxLinks {
		tasks = tasks[:e.maxLinks]
	}
	return tasks, nil
}
