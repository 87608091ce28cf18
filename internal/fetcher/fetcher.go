// Package fetcher runs one bounded crawl: seed targets are expanded into
// page tasks, fetched politely, and published to the raw-pages topic.
package fetcher

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/panjf2000/ants/v2"
	"go.uber.org/zap"

	"github.com/newsforge/newsforge/internal/expand"
	"github.com/newsforge/newsforge/internal/news"
	"github.com/newsforge/newsforge/internal/ratelimit"
	"github.com/newsforge/newsforge/internal/telemetry"
)

const maxBodyBytes = 10 << 20

// Config holds the parameters for one fetch run.
type Config struct {
	MaxPages    int
	Concurrency int
	UserAgent   string
	Timeout     time.Duration
	MaxRetries  int
	RawTopic    string
}

// Summary reports what a run accomplished.
type Summary struct {
	Discovered int
	Published  int
	Failed     int
	Elapsed    time.Duration
}

// Fetcher coordinates one crawl run. Per-task failures are logged and
// counted; they never abort the run.
type Fetcher struct {
	cfg       Config
	expander  expand.Expander
	limiter   *ratelimit.Limiter
	publisher news.Publisher
	client    *http.Client
	policy    *ExponentialRetryPolicy
	clock     news.Clock
	log       *zap.Logger
}

// New wires a Fetcher. The limiter paces requests per domain; the publisher
// must confirm durability before returning.
func New(cfg Config, expander expand.Expander, limiter *ratelimit.Limiter, publisher news.Publisher, clock news.Clock, log *zap.Logger) *Fetcher {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 10
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &Fetcher{
		cfg:       cfg,
		expander:  expander,
		limiter:   limiter,
		publisher: publisher,
		client:    &http.Client{Timeout: cfg.Timeout},
		policy:    NewExponentialRetryPolicy(cfg.MaxRetries),
		clock:     clock,
		log:       log,
	}
}

// Run expands every target and fetches the resulting tasks on a worker pool.
// It returns after max pages have been published or all tasks are done.
// Reaching the page budget stops scheduling; in-flight tasks finish.
func (f *Fetcher) Run(ctx context.Context, targets []news.SeedTarget) (Summary, error) {
	start := f.clock.Now()

	tasks := f.discover(ctx, targets)
	summary := Summary{Discovered: len(tasks)}
	if len(tasks) == 0 {
		summary.Elapsed = f.clock.Now().Sub(start)
		return summary, nil
	}

	pool, err := ants.NewPool(f.cfg.Concurrency)
	if err != nil {
		return summary, fmt.Errorf("create worker pool: %w", err)
	}
	defer pool.Release()

	var (
		wg        sync.WaitGroup
		published atomic.Int64
		failed    atomic.Int64
	)
	budgetSpent := func() bool {
		return f.cfg.MaxPages > 0 && published.Load() >= int64(f.cfg.MaxPages)
	}
	for _, task := range tasks {
		if ctx.Err() != nil || budgetSpent() {
			break
		}
		task := task
		wg.Add(1)
		if err := pool.Submit(func() {
			defer wg.Done()
			if ctx.Err() != nil || budgetSpent() {
				return
			}
			if err := f.process(ctx, task); err != nil {
				failed.Add(1)
				f.log.Warn("page fetch failed",
					zap.String("url", task.URL),
					zap.String("source", task.SourceName),
					zap.Error(err),
				)
				return
			}
			published.Add(1)
		}); err != nil {
			wg.Done()
			failed.Add(1)
			f.log.Warn("pool submit failed", zap.String("url", task.URL), zap.Error(err))
		}
	}
	wg.Wait()

	summary.Published = int(published.Load())
	summary.Failed = int(failed.Load())
	summary.Elapsed = f.clock.Now().Sub(start)
	f.log.Info("fetch run finished",
		zap.Int("discovered", summary.Discovered),
		zap.Int("published", summary.Published),
		zap.Int("failed", summary.Failed),
		zap.Duration("elapsed", summary.Elapsed),
	)
	return summary, nil
}

// discover expands every seed target. A target that fails to expand is
// logged and skipped.
func (f *Fetcher) discover(ctx context.Context, targets []news.SeedTarget) []news.FetchTask {
	var tasks []news.FetchTask
	seen := make(map[string]struct{})
	for _, target := range targets {
		expanded, err := f.expander.Expand(ctx, target)
		if err != nil {
			f.log.Warn("seed expansion failed",
				zap.String("source", target.Name),
				zap.String("kind", string(target.Kind)),
				zap.String("url", target.URL),
				zap.Error(err),
			)
			continue
		}
		for _, task := range expanded {
			norm, err := news.NormalizeURL(task.URL)
			if err != nil {
				continue
			}
			if _, ok := seen[norm]; ok {
				continue
			}
			seen[norm] = struct{}{}
			tasks = append(tasks, task)
		}
	}
	return tasks
}

// Task states for the retry machine.
type taskState int

const (
	taskPending taskState = iota
	taskRetrying
	taskSucceeded
	taskFailed
)

// process drives one task through the fetch state machine until it settles.
func (f *Fetcher) process(ctx context.Context, task news.FetchTask) error {
	domain := news.Domain(task.URL)
	state := taskPending
	attempt := 0
	var lastErr error
	for {
		switch state {
		case taskPending, taskRetrying:
			if state == taskRetrying {
				if err := sleepWithContext(ctx, f.policy.Backoff(attempt-1)); err != nil {
					lastErr = err
					state = taskFailed
					continue
				}
			}
			err := f.attempt(ctx, task, domain)
			if err == nil {
				state = taskSucceeded
				continue
			}
			attempt++
			lastErr = err
			if f.policy.ShouldRetry(err, attempt) {
				state = taskRetrying
				continue
			}
			state = taskFailed
		case taskSucceeded:
			telemetry.ObserveFetch(domain, "ok")
			return nil
		case taskFailed:
			telemetry.ObserveFetch(domain, "failed")
			return lastErr
		}
	}
}

// attempt performs one polite fetch and publishes the page. The publish must
// be confirmed before the attempt counts as a success.
func (f *Fetcher) attempt(ctx context.Context, task news.FetchTask, domain string) error {
	release, err := f.limiter.Acquire(ctx, domain)
	if err != nil {
		return fmt.Errorf("acquire rate limit for %s: %w", domain, err)
	}
	defer release()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, task.URL, nil)
	if err != nil {
		return fmt.Errorf("build request %s: %w", task.URL, err)
	}
	if f.cfg.UserAgent != "" {
		req.Header.Set("User-Agent", f.cfg.UserAgent)
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return fmt.Errorf("fetch %s: %w", task.URL, err)
	}
	defer resp.Body.Close() //nolint:errcheck // read-only body
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &statusError{code: resp.StatusCode, url: task.URL}
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return fmt.Errorf("read body %s: %w", task.URL, err)
	}
	if len(body) == 0 {
		return fmt.Errorf("fetch %s: %w", task.URL, errEmptyBody)
	}

	page := news.RawPage{
		URL:        task.URL,
		SourceName: task.SourceName,
		FetchedAt:  f.clock.Now(),
		HTTPStatus: resp.StatusCode,
		Body:       body,
	}
	payload, err := json.Marshal(page)
	if err != nil {
		return fmt.Errorf("marshal raw page %s: %w", task.URL, err)
	}
	if _, err := f.publisher.Publish(ctx, f.cfg.RawTopic, payload); err != nil {
		return fmt.Errorf("publish raw page %s: %w", task.URL, err)
	}
	return nil
}
