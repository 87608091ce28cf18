// Package search fuses lexical and vector rankings into one hybrid result
// list.
package search

import (
	"context"
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/newsforge/newsforge/internal/news"
	"github.com/newsforge/newsforge/internal/telemetry"
)

// FusionCode is the stable error code for a failed hybrid query.
const FusionCode = "fusion_failed"

// FusionError reports that either sub-query (or the query embedding) failed.
// The whole request fails; a single-signal ranking would silently change
// result semantics.
type FusionError struct {
	Stage string
	Err   error
}

func (e *FusionError) Error() string {
	return fmt.Sprintf("hybrid query failed in %s: %v", e.Stage, e.Err)
}

func (e *FusionError) Unwrap() error { return e.Err }

// Result is one fused hit.
type Result struct {
	ID    string  `json:"id"`
	Score float64 `json:"score"`
}

// Config holds the fusion parameters. Alpha weights the lexical signal;
// PoolSize is how many candidates each sub-query contributes.
type Config struct {
	Alpha    float64
	PoolSize int
}

// Fuser runs hybrid queries against the index.
type Fuser struct {
	cfg      Config
	index    news.SearchIndex
	embedder news.Embedder
	log      *zap.Logger
}

// New wires a Fuser.
func New(cfg Config, index news.SearchIndex, embedder news.Embedder, log *zap.Logger) *Fuser {
	if cfg.PoolSize <= 0 {
		cfg.PoolSize = 50
	}
	return &Fuser{cfg: cfg, index: index, embedder: embedder, log: log}
}

// Search returns the top k fused results for the query text.
func (f *Fuser) Search(ctx context.Context, query string, k int) ([]Result, error) {
	if k <= 0 {
		return nil, fmt.Errorf("k must be positive")
	}
	pool := f.cfg.PoolSize
	if pool < k {
		pool = k
	}

	lexical, err := f.index.Lexical(ctx, query, pool)
	if err != nil {
		telemetry.ObserveSearch("error")
		return nil, &FusionError{Stage: "lexical query", Err: err}
	}
	embedding, err := f.embedder.EmbedText(ctx, query)
	if err != nil {
		telemetry.ObserveSearch("error")
		return nil, &FusionError{Stage: "query embedding", Err: err}
	}
	vector, err := f.index.Vector(ctx, embedding, pool)
	if err != nil {
		telemetry.ObserveSearch("error")
		return nil, &FusionError{Stage: "vector query", Err: err}
	}

	lexRaw := make(map[string]float64, len(lexical))
	for _, h := range lexical {
		lexRaw[h.ID] = h.Score
	}
	results := blend(normalize(lexical), normalize(vector), lexRaw, f.cfg.Alpha, k)
	telemetry.ObserveSearch("ok")
	return results, nil
}

// blend zero-fills the missing signal and fuses per record as
// alpha*lexical + (1-alpha)*vector over normalized scores. Ties break on
// higher raw lexical score, then ID ascending.
func blend(lexNorm, vecNorm, lexRaw map[string]float64, alpha float64, k int) []Result {
	ids := make(map[string]struct{}, len(lexNorm)+len(vecNorm))
	for id := range lexNorm {
		ids[id] = struct{}{}
	}
	for id := range vecNorm {
		ids[id] = struct{}{}
	}

	fused := make([]Result, 0, len(ids))
	for id := range ids {
		score := alpha*lexNorm[id] + (1-alpha)*vecNorm[id]
		fused = append(fused, Result{ID: id, Score: score})
	}
	sort.Slice(fused, func(i, j int) bool {
		if fused[i].Score != fused[j].Score {
			return fused[i].Score > fused[j].Score
		}
		if lexRaw[fused[i].ID] != lexRaw[fused[j].ID] {
			return lexRaw[fused[i].ID] > lexRaw[fused[j].ID]
		}
		return fused[i].ID < fused[j].ID
	})
	if len(fused) > k {
		fused = fused[:k]
	}
	return fused
}

// normalize min-max scales the hit scores to [0,1]. A single hit, or a list
// where every score is equal, maps to 1.
func normalize(hits []news.SearchHit) map[string]float64 {
	out := make(map[string]float64, len(hits))
	if len(hits) == 0 {
		return out
	}
	min, max := hits[0].Score, hits[0].Score
	for _, h := range hits[1:] {
		if h.Score < min {
			min = h.Score
		}
		if h.Score > max {
			max = h.Score
		}
	}
	for _, h := range hits {
		if max == min {
			out[h.ID] = 1
			continue
		}
		out[h.ID] = (h.Score - min) / (max - min)
	}
	return out
}
