package index

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/newsforge/newsforge/internal/news"
)

func openTestIndex(t *testing.T) *Index {
	t.Helper()
	idx, err := Open(Config{InMemory: true}, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = idx.Close() })
	return idx
}

func record(id, title, body string, embedding []float32, version int64) news.IndexRecord {
	return news.IndexRecord{
		ID:        id,
		Title:     title,
		BodyText:  body,
		Embedding: embedding,
		Version:   version,
	}
}

func TestIndex_UpsertAndGet(t *testing.T) {
	t.Parallel()

	idx := openTestIndex(t)
	rec := record("a1", "Rates Hold Steady", "the central bank held its benchmark rate", []float32{1, 0, 0}, 1)
	require.NoError(t, idx.Upsert(context.Background(), rec))

	got, err := idx.Get(context.Background(), "a1")
	require.NoError(t, err)
	require.Equal(t, rec, got)

	_, err = idx.Get(context.Background(), "missing")
	require.ErrorIs(t, err, news.ErrNotFound)
}

func TestIndex_LexicalRanksMatchingDocFirst(t *testing.T) {
	t.Parallel()

	idx := openTestIndex(t)
	ctx := context.Background()
	require.NoError(t, idx.Upsert(ctx, record("a1", "Inflation cools again", "inflation data shows consumer prices cooling", []float32{1, 0}, 1)))
	require.NoError(t, idx.Upsert(ctx, record("b2", "Football transfer window", "the club signed a new striker yesterday", []float32{0, 1}, 1)))

	hits, err := idx.Lexical(ctx, "inflation prices", 10)
	require.NoError(t, err)
	require.NotEmpty(t, hits)
	require.Equal(t, "a1", hits[0].ID)
	require.Equal(t, 1, hits[0].Rank)
	for _, h := range hits {
		require.NotEqual(t, "b2", h.ID)
	}
}

func TestIndex_LexicalEmptyQueryAndNoDocs(t *testing.T) {
	t.Parallel()

	idx := openTestIndex(t)
	hits, err := idx.Lexical(context.Background(), "the of and", 10)
	require.NoError(t, err)
	require.Empty(t, hits)

	hits, err = idx.Lexical(context.Background(), "anything", 10)
	require.NoError(t, err)
	require.Empty(t, hits)
}

func TestIndex_VectorRanksByCosine(t *testing.T) {
	t.Parallel()

	idx := openTestIndex(t)
	ctx := context.Background()
	require.NoError(t, idx.Upsert(ctx, record("a1", "one", "body one", []float32{1, 0}, 1)))
	require.NoError(t, idx.Upsert(ctx, record("b2", "two", "body two", []float32{0.6, 0.8}, 1)))

	hits, err := idx.Vector(ctx, []float32{0, 1}, 10)
	require.NoError(t, err)
	require.Len(t, hits, 2)
	require.Equal(t, "b2", hits[0].ID)
	require.InDelta(t, 0.8, hits[0].Score, 1e-6)
	require.Equal(t, "a1", hits[1].ID)
	require.InDelta(t, 0.0, hits[1].Score, 1e-6)
}

func TestIndex_UpsertReplacesOldTerms(t *testing.T) {
	t.Parallel()

	idx := openTestIndex(t)
	ctx := context.Background()
	require.NoError(t, idx.Upsert(ctx, record("a1", "cricket scores", "cricket match report", []float32{1, 0}, 1)))
	require.NoError(t, idx.Upsert(ctx, record("a1", "budget vote", "parliament passed the budget", []float32{0, 1}, 2)))

	hits, err := idx.Lexical(ctx, "cricket", 10)
	require.NoError(t, err)
	require.Empty(t, hits)

	hits, err = idx.Lexical(ctx, "budget", 10)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	require.Equal(t, "a1", hits[0].ID)

	got, err := idx.Get(ctx, "a1")
	require.NoError(t, err)
	require.Equal(t, int64(2), got.Version)
	require.Equal(t, []float32{0, 1}, got.Embedding)
}

func TestIndex_ReopenRestoresRecords(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	idx, err := Open(Config{Path: dir}, zap.NewNop())
	require.NoError(t, err)
	rec := record("a1", "Rates Hold Steady", "the central bank held its benchmark rate", []float32{0.5, 0.5}, 3)
	require.NoError(t, idx.Upsert(context.Background(), rec))
	require.NoError(t, idx.Close())

	reopened, err := Open(Config{Path: dir}, zap.NewNop())
	require.NoError(t, err)
	defer reopened.Close() //nolint:errcheck // test cleanup

	got, err := reopened.Get(context.Background(), "a1")
	require.NoError(t, err)
	require.Equal(t, rec, got)

	hits, err := reopened.Lexical(context.Background(), "benchmark rate", 10)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	require.Equal(t, "a1", hits[0].ID)

	hits, err = reopened.Vector(context.Background(), []float32{0.5, 0.5}, 10)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	require.InDelta(t, 1.0, hits[0].Score, 1e-6)
}

func TestIndex_LimitCapsHits(t *testing.T) {
	t.Parallel()

	idx := openTestIndex(t)
	ctx := context.Background()
	require.NoError(t, idx.Upsert(ctx, record("a1", "storm warning", "storm hits coast", []float32{1, 0}, 1)))
	require.NoError(t, idx.Upsert(ctx, record("b2", "storm update", "storm weakens offshore", []float32{0, 1}, 1)))
	require.NoError(t, idx.Upsert(ctx, record("c3", "storm recap", "storm damage assessed", []float32{1, 1}, 1)))

	hits, err := idx.Lexical(ctx, "storm", 2)
	require.NoError(t, err)
	require.Len(t, hits, 2)
}

func TestTokenize(t *testing.T) {
	t.Parallel()

	require.Equal(t, []string{"central", "bank", "held", "rates"},
		tokenize("The central bank held rates."))
	require.Empty(t, tokenize("the and of"))
	require.Equal(t, []string{"u.s"}, tokenize("U.S.")) // inner punctuation survives
}
