package indexer

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/newsforge/newsforge/internal/embed"
	"github.com/newsforge/newsforge/internal/index"
	"github.com/newsforge/newsforge/internal/news"
	"github.com/newsforge/newsforge/internal/storage/memory"
)

type fakeDelivery struct {
	data   []byte
	acked  bool
	nacked bool
}

func (d *fakeDelivery) Data() []byte { return d.data }
func (d *fakeDelivery) Ack()         { d.acked = true }
func (d *fakeDelivery) Nack()        { d.nacked = true }

func noteDelivery(t *testing.T, id string, version int64) *fakeDelivery {
	t.Helper()
	payload, err := json.Marshal(news.ChangeNote{ID: id, Version: version})
	require.NoError(t, err)
	return &fakeDelivery{data: payload}
}

func openTestIndex(t *testing.T) *index.Index {
	t.Helper()
	idx, err := index.Open(index.Config{InMemory: true}, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = idx.Close() })
	return idx
}

func seedArticle(t *testing.T, articles news.ArticleStore, id string, version int64, body string) {
	t.Helper()
	require.NoError(t, articles.Insert(context.Background(), news.Article{
		ID:       id,
		Title:    "Rates Hold Steady",
		BodyText: body,
		Version:  version,
	}))
}

func TestService_IndexesCurrentVersion(t *testing.T) {
	t.Parallel()

	articles := memory.NewArticleStore()
	idx := openTestIndex(t)
	svc := New(Config{}, nil, articles, idx, embed.NewMock(8), zap.NewNop())

	seedArticle(t, articles, "a1", 2, "the central bank held rates")
	d := noteDelivery(t, "a1", 2)
	svc.Handle(context.Background(), d)
	require.True(t, d.acked)

	rec, err := idx.Get(context.Background(), "a1")
	require.NoError(t, err)
	require.Equal(t, int64(2), rec.Version)
	require.Equal(t, "Rates Hold Steady", rec.Title)
	require.Len(t, rec.Embedding, 8)
}

func TestService_SkipsStaleNote(t *testing.T) {
	t.Parallel()

	articles := memory.NewArticleStore()
	idx := openTestIndex(t)
	svc := New(Config{}, nil, articles, idx, embed.NewMock(8), zap.NewNop())

	seedArticle(t, articles, "a1", 5, "newer content already stored")
	d := noteDelivery(t, "a1", 3)
	svc.Handle(context.Background(), d)
	require.True(t, d.acked)

	_, err := idx.Get(context.Background(), "a1")
	require.ErrorIs(t, err, news.ErrNotFound)
}

func TestService_SkipsMissingArticle(t *testing.T) {
	t.Parallel()

	svc := New(Config{}, nil, memory.NewArticleStore(), openTestIndex(t), embed.NewMock(8), zap.NewNop())

	d := noteDelivery(t, "ghost", 1)
	svc.Handle(context.Background(), d)
	require.True(t, d.acked)
	require.False(t, d.nacked)
}

func TestService_ReprocessingIsIdempotent(t *testing.T) {
	t.Parallel()

	articles := memory.NewArticleStore()
	idx := openTestIndex(t)
	svc := New(Config{}, nil, articles, idx, embed.NewMock(8), zap.NewNop())

	seedArticle(t, articles, "a1", 1, "the central bank held rates")
	svc.Handle(context.Background(), noteDelivery(t, "a1", 1))
	first, err := idx.Get(context.Background(), "a1")
	require.NoError(t, err)

	svc.Handle(context.Background(), noteDelivery(t, "a1", 1))
	second, err := idx.Get(context.Background(), "a1")
	require.NoError(t, err)
	require.Equal(t, first, second)
}

func TestService_RetriesTransientEmbedFailure(t *testing.T) {
	t.Parallel()

	articles := memory.NewArticleStore()
	idx := openTestIndex(t)
	embedder := embed.NewMock(8)
	calls := 0
	embedder.EmbedTextFunc = func(ctx context.Context, text string) ([]float32, error) {
		calls++
		if calls == 1 {
			return nil, errors.New("embedding service unavailable")
		}
		return []float32{1, 0, 0, 0, 0, 0, 0, 0}, nil
	}
	svc := New(Config{MaxRetries: 3}, nil, articles, idx, embedder, zap.NewNop())

	seedArticle(t, articles, "a1", 1, "the central bank held rates")
	d := noteDelivery(t, "a1", 1)
	svc.Handle(context.Background(), d)
	require.True(t, d.acked)
	require.Equal(t, 2, calls)
}

func TestService_PersistentEmbedFailureDropsRecord(t *testing.T) {
	t.Parallel()

	articles := memory.NewArticleStore()
	idx := openTestIndex(t)
	embedder := embed.NewMock(8)
	embedder.EmbedTextFunc = func(ctx context.Context, text string) ([]float32, error) {
		return nil, errors.New("embedding service unavailable")
	}
	svc := New(Config{MaxRetries: 2}, nil, articles, idx, embedder, zap.NewNop())

	seedArticle(t, articles, "a1", 1, "the central bank held rates")
	d := noteDelivery(t, "a1", 1)
	svc.Handle(context.Background(), d)
	require.True(t, d.acked)
	require.False(t, d.nacked)

	// The index keeps whatever it had; here, nothing.
	_, err := idx.Get(context.Background(), "a1")
	require.ErrorIs(t, err, news.ErrNotFound)
}

func TestService_MalformedNoteAcked(t *testing.T) {
	t.Parallel()

	svc := New(Config{}, nil, memory.NewArticleStore(), openTestIndex(t), embed.NewMock(8), zap.NewNop())

	d := &fakeDelivery{data: []byte("not json")}
	svc.Handle(context.Background(), d)
	require.True(t, d.acked)
}
