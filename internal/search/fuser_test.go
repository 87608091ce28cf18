package search

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/newsforge/newsforge/internal/news"
)

type stubIndex struct {
	news.SearchIndex
	lexical    []news.SearchHit
	vector     []news.SearchHit
	lexicalErr error
	vectorErr  error
}

func (s *stubIndex) Lexical(context.Context, string, int) ([]news.SearchHit, error) {
	return s.lexical, s.lexicalErr
}

func (s *stubIndex) Vector(context.Context, []float32, int) ([]news.SearchHit, error) {
	return s.vector, s.vectorErr
}

type stubEmbedder struct {
	err error
}

func (s *stubEmbedder) EmbedText(context.Context, string) ([]float32, error) {
	if s.err != nil {
		return nil, s.err
	}
	return []float32{1, 0}, nil
}

func TestBlend_Determinism(t *testing.T) {
	t.Parallel()

	lex := map[string]float64{"a": 0.9, "b": 0.5}
	vec := map[string]float64{"a": 0.2, "b": 0.8}

	results := blend(lex, vec, lex, 0.5, 10)
	require.Len(t, results, 2)
	require.Equal(t, "b", results[0].ID)
	require.InDelta(t, 0.65, results[0].Score, 1e-9)
	require.Equal(t, "a", results[1].ID)
	require.InDelta(t, 0.55, results[1].Score, 1e-9)

	top := blend(lex, vec, lex, 0.5, 1)
	require.Len(t, top, 1)
	require.Equal(t, "b", top[0].ID)
}

func TestBlend_MissingSignalIsZero(t *testing.T) {
	t.Parallel()

	lex := map[string]float64{"a": 1.0}
	vec := map[string]float64{"b": 1.0}

	results := blend(lex, vec, lex, 0.75, 10)
	require.Len(t, results, 2)
	require.Equal(t, "a", results[0].ID)
	require.InDelta(t, 0.75, results[0].Score, 1e-9)
	require.Equal(t, "b", results[1].ID)
	require.InDelta(t, 0.25, results[1].Score, 1e-9)
}

func TestBlend_TieBreaksOnRawLexicalThenID(t *testing.T) {
	t.Parallel()

	lexNorm := map[string]float64{"a": 0.5, "b": 0.5}
	vecNorm := map[string]float64{"a": 0.5, "b": 0.5}

	// b has the higher raw lexical score.
	raw := map[string]float64{"a": 2.0, "b": 3.0}
	results := blend(lexNorm, vecNorm, raw, 0.5, 10)
	require.Equal(t, "b", results[0].ID)
	require.Equal(t, "a", results[1].ID)

	// Equal raw scores fall back to ID ascending.
	raw = map[string]float64{"a": 2.0, "b": 2.0}
	results = blend(lexNorm, vecNorm, raw, 0.5, 10)
	require.Equal(t, "a", results[0].ID)
	require.Equal(t, "b", results[1].ID)
}

func TestNormalize(t *testing.T) {
	t.Parallel()

	out := normalize([]news.SearchHit{
		{ID: "a", Score: 3.0},
		{ID: "b", Score: 1.0},
		{ID: "c", Score: 2.0},
	})
	require.InDelta(t, 1.0, out["a"], 1e-9)
	require.InDelta(t, 0.0, out["b"], 1e-9)
	require.InDelta(t, 0.5, out["c"], 1e-9)

	// Uniform scores map to 1.
	out = normalize([]news.SearchHit{{ID: "a", Score: 2.0}, {ID: "b", Score: 2.0}})
	require.InDelta(t, 1.0, out["a"], 1e-9)
	require.InDelta(t, 1.0, out["b"], 1e-9)

	require.Empty(t, normalize(nil))
}

func TestFuser_SearchFusesBothSignals(t *testing.T) {
	t.Parallel()

	idx := &stubIndex{
		lexical: []news.SearchHit{{ID: "a", Score: 4.0}, {ID: "b", Score: 2.0}},
		vector:  []news.SearchHit{{ID: "a", Score: 0.2}, {ID: "b", Score: 0.8}},
	}
	f := New(Config{Alpha: 0.5, PoolSize: 50}, idx, &stubEmbedder{}, zap.NewNop())

	results, err := f.Search(context.Background(), "rates", 2)
	require.NoError(t, err)
	require.Len(t, results, 2)
	// Both normalize to {a:1,b:0} and {a:0,b:1}; raw lexical breaks the tie.
	require.Equal(t, "a", results[0].ID)
	require.InDelta(t, 0.5, results[0].Score, 1e-9)
}

func TestFuser_SubQueryFailureFailsWholeRequest(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		idx  *stubIndex
		emb  *stubEmbedder
	}{
		{
			name: "lexical fails",
			idx:  &stubIndex{lexicalErr: errors.New("postings unavailable")},
			emb:  &stubEmbedder{},
		},
		{
			name: "embedding fails",
			idx:  &stubIndex{},
			emb:  &stubEmbedder{err: errors.New("service down")},
		},
		{
			name: "vector fails",
			idx:  &stubIndex{vectorErr: errors.New("matrix unavailable")},
			emb:  &stubEmbedder{},
		},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			f := New(Config{Alpha: 0.5}, tc.idx, tc.emb, zap.NewNop())
			_, err := f.Search(context.Background(), "rates", 5)
			var fusionErr *FusionError
			require.ErrorAs(t, err, &fusionErr)
		})
	}
}

func TestFuser_RejectsNonPositiveK(t *testing.T) {
	t.Parallel()

	f := New(Config{Alpha: 0.5}, &stubIndex{}, &stubEmbedder{}, zap.NewNop())
	_, err := f.Search(context.Background(), "rates", 0)
	require.Error(t, err)
}
