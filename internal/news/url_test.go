package news

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNormalizeURL(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		in   string
		want string
	}{
		{"lowercases host", "https://Example.COM/News", "https://example.com/News"},
		{"strips default https port", "https://example.com:443/a", "https://example.com/a"},
		{"strips default http port", "http://example.com:80/a", "http://example.com/a"},
		{"drops fragment", "https://example.com/a#section", "https://example.com/a"},
		{"sorts query params", "https://example.com/a?b=2&a=1", "https://example.com/a?a=1&b=2"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := NormalizeURL(tc.in)
			require.NoError(t, err)
			require.Equal(t, tc.want, got)
		})
	}
}

func TestArticleID_StableAcrossEquivalentURLs(t *testing.T) {
	t.Parallel()

	a, err := ArticleID("https://Example.com/story?b=2&a=1")
	require.NoError(t, err)
	b, err := ArticleID("https://example.com:443/story?a=1&b=2#frag")
	require.NoError(t, err)
	require.Equal(t, a, b)
	require.Len(t, a, 32)

	c, err := ArticleID("https://example.com/other")
	require.NoError(t, err)
	require.NotEqual(t, a, c)
}

func TestDomain(t *testing.T) {
	t.Parallel()

	require.Equal(t, "example.com", Domain("https://Example.com:8443/x"))
	require.Equal(t, "unknown", Domain("::notaurl"))
}
