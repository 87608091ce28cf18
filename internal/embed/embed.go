// Package embed produces fixed-length text embeddings for the index and the
// search gateway. The production implementation talks to any
// OpenAI-compatible embeddings endpoint; Mock is a deterministic stand-in
// for tests and offline development.
package embed

import (
	"context"
	"fmt"

	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/openai"
	"go.uber.org/zap"

	"github.com/newsforge/newsforge/internal/news"
)

// Config locates the embedding service.
type Config struct {
	Host       string
	Model      string
	Dimensions int
}

// OpenAIEmbedder implements news.Embedder against an OpenAI-compatible API.
type OpenAIEmbedder struct {
	embedder embeddings.Embedder
	log      *zap.Logger
}

// NewOpenAI builds the embedder client. Local services that skip auth still
// need a token value, so "none" is sent when talking to them.
func NewOpenAI(cfg Config, log *zap.Logger) (*OpenAIEmbedder, error) {
	if cfg.Host == "" {
		return nil, fmt.Errorf("embed.host is required")
	}
	client, err := openai.New(
		openai.WithBaseURL(cfg.Host),
		openai.WithToken("none"),
		openai.WithEmbeddingModel(cfg.Model),
	)
	if err != nil {
		return nil, fmt.Errorf("create embeddings client: %w", err)
	}
	embedder, err := embeddings.NewEmbedder(client, embeddings.WithStripNewLines(true))
	if err != nil {
		return nil, fmt.Errorf("wrap embedder: %w", err)
	}
	return &OpenAIEmbedder{embedder: embedder, log: log}, nil
}

// EmbedText generates the vector for one text.
func (e *OpenAIEmbedder) EmbedText(ctx context.Context, text string) ([]float32, error) {
	vectors, err := e.embedder.EmbedDocuments(ctx, []string{text})
	if err != nil {
		return nil, fmt.Errorf("embed text: %w", err)
	}
	if len(vectors) == 0 {
		return nil, fmt.Errorf("embedding service returned no vectors")
	}
	return vectors[0], nil
}

var _ news.Embedder = (*OpenAIEmbedder)(nil)
