package cmd

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/newsforge/newsforge/internal/archive"
	"github.com/newsforge/newsforge/internal/config"
	"github.com/newsforge/newsforge/internal/embed"
	"github.com/newsforge/newsforge/internal/news"
	queuememory "github.com/newsforge/newsforge/internal/queue/memory"
	queuepubsub "github.com/newsforge/newsforge/internal/queue/pubsub"
	storagememory "github.com/newsforge/newsforge/internal/storage/memory"
	"github.com/newsforge/newsforge/internal/storage/postgres"
)

// The memory broker is shared within the process so a publisher and a
// consumer built separately still see the same topics.
var (
	memoryBrokerOnce sync.Once
	memoryBroker     *queuememory.Broker
)

func sharedMemoryBroker() *queuememory.Broker {
	memoryBrokerOnce.Do(func() {
		memoryBroker = queuememory.NewBroker()
	})
	return memoryBroker
}

func buildPublisher(ctx context.Context, cfg config.QueueConfig) (news.Publisher, error) {
	switch cfg.Provider {
	case "memory":
		return sharedMemoryBroker().Publisher(), nil
	case "pubsub":
		return queuepubsub.NewPublisher(ctx, cfg.ProjectID)
	default:
		return nil, fmt.Errorf("unknown queue provider %q", cfg.Provider)
	}
}

func buildConsumer(ctx context.Context, cfg config.QueueConfig, topic, subscription string) (news.Consumer, error) {
	switch cfg.Provider {
	case "memory":
		return sharedMemoryBroker().Consumer(topic), nil
	case "pubsub":
		return queuepubsub.NewConsumer(ctx, cfg.ProjectID, subscription)
	default:
		return nil, fmt.Errorf("unknown queue provider %q", cfg.Provider)
	}
}

func buildArticleStore(ctx context.Context, cfg config.StoreConfig) (news.ArticleStore, error) {
	switch cfg.Provider {
	case "memory":
		return storagememory.NewArticleStore(), nil
	case "postgres":
		return postgres.NewArticleStore(ctx, postgres.ArticleStoreConfig{
			DSN:   cfg.DSN,
			Table: cfg.Table,
		})
	default:
		return nil, fmt.Errorf("unknown store provider %q", cfg.Provider)
	}
}

func buildArchive(ctx context.Context, cfg config.ArchiveConfig) (archive.BlobStore, error) {
	switch cfg.Provider {
	case "", "none":
		return archive.Nop{}, nil
	case "gcs":
		return archive.NewGCSStore(ctx, cfg.GCSBucket)
	case "local":
		return archive.NewLocalStore(cfg.LocalDir)
	case "memory":
		return archive.NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown archive provider %q", cfg.Provider)
	}
}

// buildEmbedder returns the OpenAI-compatible client when a host is set,
// otherwise the deterministic offline embedder.
func buildEmbedder(cfg config.EmbedConfig, log *zap.Logger) (news.Embedder, error) {
	if cfg.Host == "" {
		log.Info("no embedding host configured, using deterministic embedder",
			zap.Int("dimensions", cfg.Dimensions))
		return embed.NewMock(cfg.Dimensions), nil
	}
	return embed.NewOpenAI(embed.Config{
		Host:       cfg.Host,
		Model:      cfg.Model,
		Dimensions: cfg.Dimensions,
	}, log)
}
