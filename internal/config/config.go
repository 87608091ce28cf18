// Package config loads and validates pipeline configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Logging LoggingConfig `mapstructure:"logging"`
	Seed    SeedConfig    `mapstructure:"seed"`
	Fetch   FetchConfig   `mapstructure:"fetch"`
	Queue   QueueConfig   `mapstructure:"queue"`
	Store   StoreConfig   `mapstructure:"store"`
	Archive ArchiveConfig `mapstructure:"archive"`
	Index   IndexConfig   `mapstructure:"index"`
	Embed   EmbedConfig   `mapstructure:"embed"`
	Indexer IndexerConfig `mapstructure:"indexer"`
	Search  SearchConfig  `mapstructure:"search"`
}

// ServerConfig controls the search gateway HTTP server.
type ServerConfig struct {
	Port int `mapstructure:"port"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// SeedConfig points at the seed registry file.
type SeedConfig struct {
	File string `mapstructure:"file"`
}

// FetchConfig governs a fetch run.
type FetchConfig struct {
	MaxPages        int     `mapstructure:"max_pages"`
	Concurrency     int     `mapstructure:"concurrency"`
	RateInterval    float64 `mapstructure:"rate_interval"`
	PerDomainMax    int     `mapstructure:"per_domain_max"`
	TimeoutSeconds  int     `mapstructure:"timeout_seconds"`
	MaxRetries      int     `mapstructure:"max_retries"`
	UserAgent       string  `mapstructure:"user_agent"`
	SectionMaxLinks int     `mapstructure:"section_max_links"`
}

// QueueConfig selects the message queue provider.
type QueueConfig struct {
	Provider          string `mapstructure:"provider"`
	ProjectID         string `mapstructure:"project_id"`
	RawTopic          string `mapstructure:"raw_topic"`
	RawSubscription   string `mapstructure:"raw_subscription"`
	NotesTopic        string `mapstructure:"notes_topic"`
	NotesSubscription string `mapstructure:"notes_subscription"`
}

// StoreConfig controls the normalizer stage and the document store.
type StoreConfig struct {
	Provider     string `mapstructure:"provider"`
	DSN          string `mapstructure:"dsn"`
	Table        string `mapstructure:"table"`
	Workers      int    `mapstructure:"workers"`
	MinBodyChars int    `mapstructure:"min_body_chars"`
}

// ArchiveConfig selects the optional raw-page blob archive.
type ArchiveConfig struct {
	Provider  string `mapstructure:"provider"`
	GCSBucket string `mapstructure:"gcs_bucket"`
	LocalDir  string `mapstructure:"local_dir"`
}

// IndexConfig locates the search index.
type IndexConfig struct {
	Path     string `mapstructure:"path"`
	InMemory bool   `mapstructure:"in_memory"`
}

// EmbedConfig points at the embedding service.
type EmbedConfig struct {
	Host       string `mapstructure:"host"`
	Model      string `mapstructure:"model"`
	Dimensions int    `mapstructure:"dimensions"`
}

// IndexerConfig governs the change-note consumer.
type IndexerConfig struct {
	Workers    int `mapstructure:"workers"`
	MaxRetries int `mapstructure:"max_retries"`
}

// SearchConfig tunes hybrid query fusion.
type SearchConfig struct {
	Alpha    float64 `mapstructure:"alpha"`
	PoolSize int     `mapstructure:"pool_size"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("NEWSFORGE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("logging.development", true)
	v.SetDefault("seed.file", "seeds.yml")
	v.SetDefault("fetch.max_pages", 100)
	v.SetDefault("fetch.concurrency", 10)
	v.SetDefault("fetch.rate_interval", 2.0)
	v.SetDefault("fetch.per_domain_max", 2)
	v.SetDefault("fetch.timeout_seconds", 10)
	v.SetDefault("fetch.max_retries", 3)
	v.SetDefault("fetch.user_agent", "newsforge/0.1")
	v.SetDefault("fetch.section_max_links", 50)
	v.SetDefault("queue.provider", "memory")
	v.SetDefault("queue.raw_topic", "raw-pages")
	v.SetDefault("queue.raw_subscription", "raw-pages-store")
	v.SetDefault("queue.notes_topic", "article-changes")
	v.SetDefault("queue.notes_subscription", "article-changes-indexer")
	v.SetDefault("store.provider", "memory")
	v.SetDefault("store.table", "articles")
	v.SetDefault("store.workers", 4)
	v.SetDefault("store.min_body_chars", 120)
	v.SetDefault("archive.provider", "none")
	v.SetDefault("index.path", "data/index")
	v.SetDefault("index.in_memory", false)
	v.SetDefault("embed.model", "all-minilm")
	v.SetDefault("embed.dimensions", 384)
	v.SetDefault("indexer.workers", 2)
	v.SetDefault("indexer.max_retries", 3)
	v.SetDefault("search.alpha", 0.5)
	v.SetDefault("search.pool_size", 50)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if c.Fetch.Concurrency <= 0 {
		return fmt.Errorf("fetch.concurrency must be > 0")
	}
	if c.Fetch.MaxPages <= 0 {
		return fmt.Errorf("fetch.max_pages must be > 0")
	}
	if c.Fetch.RateInterval < 0 {
		return fmt.Errorf("fetch.rate_interval must be >= 0")
	}
	if c.Fetch.PerDomainMax <= 0 {
		return fmt.Errorf("fetch.per_domain_max must be > 0")
	}
	if c.Search.Alpha < 0 || c.Search.Alpha > 1 {
		return fmt.Errorf("search.alpha must be in [0,1]")
	}
	if c.Search.PoolSize <= 0 {
		return fmt.Errorf("search.pool_size must be > 0")
	}
	if c.Queue.Provider == "pubsub" && (c.Queue.ProjectID == "" || c.Queue.RawTopic == "") {
		return fmt.Errorf("queue.project_id and queue.raw_topic are required when queue.provider is pubsub")
	}
	if c.Store.Provider == "postgres" && c.Store.DSN == "" {
		return fmt.Errorf("store.dsn is required when store.provider is postgres")
	}
	if c.Archive.Provider == "gcs" && c.Archive.GCSBucket == "" {
		return fmt.Errorf("archive.gcs_bucket is required when archive.provider is gcs")
	}
	return nil
}

// RateInterval converts the fetch rate interval into a duration.
func (c Config) RateInterval() time.Duration {
	return time.Duration(c.Fetch.RateInterval * float64(time.Second))
}

// FetchTimeout converts the fetch timeout into a duration.
func (c Config) FetchTimeout() time.Duration {
	return time.Duration(c.Fetch.TimeoutSeconds) * time.Second
}
