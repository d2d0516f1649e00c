// Package config loads the YAML configuration file and applies defaults for
// every tunable the engine exposes.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the full application configuration.
type Config struct {
	Database  DatabaseConfig  `yaml:"database"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Indexing  IndexingConfig  `yaml:"indexing"`
	Search    SearchConfig    `yaml:"search"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// DatabaseConfig locates the SQLite index database.
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// EmbeddingConfig selects and tunes the embedding backend.
type EmbeddingConfig struct {
	Backend   string `yaml:"backend"` // openai | ollama | local
	Model     string `yaml:"model"`
	APIKey    string `yaml:"api_key"`
	BaseURL   string `yaml:"base_url"`
	MaxTokens int    `yaml:"max_tokens"`
	Normalize *bool  `yaml:"normalize"`
	CacheSize int    `yaml:"cache_size"`
	BatchSize int    `yaml:"batch_size"`
}

// IndexingConfig tunes the ingestion pipeline.
type IndexingConfig struct {
	ChunkWindow        int   `yaml:"chunk_window"`
	ChunkOverlap       int   `yaml:"chunk_overlap"`
	Workers            int   `yaml:"workers"`
	EmbeddingsEnabled  *bool `yaml:"embeddings_enabled"`
	HashCacheSize      int   `yaml:"hash_cache_size"`
	MetadataCacheSize  int   `yaml:"metadata_cache_size"`
	EmbeddingCacheSize int   `yaml:"embedding_cache_size"`
}

// Duration wraps time.Duration so YAML values like "30s" or "5m" parse.
// Bare integers are treated as seconds.
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err == nil {
		parsed, perr := time.ParseDuration(s)
		if perr != nil {
			return fmt.Errorf("invalid duration %q: %w", s, perr)
		}
		*d = Duration(parsed)
		return nil
	}
	var n int64
	if err := value.Decode(&n); err != nil {
		return fmt.Errorf("invalid duration value: %w", err)
	}
	*d = Duration(time.Duration(n) * time.Second)
	return nil
}

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// SearchConfig tunes ranking and the query-side caches.
type SearchConfig struct {
	DefaultTopK     int           `yaml:"default_top_k"`
	Threshold       float64       `yaml:"threshold"`
	VectorWeight    float64       `yaml:"vector_weight"`
	KeywordWeight   float64       `yaml:"keyword_weight"`
	Metric          string        `yaml:"metric"`
	CacheEntries    int           `yaml:"cache_entries"`
	CacheTTL        Duration      `yaml:"cache_ttl"`
	SnapshotRefresh Duration      `yaml:"snapshot_refresh"`
	Shards          int           `yaml:"shards"`
	Rerank          RerankWeights `yaml:"rerank"`
}

// RerankWeights exposes the rerank bonuses as configuration rather than
// hard-coded literals.
type RerankWeights struct {
	ExactMatchBonus  float64  `yaml:"exact_match_bonus"`
	PerTermIncrement float64  `yaml:"per_term_increment"`
	TermMatchCap     float64  `yaml:"term_match_cap"`
	PositionBonus    float64  `yaml:"position_bonus"`
	FileTypeBonus    float64  `yaml:"file_type_bonus"`
	DocFileTypes     []string `yaml:"doc_file_types"`
}

// LoggingConfig controls log output.
type LoggingConfig struct {
	Debug bool `yaml:"debug"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	cfg := &Config{}
	cfg.ApplyDefaults()
	return cfg
}

// Load reads a YAML config file and fills in defaults for unset fields. A
// missing file yields the defaults, not an error.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if path != "" {
		data, err := os.ReadFile(expandPath(path))
		if err != nil {
			if os.IsNotExist(err) {
				cfg.ApplyDefaults()
				return cfg, nil
			}
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	}
	cfg.ApplyDefaults()
	return cfg, nil
}

// ApplyDefaults fills every zero-valued tunable.
func (c *Config) ApplyDefaults() {
	if c.Database.Path == "" {
		c.Database.Path = expandPath("~/.semdex/index.db")
	} else {
		c.Database.Path = expandPath(c.Database.Path)
	}

	if c.Embedding.Backend == "" {
		c.Embedding.Backend = "local"
	}
	if c.Embedding.MaxTokens <= 0 {
		c.Embedding.MaxTokens = 512
	}
	if c.Embedding.Normalize == nil {
		t := true
		c.Embedding.Normalize = &t
	}
	if c.Embedding.CacheSize <= 0 {
		c.Embedding.CacheSize = 4096
	}
	if c.Embedding.BatchSize <= 0 {
		c.Embedding.BatchSize = 32
	}

	if c.Indexing.ChunkWindow <= 0 {
		c.Indexing.ChunkWindow = 1000
	}
	if c.Indexing.ChunkOverlap <= 0 {
		c.Indexing.ChunkOverlap = 200
	}
	if c.Indexing.Workers <= 0 {
		c.Indexing.Workers = 4
	}
	if c.Indexing.EmbeddingsEnabled == nil {
		t := true
		c.Indexing.EmbeddingsEnabled = &t
	}
	if c.Indexing.HashCacheSize <= 0 {
		c.Indexing.HashCacheSize = 2048
	}
	if c.Indexing.MetadataCacheSize <= 0 {
		c.Indexing.MetadataCacheSize = 2048
	}
	if c.Indexing.EmbeddingCacheSize <= 0 {
		c.Indexing.EmbeddingCacheSize = 8192
	}

	if c.Search.DefaultTopK <= 0 {
		c.Search.DefaultTopK = 10
	}
	if c.Search.VectorWeight == 0 && c.Search.KeywordWeight == 0 {
		c.Search.VectorWeight = 0.7
		c.Search.KeywordWeight = 0.3
	}
	if c.Search.Metric == "" {
		c.Search.Metric = "cosine"
	}
	if c.Search.CacheEntries <= 0 {
		c.Search.CacheEntries = 256
	}
	if c.Search.CacheTTL <= 0 {
		c.Search.CacheTTL = Duration(60 * time.Second)
	}
	if c.Search.SnapshotRefresh <= 0 {
		c.Search.SnapshotRefresh = Duration(300 * time.Second)
	}
	if c.Search.Shards <= 0 {
		c.Search.Shards = 4
	}

	r := &c.Search.Rerank
	if r.ExactMatchBonus == 0 {
		r.ExactMatchBonus = 0.2
	}
	if r.PerTermIncrement == 0 {
		r.PerTermIncrement = 0.1
	}
	if r.TermMatchCap == 0 {
		r.TermMatchCap = 0.3
	}
	if r.PositionBonus == 0 {
		r.PositionBonus = 0.1
	}
	if r.FileTypeBonus == 0 {
		r.FileTypeBonus = 0.05
	}
	if len(r.DocFileTypes) == 0 {
		r.DocFileTypes = []string{"md", "txt", "rst", "adoc"}
	}
}

// expandPath resolves a leading ~ against the user's home directory.
func expandPath(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err == nil {
			return filepath.Join(home, strings.TrimPrefix(path, "~"))
		}
	}
	return path
}
