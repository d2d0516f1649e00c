package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "local", cfg.Embedding.Backend)
	assert.Equal(t, 1000, cfg.Indexing.ChunkWindow)
	assert.Equal(t, 200, cfg.Indexing.ChunkOverlap)
	assert.Equal(t, 0.7, cfg.Search.VectorWeight)
	assert.Equal(t, 0.3, cfg.Search.KeywordWeight)
	assert.Equal(t, 300*time.Second, cfg.Search.SnapshotRefresh.Std())
	assert.Equal(t, 0.2, cfg.Search.Rerank.ExactMatchBonus)
	assert.True(t, *cfg.Indexing.EmbeddingsEnabled)
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
database:
  path: /tmp/semdex-test.db
embedding:
  backend: ollama
  model: custom-model
indexing:
  chunk_window: 500
  chunk_overlap: 50
search:
  vector_weight: 0.6
  keyword_weight: 0.4
  cache_ttl: 5s
  rerank:
    exact_match_bonus: 0.25
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/tmp/semdex-test.db", cfg.Database.Path)
	assert.Equal(t, "ollama", cfg.Embedding.Backend)
	assert.Equal(t, "custom-model", cfg.Embedding.Model)
	assert.Equal(t, 500, cfg.Indexing.ChunkWindow)
	assert.Equal(t, 50, cfg.Indexing.ChunkOverlap)
	assert.Equal(t, 0.6, cfg.Search.VectorWeight)
	assert.Equal(t, 5*time.Second, cfg.Search.CacheTTL.Std())
	assert.Equal(t, 0.25, cfg.Search.Rerank.ExactMatchBonus)

	// Unset fields still take defaults.
	assert.Equal(t, 512, cfg.Embedding.MaxTokens)
	assert.Equal(t, 10, cfg.Search.DefaultTopK)
}

func TestLoadInvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("database: [broken"), 0o644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestExpandPath(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(home, ".semdex/index.db"), expandPath("~/.semdex/index.db"))
	assert.Equal(t, "/absolute/path", expandPath("/absolute/path"))
	assert.Equal(t, home, expandPath("~"))
}
