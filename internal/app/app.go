// Package app wires the storage, embedding, indexing, and search components
// into one explicitly-constructed application. Callers hold an App instance;
// there is no package-level singleton state.
package app

import (
	"context"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/semdex/semdex/internal/chunk"
	"github.com/semdex/semdex/internal/config"
	"github.com/semdex/semdex/internal/embedding"
	"github.com/semdex/semdex/internal/indexer"
	"github.com/semdex/semdex/internal/pathguard"
	"github.com/semdex/semdex/internal/search"
	"github.com/semdex/semdex/internal/store"
	"github.com/semdex/semdex/pkg/types"
)

// App owns every long-lived component and their shutdown order.
type App struct {
	Config   *config.Config
	Log      *zap.Logger
	Store    store.Store
	Provider embedding.Provider
	Guard    *pathguard.Guard
	Indexer  *indexer.Indexer
	Engine   *search.CachedEngine
}

// New opens the database, builds the embedding provider, loads the persisted
// directory settings into the path guard, and wires the indexer and search
// engine on top.
func New(ctx context.Context, cfg *config.Config, log *zap.Logger) (*App, error) {
	if log == nil {
		log = zap.NewNop()
	}

	if err := os.MkdirAll(filepath.Dir(cfg.Database.Path), 0o755); err != nil {
		return nil, types.Storagef(err, "failed to create database directory")
	}
	st, err := store.Open(cfg.Database.Path)
	if err != nil {
		return nil, err
	}

	provider, err := embedding.New(embedding.Config{
		Backend:   cfg.Embedding.Backend,
		Model:     cfg.Embedding.Model,
		APIKey:    cfg.Embedding.APIKey,
		BaseURL:   cfg.Embedding.BaseURL,
		MaxTokens: cfg.Embedding.MaxTokens,
		Normalize: *cfg.Embedding.Normalize,
		CacheSize: cfg.Embedding.CacheSize,
		BatchSize: cfg.Embedding.BatchSize,
	})
	if err != nil {
		_ = st.Close()
		return nil, err
	}

	dirs, err := st.GetDirectorySettings(ctx)
	if err != nil {
		_ = st.Close()
		return nil, err
	}
	guard := pathguard.New(dirs.AllowedDirectories, dirs.ExcludedDirectories)

	chunker, err := chunk.New(cfg.Indexing.ChunkWindow, cfg.Indexing.ChunkOverlap)
	if err != nil {
		_ = st.Close()
		return nil, types.Validationf("invalid chunking config: %v", err)
	}

	idx := indexer.New(guard, st, chunker, provider, indexer.Config{
		Workers:            cfg.Indexing.Workers,
		EmbeddingBatchSize: cfg.Embedding.BatchSize,
		EmbeddingsEnabled:  *cfg.Indexing.EmbeddingsEnabled,
		HashCacheSize:      cfg.Indexing.HashCacheSize,
		MetadataCacheSize:  cfg.Indexing.MetadataCacheSize,
		EmbeddingCacheSize: cfg.Indexing.EmbeddingCacheSize,
	}, log)

	engine := search.NewEngine(st, provider, search.RerankConfig{
		ExactMatchBonus:  cfg.Search.Rerank.ExactMatchBonus,
		PerTermIncrement: cfg.Search.Rerank.PerTermIncrement,
		TermMatchCap:     cfg.Search.Rerank.TermMatchCap,
		PositionBonus:    cfg.Search.Rerank.PositionBonus,
		FileTypeBonus:    cfg.Search.Rerank.FileTypeBonus,
		DocFileTypes:     cfg.Search.Rerank.DocFileTypes,
	}, log)
	cached := search.NewCachedEngine(engine, st, search.CacheConfig{
		MaxEntries:      cfg.Search.CacheEntries,
		TTL:             cfg.Search.CacheTTL.Std(),
		SnapshotRefresh: cfg.Search.SnapshotRefresh.Std(),
		Shards:          cfg.Search.Shards,
	}, log)

	return &App{
		Config:   cfg,
		Log:      log,
		Store:    st,
		Provider: provider,
		Guard:    guard,
		Indexer:  idx,
		Engine:   cached,
	}, nil
}

// SetDirectorySettings persists the allow/deny lists and swaps the path
// guard so the change takes effect without a restart.
func (a *App) SetDirectorySettings(ctx context.Context, settings *types.DirectorySettings) error {
	if err := a.Store.SetDirectorySettings(ctx, settings); err != nil {
		return err
	}
	a.Guard.SetAllowed(settings.AllowedDirectories)
	a.Guard.SetExcluded(settings.ExcludedDirectories)
	return nil
}

// InvalidateSearch drops query-side caches after index mutations.
func (a *App) InvalidateSearch() {
	a.Engine.Invalidate()
	a.Indexer.ClearCaches()
}

// Close releases the model and the database, in that order.
func (a *App) Close() error {
	var first error
	if a.Provider != nil {
		if err := a.Provider.Close(); err != nil {
			first = err
		}
	}
	if a.Store != nil {
		if err := a.Store.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
