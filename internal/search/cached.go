package search

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"runtime"
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"

	"github.com/semdex/semdex/internal/store"
	"github.com/semdex/semdex/pkg/types"
)

// CacheConfig tunes the caching decorator.
type CacheConfig struct {
	MaxEntries      int           // result cache capacity; default 256
	TTL             time.Duration // result entry lifetime; default 60s
	SnapshotRefresh time.Duration // embedding snapshot max age; default 300s
	Shards          int           // scoring workers; default min(4, GOMAXPROCS)
}

// DefaultCacheConfig returns the standard cache tuning.
func DefaultCacheConfig() CacheConfig {
	return CacheConfig{
		MaxEntries:      256,
		TTL:             60 * time.Second,
		SnapshotRefresh: 300 * time.Second,
		Shards:          defaultShards(),
	}
}

func defaultShards() int {
	n := runtime.GOMAXPROCS(0)
	if n > 4 {
		n = 4
	}
	return n
}

type resultEntry struct {
	hits     []types.SearchHit
	inserted time.Time
}

// CachedEngine decorates Engine with a TTL+LRU result cache, an in-memory
// embedding snapshot refreshed on age, and sharded similarity scoring.
// Entries expire TTL after insertion regardless of access; lookups refresh
// LRU recency only.
type CachedEngine struct {
	engine *Engine
	store  store.Store
	cfg    CacheConfig
	log    *zap.Logger

	results *lru.Cache[string, resultEntry]

	mu       sync.RWMutex
	rows     []store.EmbeddingRow
	loadedAt time.Time
}

// NewCachedEngine wraps an engine with result caching and snapshot scoring.
func NewCachedEngine(engine *Engine, st store.Store, cfg CacheConfig, log *zap.Logger) *CachedEngine {
	if log == nil {
		log = zap.NewNop()
	}
	if cfg.MaxEntries <= 0 {
		cfg.MaxEntries = 256
	}
	if cfg.TTL <= 0 {
		cfg.TTL = 60 * time.Second
	}
	if cfg.SnapshotRefresh <= 0 {
		cfg.SnapshotRefresh = 300 * time.Second
	}
	if cfg.Shards <= 0 {
		cfg.Shards = defaultShards()
	}
	results, _ := lru.New[string, resultEntry](cfg.MaxEntries)
	return &CachedEngine{engine: engine, store: st, cfg: cfg, log: log, results: results}
}

// Invalidate drops the embedding snapshot and all cached results. Call after
// the index changes underneath the engine.
func (c *CachedEngine) Invalidate() {
	c.mu.Lock()
	c.rows = nil
	c.loadedAt = time.Time{}
	c.mu.Unlock()
	c.results.Purge()
}

// Search is Engine.Search over the embedding snapshot, with result caching
// and sharded scoring.
func (c *CachedEngine) Search(ctx context.Context, query string, opts Options) ([]types.SearchHit, error) {
	if query == "" || opts.TopK <= 0 {
		return []types.SearchHit{}, nil
	}
	key := cacheKey("search", query, opts.TopK, opts.Threshold, opts.Metric, opts.FileTypes, opts.FilePaths)
	if hits, ok := c.cachedResult(key); ok {
		return hits, nil
	}

	hits, err := c.vectorSearch(ctx, query, opts)
	if err != nil {
		return nil, err
	}
	c.storeResult(key, hits)
	return hits, nil
}

// KeywordSearch is Engine.KeywordSearch with result caching.
func (c *CachedEngine) KeywordSearch(ctx context.Context, query string, opts Options) ([]types.SearchHit, error) {
	if query == "" || opts.TopK <= 0 {
		return []types.SearchHit{}, nil
	}
	key := cacheKey("keyword", query, opts.TopK, 0.0, "", opts.FileTypes, nil)
	if hits, ok := c.cachedResult(key); ok {
		return hits, nil
	}

	hits, err := c.engine.KeywordSearch(ctx, query, opts)
	if err != nil {
		return nil, err
	}
	c.storeResult(key, hits)
	return hits, nil
}

// HybridSearch runs the snapshot-backed vector arm and the keyword arm
// concurrently, merges with normalized weights, and caches the merged list.
func (c *CachedEngine) HybridSearch(ctx context.Context, query string, opts HybridOptions) ([]types.SearchHit, error) {
	if query == "" || opts.TopK <= 0 {
		return []types.SearchHit{}, nil
	}
	topK := clampTopK(opts.TopK)
	vw, kw := NormalizeWeights(opts.VectorWeight, opts.KeywordWeight)

	key := cacheKey("hybrid", query, topK, opts.Threshold, fmt.Sprintf("%.4f:%.4f:%t", vw, kw, opts.Rerank), opts.FileTypes, opts.FilePaths)
	if hits, ok := c.cachedResult(key); ok {
		return hits, nil
	}

	armOpts := opts.Options
	armOpts.TopK = 2 * topK

	type armResult struct {
		hits []types.SearchHit
		err  error
	}
	vecCh := make(chan armResult, 1)
	keyCh := make(chan armResult, 1)

	go func() {
		hits, err := c.vectorSearch(ctx, query, armOpts)
		vecCh <- armResult{hits, err}
	}()
	go func() {
		hits, err := c.engine.KeywordSearch(ctx, query, armOpts)
		keyCh <- armResult{hits, err}
	}()

	vec, keyw := <-vecCh, <-keyCh
	if vec.err != nil && keyw.err != nil {
		return nil, vec.err
	}
	if vec.err != nil {
		c.log.Warn("vector arm failed, degrading to keyword-only", zap.Error(vec.err))
		vec.hits = nil
	}
	if keyw.err != nil {
		c.log.Warn("keyword arm failed, degrading to vector-only", zap.Error(keyw.err))
		keyw.hits = nil
	}

	hits := MergeHybrid(vec.hits, keyw.hits, vw, kw)
	if opts.Rerank {
		hits = c.engine.Rerank(query, hits, 0)
	}
	if len(hits) > topK {
		hits = hits[:topK]
	}
	c.storeResult(key, hits)
	return hits, nil
}

// Rerank delegates to the wrapped engine; rerank output is query-shaped and
// never cached.
func (c *CachedEngine) Rerank(query string, hits []types.SearchHit, topK int) []types.SearchHit {
	return c.engine.Rerank(query, hits, topK)
}

// vectorSearch scores the snapshot against the embedded query across a
// bounded set of shard workers, merging shard top-k sets.
func (c *CachedEngine) vectorSearch(ctx context.Context, query string, opts Options) ([]types.SearchHit, error) {
	topK := clampTopK(opts.TopK)

	queryVec, err := c.engine.provider.Embed(ctx, query)
	if err != nil {
		return nil, types.Modelf(err, "failed to embed query")
	}

	rows, err := c.snapshotRows(ctx)
	if err != nil {
		return nil, err
	}
	// The snapshot is unfiltered, so it answers "any embeddings at all"
	// directly; a filter matching nothing is an empty result, not an
	// unavailable index.
	if len(rows) == 0 {
		return nil, types.Unavailablef("no embeddings indexed; run the indexer first")
	}
	rows = filterRows(rows, opts.FileTypes, opts.FilePaths)
	if len(rows) == 0 {
		return []types.SearchHit{}, nil
	}

	metric := c.engine.resolveMetric(opts.Metric)

	shards := c.cfg.Shards
	if shards > len(rows) {
		shards = len(rows)
	}
	if shards <= 1 {
		return ScoreRows(rows, queryVec, metric, opts.Threshold, topK), nil
	}

	// Each shard keeps its own bounded top-k; merging k*shards candidates
	// is cheap compared to sorting the full set.
	shardHits := make([][]types.SearchHit, shards)
	var wg sync.WaitGroup
	per := (len(rows) + shards - 1) / shards
	for s := 0; s < shards; s++ {
		start := s * per
		end := start + per
		if end > len(rows) {
			end = len(rows)
		}
		wg.Add(1)
		go func(s int, part []store.EmbeddingRow) {
			defer wg.Done()
			shardHits[s] = ScoreRows(part, queryVec, metric, opts.Threshold, topK)
		}(s, rows[start:end])
	}
	wg.Wait()

	merged := newTopCollector(topK)
	for _, part := range shardHits {
		for _, h := range part {
			merged.add(h)
		}
	}
	return merged.results(), nil
}

// snapshotRows returns the in-memory embedding set, reloading it from the
// store only when older than the refresh interval.
func (c *CachedEngine) snapshotRows(ctx context.Context) ([]store.EmbeddingRow, error) {
	c.mu.RLock()
	if c.rows != nil && time.Since(c.loadedAt) < c.cfg.SnapshotRefresh {
		rows := c.rows
		c.mu.RUnlock()
		return rows, nil
	}
	c.mu.RUnlock()

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.rows != nil && time.Since(c.loadedAt) < c.cfg.SnapshotRefresh {
		return c.rows, nil
	}

	rows, err := c.store.GetEmbeddings(ctx, nil, nil)
	if err != nil {
		return nil, err
	}
	c.rows = rows
	c.loadedAt = time.Now()
	c.log.Debug("embedding snapshot refreshed", zap.Int("rows", len(rows)))
	return rows, nil
}

// filterRows applies file-type and file-path filters in memory; the snapshot
// always holds the unfiltered set.
func filterRows(rows []store.EmbeddingRow, fileTypes, filePaths []string) []store.EmbeddingRow {
	if len(fileTypes) == 0 && len(filePaths) == 0 {
		return rows
	}
	typeSet := make(map[string]struct{}, len(fileTypes))
	for _, ft := range fileTypes {
		typeSet[strings.ToLower(ft)] = struct{}{}
	}
	pathSet := make(map[string]struct{}, len(filePaths))
	for _, p := range filePaths {
		pathSet[p] = struct{}{}
	}

	out := make([]store.EmbeddingRow, 0, len(rows))
	for _, row := range rows {
		if len(typeSet) > 0 {
			if _, ok := typeSet[strings.ToLower(row.FileType)]; !ok {
				continue
			}
		}
		if len(pathSet) > 0 {
			if _, ok := pathSet[row.FilePath]; !ok {
				continue
			}
		}
		out = append(out, row)
	}
	return out
}

func (c *CachedEngine) cachedResult(key string) ([]types.SearchHit, bool) {
	entry, ok := c.results.Get(key)
	if !ok {
		return nil, false
	}
	if time.Since(entry.inserted) > c.cfg.TTL {
		c.results.Remove(key)
		return nil, false
	}
	return copyHits(entry.hits), true
}

func (c *CachedEngine) storeResult(key string, hits []types.SearchHit) {
	c.results.Add(key, resultEntry{hits: copyHits(hits), inserted: time.Now()})
}

// copyHits deep-copies so cached values are never aliased by callers that
// mutate their results.
func copyHits(hits []types.SearchHit) []types.SearchHit {
	out := make([]types.SearchHit, len(hits))
	copy(out, hits)
	for i := range out {
		if out[i].Metadata != nil {
			md := make(map[string]string, len(out[i].Metadata))
			for k, v := range out[i].Metadata {
				md[k] = v
			}
			out[i].Metadata = md
		}
	}
	return out
}

// cacheKey hashes the query and every ranking-relevant parameter so distinct
// requests never collide.
func cacheKey(mode, query string, topK int, threshold float64, metric string, fileTypes, filePaths []string) string {
	h := sha256.New()
	fmt.Fprintf(h, "%s\x00%s\x00%d\x00%.6f\x00%s\x00%s\x00%s",
		mode, query, topK, threshold, metric,
		strings.Join(fileTypes, ","), strings.Join(filePaths, ","))
	return hex.EncodeToString(h.Sum(nil))
}
