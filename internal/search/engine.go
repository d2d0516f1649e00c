// Package search ranks indexed chunks against queries: vector similarity,
// keyword relevance, and a weighted hybrid of the two with heuristic
// reranking.
package search

import (
	"context"
	"math"

	"go.uber.org/zap"

	"github.com/semdex/semdex/internal/embedding"
	"github.com/semdex/semdex/internal/store"
	"github.com/semdex/semdex/pkg/types"
)

// Similarity metrics.
const (
	MetricCosine    = "cosine"
	MetricEuclidean = "euclidean"
)

// Result list bounds and default hybrid weights.
const (
	MaxTopK              = 50
	DefaultVectorWeight  = 0.7
	DefaultKeywordWeight = 0.3
)

// Options parameterizes a single search call. Zero-value fields take
// defaults; TopK above MaxTopK is clamped.
type Options struct {
	TopK      int
	Threshold float64
	FileTypes []string
	FilePaths []string
	Metric    string
}

// HybridOptions extends Options with merge weights and the rerank switch.
type HybridOptions struct {
	Options
	VectorWeight  float64
	KeywordWeight float64
	Rerank        bool
}

// Engine scores chunks against queries by reading embeddings and chunk text
// through the store. It never writes persisted state.
type Engine struct {
	store    store.Store
	provider embedding.Provider
	rerank   RerankConfig
	log      *zap.Logger
}

// NewEngine creates a search engine over the given store and embedding
// provider.
func NewEngine(st store.Store, provider embedding.Provider, rerank RerankConfig, log *zap.Logger) *Engine {
	if log == nil {
		log = zap.NewNop()
	}
	return &Engine{store: st, provider: provider, rerank: rerank, log: log}
}

// clampTopK bounds top-k to at most MaxTopK. Non-positive values are the
// caller's signal for "no work" and are handled before this is called.
func clampTopK(k int) int {
	if k > MaxTopK {
		return MaxTopK
	}
	return k
}

// Search embeds the query and ranks all stored embeddings by similarity,
// keeping hits at or above threshold. Unknown metrics fall back to cosine
// with a logged warning. An empty query or non-positive top-k returns an
// empty result without touching the model or the store.
func (e *Engine) Search(ctx context.Context, query string, opts Options) ([]types.SearchHit, error) {
	if query == "" || opts.TopK <= 0 {
		return []types.SearchHit{}, nil
	}
	topK := clampTopK(opts.TopK)

	queryVec, err := e.provider.Embed(ctx, query)
	if err != nil {
		return nil, types.Modelf(err, "failed to embed query")
	}

	rows, err := e.store.GetEmbeddings(ctx, opts.FileTypes, opts.FilePaths)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		// Unavailable means the index holds no embeddings at all. A
		// filter that matches nothing on a live index is just an empty
		// result.
		if len(opts.FileTypes) > 0 || len(opts.FilePaths) > 0 {
			stats, serr := e.store.Stats(ctx)
			if serr != nil {
				return nil, serr
			}
			if stats.TotalEmbeddings > 0 {
				return []types.SearchHit{}, nil
			}
		}
		return nil, types.Unavailablef("no embeddings indexed; run the indexer first")
	}

	return ScoreRows(rows, queryVec, e.resolveMetric(opts.Metric), opts.Threshold, topK), nil
}

// KeywordSearch extracts terms from the query and ranks chunks by the
// fraction of terms they contain.
func (e *Engine) KeywordSearch(ctx context.Context, query string, opts Options) ([]types.SearchHit, error) {
	if query == "" || opts.TopK <= 0 {
		return []types.SearchHit{}, nil
	}
	topK := clampTopK(opts.TopK)

	terms := ExtractTerms(query)
	if len(terms) == 0 {
		return []types.SearchHit{}, nil
	}

	matches, err := e.store.SearchKeyword(ctx, terms, topK, opts.FileTypes)
	if err != nil {
		return nil, err
	}

	hits := make([]types.SearchHit, 0, len(matches))
	for _, m := range matches {
		hits = append(hits, types.SearchHit{
			ChunkID:    m.ChunkID,
			FileID:     m.FileID,
			FilePath:   m.FilePath,
			Content:    m.Content,
			Score:      m.Relevance,
			ChunkIndex: m.ChunkIndex,
			StartPos:   m.StartPos,
			EndPos:     m.EndPos,
			FileType:   m.FileType,
			MatchType:  types.MatchKeyword,
		})
	}
	return hits, nil
}

// HybridSearch runs the vector and keyword arms concurrently, each over
// 2x top-k candidates, and merges by chunk ID with normalized weights. A
// failed vector arm degrades to keyword-only results with a logged warning
// rather than failing the query; the reverse holds for the keyword arm.
func (e *Engine) HybridSearch(ctx context.Context, query string, opts HybridOptions) ([]types.SearchHit, error) {
	if query == "" || opts.TopK <= 0 {
		return []types.SearchHit{}, nil
	}
	topK := clampTopK(opts.TopK)
	vw, kw := NormalizeWeights(opts.VectorWeight, opts.KeywordWeight)

	armOpts := opts.Options
	armOpts.TopK = 2 * topK

	type armResult struct {
		hits []types.SearchHit
		err  error
	}
	vecCh := make(chan armResult, 1)
	keyCh := make(chan armResult, 1)

	go func() {
		hits, err := e.Search(ctx, query, armOpts)
		vecCh <- armResult{hits, err}
	}()
	go func() {
		hits, err := e.KeywordSearch(ctx, query, armOpts)
		keyCh <- armResult{hits, err}
	}()

	vec, key := <-vecCh, <-keyCh
	if vec.err != nil && key.err != nil {
		return nil, vec.err
	}
	if vec.err != nil {
		e.log.Warn("vector arm failed, degrading to keyword-only", zap.Error(vec.err))
		vec.hits = nil
	}
	if key.err != nil {
		e.log.Warn("keyword arm failed, degrading to vector-only", zap.Error(key.err))
		key.hits = nil
	}

	hits := MergeHybrid(vec.hits, key.hits, vw, kw)
	if opts.Rerank {
		hits = e.Rerank(query, hits, 0)
	}
	if len(hits) > topK {
		hits = hits[:topK]
	}
	return hits, nil
}

// NormalizeWeights scales the two weights to sum to 1, falling back to the
// 0.7/0.3 default when both are effectively zero.
func NormalizeWeights(vectorWeight, keywordWeight float64) (float64, float64) {
	sum := vectorWeight + keywordWeight
	if math.Abs(sum) < 1e-9 {
		return DefaultVectorWeight, DefaultKeywordWeight
	}
	return vectorWeight / sum, keywordWeight / sum
}

// MergeHybrid combines the two arms by chunk ID, summing weighted scores. A
// chunk present in only one arm keeps just that arm's weighted contribution.
func MergeHybrid(vector, keyword []types.SearchHit, vw, kw float64) []types.SearchHit {
	merged := make(map[int64]types.SearchHit, len(vector)+len(keyword))
	for _, h := range vector {
		h.Score = clampScore(h.Score) * vw
		h.MatchType = types.MatchHybrid
		merged[h.ChunkID] = h
	}
	for _, h := range keyword {
		weighted := clampScore(h.Score) * kw
		if prev, ok := merged[h.ChunkID]; ok {
			prev.Score += weighted
			merged[h.ChunkID] = prev
			continue
		}
		h.Score = weighted
		h.MatchType = types.MatchHybrid
		merged[h.ChunkID] = h
	}

	hits := make([]types.SearchHit, 0, len(merged))
	for _, h := range merged {
		h.Score = clampScore(h.Score)
		hits = append(hits, h)
	}
	sortHits(hits)
	return hits
}

// ScoreRows ranks embedding rows against a query vector, keeping scores at
// or above threshold and retaining only the top k via a bounded heap.
func ScoreRows(rows []store.EmbeddingRow, queryVec []float32, metric string, threshold float64, topK int) []types.SearchHit {
	collector := newTopCollector(topK)
	for i := range rows {
		score := similarity(metric, queryVec, rows[i].Vector)
		if score < threshold {
			continue
		}
		collector.add(hitFromRow(&rows[i], score))
	}
	return collector.results()
}

func hitFromRow(row *store.EmbeddingRow, score float64) types.SearchHit {
	return types.SearchHit{
		ChunkID:    row.ChunkID,
		FileID:     row.FileID,
		FilePath:   row.FilePath,
		Content:    row.Content,
		Score:      clampScore(score),
		ChunkIndex: row.ChunkIndex,
		StartPos:   row.StartPos,
		EndPos:     row.EndPos,
		FileType:   row.FileType,
		MatchType:  types.MatchVector,
	}
}

// resolveMetric maps a metric name to a supported one, warning once per call
// on unknown values instead of erroring.
func (e *Engine) resolveMetric(metric string) string {
	switch metric {
	case "", MetricCosine:
		return MetricCosine
	case MetricEuclidean:
		return MetricEuclidean
	default:
		e.log.Warn("unsupported similarity metric, falling back to cosine", zap.String("metric", metric))
		return MetricCosine
	}
}

func similarity(metric string, a, b []float32) float64 {
	if metric == MetricEuclidean {
		return embedding.EuclideanSimilarity(a, b)
	}
	return embedding.CosineSimilarity(a, b)
}
