// Package indexer coordinates the ingestion pipeline: validate -> hash ->
// chunk -> store -> embed, in parallel across files.
package indexer

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/semdex/semdex/internal/chunk"
	"github.com/semdex/semdex/internal/embedding"
	"github.com/semdex/semdex/internal/pathguard"
	"github.com/semdex/semdex/internal/store"
	"github.com/semdex/semdex/pkg/types"
)

// Config contains indexer tunables.
type Config struct {
	Workers            int  // bounded pool size; default min(4, GOMAXPROCS)
	EmbeddingBatchSize int  // chunk texts per model call; default 32
	EmbeddingsEnabled  bool // disable to index without a model
	HashCacheSize      int
	MetadataCacheSize  int
	EmbeddingCacheSize int
}

// DefaultConfig returns the default indexer configuration.
func DefaultConfig() Config {
	return Config{
		Workers:            defaultWorkers(),
		EmbeddingBatchSize: 32,
		EmbeddingsEnabled:  true,
		HashCacheSize:      2048,
		MetadataCacheSize:  2048,
		EmbeddingCacheSize: 8192,
	}
}

func defaultWorkers() int {
	n := runtime.GOMAXPROCS(0)
	if n > 4 {
		n = 4
	}
	return n
}

// Indexer ingests files into the store. It is the only writer of persisted
// state; search components never write through it.
type Indexer struct {
	guard    *pathguard.Guard
	store    store.Store
	chunker  *chunk.Chunker
	provider embedding.Provider
	log      *zap.Logger
	cfg      Config

	caches *cacheSet
}

// New creates an Indexer. provider may be nil when embeddings are disabled.
func New(guard *pathguard.Guard, st store.Store, chunker *chunk.Chunker, provider embedding.Provider, cfg Config, log *zap.Logger) *Indexer {
	if log == nil {
		log = zap.NewNop()
	}
	if cfg.Workers <= 0 {
		cfg.Workers = defaultWorkers()
	}
	if cfg.EmbeddingBatchSize <= 0 {
		cfg.EmbeddingBatchSize = 32
	}
	if chunker == nil {
		chunker = chunk.Default()
	}
	return &Indexer{
		guard:    guard,
		store:    st,
		chunker:  chunker,
		provider: provider,
		log:      log,
		cfg:      cfg,
		caches:   newCacheSet(cfg.HashCacheSize, cfg.MetadataCacheSize, cfg.EmbeddingCacheSize),
	}
}

// ClearCaches empties the file-hash, metadata, and embedding caches together.
// Called on memory pressure or after external store mutation.
func (idx *Indexer) ClearCaches() {
	idx.caches.clear()
}

// FileID returns the stable identifier for a canonical path. Same path,
// same ID, across runs and processes.
func FileID(resolvedPath string) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte("file://"+filepath.ToSlash(resolvedPath))).String()
}

// ProcessFile ingests one file. Unchanged files (same size and content hash)
// are skipped unless force is set. The returned result reports the action
// taken and the chunk/embedding counts.
func (idx *Indexer) ProcessFile(ctx context.Context, path string, force bool) (*types.FileResult, error) {
	v := idx.guard.Validate(path)
	if !v.Valid {
		return nil, types.Validationf("path rejected: %s: %s", path, v.Reason)
	}
	resolved := v.ResolvedPath

	info, err := os.Stat(resolved)
	if err != nil {
		return nil, types.Processingf(err, "failed to stat %s", resolved)
	}
	if info.IsDir() {
		return nil, types.Validationf("%s is a directory", resolved)
	}

	sig := statSignature(resolved, info)

	// Metadata cache: a recent pass already confirmed this exact
	// path/mtime/size is indexed, so the store round-trip is skipped.
	if !force {
		if _, ok := idx.caches.meta.Get(sig); ok {
			return &types.FileResult{
				Success: true,
				FileID:  FileID(resolved),
				Path:    resolved,
				Action:  types.ActionCached,
			}, nil
		}
	}

	hash, err := idx.fileHash(resolved, sig)
	if err != nil {
		return nil, types.Processingf(err, "failed to hash %s", resolved)
	}

	if !force {
		existing, err := idx.store.GetFileByPath(ctx, resolved)
		if err != nil && err != store.ErrNotFound {
			return nil, err
		}
		if existing != nil && existing.Hash == hash && existing.Size == info.Size() {
			idx.caches.meta.Add(sig, existing.ID)
			return &types.FileResult{
				Success: true,
				FileID:  existing.ID,
				Path:    resolved,
				Action:  types.ActionSkipped,
			}, nil
		}
	}

	content, err := os.ReadFile(resolved)
	if err != nil {
		return nil, types.Processingf(err, "failed to read %s", resolved)
	}

	file := &store.FileRecord{
		ID:           FileID(resolved),
		Path:         resolved,
		Hash:         hash,
		Size:         info.Size(),
		ModifiedDate: info.ModTime(),
		FileType:     fileType(resolved),
		Status:       store.StatusActive,
	}
	if err := idx.store.UpsertFile(ctx, file); err != nil {
		return nil, err
	}

	spans := idx.chunker.Split(string(content))
	chunks := make([]*store.ChunkRecord, len(spans))
	for i, span := range spans {
		chunks[i] = &store.ChunkRecord{
			FileID:     file.ID,
			ChunkIndex: span.Index,
			Content:    span.Content,
			StartPos:   span.Start,
			EndPos:     span.End,
		}
	}
	if err := idx.store.ReplaceChunks(ctx, file.ID, chunks); err != nil {
		return nil, err
	}

	embedded := 0
	if idx.cfg.EmbeddingsEnabled && idx.provider != nil && len(chunks) > 0 {
		embedded, err = idx.embedChunks(ctx, chunks)
		if err != nil {
			return nil, err
		}
	}

	idx.caches.meta.Add(sig, file.ID)
	idx.log.Debug("indexed file",
		zap.String("path", resolved),
		zap.Int("chunks", len(chunks)),
		zap.Int("embeddings", embedded))

	return &types.FileResult{
		Success:             true,
		FileID:              file.ID,
		Path:                resolved,
		Action:              types.ActionProcessed,
		Chunks:              len(chunks),
		EmbeddingsGenerated: embedded,
	}, nil
}

// embedChunks generates and stores embeddings for the given chunks in fixed
// batches. Chunk texts already present in the embedding cache are not
// resubmitted to the model.
func (idx *Indexer) embedChunks(ctx context.Context, chunks []*store.ChunkRecord) (int, error) {
	records := make([]*store.EmbeddingRecord, 0, len(chunks))

	for start := 0; start < len(chunks); start += idx.cfg.EmbeddingBatchSize {
		end := start + idx.cfg.EmbeddingBatchSize
		if end > len(chunks) {
			end = len(chunks)
		}
		batch := chunks[start:end]

		vectors := make([][]float32, len(batch))
		missTexts := make([]string, 0, len(batch))
		missIdx := make([]int, 0, len(batch))
		for i, c := range batch {
			hash := embedding.ComputeHash(c.Content)
			if vec, ok := idx.caches.embed.Get(hash); ok {
				vectors[i] = vec
				continue
			}
			missTexts = append(missTexts, c.Content)
			missIdx = append(missIdx, i)
		}

		if len(missTexts) > 0 {
			generated, err := idx.provider.EmbedBatch(ctx, missTexts)
			if err != nil {
				return 0, types.Modelf(err, "failed to embed %d chunks", len(missTexts))
			}
			for j, vec := range generated {
				vectors[missIdx[j]] = vec
				idx.caches.embed.Add(embedding.ComputeHash(missTexts[j]), vec)
			}
		}

		for i, c := range batch {
			records = append(records, &store.EmbeddingRecord{
				ChunkID:   c.ID,
				Vector:    vectors[i],
				ModelName: idx.provider.ModelName(),
			})
		}
	}

	if err := idx.store.BatchAddEmbeddings(ctx, records); err != nil {
		return 0, err
	}
	return len(records), nil
}

// ProcessDirectory ingests every eligible file under dir across a bounded
// worker pool. Per-file failures are collected and never abort siblings;
// Success is false when FailedFiles is non-empty.
func (idx *Indexer) ProcessDirectory(ctx context.Context, dir string, recursive bool, fileTypes []string, force bool) (*types.DirectoryResult, error) {
	v := idx.guard.Validate(dir)
	if !v.Valid {
		return nil, types.Validationf("directory rejected: %s: %s", dir, v.Reason)
	}

	files, err := idx.discoverFiles(v.ResolvedPath, recursive, fileTypes)
	if err != nil {
		return nil, types.Processingf(err, "failed to walk %s", v.ResolvedPath)
	}

	start := time.Now()
	result := &types.DirectoryResult{
		Success:        true,
		TotalFiles:     len(files),
		ProcessedFiles: make([]string, 0, len(files)),
		FailedFiles:    make([]types.FileFailure, 0),
	}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(idx.cfg.Workers)

	for _, path := range files {
		path := path
		g.Go(func() error {
			fr, err := idx.ProcessFile(gctx, path, force)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				result.Failed++
				result.FailedFiles = append(result.FailedFiles, types.FileFailure{
					Path:  path,
					Error: err.Error(),
				})
				idx.log.Warn("file indexing failed", zap.String("path", path), zap.Error(err))
				return nil // failures never abort the batch
			}
			switch fr.Action {
			case types.ActionProcessed:
				result.Processed++
				result.ProcessedFiles = append(result.ProcessedFiles, path)
			default:
				result.Skipped++
			}
			result.TotalChunks += fr.Chunks
			result.TotalEmbeddings += fr.EmbeddingsGenerated
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	result.Duration = time.Since(start)
	if secs := result.Duration.Seconds(); secs > 0 {
		result.FilesPerSecond = float64(result.TotalFiles) / secs
	}
	result.Success = result.Failed == 0

	idx.log.Info("directory indexed",
		zap.String("dir", v.ResolvedPath),
		zap.Int("total", result.TotalFiles),
		zap.Int("processed", result.Processed),
		zap.Int("skipped", result.Skipped),
		zap.Int("failed", result.Failed),
		zap.Duration("duration", result.Duration))

	return result, nil
}

// RemoveFile drops a file and, transitively, its chunks and embeddings.
func (idx *Indexer) RemoveFile(ctx context.Context, path string) error {
	resolved, err := filepath.Abs(filepath.Clean(path))
	if err != nil {
		return types.Validationf("cannot resolve %s: %v", path, err)
	}
	if err := idx.store.RemoveFile(ctx, resolved); err != nil {
		if err == store.ErrNotFound {
			return types.NotFoundf("file not indexed: %s", resolved)
		}
		return err
	}
	return nil
}

// discoverFiles lists eligible files under root, filtered by recursion flag,
// file type, and the path guard.
func (idx *Indexer) discoverFiles(root string, recursive bool, fileTypes []string) ([]string, error) {
	typeSet := make(map[string]struct{}, len(fileTypes))
	for _, ft := range fileTypes {
		typeSet[strings.ToLower(strings.TrimPrefix(ft, "."))] = struct{}{}
	}

	var files []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path == root {
				return nil
			}
			if !recursive {
				return filepath.SkipDir
			}
			if strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if strings.HasPrefix(d.Name(), ".") {
			return nil
		}
		if len(typeSet) > 0 {
			if _, ok := typeSet[fileType(path)]; !ok {
				return nil
			}
		}
		if !idx.guard.IsAllowed(path) {
			return nil
		}
		files = append(files, path)
		return nil
	})
	return files, err
}

// fileHash returns the hex sha256 of the file, consulting the hash cache
// keyed by path:mtime:size so unchanged files are not rehashed within the
// process lifetime.
func (idx *Indexer) fileHash(path, sig string) (string, error) {
	if h, ok := idx.caches.hash.Get(sig); ok {
		return h, nil
	}

	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer func() { _ = f.Close() }()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	sum := hex.EncodeToString(h.Sum(nil))
	idx.caches.hash.Add(sig, sum)
	return sum, nil
}

// statSignature builds the path:mtime:size cache key.
func statSignature(path string, info os.FileInfo) string {
	return fmt.Sprintf("%s:%d:%d", path, info.ModTime().UnixNano(), info.Size())
}

// fileType is the lowercase extension without the dot.
func fileType(path string) string {
	return strings.ToLower(strings.TrimPrefix(filepath.Ext(path), "."))
}
