// Package types holds the shared value types exchanged between the indexing
// pipeline, the search engine, and external callers.
package types

import "time"

// MatchType identifies which search arm produced a hit.
type MatchType string

const (
	MatchVector  MatchType = "vector"
	MatchKeyword MatchType = "keyword"
	MatchHybrid  MatchType = "hybrid"
)

// SearchHit is one ranked search result. Hits are constructed per query and
// never persisted.
type SearchHit struct {
	ChunkID    int64             `json:"chunk_id"`
	FileID     string            `json:"file_id"`
	FilePath   string            `json:"file_path"`
	Content    string            `json:"content"`
	Score      float64           `json:"score"` // clamped to [0,1]
	ChunkIndex int               `json:"chunk_index"`
	StartPos   int               `json:"start_pos"`
	EndPos     int               `json:"end_pos"`
	FileType   string            `json:"file_type"`
	Metadata   map[string]string `json:"metadata,omitempty"`
	MatchType  MatchType         `json:"match_type"`
}

// Action describes the per-file outcome of an indexing pass.
type Action string

const (
	ActionProcessed Action = "processed"
	ActionSkipped   Action = "skipped"
	ActionCached    Action = "cached"
	ActionFailed    Action = "failed"
)

// FileResult is the outcome of indexing a single file.
type FileResult struct {
	Success             bool   `json:"success"`
	FileID              string `json:"file_id,omitempty"`
	Path                string `json:"path"`
	Action              Action `json:"action"`
	Chunks              int    `json:"chunks"`
	EmbeddingsGenerated int    `json:"embeddings_generated"`
	Error               string `json:"error,omitempty"`
}

// FileFailure records one file that could not be indexed during a batch run.
type FileFailure struct {
	Path  string `json:"path"`
	Error string `json:"error"`
}

// DirectoryResult aggregates per-file outcomes of a directory indexing run.
// Success is false when any file failed; sibling results are still populated.
type DirectoryResult struct {
	Success         bool          `json:"success"`
	TotalFiles      int           `json:"total_files"`
	Processed       int           `json:"processed"`
	Skipped         int           `json:"skipped"`
	Failed          int           `json:"failed"`
	TotalChunks     int           `json:"total_chunks"`
	TotalEmbeddings int           `json:"total_embeddings"`
	Duration        time.Duration `json:"duration"`
	FilesPerSecond  float64       `json:"files_per_second"`
	ProcessedFiles  []string      `json:"processed_files"`
	FailedFiles     []FileFailure `json:"failed_files"`
}

// IndexStats summarizes the persisted index.
type IndexStats struct {
	TotalFiles      int     `json:"total_files"`
	ActiveFiles     int     `json:"active_files"`
	TotalChunks     int     `json:"total_chunks"`
	TotalEmbeddings int     `json:"total_embeddings"`
	IndexSizeMB     float64 `json:"index_size_mb"`
	FileTypes       map[string]int
}

// DirectorySettings is the allow/deny directory configuration persisted in
// the search_settings table.
type DirectorySettings struct {
	AllowedDirectories  []string `json:"allowed_directories"`
	ExcludedDirectories []string `json:"excluded_directories"`
}
