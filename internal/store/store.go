// Package store is the persistence layer for the index: tracked files, their
// chunks, chunk embeddings, and the settings table. It is the sole owner of
// persisted state; the indexer writes through it and the search engine reads
// through it.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/semdex/semdex/pkg/types"
)

// ErrNotFound is returned when a requested row doesn't exist.
var ErrNotFound = errors.New("not found")

// FileRecord is one row of indexed_files.
type FileRecord struct {
	ID           string // stable identifier derived from the canonical path
	Path         string
	Hash         string // hex-encoded content digest
	Size         int64
	ModifiedDate time.Time
	IndexedDate  time.Time
	FileType     string
	Status       string // active | removed
	Metadata     map[string]string
}

// File status values.
const (
	StatusActive  = "active"
	StatusRemoved = "removed"
)

// ChunkRecord is one row of file_chunks. StartPos/EndPos are character
// offsets into the source file, EndPos exclusive.
type ChunkRecord struct {
	ID         int64
	FileID     string
	ChunkIndex int
	Content    string
	StartPos   int
	EndPos     int
	Metadata   map[string]string
}

// EmbeddingRecord is one row of file_embeddings. At most one per chunk;
// writes are upserts that fully supersede the previous vector.
type EmbeddingRecord struct {
	ID          int64
	ChunkID     int64
	Vector      []float32
	ModelName   string
	CreatedDate time.Time
}

// EmbeddingRow is the joined view the search engine scores against.
type EmbeddingRow struct {
	ChunkID    int64
	FileID     string
	FilePath   string
	FileType   string
	ChunkIndex int
	Content    string
	StartPos   int
	EndPos     int
	Vector     []float32
}

// KeywordMatch is one row of a keyword search: Relevance is the fraction of
// query terms matched by the chunk content.
type KeywordMatch struct {
	ChunkID    int64
	FileID     string
	FilePath   string
	FileType   string
	ChunkIndex int
	Content    string
	StartPos   int
	EndPos     int
	Matched    int
	Relevance  float64
}

// Store defines the persistence interface for the index.
type Store interface {
	// File operations
	UpsertFile(ctx context.Context, file *FileRecord) error
	GetFileByPath(ctx context.Context, path string) (*FileRecord, error)
	RemoveFile(ctx context.Context, path string) error
	ListFiles(ctx context.Context, status string) ([]*FileRecord, error)

	// Chunk operations
	ReplaceChunks(ctx context.Context, fileID string, chunks []*ChunkRecord) error
	AddChunk(ctx context.Context, chunk *ChunkRecord) error
	ListChunksByFile(ctx context.Context, fileID string) ([]*ChunkRecord, error)

	// Embedding operations
	AddEmbedding(ctx context.Context, emb *EmbeddingRecord) error
	BatchAddEmbeddings(ctx context.Context, embs []*EmbeddingRecord) error
	GetEmbeddings(ctx context.Context, fileTypes, filePaths []string) ([]EmbeddingRow, error)
	GetEmbeddingsByFile(ctx context.Context, path string) ([]EmbeddingRow, error)

	// Keyword search
	SearchKeyword(ctx context.Context, terms []string, limit int, fileTypes []string) ([]KeywordMatch, error)

	// Stats and settings
	Stats(ctx context.Context) (*types.IndexStats, error)
	GetSetting(ctx context.Context, name string) (string, error)
	SetSetting(ctx context.Context, name, value string) error
	GetDirectorySettings(ctx context.Context) (*types.DirectorySettings, error)
	SetDirectorySettings(ctx context.Context, settings *types.DirectorySettings) error

	Close() error
}
