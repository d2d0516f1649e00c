package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func addFile(t *testing.T, s *SQLiteStore, id, path string) *FileRecord {
	t.Helper()
	file := &FileRecord{
		ID:           id,
		Path:         path,
		Hash:         "hash-" + id,
		Size:         100,
		ModifiedDate: time.Now(),
		FileType:     "go",
		Status:       StatusActive,
	}
	require.NoError(t, s.UpsertFile(context.Background(), file))
	return file
}

func TestUpsertFileAndGet(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	file := &FileRecord{
		ID:           "file-1",
		Path:         "/docs/a.go",
		Hash:         "abc123",
		Size:         42,
		ModifiedDate: time.Now(),
		FileType:     "go",
		Metadata:     map[string]string{"lang": "go"},
	}
	require.NoError(t, s.UpsertFile(ctx, file))
	assert.False(t, file.IndexedDate.IsZero())

	got, err := s.GetFileByPath(ctx, "/docs/a.go")
	require.NoError(t, err)
	assert.Equal(t, "file-1", got.ID)
	assert.Equal(t, "abc123", got.Hash)
	assert.Equal(t, int64(42), got.Size)
	assert.Equal(t, StatusActive, got.Status)
	assert.Equal(t, "go", got.Metadata["lang"])
}

func TestUpsertFileKeepsStoredID(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	addFile(t, s, "original-id", "/docs/a.go")

	// A second upsert for the same path with a different ID updates in
	// place and reports the stored ID back to the caller.
	second := &FileRecord{ID: "other-id", Path: "/docs/a.go", Hash: "newhash", FileType: "go"}
	require.NoError(t, s.UpsertFile(ctx, second))
	assert.Equal(t, "original-id", second.ID)

	got, err := s.GetFileByPath(ctx, "/docs/a.go")
	require.NoError(t, err)
	assert.Equal(t, "original-id", got.ID)
	assert.Equal(t, "newhash", got.Hash)
}

func TestGetFileByPathNotFound(t *testing.T) {
	s := newTestStore(t)

	_, err := s.GetFileByPath(context.Background(), "/nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRemoveFileCascades(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	file := addFile(t, s, "file-1", "/docs/a.go")
	chunks := []*ChunkRecord{
		{ChunkIndex: 0, Content: "alpha", StartPos: 0, EndPos: 5},
		{ChunkIndex: 1, Content: "beta", StartPos: 4, EndPos: 8},
	}
	require.NoError(t, s.ReplaceChunks(ctx, file.ID, chunks))
	require.NoError(t, s.AddEmbedding(ctx, &EmbeddingRecord{
		ChunkID: chunks[0].ID, Vector: []float32{1, 0}, ModelName: "m",
	}))

	require.NoError(t, s.RemoveFile(ctx, "/docs/a.go"))

	rows, err := s.GetEmbeddingsByFile(ctx, "/docs/a.go")
	require.NoError(t, err)
	assert.Empty(t, rows)

	remaining, err := s.ListChunksByFile(ctx, file.ID)
	require.NoError(t, err)
	assert.Empty(t, remaining)

	assert.ErrorIs(t, s.RemoveFile(ctx, "/docs/a.go"), ErrNotFound)
}

func TestReplaceChunksSupersedes(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	file := addFile(t, s, "file-1", "/docs/a.go")
	old := []*ChunkRecord{
		{ChunkIndex: 0, Content: "old-0"},
		{ChunkIndex: 1, Content: "old-1"},
		{ChunkIndex: 2, Content: "old-2"},
	}
	require.NoError(t, s.ReplaceChunks(ctx, file.ID, old))

	// Fewer chunks than before: the stale tail must not survive.
	replacement := []*ChunkRecord{{ChunkIndex: 0, Content: "new-0"}}
	require.NoError(t, s.ReplaceChunks(ctx, file.ID, replacement))
	assert.NotZero(t, replacement[0].ID)

	got, err := s.ListChunksByFile(ctx, file.ID)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "new-0", got[0].Content)
}

func TestBatchAddEmbeddingsAndGet(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	file := addFile(t, s, "file-1", "/docs/a.go")
	chunks := []*ChunkRecord{
		{ChunkIndex: 0, Content: "alpha"},
		{ChunkIndex: 1, Content: "beta"},
	}
	require.NoError(t, s.ReplaceChunks(ctx, file.ID, chunks))

	embs := []*EmbeddingRecord{
		{ChunkID: chunks[0].ID, Vector: []float32{0.1, 0.2, 0.3}, ModelName: "m"},
		{ChunkID: chunks[1].ID, Vector: []float32{0.4, 0.5, 0.6}, ModelName: "m"},
	}
	require.NoError(t, s.BatchAddEmbeddings(ctx, embs))

	rows, err := s.GetEmbeddings(ctx, nil, nil)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "alpha", rows[0].Content)
	assert.InDeltaSlice(t, []float32{0.1, 0.2, 0.3}, rows[0].Vector, 1e-6)
	assert.Equal(t, file.ID, rows[0].FileID)
}

func TestGetEmbeddingsFilters(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	goFile := addFile(t, s, "file-1", "/docs/a.go")
	mdFile := &FileRecord{ID: "file-2", Path: "/docs/b.md", Hash: "h2", FileType: "md", Status: StatusActive}
	require.NoError(t, s.UpsertFile(ctx, mdFile))

	for _, f := range []*FileRecord{goFile, mdFile} {
		chunks := []*ChunkRecord{{ChunkIndex: 0, Content: "content of " + f.Path}}
		require.NoError(t, s.ReplaceChunks(ctx, f.ID, chunks))
		require.NoError(t, s.AddEmbedding(ctx, &EmbeddingRecord{
			ChunkID: chunks[0].ID, Vector: []float32{1}, ModelName: "m",
		}))
	}

	rows, err := s.GetEmbeddings(ctx, []string{"md"}, nil)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "/docs/b.md", rows[0].FilePath)

	rows, err = s.GetEmbeddings(ctx, nil, []string{"/docs/a.go"})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "/docs/a.go", rows[0].FilePath)

	rows, err = s.GetEmbeddings(ctx, []string{"py"}, nil)
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestGetEmbeddingsSkipsInactiveFiles(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	file := addFile(t, s, "file-1", "/docs/a.go")
	chunks := []*ChunkRecord{{ChunkIndex: 0, Content: "alpha"}}
	require.NoError(t, s.ReplaceChunks(ctx, file.ID, chunks))
	require.NoError(t, s.AddEmbedding(ctx, &EmbeddingRecord{ChunkID: chunks[0].ID, Vector: []float32{1}, ModelName: "m"}))

	file.Status = StatusRemoved
	require.NoError(t, s.UpsertFile(ctx, file))

	rows, err := s.GetEmbeddings(ctx, nil, nil)
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestSearchKeywordRelevance(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	file := addFile(t, s, "file-1", "/docs/a.md")
	chunks := []*ChunkRecord{
		{ChunkIndex: 0, Content: "this mentions the keyword FooBar and nothing else"},
		{ChunkIndex: 1, Content: "completely unrelated content"},
	}
	require.NoError(t, s.ReplaceChunks(ctx, file.ID, chunks))

	// Case-insensitive substring match: 1 of 1 terms matched.
	matches, err := s.SearchKeyword(ctx, []string{"foobar"}, 10, nil)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, 0, matches[0].ChunkIndex)
	assert.Equal(t, 1, matches[0].Matched)
	assert.Equal(t, 1.0, matches[0].Relevance)
}

func TestSearchKeywordOrdering(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	file := addFile(t, s, "file-1", "/docs/a.md")
	chunks := []*ChunkRecord{
		{ChunkIndex: 0, Content: "only alpha here"},
		{ChunkIndex: 1, Content: "alpha and beta together"},
		{ChunkIndex: 2, Content: "only beta here"},
	}
	require.NoError(t, s.ReplaceChunks(ctx, file.ID, chunks))

	matches, err := s.SearchKeyword(ctx, []string{"alpha", "beta"}, 10, nil)
	require.NoError(t, err)
	require.Len(t, matches, 3)

	// Highest match count first, then chunk index ascending on ties.
	assert.Equal(t, 1, matches[0].ChunkIndex)
	assert.Equal(t, 2, matches[0].Matched)
	assert.InDelta(t, 1.0, matches[0].Relevance, 1e-9)
	assert.Equal(t, 0, matches[1].ChunkIndex)
	assert.Equal(t, 2, matches[2].ChunkIndex)
	assert.InDelta(t, 0.5, matches[1].Relevance, 1e-9)
}

func TestSearchKeywordEmptyTerms(t *testing.T) {
	s := newTestStore(t)

	matches, err := s.SearchKeyword(context.Background(), nil, 10, nil)
	require.NoError(t, err)
	assert.Empty(t, matches)
}

func TestVectorRoundTrip(t *testing.T) {
	vec := []float32{0.5, -1.25, 3.75, 0}
	got := DeserializeVector(SerializeVector(vec))
	assert.Equal(t, vec, got)

	assert.Empty(t, DeserializeVector(nil))
}

func TestSettings(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.GetSetting(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, s.SetSetting(ctx, "key", "v1"))
	require.NoError(t, s.SetSetting(ctx, "key", "v2"))

	got, err := s.GetSetting(ctx, "key")
	require.NoError(t, err)
	assert.Equal(t, "v2", got)
}

func TestDirectorySettingsRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	settings, err := s.GetDirectorySettings(ctx)
	require.NoError(t, err)
	assert.Empty(t, settings.AllowedDirectories)
	assert.Empty(t, settings.ExcludedDirectories)

	settings.AllowedDirectories = []string{"/home/user/docs"}
	settings.ExcludedDirectories = []string{"/home/user/docs/private"}
	require.NoError(t, s.SetDirectorySettings(ctx, settings))

	got, err := s.GetDirectorySettings(ctx)
	require.NoError(t, err)
	assert.Equal(t, settings.AllowedDirectories, got.AllowedDirectories)
	assert.Equal(t, settings.ExcludedDirectories, got.ExcludedDirectories)
}

func TestStats(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	file := addFile(t, s, "file-1", "/docs/a.go")
	chunks := []*ChunkRecord{{ChunkIndex: 0, Content: "alpha"}}
	require.NoError(t, s.ReplaceChunks(ctx, file.ID, chunks))
	require.NoError(t, s.AddEmbedding(ctx, &EmbeddingRecord{ChunkID: chunks[0].ID, Vector: []float32{1}, ModelName: "m"}))

	stats, err := s.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.TotalFiles)
	assert.Equal(t, 1, stats.ActiveFiles)
	assert.Equal(t, 1, stats.TotalChunks)
	assert.Equal(t, 1, stats.TotalEmbeddings)
	assert.Equal(t, 1, stats.FileTypes["go"])
}
