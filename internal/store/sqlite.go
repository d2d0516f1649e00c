package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/semdex/semdex/pkg/types"
)

// SQLiteStore implements the Store interface using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// openDatabase opens a SQLite database with appropriate settings.
func openDatabase(dbPath string) (*sql.DB, error) {
	db, err := sql.Open(DriverName, dbPath)
	if err != nil {
		return nil, err
	}

	// Enable WAL mode for better concurrency
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	// SQLite benefits from a single writer
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	return db, nil
}

// Open creates a new SQLite store, applying any pending migrations.
func Open(dbPath string) (*SQLiteStore, error) {
	db, err := openDatabase(dbPath)
	if err != nil {
		return nil, types.Storagef(err, "failed to open database %s", dbPath)
	}

	if err := ApplyMigrations(context.Background(), db); err != nil {
		_ = db.Close()
		return nil, types.Storagef(err, "failed to apply migrations")
	}

	return &SQLiteStore{db: db}, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// File operations

// UpsertFile inserts or updates the row for file.Path. The caller supplies
// the stable ID; an existing row for the same path keeps its ID.
func (s *SQLiteStore) UpsertFile(ctx context.Context, file *FileRecord) error {
	meta, err := encodeMetadata(file.Metadata)
	if err != nil {
		return types.Storagef(err, "failed to encode file metadata")
	}

	query := `
		INSERT INTO indexed_files (id, file_path, file_hash, size, modified_date, indexed_date, file_type, status, metadata)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(file_path) DO UPDATE SET
			file_hash = excluded.file_hash,
			size = excluded.size,
			modified_date = excluded.modified_date,
			indexed_date = excluded.indexed_date,
			file_type = excluded.file_type,
			status = excluded.status,
			metadata = excluded.metadata
	`
	now := time.Now()
	if file.Status == "" {
		file.Status = StatusActive
	}
	_, err = s.db.ExecContext(ctx, query,
		file.ID, file.Path, file.Hash, file.Size,
		file.ModifiedDate, now, file.FileType, file.Status, meta)
	if err != nil {
		return types.Storagef(err, "failed to upsert file %s", file.Path)
	}

	// On conflict the stored ID wins; read it back so chunks attach to the
	// right row even if the caller derived a different ID.
	if err := s.db.QueryRowContext(ctx, "SELECT id FROM indexed_files WHERE file_path = ?", file.Path).Scan(&file.ID); err != nil {
		return types.Storagef(err, "failed to read back file id for %s", file.Path)
	}
	file.IndexedDate = now
	return nil
}

// GetFileByPath returns the row for path, or ErrNotFound.
func (s *SQLiteStore) GetFileByPath(ctx context.Context, path string) (*FileRecord, error) {
	query := `
		SELECT id, file_path, file_hash, size, modified_date, indexed_date, file_type, status, metadata
		FROM indexed_files
		WHERE file_path = ?
	`
	var file FileRecord
	var meta sql.NullString
	var modified, indexed sql.NullTime
	err := s.db.QueryRowContext(ctx, query, path).Scan(
		&file.ID, &file.Path, &file.Hash, &file.Size,
		&modified, &indexed, &file.FileType, &file.Status, &meta,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, types.Storagef(err, "failed to get file %s", path)
	}
	if modified.Valid {
		file.ModifiedDate = modified.Time
	}
	if indexed.Valid {
		file.IndexedDate = indexed.Time
	}
	if meta.Valid && meta.String != "" {
		if err := json.Unmarshal([]byte(meta.String), &file.Metadata); err != nil {
			return nil, types.Storagef(err, "failed to decode file metadata")
		}
	}
	return &file, nil
}

// RemoveFile deletes the row for path; chunks and embeddings cascade.
func (s *SQLiteStore) RemoveFile(ctx context.Context, path string) error {
	result, err := s.db.ExecContext(ctx, "DELETE FROM indexed_files WHERE file_path = ?", path)
	if err != nil {
		return types.Storagef(err, "failed to remove file %s", path)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return types.Storagef(err, "failed to remove file %s", path)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// ListFiles returns tracked files, optionally filtered by status.
func (s *SQLiteStore) ListFiles(ctx context.Context, status string) ([]*FileRecord, error) {
	query := `
		SELECT id, file_path, file_hash, size, modified_date, indexed_date, file_type, status, metadata
		FROM indexed_files
	`
	args := []any{}
	if status != "" {
		query += " WHERE status = ?"
		args = append(args, status)
	}
	query += " ORDER BY file_path"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, types.Storagef(err, "failed to list files")
	}
	defer func() { _ = rows.Close() }()

	files := make([]*FileRecord, 0)
	for rows.Next() {
		var file FileRecord
		var meta sql.NullString
		var modified, indexed sql.NullTime
		err := rows.Scan(
			&file.ID, &file.Path, &file.Hash, &file.Size,
			&modified, &indexed, &file.FileType, &file.Status, &meta,
		)
		if err != nil {
			return nil, types.Storagef(err, "failed to scan file row")
		}
		if modified.Valid {
			file.ModifiedDate = modified.Time
		}
		if indexed.Valid {
			file.IndexedDate = indexed.Time
		}
		if meta.Valid && meta.String != "" {
			if err := json.Unmarshal([]byte(meta.String), &file.Metadata); err != nil {
				return nil, types.Storagef(err, "failed to decode file metadata")
			}
		}
		files = append(files, &file)
	}
	return files, rows.Err()
}

// Chunk operations

// ReplaceChunks deletes all existing chunks for fileID and inserts the new
// set atomically. Stale rows beyond the new chunk count do not survive.
func (s *SQLiteStore) ReplaceChunks(ctx context.Context, fileID string, chunks []*ChunkRecord) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return types.Storagef(err, "failed to begin transaction")
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, "DELETE FROM file_chunks WHERE file_id = ?", fileID); err != nil {
		return types.Storagef(err, "failed to delete old chunks for %s", fileID)
	}

	insert := `
		INSERT INTO file_chunks (file_id, chunk_index, content, start_pos, end_pos, metadata)
		VALUES (?, ?, ?, ?, ?, ?)
	`
	for _, chunk := range chunks {
		meta, err := encodeMetadata(chunk.Metadata)
		if err != nil {
			return types.Storagef(err, "failed to encode chunk metadata")
		}
		result, err := tx.ExecContext(ctx, insert,
			fileID, chunk.ChunkIndex, chunk.Content, chunk.StartPos, chunk.EndPos, meta)
		if err != nil {
			return types.Storagef(err, "failed to insert chunk %d for %s", chunk.ChunkIndex, fileID)
		}
		id, err := result.LastInsertId()
		if err != nil {
			return types.Storagef(err, "failed to read chunk id")
		}
		chunk.ID = id
		chunk.FileID = fileID
	}

	if err := tx.Commit(); err != nil {
		return types.Storagef(err, "failed to commit chunk replacement")
	}
	return nil
}

// AddChunk inserts or replaces a single chunk row.
func (s *SQLiteStore) AddChunk(ctx context.Context, chunk *ChunkRecord) error {
	meta, err := encodeMetadata(chunk.Metadata)
	if err != nil {
		return types.Storagef(err, "failed to encode chunk metadata")
	}
	query := `
		INSERT INTO file_chunks (file_id, chunk_index, content, start_pos, end_pos, metadata)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(file_id, chunk_index) DO UPDATE SET
			content = excluded.content,
			start_pos = excluded.start_pos,
			end_pos = excluded.end_pos,
			metadata = excluded.metadata
	`
	if _, err := s.db.ExecContext(ctx, query,
		chunk.FileID, chunk.ChunkIndex, chunk.Content, chunk.StartPos, chunk.EndPos, meta); err != nil {
		return types.Storagef(err, "failed to add chunk %d for %s", chunk.ChunkIndex, chunk.FileID)
	}
	if err := s.db.QueryRowContext(ctx,
		"SELECT id FROM file_chunks WHERE file_id = ? AND chunk_index = ?",
		chunk.FileID, chunk.ChunkIndex).Scan(&chunk.ID); err != nil {
		return types.Storagef(err, "failed to read back chunk id")
	}
	return nil
}

// ListChunksByFile returns the chunks for fileID ordered by chunk_index.
func (s *SQLiteStore) ListChunksByFile(ctx context.Context, fileID string) ([]*ChunkRecord, error) {
	query := `
		SELECT id, file_id, chunk_index, content, start_pos, end_pos, metadata
		FROM file_chunks
		WHERE file_id = ?
		ORDER BY chunk_index
	`
	rows, err := s.db.QueryContext(ctx, query, fileID)
	if err != nil {
		return nil, types.Storagef(err, "failed to list chunks for %s", fileID)
	}
	defer func() { _ = rows.Close() }()

	chunks := make([]*ChunkRecord, 0)
	for rows.Next() {
		var chunk ChunkRecord
		var meta sql.NullString
		if err := rows.Scan(&chunk.ID, &chunk.FileID, &chunk.ChunkIndex,
			&chunk.Content, &chunk.StartPos, &chunk.EndPos, &meta); err != nil {
			return nil, types.Storagef(err, "failed to scan chunk row")
		}
		if meta.Valid && meta.String != "" {
			if err := json.Unmarshal([]byte(meta.String), &chunk.Metadata); err != nil {
				return nil, types.Storagef(err, "failed to decode chunk metadata")
			}
		}
		chunks = append(chunks, &chunk)
	}
	return chunks, rows.Err()
}

// Embedding operations

// AddEmbedding upserts the embedding for a chunk; the old vector is fully
// superseded.
func (s *SQLiteStore) AddEmbedding(ctx context.Context, emb *EmbeddingRecord) error {
	return s.addEmbedding(ctx, s.db, emb)
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (s *SQLiteStore) addEmbedding(ctx context.Context, q execer, emb *EmbeddingRecord) error {
	query := `
		INSERT INTO file_embeddings (chunk_id, embedding_vector, model_name, created_date)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(chunk_id) DO UPDATE SET
			embedding_vector = excluded.embedding_vector,
			model_name = excluded.model_name,
			created_date = excluded.created_date
	`
	now := time.Now()
	result, err := q.ExecContext(ctx, query,
		emb.ChunkID, SerializeVector(emb.Vector), emb.ModelName, now)
	if err != nil {
		return types.Storagef(err, "failed to add embedding for chunk %d", emb.ChunkID)
	}
	if emb.ID == 0 {
		if id, err := result.LastInsertId(); err == nil {
			emb.ID = id
		}
	}
	emb.CreatedDate = now
	return nil
}

// BatchAddEmbeddings upserts a batch of embeddings in one transaction.
func (s *SQLiteStore) BatchAddEmbeddings(ctx context.Context, embs []*EmbeddingRecord) error {
	if len(embs) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return types.Storagef(err, "failed to begin transaction")
	}
	defer func() { _ = tx.Rollback() }()

	for _, emb := range embs {
		if err := s.addEmbedding(ctx, tx, emb); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return types.Storagef(err, "failed to commit embedding batch")
	}
	return nil
}

// GetEmbeddings returns joined embedding rows for active files, optionally
// restricted to the given file types and/or paths.
func (s *SQLiteStore) GetEmbeddings(ctx context.Context, fileTypes, filePaths []string) ([]EmbeddingRow, error) {
	query := `
		SELECT c.id, f.id, f.file_path, f.file_type, c.chunk_index, c.content,
		       c.start_pos, c.end_pos, e.embedding_vector
		FROM file_embeddings e
		INNER JOIN file_chunks c ON e.chunk_id = c.id
		INNER JOIN indexed_files f ON c.file_id = f.id
		WHERE f.status = ?
	`
	args := []any{StatusActive}
	query, args = appendInFilter(query, args, "f.file_type", fileTypes)
	query, args = appendInFilter(query, args, "f.file_path", filePaths)
	query += " ORDER BY f.file_path, c.chunk_index"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, types.Storagef(err, "failed to query embeddings")
	}
	defer func() { _ = rows.Close() }()

	results := make([]EmbeddingRow, 0)
	for rows.Next() {
		var row EmbeddingRow
		var blob []byte
		if err := rows.Scan(&row.ChunkID, &row.FileID, &row.FilePath, &row.FileType,
			&row.ChunkIndex, &row.Content, &row.StartPos, &row.EndPos, &blob); err != nil {
			return nil, types.Storagef(err, "failed to scan embedding row")
		}
		row.Vector = DeserializeVector(blob)
		results = append(results, row)
	}
	return results, rows.Err()
}

// GetEmbeddingsByFile returns the embedding rows for a single file path.
func (s *SQLiteStore) GetEmbeddingsByFile(ctx context.Context, path string) ([]EmbeddingRow, error) {
	return s.GetEmbeddings(ctx, nil, []string{path})
}

// Stats summarizes row counts and on-disk size.
func (s *SQLiteStore) Stats(ctx context.Context) (*types.IndexStats, error) {
	stats := &types.IndexStats{FileTypes: make(map[string]int)}

	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM indexed_files").Scan(&stats.TotalFiles); err != nil {
		return nil, types.Storagef(err, "failed to count files")
	}
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM indexed_files WHERE status = ?", StatusActive).Scan(&stats.ActiveFiles); err != nil {
		return nil, types.Storagef(err, "failed to count active files")
	}
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM file_chunks").Scan(&stats.TotalChunks); err != nil {
		return nil, types.Storagef(err, "failed to count chunks")
	}
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM file_embeddings").Scan(&stats.TotalEmbeddings); err != nil {
		return nil, types.Storagef(err, "failed to count embeddings")
	}

	rows, err := s.db.QueryContext(ctx,
		"SELECT file_type, COUNT(*) FROM indexed_files WHERE status = ? GROUP BY file_type", StatusActive)
	if err != nil {
		return nil, types.Storagef(err, "failed to count file types")
	}
	defer func() { _ = rows.Close() }()
	for rows.Next() {
		var ft string
		var n int
		if err := rows.Scan(&ft, &n); err != nil {
			return nil, types.Storagef(err, "failed to scan file type row")
		}
		stats.FileTypes[ft] = n
	}
	if err := rows.Err(); err != nil {
		return nil, types.Storagef(err, "failed to read file type rows")
	}

	var pageCount, pageSize int
	if err := s.db.QueryRowContext(ctx, "PRAGMA page_count").Scan(&pageCount); err == nil {
		_ = s.db.QueryRowContext(ctx, "PRAGMA page_size").Scan(&pageSize)
		stats.IndexSizeMB = float64(pageCount*pageSize) / (1024 * 1024)
	}

	return stats, nil
}

// appendInFilter appends an "AND col IN (...)" clause for non-empty values.
func appendInFilter(query string, args []any, column string, values []string) (string, []any) {
	if len(values) == 0 {
		return query, args
	}
	placeholders := make([]string, len(values))
	for i, v := range values {
		placeholders[i] = "?"
		args = append(args, v)
	}
	query += " AND " + column + " IN (" + strings.Join(placeholders, ",") + ")"
	return query, args
}

func encodeMetadata(meta map[string]string) (string, error) {
	if len(meta) == 0 {
		return "", nil
	}
	data, err := json.Marshal(meta)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
