package store

import (
	"context"
	"strings"

	"github.com/semdex/semdex/pkg/types"
)

// SearchKeyword scores active chunks by case-insensitive substring matching:
// relevance is (# matched terms) / (# query terms). Rows are ordered by match
// count descending, then chunk_index ascending for deterministic ties.
func (s *SQLiteStore) SearchKeyword(ctx context.Context, terms []string, limit int, fileTypes []string) ([]KeywordMatch, error) {
	if len(terms) == 0 || limit <= 0 {
		return []KeywordMatch{}, nil
	}

	// One instr() test per term, summed into a match count computed in SQL.
	cases := make([]string, len(terms))
	args := make([]any, 0, len(terms)+len(fileTypes)+2)
	for i, term := range terms {
		cases[i] = "(CASE WHEN instr(lower(c.content), ?) > 0 THEN 1 ELSE 0 END)"
		args = append(args, strings.ToLower(term))
	}

	inner := `
		SELECT c.id AS chunk_id, f.id AS file_id, f.file_path, f.file_type,
		       c.chunk_index, c.content, c.start_pos, c.end_pos,
		       (` + strings.Join(cases, " + ") + `) AS matched
		FROM file_chunks c
		INNER JOIN indexed_files f ON c.file_id = f.id
		WHERE f.status = ?
	`
	args = append(args, StatusActive)
	inner, args = appendInFilter(inner, args, "f.file_type", fileTypes)

	query := `SELECT * FROM (` + inner + `) WHERE matched > 0 ORDER BY matched DESC, chunk_index ASC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, types.Storagef(err, "failed to execute keyword search")
	}
	defer func() { _ = rows.Close() }()

	total := float64(len(terms))
	results := make([]KeywordMatch, 0)
	for rows.Next() {
		var m KeywordMatch
		if err := rows.Scan(&m.ChunkID, &m.FileID, &m.FilePath, &m.FileType,
			&m.ChunkIndex, &m.Content, &m.StartPos, &m.EndPos, &m.Matched); err != nil {
			return nil, types.Storagef(err, "failed to scan keyword row")
		}
		m.Relevance = float64(m.Matched) / total
		results = append(results, m)
	}
	return results, rows.Err()
}
