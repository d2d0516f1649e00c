package search

import (
	"strings"

	"github.com/semdex/semdex/pkg/types"
)

// RerankConfig tunes the lexical bonuses applied on top of the merged hybrid
// scores. Zero values disable the corresponding bonus.
type RerankConfig struct {
	ExactMatchBonus  float64  // whole query appears verbatim in the chunk
	PerTermIncrement float64  // added per matched query term
	TermMatchCap     float64  // ceiling on the summed per-term bonus
	PositionBonus    float64  // scaled by how early the first match appears
	FileTypeBonus    float64  // chunk comes from a documentation file type
	DocFileTypes     []string // file types treated as documentation
}

// DefaultRerankConfig returns the standard bonus weights.
func DefaultRerankConfig() RerankConfig {
	return RerankConfig{
		ExactMatchBonus:  0.2,
		TermMatchCap:     0.3,
		PerTermIncrement: 0.1,
		PositionBonus:    0.1,
		FileTypeBonus:    0.05,
		DocFileTypes:     []string{"md", "txt", "rst", "adoc"},
	}
}

// Rerank adjusts hit scores with lexical bonuses relative to the query and
// re-sorts. Scores stay clamped to [0, 1]; input order is not assumed.
// topK <= 0 keeps every hit.
func (e *Engine) Rerank(query string, hits []types.SearchHit, topK int) []types.SearchHit {
	if len(hits) == 0 {
		return hits
	}

	cfg := e.rerank
	queryLower := strings.ToLower(strings.TrimSpace(query))
	terms := ExtractTerms(query)
	docTypes := make(map[string]struct{}, len(cfg.DocFileTypes))
	for _, ft := range cfg.DocFileTypes {
		docTypes[strings.ToLower(ft)] = struct{}{}
	}

	for i := range hits {
		content := strings.ToLower(hits[i].Content)
		score := hits[i].Score

		if queryLower != "" && strings.Contains(content, queryLower) {
			score += cfg.ExactMatchBonus
		}

		termBonus := 0.0
		firstPos := -1
		for _, term := range terms {
			pos := strings.Index(content, term)
			if pos < 0 {
				continue
			}
			termBonus += cfg.PerTermIncrement
			if firstPos < 0 || pos < firstPos {
				firstPos = pos
			}
		}
		if termBonus > cfg.TermMatchCap {
			termBonus = cfg.TermMatchCap
		}
		score += termBonus

		// Early matches suggest the chunk is about the query, not
		// merely mentioning it. The bonus decays linearly with match
		// position.
		if firstPos >= 0 && len(content) > 0 {
			score += cfg.PositionBonus * (1 - float64(firstPos)/float64(len(content)))
		}

		if _, ok := docTypes[strings.ToLower(hits[i].FileType)]; ok {
			score += cfg.FileTypeBonus
		}

		hits[i].Score = clampScore(score)
	}

	sortHits(hits)
	if topK > 0 && len(hits) > topK {
		hits = hits[:topK]
	}
	return hits
}

func clampScore(s float64) float64 {
	if s < 0 {
		return 0
	}
	if s > 1 {
		return 1
	}
	return s
}
