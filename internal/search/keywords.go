package search

import (
	"strings"
	"unicode"
)

// stopwords are common English terms that carry no search signal.
var stopwords = map[string]struct{}{
	"the": {}, "and": {}, "for": {}, "are": {}, "but": {}, "not": {},
	"you": {}, "all": {}, "can": {}, "had": {}, "her": {}, "was": {},
	"one": {}, "our": {}, "out": {}, "has": {}, "his": {}, "how": {},
	"its": {}, "may": {}, "who": {}, "this": {}, "that": {}, "with": {},
	"from": {}, "have": {}, "they": {}, "will": {}, "what": {}, "when": {},
	"where": {}, "which": {}, "would": {}, "there": {}, "their": {},
	"about": {}, "into": {}, "than": {}, "then": {}, "them": {},
}

// ExtractTerms tokenizes a query for keyword matching: lowercased, punctuation
// stripped, stopwords and terms shorter than three characters dropped,
// duplicates removed in first-seen order.
func ExtractTerms(query string) []string {
	cleaned := strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return unicode.ToLower(r)
		}
		return ' '
	}, query)

	seen := make(map[string]struct{})
	var terms []string
	for _, tok := range strings.Fields(cleaned) {
		if len(tok) <= 2 {
			continue
		}
		if _, stop := stopwords[tok]; stop {
			continue
		}
		if _, dup := seen[tok]; dup {
			continue
		}
		seen[tok] = struct{}{}
		terms = append(terms, tok)
	}
	return terms
}
