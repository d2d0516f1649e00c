// Package chunk splits file content into overlapping fixed-size windows.
package chunk

import "fmt"

const (
	// DefaultWindow is the default chunk size in characters.
	DefaultWindow = 1000

	// DefaultOverlap is the default overlap between consecutive chunks.
	DefaultOverlap = 200
)

// Span is one chunk of the source text. Start/End are character offsets,
// End exclusive.
type Span struct {
	Index   int
	Content string
	Start   int
	End     int
}

// Chunker splits text into windows of Window characters, each overlapping
// the previous by Overlap characters.
type Chunker struct {
	Window  int
	Overlap int
}

// New creates a Chunker, validating 0 <= overlap < window.
func New(window, overlap int) (*Chunker, error) {
	if window <= 0 {
		return nil, fmt.Errorf("chunk window must be positive, got %d", window)
	}
	if overlap < 0 || overlap >= window {
		return nil, fmt.Errorf("chunk overlap must be in [0, window), got %d", overlap)
	}
	return &Chunker{Window: window, Overlap: overlap}, nil
}

// Default returns a Chunker with the default window and overlap.
func Default() *Chunker {
	c, _ := New(DefaultWindow, DefaultOverlap)
	return c
}

// Split chunks content into spans covering [0, len) with no gaps: every span
// after the first starts at the previous span's end minus Overlap, and the
// final span ends exactly at the content length. Offsets count characters,
// not bytes, so multi-byte text chunks cleanly.
func (c *Chunker) Split(content string) []Span {
	runes := []rune(content)
	n := len(runes)
	if n == 0 {
		return nil
	}

	spans := make([]Span, 0, n/(c.Window-c.Overlap)+1)
	start := 0
	for index := 0; ; index++ {
		end := start + c.Window
		if end > n {
			end = n
		}
		spans = append(spans, Span{
			Index:   index,
			Content: string(runes[start:end]),
			Start:   start,
			End:     end,
		})
		if end == n {
			break
		}
		start = end - c.Overlap
	}
	return spans
}
