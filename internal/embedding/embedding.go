// Package embedding converts text into fixed-dimension float vectors through
// a configured backend, with LRU caching and retry for remote models.
package embedding

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"math"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
)

// Common errors
var (
	ErrInvalidInput   = errors.New("invalid input")
	ErrBackendFailed  = errors.New("embedding backend failed")
	ErrUnknownBackend = errors.New("unknown embedding backend")
)

// Provider converts text to vectors. Implementations load their model lazily
// on first use, not at construction.
type Provider interface {
	// Embed returns the vector for a single text. Empty or whitespace-only
	// text yields a zero vector of the model's dimensionality.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch embeds texts in order; the result has the same length as
	// the input.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Dimension returns the vector dimensionality of the model.
	Dimension() int

	// ModelName returns the model identifier stored alongside embeddings.
	ModelName() string

	// Close releases any resources held by the provider.
	Close() error
}

// Config selects and tunes the embedding backend at startup.
type Config struct {
	Backend   string // openai | ollama | local
	Model     string
	APIKey    string
	BaseURL   string // ollama endpoint
	MaxTokens int    // input budget; texts truncated to MaxTokens*4 chars
	Normalize bool   // L2-normalize output vectors
	CacheSize int
	BatchSize int
}

// charsPerToken approximates the character budget per model token.
const charsPerToken = 4

// Cache is an in-memory LRU of embeddings keyed by content hash.
type Cache struct {
	cache *lru.Cache[string, []float32]
}

// NewCache creates an embedding cache with LRU eviction.
func NewCache(maxLen int) *Cache {
	if maxLen <= 0 {
		maxLen = 10000
	}
	cache, err := lru.New[string, []float32](maxLen)
	if err != nil {
		cache, _ = lru.New[string, []float32](10000)
	}
	return &Cache{cache: cache}
}

// Get retrieves a copy of a cached vector so caller mutations cannot corrupt
// the cache.
func (c *Cache) Get(hash string) ([]float32, bool) {
	vec, ok := c.cache.Get(hash)
	if !ok {
		return nil, false
	}
	out := make([]float32, len(vec))
	copy(out, vec)
	return out, true
}

// Set stores a vector; eviction is automatic at capacity.
func (c *Cache) Set(hash string, vec []float32) {
	c.cache.Add(hash, vec)
}

// Size returns the current cache size.
func (c *Cache) Size() int {
	return c.cache.Len()
}

// Clear empties the cache.
func (c *Cache) Clear() {
	c.cache.Purge()
}

// ComputeHash computes the SHA-256 cache key for a text.
func ComputeHash(text string) string {
	h := sha256.Sum256([]byte(text))
	return hex.EncodeToString(h[:])
}

// New selects a backend from cfg. Selection happens at startup; there is no
// runtime fallback between backends.
func New(cfg Config) (Provider, error) {
	cache := NewCache(cfg.CacheSize)
	switch strings.ToLower(cfg.Backend) {
	case BackendOpenAI:
		return newOpenAIProvider(cfg, cache)
	case BackendOllama:
		return newOllamaProvider(cfg, cache), nil
	case BackendLocal, "":
		return newLocalProvider(cfg, cache), nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownBackend, cfg.Backend)
	}
}

// truncateText limits text to the model's input budget, in characters.
func truncateText(text string, maxTokens int) string {
	if maxTokens <= 0 {
		return text
	}
	limit := maxTokens * charsPerToken
	runes := []rune(text)
	if len(runes) <= limit {
		return text
	}
	return string(runes[:limit])
}

// isBlank reports whether text has no embeddable content.
func isBlank(text string) bool {
	return strings.TrimSpace(text) == ""
}

// NormalizeVector normalizes a vector to unit length in place and returns it.
// A zero vector is returned unchanged.
func NormalizeVector(v []float32) []float32 {
	var sum float64
	for _, val := range v {
		sum += float64(val) * float64(val)
	}
	if sum == 0 {
		return v
	}
	norm := float32(math.Sqrt(sum))
	for i := range v {
		v[i] /= norm
	}
	return v
}
