package embedding

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

// Backend names selected through Config.
const (
	BackendOpenAI = "openai"
	BackendOllama = "ollama"
	BackendLocal  = "local"
)

// Default models and dimensions per backend.
const (
	DefaultOpenAIModel = "text-embedding-3-small"
	DefaultOllamaModel = "nomic-embed-text"
	DefaultLocalModel  = "local-hash-embeddings"

	OpenAIDimension = 1536
	OllamaDimension = 768
	LocalDimension  = 384

	DefaultMaxTokens = 512
)

// base carries the behavior shared by every backend: truncation, blank
// handling, caching, and optional normalization around a raw encode call.
type base struct {
	model     string
	dimension int
	maxTokens int
	normalize bool
	cache     *Cache
}

// embedAll runs the shared pipeline. encode is called once with the cache
// misses, in order; its result must align with its input.
func (b *base) embedAll(ctx context.Context, texts []string, encode func(context.Context, []string) ([][]float32, error)) ([][]float32, error) {
	results := make([][]float32, len(texts))

	missTexts := make([]string, 0, len(texts))
	missIdx := make([]int, 0, len(texts))
	for i, text := range texts {
		text = truncateText(text, b.maxTokens)
		if isBlank(text) {
			results[i] = make([]float32, b.dimension)
			continue
		}
		hash := ComputeHash(text)
		if b.cache != nil {
			if vec, ok := b.cache.Get(hash); ok {
				results[i] = vec
				continue
			}
		}
		missTexts = append(missTexts, text)
		missIdx = append(missIdx, i)
	}

	if len(missTexts) > 0 {
		vectors, err := encode(ctx, missTexts)
		if err != nil {
			return nil, err
		}
		if len(vectors) != len(missTexts) {
			return nil, fmt.Errorf("%w: expected %d vectors, got %d", ErrBackendFailed, len(missTexts), len(vectors))
		}
		for j, vec := range vectors {
			if b.normalize {
				vec = NormalizeVector(vec)
			}
			results[missIdx[j]] = vec
			if b.cache != nil {
				b.cache.Set(ComputeHash(missTexts[j]), vec)
			}
		}
	}

	return results, nil
}

func (b *base) Dimension() int    { return b.dimension }
func (b *base) ModelName() string { return b.model }

// OpenAI backend

type openaiProvider struct {
	base
	apiKey string

	once   sync.Once
	client *openai.Client
}

func newOpenAIProvider(cfg Config, cache *Cache) (*openaiProvider, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%w: openai backend requires an API key", ErrInvalidInput)
	}
	model := cfg.Model
	if model == "" {
		model = DefaultOpenAIModel
	}
	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = DefaultMaxTokens
	}
	return &openaiProvider{
		base: base{
			model:     model,
			dimension: OpenAIDimension,
			maxTokens: maxTokens,
			normalize: cfg.Normalize,
			cache:     cache,
		},
		apiKey: cfg.APIKey,
	}, nil
}

// getClient constructs the API client on first use.
func (p *openaiProvider) getClient() *openai.Client {
	p.once.Do(func() {
		p.client = openai.NewClient(p.apiKey)
	})
	return p.client
}

func (p *openaiProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	vectors, err := p.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

func (p *openaiProvider) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	return p.embedAll(ctx, texts, func(ctx context.Context, misses []string) ([][]float32, error) {
		return retryWithBackoff(ctx, DefaultRetryConfig(), func() ([][]float32, error) {
			resp, err := p.getClient().CreateEmbeddings(ctx, openai.EmbeddingRequestStrings{
				Input: misses,
				Model: openai.EmbeddingModel(p.model),
			})
			if err != nil {
				return nil, fmt.Errorf("%w: %v", ErrBackendFailed, err)
			}
			vectors := make([][]float32, len(resp.Data))
			for i, d := range resp.Data {
				vectors[i] = d.Embedding
			}
			return vectors, nil
		})
	})
}

func (p *openaiProvider) Close() error { return nil }

// Ollama backend

type ollamaProvider struct {
	base
	baseURL string

	once   sync.Once
	client *http.Client
}

func newOllamaProvider(cfg Config, cache *Cache) *ollamaProvider {
	model := cfg.Model
	if model == "" {
		model = DefaultOllamaModel
	}
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}
	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = DefaultMaxTokens
	}
	return &ollamaProvider{
		base: base{
			model:     model,
			dimension: OllamaDimension,
			maxTokens: maxTokens,
			normalize: cfg.Normalize,
			cache:     cache,
		},
		baseURL: baseURL,
	}
}

func (p *ollamaProvider) getClient() *http.Client {
	p.once.Do(func() {
		p.client = &http.Client{Timeout: 120 * time.Second}
	})
	return p.client
}

type ollamaEmbedRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type ollamaEmbedResponse struct {
	Embeddings [][]float32 `json:"embeddings"`
}

func (p *ollamaProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	vectors, err := p.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

func (p *ollamaProvider) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	return p.embedAll(ctx, texts, func(ctx context.Context, misses []string) ([][]float32, error) {
		return retryWithBackoff(ctx, DefaultRetryConfig(), func() ([][]float32, error) {
			return p.callAPI(ctx, misses)
		})
	})
}

func (p *ollamaProvider) callAPI(ctx context.Context, texts []string) ([][]float32, error) {
	body, err := json.Marshal(ollamaEmbedRequest{Model: p.model, Input: texts})
	if err != nil {
		return nil, fmt.Errorf("marshal embed request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/api/embed", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.getClient().Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBackendFailed, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("%w: ollama returned %d: %s", ErrBackendFailed, resp.StatusCode, string(respBody))
	}

	var result ollamaEmbedResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode embed response: %w", err)
	}
	return result.Embeddings, nil
}

func (p *ollamaProvider) Close() error {
	if p.client != nil {
		p.client.CloseIdleConnections()
	}
	return nil
}

// Local backend: deterministic hash-derived vectors. No external model; used
// for development and tests.

type localProvider struct {
	base
}

func newLocalProvider(cfg Config, cache *Cache) *localProvider {
	model := cfg.Model
	if model == "" {
		model = DefaultLocalModel
	}
	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = DefaultMaxTokens
	}
	return &localProvider{
		base: base{
			model:     model,
			dimension: LocalDimension,
			maxTokens: maxTokens,
			normalize: cfg.Normalize,
			cache:     cache,
		},
	}
}

func (p *localProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	vectors, err := p.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

func (p *localProvider) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	return p.embedAll(ctx, texts, func(_ context.Context, misses []string) ([][]float32, error) {
		vectors := make([][]float32, len(misses))
		for i, text := range misses {
			vectors[i] = hashVector(text, p.dimension)
		}
		return vectors, nil
	})
}

func (p *localProvider) Close() error { return nil }

// hashVector derives a repeatable pseudo-embedding from the text digest by
// re-hashing the digest chain until the vector is filled.
func hashVector(text string, dimension int) []float32 {
	vec := make([]float32, dimension)
	digest := sha256.Sum256([]byte(text))
	i := 0
	for i < dimension {
		for _, b := range digest {
			if i >= dimension {
				break
			}
			vec[i] = float32(b)/127.5 - 1.0
			i++
		}
		digest = sha256.Sum256(digest[:])
	}
	return vec
}
