package embedding

import (
	"context"
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCosineSimilarityIdentity(t *testing.T) {
	v := []float32{0.3, -0.7, 1.2, 0.01}
	assert.InDelta(t, 1.0, CosineSimilarity(v, v), 1e-9)
}

func TestCosineSimilarityZeroNorm(t *testing.T) {
	zero := []float32{0, 0, 0}
	v := []float32{1, 2, 3}

	assert.Equal(t, 0.0, CosineSimilarity(zero, v))
	assert.Equal(t, 0.0, CosineSimilarity(v, zero))
	assert.Equal(t, 0.0, CosineSimilarity(zero, zero))
}

func TestCosineSimilarityMismatchedLength(t *testing.T) {
	assert.Equal(t, 0.0, CosineSimilarity([]float32{1, 2}, []float32{1, 2, 3}))
}

func TestCosineSimilarityOrthogonalAndOpposite(t *testing.T) {
	assert.InDelta(t, 0.0, CosineSimilarity([]float32{1, 0}, []float32{0, 1}), 1e-9)
	assert.InDelta(t, -1.0, CosineSimilarity([]float32{1, 0}, []float32{-1, 0}), 1e-9)
}

func TestEuclideanSimilarity(t *testing.T) {
	v := []float32{1, 2, 3}
	assert.InDelta(t, 1.0, EuclideanSimilarity(v, v), 1e-9)

	// Distance 5 maps to 1/(1+5).
	a := []float32{0, 0}
	b := []float32{3, 4}
	assert.InDelta(t, 1.0/6.0, EuclideanSimilarity(a, b), 1e-9)

	assert.Equal(t, 0.0, EuclideanSimilarity([]float32{1}, []float32{1, 2}))
}

func TestNormalizeVector(t *testing.T) {
	v := NormalizeVector([]float32{3, 4})
	assert.InDelta(t, 0.6, float64(v[0]), 1e-6)
	assert.InDelta(t, 0.8, float64(v[1]), 1e-6)

	var norm float64
	for _, x := range v {
		norm += float64(x) * float64(x)
	}
	assert.InDelta(t, 1.0, math.Sqrt(norm), 1e-6)

	zero := NormalizeVector([]float32{0, 0, 0})
	assert.Equal(t, []float32{0, 0, 0}, zero)
}

func TestTruncateText(t *testing.T) {
	long := strings.Repeat("x", 5000)

	// 512 tokens * 4 chars each.
	truncated := truncateText(long, 512)
	assert.Len(t, truncated, 2048)

	assert.Equal(t, "short", truncateText("short", 512))
	assert.Equal(t, long, truncateText(long, 0))
}

func TestLocalProviderDeterministic(t *testing.T) {
	p, err := New(Config{Backend: BackendLocal})
	require.NoError(t, err)
	defer func() { _ = p.Close() }()

	ctx := context.Background()
	a, err := p.Embed(ctx, "hello world")
	require.NoError(t, err)
	b, err := p.Embed(ctx, "hello world")
	require.NoError(t, err)
	c, err := p.Embed(ctx, "something else")
	require.NoError(t, err)

	assert.Len(t, a, LocalDimension)
	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.InDelta(t, 1.0, CosineSimilarity(a, b), 1e-9)
}

func TestLocalProviderBlankText(t *testing.T) {
	p, err := New(Config{Backend: BackendLocal})
	require.NoError(t, err)

	ctx := context.Background()
	for _, text := range []string{"", "   ", "\n\t"} {
		vec, err := p.Embed(ctx, text)
		require.NoError(t, err)
		require.Len(t, vec, LocalDimension)
		assert.Equal(t, make([]float32, LocalDimension), vec)
	}
}

func TestLocalProviderBatchOrder(t *testing.T) {
	p, err := New(Config{Backend: BackendLocal})
	require.NoError(t, err)

	ctx := context.Background()
	texts := []string{"alpha", "", "beta", "alpha"}
	vectors, err := p.EmbedBatch(ctx, texts)
	require.NoError(t, err)
	require.Len(t, vectors, 4)

	single, err := p.Embed(ctx, "alpha")
	require.NoError(t, err)
	assert.Equal(t, single, vectors[0])
	assert.Equal(t, vectors[0], vectors[3])
	assert.Equal(t, make([]float32, LocalDimension), vectors[1])

	beta, err := p.Embed(ctx, "beta")
	require.NoError(t, err)
	assert.Equal(t, beta, vectors[2])
}

func TestLocalProviderNormalize(t *testing.T) {
	p, err := New(Config{Backend: BackendLocal, Normalize: true})
	require.NoError(t, err)

	vec, err := p.Embed(context.Background(), "normalize me")
	require.NoError(t, err)

	var sum float64
	for _, x := range vec {
		sum += float64(x) * float64(x)
	}
	assert.InDelta(t, 1.0, math.Sqrt(sum), 1e-5)
}

func TestCache(t *testing.T) {
	c := NewCache(2)

	c.Set("a", []float32{1})
	c.Set("b", []float32{2})
	require.Equal(t, 2, c.Size())

	// Touch "a" so "b" is the eviction victim.
	_, ok := c.Get("a")
	require.True(t, ok)

	c.Set("c", []float32{3})
	assert.Equal(t, 2, c.Size())

	_, ok = c.Get("b")
	assert.False(t, ok)
	_, ok = c.Get("a")
	assert.True(t, ok)
	_, ok = c.Get("c")
	assert.True(t, ok)
}

func TestCacheGetReturnsCopy(t *testing.T) {
	c := NewCache(10)
	c.Set("k", []float32{1, 2, 3})

	vec, ok := c.Get("k")
	require.True(t, ok)
	vec[0] = 99

	again, ok := c.Get("k")
	require.True(t, ok)
	assert.Equal(t, float32(1), again[0])
}

func TestComputeHashStable(t *testing.T) {
	assert.Equal(t, ComputeHash("text"), ComputeHash("text"))
	assert.NotEqual(t, ComputeHash("text"), ComputeHash("other"))
	assert.Len(t, ComputeHash("text"), 64)
}

func TestNewUnknownBackend(t *testing.T) {
	_, err := New(Config{Backend: "quantum"})
	assert.ErrorIs(t, err, ErrUnknownBackend)
}

func TestNewOpenAIRequiresKey(t *testing.T) {
	_, err := New(Config{Backend: BackendOpenAI})
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestHashVectorRange(t *testing.T) {
	vec := hashVector("any text at all", 384)
	require.Len(t, vec, 384)
	for _, x := range vec {
		assert.GreaterOrEqual(t, x, float32(-1))
		assert.LessOrEqual(t, x, float32(1))
	}
}
