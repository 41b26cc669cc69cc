package providers

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisteredEmbedders(t *testing.T) {
	names := List()
	assert.Contains(t, names, "openai")
	assert.Contains(t, names, "ollama")
	assert.Contains(t, names, "hash")

	_, err := GetEmbedderFactory("nope")
	assert.Error(t, err)
}

func TestHashEmbedder(t *testing.T) {
	factory, err := GetEmbedderFactory("hash")
	require.NoError(t, err)
	e, err := factory(map[string]interface{}{"dimension": 64})
	require.NoError(t, err)

	dim, err := e.GetDimension()
	require.NoError(t, err)
	assert.Equal(t, 64, dim)

	ctx := context.Background()
	a, err := e.Embed(ctx, "Barn owls hunt at night")
	require.NoError(t, err)
	b, err := e.Embed(ctx, "barn OWLS hunt, at night!")
	require.NoError(t, err)
	c, err := e.Embed(ctx, "tax forms for small businesses")
	require.NoError(t, err)

	require.Len(t, a, 64)
	assert.InDelta(t, 1.0, dot(a, a), 1e-9)
	assert.InDelta(t, 1.0, dot(a, b), 1e-9)
	assert.Less(t, dot(a, c), dot(a, b))

	empty, err := e.Embed(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, 0.0, dot(empty, empty))
}

func TestOpenAIEmbedderRequiresKey(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")
	_, err := NewOpenAIEmbedder(map[string]interface{}{})
	assert.Error(t, err)

	e, err := NewOpenAIEmbedder(map[string]interface{}{"api_key": "k", "model": "text-embedding-3-large"})
	require.NoError(t, err)
	dim, err := e.GetDimension()
	require.NoError(t, err)
	assert.Equal(t, 3072, dim)
}

func TestOllamaEmbedderDimensionUnknownUntilUsed(t *testing.T) {
	e, err := NewOllamaEmbedder(map[string]interface{}{"host": "http://127.0.0.1:1"})
	require.NoError(t, err)
	_, err = e.GetDimension()
	assert.Error(t, err)
}

func dot(a, b []float64) float64 {
	var s float64
	for i := range a {
		s += a[i] * b[i]
	}
	if math.IsNaN(s) {
		return 0
	}
	return s
}
