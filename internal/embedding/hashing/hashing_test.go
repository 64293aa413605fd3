package hashing

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dot(a, b []float64) float64 {
	s := 0.0
	for i := range a {
		s += a[i] * b[i]
	}
	return s
}

func TestEmbedDeterministicAndNormalized(t *testing.T) {
	e := NewEmbedder(64)
	assert.Equal(t, "hashing", e.Name())
	assert.Equal(t, 64, e.Dimension())

	out, err := e.Embed(context.Background(), []string{"Go is great for services.", "Go is great for services."})
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, out[0], out[1])
	assert.Len(t, out[0], 64)
	assert.InDelta(t, 1.0, math.Sqrt(dot(out[0], out[0])), 1e-9)
}

func TestEmbedRanksRelatedTextHigher(t *testing.T) {
	e := NewEmbedder(DefaultDimension)
	out, err := e.Embed(context.Background(), []string{
		"invoice payment due date",
		"the payment for the invoice is due on friday",
		"penguins live in antarctica",
	})
	require.NoError(t, err)
	assert.Greater(t, dot(out[0], out[1]), dot(out[0], out[2]))
}

func TestEmbedStopwordsOnlyGivesZeroVector(t *testing.T) {
	e := NewEmbedder(16)
	out, err := e.Embed(context.Background(), []string{"the and of"})
	require.NoError(t, err)
	assert.Equal(t, make([]float64, 16), out[0])
}

func TestEmbedHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewEmbedder(8).Embed(ctx, []string{"x"})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNewEmbedderDefaultDimension(t *testing.T) {
	assert.Equal(t, DefaultDimension, NewEmbedder(0).Dimension())
}
