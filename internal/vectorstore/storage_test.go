package vectorstore

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCosineDistance(t *testing.T) {
	assert.InDelta(t, 0, CosineDistance([]float64{1, 0}, []float64{2, 0}), 1e-12)
	assert.InDelta(t, 1, CosineDistance([]float64{1, 0}, []float64{0, 1}), 1e-12)
	assert.InDelta(t, 2, CosineDistance([]float64{1, 0}, []float64{-1, 0}), 1e-12)
	assert.Equal(t, 1.0, CosineDistance([]float64{0, 0}, []float64{1, 0}))
	assert.Equal(t, 2.0, CosineDistance([]float64{1}, []float64{1, 0}))
}
