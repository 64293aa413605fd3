// Package vectorstore holds the vector store backends and helpers shared by them.
package vectorstore

import (
	"math"

	"docqa/internal/domain"
)

// Storage persists vectors and supports similarity search.
type Storage = domain.VectorStore

// CosineDistance returns 1 - cos(a, b). Mismatched or zero vectors are maximally distant.
func CosineDistance(a, b []float64) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 2
	}
	var dot, na, nb float64
	for i := range a {
		dot += a[i] * b[i]
		na += a[i] * a[i]
		nb += b[i] * b[i]
	}
	if na == 0 || nb == 0 {
		return 1
	}
	return 1 - dot/(math.Sqrt(na)*math.Sqrt(nb))
}
