// Package retriever fetches ranked candidates for a query from the embedding store.
package retriever

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"strings"
	"time"

	"docqa/internal/domain"
)

// DefaultTopK is used when a caller asks for zero or fewer results.
const DefaultTopK = 4

// Retriever embeds a query and returns over-fetched candidates sorted by distance.
type Retriever struct {
	embedder    domain.Embedder
	store       domain.VectorStore
	defaultTopK int
	logger      *slog.Logger
}

// New constructs a Retriever. defaultTopK applies when Retrieve is called with topK <= 0.
func New(embedder domain.Embedder, store domain.VectorStore, defaultTopK int, logger *slog.Logger) (*Retriever, error) {
	if embedder == nil {
		return nil, errors.New("retriever: embedder must not be nil")
	}
	if store == nil {
		return nil, errors.New("retriever: store must not be nil")
	}
	if defaultTopK <= 0 {
		defaultTopK = DefaultTopK
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Retriever{embedder: embedder, store: store, defaultTopK: defaultTopK, logger: logger}, nil
}

// TopK resolves the effective result count for a request.
func (r *Retriever) TopK(topK int) int {
	if topK <= 0 {
		return r.defaultTopK
	}
	return topK
}

// OverFetch returns how many neighbours to request so that at least topK
// distinct chunks are likely to survive deduplication.
func OverFetch(topK int) int {
	return max(topK*3, topK+5)
}

// Retrieve embeds query, requests OverFetch(topK) neighbours and returns them
// sorted by ascending distance. Fewer results than requested is not an error.
func (r *Retriever) Retrieve(ctx context.Context, query string, topK int) ([]domain.Candidate, error) {
	if strings.TrimSpace(query) == "" {
		return nil, domain.ErrEmptyQuery
	}
	topK = r.TopK(topK)
	start := time.Now()

	vectors, err := r.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, domain.EmbeddingStoreError("embed query", err)
	}
	if len(vectors) != 1 || len(vectors[0]) == 0 {
		return nil, &domain.CollaboratorError{Kind: domain.KindEmbeddingStore, Reason: domain.ReasonEmpty, Op: "embed query"}
	}

	n := OverFetch(topK)
	candidates, err := r.store.Search(ctx, vectors[0], n)
	if err != nil {
		return nil, domain.EmbeddingStoreError("search", err)
	}
	SortByDistance(candidates)

	r.logger.DebugContext(ctx, "retrieved candidates",
		"top_k", topK,
		"requested", n,
		"candidates", len(candidates),
		"elapsed", time.Since(start).Truncate(time.Millisecond),
	)
	return candidates, nil
}

// SortByDistance orders candidates by ascending distance; ties keep their input order.
func SortByDistance(candidates []domain.Candidate) {
	slices.SortStableFunc(candidates, func(a, b domain.Candidate) int {
		switch {
		case a.Distance < b.Distance:
			return -1
		case a.Distance > b.Distance:
			return 1
		}
		return 0
	})
}
