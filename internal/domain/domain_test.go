package domain

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSnippetLimitsRunes(t *testing.T) {
	short := "hello"
	assert.Equal(t, short, Snippet(short))

	long := strings.Repeat("é", SnippetLength+10)
	got := Snippet(long)
	assert.Equal(t, SnippetLength, len([]rune(got)))
	assert.True(t, strings.HasPrefix(long, got))
}

func TestCollaboratorErrorClassification(t *testing.T) {
	base := errors.New("connection refused")
	err := EmbeddingStoreError("search", base)

	var ce *CollaboratorError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, KindEmbeddingStore, ce.Kind)
	assert.True(t, ce.Retryable())
	assert.ErrorIs(t, err, base)
	assert.True(t, IsRetryable(fmt.Errorf("ask: %w", err)))

	malformed := &CollaboratorError{Kind: KindResponder, Reason: ReasonMalformed, Op: "respond"}
	assert.False(t, malformed.Retryable())
	assert.Contains(t, malformed.Error(), "malformed_request")
}

func TestReasonForStatus(t *testing.T) {
	cases := map[int]Reason{
		http.StatusTooManyRequests:     ReasonQuota,
		http.StatusUnauthorized:        ReasonRejected,
		http.StatusForbidden:           ReasonRejected,
		http.StatusNotFound:            ReasonRejected,
		http.StatusBadRequest:          ReasonMalformed,
		http.StatusConflict:            ReasonMalformed,
		http.StatusInternalServerError: ReasonUnavailable,
		http.StatusBadGateway:          ReasonUnavailable,
	}
	for status, want := range cases {
		assert.Equal(t, want, ReasonForStatus(status), "status %d", status)
	}
	assert.False(t, (&CollaboratorError{Reason: ReasonRejected}).Retryable())
}

func TestEmbeddingStoreErrorKeepsExistingKind(t *testing.T) {
	quota := &CollaboratorError{Kind: KindEmbeddingStore, Reason: ReasonQuota, Op: "embed"}
	assert.Same(t, quota, EmbeddingStoreError("index", quota).(*CollaboratorError))
	assert.NoError(t, EmbeddingStoreError("index", nil))
	assert.False(t, IsRetryable(context.Canceled))
}

func TestChunkKey(t *testing.T) {
	c := Chunk{SourceID: "a.pdf", Position: 3}
	assert.Equal(t, Key{SourceID: "a.pdf", Position: 3}, c.Key())
}
