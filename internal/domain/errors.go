package domain

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrNoContent is returned when a document yields no chunkable text.
	ErrNoContent = errors.New("no content produced")
	// ErrInvalidChunkConfig is returned for chunk size and overlap combinations that cannot make progress.
	ErrInvalidChunkConfig = errors.New("invalid chunk configuration")
	// ErrUnsupportedType is returned for file types the extractor does not handle.
	ErrUnsupportedType = errors.New("unsupported file type")
	// ErrExtraction is returned when a supported file could not be read.
	ErrExtraction = errors.New("text extraction failed")
	// ErrEmptyQuery is returned when a question has no non-whitespace characters.
	ErrEmptyQuery = errors.New("query is empty")
)

// Kind names the external collaborator that failed.
type Kind string

const (
	KindEmbeddingStore Kind = "embedding_store"
	KindResponder      Kind = "responder"
)

// Reason classifies a collaborator failure.
type Reason string

const (
	ReasonUnavailable Reason = "unavailable"
	ReasonQuota       Reason = "quota_exceeded"
	ReasonMalformed   Reason = "malformed_request"
	ReasonEmpty       Reason = "empty_response"

	// ReasonRejected covers authentication, missing model or collection and
	// other configuration faults that repeating the call will not fix.
	ReasonRejected Reason = "rejected"
)

// ReasonForStatus maps an HTTP status from a collaborator to a failure reason.
func ReasonForStatus(status int) Reason {
	switch {
	case status == http.StatusTooManyRequests:
		return ReasonQuota
	case status == http.StatusUnauthorized, status == http.StatusForbidden, status == http.StatusNotFound:
		return ReasonRejected
	case status >= 400 && status < 500:
		return ReasonMalformed
	}
	return ReasonUnavailable
}

// CollaboratorError reports a failure of the embedding store or the responder.
type CollaboratorError struct {
	Kind   Kind
	Reason Reason
	Op     string
	Err    error
}

func (e *CollaboratorError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s %s: %s", e.Kind, e.Op, e.Reason)
	}
	return fmt.Sprintf("%s %s: %s: %v", e.Kind, e.Op, e.Reason, e.Err)
}

func (e *CollaboratorError) Unwrap() error { return e.Err }

// Retryable reports whether repeating the call may succeed.
func (e *CollaboratorError) Retryable() bool {
	switch e.Reason {
	case ReasonUnavailable, ReasonQuota:
		return true
	}
	return false
}

// EmbeddingStoreError wraps err as an unavailable embedding-store failure unless it already is a CollaboratorError.
func EmbeddingStoreError(op string, err error) error {
	if err == nil {
		return nil
	}
	var ce *CollaboratorError
	if errors.As(err, &ce) {
		return err
	}
	return &CollaboratorError{Kind: KindEmbeddingStore, Reason: ReasonUnavailable, Op: op, Err: err}
}

// IsRetryable reports whether err carries a retryable collaborator failure.
func IsRetryable(err error) bool {
	var ce *CollaboratorError
	return errors.As(err, &ce) && ce.Retryable()
}
