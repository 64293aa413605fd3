package domain

import "context"

// SnippetLength is the maximum number of runes kept in Chunk.Snippet.
const SnippetLength = 200

// Document represents a single uploaded file after text extraction.
type Document struct {
	ID      string
	Path    string
	Name    string
	Type    string
	Content string
}

// Chunk is a contiguous span of a document's text, individually embedded and indexed.
type Chunk struct {
	SourceID string `json:"source_id"`
	Position int    `json:"position"`
	Text     string `json:"text"`
	Snippet  string `json:"snippet"`
}

// Key identifies a chunk within the index.
type Key struct {
	SourceID string
	Position int
}

// Key returns the (source, position) identity of the chunk.
func (c Chunk) Key() Key { return Key{SourceID: c.SourceID, Position: c.Position} }

// Candidate is a chunk returned by a similarity search.
// Lower distance means more relevant; the value is only an ordering key.
type Candidate struct {
	Chunk
	Distance float64 `json:"distance"`
}

// MergedBlock aggregates one or more list-adjacent, position-contiguous candidates of a source.
type MergedBlock struct {
	SourceID      string `json:"source_id"`
	StartPosition int    `json:"start_position"`
	Text          string `json:"text"`
}

// Record is the unit submitted to a vector store.
type Record struct {
	ID     string    `json:"id"`
	Vector []float64 `json:"vector"`
	Chunk
}

// Snippet returns a display preview of text limited to SnippetLength runes.
func Snippet(text string) string {
	n := 0
	for i := range text {
		if n == SnippetLength {
			return text[:i]
		}
		n++
	}
	return text
}

// Embedder converts free text into numeric vectors, one per input, in input order.
type Embedder interface {
	Name() string
	Embed(ctx context.Context, texts []string) ([][]float64, error)
}

// VectorStore persists vectors and supports similarity search.
// Implementations must be safe for concurrent use.
type VectorStore interface {
	Init(ctx context.Context, dimension int) error
	Upsert(ctx context.Context, records []Record) error
	Search(ctx context.Context, vector []float64, k int) ([]Candidate, error)
	// DeleteBySource removes every record of sourceID except those whose ID is in keep.
	DeleteBySource(ctx context.Context, sourceID string, keep ...string) (int, error)
	Count(ctx context.Context) (int, error)
}

// Extractor turns an uploaded file into plain text.
type Extractor interface {
	Extract(ctx context.Context, path, declaredType string) (string, error)
}

// Responder produces a generated answer for a prompt.
type Responder interface {
	Respond(ctx context.Context, prompt string) (string, error)
}

// Summarizer produces a brief summary of the provided text.
type Summarizer interface {
	Summarize(text string, maxSentences int) (string, error)
}
