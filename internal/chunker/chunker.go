package chunker

import (
	"fmt"
	"strings"

	"docqa/internal/domain"
)

// Validate rejects size and overlap settings that cannot make progress.
// Every retained token costs at least two estimated characters, so an overlap
// whose minimal footprint reaches maxChars would re-emit the carried window forever.
func Validate(maxChars, overlap int) error {
	if maxChars <= 0 {
		return fmt.Errorf("%w: max chars must be greater than zero, got %d", domain.ErrInvalidChunkConfig, maxChars)
	}
	if overlap < 0 {
		return fmt.Errorf("%w: overlap must be zero or greater, got %d", domain.ErrInvalidChunkConfig, overlap)
	}
	if 2*overlap >= maxChars {
		return fmt.Errorf("%w: overlap of %d words cannot fit in %d chars", domain.ErrInvalidChunkConfig, overlap, maxChars)
	}
	return nil
}

// Split breaks text into whitespace-delimited words and groups them into chunks
// whose estimated length reaches maxChars. After each emitted chunk the last
// overlap words are carried into the next one. Chunks are joined with single spaces.
func Split(text string, maxChars, overlap int) ([]string, error) {
	if err := Validate(maxChars, overlap); err != nil {
		return nil, err
	}
	words := strings.Fields(text)
	if len(words) == 0 {
		return nil, nil
	}

	var chunks []string
	buf := make([]string, 0, overlap+1)
	size := 0
	for _, w := range words {
		buf = append(buf, w)
		size += len(w) + 1
		if size < maxChars {
			continue
		}
		chunks = append(chunks, strings.Join(buf, " "))
		keep := overlap
		if keep > len(buf) {
			keep = len(buf)
		}
		carried := make([]string, keep, overlap+1)
		copy(carried, buf[len(buf)-keep:])
		buf = carried
		size = estimate(buf)
	}
	// The remainder goes out even when it holds only carried-over words.
	if len(buf) > 0 {
		chunks = append(chunks, strings.Join(buf, " "))
	}
	return chunks, nil
}

func estimate(words []string) int {
	n := 0
	for _, w := range words {
		n += len(w) + 1
	}
	return n
}

// Chunker splits documents into positioned chunks with a fixed configuration.
type Chunker struct {
	maxChars int
	overlap  int
}

// New returns a Chunker after validating its configuration.
func New(maxChars, overlap int) (*Chunker, error) {
	if err := Validate(maxChars, overlap); err != nil {
		return nil, err
	}
	return &Chunker{maxChars: maxChars, overlap: overlap}, nil
}

// MaxChars returns the configured chunk size estimate.
func (c *Chunker) MaxChars() int { return c.maxChars }

// Overlap returns the number of words carried between chunks.
func (c *Chunker) Overlap() int { return c.overlap }

// Chunk splits the document content and tags each chunk with its source and position.
func (c *Chunker) Chunk(document domain.Document) ([]domain.Chunk, error) {
	texts, err := Split(document.Content, c.maxChars, c.overlap)
	if err != nil {
		return nil, err
	}
	chunks := make([]domain.Chunk, len(texts))
	for i, t := range texts {
		chunks[i] = domain.Chunk{
			SourceID: document.ID,
			Position: i,
			Text:     t,
			Snippet:  domain.Snippet(t),
		}
	}
	return chunks, nil
}
