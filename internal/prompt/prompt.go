// Package prompt renders merged context blocks and a question into responder instructions.
package prompt

import (
	"fmt"
	"strings"

	"docqa/internal/domain"
)

// NoMoreItems is the closing line the responder is asked to write when the context is exhausted.
const NoMoreItems = "No other items found in the provided context."

const template = `You are a precise assistant. The user question is:
"%s"

Below is the retrieved context from documents. Carefully read the context and extract ALL distinct items that answer the question (for example: values, types, names, etc.).

Instructions:
- Return an enumerated list (1., 2., 3., ...) with each item on its own line.
- After each item include in parentheses the source filename and part number, e.g. (file.pdf part 3).
- If you are certain the context does not contain additional items, write a final line: "%s"
- If uncertain, say "I could not find more items with high confidence."

Context:
%s

Answer:
`

// RenderBlock formats one block with its provenance label.
func RenderBlock(b domain.MergedBlock) string {
	return fmt.Sprintf("From %s (part %d):\n%s", b.SourceID, b.StartPosition, b.Text)
}

// RenderContext joins all rendered blocks with blank lines, in the given order.
func RenderContext(blocks []domain.MergedBlock) string {
	parts := make([]string, len(blocks))
	for i, b := range blocks {
		parts[i] = RenderBlock(b)
	}
	return strings.Join(parts, "\n\n")
}

// Build wraps the rendered context and the literal query into the answer template.
// Blocks are never filtered or truncated.
func Build(query string, blocks []domain.MergedBlock) string {
	return fmt.Sprintf(template, query, NoMoreItems, RenderContext(blocks))
}
