// Package assembler turns ranked retrieval candidates into merged context blocks.
package assembler

import (
	"strings"

	"docqa/internal/domain"
)

// Separator joins the text of chunks merged into one block.
const Separator = "\n\n"

// Dedup keeps the first occurrence of each (source, position) pair in the given
// order and stops once topK distinct candidates are kept. Duplicates do not
// count toward the quota.
func Dedup(candidates []domain.Candidate, topK int) []domain.Candidate {
	if topK <= 0 || len(candidates) == 0 {
		return nil
	}
	seen := make(map[domain.Key]struct{}, topK)
	out := make([]domain.Candidate, 0, min(topK, len(candidates)))
	for _, c := range candidates {
		k := c.Key()
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, c)
		if len(out) >= topK {
			break
		}
	}
	return out
}

// Merge collapses runs of candidates that are both adjacent in the list and
// contiguous in source position into single blocks. A position-contiguous pair
// separated by another candidate stays split, because list order is relevance
// order. Blocks come out in the order of their first candidate.
func Merge(deduped []domain.Candidate) []domain.MergedBlock {
	blocks := make([]domain.MergedBlock, 0, len(deduped))
	for i := 0; i < len(deduped); {
		anchor := deduped[i]
		var b strings.Builder
		b.WriteString(anchor.Text)
		j := i + 1
		for j < len(deduped) {
			next := deduped[j]
			if next.SourceID != anchor.SourceID || next.Position != anchor.Position+(j-i) {
				break
			}
			b.WriteString(Separator)
			b.WriteString(next.Text)
			j++
		}
		blocks = append(blocks, domain.MergedBlock{
			SourceID:      anchor.SourceID,
			StartPosition: anchor.Position,
			Text:          b.String(),
		})
		i = j
	}
	return blocks
}

// Assemble deduplicates candidates to at most topK and merges contiguous runs.
func Assemble(candidates []domain.Candidate, topK int) []domain.MergedBlock {
	return Merge(Dedup(candidates, topK))
}
