// Package indexer embeds document chunks and writes them to the vector store.
package indexer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"docqa/internal/domain"
)

// Options tunes how chunks are embedded and written.
type Options struct {
	// BatchSize is the number of chunks sent to the embedder per call.
	BatchSize int
	// Concurrency caps the number of embedding calls in flight.
	Concurrency int
	// KeepExisting skips the purge of previously indexed chunks of the same source.
	KeepExisting bool
}

// Indexer assigns identifiers to chunks, embeds them and upserts them as one batch.
type Indexer struct {
	embedder domain.Embedder
	store    domain.VectorStore
	opts     Options
	logger   *slog.Logger
	newID    func() string
}

// New constructs an Indexer.
func New(embedder domain.Embedder, store domain.VectorStore, opts Options, logger *slog.Logger) (*Indexer, error) {
	if embedder == nil {
		return nil, errors.New("indexer: embedder must not be nil")
	}
	if store == nil {
		return nil, errors.New("indexer: store must not be nil")
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = 32
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = 4
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Indexer{embedder: embedder, store: store, opts: opts, logger: logger, newID: uuid.NewString}, nil
}

// Index embeds chunks in sequence order and submits them for sourceID.
// Unless KeepExisting is set, chunks previously indexed for sourceID are
// removed once the new ones are stored, so re-uploading a document replaces
// it and a failed write leaves the previous version searchable.
func (ix *Indexer) Index(ctx context.Context, sourceID string, chunks []string) (int, error) {
	if len(chunks) == 0 {
		return 0, domain.ErrNoContent
	}
	start := time.Now()

	vectors, err := ix.embed(ctx, chunks)
	if err != nil {
		return 0, err
	}

	records := make([]domain.Record, len(chunks))
	for i, text := range chunks {
		records[i] = domain.Record{
			ID:     ix.newID(),
			Vector: vectors[i],
			Chunk: domain.Chunk{
				SourceID: sourceID,
				Position: i,
				Text:     text,
				Snippet:  domain.Snippet(text),
			},
		}
	}

	if err := ix.store.Init(ctx, len(vectors[0])); err != nil {
		return 0, domain.EmbeddingStoreError("init", err)
	}
	if err := ix.store.Upsert(ctx, records); err != nil {
		return 0, domain.EmbeddingStoreError("upsert", err)
	}
	if !ix.opts.KeepExisting {
		ids := make([]string, len(records))
		for i, r := range records {
			ids[i] = r.ID
		}
		removed, err := ix.store.DeleteBySource(ctx, sourceID, ids...)
		if err != nil {
			return 0, domain.EmbeddingStoreError("delete", err)
		}
		if removed > 0 {
			ix.logger.InfoContext(ctx, "replaced previous chunks", "source_id", sourceID, "removed", removed)
		}
	}

	ix.logger.InfoContext(ctx, "indexed source",
		"source_id", sourceID,
		"chunks", len(records),
		"elapsed", time.Since(start).Truncate(time.Millisecond),
	)
	return len(records), nil
}

func (ix *Indexer) embed(ctx context.Context, chunks []string) ([][]float64, error) {
	vectors := make([][]float64, len(chunks))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(ix.opts.Concurrency)
	for lo := 0; lo < len(chunks); lo += ix.opts.BatchSize {
		hi := min(lo+ix.opts.BatchSize, len(chunks))
		g.Go(func() error {
			out, err := ix.embedder.Embed(gctx, chunks[lo:hi])
			if err != nil {
				return domain.EmbeddingStoreError("embed", err)
			}
			if len(out) != hi-lo {
				return &domain.CollaboratorError{
					Kind:   domain.KindEmbeddingStore,
					Reason: domain.ReasonEmpty,
					Op:     "embed",
					Err:    fmt.Errorf("got %d vectors for %d chunks", len(out), hi-lo),
				}
			}
			copy(vectors[lo:hi], out)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	dim := len(vectors[0])
	for i, v := range vectors {
		if len(v) == 0 || len(v) != dim {
			return nil, &domain.CollaboratorError{
				Kind:   domain.KindEmbeddingStore,
				Reason: domain.ReasonEmpty,
				Op:     "embed",
				Err:    fmt.Errorf("chunk %d has %d dimensions, want %d", i, len(v), dim),
			}
		}
	}
	return vectors, nil
}
