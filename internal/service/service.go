// Package service sequences extraction, indexing, retrieval and answering.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"docqa/internal/assembler"
	"docqa/internal/chunker"
	"docqa/internal/domain"
	"docqa/internal/extractor"
	"docqa/internal/indexer"
	"docqa/internal/prompt"
	"docqa/internal/retriever"
)

// ErrNoResponder is returned by Ask when no responder is configured.
var ErrNoResponder = errors.New("no responder configured")

// Deps are the collaborators a Service is built from. Responder may be nil,
// in which case only Preview is usable for questions.
type Deps struct {
	Extractor  domain.Extractor
	Chunker    *chunker.Chunker
	Embedder   domain.Embedder
	Store      domain.VectorStore
	Responder  domain.Responder
	Summarizer domain.Summarizer
}

// Options tunes request handling.
type Options struct {
	DefaultTopK      int
	SummarySentences int
	// CallTimeout bounds each embedder, store and responder call. Zero means no extra deadline.
	CallTimeout time.Duration
	Indexer     indexer.Options
}

// UploadResult describes one indexed document.
type UploadResult struct {
	SourceID string `json:"source_id"`
	Chunks   int    `json:"num_chunks"`
	Summary  string `json:"summary"`
}

// Answer is the outcome of a question. Answer is empty for previews.
type Answer struct {
	Query   string               `json:"query"`
	Answer  string               `json:"answer"`
	Sources []domain.Candidate   `json:"sources"`
	Blocks  []domain.MergedBlock `json:"blocks"`
	Prompt  string               `json:"prompt,omitempty"`
}

type Service struct {
	extractor  domain.Extractor
	chunker    *chunker.Chunker
	indexer    *indexer.Indexer
	retriever  *retriever.Retriever
	responder  domain.Responder
	summarizer domain.Summarizer
	opts       Options
	logger     *slog.Logger
}

func New(deps Deps, opts Options, logger *slog.Logger) (*Service, error) {
	if deps.Extractor == nil || deps.Chunker == nil || deps.Summarizer == nil {
		return nil, errors.New("service: extractor, chunker and summarizer are required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	ix, err := indexer.New(deps.Embedder, deps.Store, opts.Indexer, logger)
	if err != nil {
		return nil, err
	}
	rt, err := retriever.New(deps.Embedder, deps.Store, opts.DefaultTopK, logger)
	if err != nil {
		return nil, err
	}
	return &Service{
		extractor:  deps.Extractor,
		chunker:    deps.Chunker,
		indexer:    ix,
		retriever:  rt,
		responder:  deps.Responder,
		summarizer: deps.Summarizer,
		opts:       opts,
		logger:     logger,
	}, nil
}

// HasResponder reports whether Ask can generate answers.
func (s *Service) HasResponder() bool { return s.responder != nil }

func (s *Service) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.opts.CallTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.opts.CallTimeout)
}

// Upload extracts, chunks and indexes the file at path under sourceID.
// Re-uploading a sourceID replaces its previous chunks.
func (s *Service) Upload(ctx context.Context, path, sourceID, declaredType string) (UploadResult, error) {
	text, err := s.extractor.Extract(ctx, path, declaredType)
	if err != nil {
		return UploadResult{}, err
	}
	doc := domain.Document{
		ID:      sourceID,
		Path:    path,
		Name:    filepath.Base(path),
		Type:    extractor.Normalize(declaredType),
		Content: text,
	}
	chunks, err := s.chunker.Chunk(doc)
	if err != nil {
		return UploadResult{}, err
	}
	if len(chunks) == 0 {
		return UploadResult{}, fmt.Errorf("%s: %w", sourceID, domain.ErrNoContent)
	}
	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}

	callCtx, cancel := s.withTimeout(ctx)
	defer cancel()
	n, err := s.indexer.Index(callCtx, sourceID, texts)
	if err != nil {
		return UploadResult{}, err
	}

	summary, err := s.summarizer.Summarize(text, s.opts.SummarySentences)
	if err != nil {
		s.logger.WarnContext(ctx, "summary failed", "source_id", sourceID, "error", err)
	}
	return UploadResult{SourceID: sourceID, Chunks: n, Summary: summary}, nil
}

// Preview retrieves and assembles context for query and builds the prompt
// without calling the responder.
func (s *Service) Preview(ctx context.Context, query string, topK int) (Answer, error) {
	topK = s.retriever.TopK(topK)

	callCtx, cancel := s.withTimeout(ctx)
	defer cancel()
	candidates, err := s.retriever.Retrieve(callCtx, query, topK)
	if err != nil {
		return Answer{}, err
	}
	sources := assembler.Dedup(candidates, topK)
	blocks := assembler.Merge(sources)
	s.logger.DebugContext(ctx, "assembled context",
		"top_k", topK,
		"candidates", len(candidates),
		"blocks", len(blocks),
	)
	return Answer{
		Query:   query,
		Sources: sources,
		Blocks:  blocks,
		Prompt:  prompt.Build(query, blocks),
	}, nil
}

// Ask answers query from the indexed documents. With no matching context
// the responder is still asked and is expected to say it found nothing.
func (s *Service) Ask(ctx context.Context, query string, topK int) (Answer, error) {
	if s.responder == nil {
		return Answer{}, ErrNoResponder
	}
	start := time.Now()
	ans, err := s.Preview(ctx, query, topK)
	if err != nil {
		return Answer{}, err
	}

	callCtx, cancel := s.withTimeout(ctx)
	defer cancel()
	text, err := s.responder.Respond(callCtx, ans.Prompt)
	if err != nil {
		var ce *domain.CollaboratorError
		if !errors.As(err, &ce) {
			err = &domain.CollaboratorError{Kind: domain.KindResponder, Reason: domain.ReasonUnavailable, Op: "respond", Err: err}
		}
		return Answer{}, err
	}
	ans.Answer = text
	s.logger.InfoContext(ctx, "answered query",
		"blocks", len(ans.Blocks),
		"elapsed", time.Since(start).Truncate(time.Millisecond),
	)
	return ans, nil
}

// IngestPaths expands glob patterns and uploads every supported file, keyed by its base name.
// Unsupported files are skipped. It fails when nothing could be ingested.
func (s *Service) IngestPaths(ctx context.Context, patterns []string) ([]UploadResult, error) {
	var results []UploadResult
	for _, p := range patterns {
		matches, err := filepath.Glob(p)
		if err != nil {
			return results, fmt.Errorf("pattern %q: %w", p, err)
		}
		if matches == nil {
			matches = []string{p}
		}
		for _, m := range matches {
			typ := extractor.TypeFromName(m)
			if typ == "" {
				s.logger.WarnContext(ctx, "skipping unsupported file", "path", m)
				continue
			}
			res, err := s.Upload(ctx, m, filepath.Base(m), typ)
			if err != nil {
				return results, fmt.Errorf("ingest %s: %w", m, err)
			}
			results = append(results, res)
		}
	}
	if len(results) == 0 {
		return nil, fmt.Errorf("no pdf, docx or txt documents found: %w", domain.ErrNoContent)
	}
	return results, nil
}
