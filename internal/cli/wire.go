package cli

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"docqa/internal/chunker"
	"docqa/internal/config"
	"docqa/internal/domain"
	"docqa/internal/embedding/hashing"
	"docqa/internal/embedding/openai"
	"docqa/internal/extractor"
	"docqa/internal/history"
	"docqa/internal/indexer"
	"docqa/internal/responder"
	"docqa/internal/service"
	"docqa/internal/summarizer"
	"docqa/internal/vectorstore"
	"docqa/internal/vectorstore/memory"
	"docqa/internal/vectorstore/qdrant"
)

func seconds(n int) time.Duration { return time.Duration(n) * time.Second }

func buildEmbedder(cfg *config.AppConfig) (domain.Embedder, error) {
	switch cfg.Embedder.Type {
	case "hashing", "":
		dim := hashing.DefaultDimension
		if cfg.Embedder.Hashing != nil && cfg.Embedder.Hashing.Dimension > 0 {
			dim = cfg.Embedder.Hashing.Dimension
		}
		return hashing.NewEmbedder(dim), nil
	case "openai":
		o := cfg.Embedder.OpenAI
		if o == nil {
			return nil, errors.New("openai embedder config missing")
		}
		client, err := openai.NewClient(openai.Config{
			BaseURL:           o.BaseURL,
			APIKeyEnv:         o.APIKeyEnv,
			Model:             o.Model,
			Timeout:           seconds(o.TimeoutSecs),
			MaxRetries:        o.MaxRetries,
			RequestsPerSecond: o.RequestsPerSecond,
		})
		if err != nil {
			return nil, fmt.Errorf("openai embedder init failed: %w", err)
		}
		return client, nil
	}
	return nil, fmt.Errorf("unknown embedder: %s", cfg.Embedder.Type)
}

func buildStore(cfg *config.AppConfig) (vectorstore.Storage, error) {
	switch cfg.VectorStore.Type {
	case "memory", "":
		if m := cfg.VectorStore.Memory; m != nil && m.SnapshotPath != "" {
			return memory.Open(m.SnapshotPath)
		}
		return memory.NewStorage(), nil
	case "qdrant":
		q := cfg.VectorStore.Qdrant
		if q == nil {
			return nil, errors.New("qdrant config missing")
		}
		return qdrant.NewStorage(qdrant.Config{
			URL:        q.URL,
			APIKey:     q.APIKey,
			Collection: q.Collection,
			Timeout:    seconds(q.TimeoutSecs),
		}), nil
	}
	return nil, fmt.Errorf("unknown vector store: %s", cfg.VectorStore.Type)
}

// buildResponder returns nil without error when answering is disabled or the API key is absent,
// leaving retrieval previews usable.
func buildResponder(cfg *config.AppConfig, logger *slog.Logger) domain.Responder {
	r := cfg.Responder
	if r.Type == "none" {
		return nil
	}
	resp, err := responder.New(responder.Config{
		BaseURL:           r.BaseURL,
		APIKeyEnv:         r.APIKeyEnv,
		Model:             r.Model,
		MaxTokens:         r.MaxTokens,
		Temperature:       r.Temperature,
		Timeout:           seconds(r.TimeoutSecs),
		MaxRetries:        r.MaxRetries,
		RequestsPerSecond: r.RequestsPerSecond,
	})
	if err != nil {
		logger.Warn("responder disabled", "error", err)
		return nil
	}
	return resp
}

func buildService(cfg *config.AppConfig, logger *slog.Logger) (*service.Service, error) {
	emb, err := buildEmbedder(cfg)
	if err != nil {
		return nil, err
	}
	store, err := buildStore(cfg)
	if err != nil {
		return nil, err
	}
	ex, err := extractor.New(cfg.Extractor.PDFBackend, logger)
	if err != nil {
		return nil, err
	}
	ch, err := chunker.New(cfg.Chunker.MaxChars, cfg.Chunker.Overlap)
	if err != nil {
		return nil, err
	}
	var sum domain.Summarizer
	switch cfg.Summarizer.Type {
	case "frequency", "":
		sum = summarizer.NewFrequencySummarizer()
	default:
		return nil, fmt.Errorf("unknown summarizer: %s", cfg.Summarizer.Type)
	}
	return service.New(service.Deps{
		Extractor:  ex,
		Chunker:    ch,
		Embedder:   emb,
		Store:      store,
		Responder:  buildResponder(cfg, logger),
		Summarizer: sum,
	}, service.Options{
		DefaultTopK:      cfg.Retrieval.TopK,
		SummarySentences: cfg.Summarizer.MaxSentences,
		CallTimeout:      cfg.RetrievalTimeout(),
		Indexer: indexer.Options{
			BatchSize:    cfg.Indexer.BatchSize,
			Concurrency:  cfg.Indexer.Concurrency,
			KeepExisting: cfg.Indexer.KeepExisting,
		},
	}, logger)
}

func openHistory(cfg *config.AppConfig) (*history.Store, error) {
	return history.Open(cfg.History.Path)
}
