package qdrant

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"docqa/internal/domain"
)

// errNotFound marks a 404 from Qdrant, typically a missing collection.
var errNotFound = errors.New("qdrant: not found")

// Storage is a minimal REST client to Qdrant.
// It assumes cosine distance and creates the collection if missing.
type Storage struct {
	url        string
	apiKey     string
	collection string
	client     *http.Client
}

type Config struct {
	URL        string
	APIKey     string
	Collection string
	Timeout    time.Duration
}

func NewStorage(cfg Config) *Storage {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	return &Storage{
		url:        strings.TrimRight(cfg.URL, "/"),
		apiKey:     cfg.APIKey,
		collection: cfg.Collection,
		client:     &http.Client{Timeout: timeout},
	}
}

type point struct {
	ID      string    `json:"id"`
	Vector  []float64 `json:"vector"`
	Payload payload   `json:"payload"`
}

type payload struct {
	SourceID string `json:"source_id"`
	Position int    `json:"position"`
	Text     string `json:"text"`
	Snippet  string `json:"snippet"`
}

func (s *Storage) collectionURL(suffix string) string {
	return fmt.Sprintf("%s/collections/%s%s", s.url, s.collection, suffix)
}

// Init creates the collection when it does not exist yet. Existing points are kept.
func (s *Storage) Init(ctx context.Context, dimension int) error {
	if dimension <= 0 {
		return errors.New("invalid dimension")
	}
	err := s.do(ctx, http.MethodGet, s.collectionURL(""), nil, nil)
	if err == nil {
		return nil
	}
	if !errors.Is(err, errNotFound) {
		return err
	}
	body := map[string]any{
		"vectors": map[string]any{
			"size":     dimension,
			"distance": "Cosine",
		},
	}
	return s.do(ctx, http.MethodPut, s.collectionURL(""), body, nil)
}

func (s *Storage) Upsert(ctx context.Context, records []domain.Record) error {
	if len(records) == 0 {
		return nil
	}
	points := make([]point, len(records))
	for i, r := range records {
		points[i] = point{
			ID:     r.ID,
			Vector: r.Vector,
			Payload: payload{
				SourceID: r.SourceID,
				Position: r.Position,
				Text:     r.Text,
				Snippet:  r.Snippet,
			},
		}
	}
	body := map[string]any{"points": points}
	return s.do(ctx, http.MethodPut, s.collectionURL("/points?wait=true"), body, nil)
}

// Search returns the nearest points as candidates with distance 1 - score.
// A missing collection means nothing was indexed yet and yields no candidates.
func (s *Storage) Search(ctx context.Context, vector []float64, topK int) ([]domain.Candidate, error) {
	if topK <= 0 {
		topK = 5
	}
	req := map[string]any{
		"vector":       vector,
		"limit":        topK,
		"with_payload": true,
	}
	var resp struct {
		Result []struct {
			Score   float64 `json:"score"`
			Payload payload `json:"payload"`
		} `json:"result"`
	}
	if err := s.do(ctx, http.MethodPost, s.collectionURL("/points/search"), req, &resp); err != nil {
		if errors.Is(err, errNotFound) {
			return nil, nil
		}
		return nil, err
	}
	results := make([]domain.Candidate, 0, len(resp.Result))
	for _, r := range resp.Result {
		results = append(results, domain.Candidate{
			Chunk: domain.Chunk{
				SourceID: r.Payload.SourceID,
				Position: r.Payload.Position,
				Text:     r.Payload.Text,
				Snippet:  r.Payload.Snippet,
			},
			Distance: 1 - r.Score,
		})
	}
	return results, nil
}

func sourceFilter(sourceID string, keep []string) map[string]any {
	filter := map[string]any{
		"must": []map[string]any{
			{"key": "source_id", "match": map[string]any{"value": sourceID}},
		},
	}
	if len(keep) > 0 {
		filter["must_not"] = []map[string]any{{"has_id": keep}}
	}
	return filter
}

func (s *Storage) DeleteBySource(ctx context.Context, sourceID string, keep ...string) (int, error) {
	n, err := s.count(ctx, sourceFilter(sourceID, keep))
	if err != nil {
		if errors.Is(err, errNotFound) {
			return 0, nil
		}
		return 0, err
	}
	if n == 0 {
		return 0, nil
	}
	body := map[string]any{"filter": sourceFilter(sourceID, keep)}
	if err := s.do(ctx, http.MethodPost, s.collectionURL("/points/delete?wait=true"), body, nil); err != nil {
		return 0, err
	}
	return n, nil
}

func (s *Storage) Count(ctx context.Context) (int, error) {
	n, err := s.count(ctx, nil)
	if errors.Is(err, errNotFound) {
		return 0, nil
	}
	return n, err
}

func (s *Storage) count(ctx context.Context, filter map[string]any) (int, error) {
	body := map[string]any{"exact": true}
	if filter != nil {
		body["filter"] = filter
	}
	var resp struct {
		Result struct {
			Count int `json:"count"`
		} `json:"result"`
	}
	if err := s.do(ctx, http.MethodPost, s.collectionURL("/points/count"), body, &resp); err != nil {
		return 0, err
	}
	return resp.Result.Count, nil
}

func (s *Storage) do(ctx context.Context, method, url string, body any, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("qdrant marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return fmt.Errorf("qdrant create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if s.apiKey != "" {
		req.Header.Set("api-key", s.apiKey)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound {
		return fmt.Errorf("%w: %s %s", errNotFound, method, url)
	}
	if resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &domain.CollaboratorError{
			Kind:   domain.KindEmbeddingStore,
			Reason: domain.ReasonForStatus(resp.StatusCode),
			Op:     method,
			Err:    fmt.Errorf("qdrant %s failed: %s: %s", url, resp.Status, strings.TrimSpace(string(raw))),
		}
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}
