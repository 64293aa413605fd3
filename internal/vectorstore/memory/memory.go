package memory

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sync"

	"github.com/klauspost/compress/zstd"

	"docqa/internal/domain"
	"docqa/internal/vectorstore"
)

// Storage is an in-memory vector store using brute-force cosine distance.
// With a snapshot path it reloads its records on start and rewrites a
// zstd-compressed JSONL snapshot after every mutation.
type Storage struct {
	mu           sync.RWMutex
	dimension    int
	records      []domain.Record
	snapshotPath string
}

// NewStorage returns an empty store without persistence.
func NewStorage() *Storage { return &Storage{} }

// Open returns a store backed by the snapshot at path, loading it when present.
func Open(path string) (*Storage, error) {
	s := &Storage{snapshotPath: path}
	if path == "" {
		return s, nil
	}
	records, err := readSnapshot(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return s, nil
		}
		return nil, err
	}
	s.records = records
	if len(records) > 0 {
		s.dimension = len(records[0].Vector)
	}
	return s, nil
}

// Init fixes the vector dimension. It is idempotent and never drops records.
func (s *Storage) Init(_ context.Context, dimension int) error {
	if dimension <= 0 {
		return errors.New("invalid dimension")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.dimension != 0 && s.dimension != dimension && len(s.records) > 0 {
		return fmt.Errorf("vector dimension mismatch: store has %d, got %d", s.dimension, dimension)
	}
	s.dimension = dimension
	return nil
}

func (s *Storage) Upsert(_ context.Context, records []domain.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range records {
		if len(r.Vector) != s.dimension {
			return errors.New("vector dimension mismatch")
		}
	}
	byID := make(map[string]int, len(s.records))
	for i, r := range s.records {
		byID[r.ID] = i
	}
	for _, r := range records {
		if i, ok := byID[r.ID]; ok {
			s.records[i] = r
			continue
		}
		byID[r.ID] = len(s.records)
		s.records = append(s.records, r)
	}
	return s.persist()
}

func (s *Storage) Search(_ context.Context, vector []float64, k int) ([]domain.Candidate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if k <= 0 {
		k = 5
	}
	results := make([]domain.Candidate, 0, len(s.records))
	for _, r := range s.records {
		results = append(results, domain.Candidate{
			Chunk:    r.Chunk,
			Distance: vectorstore.CosineDistance(vector, r.Vector),
		})
	}
	slices.SortStableFunc(results, func(a, b domain.Candidate) int {
		switch {
		case a.Distance < b.Distance:
			return -1
		case a.Distance > b.Distance:
			return 1
		}
		return 0
	})
	if k > len(results) {
		k = len(results)
	}
	return results[:k], nil
}

func (s *Storage) DeleteBySource(_ context.Context, sourceID string, keep ...string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := make(map[string]struct{}, len(keep))
	for _, id := range keep {
		kept[id] = struct{}{}
	}
	before := len(s.records)
	s.records = slices.DeleteFunc(s.records, func(r domain.Record) bool {
		if r.SourceID != sourceID {
			return false
		}
		_, ok := kept[r.ID]
		return !ok
	})
	removed := before - len(s.records)
	if removed == 0 {
		return 0, nil
	}
	return removed, s.persist()
}

func (s *Storage) Count(context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records), nil
}

// Clear drops every record.
func (s *Storage) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = nil
	return s.persist()
}

// persist must be called with the write lock held.
func (s *Storage) persist() error {
	if s.snapshotPath == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(s.snapshotPath), 0o755); err != nil {
		return fmt.Errorf("create snapshot directory: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(s.snapshotPath), ".snapshot-*")
	if err != nil {
		return fmt.Errorf("create snapshot: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := writeSnapshot(tmp, s.records); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close snapshot: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.snapshotPath); err != nil {
		return fmt.Errorf("replace snapshot: %w", err)
	}
	return nil
}

func writeSnapshot(f *os.File, records []domain.Record) error {
	zw, err := zstd.NewWriter(f)
	if err != nil {
		return fmt.Errorf("create snapshot encoder: %w", err)
	}
	writer := bufio.NewWriter(zw)
	encoder := json.NewEncoder(writer)
	encoder.SetEscapeHTML(false)
	for _, r := range records {
		if err := encoder.Encode(r); err != nil {
			_ = zw.Close()
			return fmt.Errorf("write snapshot record: %w", err)
		}
	}
	if err := writer.Flush(); err != nil {
		_ = zw.Close()
		return fmt.Errorf("flush snapshot: %w", err)
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("finish snapshot: %w", err)
	}
	return nil
}

func readSnapshot(path string) ([]domain.Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	zr, err := zstd.NewReader(f)
	if err != nil {
		return nil, fmt.Errorf("open snapshot decoder: %w", err)
	}
	defer zr.Close()

	scanner := bufio.NewScanner(zr)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

	var records []domain.Record
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		if len(scanner.Bytes()) == 0 {
			continue
		}
		var r domain.Record
		if err := json.Unmarshal(scanner.Bytes(), &r); err != nil {
			return nil, fmt.Errorf("parse snapshot line %d: %w", lineNo, err)
		}
		records = append(records, r)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read snapshot: %w", err)
	}
	return records, nil
}
