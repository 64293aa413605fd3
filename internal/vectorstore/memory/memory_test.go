package memory

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docqa/internal/domain"
)

func rec(id, src string, pos int, vec ...float64) domain.Record {
	return domain.Record{ID: id, Vector: vec, Chunk: domain.Chunk{SourceID: src, Position: pos, Text: id}}
}

func TestStorageSearchOrdersByDistance(t *testing.T) {
	ctx := context.Background()
	s := NewStorage()
	require.NoError(t, s.Init(ctx, 2))
	require.NoError(t, s.Upsert(ctx, []domain.Record{
		rec("far", "a", 0, 0, 1),
		rec("near", "a", 1, 1, 0),
		rec("mid", "b", 0, 1, 1),
	}))

	res, err := s.Search(ctx, []float64{0.9, 0.1}, 2)
	require.NoError(t, err)
	require.Len(t, res, 2)
	assert.Equal(t, "near", res[0].Text)
	assert.Equal(t, "mid", res[1].Text)
	assert.Less(t, res[0].Distance, res[1].Distance)

	all, err := s.Search(ctx, []float64{1, 0}, 10)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestStorageDeleteBySource(t *testing.T) {
	ctx := context.Background()
	s := NewStorage()
	require.NoError(t, s.Init(ctx, 1))
	require.NoError(t, s.Upsert(ctx, []domain.Record{
		rec("1", "a", 0, 1), rec("2", "a", 1, 1), rec("3", "b", 0, 1),
	}))

	n, err := s.DeleteBySource(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	count, _ := s.Count(ctx)
	assert.Equal(t, 1, count)

	n, err = s.DeleteBySource(ctx, "missing")
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestStorageUpsertReplacesByID(t *testing.T) {
	ctx := context.Background()
	s := NewStorage()
	require.NoError(t, s.Init(ctx, 1))
	require.NoError(t, s.Upsert(ctx, []domain.Record{rec("1", "a", 0, 1)}))
	updated := rec("1", "a", 0, 1)
	updated.Text = "changed"
	require.NoError(t, s.Upsert(ctx, []domain.Record{updated}))

	res, err := s.Search(ctx, []float64{1}, 5)
	require.NoError(t, err)
	require.Len(t, res, 1)
	assert.Equal(t, "changed", res[0].Text)
}

func TestStorageDimensionChecks(t *testing.T) {
	ctx := context.Background()
	s := NewStorage()
	assert.Error(t, s.Init(ctx, 0))
	require.NoError(t, s.Init(ctx, 2))
	assert.Error(t, s.Upsert(ctx, []domain.Record{rec("x", "a", 0, 1, 2, 3)}))
	require.NoError(t, s.Upsert(ctx, []domain.Record{rec("y", "a", 0, 1, 2)}))
	assert.Error(t, s.Init(ctx, 3))
	assert.NoError(t, s.Init(ctx, 2))
}

func TestStorageSnapshotRoundTrip(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "index", "chunks.jsonl.zst")

	s, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, s.Init(ctx, 2))
	require.NoError(t, s.Upsert(ctx, []domain.Record{
		rec("1", "a.pdf", 0, 1, 0), rec("2", "a.pdf", 1, 0, 1), rec("3", "b.txt", 0, 1, 1),
	}))
	_, err = s.DeleteBySource(ctx, "b.txt")
	require.NoError(t, err)

	reopened, err := Open(path)
	require.NoError(t, err)
	count, err := reopened.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	res, err := reopened.Search(ctx, []float64{0, 1}, 1)
	require.NoError(t, err)
	require.Len(t, res, 1)
	assert.Equal(t, domain.Key{SourceID: "a.pdf", Position: 1}, res[0].Key())

	require.NoError(t, reopened.Clear())
	again, err := Open(path)
	require.NoError(t, err)
	count, _ = again.Count(ctx)
	assert.Zero(t, count)
}

func TestStorageConcurrentAccess(t *testing.T) {
	ctx := context.Background()
	s := NewStorage()
	require.NoError(t, s.Init(ctx, 2))

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_ = s.Upsert(ctx, []domain.Record{rec(fmt.Sprintf("id-%d", i), "src", i, 1, float64(i))})
		}()
		go func() {
			defer wg.Done()
			_, _ = s.Search(ctx, []float64{1, 1}, 3)
		}()
	}
	wg.Wait()
	count, _ := s.Count(ctx)
	assert.Equal(t, 8, count)
}
