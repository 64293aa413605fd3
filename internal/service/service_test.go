package service

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docqa/internal/chunker"
	"docqa/internal/domain"
	"docqa/internal/embedding/hashing"
	"docqa/internal/extractor"
	"docqa/internal/logging"
	"docqa/internal/summarizer"
	"docqa/internal/vectorstore/memory"
)

type fakeResponder struct {
	prompts []string
	answer  string
	err     error
}

func (f *fakeResponder) Respond(_ context.Context, prompt string) (string, error) {
	f.prompts = append(f.prompts, prompt)
	return f.answer, f.err
}

type fixture struct {
	svc       *Service
	store     *memory.Storage
	responder *fakeResponder
	dir       string
}

func newFixture(t *testing.T, withResponder bool) *fixture {
	t.Helper()
	ex, err := extractor.New("", logging.Discard())
	require.NoError(t, err)
	ch, err := chunker.New(60, 2)
	require.NoError(t, err)
	f := &fixture{store: memory.NewStorage(), responder: &fakeResponder{answer: "1. Paris (capitals.txt part 0)"}, dir: t.TempDir()}
	deps := Deps{
		Extractor:  ex,
		Chunker:    ch,
		Embedder:   hashing.NewEmbedder(256),
		Store:      f.store,
		Summarizer: summarizer.NewFrequencySummarizer(),
	}
	if withResponder {
		deps.Responder = f.responder
	}
	f.svc, err = New(deps, Options{DefaultTopK: 4, SummarySentences: 1}, logging.Discard())
	require.NoError(t, err)
	return f
}

func (f *fixture) write(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(f.dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

const capitals = "Paris is the capital of France. Berlin is the capital of Germany. " +
	"Madrid is the capital of Spain. Rome is the capital of Italy. Lisbon is the capital of Portugal."

func TestUploadAndAsk(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()

	res, err := f.svc.Upload(ctx, f.write(t, "capitals.txt", capitals), "capitals.txt", "txt")
	require.NoError(t, err)
	assert.Equal(t, "capitals.txt", res.SourceID)
	assert.Greater(t, res.Chunks, 1)
	assert.NotEmpty(t, res.Summary)

	ans, err := f.svc.Ask(ctx, "What is the capital of France?", 2)
	require.NoError(t, err)
	assert.Equal(t, "1. Paris (capitals.txt part 0)", ans.Answer)
	assert.LessOrEqual(t, len(ans.Sources), 2)
	require.NotEmpty(t, ans.Blocks)
	require.Len(t, f.responder.prompts, 1)
	assert.Equal(t, ans.Prompt, f.responder.prompts[0])
	assert.Contains(t, ans.Prompt, `"What is the capital of France?"`)
	assert.Contains(t, ans.Prompt, "From capitals.txt (part ")
}

func TestReuploadReplacesChunks(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()
	path := f.write(t, "capitals.txt", capitals)

	first, err := f.svc.Upload(ctx, path, "capitals.txt", "txt")
	require.NoError(t, err)
	_, err = f.svc.Upload(ctx, path, "capitals.txt", "txt")
	require.NoError(t, err)

	count, err := f.store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, first.Chunks, count)
}

func TestPreviewSkipsResponder(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()
	_, err := f.svc.Upload(ctx, f.write(t, "capitals.txt", capitals), "capitals.txt", "txt")
	require.NoError(t, err)

	ans, err := f.svc.Preview(ctx, "capital of Spain", 0)
	require.NoError(t, err)
	assert.Empty(t, ans.Answer)
	assert.NotEmpty(t, ans.Blocks)
	assert.Empty(t, f.responder.prompts)
	assert.False(t, f.svc.HasResponder())

	_, err = f.svc.Ask(ctx, "capital of Spain", 0)
	assert.ErrorIs(t, err, ErrNoResponder)
}

func TestAskWithEmptyIndexStillAsksResponder(t *testing.T) {
	f := newFixture(t, true)
	ans, err := f.svc.Ask(context.Background(), "anything there?", 4)
	require.NoError(t, err)
	assert.Empty(t, ans.Blocks)
	require.Len(t, f.responder.prompts, 1)
	assert.True(t, strings.HasSuffix(f.responder.prompts[0], "Context:\n\n\nAnswer:\n"))
}

func TestAskSurfacesResponderErrors(t *testing.T) {
	f := newFixture(t, true)
	f.responder.err = errors.New("connection reset")

	_, err := f.svc.Ask(context.Background(), "question", 4)
	var ce *domain.CollaboratorError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, domain.KindResponder, ce.Kind)
	assert.True(t, ce.Retryable())

	_, err = f.svc.Ask(context.Background(), "  ", 4)
	assert.ErrorIs(t, err, domain.ErrEmptyQuery)
}

func TestUploadErrors(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()

	_, err := f.svc.Upload(ctx, f.write(t, "blank.txt", " \n\t "), "blank.txt", "txt")
	assert.ErrorIs(t, err, domain.ErrNoContent)

	_, err = f.svc.Upload(ctx, f.write(t, "sheet.xlsx", "x"), "sheet.xlsx", "xlsx")
	assert.ErrorIs(t, err, domain.ErrUnsupportedType)

	count, _ := f.store.Count(ctx)
	assert.Zero(t, count)
}

func TestIngestPaths(t *testing.T) {
	f := newFixture(t, true)
	f.write(t, "a.txt", capitals)
	f.write(t, "b.md", "Rivers: the Seine runs through Paris. The Spree runs through Berlin.")
	f.write(t, "c.png", "not text")

	results, err := f.svc.IngestPaths(context.Background(), []string{filepath.Join(f.dir, "*")})
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "a.txt", results[0].SourceID)
	assert.Equal(t, "b.md", results[1].SourceID)

	_, err = f.svc.IngestPaths(context.Background(), []string{filepath.Join(f.dir, "*.png")})
	assert.ErrorIs(t, err, domain.ErrNoContent)
}
