package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docqa/internal/domain"
	"docqa/internal/service"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestIndexThenPreview(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yaml")
	writeFile(t, cfgPath, `
chunker:
  max_chars: 80
  overlap: 3
vector_store:
  type: memory
  memory:
    snapshot_path: `+filepath.Join(dir, "index.jsonl.zst")+`
responder:
  type: none
history:
  path: `+filepath.Join(dir, "history.json")+`
log:
  level: error
`)
	writeFile(t, filepath.Join(dir, "docs", "capitals.txt"),
		"Paris is the capital of France. Berlin is the capital of Germany. Madrid is the capital of Spain.")

	out, err := run(t, "--config", cfgPath, "index", filepath.Join(dir, "docs", "*.txt"))
	require.NoError(t, err)
	assert.Contains(t, out, "capitals.txt")
	assert.Contains(t, out, "chunks)")

	out, err = run(t, "--config", cfgPath, "ask", "--preview", "-k", "2", "capital", "of", "France")
	require.NoError(t, err)
	assert.Contains(t, out, "Prompt")
	assert.Contains(t, out, `"capital of France"`)
	assert.Contains(t, out, "From capitals.txt (part ")

	_, err = run(t, "--config", cfgPath, "ask", "capital of France")
	assert.ErrorIs(t, err, service.ErrNoResponder)
}

func TestDefaultConfigPersistsIndexBetweenRuns(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("HOME", dir)
	t.Setenv("OPENAI_API_KEY", "")
	t.Chdir(dir)
	writeFile(t, filepath.Join(dir, "notes.txt"),
		"Fredonia is a small country. The capital of Freedonia is Sylvania City.")

	_, err := run(t, "index", "notes.txt")
	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(dir, "data", "index.jsonl.zst"))
	assert.FileExists(t, filepath.Join(dir, ".config", "docqa", "config.yaml"))

	out, err := run(t, "ask", "--preview", "capital of Freedonia")
	require.NoError(t, err)
	assert.Contains(t, out, "From notes.txt (part 0)")
	assert.Contains(t, out, "Sylvania City")
}

func TestInvalidConfigFailsAtLoad(t *testing.T) {
	cfgPath := filepath.Join(t.TempDir(), "config.yaml")
	writeFile(t, cfgPath, "chunker:\n  max_chars: 10\n  overlap: 5\n")
	_, err := run(t, "--config", cfgPath, "ask", "anything")
	assert.ErrorIs(t, err, domain.ErrInvalidChunkConfig)
}

func TestPrintAnswer(t *testing.T) {
	var buf bytes.Buffer
	printAnswer(&buf, service.Answer{
		Answer: "1. Paris",
		Sources: []domain.Candidate{
			{Chunk: domain.Chunk{SourceID: "a.txt", Position: 2, Snippet: "Paris is..."}, Distance: 0.25},
		},
	}, false)
	out := buf.String()
	assert.Contains(t, out, "1. Paris")
	assert.Contains(t, out, "a.txt part 2")
	assert.Contains(t, out, "distance=0.2500")

	buf.Reset()
	printAnswer(&buf, service.Answer{Prompt: "the prompt"}, true)
	assert.Contains(t, buf.String(), "the prompt")
	assert.Contains(t, buf.String(), "none")
}

func TestJoinSummaries(t *testing.T) {
	got := joinSummaries([]service.UploadResult{
		{SourceID: "a.txt", Summary: "First."},
		{SourceID: "b.txt"},
		{SourceID: "c.txt", Summary: "Third."},
	})
	assert.Equal(t, "a.txt: First.\nc.txt: Third.", got)
}
