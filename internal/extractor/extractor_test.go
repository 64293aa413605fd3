package extractor

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docqa/internal/domain"
)

func TestTypeFromName(t *testing.T) {
	cases := map[string]string{
		"report.PDF":     TypePDF,
		"notes.docx":     TypeDOCX,
		"legacy.doc":     TypeDOCX,
		"readme.md":      TypeText,
		"plain.txt":      TypeText,
		"image.png":      "",
		"no-extension":   "",
		"archive.tar.gz": "",
	}
	for name, want := range cases {
		assert.Equal(t, want, TypeFromName(name), name)
	}
	assert.Equal(t, TypeText, Normalize(" TEXT "))
}

func TestExtractText(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.txt")
	require.NoError(t, os.WriteFile(path, []byte("caf\xc3\xa9 \xff\xfeok"), 0o644))

	e, err := New("", nil)
	require.NoError(t, err)
	text, err := e.Extract(context.Background(), path, "txt")
	require.NoError(t, err)
	assert.Equal(t, "café ok", text)
}

func TestExtractUnsupportedType(t *testing.T) {
	e, err := New(BackendTabula, nil)
	require.NoError(t, err)
	_, err = e.Extract(context.Background(), "slides.pptx", "pptx")
	assert.ErrorIs(t, err, domain.ErrUnsupportedType)
}

func TestExtractMissingFile(t *testing.T) {
	e, err := New(BackendLedongthuc, nil)
	require.NoError(t, err)
	missing := filepath.Join(t.TempDir(), "gone")
	for _, typ := range []string{"txt", "pdf"} {
		_, err = e.Extract(context.Background(), missing+"."+typ, typ)
		assert.ErrorIs(t, err, domain.ErrExtraction, typ)
	}
}

func TestNewRejectsUnknownBackend(t *testing.T) {
	_, err := New("poppler", nil)
	assert.Error(t, err)
}
