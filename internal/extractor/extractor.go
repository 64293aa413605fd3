// Package extractor turns uploaded files into plain text.
package extractor

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/ledongthuc/pdf"
	"github.com/tsawler/tabula"

	"docqa/internal/domain"
)

// Declared document types.
const (
	TypePDF  = "pdf"
	TypeDOCX = "docx"
	TypeText = "txt"
)

// PDF backends.
const (
	BackendTabula     = "tabula"
	BackendLedongthuc = "ledongthuc"
)

// Normalize maps a declared type or alias onto one of the Type constants.
// It returns "" when the type is not supported.
func Normalize(declared string) string {
	switch strings.TrimPrefix(strings.ToLower(strings.TrimSpace(declared)), ".") {
	case "pdf":
		return TypePDF
	case "docx", "doc":
		return TypeDOCX
	case "txt", "text", "md":
		return TypeText
	}
	return ""
}

// TypeFromName derives the declared type from a file name extension.
func TypeFromName(name string) string {
	return Normalize(filepath.Ext(name))
}

// Extractor reads pdf, docx and text files.
type Extractor struct {
	pdfBackend string
	logger     *slog.Logger
}

// New returns an Extractor using the named PDF backend. An empty backend selects tabula.
func New(pdfBackend string, logger *slog.Logger) (*Extractor, error) {
	switch pdfBackend {
	case "":
		pdfBackend = BackendTabula
	case BackendTabula, BackendLedongthuc:
	default:
		return nil, fmt.Errorf("unknown pdf backend %q", pdfBackend)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Extractor{pdfBackend: pdfBackend, logger: logger}, nil
}

// Extract returns the text of the file at path interpreted as declaredType.
// Extraction of a supported type that yields no text is not an error here;
// chunking reports that case as domain.ErrNoContent.
func (e *Extractor) Extract(ctx context.Context, path, declaredType string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	var (
		text string
		err  error
	)
	switch Normalize(declaredType) {
	case TypePDF:
		if e.pdfBackend == BackendLedongthuc {
			text, err = readPDFPlain(path)
		} else {
			text, err = e.readTabula(ctx, path)
		}
	case TypeDOCX:
		text, err = e.readTabula(ctx, path)
	case TypeText:
		text, err = readText(path)
	default:
		return "", fmt.Errorf("%w: %q", domain.ErrUnsupportedType, declaredType)
	}
	if err != nil {
		return "", fmt.Errorf("%w: %s: %v", domain.ErrExtraction, filepath.Base(path), err)
	}
	return text, nil
}

func (e *Extractor) readTabula(ctx context.Context, path string) (string, error) {
	text, warnings, err := tabula.Open(path).Text()
	if err != nil {
		return "", err
	}
	if len(warnings) > 0 {
		e.logger.DebugContext(ctx, "extraction warnings", "path", path, "warnings", len(warnings))
	}
	return text, nil
}

func readPDFPlain(path string) (string, error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	plain, err := r.GetPlainText()
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, plain); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// readText decodes the file as UTF-8, dropping invalid byte sequences.
func readText(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	if utf8.Valid(data) {
		return string(data), nil
	}
	return strings.ToValidUTF8(string(data), ""), nil
}
