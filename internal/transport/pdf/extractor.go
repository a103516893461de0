// Package pdf turns uploaded files into plain-text documents.
package pdf

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/ledongthuc/pdf"
	"go.uber.org/zap"

	"github.com/kailas-cloud/crag/internal/domain"
)

// DefaultMaxBytes limits a single uploaded file.
const DefaultMaxBytes int64 = 32 << 20

var (
	// ErrUnsupported is returned for files that are neither PDF nor plain text.
	ErrUnsupported = errors.New("unsupported file type")
	// ErrNoText is returned when a file yields no extractable text.
	ErrNoText = errors.New("no text extracted")
	// ErrTooLarge is returned when a file exceeds the size limit.
	ErrTooLarge = errors.New("file too large")
)

var pdfMagic = []byte("%PDF-")

// Extractor reads PDF, Markdown and plain-text files.
type Extractor struct {
	maxBytes int64
	logger   *zap.Logger
}

// NewExtractor creates an Extractor. maxBytes <= 0 uses DefaultMaxBytes.
func NewExtractor(maxBytes int64, logger *zap.Logger) *Extractor {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Extractor{maxBytes: maxBytes, logger: logger}
}

// ExtractFile reads the file at path. The document is named after the base name.
func (e *Extractor) ExtractFile(ctx context.Context, path string) (domain.Document, error) {
	f, err := os.Open(path) //nolint:gosec // path comes from the operator
	if err != nil {
		return domain.Document{}, fmt.Errorf("open %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	return e.Extract(ctx, filepath.Base(path), f)
}

// Extract reads r fully and converts it to text according to name's extension.
// Files without a known extension are sniffed for the PDF header.
func (e *Extractor) Extract(ctx context.Context, name string, r io.Reader) (domain.Document, error) {
	if err := ctx.Err(); err != nil {
		return domain.Document{}, err //nolint:wrapcheck // context error
	}

	data, err := io.ReadAll(io.LimitReader(r, e.maxBytes+1))
	if err != nil {
		return domain.Document{}, fmt.Errorf("read %s: %w", name, err)
	}
	if int64(len(data)) > e.maxBytes {
		return domain.Document{}, fmt.Errorf("%s exceeds %d bytes: %w", name, e.maxBytes, ErrTooLarge)
	}

	var text string
	switch kind := detect(name, data); kind {
	case kindPDF:
		text, err = plainText(data)
		if err != nil {
			return domain.Document{}, fmt.Errorf("parse pdf %s: %w", name, err)
		}
	case kindText:
		if !utf8.Valid(data) {
			return domain.Document{}, fmt.Errorf("%s is not valid UTF-8: %w", name, ErrUnsupported)
		}
		text = string(data)
	default:
		return domain.Document{}, fmt.Errorf("%s: %w", name, ErrUnsupported)
	}

	text = normalize(text)
	if strings.TrimSpace(text) == "" {
		return domain.Document{}, fmt.Errorf("%s: %w", name, ErrNoText)
	}

	e.logger.Debug("Extracted document",
		zap.String("name", name),
		zap.Int("bytes", len(data)),
		zap.Int("runes", utf8.RuneCountInString(text)),
	)
	return domain.Document{Name: name, Text: text}, nil
}

type fileKind int

const (
	kindUnknown fileKind = iota
	kindPDF
	kindText
)

func detect(name string, data []byte) fileKind {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".pdf":
		return kindPDF
	case ".txt", ".md", ".markdown", ".text":
		return kindText
	}
	if bytes.HasPrefix(data, pdfMagic) {
		return kindPDF
	}
	return kindUnknown
}

// plainText extracts the text layer. The parser panics on some malformed files.
func plainText(data []byte) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("malformed pdf: %v", r)
		}
	}()

	rdr, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("open reader: %w", err)
	}

	b, err := rdr.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("get plain text: %w", err)
	}

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, b); err != nil {
		return "", fmt.Errorf("read text: %w", err)
	}
	return buf.String(), nil
}

// normalize unifies line endings and drops NUL bytes left by some encoders.
func normalize(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")
	return strings.ReplaceAll(s, "\x00", "")
}
