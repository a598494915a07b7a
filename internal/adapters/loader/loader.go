// Package loader reads knowledge base files into documents.
package loader

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"go.uber.org/zap"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/unicode/norm"

	"github.com/0xcro3dile/coopchat-go/internal/domain/entities"
	"github.com/0xcro3dile/coopchat-go/internal/domain/ports"
	"github.com/0xcro3dile/coopchat-go/internal/domain/retrieval"
)

// TextLoader loads plain text documents (.txt, .md).
type TextLoader struct{}

// NewTextLoader creates a new text document loader.
func NewTextLoader() *TextLoader {
	return &TextLoader{}
}

// Load reads a text document from the given path.
func (l *TextLoader) Load(ctx context.Context, path string) (*entities.Document, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	content, err := io.ReadAll(file)
	if err != nil {
		return nil, err
	}

	info, err := file.Stat()
	if err != nil {
		return nil, err
	}

	text, err := decodeText(content)
	if err != nil {
		return nil, fmt.Errorf("decoding %s: %w", filepath.Base(path), err)
	}
	return newDocument(path, text, info.ModTime()), nil
}

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// decodeText returns content as NFC UTF-8 with LF line endings. Input that is
// not valid UTF-8 is read as Windows-1252.
func decodeText(content []byte) (string, error) {
	content = bytes.TrimPrefix(content, utf8BOM)
	if !utf8.Valid(content) {
		decoded, err := charmap.Windows1252.NewDecoder().Bytes(content)
		if err != nil {
			return "", err
		}
		content = decoded
	}
	text := strings.ReplaceAll(string(content), "\r\n", "\n")
	return norm.NFC.String(text), nil
}

// SupportedExtensions returns file extensions this loader handles.
func (l *TextLoader) SupportedExtensions() []string {
	return []string{".txt", ".md", ".markdown"}
}

// PDFLoader loads PDF documents through a DocumentParser.
type PDFLoader struct {
	parser ports.DocumentParser
}

// NewPDFLoader creates a PDF loader backed by parser.
func NewPDFLoader(parser ports.DocumentParser) *PDFLoader {
	return &PDFLoader{parser: parser}
}

// Load reads a PDF and extracts its text. Parser failures are returned so
// the caller can skip the file.
func (l *PDFLoader) Load(ctx context.Context, path string) (*entities.Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	text, err := l.parser.Parse(ctx, data, filepath.Base(path))
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", filepath.Base(path), err)
	}

	modTime := time.Now()
	if info, err := os.Stat(path); err == nil {
		modTime = info.ModTime()
	}

	return newDocument(path, cleanPDFContent(text), modTime), nil
}

// SupportedExtensions returns file extensions.
func (l *PDFLoader) SupportedExtensions() []string {
	return []string{".pdf"}
}

// MultiLoader dispatches on file extension.
type MultiLoader struct {
	loaders map[string]ports.DocumentLoader
	logger  *zap.Logger
}

// NewMultiLoader creates a loader for text files and, when parser is
// non-nil, PDFs.
func NewMultiLoader(parser ports.DocumentParser, logger *zap.Logger) *MultiLoader {
	if logger == nil {
		logger = zap.NewNop()
	}
	m := &MultiLoader{
		loaders: map[string]ports.DocumentLoader{},
		logger:  logger.With(zap.String("component", "loader")),
	}
	text := NewTextLoader()
	for _, ext := range text.SupportedExtensions() {
		m.loaders[ext] = text
	}
	if parser != nil {
		pdf := NewPDFLoader(parser)
		for _, ext := range pdf.SupportedExtensions() {
			m.loaders[ext] = pdf
		}
	}
	return m
}

// Load dispatches to the appropriate loader based on extension.
func (m *MultiLoader) Load(ctx context.Context, path string) (*entities.Document, error) {
	ext := strings.ToLower(filepath.Ext(path))
	loader, ok := m.loaders[ext]
	if !ok {
		return nil, fmt.Errorf("unsupported file type %q", ext)
	}
	doc, err := loader.Load(ctx, path)
	if err != nil {
		return nil, err
	}
	m.logger.Debug("loaded document", zap.String("path", path), zap.Int("chars", len(doc.Content)))
	return doc, nil
}

// SupportedExtensions returns all supported extensions.
func (m *MultiLoader) SupportedExtensions() []string {
	exts := make([]string, 0, len(m.loaders))
	for ext := range m.loaders {
		exts = append(exts, ext)
	}
	sort.Strings(exts)
	return exts
}

func newDocument(path, content string, modTime time.Time) *entities.Document {
	return &entities.Document{
		ID:        retrieval.DocumentID(path),
		Name:      filepath.Base(path),
		Path:      path,
		Content:   content,
		CreatedAt: modTime,
		UpdatedAt: time.Now(),
	}
}

// cleanPDFContent drops control characters left by extraction, composes
// accents split into combining marks and trims.
func cleanPDFContent(content string) string {
	var cleaned strings.Builder
	for _, r := range content {
		if unicode.IsPrint(r) || r == '\n' || r == '\t' {
			cleaned.WriteRune(r)
		}
	}
	return strings.TrimSpace(norm.NFC.String(cleaned.String()))
}
