package loader

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/0xcro3dile/coopchat-go/internal/domain/retrieval"
)

// mockParser implements ports.DocumentParser
type mockParser struct {
	text string
	err  error
	got  string
}

func (m *mockParser) Parse(ctx context.Context, data []byte, filename string) (string, error) {
	m.got = filename
	return m.text, m.err
}

func (m *mockParser) SupportedFormats() []string { return []string{"pdf"} }

func TestTextLoader_LoadTxtFile(t *testing.T) {
	dir := t.TempDir()

	path := filepath.Join(dir, "horarios.txt")
	os.WriteFile(path, []byte("Atención de lunes a viernes"), 0644)

	loader := NewTextLoader()
	doc, err := loader.Load(context.Background(), path)

	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if doc.Content != "Atención de lunes a viernes" {
		t.Errorf("unexpected content: %s", doc.Content)
	}
	if doc.Name != "horarios.txt" {
		t.Errorf("unexpected name: %s", doc.Name)
	}
	if doc.ID != retrieval.DocumentID(path) {
		t.Errorf("document id should derive from path, got %s", doc.ID)
	}
}

func TestTextLoader_SupportedExtensions(t *testing.T) {
	loader := NewTextLoader()
	exts := loader.SupportedExtensions()

	found := false
	for _, e := range exts {
		if e == ".txt" {
			found = true
		}
	}
	if !found {
		t.Error(".txt should be supported")
	}
}

func TestMultiLoader_DispatchByExtension(t *testing.T) {
	dir := t.TempDir()

	txtPath := filepath.Join(dir, "test.txt")
	mdPath := filepath.Join(dir, "test.MD")
	os.WriteFile(txtPath, []byte("txt content"), 0644)
	os.WriteFile(mdPath, []byte("# Markdown"), 0644)

	loader := NewMultiLoader(nil, nil)

	txt, err := loader.Load(context.Background(), txtPath)
	if err != nil || txt.Content != "txt content" {
		t.Errorf("txt not loaded correctly: %v", err)
	}
	md, err := loader.Load(context.Background(), mdPath)
	if err != nil || md.Content != "# Markdown" {
		t.Errorf("md not loaded correctly: %v", err)
	}
}

func TestMultiLoader_PDFViaParser(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tarifas.pdf")
	os.WriteFile(path, []byte("%PDF-1.4"), 0644)

	parser := &mockParser{text: "  Tarifa \x00base: $3.200\n"}
	loader := NewMultiLoader(parser, nil)

	doc, err := loader.Load(context.Background(), path)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if doc.Content != "Tarifa base: $3.200" {
		t.Errorf("unexpected content: %q", doc.Content)
	}
	if parser.got != "tarifas.pdf" {
		t.Errorf("parser got filename %q", parser.got)
	}
}

func TestMultiLoader_PDFParseErrorPropagates(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "roto.pdf")
	os.WriteFile(path, []byte("%PDF"), 0644)

	boom := errors.New("boom")
	loader := NewMultiLoader(&mockParser{err: boom}, nil)
	if _, err := loader.Load(context.Background(), path); !errors.Is(err, boom) {
		t.Errorf("expected parse error, got %v", err)
	}
}

func TestMultiLoader_Extensions(t *testing.T) {
	if got := len(NewMultiLoader(nil, nil).SupportedExtensions()); got != 3 {
		t.Errorf("expected 3 text extensions, got %d", got)
	}
	if got := len(NewMultiLoader(&mockParser{}, nil).SupportedExtensions()); got != 4 {
		t.Errorf("expected 4 extensions with pdf, got %d", got)
	}
}

func TestMultiLoader_UnsupportedExtension(t *testing.T) {
	loader := NewMultiLoader(nil, nil)
	if _, err := loader.Load(context.Background(), "/kb/data.json"); err == nil {
		t.Error("should reject unsupported extension")
	}
}

func TestLoader_NonexistentFile(t *testing.T) {
	loader := NewTextLoader()
	_, err := loader.Load(context.Background(), "/nonexistent/file.txt")

	if err == nil {
		t.Error("should error on nonexistent file")
	}
}

func TestTextLoader_Windows1252(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cortes.txt")
	// "Corte en Maitén\r\n" as exported by a Windows editor.
	raw := []byte{'C', 'o', 'r', 't', 'e', ' ', 'e', 'n', ' ', 'M', 'a', 'i', 't', 0xE9, 'n', '\r', '\n'}
	os.WriteFile(path, raw, 0644)

	doc, err := NewTextLoader().Load(context.Background(), path)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if doc.Content != "Corte en Maitén\n" {
		t.Errorf("content = %q", doc.Content)
	}
}

func TestDecodeText_BOMAndComposition(t *testing.T) {
	// BOM followed by "Anibana, sector Maite" + combining acute + "n".
	raw := append([]byte{0xEF, 0xBB, 0xBF}, []byte("Anibana, sector Maitén")...)

	got, err := decodeText(raw)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if got != "Anibana, sector Maitén" {
		t.Errorf("decodeText = %q", got)
	}
}
