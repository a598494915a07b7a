package parser

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/0xcro3dile/coopchat-go/internal/domain/ports"
)

func TestPythonPDFParser_Parse(t *testing.T) {
	// Mock Python service
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/parse" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if r.Header.Get("X-Filename") != "tarifas.pdf" {
			t.Errorf("filename header missing: %q", r.Header.Get("X-Filename"))
		}
		json.NewEncoder(w).Encode(map[string]interface{}{
			"text":  "Tarifas 2025",
			"pages": 1,
		})
	}))
	defer server.Close()

	parser := NewPythonPDFParser(server.URL, nil)
	text, err := parser.Parse(context.Background(), []byte("fake pdf"), "tarifas.pdf")

	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if text != "Tarifas 2025" {
		t.Errorf("unexpected text: %s", text)
	}
}

func TestPythonPDFParser_ServiceError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{
			"error": "parsing failed",
			"text":  "",
		})
	}))
	defer server.Close()

	parser := NewPythonPDFParser(server.URL, nil)
	_, err := parser.Parse(context.Background(), []byte("bad"), "test.pdf")

	if err == nil {
		t.Error("should error on parse failure")
	}
}

func TestPythonPDFParser_SupportedFormats(t *testing.T) {
	parser := NewPythonPDFParser("", nil)
	formats := parser.SupportedFormats()

	if len(formats) != 1 || formats[0] != "pdf" {
		t.Error("should support only pdf")
	}
}

func TestPythonPDFParser_DefaultURL(t *testing.T) {
	parser := NewPythonPDFParser("", nil)
	if parser.serviceURL != DefaultServiceURL {
		t.Errorf("should default to %s, got %s", DefaultServiceURL, parser.serviceURL)
	}
}

func TestPythonPDFParser_Port(t *testing.T) {
	tests := map[string]string{
		"http://localhost:5002": "5002",
		"http://pdf.internal":   "5001",
		"://bad":                "5001",
	}
	for url, want := range tests {
		if got := NewPythonPDFParser(url, nil).port(); got != want {
			t.Errorf("port(%q) = %q, want %q", url, got, want)
		}
	}
}

func TestPythonPDFParser_StartServiceMissingScript(t *testing.T) {
	parser := NewPythonPDFParser("", nil)
	if _, err := parser.StartService(context.Background(), t.TempDir()); err == nil {
		t.Error("should fail without pdf_service.py")
	}
}

func TestPythonPDFParser_IsServiceHealthy(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
		}
	}))
	defer server.Close()

	parser := NewPythonPDFParser(server.URL, nil)
	healthy := parser.IsServiceHealthy(context.Background())

	if !healthy {
		t.Error("should be healthy")
	}
}

func TestPythonPDFParser_UnhealthyService(t *testing.T) {
	parser := NewPythonPDFParser("http://localhost:99999", nil)
	healthy := parser.IsServiceHealthy(context.Background())

	if healthy {
		t.Error("should be unhealthy")
	}
}

func TestPythonPDFParser_ServiceDownIsUpstreamUnavailable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	parser := NewPythonPDFParser(server.URL, nil)
	_, err := parser.Parse(context.Background(), []byte("pdf"), "a.pdf")
	if !errors.Is(err, ports.ErrUpstreamUnavailable) {
		t.Errorf("expected upstream unavailable, got %v", err)
	}
}
