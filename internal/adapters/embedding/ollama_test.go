package embedding

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/0xcro3dile/coopchat-go/internal/domain/ports"
)

// embedServer answers /api/embed with one vector per input whose only value
// is the input's position in the batch.
func embedServer(t *testing.T, calls *[]int) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/embed" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		var req ollamaEmbedRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decoding request: %v", err)
		}
		*calls = append(*calls, len(req.Input))
		out := make([][]float32, len(req.Input))
		for i := range req.Input {
			out[i] = []float32{float32(i), 1}
		}
		json.NewEncoder(w).Encode(map[string]any{"embeddings": out})
	}))
}

func TestOllamaAdapter_Embed(t *testing.T) {
	var calls []int
	server := embedServer(t, &calls)
	defer server.Close()

	adapter := NewOllamaAdapter(server.URL+"/", "test-model", nil)
	emb, err := adapter.Embed(context.Background(), "corte de agua")
	if err != nil {
		t.Fatalf("embed failed: %v", err)
	}
	if len(emb) != 2 {
		t.Errorf("expected 2 dims, got %d", len(emb))
	}
}

func TestOllamaAdapter_EmbedBatchSplitsRequests(t *testing.T) {
	var calls []int
	server := embedServer(t, &calls)
	defer server.Close()

	texts := make([]string, ollamaBatchSize+3)
	for i := range texts {
		texts[i] = fmt.Sprintf("chunk %d", i)
	}

	adapter := NewOllamaAdapter(server.URL, "test-model", nil)
	results, err := adapter.EmbedBatch(context.Background(), texts)
	if err != nil {
		t.Fatalf("batch failed: %v", err)
	}
	if len(results) != len(texts) {
		t.Fatalf("expected %d results, got %d", len(texts), len(results))
	}
	if len(calls) != 2 || calls[0] != ollamaBatchSize || calls[1] != 3 {
		t.Errorf("request sizes = %v", calls)
	}
	if results[ollamaBatchSize][0] != 0 {
		t.Error("second batch should keep its own order")
	}
}

func TestOllamaAdapter_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model loading", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	adapter := NewOllamaAdapter(server.URL, "test", nil)
	_, err := adapter.Embed(context.Background(), "test")
	if !errors.Is(err, ports.ErrUpstreamUnavailable) {
		t.Errorf("503 should be upstream unavailable, got %v", err)
	}
}

func TestOllamaAdapter_ClientErrorIsNotUpstream(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"model not found"}`, http.StatusNotFound)
	}))
	defer server.Close()

	adapter := NewOllamaAdapter(server.URL, "test", nil)
	_, err := adapter.Embed(context.Background(), "test")
	if err == nil || errors.Is(err, ports.ErrUpstreamUnavailable) {
		t.Errorf("404 should be a plain error, got %v", err)
	}
}

func TestOllamaAdapter_CountMismatch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"embeddings":[[0.1]]}`))
	}))
	defer server.Close()

	adapter := NewOllamaAdapter(server.URL, "test", nil)
	if _, err := adapter.EmbedBatch(context.Background(), []string{"a", "b"}); err == nil {
		t.Error("should error when fewer embeddings come back")
	}
}

func TestOllamaAdapter_EmptyEmbedding(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"embeddings":[[]]}`))
	}))
	defer server.Close()

	adapter := NewOllamaAdapter(server.URL, "test", nil)
	if _, err := adapter.Embed(context.Background(), "test"); err == nil {
		t.Error("should error on empty embedding")
	}
}

func TestOllamaAdapter_DefaultValues(t *testing.T) {
	adapter := NewOllamaAdapter("", "", nil)
	if adapter.baseURL != "http://localhost:11434" {
		t.Error("should default to localhost")
	}
	if adapter.model != "nomic-embed-text" {
		t.Error("should default to nomic-embed-text")
	}
}
