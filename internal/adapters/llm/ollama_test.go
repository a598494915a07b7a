package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/0xcro3dile/coopchat-go/internal/domain/ports"
)

func TestOllamaLLM_Generate(t *testing.T) {
	var got ollamaGenerateRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/generate" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		json.NewDecoder(r.Body).Decode(&got)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"response": "¡Hola!",
			"done":     true,
		})
	}))
	defer server.Close()

	adapter := NewOllamaLLMAdapter(server.URL, "test-model", 0, nil)
	resp, err := adapter.Generate(context.Background(), "Hola", ports.GenerateOptions{Temperature: 0.1, MaxOutputTokens: 200})

	if err != nil {
		t.Fatalf("generate failed: %v", err)
	}
	if resp != "¡Hola!" {
		t.Errorf("unexpected response: %s", resp)
	}
	if got.Stream || got.Model != "test-model" {
		t.Errorf("unexpected request: %+v", got)
	}
	if got.Options.Temperature != 0.1 || got.Options.NumPredict != 200 {
		t.Errorf("options not forwarded: %+v", got.Options)
	}
	if got.Format != "" {
		t.Errorf("format should be unset for free text, got %q", got.Format)
	}
}

func TestOllamaLLM_JSONFormat(t *testing.T) {
	var got ollamaGenerateRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&got)
		w.Write([]byte(`{"response":"{\"sector\":\"anibana\"}","done":true}`))
	}))
	defer server.Close()

	adapter := NewOllamaLLMAdapter(server.URL, "test-model", 0, nil)
	resp, err := adapter.Generate(context.Background(), "extrae", ports.GenerateOptions{JSON: true})
	if err != nil {
		t.Fatalf("generate failed: %v", err)
	}
	if got.Format != "json" {
		t.Errorf("format = %q, want json", got.Format)
	}
	if resp != `{"sector":"anibana"}` {
		t.Errorf("unexpected response: %s", resp)
	}
}

func TestOllamaLLM_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	adapter := NewOllamaLLMAdapter(server.URL, "test", 0, nil)
	_, err := adapter.Generate(context.Background(), "test", ports.GenerateOptions{})

	if err == nil {
		t.Fatal("should error on 404")
	}
	if errors.Is(err, ports.ErrUpstreamUnavailable) {
		t.Error("404 is not an outage")
	}
}

func TestOllamaLLM_RateLimitIsUpstreamUnavailable(t *testing.T) {
	for _, code := range []int{http.StatusTooManyRequests, http.StatusServiceUnavailable} {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(code)
		}))

		adapter := NewOllamaLLMAdapter(server.URL, "test", 0, nil)
		_, err := adapter.Generate(context.Background(), "test", ports.GenerateOptions{})
		server.Close()

		if !errors.Is(err, ports.ErrUpstreamUnavailable) {
			t.Errorf("status %d: expected upstream unavailable, got %v", code, err)
		}
	}
}

func TestOllamaLLM_ConnectionRefused(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	adapter := NewOllamaLLMAdapter(url, "test", 0, nil)
	_, err := adapter.Generate(context.Background(), "test", ports.GenerateOptions{})
	if !errors.Is(err, ports.ErrUpstreamUnavailable) {
		t.Errorf("expected upstream unavailable, got %v", err)
	}
}

func TestOllamaLLM_ErrorField(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"error":"model not found"}`))
	}))
	defer server.Close()

	adapter := NewOllamaLLMAdapter(server.URL, "test", 0, nil)
	_, err := adapter.Generate(context.Background(), "test", ports.GenerateOptions{})
	if err == nil || !strings.Contains(err.Error(), "model not found") {
		t.Errorf("expected model error, got %v", err)
	}
}

func TestOllamaLLM_DefaultValues(t *testing.T) {
	adapter := NewOllamaLLMAdapter("", "", 0, nil)
	if adapter.baseURL != "http://localhost:11434" {
		t.Error("should default to localhost")
	}
	if adapter.model != "llama3.2" {
		t.Error("should default to llama3.2")
	}
}
