package embedder

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestNewProvider(t *testing.T) {
	if _, err := NewProvider(Config{Provider: "ollama", Model: "m"}); err != nil {
		t.Errorf("ollama: %v", err)
	}
	if _, err := NewProvider(Config{Provider: "openai", Model: "m"}); err != nil {
		t.Errorf("openai: %v", err)
	}
	if _, err := NewProvider(Config{Provider: "custom", Model: "m"}); err != nil {
		t.Errorf("custom: %v", err)
	}
	if _, err := NewProvider(Config{}); err == nil {
		t.Error("empty provider should fail")
	}
	if _, err := NewProvider(Config{Provider: "bogus"}); err == nil {
		t.Error("unknown provider should fail")
	}
}

func TestOllamaEmbed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/embed" {
			t.Errorf("path = %q, want /api/embed", r.URL.Path)
		}
		var req ollamaEmbedRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decoding request: %v", err)
		}
		if req.Model != "nomic-embed-text" {
			t.Errorf("model = %q", req.Model)
		}
		if len(req.Input) != 2 {
			t.Errorf("got %d inputs, want 2", len(req.Input))
		}
		json.NewEncoder(w).Encode(ollamaEmbedResponse{
			Embeddings: [][]float64{{0.1, 0.2}, {0.3, 0.4}},
		})
	}))
	defer srv.Close()

	p := NewOllama(Config{Model: "nomic-embed-text", BaseURL: srv.URL})
	got, err := p.Embed(context.Background(), []string{"one", "two"})
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	if len(got) != 2 || len(got[0]) != 2 {
		t.Fatalf("embeddings shape = %v", got)
	}
	if got[1][0] != float32(0.3) {
		t.Errorf("got[1][0] = %f, want 0.3", got[1][0])
	}
}

func TestOllamaEmbedCountMismatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(ollamaEmbedResponse{
			Embeddings: [][]float64{{0.1}},
		})
	}))
	defer srv.Close()

	p := NewOllama(Config{Model: "m", BaseURL: srv.URL})
	if _, err := p.Embed(context.Background(), []string{"one", "two"}); err == nil {
		t.Error("expected error on embedding count mismatch")
	}
}

func TestOpenAIEmbedOrdersByIndex(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/embeddings" {
			t.Errorf("path = %q, want /v1/embeddings", r.URL.Path)
		}
		if auth := r.Header.Get("Authorization"); auth != "Bearer sk-test" {
			t.Errorf("Authorization = %q", auth)
		}
		// Results returned out of order; the client must reorder by index.
		w.Write([]byte(`{"data":[
			{"embedding":[0.3,0.4],"index":1},
			{"embedding":[0.1,0.2],"index":0}
		]}`))
	}))
	defer srv.Close()

	p := NewOpenAICompat(Config{Model: "m", BaseURL: srv.URL, APIKey: "sk-test"})
	got, err := p.Embed(context.Background(), []string{"one", "two"})
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	if got[0][0] != float32(0.1) || got[1][0] != float32(0.3) {
		t.Errorf("embeddings not reordered: %v", got)
	}
}

func TestDoPostRetriesOnServerError(t *testing.T) {
	attempts := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		json.NewEncoder(w).Encode(ollamaEmbedResponse{Embeddings: [][]float64{{1}}})
	}))
	defer srv.Close()

	p := NewOllama(Config{Model: "m", BaseURL: srv.URL})
	if _, err := p.Embed(context.Background(), []string{"x"}); err != nil {
		t.Fatalf("Embed after retries: %v", err)
	}
	if attempts != 3 {
		t.Errorf("attempts = %d, want 3", attempts)
	}
}

func TestDoPostDoesNotRetryClientErrors(t *testing.T) {
	attempts := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	p := NewOllama(Config{Model: "m", BaseURL: srv.URL})
	if _, err := p.Embed(context.Background(), []string{"x"}); err == nil {
		t.Fatal("expected error")
	}
	if attempts != 1 {
		t.Errorf("attempts = %d, want 1 (400 is not retryable)", attempts)
	}
}
