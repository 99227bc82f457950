package openai_provider

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/docuery/docuery/config"
	"github.com/docuery/docuery/provider"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return New(config.OpenAIConfig{
		APIKey:         "test-key",
		BaseURL:        srv.URL,
		ChatModel:      "gpt-4o-mini",
		EmbeddingModel: "text-embedding-3-small",
	})
}

func TestChatCompletion(t *testing.T) {
	t.Parallel()
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("Authorization = %q", got)
		}
		var body struct {
			Model    string             `json:"model"`
			Messages []provider.Message `json:"messages"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if len(body.Messages) != 2 {
			t.Errorf("expected 2 messages, got %d", len(body.Messages))
		}
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"choices": []map[string]interface{}{
				{"message": map[string]string{"content": "grounded answer"}},
			},
		})
	})

	got, err := c.ChatCompletion(context.Background(), []provider.Message{
		{Role: provider.RoleSystem, Content: "ground your answers"},
		{Role: provider.RoleUser, Content: "who signed?"},
	})
	if err != nil {
		t.Fatalf("ChatCompletion: %v", err)
	}
	if got != "grounded answer" {
		t.Fatalf("ChatCompletion = %q", got)
	}
}

func TestChatCompletionRateLimited(t *testing.T) {
	t.Parallel()
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	})

	_, err := c.ChatCompletion(context.Background(), []provider.Message{{Role: provider.RoleUser, Content: "hi"}})
	if !errors.Is(err, provider.ErrRateLimited) {
		t.Fatalf("expected ErrRateLimited, got %v", err)
	}
}

func TestCreateEmbedding(t *testing.T) {
	t.Parallel()
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/embeddings" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"data": []map[string]interface{}{
				{"embedding": []float32{0.1, 0.2}, "index": 0},
				{"embedding": []float32{0.3, 0.4}, "index": 1},
			},
		})
	})

	vecs, err := c.CreateEmbedding(context.Background(), []string{"a", "b"})
	if err != nil {
		t.Fatalf("CreateEmbedding: %v", err)
	}
	if len(vecs) != 2 || len(vecs[0]) != 2 {
		t.Fatalf("unexpected vectors %v", vecs)
	}
}

func TestCreateEmbeddingOutOfOrderIndices(t *testing.T) {
	t.Parallel()
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"data": []map[string]interface{}{
				{"embedding": []float32{0.3, 0.4}, "index": 1},
				{"embedding": []float32{0.1, 0.2}, "index": 0},
			},
		})
	})

	vecs, err := c.CreateEmbedding(context.Background(), []string{"a", "b"})
	if err != nil {
		t.Fatalf("CreateEmbedding: %v", err)
	}
	if vecs[0][0] != 0.1 || vecs[1][0] != 0.3 {
		t.Fatalf("vectors not paired by index: %v", vecs)
	}
}

func TestCreateEmbeddingRateLimited(t *testing.T) {
	t.Parallel()
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	})

	_, err := c.CreateEmbedding(context.Background(), []string{"a"})
	if !errors.Is(err, provider.ErrRateLimited) {
		t.Fatalf("expected ErrRateLimited, got %v", err)
	}
}

func TestOpenRouterHeaders(t *testing.T) {
	t.Parallel()
	cfg := config.OpenAIConfig{
		BaseURL: "https://openrouter.ai/api/v1",
		AppName: "Docuery",
		SiteURL: "https://docuery.example.com",
	}
	headers := cfg.ProviderHeaders()
	if headers["X-Title"] != "Docuery" {
		t.Errorf("X-Title = %q", headers["X-Title"])
	}
	if headers["HTTP-Referer"] != "https://docuery.example.com" {
		t.Errorf("HTTP-Referer = %q", headers["HTTP-Referer"])
	}

	if got := (config.OpenAIConfig{BaseURL: ""}).ProviderHeaders(); got != nil {
		t.Errorf("expected no headers for default endpoint, got %v", got)
	}
}
