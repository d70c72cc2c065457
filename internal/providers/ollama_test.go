package providers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestOllama_Complete(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			t.Errorf("path = %q, want /v1/chat/completions", r.URL.Path)
		}

		var body struct {
			Model          string `json:"model"`
			ResponseFormat struct {
				Type string `json:"type"`
			} `json:"response_format"`
		}
		json.NewDecoder(r.Body).Decode(&body)
		if body.Model != "llama3" {
			t.Errorf("model = %q", body.Model)
		}
		if body.ResponseFormat.Type != "json_object" {
			t.Errorf("response_format.type = %q, want json_object", body.ResponseFormat.Type)
		}

		w.Header().Set("Content-Type", "application/json")
		resp := chatCompletion("{}")
		resp["usage"] = map[string]any{"total_tokens": 100}
		json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	o := newOllama("ollama", "llama3", server.URL, "")

	resp, err := o.Complete(context.Background(), CompletionRequest{
		SystemPrompt: "test",
		UserPrompt:   "test",
		MaxTokens:    10,
	})
	if err != nil {
		t.Fatalf("Complete error: %v", err)
	}
	if resp.Content != "{}" {
		t.Errorf("Content = %q, want %q", resp.Content, "{}")
	}
	if resp.TokensUsed != 100 {
		t.Errorf("TokensUsed = %d, want 100", resp.TokensUsed)
	}
}

func TestOllama_CompleteWithAPIKey(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer test-ollama-key" {
			t.Error("Missing or wrong Authorization header")
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(chatCompletion("{}"))
	}))
	defer server.Close()

	o := newOllama("lmstudio", "llama3", server.URL+"/v1", "test-ollama-key")

	if _, err := o.Complete(context.Background(), CompletionRequest{UserPrompt: "test"}); err != nil {
		t.Fatalf("Complete error: %v", err)
	}
}

func TestOllama_ServerError(t *testing.T) {
	fastRetries(t)
	attempts := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		w.WriteHeader(500)
		w.Write([]byte(`{"error":"internal server error"}`))
	}))
	defer server.Close()

	o := newOllama("ollama", "llama3", server.URL, "")

	_, err := o.Complete(context.Background(), CompletionRequest{UserPrompt: "test"})
	if err == nil {
		t.Fatal("Expected error for server error response")
	}
	// Should retry: 1 initial + 3 retries = 4 attempts
	if attempts != 4 {
		t.Errorf("Expected 4 attempts, got %d", attempts)
	}
}

func TestOllama_EmptyResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		resp := chatCompletion("")
		resp["choices"] = []any{}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	o := newOllama("ollama", "llama3", server.URL, "")

	if _, err := o.Complete(context.Background(), CompletionRequest{UserPrompt: "test"}); err == nil {
		t.Fatal("Expected error for empty response")
	}
}

func TestNewOllama_URLNormalization(t *testing.T) {
	tests := []struct {
		name    string
		host    string
		wantURL string
	}{
		{
			name:    "default",
			host:    "",
			wantURL: "http://localhost:11434/v1",
		},
		{
			name:    "trailing slash",
			host:    "http://localhost:11434/",
			wantURL: "http://localhost:11434/v1",
		},
		{
			name:    "with v1",
			host:    "http://localhost:11434/v1",
			wantURL: "http://localhost:11434/v1",
		},
		{
			name:    "with full path",
			host:    "http://localhost:11434/v1/chat/completions",
			wantURL: "http://localhost:11434/v1",
		},
		{
			name:    "custom host",
			host:    "http://192.168.1.100:11434",
			wantURL: "http://192.168.1.100:11434/v1",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("OLLAMA_HOST", tt.host)
			t.Setenv("AGRIGUARD_OLLAMA_API_KEY", "")

			o, err := NewOllama("ollama", "llama3")
			if err != nil {
				t.Fatalf("NewOllama error: %v", err)
			}
			if o.baseURL != tt.wantURL {
				t.Errorf("baseURL = %q, want %q", o.baseURL, tt.wantURL)
			}
		})
	}
}

func TestFactory_LocalProviders(t *testing.T) {
	t.Setenv("OLLAMA_HOST", "")
	t.Setenv("LMSTUDIO_HOST", "")
	t.Setenv("LOCALAI_HOST", "")

	want := map[string]string{
		"ollama":   "http://localhost:11434/v1",
		"lmstudio": "http://localhost:1234/v1",
		"localai":  "http://localhost:8080/v1",
	}
	for name, url := range want {
		c, err := New(name, "llama3")
		if err != nil {
			t.Fatalf("New(%q) error: %v", name, err)
		}
		if c.Name() != name {
			t.Errorf("New(%q).Name() = %q", name, c.Name())
		}
		if got := c.(*Ollama).baseURL; got != url {
			t.Errorf("New(%q) baseURL = %q, want %q", name, got, url)
		}
	}
}
