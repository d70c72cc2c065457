package providers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestGemini_Complete(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("x-goog-api-key") != "test-key" {
			t.Error("Missing API key in x-goog-api-key header")
		}
		if r.URL.Query().Get("key") != "" {
			t.Error("API key must not be sent in the URL")
		}
		if !strings.HasSuffix(r.URL.Path, "/gemini-2.5-flash:generateContent") {
			t.Errorf("path = %q", r.URL.Path)
		}

		var body geminiRequest
		json.NewDecoder(r.Body).Decode(&body)
		if body.GenerationConfig == nil || body.GenerationConfig.ResponseMimeType != "application/json" {
			t.Errorf("generationConfig = %+v, want JSON mime type", body.GenerationConfig)
		}
		if body.SystemInstruction == nil || body.SystemInstruction.Parts[0].Text != "system" {
			t.Errorf("systemInstruction = %+v", body.SystemInstruction)
		}

		resp := geminiResponse{
			Candidates: []geminiCandidate{
				{
					Content: geminiContent{
						Parts: []geminiPart{{Text: `{"severity":`}, {Text: `"high"}`}},
					},
				},
			},
			UsageMetadata: geminiUsage{TotalTokenCount: 75},
		}
		json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	g := &Gemini{
		apiKey:  "test-key",
		model:   "gemini-2.5-flash",
		baseURL: server.URL,
		client:  server.Client(),
	}

	resp, err := g.Complete(context.Background(), CompletionRequest{
		SystemPrompt: "system",
		UserPrompt:   "thrips",
		MaxTokens:    10,
	})
	if err != nil {
		t.Fatalf("Complete error: %v", err)
	}
	if resp.Content != `{"severity":"high"}` {
		t.Errorf("Content = %q", resp.Content)
	}
	if resp.TokensUsed != 75 {
		t.Errorf("TokensUsed = %d, want 75", resp.TokensUsed)
	}
}

func TestGemini_AuthError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(403)
		w.Write([]byte(`{"error":"forbidden"}`))
	}))
	defer server.Close()

	g := &Gemini{apiKey: "bad-key", model: "gemini-2.5-flash", baseURL: server.URL, client: server.Client()}

	_, err := g.Complete(context.Background(), CompletionRequest{UserPrompt: "test"})
	if err == nil {
		t.Fatal("Expected auth error")
	}
	if !IsAuthError(err) {
		t.Errorf("Expected auth error, got: %v", err)
	}
}

func TestGemini_NoCandidates(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(geminiResponse{Candidates: []geminiCandidate{}})
	}))
	defer server.Close()

	g := &Gemini{apiKey: "test-key", model: "gemini-2.5-flash", baseURL: server.URL, client: server.Client()}

	if _, err := g.Complete(context.Background(), CompletionRequest{UserPrompt: "test"}); err == nil {
		t.Error("Expected error for no candidates")
	}
}

func TestNewGemini_GoogleKeyFallback(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "")
	t.Setenv("GOOGLE_API_KEY", "google-key")

	g, err := NewGemini("gemini-2.5-flash")
	if err != nil {
		t.Fatalf("NewGemini: %v", err)
	}
	if g.apiKey != "google-key" {
		t.Errorf("apiKey = %q, want google-key", g.apiKey)
	}
}
