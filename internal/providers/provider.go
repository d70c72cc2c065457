package providers

import (
	"context"
	"fmt"
)

// CompletionRequest contains the prompt sent to an LLM.
type CompletionRequest struct {
	SystemPrompt string
	UserPrompt   string
	MaxTokens    int
	Temperature  float64

	// SchemaName and Schema describe the JSON object the answer must be.
	// Providers that support structured output enforce it; the rest ask
	// for a plain JSON object.
	SchemaName string
	Schema     map[string]any
}

// CompletionResponse contains the raw response from an LLM.
type CompletionResponse struct {
	Content    string
	TokensUsed int
}

// Completer is the provider abstraction interface.
type Completer interface {
	Complete(ctx context.Context, req CompletionRequest) (CompletionResponse, error)
	Name() string
}

const (
	defaultMaxTokens = 1024
	maxRetries       = 3
)

// New creates a provider by name.
func New(provider, model string) (Completer, error) {
	switch provider {
	case "anthropic":
		return NewAnthropic(model)
	case "openai":
		return NewOpenAI(model)
	case "gemini", "google":
		return NewGemini(model)
	case "ollama", "lmstudio", "localai":
		return NewOllama(provider, model)
	default:
		return nil, fmt.Errorf("unknown provider: %s", provider)
	}
}

// Names lists the provider names accepted by New, aliases excluded.
func Names() []string {
	return []string{"anthropic", "openai", "gemini", "ollama", "lmstudio", "localai"}
}

func maxTokensOrDefault(n int) int {
	if n <= 0 {
		return defaultMaxTokens
	}
	return n
}
