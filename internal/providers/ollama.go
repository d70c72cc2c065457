package providers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	goopenai "github.com/sashabaranov/go-openai"
)

const (
	defaultOllamaURL   = "http://localhost:11434"
	defaultLMStudioURL = "http://localhost:1234"
	defaultLocalAIURL  = "http://localhost:8080"
)

// Ollama implements the Completer interface for local servers that speak the
// OpenAI-compatible API: Ollama, LM Studio and LocalAI.
type Ollama struct {
	name    string
	model   string
	baseURL string
	client  *goopenai.Client
}

// NewOllama creates a local provider. name selects the default address and
// the environment variable that overrides it. No API key is required by default.
func NewOllama(name, model string) (*Ollama, error) {
	var baseURL string
	switch name {
	case "ollama":
		baseURL = envOr("OLLAMA_HOST", defaultOllamaURL)
	case "lmstudio":
		baseURL = envOr("LMSTUDIO_HOST", defaultLMStudioURL)
	case "localai":
		baseURL = envOr("LOCALAI_HOST", defaultLocalAIURL)
	default:
		return nil, fmt.Errorf("unknown local provider: %s", name)
	}

	// Optional API key for servers that require it (e.g., LM Studio)
	return newOllama(name, model, baseURL, os.Getenv("AGRIGUARD_OLLAMA_API_KEY")), nil
}

func newOllama(name, model, baseURL, apiKey string) *Ollama {
	cfg := goopenai.DefaultConfig(apiKey)
	cfg.BaseURL = normalizeOpenAIBase(baseURL)
	cfg.HTTPClient = &http.Client{Timeout: 300 * time.Second}
	return &Ollama{
		name:    name,
		model:   model,
		baseURL: cfg.BaseURL,
		client:  goopenai.NewClientWithConfig(cfg),
	}
}

// normalizeOpenAIBase strips trailing /, /v1 and /v1/chat/completions and
// returns the address with a single /v1 suffix.
func normalizeOpenAIBase(baseURL string) string {
	baseURL = strings.TrimRight(baseURL, "/")
	baseURL = strings.TrimSuffix(baseURL, "/v1/chat/completions")
	baseURL = strings.TrimSuffix(baseURL, "/v1")
	return baseURL + "/v1"
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func (o *Ollama) Name() string { return o.name }

func (o *Ollama) Complete(ctx context.Context, req CompletionRequest) (CompletionResponse, error) {
	body := goopenai.ChatCompletionRequest{
		Model: o.model,
		Messages: []goopenai.ChatCompletionMessage{
			{Role: goopenai.ChatMessageRoleSystem, Content: req.SystemPrompt},
			{Role: goopenai.ChatMessageRoleUser, Content: req.UserPrompt},
		},
		MaxTokens:   maxTokensOrDefault(req.MaxTokens),
		Temperature: float32(req.Temperature),
		// Local servers vary in json_schema support; json_object is widely accepted.
		ResponseFormat: &goopenai.ChatCompletionResponseFormat{
			Type: goopenai.ChatCompletionResponseFormatTypeJSONObject,
		},
	}

	var resp CompletionResponse
	err := retryWithBackoff(ctx, maxRetries, func() error {
		result, err := o.client.CreateChatCompletion(ctx, body)
		if err != nil {
			return classifyStatus(localStatus(err), err)
		}

		if len(result.Choices) == 0 {
			return fmt.Errorf("no choices in response")
		}
		if result.Choices[0].Message.Content == "" {
			return fmt.Errorf("empty text content in API response")
		}

		resp = CompletionResponse{
			Content:    result.Choices[0].Message.Content,
			TokensUsed: result.Usage.TotalTokens,
		}
		return nil
	})

	return resp, err
}

func localStatus(err error) int {
	var apiErr *goopenai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode
	}
	var reqErr *goopenai.RequestError
	if errors.As(err, &reqErr) {
		return reqErr.HTTPStatusCode
	}
	return 0
}
