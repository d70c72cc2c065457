package advisory

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dshills/agriguard/internal/providers"
)

// Fetcher resolves a label to a record from some knowledge source.
type Fetcher interface {
	FetchAdvisory(ctx context.Context, label string) (Record, error)
	Name() string
}

// LLMFetcher asks a generative provider for an advisory and validates the answer.
type LLMFetcher struct {
	completer providers.Completer
	prompt    *Prompt
	maxTokens int
}

// NewLLMFetcher creates a fetcher backed by completer. A nil prompt uses DefaultPrompt.
func NewLLMFetcher(completer providers.Completer, prompt *Prompt, maxTokens int) *LLMFetcher {
	if prompt == nil {
		prompt = DefaultPrompt()
	}
	return &LLMFetcher{completer: completer, prompt: prompt, maxTokens: maxTokens}
}

func (f *LLMFetcher) Name() string { return f.completer.Name() }

func (f *LLMFetcher) FetchAdvisory(ctx context.Context, label string) (Record, error) {
	system, user, err := f.prompt.Render(label)
	if err != nil {
		return Record{}, err
	}

	resp, err := f.completer.Complete(ctx, providers.CompletionRequest{
		SystemPrompt: system,
		UserPrompt:   user,
		MaxTokens:    f.maxTokens,
		SchemaName:   "pest_advisory",
		Schema:       RecordSchema(),
	})
	if err != nil {
		return Record{}, fmt.Errorf("%w: %w", ErrProviderUnavailable, err)
	}

	rec, err := ParseRecord(resp.Content)
	if err != nil {
		return Record{}, err
	}
	rec.Source = f.completer.Name()
	return rec, nil
}

// ChainStepTimeout bounds each fetcher a Chain runs after an earlier one has
// used up the caller's deadline.
const ChainStepTimeout = 5 * time.Second

// Chain tries each fetcher in order and returns the first successful record.
// Cancellation stops the chain; an expired deadline does not, so an offline
// fetcher behind a slow provider still gets its turn.
type Chain []Fetcher

func (c Chain) Name() string {
	names := make([]string, len(c))
	for i, f := range c {
		names[i] = f.Name()
	}
	return strings.Join(names, "+")
}

func (c Chain) FetchAdvisory(ctx context.Context, label string) (Record, error) {
	if len(c) == 0 {
		return Record{}, fmt.Errorf("%w: no fetchers configured", ErrProviderUnavailable)
	}
	var errs []error
	for i, f := range c {
		if errors.Is(ctx.Err(), context.Canceled) {
			break
		}
		rec, err := step(ctx, f, label, i > 0)
		if err == nil {
			return rec, nil
		}
		errs = append(errs, fmt.Errorf("%s: %w", f.Name(), err))
	}
	return Record{}, errors.Join(errs...)
}

func step(ctx context.Context, f Fetcher, label string, fallback bool) (Record, error) {
	if fallback && errors.Is(ctx.Err(), context.DeadlineExceeded) {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(context.WithoutCancel(ctx), ChainStepTimeout)
		defer cancel()
	}
	return f.FetchAdvisory(ctx, label)
}
