package catalog

import (
	"context"
	"errors"

	"github.com/dshills/agriguard/internal/providers"
)

type failingCompleter struct{}

func (failingCompleter) Name() string { return "offline" }

func (failingCompleter) Complete(context.Context, providers.CompletionRequest) (providers.CompletionResponse, error) {
	return providers.CompletionResponse{}, errors.New("dial tcp: connection refused")
}

type stalledCompleter struct{}

func (stalledCompleter) Name() string { return "stalled" }

func (stalledCompleter) Complete(ctx context.Context, _ providers.CompletionRequest) (providers.CompletionResponse, error) {
	<-ctx.Done()
	return providers.CompletionResponse{}, ctx.Err()
}
