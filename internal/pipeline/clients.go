package pipeline

import (
	"context"
	"fmt"

	"github.com/optiq-ai/optiq/internal/llm"
)

// InferenceClient dispatches one completion request to a named region.
// Implementations own the mapping from region id to concrete provider.
type InferenceClient interface {
	Complete(ctx context.Context, regionID string, req llm.CompletionRequest) (*llm.CompletionResponse, error)
}

// ProviderPool is the production InferenceClient: a static region-to-provider
// table built from configuration at startup.
type ProviderPool struct {
	providers map[string]llm.Provider
}

// NewProviderPool creates a pool over the given region providers.
func NewProviderPool(providers map[string]llm.Provider) *ProviderPool {
	return &ProviderPool{providers: providers}
}

func (p *ProviderPool) Complete(ctx context.Context, regionID string, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	provider, ok := p.providers[regionID]
	if !ok {
		return nil, fmt.Errorf("no provider registered for region %q", regionID)
	}
	return provider.Complete(ctx, req)
}
