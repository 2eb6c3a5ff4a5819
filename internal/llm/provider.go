// Package llm is the inference-backend boundary. A Provider issues one
// prompt+schema request to a named model and returns raw text plus latency
// and token accounting, or a typed BackendError. Provider output is treated
// as untrusted input everywhere downstream.
package llm

import "context"

// Provider defines the interface for LLM providers.
type Provider interface {
	// Complete sends a completion request and returns the response.
	Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)
	// Name returns the name of this provider.
	Name() string
}
