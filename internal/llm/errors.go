package llm

import (
	"context"
	"errors"
	"fmt"
)

// ErrorKind classifies an inference-backend failure.
type ErrorKind string

const (
	KindTimeout            ErrorKind = "timeout"
	KindRateLimited        ErrorKind = "rate_limited"
	KindBackendUnavailable ErrorKind = "backend_unavailable"
	KindMalformedResponse  ErrorKind = "malformed_response"
)

// BackendError is a typed inference failure. All kinds are transient from
// the pipeline's point of view and feed the retry policy.
type BackendError struct {
	Kind     ErrorKind
	Provider string
	Err      error
}

func (e *BackendError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s backend %s: %v", e.Provider, e.Kind, e.Err)
	}
	return fmt.Sprintf("%s backend %s", e.Provider, e.Kind)
}

func (e *BackendError) Unwrap() error { return e.Err }

// KindOf returns the backend error kind, or "" if err is not a BackendError.
func KindOf(err error) ErrorKind {
	var be *BackendError
	if errors.As(err, &be) {
		return be.Kind
	}
	return ""
}

// wrapTransportError maps transport-level failures onto the error taxonomy.
func wrapTransportError(provider string, err error) error {
	kind := KindBackendUnavailable
	if errors.Is(err, context.DeadlineExceeded) {
		kind = KindTimeout
	}
	return &BackendError{Kind: kind, Provider: provider, Err: err}
}

// wrapStatusError maps an HTTP status code onto the error taxonomy.
func wrapStatusError(provider string, status int, body string) error {
	kind := KindBackendUnavailable
	if status == 429 {
		kind = KindRateLimited
	}
	return &BackendError{Kind: kind, Provider: provider, Err: fmt.Errorf("status %d: %s", status, body)}
}
