package pipeline

import (
	"errors"

	"github.com/optiq-ai/optiq/internal/llm"
	"github.com/optiq-ai/optiq/internal/router"
	"github.com/optiq-ai/optiq/internal/solver"
	"github.com/optiq-ai/optiq/internal/validate"
)

// ErrRunNotFound is returned for run ids the service has never seen.
var ErrRunNotFound = errors.New("run not found")

// retryable decides whether a stage failure is worth a fresh attempt.
// Malformed or invariant-violating output and transient infrastructure
// failures are retried; business-rule stops, model-structural errors and
// routing exhaustion are surfaced immediately.
func retryable(err error) bool {
	var insufficient *validate.InsufficientDataError
	if errors.As(err, &insufficient) {
		return false
	}
	var degenerate *solver.DegenerateModelError
	if errors.As(err, &degenerate) {
		return false
	}
	var unsupported *solver.UnsupportedCapabilityError
	if errors.As(err, &unsupported) {
		return false
	}
	var adapterErr *solver.AdapterError
	if errors.As(err, &adapterErr) {
		return false
	}
	if errors.Is(err, router.ErrNoAvailableRegion) {
		return false
	}

	var verr *validate.Error
	if errors.As(err, &verr) {
		return true
	}
	var backend *llm.BackendError
	if errors.As(err, &backend) {
		return true
	}
	return false
}
