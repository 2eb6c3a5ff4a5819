package solver

import (
	"fmt"
	"strings"
)

// DegenerateModelError rejects a model with no variables or no constraints
// before it reaches any backend. Not retryable.
type DegenerateModelError struct {
	Reason string
}

func (e *DegenerateModelError) Error() string {
	return "degenerate model: " + e.Reason
}

// UnsupportedCapabilityError is returned when no requested solver declares
// the capabilities the model requires. Not retryable.
type UnsupportedCapabilityError struct {
	Required  []string
	Attempted []string
}

func (e *UnsupportedCapabilityError) Error() string {
	return fmt.Sprintf("no solver among [%s] supports required capabilities [%s]",
		strings.Join(e.Attempted, ", "), strings.Join(e.Required, ", "))
}

// AdapterError wraps a backend-level failure (as opposed to a mathematical
// infeasibility, which is a valid terminal status).
type AdapterError struct {
	SolverID string
	Err      error
}

func (e *AdapterError) Error() string {
	return fmt.Sprintf("solver %s: %v", e.SolverID, e.Err)
}

func (e *AdapterError) Unwrap() error { return e.Err }
