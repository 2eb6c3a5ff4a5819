package solver

import (
	"context"
	"log"
	"time"

	"github.com/optiq-ai/optiq/internal/schema"
)

// Adapter selects among registered backends according to a preference order
// and converts backend results into SolutionRecords.
type Adapter struct {
	backends map[string]Backend
}

// NewAdapter creates an Adapter with the given backends registered.
func NewAdapter(backends ...Backend) *Adapter {
	a := &Adapter{backends: make(map[string]Backend, len(backends))}
	for _, b := range backends {
		a.backends[b.ID()] = b
	}
	return a
}

// DefaultAdapter registers the built-in backends.
func DefaultAdapter() *Adapter {
	return NewAdapter(SimplexBackend{}, BranchBoundBackend{})
}

// Backends lists the registered backend ids.
func (a *Adapter) Backends() []string {
	out := make([]string, 0, len(a.backends))
	for id := range a.backends {
		out = append(out, id)
	}
	return out
}

// Solve normalizes the model and attempts the requested solvers: every
// primary solver in order, then the fallback list only when each primary
// one lacked a required capability or returned an adapter-level error.
// A mathematical infeasibility or unboundedness is a terminal status and
// stops the search — it is never a reason to try another solver.
func (a *Adapter) Solve(ctx context.Context, m *schema.OptimizationModel, reqs schema.SolverRequirements) (*schema.SolutionRecord, error) {
	p, err := Normalize(m)
	if err != nil {
		return nil, err
	}
	required := p.RequiredCapabilities()

	var attempted []string
	var lastErr error

	for _, id := range append(append([]string{}, reqs.Primary...), reqs.Fallback...) {
		attempted = append(attempted, id)

		backend, ok := a.backends[id]
		if !ok {
			log.Printf("solver: %s not registered, trying next", id)
			continue
		}
		if missing := missingCapabilities(backend, required); len(missing) > 0 {
			log.Printf("solver: %s lacks capabilities %v, trying next", id, missing)
			continue
		}

		start := time.Now()
		result, err := backend.Solve(ctx, p)
		if err != nil {
			if ctx.Err() != nil {
				return nil, err
			}
			log.Printf("solver: %s failed: %v", id, err)
			lastErr = err
			continue
		}

		record := &schema.SolutionRecord{
			Status:      result.Status,
			SolveTimeMS: time.Since(start).Milliseconds(),
			SolverUsed:  id,
		}
		if result.Status == schema.StatusOptimal {
			values := make(map[string]float64, len(p.Vars))
			for i, v := range p.Vars {
				values[v.Name] = result.Values[i]
			}
			objective := result.Objective
			record.VariableValues = values
			record.ObjectiveValue = &objective
		}
		return record, nil
	}

	if lastErr != nil {
		return nil, lastErr
	}
	return nil, &UnsupportedCapabilityError{Required: required, Attempted: attempted}
}

func missingCapabilities(b Backend, required []string) []string {
	have := make(map[string]bool)
	for _, c := range b.Capabilities() {
		have[c] = true
	}
	var missing []string
	for _, c := range required {
		if !have[c] {
			missing = append(missing, c)
		}
	}
	return missing
}
