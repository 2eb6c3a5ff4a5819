package solver

import (
	"context"
	"errors"
	"math"

	"github.com/optiq-ai/optiq/internal/schema"
)

const (
	integerTolerance = 1e-6
	maxNodes         = 10000
)

// BranchBoundBackend solves mixed-integer linear programs by branch and
// bound over the simplex relaxation.
type BranchBoundBackend struct{}

func (BranchBoundBackend) ID() string { return "branchbound" }

func (BranchBoundBackend) Capabilities() []string {
	return []string{CapLinear, CapContinuous, CapInteger, CapBinary}
}

func (BranchBoundBackend) Solve(ctx context.Context, p *Problem) (*Result, error) {
	if !p.HasIntegers() {
		return solveLP(p)
	}

	root, err := solveLP(p)
	if err != nil {
		return nil, err
	}
	if root.Status != schema.StatusOptimal {
		// An infeasible or unbounded relaxation settles the integer
		// problem's status as well.
		return root, nil
	}

	type node struct {
		lower, upper []float64
	}
	stack := []node{{lower: varLowers(p), upper: varUppers(p)}}

	var incumbent *Result
	nodes := 0

	for len(stack) > 0 {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		nodes++
		if nodes > maxNodes {
			return nil, &AdapterError{SolverID: "branchbound", Err: errors.New("node limit exceeded")}
		}

		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		relaxed, err := solveLP(withBounds(p, cur.lower, cur.upper))
		if err != nil {
			return nil, err
		}
		if relaxed.Status != schema.StatusOptimal {
			continue // infeasible subtree
		}
		if incumbent != nil && p.minimizeKey(relaxed.Objective) >= p.minimizeKey(incumbent.Objective)-integerTolerance {
			continue // bound: cannot beat the incumbent
		}

		branchVar := firstFractional(p, relaxed.Values)
		if branchVar < 0 {
			// Integral solution; becomes the new incumbent.
			incumbent = relaxed
			continue
		}

		v := relaxed.Values[branchVar]

		down := node{lower: append([]float64(nil), cur.lower...), upper: append([]float64(nil), cur.upper...)}
		down.upper[branchVar] = math.Floor(v)
		if down.lower[branchVar] <= down.upper[branchVar] {
			stack = append(stack, down)
		}

		up := node{lower: append([]float64(nil), cur.lower...), upper: append([]float64(nil), cur.upper...)}
		up.lower[branchVar] = math.Ceil(v)
		if up.lower[branchVar] <= up.upper[branchVar] {
			stack = append(stack, up)
		}
	}

	if incumbent == nil {
		return &Result{Status: schema.StatusInfeasible}, nil
	}
	roundIntegers(p, incumbent.Values)
	incumbent.Objective = p.Objective(incumbent.Values)
	return incumbent, nil
}

func varLowers(p *Problem) []float64 {
	out := make([]float64, len(p.Vars))
	for i, v := range p.Vars {
		out[i] = v.Lower
	}
	return out
}

func varUppers(p *Problem) []float64 {
	out := make([]float64, len(p.Vars))
	for i, v := range p.Vars {
		out[i] = v.Upper
	}
	return out
}

// withBounds copies the problem with the node's tightened variable bounds.
func withBounds(p *Problem, lower, upper []float64) *Problem {
	vars := make([]VarSpec, len(p.Vars))
	copy(vars, p.Vars)
	for i := range vars {
		vars[i].Lower = lower[i]
		vars[i].Upper = upper[i]
	}
	out := *p
	out.Vars = vars
	return &out
}

// firstFractional returns the index of the first integer-kind variable with
// a fractional value, or -1 when the solution is integral.
func firstFractional(p *Problem, values []float64) int {
	for i, v := range p.Vars {
		if v.Kind == schema.VariableContinuous {
			continue
		}
		if math.Abs(values[i]-math.Round(values[i])) > integerTolerance {
			return i
		}
	}
	return -1
}

// roundIntegers snaps near-integral values onto exact integers so callers
// see clean results.
func roundIntegers(p *Problem, values []float64) {
	for i, v := range p.Vars {
		if v.Kind != schema.VariableContinuous {
			values[i] = math.Round(values[i])
		}
	}
}
