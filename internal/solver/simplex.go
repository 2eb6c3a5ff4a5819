package solver

import (
	"context"
	"errors"
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/optimize/convex/lp"

	"github.com/optiq-ai/optiq/internal/expr"
	"github.com/optiq-ai/optiq/internal/schema"
)

// Result is a backend solve outcome. Values are in the original variable
// space and Objective is in the user's declared sense; both are meaningful
// only when Status is optimal.
type Result struct {
	Status    schema.SolutionStatus
	Values    []float64
	Objective float64
}

// Backend is one numeric solver implementation.
type Backend interface {
	ID() string
	Capabilities() []string
	Solve(ctx context.Context, p *Problem) (*Result, error)
}

// SimplexBackend solves continuous linear programs with gonum's simplex
// implementation.
type SimplexBackend struct{}

func (SimplexBackend) ID() string { return "simplex" }

func (SimplexBackend) Capabilities() []string {
	return []string{CapLinear, CapContinuous}
}

func (SimplexBackend) Solve(ctx context.Context, p *Problem) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return solveLP(p)
}

// solveLP lowers the problem to standard form (min c'z s.t. Az = b, z >= 0)
// and runs the simplex method. Variables are shifted by their lower bounds
// so the non-negativity requirement of the standard form holds, upper
// bounds become slack rows, and each inequality gains a slack or surplus
// column.
func solveLP(p *Problem) (*Result, error) {
	n := len(p.Vars)

	type row struct {
		coeffs []float64
		rel    expr.Relation
		bound  float64
	}
	rows := make([]row, 0, len(p.Cons)+n)

	for _, con := range p.Cons {
		// Shift the bound by the contribution of the variable lower bounds.
		b := con.Bound
		for i, c := range con.Coeffs {
			b -= c * p.Vars[i].Lower
		}
		rows = append(rows, row{coeffs: con.Coeffs, rel: con.Rel, bound: b})
	}
	for i, v := range p.Vars {
		if math.IsInf(v.Upper, 1) {
			continue
		}
		coeffs := make([]float64, n)
		coeffs[i] = 1
		rows = append(rows, row{coeffs: coeffs, rel: expr.LE, bound: v.Upper - v.Lower})
	}

	slacks := 0
	for _, r := range rows {
		if r.rel != expr.EQ {
			slacks++
		}
	}

	m := len(rows)
	cols := n + slacks
	a := mat.NewDense(m, cols, nil)
	b := make([]float64, m)
	c := make([]float64, cols)

	for i, coeff := range p.C {
		if p.Maximize {
			c[i] = -coeff
		} else {
			c[i] = coeff
		}
	}

	slack := n
	for ri, r := range rows {
		for i, coeff := range r.coeffs {
			a.Set(ri, i, coeff)
		}
		b[ri] = r.bound
		switch r.rel {
		case expr.LE:
			a.Set(ri, slack, 1)
			slack++
		case expr.GE:
			a.Set(ri, slack, -1)
			slack++
		}
	}

	_, z, err := lp.Simplex(c, a, b, 1e-10, nil)
	switch {
	case errors.Is(err, lp.ErrInfeasible):
		return &Result{Status: schema.StatusInfeasible}, nil
	case errors.Is(err, lp.ErrUnbounded):
		return &Result{Status: schema.StatusUnbounded}, nil
	case err != nil:
		return nil, &AdapterError{SolverID: "simplex", Err: err}
	}

	x := make([]float64, n)
	for i := range x {
		x[i] = z[i] + p.Vars[i].Lower
	}
	return &Result{
		Status:    schema.StatusOptimal,
		Values:    x,
		Objective: p.Objective(x),
	}, nil
}
