// Package solver translates a validated OptimizationModel into the input
// format of a numeric solver backend and back into a normalized solution
// record. Backends are pluggable behind a narrow contract: model in,
// solution or infeasibility report out. Infeasible and unbounded are
// terminal solution statuses, never errors.
package solver

import (
	"fmt"
	"math"

	"github.com/optiq-ai/optiq/internal/expr"
	"github.com/optiq-ai/optiq/internal/schema"
)

// Solver capability identifiers, declared by backends and required by models.
const (
	CapLinear     = "linear"
	CapContinuous = "continuous"
	CapInteger    = "integer"
	CapBinary     = "binary"
)

// VarSpec is one decision variable with its bounds resolved: [0, +inf) for
// continuous and integer kinds unless declared, {0,1} for binary regardless
// of declared bounds.
type VarSpec struct {
	Name    string
	Kind    schema.VariableKind
	Lower   float64
	Upper   float64 // math.Inf(1) when unbounded above
}

// ConSpec is one constraint in canonical form: Coeffs·x Rel Bound, with
// Coeffs aligned to Problem.Vars.
type ConSpec struct {
	Coeffs []float64
	Rel    expr.Relation
	Bound  float64
}

// Problem is an OptimizationModel lowered into dense numeric form.
// C and Offset are in the user's declared sense; backends minimizing
// internally negate C when Maximize is set.
type Problem struct {
	Vars     []VarSpec
	Cons     []ConSpec
	C        []float64
	Offset   float64
	Maximize bool
}

// Objective evaluates the user-sense objective at x.
func (p *Problem) Objective(x []float64) float64 {
	v := p.Offset
	for i, c := range p.C {
		v += c * x[i]
	}
	return v
}

// minimizeKey maps a user-sense objective value onto the minimize sense used
// for bounding comparisons.
func (p *Problem) minimizeKey(objective float64) float64 {
	if p.Maximize {
		return -objective
	}
	return objective
}

// HasIntegers reports whether any variable is integer or binary.
func (p *Problem) HasIntegers() bool {
	for _, v := range p.Vars {
		if v.Kind != schema.VariableContinuous {
			return true
		}
	}
	return false
}

// RequiredCapabilities lists the capabilities a backend must declare to
// solve this problem.
func (p *Problem) RequiredCapabilities() []string {
	caps := []string{CapLinear, CapContinuous}
	hasInt, hasBin := false, false
	for _, v := range p.Vars {
		switch v.Kind {
		case schema.VariableInteger:
			hasInt = true
		case schema.VariableBinary:
			hasBin = true
		}
	}
	if hasInt {
		caps = append(caps, CapInteger)
	}
	if hasBin {
		caps = append(caps, CapBinary)
	}
	return caps
}

// Normalize lowers a model into a Problem. A model with zero variables or
// zero constraints is rejected with DegenerateModelError before any backend
// is consulted.
func Normalize(m *schema.OptimizationModel) (*Problem, error) {
	if len(m.Variables) == 0 {
		return nil, &DegenerateModelError{Reason: "model declares no variables"}
	}
	if len(m.Constraints) == 0 {
		return nil, &DegenerateModelError{Reason: "model declares no constraints"}
	}

	index := make(map[string]int, len(m.Variables))
	p := &Problem{
		Vars:     make([]VarSpec, len(m.Variables)),
		C:        make([]float64, len(m.Variables)),
		Maximize: m.Objective.Direction == schema.Maximize,
	}
	for i, v := range m.Variables {
		if _, dup := index[v.Name]; dup {
			return nil, fmt.Errorf("duplicate variable %q", v.Name)
		}
		index[v.Name] = i

		spec := VarSpec{Name: v.Name, Kind: v.Kind, Lower: 0, Upper: math.Inf(1)}
		if v.Kind == schema.VariableBinary {
			// Binary variables are {0,1} regardless of declared bounds.
			spec.Lower, spec.Upper = 0, 1
		} else {
			if v.LowerBound != nil {
				spec.Lower = *v.LowerBound
			}
			if v.UpperBound != nil {
				spec.Upper = *v.UpperBound
			}
		}
		if spec.Lower > spec.Upper {
			return nil, fmt.Errorf("variable %q has empty domain [%v, %v]", v.Name, spec.Lower, spec.Upper)
		}
		p.Vars[i] = spec
	}

	objNode, err := expr.Parse(m.Objective.Expression)
	if err != nil {
		return nil, fmt.Errorf("objective: %w", err)
	}
	objForm, err := expr.Linearize(objNode)
	if err != nil {
		return nil, fmt.Errorf("objective: %w", err)
	}
	p.Offset = objForm.Constant
	for name, coeff := range objForm.Coeffs {
		i, ok := index[name]
		if !ok {
			return nil, fmt.Errorf("objective references undeclared variable %q", name)
		}
		p.C[i] = coeff
	}

	for ci, constraint := range m.Constraints {
		cmp, err := expr.ParseConstraint(constraint.Expression)
		if err != nil {
			return nil, fmt.Errorf("constraint %d: %w", ci, err)
		}
		nc, err := expr.NormalizeConstraint(cmp)
		if err != nil {
			return nil, fmt.Errorf("constraint %d: %w", ci, err)
		}
		spec := ConSpec{Coeffs: make([]float64, len(p.Vars)), Rel: nc.Rel, Bound: nc.Bound}
		for name, coeff := range nc.Coeffs {
			i, ok := index[name]
			if !ok {
				return nil, fmt.Errorf("constraint %d references undeclared variable %q", ci, name)
			}
			spec.Coeffs[i] = coeff
		}
		p.Cons = append(p.Cons, spec)
	}

	return p, nil
}
