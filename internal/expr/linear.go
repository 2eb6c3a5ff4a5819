package expr

import "fmt"

// LinearForm is an expression reduced to sum(Coeffs[name]*name) + Constant.
type LinearForm struct {
	Coeffs   map[string]float64
	Constant float64
}

// NonlinearError reports an expression the linear solvers cannot consume.
type NonlinearError struct {
	Detail string
}

func (e *NonlinearError) Error() string {
	return "expression is not linear: " + e.Detail
}

// Linearize reduces an AST to a linear form, or fails with a NonlinearError
// when the expression contains a product of two variable-bearing subterms.
func Linearize(n Node) (*LinearForm, error) {
	switch v := n.(type) {
	case Num:
		return &LinearForm{Coeffs: map[string]float64{}, Constant: v.Value}, nil
	case Var:
		return &LinearForm{Coeffs: map[string]float64{v.Name: 1}}, nil
	case Neg:
		lf, err := Linearize(v.Operand)
		if err != nil {
			return nil, err
		}
		return lf.scale(-1), nil
	case Bin:
		left, err := Linearize(v.Left)
		if err != nil {
			return nil, err
		}
		right, err := Linearize(v.Right)
		if err != nil {
			return nil, err
		}
		switch v.Op {
		case OpAdd:
			return left.add(right, 1), nil
		case OpSub:
			return left.add(right, -1), nil
		case OpMul:
			// One side must be a pure constant.
			if len(left.Coeffs) == 0 {
				return right.scale(left.Constant), nil
			}
			if len(right.Coeffs) == 0 {
				return left.scale(right.Constant), nil
			}
			return nil, &NonlinearError{Detail: "product of two variable terms"}
		}
	}
	return nil, fmt.Errorf("unknown expression node %T", n)
}

// NormalizedConstraint is a constraint brought to the canonical form
// sum(Coeffs[name]*name) Rel Bound, with all constant terms moved to the
// right-hand side.
type NormalizedConstraint struct {
	Coeffs map[string]float64
	Rel    Relation
	Bound  float64
}

// NormalizeConstraint linearizes both sides of a comparison and moves every
// variable term to the left and every constant to the right.
func NormalizeConstraint(c *Comparison) (*NormalizedConstraint, error) {
	lhs, err := Linearize(c.LHS)
	if err != nil {
		return nil, err
	}
	rhs, err := Linearize(c.RHS)
	if err != nil {
		return nil, err
	}
	diff := lhs.add(rhs, -1) // lhs - rhs Rel 0
	coeffs := make(map[string]float64, len(diff.Coeffs))
	for name, coeff := range diff.Coeffs {
		if coeff != 0 {
			coeffs[name] = coeff
		}
	}
	return &NormalizedConstraint{Coeffs: coeffs, Rel: c.Rel, Bound: -diff.Constant}, nil
}

func (lf *LinearForm) scale(k float64) *LinearForm {
	out := &LinearForm{Coeffs: make(map[string]float64, len(lf.Coeffs)), Constant: lf.Constant * k}
	for name, coeff := range lf.Coeffs {
		out.Coeffs[name] = coeff * k
	}
	return out
}

// add returns lf + sign*other without mutating either operand.
func (lf *LinearForm) add(other *LinearForm, sign float64) *LinearForm {
	out := &LinearForm{Coeffs: make(map[string]float64, len(lf.Coeffs)+len(other.Coeffs)), Constant: lf.Constant + sign*other.Constant}
	for name, coeff := range lf.Coeffs {
		out.Coeffs[name] = coeff
	}
	for name, coeff := range other.Coeffs {
		out.Coeffs[name] += sign * coeff
	}
	return out
}
