package expr

import (
	"errors"
	"math"
	"reflect"
	"testing"
)

func TestParseObjective(t *testing.T) {
	n, err := Parse("45*x1 + 50*x2 + 55*x3")
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	lf, err := Linearize(n)
	if err != nil {
		t.Fatalf("Linearize failed: %v", err)
	}

	want := map[string]float64{"x1": 45, "x2": 50, "x3": 55}
	if !reflect.DeepEqual(lf.Coeffs, want) {
		t.Errorf("coefficients: got %v, want %v", lf.Coeffs, want)
	}
	if lf.Constant != 0 {
		t.Errorf("constant: got %v, want 0", lf.Constant)
	}
}

func TestParseConstraintForms(t *testing.T) {
	tests := []struct {
		expr   string
		coeffs map[string]float64
		rel    Relation
		bound  float64
	}{
		{"x1 + x2 + x3 >= 800", map[string]float64{"x1": 1, "x2": 1, "x3": 1}, GE, 800},
		{"x1 <= 120", map[string]float64{"x1": 1}, LE, 120},
		{"2*x - 3*y = 10", map[string]float64{"x": 2, "y": -3}, EQ, 10},
		{"x + 5 <= y", map[string]float64{"x": 1, "y": -1}, LE, -5},
		{"-(x + y) >= -10", map[string]float64{"x": -1, "y": -1}, GE, -10},
		{"0.5*x1 + 1.5e2 >= x2", map[string]float64{"x1": 0.5, "x2": -1}, GE, -150},
	}

	for _, tt := range tests {
		cmp, err := ParseConstraint(tt.expr)
		if err != nil {
			t.Errorf("ParseConstraint(%q) failed: %v", tt.expr, err)
			continue
		}
		nc, err := NormalizeConstraint(cmp)
		if err != nil {
			t.Errorf("NormalizeConstraint(%q) failed: %v", tt.expr, err)
			continue
		}
		if nc.Rel != tt.rel {
			t.Errorf("%q: relation got %q, want %q", tt.expr, nc.Rel, tt.rel)
		}
		if math.Abs(nc.Bound-tt.bound) > 1e-12 {
			t.Errorf("%q: bound got %v, want %v", tt.expr, nc.Bound, tt.bound)
		}
		if !reflect.DeepEqual(nc.Coeffs, tt.coeffs) {
			t.Errorf("%q: coeffs got %v, want %v", tt.expr, nc.Coeffs, tt.coeffs)
		}
	}
}

func TestParseRejectsMalformed(t *testing.T) {
	bad := []string{
		"",
		"x +",
		"x1 ++ x2",
		"(x1 + x2",
		"x1 & x2",
		"x1 >= ",
	}
	for _, expr := range bad {
		if _, err := ParseConstraint(expr); err == nil {
			t.Errorf("ParseConstraint(%q) succeeded, want parse error", expr)
		}
	}
}

func TestConstraintRequiresComparison(t *testing.T) {
	_, err := ParseConstraint("x1 + x2")
	var perr *ParseError
	if !errors.As(err, &perr) {
		t.Fatalf("expected ParseError, got %v", err)
	}
}

func TestLinearizeRejectsProducts(t *testing.T) {
	n, err := Parse("x1 * x2")
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	_, err = Linearize(n)
	var nerr *NonlinearError
	if !errors.As(err, &nerr) {
		t.Fatalf("expected NonlinearError, got %v", err)
	}
}

func TestConstantFolding(t *testing.T) {
	n, err := Parse("2 * (3 + x) - 4")
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	lf, err := Linearize(n)
	if err != nil {
		t.Fatalf("Linearize failed: %v", err)
	}
	if lf.Coeffs["x"] != 2 {
		t.Errorf("coefficient of x: got %v, want 2", lf.Coeffs["x"])
	}
	if lf.Constant != 2 {
		t.Errorf("constant: got %v, want 2", lf.Constant)
	}
}

func TestIdentifiersOrdered(t *testing.T) {
	n, err := Parse("b + a + 2*b + c")
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	got := Identifiers(n)
	want := []string{"b", "a", "c"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Identifiers: got %v, want %v", got, want)
	}
}
