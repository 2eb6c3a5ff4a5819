// Package validate holds the per-stage validators: pure predicates over the
// schema types that gate what the pipeline is allowed to trust. A stage
// output that fails its validator is never cached and never carried forward.
package validate

import (
	"fmt"
	"strings"

	"github.com/optiq-ai/optiq/internal/expr"
	"github.com/optiq-ai/optiq/internal/schema"
)

// Diagnostic pinpoints one validation problem.
type Diagnostic struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Error is a validation failure with structured diagnostics. It is
// recoverable: the orchestrator retries the stage with a fresh inference
// call up to the retry bound.
type Error struct {
	Stage       schema.Stage
	Diagnostics []Diagnostic
}

func (e *Error) Error() string {
	parts := make([]string, len(e.Diagnostics))
	for i, d := range e.Diagnostics {
		parts[i] = d.Field + ": " + d.Message
	}
	return fmt.Sprintf("%s output invalid: %s", e.Stage, strings.Join(parts, "; "))
}

// InsufficientDataError is the hard stop raised when the readiness score is
// below the configured threshold. It is a business-rule failure, not a
// malformed output: the run halts without retrying and without invoking the
// model-building stage.
type InsufficientDataError struct {
	ReadinessScore float64
	Threshold      float64
	MissingData    []string
}

func (e *InsufficientDataError) Error() string {
	return fmt.Sprintf("insufficient data: readiness %.2f below threshold %.2f", e.ReadinessScore, e.Threshold)
}

type checker struct {
	stage schema.Stage
	diags []Diagnostic
}

func (c *checker) addf(field, format string, args ...any) {
	c.diags = append(c.diags, Diagnostic{Field: field, Message: fmt.Sprintf(format, args...)})
}

func (c *checker) err() error {
	if len(c.diags) == 0 {
		return nil
	}
	return &Error{Stage: c.stage, Diagnostics: c.diags}
}

// Intent checks the intent-classification output.
func Intent(r *schema.IntentResult) error {
	c := &checker{stage: schema.StageIntent}
	if r.IntentLabel == "" {
		c.addf("intent_label", "must be non-empty")
	}
	if r.IndustryLabel == "" {
		c.addf("industry_label", "must be non-empty")
	}
	if r.Confidence < 0 || r.Confidence > 1 {
		c.addf("confidence", "must be within [0,1], got %v", r.Confidence)
	}
	switch r.Complexity {
	case schema.ComplexityLow, schema.ComplexityMedium, schema.ComplexityHigh:
	default:
		c.addf("complexity", "must be low, medium or high, got %q", r.Complexity)
	}
	if len(r.SolverRequirements.Primary) == 0 {
		c.addf("solver_capability_requirements.primary", "must be non-empty")
	}
	return c.err()
}

// DataAnalysis checks the data-readiness output. A readiness score below
// threshold fails with InsufficientDataError after the structural checks pass.
func DataAnalysis(r *schema.DataAnalysisResult, threshold float64) error {
	c := &checker{stage: schema.StageDataAnalysis}
	if r.ReadinessScore < 0 || r.ReadinessScore > 1 {
		c.addf("readiness_score", "must be within [0,1], got %v", r.ReadinessScore)
	}
	if r.EntityCount < 0 {
		c.addf("entity_count", "must be >= 0, got %d", r.EntityCount)
	}
	switch r.DataQuality {
	case schema.DataQualityLow, schema.DataQualityMedium, schema.DataQualityHigh:
	default:
		c.addf("data_quality", "must be low, medium or high, got %q", r.DataQuality)
	}
	if err := c.err(); err != nil {
		return err
	}
	if r.ReadinessScore < threshold {
		return &InsufficientDataError{
			ReadinessScore: r.ReadinessScore,
			Threshold:      threshold,
			MissingData:    r.MissingData,
		}
	}
	return nil
}

// Model checks the model-building output: schema well-formedness, the
// variable-usage invariant in both directions, and that every expression
// parses under the restricted grammar.
func Model(m *schema.OptimizationModel) error {
	c := &checker{stage: schema.StageModelBuilding}

	declared := make(map[string]bool, len(m.Variables))
	for i, v := range m.Variables {
		field := fmt.Sprintf("variables[%d]", i)
		if v.Name == "" {
			c.addf(field+".name", "must be non-empty")
			continue
		}
		if declared[v.Name] {
			c.addf(field+".name", "duplicate variable %q", v.Name)
		}
		declared[v.Name] = true
		switch v.Kind {
		case schema.VariableContinuous, schema.VariableInteger, schema.VariableBinary:
		default:
			c.addf(field+".kind", "must be continuous, integer or binary, got %q", v.Kind)
		}
		if v.LowerBound != nil && v.UpperBound != nil && *v.LowerBound > *v.UpperBound {
			c.addf(field, "lower bound %v exceeds upper bound %v", *v.LowerBound, *v.UpperBound)
		}
	}
	if len(m.Variables) == 0 {
		c.addf("variables", "must declare at least one variable")
	}

	// Every identifier referenced anywhere must be declared, and every
	// declared variable must be referenced somewhere. An unused variable is
	// a validation failure, not a warning.
	used := make(map[string]bool, len(declared))

	for i, constraint := range m.Constraints {
		field := fmt.Sprintf("constraints[%d].expression", i)
		cmp, err := expr.ParseConstraint(constraint.Expression)
		if err != nil {
			c.addf(field, "%v", err)
			continue
		}
		for _, name := range expr.Identifiers(cmp.LHS) {
			used[name] = true
			if !declared[name] {
				c.addf(field, "references undeclared variable %q", name)
			}
		}
		for _, name := range expr.Identifiers(cmp.RHS) {
			used[name] = true
			if !declared[name] {
				c.addf(field, "references undeclared variable %q", name)
			}
		}
	}

	switch m.Objective.Direction {
	case schema.Minimize, schema.Maximize:
	default:
		c.addf("objective.direction", "must be minimize or maximize, got %q", m.Objective.Direction)
	}
	objNode, err := expr.Parse(m.Objective.Expression)
	if err != nil {
		c.addf("objective.expression", "%v", err)
	} else {
		for _, name := range expr.Identifiers(objNode) {
			used[name] = true
			if !declared[name] {
				c.addf("objective.expression", "references undeclared variable %q", name)
			}
		}
	}

	for _, v := range m.Variables {
		if v.Name != "" && !used[v.Name] {
			c.addf("variables", "variable %q appears in no constraint or objective", v.Name)
		}
	}

	return c.err()
}

// Solution checks that the solver actually used was one the intent stage
// declared, keeping the run auditable against its stated requirement.
func Solution(s *schema.SolutionRecord, intent *schema.IntentResult) error {
	c := &checker{stage: schema.StageSolving}
	switch s.Status {
	case schema.StatusOptimal, schema.StatusInfeasible, schema.StatusUnbounded, schema.StatusError:
	default:
		c.addf("status", "unknown status %q", s.Status)
	}
	if s.Status == schema.StatusOptimal {
		if s.ObjectiveValue == nil {
			c.addf("objective_value", "must be present when status is optimal")
		}
		if len(s.VariableValues) == 0 {
			c.addf("variable_values", "must be present when status is optimal")
		}
	}
	allowed := false
	for _, id := range intent.AllowedSolvers() {
		if id == s.SolverUsed {
			allowed = true
			break
		}
	}
	if !allowed {
		c.addf("solver_used", "solver %q is not among the declared requirements %v", s.SolverUsed, intent.AllowedSolvers())
	}
	return c.err()
}
