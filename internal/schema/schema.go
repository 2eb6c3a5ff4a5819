// Package schema defines the data model shared by every pipeline stage:
// the problem request, the four stage outputs, and the run aggregate.
// All types are plain data; once a value has passed validation it is
// treated as immutable by every downstream consumer.
package schema

import "time"

// Complexity grades how hard a problem is expected to be to model and solve.
type Complexity string

const (
	ComplexityLow    Complexity = "low"
	ComplexityMedium Complexity = "medium"
	ComplexityHigh   Complexity = "high"
)

// DataQuality grades the quality of the data available in the problem text.
type DataQuality string

const (
	DataQualityLow    DataQuality = "low"
	DataQualityMedium DataQuality = "medium"
	DataQualityHigh   DataQuality = "high"
)

// ProblemRequest is a single natural-language problem submission.
// It is created once and never mutated.
type ProblemRequest struct {
	ID          string            `json:"id"`
	RawText     string            `json:"raw_text"`
	Hints       map[string]string `json:"hints,omitempty"`
	SubmittedAt time.Time         `json:"submitted_at"`
}

// SolverRequirements lists the solver ids a problem needs, in preference order.
// Primary solvers are tried first; fallback solvers only when every primary
// one is unusable (missing capability or adapter error).
type SolverRequirements struct {
	Primary  []string `json:"primary"`
	Fallback []string `json:"fallback,omitempty"`
}

// IntentResult is the output of the intent-classification stage.
type IntentResult struct {
	IntentLabel        string             `json:"intent_label"`
	IndustryLabel      string             `json:"industry_label"`
	Complexity         Complexity         `json:"complexity"`
	Confidence         float64            `json:"confidence"`
	Entities           []string           `json:"entities"`
	OptimizationType   string             `json:"optimization_type"`
	SolverRequirements SolverRequirements `json:"solver_capability_requirements"`
}

// AllowedSolvers returns the union of primary and fallback solver ids.
func (r *IntentResult) AllowedSolvers() []string {
	out := make([]string, 0, len(r.SolverRequirements.Primary)+len(r.SolverRequirements.Fallback))
	out = append(out, r.SolverRequirements.Primary...)
	out = append(out, r.SolverRequirements.Fallback...)
	return out
}

// DataAnalysisResult is the output of the data-readiness stage.
type DataAnalysisResult struct {
	ReadinessScore  float64     `json:"readiness_score"`
	EntityCount     int         `json:"entity_count"`
	DataQuality     DataQuality `json:"data_quality"`
	MissingData     []string    `json:"missing_data,omitempty"`
	Recommendations []string    `json:"recommendations,omitempty"`
}

// VariableKind is the domain of a decision variable.
type VariableKind string

const (
	VariableContinuous VariableKind = "continuous"
	VariableInteger    VariableKind = "integer"
	VariableBinary     VariableKind = "binary"
)

// Variable declares one decision variable of an optimization model.
// Nil bounds mean "not declared"; the solver adapter applies the default
// bound [0, +inf) for continuous and integer kinds, and {0,1} for binary.
type Variable struct {
	Name        string       `json:"name"`
	Kind        VariableKind `json:"kind"`
	LowerBound  *float64     `json:"lower_bound,omitempty"`
	UpperBound  *float64     `json:"upper_bound,omitempty"`
	Description string       `json:"description,omitempty"`
}

// Constraint is one constraint expression in the restricted algebraic grammar,
// e.g. "x1 + x2 >= 800".
type Constraint struct {
	Expression  string `json:"expression"`
	Description string `json:"description,omitempty"`
}

// ObjectiveDirection is the optimization sense.
type ObjectiveDirection string

const (
	Minimize ObjectiveDirection = "minimize"
	Maximize ObjectiveDirection = "maximize"
)

// Objective is the objective function of an optimization model.
type Objective struct {
	Direction   ObjectiveDirection `json:"direction"`
	Expression  string             `json:"expression"`
	Description string             `json:"description,omitempty"`
}

// ReasoningStep is one named step of the model builder's reasoning trace.
// The trace is an ordered sequence of these pairs rather than a free-form
// object so consumers can inspect it without reflection.
type ReasoningStep struct {
	StepName string `json:"step_name"`
	Text     string `json:"text"`
}

// OptimizationModel is the output of the model-building stage: a complete
// mathematical program in the restricted algebraic grammar.
//
// Invariant (enforced by validation, not here): every identifier referenced
// by a constraint or the objective is declared in Variables, and every
// declared variable appears in at least one constraint or the objective.
type OptimizationModel struct {
	ModelType      string          `json:"model_type"`
	Variables      []Variable      `json:"variables"`
	Constraints    []Constraint    `json:"constraints"`
	Objective      Objective       `json:"objective"`
	ReasoningTrace []ReasoningStep `json:"reasoning_trace,omitempty"`
}

// SolutionStatus is the terminal status of a solve. Infeasible and unbounded
// are valid outcomes, not errors.
type SolutionStatus string

const (
	StatusOptimal    SolutionStatus = "optimal"
	StatusInfeasible SolutionStatus = "infeasible"
	StatusUnbounded  SolutionStatus = "unbounded"
	StatusError      SolutionStatus = "error"
)

// SolutionRecord is the output of the solving stage and the terminal
// artifact of a pipeline run. VariableValues and ObjectiveValue are
// present only when Status is optimal.
type SolutionRecord struct {
	Status         SolutionStatus     `json:"status"`
	VariableValues map[string]float64 `json:"variable_values,omitempty"`
	ObjectiveValue *float64           `json:"objective_value,omitempty"`
	SolveTimeMS    int64              `json:"solve_time_ms"`
	SolverUsed     string             `json:"solver_used"`
}

// Stage names a pipeline stage.
type Stage string

const (
	StageIntent        Stage = "intent"
	StageDataAnalysis  Stage = "data_analysis"
	StageModelBuilding Stage = "model_building"
	StageSolving       Stage = "solving"
)

// Stages lists the pipeline stages in execution order.
var Stages = []Stage{StageIntent, StageDataAnalysis, StageModelBuilding, StageSolving}

// RunState is the lifecycle state of a pipeline run.
type RunState string

const (
	RunRunning   RunState = "running"
	RunCompleted RunState = "completed"
	RunFailed    RunState = "failed"
	RunCancelled RunState = "cancelled"
)

// PipelineRun aggregates one problem request with its stage outputs.
// Stage pointers are nil when the run halted before reaching that stage.
// When State is RunFailed, FailedStage names the stage that failed and
// Error carries the last error observed there.
type PipelineRun struct {
	ID           string              `json:"id"`
	Request      ProblemRequest      `json:"request"`
	Intent       *IntentResult       `json:"intent,omitempty"`
	DataAnalysis *DataAnalysisResult `json:"data_analysis,omitempty"`
	Model        *OptimizationModel  `json:"model,omitempty"`
	Solution     *SolutionRecord     `json:"solution,omitempty"`
	State        RunState            `json:"state"`
	FailedStage  Stage               `json:"failed_at_stage,omitempty"`
	Error        string              `json:"error,omitempty"`
	CreatedAt    time.Time           `json:"created_at"`
	CompletedAt  *time.Time          `json:"completed_at,omitempty"`
}
