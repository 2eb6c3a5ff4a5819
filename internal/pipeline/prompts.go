package pipeline

import (
	"encoding/json"
	"fmt"

	"github.com/optiq-ai/optiq/internal/schema"
)

// promptVersion participates in stage fingerprints so prompt changes
// invalidate cached stage outputs.
const promptVersion = "v1"

const intentSystemPrompt = `You are an optimization analyst. Classify the decision problem described
by the user: what is being optimized, which industry it belongs to, how complex it is, and which
solver capabilities it needs. Solver ids you may reference: "simplex" (continuous linear programs)
and "branchbound" (mixed-integer linear programs). List primary solvers in preference order and
fallbacks separately.`

const intentSchema = `{
  "intent_label": "string",
  "industry_label": "string",
  "complexity": "low | medium | high",
  "confidence": 0.0,
  "entities": ["string"],
  "optimization_type": "string",
  "solver_capability_requirements": {"primary": ["string"], "fallback": ["string"]}
}`

const dataAnalysisSystemPrompt = `You are a data-readiness auditor. Given a decision problem and its
classified intent, judge whether the text carries enough concrete data (quantities, costs, limits)
to build a trustworthy optimization model. Score readiness in [0,1], count the entities with usable
data, and list what is missing.`

const dataAnalysisSchema = `{
  "readiness_score": 0.0,
  "entity_count": 0,
  "data_quality": "low | medium | high",
  "missing_data": ["string"],
  "recommendations": ["string"]
}`

const modelBuildingSystemPrompt = `You are a mathematical modeler. Construct an optimization model
for the problem. Use only these expression forms: numbers, variable names, +, -, * and parentheses,
with <=, >= or = in constraints. Every variable you declare must appear in a constraint or the
objective, and every name you reference must be declared. Record your reasoning as an ordered list
of named steps.`

const modelBuildingSchema = `{
  "model_type": "string",
  "variables": [{"name": "string", "kind": "continuous | integer | binary",
                 "lower_bound": 0.0, "upper_bound": 0.0, "description": "string"}],
  "constraints": [{"expression": "string", "description": "string"}],
  "objective": {"direction": "minimize | maximize", "expression": "string", "description": "string"},
  "reasoning_trace": [{"step_name": "string", "text": "string"}]
}`

func intentUserPrompt(req schema.ProblemRequest) string {
	prompt := "Problem:\n" + req.RawText
	if len(req.Hints) > 0 {
		hints, _ := json.Marshal(req.Hints)
		prompt += "\n\nStructured hints:\n" + string(hints)
	}
	return prompt
}

func dataAnalysisUserPrompt(req schema.ProblemRequest, intent *schema.IntentResult) string {
	intentJSON, _ := json.Marshal(intent)
	return fmt.Sprintf("Problem:\n%s\n\nClassified intent:\n%s", req.RawText, intentJSON)
}

func modelBuildingUserPrompt(req schema.ProblemRequest, intent *schema.IntentResult, analysis *schema.DataAnalysisResult) string {
	intentJSON, _ := json.Marshal(intent)
	analysisJSON, _ := json.Marshal(analysis)
	return fmt.Sprintf("Problem:\n%s\n\nClassified intent:\n%s\n\nData analysis:\n%s",
		req.RawText, intentJSON, analysisJSON)
}
