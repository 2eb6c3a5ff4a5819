// Package pipeline sequences the four reasoning stages for one problem:
// intent classification, data-readiness analysis, model building and
// solving. Each stage consults the result cache, routes its inference call
// through the region router, validates the output before trusting it, and
// emits a stage-transition event.
package pipeline

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/optiq-ai/optiq/internal/cache"
	"github.com/optiq-ai/optiq/internal/events"
	"github.com/optiq-ai/optiq/internal/llm"
	"github.com/optiq-ai/optiq/internal/router"
	"github.com/optiq-ai/optiq/internal/schema"
	"github.com/optiq-ai/optiq/internal/solver"
	"github.com/optiq-ai/optiq/internal/validate"
)

// Options tune the orchestrator. Zero values fall back to the documented
// defaults.
type Options struct {
	// MaxRetries is how many fresh attempts follow a failed one.
	MaxRetries int
	// ReadinessThreshold is the minimum data-readiness score; below it the
	// run halts with InsufficientData.
	ReadinessThreshold float64
	// Capability is the region capability inference stages require.
	Capability string
	// InferenceTimeout bounds each inference call.
	InferenceTimeout time.Duration
	// SolveTimeout bounds the solving stage.
	SolveTimeout time.Duration
	// Temperature is passed through to the inference backends.
	Temperature float64
}

func (o Options) withDefaults() Options {
	if o.MaxRetries == 0 {
		o.MaxRetries = 2
	}
	if o.ReadinessThreshold == 0 {
		o.ReadinessThreshold = 0.5
	}
	if o.Capability == "" {
		o.Capability = "reasoning"
	}
	if o.InferenceTimeout == 0 {
		o.InferenceTimeout = 30 * time.Second
	}
	if o.SolveTimeout == 0 {
		o.SolveTimeout = 120 * time.Second
	}
	return o
}

// Orchestrator runs pipeline stages strictly in order, carrying each
// stage's validated output forward.
type Orchestrator struct {
	opts    Options
	client  InferenceClient
	router  *router.Router
	cache   *cache.Cache
	adapter *solver.Adapter
	bus     *events.Bus
}

// NewOrchestrator wires an orchestrator from its collaborators.
func NewOrchestrator(client InferenceClient, rt *router.Router, c *cache.Cache, adapter *solver.Adapter, bus *events.Bus, opts Options) *Orchestrator {
	return &Orchestrator{
		opts:    opts.withDefaults(),
		client:  client,
		router:  rt,
		cache:   c,
		adapter: adapter,
		bus:     bus,
	}
}

// Run executes the pipeline for one request and returns the finished run.
// Cancelling ctx aborts the in-flight stage; a cancelled run caches nothing
// from the aborted stage.
func (o *Orchestrator) Run(ctx context.Context, req schema.ProblemRequest) *schema.PipelineRun {
	run := &schema.PipelineRun{
		ID:        req.ID,
		Request:   req,
		State:     schema.RunRunning,
		CreatedAt: time.Now(),
	}
	o.execute(ctx, req, func(mutate func(*schema.PipelineRun)) { mutate(run) })
	return run
}

// execute drives the stage sequence. All run mutation goes through apply,
// so callers that snapshot the run concurrently can serialize access.
func (o *Orchestrator) execute(ctx context.Context, req schema.ProblemRequest, apply func(func(*schema.PipelineRun))) {
	fail := func(stage schema.Stage, err error) {
		apply(func(r *schema.PipelineRun) {
			now := time.Now()
			if errors.Is(err, context.Canceled) {
				r.State = schema.RunCancelled
			} else {
				r.State = schema.RunFailed
				r.FailedStage = stage
				r.Error = err.Error()
			}
			r.CompletedAt = &now
		})
	}

	intent, err := o.runIntent(ctx, req)
	if err != nil {
		fail(schema.StageIntent, err)
		return
	}
	apply(func(r *schema.PipelineRun) { r.Intent = intent })

	analysis, err := o.runDataAnalysis(ctx, req, intent)
	if err != nil {
		fail(schema.StageDataAnalysis, err)
		return
	}
	apply(func(r *schema.PipelineRun) { r.DataAnalysis = analysis })

	model, err := o.runModelBuilding(ctx, req, intent, analysis)
	if err != nil {
		fail(schema.StageModelBuilding, err)
		return
	}
	apply(func(r *schema.PipelineRun) { r.Model = model })

	solution, err := o.runSolving(ctx, req.ID, model, intent)
	if err != nil {
		fail(schema.StageSolving, err)
		return
	}
	apply(func(r *schema.PipelineRun) {
		now := time.Now()
		r.Solution = solution
		r.State = schema.RunCompleted
		r.CompletedAt = &now
	})
}

type stageParams struct {
	PromptVersion string  `json:"prompt_version"`
	Capability    string  `json:"capability"`
	Threshold     float64 `json:"threshold,omitempty"`
}

func (o *Orchestrator) runIntent(ctx context.Context, req schema.ProblemRequest) (*schema.IntentResult, error) {
	fp := cache.Fingerprint(string(schema.StageIntent), req.RawText, req.Hints,
		stageParams{PromptVersion: promptVersion, Capability: o.opts.Capability})
	return runInferenceStage(o, ctx, req.ID, schema.StageIntent, fp,
		intentSystemPrompt, intentUserPrompt(req), intentSchema,
		validate.Intent)
}

func (o *Orchestrator) runDataAnalysis(ctx context.Context, req schema.ProblemRequest, intent *schema.IntentResult) (*schema.DataAnalysisResult, error) {
	fp := cache.Fingerprint(string(schema.StageDataAnalysis), req.RawText, intent,
		stageParams{PromptVersion: promptVersion, Capability: o.opts.Capability, Threshold: o.opts.ReadinessThreshold})
	return runInferenceStage(o, ctx, req.ID, schema.StageDataAnalysis, fp,
		dataAnalysisSystemPrompt, dataAnalysisUserPrompt(req, intent), dataAnalysisSchema,
		func(r *schema.DataAnalysisResult) error {
			return validate.DataAnalysis(r, o.opts.ReadinessThreshold)
		})
}

func (o *Orchestrator) runModelBuilding(ctx context.Context, req schema.ProblemRequest, intent *schema.IntentResult, analysis *schema.DataAnalysisResult) (*schema.OptimizationModel, error) {
	fp := cache.Fingerprint(string(schema.StageModelBuilding), req.RawText, intent, analysis,
		stageParams{PromptVersion: promptVersion, Capability: o.opts.Capability})
	return runInferenceStage(o, ctx, req.ID, schema.StageModelBuilding, fp,
		modelBuildingSystemPrompt, modelBuildingUserPrompt(req, intent, analysis), modelBuildingSchema,
		validate.Model)
}

// runInferenceStage is the shared cache-consult/route/call/validate loop for
// the three LLM-backed stages.
func runInferenceStage[T any](
	o *Orchestrator,
	ctx context.Context,
	runID string,
	stage schema.Stage,
	fingerprint string,
	systemPrompt, userPrompt, responseSchema string,
	check func(*T) error,
) (*T, error) {
	start := time.Now()
	var regionUsed string

	payload, hit, err := o.cache.GetOrCompute(string(stage), fingerprint, func() (any, error) {
		result, region, err := computeWithRetries(o, ctx, stage, systemPrompt, userPrompt, responseSchema, check)
		regionUsed = region
		if err != nil {
			return nil, err
		}
		return result, nil
	})

	o.emit(runID, stage, start, regionUsed, hit, err)
	if err != nil {
		return nil, err
	}
	result, ok := payload.(*T)
	if !ok {
		return nil, errors.New("cache payload has unexpected type")
	}
	return result, nil
}

// computeWithRetries performs up to 1+MaxRetries inference attempts. A
// region that fails at the transport level is excluded from the remaining
// attempts of this stage; a validation failure triggers a fresh inference
// call without excluding the region, since the output rather than the
// region was at fault. Results that failed validation are never reused.
func computeWithRetries[T any](
	o *Orchestrator,
	ctx context.Context,
	stage schema.Stage,
	systemPrompt, userPrompt, responseSchema string,
	check func(*T) error,
) (*T, string, error) {
	exclude := make(map[string]bool)
	var lastErr error

	for attempt := 0; attempt <= o.opts.MaxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, "", err
		}

		regionID, err := o.router.Select(o.opts.Capability, exclude)
		if err != nil {
			// Routing exhaustion is surfaced, not retried: a fresh attempt
			// would see the same empty pool.
			return nil, "", err
		}
		region, _ := o.router.Region(regionID)

		callCtx, cancel := context.WithTimeout(ctx, o.opts.InferenceTimeout)
		callStart := time.Now()
		resp, err := o.client.Complete(callCtx, regionID, llm.CompletionRequest{
			Model:          region.Model,
			Messages:       []llm.Message{{Role: llm.RoleSystem, Content: systemPrompt}, {Role: llm.RoleUser, Content: userPrompt}},
			Temperature:    o.opts.Temperature,
			JSONMode:       true,
			ResponseSchema: responseSchema,
		})
		cancel()

		if err != nil {
			o.router.ReportOutcome(regionID, false, time.Since(callStart))
			if parentErr := ctx.Err(); parentErr != nil {
				return nil, "", parentErr
			}
			exclude[regionID] = true
			lastErr = err
			log.Printf("pipeline: %s attempt %d via %s failed: %v", stage, attempt+1, regionID, err)
			continue
		}
		o.router.ReportOutcome(regionID, true, resp.Latency)

		result := new(T)
		if err := decodeJSON(resp.Content, result); err != nil {
			lastErr = err
			log.Printf("pipeline: %s attempt %d returned malformed payload: %v", stage, attempt+1, err)
			continue
		}
		if err := check(result); err != nil {
			if !retryable(err) {
				return nil, "", err
			}
			lastErr = err
			log.Printf("pipeline: %s attempt %d output rejected: %v", stage, attempt+1, err)
			continue
		}
		return result, regionID, nil
	}
	return nil, "", lastErr
}

// runSolving executes the solver adapter under the solve timeout. Unlike
// the inference stages it is deterministic, so failures are not retried:
// degenerate models, missing capabilities and adapter errors would all
// recur verbatim.
func (o *Orchestrator) runSolving(ctx context.Context, runID string, model *schema.OptimizationModel, intent *schema.IntentResult) (*schema.SolutionRecord, error) {
	start := time.Now()
	fp := cache.Fingerprint(string(schema.StageSolving), model, intent.SolverRequirements)

	payload, hit, err := o.cache.GetOrCompute(string(schema.StageSolving), fp, func() (any, error) {
		solveCtx, cancel := context.WithTimeout(ctx, o.opts.SolveTimeout)
		defer cancel()

		record, err := o.adapter.Solve(solveCtx, model, intent.SolverRequirements)
		if err != nil {
			if parentErr := ctx.Err(); parentErr != nil {
				return nil, parentErr
			}
			return nil, err
		}
		if err := validate.Solution(record, intent); err != nil {
			return nil, err
		}
		return record, nil
	})

	o.emit(runID, schema.StageSolving, start, "", hit, err)
	if err != nil {
		return nil, err
	}
	return payload.(*schema.SolutionRecord), nil
}

func (o *Orchestrator) emit(runID string, stage schema.Stage, start time.Time, regionID string, hit bool, err error) {
	e := events.StageEvent{
		RunID:      runID,
		Stage:      stage,
		Outcome:    events.OutcomeCompleted,
		DurationMS: time.Since(start).Milliseconds(),
		RegionID:   regionID,
		CacheHit:   hit,
	}
	if err != nil {
		e.Outcome = events.OutcomeFailed
		e.Error = err.Error()
		if errors.Is(err, context.Canceled) {
			e.Outcome = events.OutcomeCancelled
			e.Error = ""
		}
	}
	o.bus.Publish(e)
	log.Printf("pipeline: run=%s stage=%s outcome=%s duration=%dms region=%s cache_hit=%t",
		runID, stage, e.Outcome, e.DurationMS, regionID, hit)
}
