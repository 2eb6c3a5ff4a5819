package pipeline

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/optiq-ai/optiq/internal/cache"
	"github.com/optiq-ai/optiq/internal/schema"
)

func newTestService(client InferenceClient) (*Service, *cache.Cache) {
	orch, c, _ := newTestOrchestrator(client, testRegions("us-east"))
	return NewService(orch, nil), c
}

func TestServiceSubmitAndWait(t *testing.T) {
	client := newScriptedClient()
	client.script(schema.StageIntent, scriptStep{content: intentPayload(t)})
	client.script(schema.StageDataAnalysis, scriptStep{content: analysisPayload(t, 0.9)})
	client.script(schema.StageModelBuilding, scriptStep{content: productionModel(t, 310)})

	svc, _ := newTestService(client)
	defer svc.Close()

	id, err := svc.Submit("plan production across three factories", map[string]string{"industry": "manufacturing"})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if id == "" {
		t.Fatal("submit returned empty run id")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	run, err := svc.Wait(ctx, id)
	if err != nil {
		t.Fatalf("wait: %v", err)
	}
	if run.State != schema.RunCompleted {
		t.Fatalf("state = %s (error %q), want completed", run.State, run.Error)
	}
	if run.ID != id || run.Request.Hints["industry"] != "manufacturing" {
		t.Error("run snapshot lost request identity")
	}

	// Get after completion returns the same terminal snapshot.
	got, err := svc.Get(context.Background(), id)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.State != schema.RunCompleted {
		t.Errorf("get state = %s, want completed", got.State)
	}
}

func TestServiceRejectsEmptyProblem(t *testing.T) {
	svc, _ := newTestService(newScriptedClient())
	defer svc.Close()
	if _, err := svc.Submit("", nil); err == nil {
		t.Fatal("empty problem text accepted")
	}
}

func TestServiceGetUnknownRun(t *testing.T) {
	svc, _ := newTestService(newScriptedClient())
	defer svc.Close()
	if _, err := svc.Get(context.Background(), "nope"); !errors.Is(err, ErrRunNotFound) {
		t.Fatalf("err = %v, want ErrRunNotFound", err)
	}
	if err := svc.Cancel("nope"); !errors.Is(err, ErrRunNotFound) {
		t.Fatalf("cancel err = %v, want ErrRunNotFound", err)
	}
}

func TestServiceCancelAbortsRunAndCachesNothing(t *testing.T) {
	client := newScriptedClient()
	// The intent call hangs until its context is cancelled.
	client.script(schema.StageIntent, scriptStep{block: true})

	svc, c := newTestService(client)
	defer svc.Close()

	id, err := svc.Submit("plan production", nil)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}

	// Let the run reach the blocked inference call before cancelling.
	deadline := time.Now().Add(5 * time.Second)
	for client.callCount(schema.StageIntent) == 0 {
		if time.Now().After(deadline) {
			t.Fatal("run never reached the inference call")
		}
		time.Sleep(5 * time.Millisecond)
	}
	if err := svc.Cancel(id); err != nil {
		t.Fatalf("cancel: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	run, err := svc.Wait(ctx, id)
	if err != nil {
		t.Fatalf("wait: %v", err)
	}
	if run.State != schema.RunCancelled {
		t.Fatalf("state = %s, want cancelled", run.State)
	}
	if c.Len() != 0 {
		t.Errorf("cancelled run left %d cache entries", c.Len())
	}
}

func TestServicePersistsFinishedRuns(t *testing.T) {
	client := newScriptedClient()
	client.script(schema.StageIntent, scriptStep{content: intentPayload(t)})
	client.script(schema.StageDataAnalysis, scriptStep{content: analysisPayload(t, 0.9)})
	client.script(schema.StageModelBuilding, scriptStep{content: productionModel(t, 310)})

	store := &memoryRunStore{runs: make(map[string]*schema.PipelineRun)}
	orch, _, _ := newTestOrchestrator(client, testRegions("us-east"))
	svc := NewService(orch, store)
	defer svc.Close()

	id, err := svc.Submit("plan production across three factories", nil)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if _, err := svc.Wait(ctx, id); err != nil {
		t.Fatalf("wait: %v", err)
	}

	saved, err := store.GetRun(context.Background(), id)
	if err != nil {
		t.Fatalf("store get: %v", err)
	}
	if saved.State != schema.RunCompleted {
		t.Errorf("persisted state = %s, want completed", saved.State)
	}
}

type memoryRunStore struct {
	runs map[string]*schema.PipelineRun
}

func (s *memoryRunStore) SaveRun(_ context.Context, run *schema.PipelineRun) error {
	s.runs[run.ID] = run
	return nil
}

func (s *memoryRunStore) GetRun(_ context.Context, id string) (*schema.PipelineRun, error) {
	run, ok := s.runs[id]
	if !ok {
		return nil, ErrRunNotFound
	}
	return run, nil
}
