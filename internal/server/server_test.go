package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/optiq-ai/optiq/internal/cache"
	"github.com/optiq-ai/optiq/internal/events"
	"github.com/optiq-ai/optiq/internal/llm"
	"github.com/optiq-ai/optiq/internal/pipeline"
	"github.com/optiq-ai/optiq/internal/router"
	"github.com/optiq-ai/optiq/internal/schema"
	"github.com/optiq-ai/optiq/internal/solver"
)

// sequenceClient replays responses in stage order: the pipeline calls
// inference exactly once per stage when every output validates.
type sequenceClient struct {
	mu        sync.Mutex
	responses []string
	calls     int
}

func (c *sequenceClient) Complete(ctx context.Context, regionID string, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.calls >= len(c.responses) {
		return nil, fmt.Errorf("unexpected inference call %d", c.calls+1)
	}
	content := c.responses[c.calls]
	c.calls++
	return &llm.CompletionResponse{Content: content, Latency: time.Millisecond}, nil
}

const (
	intentJSON = `{
		"intent_label": "production_planning",
		"industry_label": "manufacturing",
		"complexity": "medium",
		"confidence": 0.92,
		"entities": ["factory_a", "factory_b", "factory_c"],
		"optimization_type": "linear_programming",
		"solver_capability_requirements": {"primary": ["simplex"], "fallback": ["branchbound"]}
	}`
	analysisJSON = `{
		"readiness_score": 0.9,
		"entity_count": 3,
		"data_quality": "high"
	}`
	modelJSON = `{
		"model_type": "linear_program",
		"variables": [
			{"name": "x1", "kind": "continuous"},
			{"name": "x2", "kind": "continuous"},
			{"name": "x3", "kind": "continuous"}
		],
		"constraints": [
			{"expression": "x1 <= 120"},
			{"expression": "x2 <= 100"},
			{"expression": "x3 <= 90"},
			{"expression": "x1 + x2 + x3 >= 310"}
		],
		"objective": {"direction": "minimize", "expression": "45*x1 + 50*x2 + 55*x3"}
	}`
)

func newTestServer(t *testing.T) (*httptest.Server, *Server) {
	t.Helper()
	client := &sequenceClient{responses: []string{intentJSON, analysisJSON, modelJSON}}
	rt := router.New([]router.Region{{
		ID:           "us-east",
		Provider:     "mock",
		Model:        "test-model",
		Capabilities: []string{"reasoning"},
	}}, router.DefaultOptions())
	bus := events.NewBus()
	orch := pipeline.NewOrchestrator(client, rt, cache.New(time.Hour), solver.DefaultAdapter(), bus, pipeline.Options{})
	service := pipeline.NewService(orch, nil)
	t.Cleanup(service.Close)

	srv := New(Config{AllowAll: true}, service, rt, bus, nil)
	ts := httptest.NewServer(srv.Router())
	t.Cleanup(ts.Close)
	return ts, srv
}

func postJSON(t *testing.T, url string, body any) *http.Response {
	t.Helper()
	b, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	resp, err := http.Post(url, "application/json", bytes.NewReader(b))
	if err != nil {
		t.Fatalf("post %s: %v", url, err)
	}
	return resp
}

func decodeBody[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	defer resp.Body.Close()
	var v T
	if err := json.NewDecoder(resp.Body).Decode(&v); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	return v
}

func TestHealthz(t *testing.T) {
	ts, _ := newTestServer(t)
	resp, err := http.Get(ts.URL + "/healthz")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
}

func TestSubmitAndPollRun(t *testing.T) {
	ts, _ := newTestServer(t)

	resp := postJSON(t, ts.URL+"/api/v1/problems", submitRequest{
		Text: "plan production across three factories",
	})
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("submit status = %d, want 202", resp.StatusCode)
	}
	sub := decodeBody[submitResponse](t, resp)
	if sub.RunID == "" {
		t.Fatal("submit returned no run id")
	}

	var run schema.PipelineRun
	deadline := time.Now().Add(10 * time.Second)
	for {
		resp, err := http.Get(ts.URL + "/api/v1/runs/" + sub.RunID)
		if err != nil {
			t.Fatalf("get run: %v", err)
		}
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("get run status = %d, want 200", resp.StatusCode)
		}
		run = decodeBody[schema.PipelineRun](t, resp)
		if run.State != schema.RunRunning {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("run never finished")
		}
		time.Sleep(10 * time.Millisecond)
	}

	if run.State != schema.RunCompleted {
		t.Fatalf("state = %s (error %q), want completed", run.State, run.Error)
	}
	if run.Solution == nil || run.Solution.Status != schema.StatusOptimal {
		t.Fatalf("solution = %+v, want optimal", run.Solution)
	}
	if *run.Solution.ObjectiveValue != 15350 {
		t.Errorf("objective = %v, want 15350", *run.Solution.ObjectiveValue)
	}
}

func TestSubmitRejectsEmptyText(t *testing.T) {
	ts, _ := newTestServer(t)
	resp := postJSON(t, ts.URL+"/api/v1/problems", submitRequest{})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
}

func TestGetRunNotFound(t *testing.T) {
	ts, _ := newTestServer(t)
	resp, err := http.Get(ts.URL + "/api/v1/runs/nope")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", resp.StatusCode)
	}
}

func TestCancelUnknownRun(t *testing.T) {
	ts, _ := newTestServer(t)
	resp := postJSON(t, ts.URL+"/api/v1/runs/nope/cancel", struct{}{})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", resp.StatusCode)
	}
}

func TestRegionsSnapshot(t *testing.T) {
	ts, _ := newTestServer(t)
	resp, err := http.Get(ts.URL + "/api/v1/regions")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	snaps := decodeBody[[]router.RegionSnapshot](t, resp)
	if len(snaps) != 1 || snaps[0].Region.ID != "us-east" {
		t.Fatalf("snapshot = %+v, want one us-east region", snaps)
	}
}

func TestEventsStream(t *testing.T) {
	ts, _ := newTestServer(t)

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/v1/events"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	// Give the handler a moment to register its subscription.
	time.Sleep(50 * time.Millisecond)

	resp := postJSON(t, ts.URL+"/api/v1/problems", submitRequest{
		Text: "plan production across three factories",
	})
	resp.Body.Close()

	conn.SetReadDeadline(time.Now().Add(10 * time.Second))
	seen := make(map[schema.Stage]events.Outcome)
	for len(seen) < 4 {
		var e events.StageEvent
		if err := conn.ReadJSON(&e); err != nil {
			t.Fatalf("read event (have %d): %v", len(seen), err)
		}
		seen[e.Stage] = e.Outcome
	}
	for _, stage := range schema.Stages {
		if seen[stage] != events.OutcomeCompleted {
			t.Errorf("stage %s outcome = %s, want completed", stage, seen[stage])
		}
	}
}
