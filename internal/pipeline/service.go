package pipeline

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/optiq-ai/optiq/internal/schema"
)

// RunStore persists finished runs. The service treats persistence as best
// effort: a store failure is logged by the caller's store implementation
// and never fails the run itself.
type RunStore interface {
	SaveRun(ctx context.Context, run *schema.PipelineRun) error
	GetRun(ctx context.Context, id string) (*schema.PipelineRun, error)
}

// Service is the pipeline entry point. It tracks in-flight runs, hands out
// snapshots, and supports cancellation by run id.
type Service struct {
	orch  *Orchestrator
	store RunStore

	mu   sync.Mutex
	runs map[string]*runHandle
	wg   sync.WaitGroup
}

type runHandle struct {
	mu     sync.Mutex
	run    schema.PipelineRun
	cancel context.CancelFunc
	done   chan struct{}
}

// NewService creates a service around an orchestrator. store may be nil, in
// which case finished runs live only in memory.
func NewService(orch *Orchestrator, store RunStore) *Service {
	return &Service{
		orch:  orch,
		runs:  make(map[string]*runHandle),
		store: store,
	}
}

// Submit registers a new problem and starts its pipeline run in the
// background. It returns the run id immediately.
func (s *Service) Submit(rawText string, hints map[string]string) (string, error) {
	if rawText == "" {
		return "", fmt.Errorf("problem text must be non-empty")
	}
	req := schema.ProblemRequest{
		ID:          uuid.NewString(),
		RawText:     rawText,
		Hints:       hints,
		SubmittedAt: time.Now(),
	}

	ctx, cancel := context.WithCancel(context.Background())
	h := &runHandle{
		run: schema.PipelineRun{
			ID:        req.ID,
			Request:   req,
			State:     schema.RunRunning,
			CreatedAt: time.Now(),
		},
		cancel: cancel,
		done:   make(chan struct{}),
	}

	s.mu.Lock()
	s.runs[req.ID] = h
	s.mu.Unlock()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer cancel()
		defer close(h.done)

		s.orch.execute(ctx, req, func(mutate func(*schema.PipelineRun)) {
			h.mu.Lock()
			mutate(&h.run)
			h.mu.Unlock()
		})

		if s.store != nil {
			snapshot := h.snapshot()
			saveCtx, done := context.WithTimeout(context.Background(), 5*time.Second)
			if err := s.store.SaveRun(saveCtx, &snapshot); err != nil {
				log.Printf("pipeline: persisting run %s: %v", req.ID, err)
			}
			done()
		}
	}()

	return req.ID, nil
}

// Get returns a snapshot of the run with the given id. Runs no longer held
// in memory are looked up in the store.
func (s *Service) Get(ctx context.Context, id string) (*schema.PipelineRun, error) {
	s.mu.Lock()
	h, ok := s.runs[id]
	s.mu.Unlock()
	if ok {
		snapshot := h.snapshot()
		return &snapshot, nil
	}
	if s.store != nil {
		return s.store.GetRun(ctx, id)
	}
	return nil, fmt.Errorf("run %s: %w", id, ErrRunNotFound)
}

// Cancel aborts an in-flight run. Cancelling a finished run is a no-op; the
// returned error is non-nil only when the id is unknown.
func (s *Service) Cancel(id string) error {
	s.mu.Lock()
	h, ok := s.runs[id]
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("run %s: %w", id, ErrRunNotFound)
	}
	h.cancel()
	return nil
}

// Wait blocks until the run with the given id finishes. Test and CLI
// convenience; the HTTP surface polls Get instead.
func (s *Service) Wait(ctx context.Context, id string) (*schema.PipelineRun, error) {
	s.mu.Lock()
	h, ok := s.runs[id]
	s.mu.Unlock()
	if !ok {
		return s.Get(ctx, id)
	}
	select {
	case <-h.done:
		snapshot := h.snapshot()
		return &snapshot, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Close cancels all in-flight runs and waits for their goroutines to exit.
func (s *Service) Close() {
	s.mu.Lock()
	for _, h := range s.runs {
		h.cancel()
	}
	s.mu.Unlock()
	s.wg.Wait()
}

func (h *runHandle) snapshot() schema.PipelineRun {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.run
}
