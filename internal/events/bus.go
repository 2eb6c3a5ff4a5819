// Package events is the observability boundary: a stream of stage-transition
// events fanned out to in-process subscribers (the log, the websocket
// endpoint, test probes).
package events

import (
	"sync"
	"time"

	"github.com/optiq-ai/optiq/internal/schema"
)

// Outcome summarizes how a stage transition ended.
type Outcome string

const (
	OutcomeCompleted Outcome = "completed"
	OutcomeFailed    Outcome = "failed"
	OutcomeCancelled Outcome = "cancelled"
)

// StageEvent is emitted once per stage transition of every pipeline run.
type StageEvent struct {
	RunID      string       `json:"run_id"`
	Stage      schema.Stage `json:"stage"`
	Outcome    Outcome      `json:"outcome"`
	DurationMS int64        `json:"duration_ms"`
	RegionID   string       `json:"region_id,omitempty"`
	CacheHit   bool         `json:"cache_hit"`
	Error      string       `json:"error,omitempty"`
	Timestamp  time.Time    `json:"timestamp"`
}

// Bus fans events out to subscribers. Publishing never blocks: a subscriber
// whose buffer is full loses the event rather than stalling the pipeline.
type Bus struct {
	mu   sync.Mutex
	subs map[int]chan StageEvent
	next int
}

// NewBus creates an empty Bus.
func NewBus() *Bus {
	return &Bus{subs: make(map[int]chan StageEvent)}
}

// Subscribe registers a buffered subscriber channel. The returned cancel
// function unregisters it and closes the channel.
func (b *Bus) Subscribe() (<-chan StageEvent, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.next
	b.next++
	ch := make(chan StageEvent, 64)
	b.subs[id] = ch

	cancel := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if ch, ok := b.subs[id]; ok {
			delete(b.subs, id)
			close(ch)
		}
	}
	return ch, cancel
}

// Publish delivers the event to every subscriber without blocking.
func (b *Bus) Publish(e StageEvent) {
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now()
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, ch := range b.subs {
		select {
		case ch <- e:
		default:
		}
	}
}
