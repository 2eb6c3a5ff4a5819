package events

import (
	"testing"
	"time"

	"github.com/optiq-ai/optiq/internal/schema"
)

func TestFanOut(t *testing.T) {
	bus := NewBus()
	a, cancelA := bus.Subscribe()
	b, cancelB := bus.Subscribe()
	defer cancelA()
	defer cancelB()

	bus.Publish(StageEvent{RunID: "r1", Stage: schema.StageIntent, Outcome: OutcomeCompleted})

	for name, ch := range map[string]<-chan StageEvent{"a": a, "b": b} {
		select {
		case e := <-ch:
			if e.RunID != "r1" || e.Stage != schema.StageIntent {
				t.Errorf("subscriber %s: unexpected event %+v", name, e)
			}
			if e.Timestamp.IsZero() {
				t.Errorf("subscriber %s: timestamp not set", name)
			}
		case <-time.After(time.Second):
			t.Fatalf("subscriber %s: no event received", name)
		}
	}
}

func TestUnsubscribeClosesChannel(t *testing.T) {
	bus := NewBus()
	ch, cancel := bus.Subscribe()
	cancel()
	cancel() // idempotent

	if _, open := <-ch; open {
		t.Error("expected channel closed after unsubscribe")
	}

	// Publishing after unsubscribe must not panic.
	bus.Publish(StageEvent{RunID: "r2"})
}

func TestPublishNeverBlocks(t *testing.T) {
	bus := NewBus()
	_, cancel := bus.Subscribe()
	defer cancel()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 200; i++ { // well past the subscriber buffer
			bus.Publish(StageEvent{RunID: "r3"})
		}
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Publish blocked on a slow subscriber")
	}
}
