package cache

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestGetOrComputeCachesResult(t *testing.T) {
	c := New(time.Hour)
	calls := 0

	for i := 0; i < 3; i++ {
		payload, hit, err := c.GetOrCompute("intent", "fp1", func() (any, error) {
			calls++
			return "result", nil
		})
		if err != nil {
			t.Fatalf("GetOrCompute failed: %v", err)
		}
		if payload != "result" {
			t.Errorf("payload: got %v", payload)
		}
		wantHit := i > 0
		if hit != wantHit {
			t.Errorf("call %d: hit got %v, want %v", i, hit, wantHit)
		}
	}

	if calls != 1 {
		t.Errorf("compute ran %d times, want 1", calls)
	}
}

func TestAtMostOneConcurrentComputation(t *testing.T) {
	c := New(time.Hour)
	var calls int64
	release := make(chan struct{})

	const n = 25
	var wg sync.WaitGroup
	results := make([]any, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			payload, _, err := c.GetOrCompute("solving", "shared-fp", func() (any, error) {
				atomic.AddInt64(&calls, 1)
				<-release
				return 42, nil
			})
			if err != nil {
				t.Errorf("goroutine %d: %v", i, err)
			}
			results[i] = payload
		}(i)
	}

	// Give the goroutines time to pile onto the flight before releasing it.
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	if got := atomic.LoadInt64(&calls); got != 1 {
		t.Errorf("compute ran %d times for one fingerprint, want 1", got)
	}
	for i, payload := range results {
		if payload != 42 {
			t.Errorf("goroutine %d got %v, want 42", i, payload)
		}
	}
}

func TestFailuresAreNotCached(t *testing.T) {
	c := New(time.Hour)
	calls := 0

	_, _, err := c.GetOrCompute("intent", "fp", func() (any, error) {
		calls++
		return nil, errors.New("transient backend failure")
	})
	if err == nil {
		t.Fatal("expected error")
	}

	payload, hit, err := c.GetOrCompute("intent", "fp", func() (any, error) {
		calls++
		return "recovered", nil
	})
	if err != nil {
		t.Fatalf("second attempt failed: %v", err)
	}
	if hit {
		t.Error("failure must not have been cached")
	}
	if payload != "recovered" || calls != 2 {
		t.Errorf("payload=%v calls=%d", payload, calls)
	}
}

func TestTTLExpiry(t *testing.T) {
	c := New(time.Hour)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }

	if _, _, err := c.GetOrCompute("intent", "fp", func() (any, error) { return "v1", nil }); err != nil {
		t.Fatal(err)
	}

	// Just inside the TTL: still a hit.
	now = now.Add(59 * time.Minute)
	if _, hit, _ := c.GetOrCompute("intent", "fp", func() (any, error) { return "v2", nil }); !hit {
		t.Error("expected hit inside TTL")
	}

	// Past the TTL: treated as a miss and recomputed.
	now = now.Add(2 * time.Minute)
	payload, hit, err := c.GetOrCompute("intent", "fp", func() (any, error) { return "v2", nil })
	if err != nil {
		t.Fatal(err)
	}
	if hit {
		t.Error("expected miss after TTL expiry")
	}
	if payload != "v2" {
		t.Errorf("payload: got %v, want v2", payload)
	}
}

func TestPutWarmsCache(t *testing.T) {
	c := New(time.Hour)
	c.Put("model_building", "warm", "payload", time.Now())

	payload, hit, err := c.GetOrCompute("model_building", "warm", func() (any, error) {
		t.Error("compute must not run for a warmed entry")
		return nil, nil
	})
	if err != nil || !hit || payload != "payload" {
		t.Errorf("warm lookup: payload=%v hit=%v err=%v", payload, hit, err)
	}
}

func TestFingerprintDeterministic(t *testing.T) {
	type params struct {
		Model   string
		Version int
	}
	a := Fingerprint("intent", "problem text", params{Model: "gpt-4o", Version: 2})
	b := Fingerprint("intent", "problem text", params{Model: "gpt-4o", Version: 2})
	if a != b {
		t.Error("identical inputs produced different fingerprints")
	}

	if a == Fingerprint("intent", "other text", params{Model: "gpt-4o", Version: 2}) {
		t.Error("different text produced identical fingerprints")
	}
	if a == Fingerprint("data_analysis", "problem text", params{Model: "gpt-4o", Version: 2}) {
		t.Error("different stage produced identical fingerprints")
	}
	if a == Fingerprint("intent", "problem text", params{Model: "gpt-4o-mini", Version: 2}) {
		t.Error("different parameters produced identical fingerprints")
	}
}
