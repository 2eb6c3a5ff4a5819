package router

import (
	"errors"
	"testing"
	"time"
)

func testRegions() []Region {
	return []Region{
		{ID: "us-east", Provider: "openai", Model: "gpt-4o", Capabilities: []string{"reasoning"}},
		{ID: "eu-west", Provider: "anthropic", Model: "claude", Capabilities: []string{"reasoning"}},
		{ID: "local", Provider: "ollama", Model: "llama3", Capabilities: []string{"draft"}},
	}
}

func newTestRouter(t *testing.T) (*Router, *time.Time) {
	t.Helper()
	r := New(testRegions(), DefaultOptions())
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	r.now = func() time.Time { return now }
	return r, &now
}

func TestSelectByCapability(t *testing.T) {
	r, _ := newTestRouter(t)

	id, err := r.Select("draft", nil)
	if err != nil {
		t.Fatalf("Select failed: %v", err)
	}
	if id != "local" {
		t.Errorf("expected local region for draft capability, got %q", id)
	}

	if _, err := r.Select("vision", nil); !errors.Is(err, ErrNoAvailableRegion) {
		t.Errorf("expected ErrNoAvailableRegion for unknown capability, got %v", err)
	}
}

func TestSelectHonorsExclusion(t *testing.T) {
	r, _ := newTestRouter(t)

	id, err := r.Select("reasoning", map[string]bool{"us-east": true})
	if err != nil {
		t.Fatalf("Select failed: %v", err)
	}
	if id != "eu-west" {
		t.Errorf("expected eu-west after excluding us-east, got %q", id)
	}

	_, err = r.Select("reasoning", map[string]bool{"us-east": true, "eu-west": true})
	if !errors.Is(err, ErrNoAvailableRegion) {
		t.Errorf("expected ErrNoAvailableRegion, got %v", err)
	}
}

func TestUnhealthyAfterConsecutiveFailures(t *testing.T) {
	r, now := newTestRouter(t)

	// Fail us-east three times in a row.
	for i := 0; i < 3; i++ {
		id, err := r.Select("reasoning", map[string]bool{"eu-west": true})
		if err != nil || id != "us-east" {
			t.Fatalf("setup select: id=%q err=%v", id, err)
		}
		r.ReportOutcome("us-east", false, 50*time.Millisecond)
	}

	// us-east must never be selected until the cooldown elapses.
	for i := 0; i < 5; i++ {
		id, err := r.Select("reasoning", nil)
		if err != nil {
			t.Fatalf("Select failed: %v", err)
		}
		if id == "us-east" {
			t.Fatalf("unhealthy region selected during cooldown (attempt %d)", i)
		}
		r.ReportOutcome(id, true, 30*time.Millisecond)
	}

	// After the cooldown, the region gets a single probe call.
	*now = now.Add(DefaultOptions().Cooldown + time.Second)
	id, err := r.Select("reasoning", map[string]bool{"eu-west": true})
	if err != nil || id != "us-east" {
		t.Fatalf("expected probe of us-east after cooldown, got id=%q err=%v", id, err)
	}

	// While the probe is in flight, nobody else gets routed there.
	if _, err := r.Select("reasoning", map[string]bool{"eu-west": true}); !errors.Is(err, ErrNoAvailableRegion) {
		t.Errorf("expected no region while probe in flight, got %v", err)
	}

	// A successful probe restores the region.
	r.ReportOutcome("us-east", true, 40*time.Millisecond)
	id, err = r.Select("reasoning", map[string]bool{"eu-west": true})
	if err != nil || id != "us-east" {
		t.Fatalf("expected recovered region, got id=%q err=%v", id, err)
	}
}

func TestFailedProbeRestartsCooldown(t *testing.T) {
	r, now := newTestRouter(t)

	for i := 0; i < 3; i++ {
		if _, err := r.Select("reasoning", map[string]bool{"eu-west": true}); err != nil {
			t.Fatal(err)
		}
		r.ReportOutcome("us-east", false, 50*time.Millisecond)
	}

	*now = now.Add(DefaultOptions().Cooldown + time.Second)
	id, err := r.Select("reasoning", map[string]bool{"eu-west": true})
	if err != nil || id != "us-east" {
		t.Fatalf("probe select: id=%q err=%v", id, err)
	}
	r.ReportOutcome("us-east", false, 50*time.Millisecond)

	// Probe failed: region stays excluded for another cooldown window.
	if _, err := r.Select("reasoning", map[string]bool{"eu-west": true}); !errors.Is(err, ErrNoAvailableRegion) {
		t.Errorf("expected region still unhealthy after failed probe, got %v", err)
	}
}

func TestSelectionPrefersLowerWeightedLatency(t *testing.T) {
	r, _ := newTestRouter(t)

	// us-east: fast and reliable. eu-west: slow.
	for i := 0; i < 4; i++ {
		r.ReportOutcome("us-east", true, 20*time.Millisecond)
		r.ReportOutcome("eu-west", true, 200*time.Millisecond)
	}

	id, err := r.Select("reasoning", nil)
	if err != nil {
		t.Fatalf("Select failed: %v", err)
	}
	if id != "us-east" {
		t.Errorf("expected fast region, got %q", id)
	}
	r.ReportOutcome(id, true, 20*time.Millisecond)

	// Same latency but a bad success ratio should lose.
	r2, _ := newTestRouter(t)
	for i := 0; i < 4; i++ {
		r2.ReportOutcome("us-east", true, 50*time.Millisecond)
		r2.ReportOutcome("eu-west", true, 50*time.Millisecond)
	}
	r2.ReportOutcome("eu-west", false, 50*time.Millisecond)
	id, err = r2.Select("reasoning", nil)
	if err != nil {
		t.Fatalf("Select failed: %v", err)
	}
	if id != "us-east" {
		t.Errorf("expected reliable region, got %q", id)
	}
}

func TestTieBrokenByInFlight(t *testing.T) {
	r, _ := newTestRouter(t)

	// No samples yet on either region: first select takes us-east (score 0,
	// registration order), which leaves it carrying one in-flight request.
	first, err := r.Select("reasoning", nil)
	if err != nil {
		t.Fatal(err)
	}
	second, err := r.Select("reasoning", nil)
	if err != nil {
		t.Fatal(err)
	}
	if first == second {
		t.Errorf("expected load spreading across tied regions, got %q twice", first)
	}
}

func TestSnapshotReportsHealth(t *testing.T) {
	r, _ := newTestRouter(t)
	for i := 0; i < 3; i++ {
		if _, err := r.Select("reasoning", map[string]bool{"eu-west": true}); err != nil {
			t.Fatal(err)
		}
		r.ReportOutcome("us-east", false, 10*time.Millisecond)
	}

	snaps := r.Snapshot()
	if len(snaps) != 3 {
		t.Fatalf("expected 3 snapshots, got %d", len(snaps))
	}
	for _, s := range snaps {
		if s.Region.ID == "us-east" {
			if s.Healthy {
				t.Error("us-east should be unhealthy")
			}
			if s.Failures != 3 || s.ConsecutiveFailures != 3 {
				t.Errorf("unexpected counters: %+v", s)
			}
		}
	}
}
