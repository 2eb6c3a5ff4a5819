// Package router picks which inference region serves each call. It keeps
// per-region health (consecutive failures, an exponentially decayed latency
// estimate and a rolling success ratio) and prefers the healthy region with
// the lowest failure-weighted latency, spreading ties by in-flight load.
package router

import (
	"errors"
	"log"
	"sync"
	"time"
)

// ErrNoAvailableRegion is returned when no healthy region advertises the
// requested capability. The orchestrator surfaces it as a stage failure.
var ErrNoAvailableRegion = errors.New("no available region for capability")

// Region describes one inference backend region.
type Region struct {
	ID           string   `json:"id"`
	Provider     string   `json:"provider"`
	Model        string   `json:"model"`
	Capabilities []string `json:"capabilities"`
	RPM          int      `json:"rpm,omitempty"`
}

// Options tune the health policy.
type Options struct {
	// FailureThreshold is the number of consecutive failures after which a
	// region is marked unhealthy.
	FailureThreshold int
	// Cooldown is how long an unhealthy region is excluded before it is
	// probed again.
	Cooldown time.Duration
	// LatencyDecay is the EWMA weight given to the newest latency sample.
	LatencyDecay float64
}

// DefaultOptions match the documented policy: three strikes, 30s cooldown.
func DefaultOptions() Options {
	return Options{
		FailureThreshold: 3,
		Cooldown:         30 * time.Second,
		LatencyDecay:     0.3,
	}
}

type regionHealth struct {
	region Region

	consecutiveFailures int
	successes           int64
	failures            int64
	ewmaLatency         time.Duration
	inFlight            int

	unhealthyUntil time.Time
	probeInFlight  bool
}

// Router selects regions and tracks their health.
type Router struct {
	opts Options
	now  func() time.Time

	mu      sync.Mutex
	regions map[string]*regionHealth
	order   []string // stable iteration order for deterministic tie-breaks
}

// New creates a Router over the given regions.
func New(regions []Region, opts Options) *Router {
	r := &Router{
		opts:    opts,
		now:     time.Now,
		regions: make(map[string]*regionHealth, len(regions)),
	}
	if r.opts.FailureThreshold <= 0 {
		r.opts.FailureThreshold = 3
	}
	if r.opts.LatencyDecay <= 0 || r.opts.LatencyDecay > 1 {
		r.opts.LatencyDecay = 0.3
	}
	for _, region := range regions {
		r.regions[region.ID] = &regionHealth{region: region}
		r.order = append(r.order, region.ID)
	}
	return r
}

// Select returns the best healthy region advertising capability, excluding
// the given region ids. The selected region's in-flight count is incremented
// and released by ReportOutcome.
func (r *Router) Select(capability string, exclude map[string]bool) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	var best *regionHealth
	for _, id := range r.order {
		h := r.regions[id]
		if exclude[id] || !hasCapability(h.region, capability) {
			continue
		}
		if h.consecutiveFailures >= r.opts.FailureThreshold {
			if now.Before(h.unhealthyUntil) || h.probeInFlight {
				continue
			}
			// Cooldown elapsed: admit a single probe call. Further callers
			// skip the region until the probe outcome is reported.
			h.probeInFlight = true
			h.inFlight++
			log.Printf("router: probing region %s after cooldown", id)
			return id, nil
		}
		if best == nil || r.less(h, best) {
			best = h
		}
	}
	if best == nil {
		return "", ErrNoAvailableRegion
	}
	best.inFlight++
	return best.region.ID, nil
}

// less orders candidate regions by failure-weighted latency, then by
// in-flight load.
func (r *Router) less(a, b *regionHealth) bool {
	sa, sb := score(a), score(b)
	if sa != sb {
		return sa < sb
	}
	return a.inFlight < b.inFlight
}

// score is the EWMA latency divided by the rolling success ratio, so a
// flaky region loses even when it is fast. Regions with no samples score
// zero and are tried first.
func score(h *regionHealth) float64 {
	total := h.successes + h.failures
	if total == 0 {
		return 0
	}
	ratio := float64(h.successes) / float64(total)
	if ratio <= 0 {
		ratio = 1.0 / float64(total+1)
	}
	return float64(h.ewmaLatency) / ratio
}

// ReportOutcome records the result of a call routed to the given region and
// releases its in-flight slot.
func (r *Router) ReportOutcome(regionID string, success bool, latency time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()

	h, ok := r.regions[regionID]
	if !ok {
		return
	}
	if h.inFlight > 0 {
		h.inFlight--
	}
	h.probeInFlight = false

	if h.ewmaLatency == 0 {
		h.ewmaLatency = latency
	} else {
		decay := r.opts.LatencyDecay
		h.ewmaLatency = time.Duration(float64(latency)*decay + float64(h.ewmaLatency)*(1-decay))
	}

	if success {
		h.successes++
		h.consecutiveFailures = 0
		h.unhealthyUntil = time.Time{}
		return
	}

	h.failures++
	h.consecutiveFailures++
	if h.consecutiveFailures >= r.opts.FailureThreshold {
		h.unhealthyUntil = r.now().Add(r.opts.Cooldown)
		log.Printf("router: region %s unhealthy after %d consecutive failures, cooling down until %s",
			regionID, h.consecutiveFailures, h.unhealthyUntil.Format(time.RFC3339))
	}
}

// RegionSnapshot is a point-in-time view of one region's health.
type RegionSnapshot struct {
	Region              Region        `json:"region"`
	Healthy             bool          `json:"healthy"`
	ConsecutiveFailures int           `json:"consecutive_failures"`
	Successes           int64         `json:"successes"`
	Failures            int64         `json:"failures"`
	EWMALatency         time.Duration `json:"ewma_latency_ns"`
	InFlight            int           `json:"in_flight"`
}

// Snapshot reports the health of every region, in registration order.
func (r *Router) Snapshot() []RegionSnapshot {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	out := make([]RegionSnapshot, 0, len(r.order))
	for _, id := range r.order {
		h := r.regions[id]
		out = append(out, RegionSnapshot{
			Region:              h.region,
			Healthy:             h.consecutiveFailures < r.opts.FailureThreshold || !now.Before(h.unhealthyUntil),
			ConsecutiveFailures: h.consecutiveFailures,
			Successes:           h.successes,
			Failures:            h.failures,
			EWMALatency:         h.ewmaLatency,
			InFlight:            h.inFlight,
		})
	}
	return out
}

// Region returns the static descriptor for a region id.
func (r *Router) Region(id string) (Region, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	h, ok := r.regions[id]
	if !ok {
		return Region{}, false
	}
	return h.region, true
}

func hasCapability(region Region, capability string) bool {
	if capability == "" {
		return true
	}
	for _, c := range region.Capabilities {
		if c == capability {
			return true
		}
	}
	return false
}
