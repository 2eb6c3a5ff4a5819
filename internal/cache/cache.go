// Package cache is the stage-result cache. Entries are keyed by a
// fingerprint of the stage's semantically relevant inputs; concurrent
// callers with the same fingerprint collapse into a single computation, and
// only results that passed validation ever make it in.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// Entry is one cached stage result.
type Entry struct {
	Fingerprint string
	Stage       string
	Payload     any
	CreatedAt   time.Time
}

// Cache maps fingerprints to previously computed stage outputs with a TTL.
type Cache struct {
	ttl     time.Duration
	now     func() time.Time
	group   singleflight.Group
	persist func(Entry)

	mu      sync.RWMutex
	entries map[string]Entry
}

// New creates a Cache whose entries expire ttl after creation.
func New(ttl time.Duration) *Cache {
	return &Cache{
		ttl:     ttl,
		now:     time.Now,
		entries: make(map[string]Entry),
	}
}

// SetPersist installs a hook invoked for every newly computed entry, after
// it is stored. Used to write entries through to durable storage. Must be
// set before the cache is shared.
func (c *Cache) SetPersist(fn func(Entry)) {
	c.persist = fn
}

// GetOrCompute returns the cached payload for fingerprint, or runs compute
// exactly once across concurrent callers and caches its result. The second
// return value reports whether the payload was served without running
// compute in this call. Failed computations are never cached, so a
// transient failure does not poison subsequent identical requests.
func (c *Cache) GetOrCompute(stage, fingerprint string, compute func() (any, error)) (any, bool, error) {
	if payload, ok := c.lookup(fingerprint); ok {
		return payload, true, nil
	}

	var computed bool
	payload, err, _ := c.group.Do(fingerprint, func() (any, error) {
		// A racing caller may have stored the entry between the lookup
		// above and this flight starting.
		if payload, ok := c.lookup(fingerprint); ok {
			return payload, nil
		}
		computed = true
		payload, err := compute()
		if err != nil {
			return nil, err
		}
		c.store(stage, fingerprint, payload)
		return payload, nil
	})
	if err != nil {
		return nil, false, err
	}
	return payload, !computed, nil
}

// Get returns the payload for fingerprint when present and unexpired.
func (c *Cache) Get(fingerprint string) (any, bool) {
	return c.lookup(fingerprint)
}

// Put stores a payload directly, bypassing the computation path. Used to
// warm the cache from persisted entries on startup.
func (c *Cache) Put(stage, fingerprint string, payload any, createdAt time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[fingerprint] = Entry{
		Fingerprint: fingerprint,
		Stage:       stage,
		Payload:     payload,
		CreatedAt:   createdAt,
	}
}

// Len reports the number of live (unexpired) entries.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	n := 0
	cutoff := c.now().Add(-c.ttl)
	for _, e := range c.entries {
		if e.CreatedAt.After(cutoff) {
			n++
		}
	}
	return n
}

func (c *Cache) lookup(fingerprint string) (any, bool) {
	c.mu.RLock()
	e, ok := c.entries[fingerprint]
	c.mu.RUnlock()
	if !ok {
		return nil, false
	}
	if c.now().Sub(e.CreatedAt) >= c.ttl {
		// Expired entries are misses; drop lazily.
		c.mu.Lock()
		if cur, ok := c.entries[fingerprint]; ok && cur.CreatedAt.Equal(e.CreatedAt) {
			delete(c.entries, fingerprint)
		}
		c.mu.Unlock()
		return nil, false
	}
	return e.Payload, true
}

func (c *Cache) store(stage, fingerprint string, payload any) {
	e := Entry{
		Fingerprint: fingerprint,
		Stage:       stage,
		Payload:     payload,
		CreatedAt:   c.now(),
	}
	c.mu.Lock()
	c.entries[fingerprint] = e
	c.mu.Unlock()
	if c.persist != nil {
		c.persist(e)
	}
}

// Fingerprint hashes a stage name together with its semantically relevant
// inputs into a deterministic cache key. Parts are JSON-encoded in order,
// so struct field order (not map iteration) defines the layout.
func Fingerprint(stage string, parts ...any) string {
	h := sha256.New()
	h.Write([]byte(stage))
	for _, part := range parts {
		h.Write([]byte{0})
		b, err := json.Marshal(part)
		if err != nil {
			// Fall back to the Go representation; fingerprints only need
			// to be deterministic, not reversible.
			b = []byte(fmt.Sprintf("%#v", part))
		}
		h.Write(b)
	}
	return hex.EncodeToString(h.Sum(nil))
}
