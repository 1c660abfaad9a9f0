// Package ratelog dedups repeated warnings the way the spec asks for in
// several places ("logged once per unique (step, error) pair", "rate-limited
// repeats"): the teacher pushes one-shot diagnostics ad hoc from ws.State;
// here the same shape is needed at enough call sites (pin mapper, PCA9685
// device, sensor dispatcher) to warrant one small reusable gate.
package ratelog

import (
	"sync"
	"time"
)

// Gate remembers which keys have already fired and re-arms them after a
// cooldown, so a caller can log "once, then rate-limited" cheaply.
type Gate struct {
	mu      sync.Mutex
	seen    map[string]time.Time
	cooldown time.Duration
	now     func() time.Time
}

// New returns a Gate that re-arms a key after cooldown has elapsed since
// its last fire. cooldown <= 0 means "once ever".
func New(cooldown time.Duration) *Gate {
	return &Gate{
		seen:     map[string]time.Time{},
		cooldown: cooldown,
		now:      time.Now,
	}
}

// Allow reports whether the caller should log for key now, and records the
// firing if so.
func (g *Gate) Allow(key string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now()
	last, ok := g.seen[key]
	if ok {
		if g.cooldown <= 0 {
			return false
		}
		if now.Sub(last) < g.cooldown {
			return false
		}
	}
	g.seen[key] = now
	return true
}

// Reset forgets every key, allowing the next Allow call for each to fire
// again immediately.
func (g *Gate) Reset() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.seen = map[string]time.Time{}
}
