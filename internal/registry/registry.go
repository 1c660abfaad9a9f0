// Package registry implements the animation registry (spec C8): the
// in-memory name → NamedAnimation map consumed by the sensor dispatcher
// and mutated by configuration reloads.
package registry

import (
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/SchizoDuckie/stairled-server/internal/apperr"
	"github.com/SchizoDuckie/stairled-server/internal/timeline"
)

// NamedAnimation pairs a registry key with its timeline. The timeline is
// always a *timeline.Container (used directly as "Ledstrip Animation", or
// wrapped in a Sequence nested inside another container) — the registry
// itself is indifferent to which.
type NamedAnimation struct {
	Name     string
	Timeline *timeline.Container
}

// Source loads candidate entries from configuration; the caller (the
// YAML-backed config store in production, a literal slice in tests)
// supplies already-constructed NamedAnimations so that per-variant
// validation (done at timeline construction, §4.4) has already run.
type Source interface {
	LoadAnimations() ([]NamedAnimation, error)
}

// Registry is the reader-writer-disciplined name→NamedAnimation map
// (spec §4.8): reads never block on a writer in progress finishing,
// beyond the brief critical section RWMutex enforces; writes (upsert,
// delete, load_from) serialize against each other and against the
// engine's own start() through the caller-supplied coordination (the
// engine reads via Get, which never blocks longer than a write's
// critical section).
type Registry struct {
	mu      sync.RWMutex
	entries map[string]NamedAnimation
}

// New returns an empty registry.
func New() *Registry {
	return &Registry{entries: map[string]NamedAnimation{}}
}

// LoadFrom replaces the map atomically from source. Entries are validated
// individually by the caller building each NamedAnimation; any error
// source.LoadAnimations itself reports for an individual entry is
// collected rather than aborting the whole load — load_from therefore
// returns a *LoadReport* describing what succeeded, not a single error.
func (r *Registry) LoadFrom(source Source) (*LoadReport, error) {
	loaded, err := source.LoadAnimations()
	report := &LoadReport{}
	if err != nil {
		if le, ok := err.(*LoadErrors); ok {
			report.Rejected = le.Errors
		} else {
			return nil, err
		}
	}

	next := make(map[string]NamedAnimation, len(loaded))
	for _, na := range loaded {
		next[na.Name] = na
		report.Loaded = append(report.Loaded, na.Name)
	}

	r.mu.Lock()
	r.entries = next
	r.mu.Unlock()

	for _, rej := range report.Rejected {
		log.Warn().Str("name", rej.Name).Err(rej.Err).Msg("registry: rejected animation during load")
	}
	return report, nil
}

// LoadReport summarizes a LoadFrom call: names that loaded successfully
// and entries that were rejected with their individual cause.
type LoadReport struct {
	Loaded   []string
	Rejected []RejectedEntry
}

// RejectedEntry names one configuration entry load_from refused to load.
type RejectedEntry struct {
	Name string
	Err  error
}

// LoadErrors lets a Source report per-entry validation failures
// alongside the entries that did load successfully.
type LoadErrors struct {
	Errors []RejectedEntry
}

func (e *LoadErrors) Error() string {
	return "registry: one or more animation entries failed validation"
}

// Get looks up a named animation. Lock-free with respect to other
// readers; blocks only for the brief duration of a concurrent writer's
// critical section.
func (r *Registry) Get(name string) (NamedAnimation, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	na, ok := r.entries[name]
	if !ok {
		return NamedAnimation{}, &apperr.NotFound{Name: name}
	}
	return na, nil
}

// Upsert validates-by-construction (the caller passes an already valid
// NamedAnimation) and atomically replaces one entry.
func (r *Registry) Upsert(na NamedAnimation) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[na.Name] = na
}

// Delete removes name from the registry. Sensors still referencing it
// become inert — the dispatcher is responsible for the once-only log
// when it next misses the lookup.
func (r *Registry) Delete(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.entries, name)
}

// Names returns every registered animation name, for diagnostics.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.entries))
	for name := range r.entries {
		out = append(out, name)
	}
	return out
}
