// Package timeline implements the hierarchical timeline animation model
// (spec C4/C5): time-parameterised brightness generators composed into
// containers. It is grounded on the teacher's internal/sequence.Player —
// keep the shape (a pure tick/eval step driven by an external clock,
// dependency-injected hooks instead of a name-lookup table) but replace
// the clip-crossfade domain with the spec's absolute-interval animation
// tree.
package timeline

import (
	"math"

	"github.com/SchizoDuckie/stairled-server/internal/apperr"
)

// BrightnessSource lets an animation read the last-written brightness of
// a step at on_start — FadeTo needs this to compute its starting point.
// The pin mapper (spec C3) satisfies this interface.
type BrightnessSource interface {
	GetBrightness(step int) int
}

// Context carries the collaborators an animation may need at on_start.
type Context struct {
	Brightness BrightnessSource
}

// State is the lifecycle snapshot returned by Tick.
type State struct {
	Active   bool
	Ended    bool
	Progress int
}

// EaseFunc maps [0,1] progress to [0,1] eased progress.
type EaseFunc func(float64) float64

// Animation is the shared contract every variant (and Container, used
// standalone or nested as Sequence) implements.
type Animation interface {
	DurationMs() int64
	SetAbsoluteStart(t0Ms int64)
	AbsoluteStart() int64
	AbsoluteEnd() int64
	Bind(ctx Context)
	Tick(nowMs int64) State
	Render() map[int]int
	SetEasing(f EaseFunc)
}

// Base implements the lifecycle bookkeeping (§4.4) shared by every leaf
// variant: absolute interval tracking, the started/active/ended state
// machine, and integer-percent progress. Variants embed Base and call
// advance from their own Tick so they can pass their own on_start hook.
type Base struct {
	DurationMillis int64

	absoluteStart int64
	absoluteEnd   int64

	started  bool
	active   bool
	ended    bool
	progress int

	ease EaseFunc
	ctx  Context

	// lastNow is the most recent absolute time passed to advance. Most
	// variants only need the integer progress percent, but Shifting's
	// index arithmetic (§4.4) is defined directly in terms of elapsed
	// milliseconds and would lose precision round-tripping through
	// percent for short step_ms values.
	lastNow int64
}

func (b *Base) DurationMs() int64 { return b.DurationMillis }

func (b *Base) SetAbsoluteStart(t0Ms int64) {
	b.absoluteStart = t0Ms
	b.absoluteEnd = t0Ms + b.DurationMillis
	b.started = false
	b.active = false
	b.ended = false
	b.progress = 0
}

func (b *Base) AbsoluteStart() int64 { return b.absoluteStart }
func (b *Base) AbsoluteEnd() int64   { return b.absoluteEnd }

func (b *Base) Bind(ctx Context) { b.ctx = ctx }

func (b *Base) SetEasing(f EaseFunc) { b.ease = f }

// advance runs the §4.4 state machine and invokes onStart exactly once,
// on the first tick where now falls inside [absoluteStart, absoluteEnd].
func (b *Base) advance(now int64, onStart func()) State {
	b.lastNow = now
	switch {
	case now < b.absoluteStart:
		b.active = false
		b.progress = 0
	case now <= b.absoluteEnd:
		if !b.started {
			b.started = true
			if onStart != nil {
				onStart()
			}
		}
		b.active = true
		if b.DurationMillis <= 0 {
			b.progress = 100
		} else {
			pct := 100 * float64(now-b.absoluteStart) / float64(b.DurationMillis)
			if pct > 100 {
				pct = 100
			}
			if pct < 0 {
				pct = 0
			}
			b.progress = int(math.Round(pct))
		}
	default:
		b.progress = 100
		b.active = false
		b.ended = true
	}
	return State{Active: b.active, Ended: b.ended, Progress: b.progress}
}

// fraction returns progress/100 with easing applied, for variants that
// interpolate a numeric range. Shifting does not call this — its index
// arithmetic is discrete per §4.4.
func (b *Base) fraction() float64 {
	f := float64(b.progress) / 100.0
	if b.ease != nil {
		f = b.ease(f)
	}
	return f
}

func validateLeds(leds []int) error {
	if len(leds) == 0 {
		return &apperr.ConfigInvalid{Field: "leds", Reason: "must be non-empty"}
	}
	for _, s := range leds {
		if s <= 0 {
			return &apperr.ConfigInvalid{Field: "leds", Reason: "step values must be positive"}
		}
	}
	return nil
}

func validateBrightness(field string, v int) error {
	if v < 0 || v > 4095 {
		return &apperr.ConfigInvalid{Field: field, Reason: "must be in [0, 4095]"}
	}
	return nil
}

func validateDuration(ms int64) error {
	if ms < 0 {
		return &apperr.ConfigInvalid{Field: "duration_ms", Reason: "must be >= 0"}
	}
	return nil
}

func clampBrightness(v int) int {
	if v < 0 {
		return 0
	}
	if v > 4095 {
		return 4095
	}
	return v
}

func roundInt(f float64) int {
	return int(math.Round(f))
}
