// Package engine implements the animation engine (spec C6): the
// periodic scheduler that owns the current running animation and drives
// it through the pin mapper at a configurable tick rate. Grounded on the
// teacher's internal/render.Engine loop (one dedicated goroutine ticking
// a sequence.Player and fanning its output to a Driver), generalized
// from a fixed 60-LED strip render to the spec's pin-mapped step set.
package engine

import (
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/SchizoDuckie/stairled-server/internal/apperr"
	"github.com/SchizoDuckie/stairled-server/internal/ratelog"
	"github.com/SchizoDuckie/stairled-server/internal/timeline"
)

// State is the engine's lifecycle state machine (spec §4.6).
type State int

const (
	IDLE State = iota
	RUNNING
	STOPPING
)

func (s State) String() string {
	switch s {
	case IDLE:
		return "IDLE"
	case RUNNING:
		return "RUNNING"
	case STOPPING:
		return "STOPPING"
	default:
		return "UNKNOWN"
	}
}

// PinMapper is the subset of pinmap.Mapper the engine depends on.
type PinMapper interface {
	SetBrightness(step int, value int) error
	SetAll(value int) error
	OrderedSteps(steps []int) []int
}

// Animation is the subset of timeline.Container/Animation the engine
// drives: set_current + merged render, per spec §4.5/§4.6.
type Animation interface {
	SetAbsoluteStart(t0Ms int64)
	AbsoluteEnd() int64
	Bind(ctx timeline.Context)
	SetCurrent(nowMs int64) []*timeline.Item
	Render() map[int]int
}

// Clock returns the current monotonic time in milliseconds. Production
// wires time.Now-based monotonic millis; tests inject a fake so Scenario
// A/C-style timing assertions don't depend on wall-clock sleeps.
type Clock func() int64

// Engine is the single-flight periodic scheduler.
type Engine struct {
	mu sync.Mutex

	mapper   PinMapper
	clock    Clock
	tickHz   int
	ctx      timeline.Context
	missLog  *ratelog.Gate

	state   State
	current Animation
	stopAt  int64 // absolute end of the current animation, cached for STOPPING detection

	stopRequested bool
}

// New constructs an Engine. tickHz defaults to 60 if <= 0.
func New(mapper PinMapper, clock Clock, tickHz int, ctx timeline.Context) *Engine {
	if tickHz <= 0 {
		tickHz = 60
	}
	return &Engine{
		mapper:  mapper,
		clock:   clock,
		tickHz:  tickHz,
		ctx:     ctx,
		missLog: ratelog.New(2 * time.Second),
		state:   IDLE,
	}
}

// State returns the engine's current lifecycle state.
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Start arms animation and transitions IDLE → RUNNING. From RUNNING it
// is rejected with Busy (single-flight, enforced defensively here even
// though the sensor dispatcher also enforces it above this layer).
func (e *Engine) Start(animation Animation) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state != IDLE {
		return &apperr.Busy{}
	}

	now := e.clock()
	animation.Bind(e.ctx)
	animation.SetAbsoluteStart(now)
	e.current = animation
	e.stopAt = animation.AbsoluteEnd()
	e.state = RUNNING
	return nil
}

// Stop requests a cooperative transition to STOPPING, effective at the
// next tick boundary. A call from IDLE is a no-op.
func (e *Engine) Stop() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state == RUNNING {
		e.stopRequested = true
	}
}

// Tick runs one scheduler iteration: if RUNNING, advances the current
// animation and writes its merged render to the pin mapper in
// deterministic (chip, channel) order; if the animation's absolute end
// has passed (or Stop was requested), transitions STOPPING then IDLE,
// zeroing every mapped step. Safe to call from one dedicated goroutine
// only — Tick itself does not spawn one (Run calls it in a loop on its
// caller's goroutine, for production use).
func (e *Engine) Tick() {
	e.mu.Lock()
	state := e.state
	e.mu.Unlock()

	switch state {
	case RUNNING:
		e.tickRunning()
	case STOPPING:
		e.tickStopping()
	}
}

func (e *Engine) tickRunning() {
	e.mu.Lock()
	current := e.current
	stopRequested := e.stopRequested
	e.mu.Unlock()

	if current == nil {
		return
	}

	now := e.clock()
	current.SetCurrent(now)
	merged := current.Render()

	steps := make([]int, 0, len(merged))
	for step := range merged {
		steps = append(steps, step)
	}
	ordered := e.mapper.OrderedSteps(steps)
	for _, step := range ordered {
		if err := e.mapper.SetBrightness(step, merged[step]); err != nil {
			log.Warn().Int("step", step).Err(err).Msg("engine: write failed mid-tick")
		}
	}

	if stopRequested || now > e.stopAtSnapshot() {
		e.mu.Lock()
		e.state = STOPPING
		e.stopRequested = false
		e.mu.Unlock()
	}
}

func (e *Engine) stopAtSnapshot() int64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.stopAt
}

func (e *Engine) tickStopping() {
	if err := e.mapper.SetAll(0); err != nil {
		log.Warn().Err(err).Msg("engine: set_all(0) on stop failed")
	}
	e.mu.Lock()
	e.current = nil
	e.state = IDLE
	e.mu.Unlock()
}

// Run drives Tick at tick_hz on the calling goroutine until stop is
// closed. If an
// iteration's start lags the previous tick boundary by more than one
// period, Run skips straight to now and logs a rate-limited warning
// rather than attempting to catch up (spec §4.6/§5).
func (e *Engine) Run(stop <-chan struct{}) {
	period := time.Second / time.Duration(e.tickHz)
	next := time.Now()
	for {
		select {
		case <-stop:
			return
		default:
		}

		now := time.Now()
		if now.Sub(next) > period {
			if e.missLog.Allow("missed-tick") {
				log.Warn().Msg("engine: missed tick deadline, skipping to now without catch-up")
			}
			next = now
		}

		e.Tick()

		next = next.Add(period)
		sleep := time.Until(next)
		if sleep > 0 {
			select {
			case <-stop:
				return
			case <-time.After(sleep):
			}
		}
	}
}

// MonotonicMillisClock returns a Clock backed by time.Now's monotonic
// reading, relative to process start.
func MonotonicMillisClock() Clock {
	start := time.Now()
	return func() int64 {
		return time.Since(start).Milliseconds()
	}
}
