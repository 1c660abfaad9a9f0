// Package sensor implements the sensor dispatcher (spec C7): threshold
// evaluation over an inbound sample stream and single-flight activation
// of registry animations through the engine. Grounded on the retrieval
// pack's MQTT client (ji-just-ji-ESP32/backend/internal/mqtt) and its
// callback-per-topic dispatch, narrowed to one typed Dispatch(Sample)
// entry point over a table of independently configured sensors.
package sensor

import (
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/SchizoDuckie/stairled-server/internal/apperr"
	"github.com/SchizoDuckie/stairled-server/internal/ratelog"
	"github.com/SchizoDuckie/stairled-server/internal/registry"
)

// Operator is a threshold comparison (spec §4.7).
type Operator string

const (
	OpLessOrEqual    Operator = "<="
	OpGreaterOrEqual Operator = ">="
	OpEqual          Operator = "=="
)

func (op Operator) evaluate(value, threshold float64) bool {
	switch op {
	case OpLessOrEqual:
		return value <= threshold
	case OpGreaterOrEqual:
		return value >= threshold
	case OpEqual:
		return value == threshold
	default:
		return false
	}
}

// Sample is one inbound sensor reading, already stripped of transport
// framing and the configured name prefix.
type Sample struct {
	SensorName  string
	Value       float64
	TimestampMs int64
}

// TriggerEvent is emitted to the Sink whenever a sample activates an
// animation (spec §6).
type TriggerEvent struct {
	SensorName    string  `json:"sensor_name"`
	Value         float64 `json:"value"`
	AnimationName string  `json:"animation_name"`
	TimestampMs   int64   `json:"timestamp_ms"`
}

// Sink receives trigger events. eventsink.Logger is the default
// implementation; persistence is external per spec §6.
type Sink interface {
	Emit(TriggerEvent)
}

// Sensor is one row of the dispatcher's table (spec §4.7/§6).
type Sensor struct {
	Name                string
	Enabled             bool
	Threshold           float64
	Operator            Operator
	TargetAnimationName string

	mu            sync.Mutex
	active        bool
	lastTriggerAt int64
	clearTimer    *time.Timer
}

// Registry is the subset of registry.Registry the dispatcher needs.
type Registry interface {
	Get(name string) (registry.NamedAnimation, error)
}

// Dispatcher evaluates inbound samples against a copy-on-write sensor
// table and asks Starter to run the matched animation.
type Dispatcher struct {
	mu      sync.RWMutex
	sensors map[string]*Sensor

	registry Registry
	starter  starterAny
	sink     Sink

	dropLog    *ratelog.Gate
	missingLog *ratelog.Gate
}

// starterAny lets Dispatcher start animations without importing the
// engine package (whose Start takes an engine.Animation rather than a
// registry.NamedAnimation); production wires a thin adapter, see
// cmd/stairledd.
type starterAny interface {
	Start(animation registry.NamedAnimation) error
}

// New constructs a Dispatcher.
func New(reg Registry, starter starterAny, sink Sink) *Dispatcher {
	return &Dispatcher{
		sensors:    map[string]*Sensor{},
		registry:   reg,
		starter:    starter,
		sink:       sink,
		dropLog:    ratelog.New(2 * time.Second),
		missingLog: ratelog.New(2 * time.Second),
	}
}

// LoadSensors replaces the sensor table with a copy-on-write swap;
// in-flight handlers finish against the snapshot they already hold
// (spec §5).
func (d *Dispatcher) LoadSensors(sensors []Sensor) {
	next := make(map[string]*Sensor, len(sensors))
	for i := range sensors {
		next[sensors[i].Name] = &sensors[i]
	}
	d.mu.Lock()
	d.sensors = next
	d.mu.Unlock()
}

// Dispatch evaluates one sample against the sensor table (spec §4.7).
func (d *Dispatcher) Dispatch(sample Sample) {
	d.mu.RLock()
	s, ok := d.sensors[sample.SensorName]
	d.mu.RUnlock()
	if !ok || s == nil || !s.Enabled {
		return
	}

	if !s.Operator.evaluate(sample.Value, s.Threshold) {
		return
	}

	s.mu.Lock()
	alreadyActive := s.active
	if alreadyActive {
		s.mu.Unlock()
		if d.dropLog.Allow("active-" + sample.SensorName) {
			log.Warn().Str("sensor", sample.SensorName).Msg("dispatcher: dropping sample, sensor already active")
		}
		return
	}
	s.active = true
	s.lastTriggerAt = sample.TimestampMs
	s.mu.Unlock()

	na, err := d.registry.Get(s.TargetAnimationName)
	if err != nil {
		if d.missingLog.Allow("missing-" + s.TargetAnimationName) {
			log.Warn().Str("sensor", s.Name).Str("animation", s.TargetAnimationName).Err(err).
				Msg("dispatcher: target animation not found")
		}
		s.mu.Lock()
		s.active = false
		s.mu.Unlock()
		return
	}

	if err := d.starter.Start(na); err != nil {
		if _, busy := err.(*apperr.Busy); busy {
			log.Info().Str("sensor", s.Name).Msg("dispatcher: trigger dropped, engine busy")
		} else {
			log.Warn().Str("sensor", s.Name).Err(err).Msg("dispatcher: start failed")
		}
		// The start was refused (typically another sensor's animation is
		// running); this one yields and is reset to inactive right away, so
		// the next sample is evaluated afresh rather than dropped as active.
		s.mu.Lock()
		s.active = false
		s.mu.Unlock()
		return
	}

	d.sink.Emit(TriggerEvent{
		SensorName:    sample.SensorName,
		Value:         sample.Value,
		AnimationName: s.TargetAnimationName,
		TimestampMs:   sample.TimestampMs,
	})

	holdMs := int64(2000)
	if dur := na.Timeline.DurationMs(); dur > holdMs {
		holdMs = dur
	}
	d.scheduleClear(s, holdMs)
}

func (d *Dispatcher) scheduleClear(s *Sensor, holdMs int64) {
	s.mu.Lock()
	if s.clearTimer != nil {
		s.clearTimer.Stop()
	}
	s.clearTimer = time.AfterFunc(time.Duration(holdMs)*time.Millisecond, func() {
		s.mu.Lock()
		s.active = false
		s.mu.Unlock()
	})
	s.mu.Unlock()
}

// SensorActive reports whether name's sensor is currently latched
// active, for diagnostics/tests. Returns false for unknown sensors.
func (d *Dispatcher) SensorActive(name string) bool {
	d.mu.RLock()
	s, ok := d.sensors[name]
	d.mu.RUnlock()
	if !ok {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}
