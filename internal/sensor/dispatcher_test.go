package sensor

import (
	"testing"

	"github.com/SchizoDuckie/stairled-server/internal/apperr"
	"github.com/SchizoDuckie/stairled-server/internal/registry"
	"github.com/SchizoDuckie/stairled-server/internal/timeline"
)

type fakeRegistry struct {
	entries map[string]registry.NamedAnimation
}

func (r fakeRegistry) Get(name string) (registry.NamedAnimation, error) {
	na, ok := r.entries[name]
	if !ok {
		return registry.NamedAnimation{}, &apperr.NotFound{Name: name}
	}
	return na, nil
}

type fakeStarter struct {
	started []string
	busy    bool
}

func (s *fakeStarter) Start(na registry.NamedAnimation) error {
	if s.busy {
		return &apperr.Busy{}
	}
	s.started = append(s.started, na.Name)
	return nil
}

type fakeSink struct {
	events []TriggerEvent
}

func (s *fakeSink) Emit(e TriggerEvent) { s.events = append(s.events, e) }

func newAnimation(name string, durationMs int64) registry.NamedAnimation {
	c := timeline.NewContainer()
	fi, _ := timeline.NewFadeIn([]int{1}, 0, 100, durationMs)
	c.Add(0, fi)
	return registry.NamedAnimation{Name: name, Timeline: c}
}

func TestDispatchTriggersExactlyOnceThenDropsWhileActive(t *testing.T) {
	reg := fakeRegistry{entries: map[string]registry.NamedAnimation{"fade1": newAnimation("fade1", 1000)}}
	starter := &fakeStarter{}
	sink := &fakeSink{}
	d := New(reg, starter, sink)
	d.LoadSensors([]Sensor{{Name: "A", Enabled: true, Threshold: 500, Operator: OpLessOrEqual, TargetAnimationName: "fade1"}})

	d.Dispatch(Sample{SensorName: "A", Value: 600, TimestampMs: 0})
	d.Dispatch(Sample{SensorName: "A", Value: 400, TimestampMs: 10})
	d.Dispatch(Sample{SensorName: "A", Value: 300, TimestampMs: 20})

	if len(starter.started) != 1 {
		t.Fatalf("expected exactly one start, got %d (%v)", len(starter.started), starter.started)
	}
	if len(sink.events) != 1 || sink.events[0].Value != 400 {
		t.Fatalf("expected one trigger event for value 400, got %+v", sink.events)
	}
}

func TestDisabledSensorIsIgnored(t *testing.T) {
	reg := fakeRegistry{entries: map[string]registry.NamedAnimation{"fade1": newAnimation("fade1", 1000)}}
	starter := &fakeStarter{}
	d := New(reg, starter, &fakeSink{})
	d.LoadSensors([]Sensor{{Name: "A", Enabled: false, Threshold: 500, Operator: OpLessOrEqual, TargetAnimationName: "fade1"}})

	d.Dispatch(Sample{SensorName: "A", Value: 0, TimestampMs: 0})
	if len(starter.started) != 0 {
		t.Fatalf("expected disabled sensor to never trigger")
	}
}

func TestBusyEngineDropsTriggerAndResetsActive(t *testing.T) {
	reg := fakeRegistry{entries: map[string]registry.NamedAnimation{"fade1": newAnimation("fade1", 1000)}}
	starter := &fakeStarter{busy: true}
	sink := &fakeSink{}
	d := New(reg, starter, sink)
	d.LoadSensors([]Sensor{{Name: "A", Enabled: true, Threshold: 500, Operator: OpLessOrEqual, TargetAnimationName: "fade1"}})

	d.Dispatch(Sample{SensorName: "A", Value: 100, TimestampMs: 0})

	if len(sink.events) != 0 {
		t.Fatalf("expected no trigger event when engine is busy, got %+v", sink.events)
	}
	if d.SensorActive("A") {
		t.Fatalf("expected sensor to reset to inactive after a busy rejection")
	}
}

func TestMissingTargetAnimationResetsActiveWithoutStarting(t *testing.T) {
	reg := fakeRegistry{entries: map[string]registry.NamedAnimation{}}
	starter := &fakeStarter{}
	d := New(reg, starter, &fakeSink{})
	d.LoadSensors([]Sensor{{Name: "A", Enabled: true, Threshold: 500, Operator: OpGreaterOrEqual, TargetAnimationName: "missing"}})

	d.Dispatch(Sample{SensorName: "A", Value: 600, TimestampMs: 0})

	if len(starter.started) != 0 {
		t.Fatalf("expected no start for missing target animation")
	}
	if d.SensorActive("A") {
		t.Fatalf("expected sensor reset to inactive after NotFound")
	}
}

func TestEqualOperator(t *testing.T) {
	reg := fakeRegistry{entries: map[string]registry.NamedAnimation{"fade1": newAnimation("fade1", 1000)}}
	starter := &fakeStarter{}
	d := New(reg, starter, &fakeSink{})
	d.LoadSensors([]Sensor{{Name: "A", Enabled: true, Threshold: 42, Operator: OpEqual, TargetAnimationName: "fade1"}})

	d.Dispatch(Sample{SensorName: "A", Value: 41, TimestampMs: 0})
	if len(starter.started) != 0 {
		t.Fatalf("expected no trigger for non-equal value")
	}
	d.Dispatch(Sample{SensorName: "A", Value: 42, TimestampMs: 1})
	if len(starter.started) != 1 {
		t.Fatalf("expected trigger for equal value")
	}
}
