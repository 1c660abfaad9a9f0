package timeline

import "testing"

func TestFadeInBoundaries(t *testing.T) {
	f, err := NewFadeIn([]int{1}, 0, 4095, 1000)
	if err != nil {
		t.Fatalf("NewFadeIn: %v", err)
	}
	f.SetAbsoluteStart(0)

	f.Tick(0)
	if v := f.Render()[1]; v != 0 {
		t.Fatalf("at t=start, want 0, got %d", v)
	}

	f.Tick(500)
	if v := f.Render()[1]; v < 2047 || v > 2048 {
		t.Fatalf("at t=start+500, want 2047 or 2048, got %d", v)
	}

	f.Tick(1000)
	if v := f.Render()[1]; v != 4095 {
		t.Fatalf("at t=start+1000, want 4095, got %d", v)
	}
}

func TestFadeOutToZero(t *testing.T) {
	f, err := NewFadeOut([]int{3}, 4000, 1000)
	if err != nil {
		t.Fatalf("NewFadeOut: %v", err)
	}
	f.SetAbsoluteStart(0)
	f.Tick(1000)
	if v := f.Render()[3]; v != 0 {
		t.Fatalf("expected fade-out to reach 0, got %d", v)
	}
}

type fixedBrightness map[int]int

func (f fixedBrightness) GetBrightness(step int) int { return f[step] }

func TestFadeToUsesSnapshotAtOnStart(t *testing.T) {
	src := fixedBrightness{5: 1000}
	f, err := NewFadeTo([]int{5}, 4000, 1000)
	if err != nil {
		t.Fatalf("NewFadeTo: %v", err)
	}
	f.Bind(Context{Brightness: src})
	f.SetAbsoluteStart(0)

	f.Tick(0)
	if v := f.Render()[5]; v != 1000 {
		t.Fatalf("expected snapshot 1000 at t=0, got %d", v)
	}

	// Mutating the source after on_start must not affect the running fade.
	src[5] = 0
	f.Tick(1000)
	if v := f.Render()[5]; v != 4000 {
		t.Fatalf("expected fade to reach target 4000, got %d", v)
	}
}

func TestFadeToWithNoRecordedBrightnessReadsZero(t *testing.T) {
	f, _ := NewFadeTo([]int{9}, 4000, 1000)
	f.Bind(Context{Brightness: fixedBrightness{}})
	f.SetAbsoluteStart(0)
	f.Tick(0)
	if v := f.Render()[9]; v != 0 {
		t.Fatalf("expected 0 snapshot for unrecorded step, got %d", v)
	}
}

func TestImmediateZeroDurationEndsNextTick(t *testing.T) {
	im, err := NewImmediate([]int{1}, 2000, 0)
	if err != nil {
		t.Fatalf("NewImmediate: %v", err)
	}
	im.SetAbsoluteStart(0)

	st := im.Tick(0)
	if !st.Active || st.Ended {
		t.Fatalf("expected active, not-yet-ended state at t=0, got %+v", st)
	}
	if v := im.Render()[1]; v != 2000 {
		t.Fatalf("expected render at t=0, got %d", v)
	}

	st = im.Tick(1)
	if st.Active || !st.Ended {
		t.Fatalf("expected ended state on the next tick, got %+v", st)
	}
}

func TestShiftingBounceIndices(t *testing.T) {
	s, err := NewShifting([]int{1}, []int{10, 20, 30}, 100, true)
	if err != nil {
		t.Fatalf("NewShifting: %v", err)
	}
	s.SetAbsoluteStart(0)

	pattern := []int{10, 20, 30}
	wantIdx := []int{0, 1, 2, 1, 0, 1}
	for i, t0 := range []int64{0, 100, 200, 300, 400, 500} {
		s.Tick(t0)
		got := s.Render()[1]
		want := pattern[wantIdx[i]]
		if got != want {
			t.Fatalf("bounce render at t=%d: got %d want %d (index %d)", t0, got, want, wantIdx[i])
		}
	}
}

func TestActiveIntervalBeforeAndAfter(t *testing.T) {
	f, _ := NewFadeIn([]int{1}, 0, 100, 1000)
	f.SetAbsoluteStart(1000)

	st := f.Tick(500)
	if st.Active || st.Progress != 0 {
		t.Fatalf("before start: expected inactive/progress 0, got %+v", st)
	}

	st = f.Tick(3000)
	if st.Active || !st.Ended || st.Progress != 100 {
		t.Fatalf("after end: expected ended/progress 100, got %+v", st)
	}
}

func TestValidationRejectsBadConfig(t *testing.T) {
	if _, err := NewFadeIn(nil, 0, 100, 100); err == nil {
		t.Fatalf("expected error for empty leds")
	}
	if _, err := NewFadeIn([]int{1}, -1, 100, 100); err == nil {
		t.Fatalf("expected error for out-of-range brightness")
	}
	if _, err := NewFadeIn([]int{1}, 0, 100, -1); err == nil {
		t.Fatalf("expected error for negative duration")
	}
	if _, err := NewShifting([]int{1}, nil, 100, false); err == nil {
		t.Fatalf("expected error for empty pattern")
	}
}

func TestSequenceNestedTimelines(t *testing.T) {
	// Scenario F: three FadeTo items at offsets 0, 100, 200ms (100ms each),
	// driving leds 1, 2, 3 from 0 to 4000.
	inner := NewContainer()
	f1, _ := NewFadeTo([]int{1}, 4000, 100)
	f2, _ := NewFadeTo([]int{2}, 4000, 100)
	f3, _ := NewFadeTo([]int{3}, 4000, 100)
	inner.Add(0, f1)
	inner.Add(100, f2)
	inner.Add(200, f3)
	inner.Bind(Context{Brightness: fixedBrightness{}})

	seq := NewSequence(inner)
	if seq.DurationMs() != 300 {
		t.Fatalf("expected sequence duration 300, got %d", seq.DurationMs())
	}

	seq.SetAbsoluteStart(0)
	seq.Tick(150)
	merged := seq.Render()

	if _, ok := merged[1]; ok {
		t.Fatalf("led 1's item ended by t=150 and should not render")
	}
	if _, ok := merged[3]; ok {
		t.Fatalf("led 3's item hasn't started by t=150 and should not render")
	}
	if _, ok := merged[2]; !ok {
		t.Fatalf("led 2 should be in-progress at t=150")
	}
}

func TestEasingBoundaries(t *testing.T) {
	fns := []EaseFunc{
		EaseInBack, EaseOutBack, EaseInOutBack,
		EaseInElastic, EaseOutElastic, EaseInOutElastic,
		EaseInBounce, EaseOutBounce, EaseInOutBounce,
	}
	for _, fn := range fns {
		if v := fn(0); v < -0.01 || v > 0.01 {
			t.Fatalf("easing at 0 should be ~0, got %v", v)
		}
		if v := fn(1); v < 0.99 || v > 1.01 {
			t.Fatalf("easing at 1 should be ~1, got %v", v)
		}
	}
}

func TestNamedEasingLookup(t *testing.T) {
	if _, ok := Named("linear"); !ok {
		t.Fatalf("expected linear to resolve")
	}
	if _, ok := Named("nonexistent"); ok {
		t.Fatalf("expected unknown easing name to miss")
	}
}
