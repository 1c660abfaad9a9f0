package timeline

import "github.com/SchizoDuckie/stairled-server/internal/apperr"

// FadeIn ramps leds from StartBrightness to EndBrightness over the
// animation's duration.
type FadeIn struct {
	Base
	Leds             []int
	StartBrightness  int
	EndBrightness    int
}

// NewFadeIn validates configuration per §4.4 and constructs a FadeIn.
func NewFadeIn(leds []int, start, end int, durationMs int64) (*FadeIn, error) {
	if err := validateLeds(leds); err != nil {
		return nil, err
	}
	if err := validateBrightness("start_brightness", start); err != nil {
		return nil, err
	}
	if err := validateBrightness("end_brightness", end); err != nil {
		return nil, err
	}
	if err := validateDuration(durationMs); err != nil {
		return nil, err
	}
	f := &FadeIn{Leds: leds, StartBrightness: start, EndBrightness: end}
	f.DurationMillis = durationMs
	return f, nil
}

func (f *FadeIn) Tick(now int64) State { return f.advance(now, nil) }

func (f *FadeIn) Render() map[int]int {
	frac := f.fraction()
	v := clampBrightness(roundInt(float64(f.StartBrightness) + float64(f.EndBrightness-f.StartBrightness)*frac))
	out := make(map[int]int, len(f.Leds))
	for _, led := range f.Leds {
		out[led] = v
	}
	return out
}

// FadeOut ramps leds from StartBrightness down to zero.
type FadeOut struct {
	Base
	Leds            []int
	StartBrightness int
}

func NewFadeOut(leds []int, start int, durationMs int64) (*FadeOut, error) {
	if err := validateLeds(leds); err != nil {
		return nil, err
	}
	if err := validateBrightness("start_brightness", start); err != nil {
		return nil, err
	}
	if err := validateDuration(durationMs); err != nil {
		return nil, err
	}
	f := &FadeOut{Leds: leds, StartBrightness: start}
	f.DurationMillis = durationMs
	return f, nil
}

func (f *FadeOut) Tick(now int64) State { return f.advance(now, nil) }

func (f *FadeOut) Render() map[int]int {
	frac := f.fraction()
	v := clampBrightness(roundInt(float64(f.StartBrightness) * (1 - frac)))
	out := make(map[int]int, len(f.Leds))
	for _, led := range f.Leds {
		out[led] = v
	}
	return out
}

// FadeTo ramps leds from their observed brightness at on_start to
// TargetBrightness. If a step has no recorded brightness the observer
// (and therefore this animation) reads zero — preserved per spec §9 even
// though that can surprise authors chaining FadeTo after an all_off.
type FadeTo struct {
	Base
	Leds             []int
	TargetBrightness int

	snapshot map[int]int
}

func NewFadeTo(leds []int, target int, durationMs int64) (*FadeTo, error) {
	if err := validateLeds(leds); err != nil {
		return nil, err
	}
	if err := validateBrightness("target_brightness", target); err != nil {
		return nil, err
	}
	if err := validateDuration(durationMs); err != nil {
		return nil, err
	}
	f := &FadeTo{Leds: leds, TargetBrightness: target}
	f.DurationMillis = durationMs
	return f, nil
}

func (f *FadeTo) onStart() {
	f.snapshot = make(map[int]int, len(f.Leds))
	for _, led := range f.Leds {
		v := 0
		if f.ctx.Brightness != nil {
			v = f.ctx.Brightness.GetBrightness(led)
		}
		f.snapshot[led] = v
	}
}

func (f *FadeTo) Tick(now int64) State { return f.advance(now, f.onStart) }

func (f *FadeTo) Render() map[int]int {
	frac := f.fraction()
	out := make(map[int]int, len(f.Leds))
	for _, led := range f.Leds {
		from := f.snapshot[led] // zero-value if on_start hasn't run yet
		v := clampBrightness(roundInt(float64(from) + float64(f.TargetBrightness-from)*frac))
		out[led] = v
	}
	return out
}

// Immediate holds a fixed brightness on every led for the animation's
// duration (which may be zero — it still renders at least once before
// the next tick ends it). Inside a Container, a later item that renders
// the same led in the same tick overrides this value (last-write-wins),
// so a non-zero duration does not pin the brightness against later items.
type Immediate struct {
	Base
	Leds       []int
	Brightness int
}

func NewImmediate(leds []int, brightness int, durationMs int64) (*Immediate, error) {
	if err := validateLeds(leds); err != nil {
		return nil, err
	}
	if err := validateBrightness("brightness", brightness); err != nil {
		return nil, err
	}
	if err := validateDuration(durationMs); err != nil {
		return nil, err
	}
	im := &Immediate{Leds: leds, Brightness: brightness}
	im.DurationMillis = durationMs
	return im, nil
}

func (im *Immediate) Tick(now int64) State { return im.advance(now, nil) }

func (im *Immediate) Render() map[int]int {
	out := make(map[int]int, len(im.Leds))
	for _, led := range im.Leds {
		out[led] = im.Brightness
	}
	return out
}

// Shifting advances an index into Pattern with time; the rendered set
// places pattern values at consecutive leds starting at that index. Index
// arithmetic is discrete, so easing is never applied here.
type Shifting struct {
	Base
	Leds    []int
	Pattern []int
	StepMs  int64
	Bounce  bool
}

func NewShifting(leds []int, pattern []int, stepMs int64, bounce bool) (*Shifting, error) {
	if err := validateLeds(leds); err != nil {
		return nil, err
	}
	if len(pattern) == 0 {
		return nil, &apperr.ConfigInvalid{Field: "pattern", Reason: "must be a non-empty sequence of brightness values"}
	}
	for _, v := range pattern {
		if err := validateBrightness("pattern", v); err != nil {
			return nil, err
		}
	}
	if stepMs <= 0 {
		return nil, &apperr.ConfigInvalid{Field: "step_ms", Reason: "must be > 0"}
	}
	s := &Shifting{Leds: leds, Pattern: pattern, StepMs: stepMs, Bounce: bounce}
	n := int64(len(pattern))
	dur := n * stepMs
	if bounce {
		dur *= 2
	}
	s.DurationMillis = dur
	return s, nil
}

func (s *Shifting) Tick(now int64) State { return s.advance(now, nil) }

func (s *Shifting) Render() map[int]int {
	if !s.active {
		return nil
	}
	elapsed := s.lastNow - s.absoluteStart
	if elapsed < 0 {
		elapsed = 0
	}
	index := int(elapsed / s.StepMs)
	n := len(s.Pattern)
	if s.Bounce {
		index = triangularWave(index, n)
	} else if index >= n {
		index = n - 1
	}

	out := make(map[int]int, len(s.Leds))
	for i, led := range s.Leds {
		pi := (index + i) % n
		out[led] = s.Pattern[pi]
	}
	return out
}

// triangularWave reflects index into [0, n-1] once it reaches n, producing
// the bounce sequence 0,1,...,n-1,n-2,...,1,0,1,... required by §8's
// boundary scenario (pattern length 3: indices 0,1,2,1,0,1 at t=0..500ms).
func triangularWave(index, n int) int {
	if n <= 1 {
		return 0
	}
	period := 2 * (n - 1)
	m := index % period
	if m < 0 {
		m += period
	}
	if m < n {
		return m
	}
	return period - m
}
