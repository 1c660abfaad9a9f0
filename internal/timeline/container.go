package timeline

// Item pairs an animation with its offset from the container's absolute
// start (spec "Timeline item").
type Item struct {
	OffsetMs  int64
	Animation Animation
}

// Container is the ordered timeline collection (spec C5, "Ledstrip
// Animation / Timeline Container"). It also satisfies Animation itself,
// so it can be nested unchanged as the Sequence variant's inner timeline
// — the same relationship the teacher's sequence.Player has to a single
// Clip, generalized one level so containers compose.
type Container struct {
	items []*Item

	absoluteStart  int64
	durationMillis int64
	durationValid  bool

	active []*Item
	ease   EaseFunc
	ctx    Context
}

// NewContainer returns an empty timeline container.
func NewContainer() *Container {
	return &Container{}
}

// Add appends an animation at offsetMs from the container's future
// absolute start, and recomputes the container's duration.
func (c *Container) Add(offsetMs int64, animation Animation) {
	c.items = append(c.items, &Item{OffsetMs: offsetMs, Animation: animation})
	c.recomputeDuration()
}

// Items returns the container's items in insertion order.
func (c *Container) Items() []*Item {
	return c.items
}

func (c *Container) recomputeDuration() {
	var max int64
	for _, it := range c.items {
		end := it.OffsetMs + it.Animation.DurationMs()
		if end > max {
			max = end
		}
	}
	c.durationMillis = max
	c.durationValid = true
}

// DurationMs is the max(offset+duration) over items, recomputed whenever
// Add changes the item set (spec invariant: duration tracks the items).
func (c *Container) DurationMs() int64 {
	if !c.durationValid {
		c.recomputeDuration()
	}
	return c.durationMillis
}

// SetAbsoluteStart records t0 on the container and propagates t0+offset
// to every item.
func (c *Container) SetAbsoluteStart(t0Ms int64) {
	c.absoluteStart = t0Ms
	for _, it := range c.items {
		it.Animation.SetAbsoluteStart(t0Ms + it.OffsetMs)
	}
	c.active = nil
}

func (c *Container) AbsoluteStart() int64 { return c.absoluteStart }
func (c *Container) AbsoluteEnd() int64   { return c.absoluteStart + c.DurationMs() }

// Bind propagates the render context to every item so on_start snapshots
// (FadeTo) can reach the pin mapper.
func (c *Container) Bind(ctx Context) {
	c.ctx = ctx
	for _, it := range c.items {
		it.Animation.Bind(ctx)
	}
}

// SetEasing attaches an easing function applied by every item that
// interpolates a numeric range (not Shifting, per §4.4).
func (c *Container) SetEasing(f EaseFunc) {
	c.ease = f
	for _, it := range c.items {
		it.Animation.SetEasing(f)
	}
}

// SetCurrent ticks every item and returns the ones now active, in
// insertion order. Tick reports the container's own state as an Animation
// (Container.Tick delegates here).
func (c *Container) SetCurrent(nowMs int64) []*Item {
	active := make([]*Item, 0, len(c.items))
	for _, it := range c.items {
		st := it.Animation.Tick(nowMs)
		if st.Active {
			active = append(active, it)
		}
	}
	c.active = active
	return active
}

// ActiveItems returns the items marked active by the most recent
// SetCurrent call.
func (c *Container) ActiveItems() []*Item {
	return c.active
}

// Tick implements Animation for a Container used as a Sequence's inner
// timeline: it advances every item and reports its own aggregate state
// (active throughout [absolute start, absolute end], including gaps in
// which no item is active; ended once now is past the container's
// absolute end).
func (c *Container) Tick(nowMs int64) State {
	c.SetCurrent(nowMs)
	end := c.AbsoluteEnd()
	switch {
	case nowMs < c.absoluteStart:
		return State{Active: false, Ended: false, Progress: 0}
	case nowMs <= end:
		progress := 100
		if dur := c.DurationMs(); dur > 0 {
			pct := 100 * float64(nowMs-c.absoluteStart) / float64(dur)
			if pct > 100 {
				pct = 100
			}
			progress = roundInt(pct)
		}
		return State{Active: true, Ended: false, Progress: progress}
	default:
		return State{Active: false, Ended: true, Progress: 100}
	}
}

// Render merges the active items' render output, last-write-wins in
// insertion order — the §4.5 merging policy, reused here so Sequence
// (which is just a Container) gets identical behavior.
func (c *Container) Render() map[int]int {
	out := map[int]int{}
	for _, it := range c.active {
		for step, v := range it.Animation.Render() {
			out[step] = v
		}
	}
	return out
}

// Reset clears absolute timing and per-item lifecycle flags, preserving
// configuration, so the same NamedAnimation can be armed again later.
func (c *Container) Reset() {
	c.absoluteStart = 0
	c.active = nil
	for _, it := range c.items {
		it.Animation.SetAbsoluteStart(0)
	}
}

// Sequence wraps a Container as a leaf-shaped Animation variant, per
// spec's "Sequence {inner_timeline}". It exists only to make the
// composition explicit at the configuration-parsing edge; behavior is
// entirely delegated to Container.
type Sequence struct {
	*Container
}

func NewSequence(inner *Container) *Sequence {
	return &Sequence{Container: inner}
}
