package config

import (
	"fmt"

	"github.com/SchizoDuckie/stairled-server/internal/registry"
	"github.com/SchizoDuckie/stairled-server/internal/timeline"
)

// AnimationSource adapts Config's animations.<name> entries to
// registry.Source, building a timeline.Container per entry and
// collecting per-entry validation failures instead of aborting the
// whole load (spec §4.8 load_from).
type AnimationSource struct {
	Cfg *Config
}

func (s AnimationSource) LoadAnimations() ([]registry.NamedAnimation, error) {
	var loaded []registry.NamedAnimation
	var rejected []registry.RejectedEntry

	for name, animCfg := range s.Cfg.Animations {
		c, err := buildContainer(animCfg.Items)
		if err != nil {
			rejected = append(rejected, registry.RejectedEntry{Name: name, Err: err})
			continue
		}
		loaded = append(loaded, registry.NamedAnimation{Name: name, Timeline: c})
	}

	if len(rejected) > 0 {
		return loaded, &registry.LoadErrors{Errors: rejected}
	}
	return loaded, nil
}

func buildContainer(items []AnimationItemCfg) (*timeline.Container, error) {
	c := timeline.NewContainer()
	for i, item := range items {
		anim, err := buildAnimation(item)
		if err != nil {
			return nil, fmt.Errorf("item %d: %w", i, err)
		}
		c.Add(item.OffsetMs, anim)
	}
	return c, nil
}

func buildAnimation(item AnimationItemCfg) (timeline.Animation, error) {
	switch {
	case item.FadeIn != nil:
		f := item.FadeIn
		anim, err := timeline.NewFadeIn(f.Leds, f.StartBrightness, f.EndBrightness, f.DurationMs)
		if err != nil {
			return nil, err
		}
		applyEasing(anim, f.Easing)
		return anim, nil

	case item.FadeOut != nil:
		f := item.FadeOut
		anim, err := timeline.NewFadeOut(f.Leds, f.StartBrightness, f.DurationMs)
		if err != nil {
			return nil, err
		}
		applyEasing(anim, f.Easing)
		return anim, nil

	case item.FadeTo != nil:
		f := item.FadeTo
		anim, err := timeline.NewFadeTo(f.Leds, f.TargetBrightness, f.DurationMs)
		if err != nil {
			return nil, err
		}
		applyEasing(anim, f.Easing)
		return anim, nil

	case item.Immed != nil:
		f := item.Immed
		return timeline.NewImmediate(f.Leds, f.Brightness, f.DurationMs)

	case item.Shifting != nil:
		f := item.Shifting
		return timeline.NewShifting(f.Leds, f.Pattern, f.StepMs, f.Bounce)

	case item.Sequence != nil:
		inner, err := buildContainer(item.Sequence.Items)
		if err != nil {
			return nil, err
		}
		return timeline.NewSequence(inner), nil

	default:
		return nil, fmt.Errorf("animation item has no recognized variant")
	}
}

func applyEasing(anim timeline.Animation, name string) {
	if name == "" {
		return
	}
	if f, ok := timeline.Named(name); ok {
		anim.SetEasing(f)
	}
}
