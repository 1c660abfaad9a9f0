// Package config is the YAML-backed configuration store (spec §6):
// pin map, per-device PWM frequency, named animations, the sensor
// table, and the engine's tick rate. Grounded on the teacher's
// internal/config.Config / Load / Save pair — same shape, new fields.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/SchizoDuckie/stairled-server/internal/pinmap"
	"github.com/SchizoDuckie/stairled-server/internal/sensor"
)

// MappingEntry is one row of pinmapper.mapping on disk: chip is hex
// text ("0x40") because that's how a human edits the YAML by hand.
type MappingEntry struct {
	Step    int    `yaml:"step"`
	Chip    string `yaml:"chip"`
	Channel int    `yaml:"channel"`
}

// PinMapperCfg is the pinmapper.* key group.
type PinMapperCfg struct {
	Mapping []MappingEntry `yaml:"mapping"`
	PwmHz   int            `yaml:"pwm_hz"`
}

// AnimationItemCfg is one timeline item inside an AnimationCfg: an
// offset and exactly one of the variant fields below.
type AnimationItemCfg struct {
	OffsetMs int64 `yaml:"offset_ms"`

	FadeIn   *FadeInCfg   `yaml:"fade_in,omitempty"`
	FadeOut  *FadeOutCfg  `yaml:"fade_out,omitempty"`
	FadeTo   *FadeToCfg   `yaml:"fade_to,omitempty"`
	Immed    *ImmediateCfg `yaml:"immediate,omitempty"`
	Shifting *ShiftingCfg `yaml:"shifting,omitempty"`
	Sequence *SequenceCfg `yaml:"sequence,omitempty"`
}

type FadeInCfg struct {
	Leds            []int `yaml:"leds"`
	StartBrightness int   `yaml:"start_brightness"`
	EndBrightness   int   `yaml:"end_brightness"`
	DurationMs      int64 `yaml:"duration_ms"`
	Easing          string `yaml:"easing,omitempty"`
}

type FadeOutCfg struct {
	Leds            []int  `yaml:"leds"`
	StartBrightness int    `yaml:"start_brightness"`
	DurationMs      int64  `yaml:"duration_ms"`
	Easing          string `yaml:"easing,omitempty"`
}

type FadeToCfg struct {
	Leds             []int  `yaml:"leds"`
	TargetBrightness int    `yaml:"target_brightness"`
	DurationMs       int64  `yaml:"duration_ms"`
	Easing           string `yaml:"easing,omitempty"`
}

type ImmediateCfg struct {
	Leds       []int `yaml:"leds"`
	Brightness int   `yaml:"brightness"`
	DurationMs int64 `yaml:"duration_ms"`
}

type ShiftingCfg struct {
	Leds    []int `yaml:"leds"`
	Pattern []int `yaml:"pattern"`
	StepMs  int64 `yaml:"step_ms"`
	Bounce  bool  `yaml:"bounce"`
}

// SequenceCfg is a nested timeline, reusing AnimationItemCfg so
// sequences can nest arbitrarily (spec's Sequence{inner_timeline}).
type SequenceCfg struct {
	Items []AnimationItemCfg `yaml:"items"`
}

// AnimationCfg is one animations.<name> registry entry.
type AnimationCfg struct {
	Items []AnimationItemCfg `yaml:"items"`
}

// SensorCfg is one row of the sensors list.
type SensorCfg struct {
	Name                string  `yaml:"name"`
	Enabled             bool    `yaml:"enabled"`
	Threshold           float64 `yaml:"threshold"`
	Operator            string  `yaml:"operator"` // "<=", ">=", "=="
	TargetAnimationName string  `yaml:"target_animation_name"`
}

// EngineCfg is the engine.* key group.
type EngineCfg struct {
	TickHz int `yaml:"tick_hz"`
}

// SensorIngressCfg configures the MQTT sensor-name normalization.
type SensorIngressCfg struct {
	NamePrefix string `yaml:"name_prefix"`
}

// Config is the full on-disk document (spec §6 table).
type Config struct {
	PinMapper  PinMapperCfg            `yaml:"pinmapper"`
	Animations map[string]AnimationCfg `yaml:"animations"`
	Sensors    []SensorCfg             `yaml:"sensors"`
	Engine     EngineCfg               `yaml:"engine"`
	Ingress    SensorIngressCfg        `yaml:"ingress"`
}

// Load reads and parses path. A missing/invalid file is the caller's
// problem (cmd/stairledd logs a warning and proceeds with defaults, the
// way the teacher's main() does).
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, err
	}
	return &c, nil
}

// Save serializes c to path as YAML.
func Save(path string, c *Config) error {
	b, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(path, b, 0644)
}

// PinMapEntries converts PinMapper.Mapping to pinmap.Entry, parsing the
// hex chip address text.
func (c *Config) PinMapEntries() ([]pinmap.Entry, error) {
	entries := make([]pinmap.Entry, 0, len(c.PinMapper.Mapping))
	for _, m := range c.PinMapper.Mapping {
		var addr int
		if _, err := fmt.Sscanf(m.Chip, "0x%x", &addr); err != nil {
			return nil, fmt.Errorf("pinmapper.mapping: invalid chip address %q for step %d: %w", m.Chip, m.Step, err)
		}
		entries = append(entries, pinmap.Entry{Step: m.Step, Chip: byte(addr), Channel: m.Channel})
	}
	return entries, nil
}

// BuildSensors converts the on-disk sensor rows to sensor.Sensor values,
// normalizing the operator text.
func (c *Config) BuildSensors() ([]sensor.Sensor, error) {
	out := make([]sensor.Sensor, 0, len(c.Sensors))
	for _, s := range c.Sensors {
		var op sensor.Operator
		switch s.Operator {
		case "<=":
			op = sensor.OpLessOrEqual
		case ">=":
			op = sensor.OpGreaterOrEqual
		case "==":
			op = sensor.OpEqual
		default:
			return nil, fmt.Errorf("sensors: unknown operator %q for sensor %q", s.Operator, s.Name)
		}
		out = append(out, sensor.Sensor{
			Name:                s.Name,
			Enabled:             s.Enabled,
			Threshold:           s.Threshold,
			Operator:            op,
			TargetAnimationName: s.TargetAnimationName,
		})
	}
	return out, nil
}
