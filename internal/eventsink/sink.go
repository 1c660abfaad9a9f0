// Package eventsink defines the trigger-event sink contract (spec §6)
// and a default structured-logging implementation. Persistence of
// trigger events is external to the core.
package eventsink

import (
	"github.com/rs/zerolog/log"

	"github.com/SchizoDuckie/stairled-server/internal/sensor"
)

// Sink receives trigger events emitted by the sensor dispatcher.
type Sink interface {
	Emit(sensor.TriggerEvent)
}

// Logger is the default Sink: it logs every trigger event at info
// level, the same way the teacher logs render-loop diagnostics through
// the package-level zerolog logger rather than a dedicated writer.
type Logger struct{}

func NewLogger() Logger { return Logger{} }

func (Logger) Emit(e sensor.TriggerEvent) {
	log.Info().
		Str("sensor", e.SensorName).
		Float64("value", e.Value).
		Str("animation", e.AnimationName).
		Int64("timestamp_ms", e.TimestampMs).
		Msg("trigger event")
}
