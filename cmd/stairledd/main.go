// Command stairledd is the stairled-server process entrypoint: it wires
// the I²C bus, discovers and initializes PCA9685 chips through the pin
// mapper, loads the animation registry and sensor table from YAML,
// starts the animation engine's tick loop, and bridges MQTT sensor
// ingress into the dispatcher. Grounded on the teacher's
// cmd/ledcube/main.go (flags + config.yaml + zerolog + signal-driven
// shutdown around a render loop), generalized from one render.Engine
// driving an LED cube to the stairled core's engine/pinmap/dispatcher
// trio.
package main

import (
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/host/v3"

	"github.com/SchizoDuckie/stairled-server/internal/config"
	"github.com/SchizoDuckie/stairled-server/internal/engine"
	"github.com/SchizoDuckie/stairled-server/internal/eventsink"
	"github.com/SchizoDuckie/stairled-server/internal/i2cbus"
	"github.com/SchizoDuckie/stairled-server/internal/pca9685"
	"github.com/SchizoDuckie/stairled-server/internal/pinmap"
	"github.com/SchizoDuckie/stairled-server/internal/registry"
	"github.com/SchizoDuckie/stairled-server/internal/sensor"
	"github.com/SchizoDuckie/stairled-server/internal/timeline"
)

func main() {
	var (
		configPath     = flag.String("config", "config.yaml", "path to config.yaml")
		i2cBusName     = flag.String("i2c-bus", "", "I2C bus name (empty: first available)")
		selfTest       = flag.Bool("self-test", true, "ramp every mapped step at startup")
		mqttBroker     = flag.String("mqtt-broker", "tcp://localhost:1883", "MQTT broker URL")
		mqttTopic      = flag.String("mqtt-sensor-topic", "stairled/sensors/+", "MQTT sensor sample topic filter")
		mqttTriggerTop = flag.String("mqtt-trigger-topic", "stairled/triggers", "MQTT topic to publish trigger events to")
	)
	flag.Parse()

	zerolog.TimeFieldFormat = time.RFC3339
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.Kitchen})

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Warn().Err(err).Str("path", *configPath).Msg("config load failed; proceeding with empty config")
		cfg = &config.Config{}
	}

	if _, err := host.Init(); err != nil {
		log.Fatal().Err(err).Msg("periph host init failed")
	}

	bus, err := i2creg.Open(*i2cBusName)
	if err != nil {
		log.Fatal().Err(err).Msg("i2c bus open failed")
	}
	defer bus.Close()

	gw := i2cbus.New(bus)

	pwmHz := cfg.PinMapper.PwmHz
	mapper := pinmap.NewFromGateway(gw, pwmHz, pca9685.DefaultOscillatorHz)

	discovered := pinmap.Discover(gw)
	if len(discovered) == 0 {
		log.Fatal().Msg("no PCA9685 chips discovered on the I2C bus")
	}
	log.Info().Interface("chips", discovered).Msg("discovered PCA9685 chips")

	storedMap, err := cfg.PinMapEntries()
	if err != nil {
		log.Warn().Err(err).Msg("pin map config invalid; falling back to sequential default mapping")
		storedMap = nil
	}
	if err := mapper.Initialize(discovered, storedMap); err != nil {
		log.Fatal().Err(err).Msg("pin mapper initialize failed")
	}

	if *selfTest {
		mapper.Test()
	}

	reg := registry.New()
	report, err := reg.LoadFrom(config.AnimationSource{Cfg: cfg})
	if err != nil {
		log.Fatal().Err(err).Msg("animation registry load failed")
	}
	log.Info().Strs("loaded", report.Loaded).Int("rejected", len(report.Rejected)).Msg("animation registry loaded")

	tickHz := cfg.Engine.TickHz
	eng := engine.New(mapper, engine.MonotonicMillisClock(), tickHz, timeline.Context{Brightness: mapper})

	sink := eventsink.NewLogger()

	var bridge *mqttSensorBridge

	dispatcher := sensor.New(reg, engineStarter{eng}, sinkAdapter{sink, mqttPublisher{&bridge, *mqttTriggerTop}})

	sensors, err := cfg.BuildSensors()
	if err != nil {
		log.Warn().Err(err).Msg("sensor config invalid; no sensors loaded")
	} else {
		dispatcher.LoadSensors(sensors)
	}

	namePrefix := cfg.Ingress.NamePrefix
	if namePrefix == "" {
		namePrefix = "stairled-sensor-"
	}
	bridge, err = newMQTTSensorBridge(mqttBridgeConfig{
		Broker:     *mqttBroker,
		ClientID:   "stairledd",
		Topic:      *mqttTopic,
		NamePrefix: namePrefix,
	}, dispatcher.Dispatch)
	if err != nil {
		log.Warn().Err(err).Msg("mqtt connect failed; sensor ingress disabled")
	} else if err := bridge.Subscribe(); err != nil {
		log.Warn().Err(err).Msg("mqtt subscribe failed; sensor ingress disabled")
	}

	stop := make(chan struct{})
	go eng.Run(stop)

	ch := make(chan os.Signal, 1)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	s := <-ch
	log.Info().Str("signal", s.String()).Msg("shutting down")

	close(stop)
	if bridge != nil {
		bridge.Close()
	}
	mapper.Cleanup()
}

// engineStarter adapts engine.Engine to sensor.Dispatcher's starter
// contract, unwrapping registry.NamedAnimation to its timeline.
type engineStarter struct{ eng *engine.Engine }

func (s engineStarter) Start(na registry.NamedAnimation) error {
	return s.eng.Start(na.Timeline)
}

// mqttPublisher best-effort republishes trigger events to MQTT; bridge
// is filled in after the dispatcher is constructed (both depend on each
// other: the dispatcher needs a sink before the bridge needs a
// dispatch func), so it's read through a pointer indirection.
type mqttPublisher struct {
	bridge **mqttSensorBridge
	topic  string
}

func (p mqttPublisher) Emit(e sensor.TriggerEvent) {
	if *p.bridge == nil {
		return
	}
	(*p.bridge).PublishTriggerEvent(p.topic, e)
}

// sinkAdapter fans a trigger event out to every configured Sink.
type sinkAdapter struct {
	a eventsink.Logger
	b mqttPublisher
}

func (s sinkAdapter) Emit(e sensor.TriggerEvent) {
	s.a.Emit(e)
	s.b.Emit(e)
}
