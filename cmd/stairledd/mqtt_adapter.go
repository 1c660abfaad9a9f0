package main

import (
	"encoding/json"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog/log"

	"github.com/SchizoDuckie/stairled-server/internal/sensor"
)

// mqttSensorBridge subscribes to the sensor topic tree and feeds
// decoded samples into the dispatcher, stripping the configured sensor
// name prefix (spec §6 sensor ingress). Grounded on the retrieval
// pack's paho.mqtt.golang client (ji-just-ji-ESP32/backend/internal/mqtt),
// narrowed from its multi-topic callback table to the one typed sample
// stream the dispatcher consumes.
type mqttSensorBridge struct {
	client     mqtt.Client
	namePrefix string
	topic      string
	dispatch   func(sensor.Sample)
}

type mqttBridgeConfig struct {
	Broker     string
	ClientID   string
	Username   string
	Password   string
	Topic      string // e.g. "stairled/sensors/+"
	NamePrefix string
}

// sensorPayload is the wire shape of one inbound MQTT sensor message
// (spec §6: "{sensor_name, value, timestamp_ms}").
type sensorPayload struct {
	SensorName  string  `json:"sensor_name"`
	Value       float64 `json:"value"`
	TimestampMs int64   `json:"timestamp_ms"`
}

func newMQTTSensorBridge(cfg mqttBridgeConfig, dispatch func(sensor.Sample)) (*mqttSensorBridge, error) {
	bridge := &mqttSensorBridge{namePrefix: cfg.NamePrefix, topic: cfg.Topic, dispatch: dispatch}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(cfg.Broker)
	opts.SetClientID(cfg.ClientID)
	opts.SetUsername(cfg.Username)
	opts.SetPassword(cfg.Password)
	opts.SetAutoReconnect(true)
	opts.SetKeepAlive(60 * time.Second)
	opts.SetPingTimeout(10 * time.Second)
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		log.Warn().Err(err).Msg("mqtt: connection lost")
	})

	bridge.client = mqtt.NewClient(opts)
	if token := bridge.client.Connect(); token.Wait() && token.Error() != nil {
		return nil, token.Error()
	}
	return bridge, nil
}

func (b *mqttSensorBridge) Subscribe() error {
	token := b.client.Subscribe(b.topic, 1, b.onMessage)
	if token.Wait() && token.Error() != nil {
		return token.Error()
	}
	log.Info().Str("topic", b.topic).Msg("mqtt: subscribed to sensor topic")
	return nil
}

func (b *mqttSensorBridge) onMessage(_ mqtt.Client, msg mqtt.Message) {
	var p sensorPayload
	if err := json.Unmarshal(msg.Payload(), &p); err != nil {
		log.Warn().Err(err).Str("topic", msg.Topic()).Msg("mqtt: malformed sensor payload")
		return
	}
	name := strings.TrimPrefix(p.SensorName, b.namePrefix)
	b.dispatch(sensor.Sample{SensorName: name, Value: p.Value, TimestampMs: p.TimestampMs})
}

// PublishTriggerEvent publishes a trigger event back to the broker as a
// best-effort side channel for external subscribers (e.g. the UI); the
// core's own sink (eventsink.Logger) is the authoritative log.
func (b *mqttSensorBridge) PublishTriggerEvent(topic string, e sensor.TriggerEvent) {
	payload, err := json.Marshal(e)
	if err != nil {
		log.Warn().Err(err).Msg("mqtt: failed to marshal trigger event")
		return
	}
	token := b.client.Publish(topic, 1, false, payload)
	token.Wait()
	if err := token.Error(); err != nil {
		log.Warn().Err(err).Str("topic", topic).Msg("mqtt: failed to publish trigger event")
	}
}

func (b *mqttSensorBridge) Close() {
	b.client.Disconnect(250)
}
