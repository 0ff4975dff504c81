package telemetry

import (
	"context"
	"encoding/json"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/pkg/errors"
)

// MQTT publishes JSON messages under Topic/temperature and Topic/exposure
type MQTT struct {
	client mqtt.Client
	Topic  string
	QoS    byte
}

// DialMQTT connects to broker, eg tcp://localhost:1883
func DialMQTT(broker, clientID, topic string) (*MQTT, error) {
	opts := mqtt.NewClientOptions().AddBroker(broker).SetClientID(clientID)
	opts.SetKeepAlive(30 * time.Second)
	opts.SetPingTimeout(5 * time.Second)
	opts.SetAutoReconnect(true)
	c := mqtt.NewClient(opts)
	if token := c.Connect(); token.Wait() && token.Error() != nil {
		return nil, errors.Wrapf(token.Error(), "connect to %s", broker)
	}
	return NewMQTT(c, topic), nil
}

// NewMQTT wraps a connected client
func NewMQTT(c mqtt.Client, topic string) *MQTT {
	return &MQTT{client: c, Topic: topic, QoS: 1}
}

func (m *MQTT) publish(ctx context.Context, sub string, v interface{}) error {
	msg, err := json.Marshal(v)
	if err != nil {
		return err
	}
	token := m.client.Publish(m.Topic+"/"+sub, m.QoS, false, msg)
	select {
	case <-token.Done():
		return token.Error()
	case <-ctx.Done():
		return ctx.Err()
	}
}

// PublishTemperature sends s to Topic/temperature
func (m *MQTT) PublishTemperature(ctx context.Context, s TemperatureSample) error {
	return m.publish(ctx, "temperature", s)
}

// PublishExposure sends e to Topic/exposure
func (m *MQTT) PublishExposure(ctx context.Context, e ExposureEvent) error {
	return m.publish(ctx, "exposure", e)
}

// Close disconnects, waiting up to 250ms for work in flight
func (m *MQTT) Close() {
	m.client.Disconnect(250)
}
