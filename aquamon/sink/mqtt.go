package sink

import (
	"context"
	"encoding/json"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/pkg/errors"

	"github.com/alepar/aquamon/aquamon"
)

// mqttPublisher is the subset of mqtt.Client the sink uses.
type mqttPublisher interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
}

// MQTT publishes reports as JSON, retained so new dashboards see the latest one.
type MQTT struct {
	client  mqttPublisher
	topic   string
	qos     byte
	timeout time.Duration
}

func NewMQTT(broker, clientID, topic string, qos byte, timeout time.Duration) (*MQTT, error) {
	opts := mqtt.NewClientOptions().
		AddBroker(broker).
		SetClientID(clientID).
		SetAutoReconnect(true).
		SetConnectTimeout(timeout)
	client := mqtt.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(timeout) {
		return nil, errors.Errorf("connect to %s timed out", broker)
	}
	if err := token.Error(); err != nil {
		return nil, errors.Wrapf(err, "failed to connect to %s", broker)
	}
	return newMQTT(client, topic, qos, timeout), nil
}

func newMQTT(client mqttPublisher, topic string, qos byte, timeout time.Duration) *MQTT {
	return &MQTT{client: client, topic: topic, qos: qos, timeout: timeout}
}

func (s *MQTT) Emit(_ context.Context, r aquamon.Report) error {
	payload, err := json.Marshal(r)
	if err != nil {
		return errors.Wrap(err, "failed to marshal report")
	}

	token := s.client.Publish(s.topic, s.qos, true, payload)
	if !token.WaitTimeout(s.timeout) {
		return errors.Errorf("publish to %s timed out", s.topic)
	}
	return errors.Wrapf(token.Error(), "failed to publish to %s", s.topic)
}

// Close disconnects the client if the sink owns one.
func (s *MQTT) Close() {
	if c, ok := s.client.(mqtt.Client); ok {
		c.Disconnect(250)
	}
}
