package transport

import (
	"context"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/alepar/aquamon/aquamon"
)

// MQTT receives frames published by a networked sensor node, one frame per message.
type MQTT struct {
	Broker         string
	Topic          string
	ClientID       string
	QoS            byte
	ConnectTimeout time.Duration
}

func (t *MQTT) Open(_ context.Context) (aquamon.Channel, error) {
	clientID := t.ClientID
	if clientID == "" {
		clientID = "aquamon-" + uuid.NewString()[:8]
	}

	done := make(chan struct{})
	var once sync.Once
	lost := func() { once.Do(func() { close(done) }) }

	opts := mqtt.NewClientOptions().
		AddBroker(t.Broker).
		SetClientID(clientID).
		SetAutoReconnect(false).
		SetConnectTimeout(t.ConnectTimeout).
		SetConnectionLostHandler(func(_ mqtt.Client, err error) {
			log.Warnf("mqtt connection lost: %s", err)
			lost()
		})
	client := mqtt.NewClient(opts)

	if err := waitToken(client.Connect(), t.ConnectTimeout); err != nil {
		return nil, aquamon.NewTransportError("connect "+t.Broker, err)
	}

	ch := newChunkChannel(done, func() error {
		_ = waitToken(client.Unsubscribe(t.Topic), t.ConnectTimeout)
		client.Disconnect(250)
		lost()
		return nil
	})

	handler := func(_ mqtt.Client, m mqtt.Message) {
		payload := m.Payload()
		if n := len(payload); n == 0 || payload[n-1] != '\n' {
			payload = append(append([]byte(nil), payload...), '\n')
		}
		ch.push(payload)
	}
	if err := waitToken(client.Subscribe(t.Topic, t.QoS, handler), t.ConnectTimeout); err != nil {
		client.Disconnect(250)
		return nil, aquamon.NewTransportError("subscribe "+t.Topic, err)
	}

	log.Infof("subscribed to %s on %s", t.Topic, t.Broker)
	return ch, nil
}

func waitToken(token mqtt.Token, timeout time.Duration) error {
	if timeout <= 0 {
		token.Wait()
		return token.Error()
	}
	if !token.WaitTimeout(timeout) {
		return errors.Errorf("timed out after %s", timeout)
	}
	return token.Error()
}
