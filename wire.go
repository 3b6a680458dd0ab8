package main

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/alepar/aquamon/aquamon"
	"github.com/alepar/aquamon/aquamon/config"
	"github.com/alepar/aquamon/aquamon/inference"
	"github.com/alepar/aquamon/aquamon/monitor"
	"github.com/alepar/aquamon/aquamon/report"
	"github.com/alepar/aquamon/aquamon/sink"
	"github.com/alepar/aquamon/aquamon/transport"
)

const reportPublishTimeout = 10 * time.Second

func buildTransport(cfg config.Sensor) (aquamon.Transport, error) {
	switch cfg.Transport {
	case "serial":
		return &transport.Serial{Port: cfg.Address, BaudRate: cfg.BaudRate}, nil
	case "tcp":
		return &transport.TCP{Addr: cfg.Address, DialTimeout: cfg.DialTimeout.D()}, nil
	case "ble":
		return &transport.BLE{Addr: cfg.Address, ScanDuration: cfg.ScanDuration.D(), Retries: cfg.Retries}, nil
	case "mqtt":
		return &transport.MQTT{Broker: cfg.Address, Topic: cfg.Topic, QoS: 1, ConnectTimeout: cfg.ScanDuration.D()}, nil
	default:
		return nil, errors.Errorf("unknown sensor transport %q", cfg.Transport)
	}
}

// buildConverter also reports the input width when the model knows it, 0 otherwise.
func buildConverter(cfg config.Model) (monitor.Converter, int, error) {
	switch cfg.Kind {
	case "tfserving":
		c := inference.NewTFServing(cfg.URL, cfg.Name, cfg.Version, cfg.Timeout.D())
		return &inference.Converter{Model: inference.RegressionClient{TFServing: c}}, 0, nil
	case "affine":
		a, err := inference.LoadAffine(cfg.Path)
		if err != nil {
			return nil, 0, err
		}
		return &inference.Converter{Model: a}, a.Inputs(), nil
	default:
		return nil, 0, errors.Errorf("unknown regression model kind %q", cfg.Kind)
	}
}

func buildPredictor(cfg config.Model, window int) (monitor.Predictor, error) {
	switch cfg.Kind {
	case "tfserving":
		c := inference.NewTFServing(cfg.URL, cfg.Name, cfg.Version, cfg.Timeout.D())
		return inference.NewPredictor(inference.SequenceClient{TFServing: c}, window), nil
	case "linear":
		return inference.NewPredictor(inference.LinearTrend{}, window), nil
	default:
		return nil, errors.Errorf("unknown sequence model kind %q", cfg.Kind)
	}
}

func buildGenerator(ctx context.Context, cfg config.Generation) (aquamon.TextGenerator, error) {
	switch cfg.Provider {
	case "openai":
		return report.NewOpenAI(cfg.APIKey, cfg.BaseURL, cfg.Model, cfg.Timeout.D()), nil
	case "gemini":
		return report.NewGemini(ctx, cfg.APIKey, cfg.Model, cfg.BaseURL)
	default:
		return nil, errors.Errorf("unknown generation provider %q", cfg.Provider)
	}
}

// buildSink always includes the log sink. The returned func closes the network sinks.
func buildSink(cfg config.Sinks) (aquamon.Sink, func(), error) {
	sinks := sink.Multi{&sink.Log{}}
	var closers []func()
	closeAll := func() {
		for _, c := range closers {
			c()
		}
	}

	if m := cfg.MQTT; m != nil {
		clientID := m.ClientID
		if clientID == "" {
			clientID = "aquamon-report-" + uuid.NewString()[:8]
		}
		s, err := sink.NewMQTT(m.Broker, clientID, m.Topic, m.QoS, reportPublishTimeout)
		if err != nil {
			return nil, closeAll, err
		}
		sinks = append(sinks, s)
		closers = append(closers, s.Close)
	}
	if k := cfg.Kafka; k != nil {
		s := sink.NewKafka(k.Brokers, k.Topic, k.Key)
		sinks = append(sinks, s)
		closers = append(closers, func() { _ = s.Close() })
	}
	return sinks, closeAll, nil
}
