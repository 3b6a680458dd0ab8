package sink

import (
	"context"
	"encoding/json"

	"github.com/pkg/errors"
	"github.com/segmentio/kafka-go"

	"github.com/alepar/aquamon/aquamon"
)

type kafkaMessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

// Kafka publishes reports as JSON keyed by sensor so one partition keeps them ordered.
type Kafka struct {
	writer kafkaMessageWriter
	closer func() error
	key    []byte
}

func NewKafka(brokers []string, topic, key string) *Kafka {
	w := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
	}
	return &Kafka{writer: w, closer: w.Close, key: []byte(key)}
}

func (s *Kafka) Emit(ctx context.Context, r aquamon.Report) error {
	value, err := json.Marshal(r)
	if err != nil {
		return errors.Wrap(err, "failed to marshal report")
	}
	msg := kafka.Message{
		Key:   s.key,
		Value: value,
		Time:  r.Generated,
		Headers: []kafka.Header{
			{Key: "report-id", Value: []byte(r.ID)},
		},
	}
	return errors.Wrap(s.writer.WriteMessages(ctx, msg), "failed to write report")
}

func (s *Kafka) Close() error {
	if s.closer == nil {
		return nil
	}
	return s.closer()
}
