package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"farm-console/internal/logging"
	"farm-console/internal/models"
)

type Config struct {
	Broker string
	Topic  string
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Mirror republishes every inbound envelope to a Kafka topic, keyed by
// event type so one type stays ordered within its partition.
type Mirror struct {
	writer messageWriter
	logger *logging.Logger
}

func NewMirror(cfg Config, logger *logging.Logger) (*Mirror, error) {
	if cfg.Broker == "" || cfg.Topic == "" {
		return nil, fmt.Errorf("kafka mirror needs a broker and a topic")
	}
	w := &kafka.Writer{
		Addr:                   kafka.TCP(cfg.Broker),
		Topic:                  cfg.Topic,
		Balancer:               &kafka.Hash{},
		Async:                  true,
		BatchTimeout:           50 * time.Millisecond,
		AllowAutoTopicCreation: true,
		Completion: func(messages []kafka.Message, err error) {
			if err != nil {
				logger.Errorf("Kafka mirror dropped %d messages: %v", len(messages), err)
			}
		},
	}
	logger.Infof("Kafka mirror publishing to %s on %s", cfg.Topic, cfg.Broker)
	return newMirror(w, logger), nil
}

func newMirror(w messageWriter, logger *logging.Logger) *Mirror {
	return &Mirror{writer: w, logger: logger}
}

// Observe queues env for publishing. It never blocks on the broker.
func (m *Mirror) Observe(env models.Envelope) {
	value, err := json.Marshal(env)
	if err != nil {
		m.logger.WithField("event_type", env.Type).Errorf("Marshal envelope failed: %v", err)
		return
	}
	msg := kafka.Message{
		Key:   []byte(env.Type),
		Value: value,
		Time:  time.Now(),
	}
	if err := m.writer.WriteMessages(context.Background(), msg); err != nil {
		m.logger.WithField("event_type", env.Type).Errorf("Publish envelope failed: %v", err)
	}
}

// Close flushes pending messages.
func (m *Mirror) Close() error {
	return m.writer.Close()
}
