package kafkapub

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"cryptoDecisionEngine/internal/domain"
	"cryptoDecisionEngine/internal/ports"

	"github.com/segmentio/kafka-go"
)

// Writer is the subset of *kafka.Writer the publisher uses.
type Writer interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Config holds Kafka producer settings.
type Config struct {
	Brokers      []string
	Topic        string
	WriteTimeout time.Duration
	MaxAttempts  int
}

// Publisher sends engine events to a Kafka topic as JSON, keyed by bot.
type Publisher struct {
	writer Writer
	topic  string
	logger ports.Logger
}

var _ ports.EventPublisher = (*Publisher)(nil)

// NewWriter builds a synchronous hash-balanced writer so every event of a bot
// lands on the same partition.
func NewWriter(cfg Config) (*kafka.Writer, error) {
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("%w: kafka brokers are required", ports.ErrConfigurationError)
	}
	timeout := cfg.WriteTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	attempts := cfg.MaxAttempts
	if attempts <= 0 {
		attempts = 3
	}
	return &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		MaxAttempts:  attempts,
		WriteTimeout: timeout,
		BatchTimeout: 50 * time.Millisecond,
	}, nil
}

// New creates a publisher writing to topic.
func New(writer Writer, topic string, logger ports.Logger) (*Publisher, error) {
	if writer == nil || logger == nil {
		return nil, fmt.Errorf("%w: kafka publisher needs a writer and a logger", ports.ErrConfigurationError)
	}
	if topic == "" {
		topic = "decision-engine.events"
	}
	return &Publisher{writer: writer, topic: topic, logger: logger}, nil
}

// Publish writes one event.
func (p *Publisher) Publish(ctx context.Context, event domain.Event) error {
	op := "Publish"
	value, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("%s failed: %w: %w", op, ports.ErrPublishFailed, err)
	}
	key := event.BotID
	if key == "" {
		key = string(event.Type)
	}

	msg := kafka.Message{
		Topic: p.topic,
		Key:   []byte(key),
		Value: value,
		Time:  event.Time,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(event.Type)},
		},
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		p.logger.Error(ctx, err, op+": kafka write failed", map[string]interface{}{"eventType": event.Type, "eventID": event.ID})
		return fmt.Errorf("%s failed: %w: %w", op, ports.ErrPublishFailed, err)
	}
	p.logger.Debug(ctx, op+": event published", map[string]interface{}{"eventType": event.Type, "eventID": event.ID, "topic": p.topic})
	return nil
}

// Close flushes and closes the writer.
func (p *Publisher) Close() error {
	return p.writer.Close()
}
