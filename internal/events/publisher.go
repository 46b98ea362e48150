package events

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// Topics published by the storefront
const (
	TopicOrderCreated     = "order.created"
	TopicOrderCanceled    = "order.canceled"
	TopicPaymentSucceeded = "payment.succeeded"
	TopicUserRegistered   = "user.registered"
)

// Event is the JSON envelope written for every domain event
type Event struct {
	ID         uuid.UUID `json:"id"`
	Type       string    `json:"type"`
	OccurredAt time.Time `json:"occurred_at"`
	Data       any       `json:"data"`
}

// Publisher delivers domain events after the state change has been committed
type Publisher interface {
	Publish(ctx context.Context, topic, key string, data any) error
	Close() error
}

// KafkaPublisher writes events to Kafka. Writes are asynchronous; delivery
// failures are logged from the completion callback.
type KafkaPublisher struct {
	writer *kafka.Writer
	prefix string
	logger *zap.Logger
}

// NewKafkaPublisher creates a publisher for the given brokers. Topic names are
// prefixed with prefix when it is not empty.
func NewKafkaPublisher(brokers []string, prefix string, logger *zap.Logger) *KafkaPublisher {
	p := &KafkaPublisher{prefix: prefix, logger: logger}
	p.writer = &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireOne,
		AllowAutoTopicCreation: true,
		Async:                  true,
		BatchTimeout:           50 * time.Millisecond,
		Completion:             p.completion,
	}
	return p
}

// Topic returns the fully qualified topic name
func (p *KafkaPublisher) Topic(topic string) string {
	if p.prefix == "" {
		return topic
	}
	return p.prefix + "." + topic
}

func (p *KafkaPublisher) Publish(ctx context.Context, topic, key string, data any) error {
	msg, err := NewMessage(p.Topic(topic), key, topic, data)
	if err != nil {
		return err
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("kafka: write failed: %w", err)
	}
	return nil
}

func (p *KafkaPublisher) completion(messages []kafka.Message, err error) {
	if err == nil {
		return
	}
	topics := make([]string, 0, len(messages))
	for _, m := range messages {
		topics = append(topics, m.Topic)
	}
	p.logger.Error("Failed to deliver events",
		zap.Error(err),
		zap.String("topics", strings.Join(topics, ",")),
		zap.Int("count", len(messages)),
	)
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

// NewMessage wraps data in an Event envelope and encodes it as a Kafka message
func NewMessage(topic, key, eventType string, data any) (kafka.Message, error) {
	event := Event{
		ID:         uuid.New(),
		Type:       eventType,
		OccurredAt: time.Now().UTC(),
		Data:       data,
	}

	value, err := json.Marshal(event)
	if err != nil {
		return kafka.Message{}, fmt.Errorf("kafka: json.Marshal failed: %w", err)
	}

	return kafka.Message{
		Topic: topic,
		Key:   []byte(key),
		Value: value,
		Time:  event.OccurredAt,
	}, nil
}

// LogPublisher only logs events. Used when no brokers are configured.
type LogPublisher struct {
	logger *zap.Logger
}

func NewLogPublisher(logger *zap.Logger) *LogPublisher {
	return &LogPublisher{logger: logger}
}

func (p *LogPublisher) Publish(_ context.Context, topic, key string, data any) error {
	p.logger.Info("Domain event",
		zap.String("topic", topic),
		zap.String("key", key),
		zap.Any("data", data),
	)
	return nil
}

func (p *LogPublisher) Close() error { return nil }
