package notification

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/YoshitsuguKoike/loanstage/internal/application/port/output"
)

// MessageWriter is the subset of *kafka.Writer the notifier uses
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaConfig configures the transition event producer
type KafkaConfig struct {
	Brokers      []string
	Topic        string
	MaxAttempts  int
	RetryBackoff time.Duration
}

// NewKafkaWriter builds a producer that waits for all replicas
func NewKafkaWriter(cfg KafkaConfig) *kafka.Writer {
	backoff := cfg.RetryBackoff
	if backoff <= 0 {
		backoff = 100 * time.Millisecond
	}
	return &kafka.Writer{
		Addr:                   kafka.TCP(cfg.Brokers...),
		Topic:                  cfg.Topic,
		Balancer:               &kafka.Hash{},
		AllowAutoTopicCreation: true,
		RequiredAcks:           kafka.RequireAll,
		MaxAttempts:            cfg.MaxAttempts,
		WriteBackoffMin:        backoff,
		WriteBackoffMax:        10 * backoff,
	}
}

// KafkaNotifier publishes transition events keyed by application id,
// so one application's events stay ordered within a partition
type KafkaNotifier struct {
	writer MessageWriter
	logger *zap.Logger
}

// NewKafkaNotifier creates a Kafka-backed notifier
func NewKafkaNotifier(writer MessageWriter, logger *zap.Logger) *KafkaNotifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &KafkaNotifier{writer: writer, logger: logger}
}

// Notify implements output.Notifier
func (n *KafkaNotifier) Notify(ctx context.Context, event output.TransitionEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal transition event: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(event.ApplicationID),
		Value: data,
		Time:  event.Timestamp,
		Headers: []kafka.Header{
			{Key: "event", Value: []byte("application.transitioned")},
			{Key: "to", Value: []byte(event.To)},
		},
	}
	if err := n.writer.WriteMessages(ctx, msg); err != nil {
		n.logger.Error("publish transition event failed",
			zap.String("application_id", event.ApplicationID), zap.Error(err))
		return fmt.Errorf("publish transition event: %w", err)
	}

	n.logger.Debug("transition event published", zap.String("application_id", event.ApplicationID))
	return nil
}

// Close closes the underlying writer
func (n *KafkaNotifier) Close() error {
	return n.writer.Close()
}
