package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/dionisbeci/iute-integration/internal/logger"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// StatusChanged is emitted after an order status was written to the store.
type StatusChanged struct {
	OrderID    string    `json:"orderId"`
	Status     string    `json:"status"`
	Reason     *string   `json:"reason,omitempty"`
	Source     string    `json:"source"`
	OccurredAt time.Time `json:"occurredAt"`
}

type Publisher interface {
	PublishStatusChanged(ctx context.Context, evt StatusChanged) error
	Close() error
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher writes asynchronously; delivery failures surface in the
// writer's completion callback, not to the caller.
type KafkaPublisher struct {
	writer messageWriter
}

func NewKafkaPublisher(brokers []string, topic string) *KafkaPublisher {
	w := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
		BatchTimeout: 50 * time.Millisecond,
		WriteTimeout: 10 * time.Second,
		Async:        true,
		Completion: func(msgs []kafka.Message, err error) {
			if err != nil {
				logger.L().Error("failed to deliver order status events",
					zap.Int("count", len(msgs)),
					zap.Error(err),
				)
			}
		},
	}
	return &KafkaPublisher{writer: w}
}

func (p *KafkaPublisher) PublishStatusChanged(ctx context.Context, evt StatusChanged) error {
	if evt.OccurredAt.IsZero() {
		evt.OccurredAt = time.Now().UTC()
	}

	data, err := json.Marshal(evt)
	if err != nil {
		return err
	}

	// keyed by order id so one order's events stay on one partition
	return p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(evt.OrderID),
		Value: data,
		Time:  evt.OccurredAt,
	})
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

type nopPublisher struct{}

func (nopPublisher) PublishStatusChanged(context.Context, StatusChanged) error { return nil }
func (nopPublisher) Close() error                                             { return nil }

// Nop is used when no brokers are configured.
func Nop() Publisher {
	return nopPublisher{}
}

// New picks the Kafka publisher when brokers are configured.
func New(brokers []string, topic string) Publisher {
	if len(brokers) == 0 {
		return Nop()
	}
	return NewKafkaPublisher(brokers, topic)
}
