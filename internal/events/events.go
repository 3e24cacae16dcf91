// Package events publishes order lifecycle changes to downstream consumers.
package events

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/segmentio/kafka-go"

	"posbackend/internal/models"
)

// Type names a lifecycle transition.
type Type string

const (
	OrderMerged   Type = "order.merged"
	OrderCreated  Type = "order.created"
	OrderClosed   Type = "order.closed"
	OrderReopened Type = "order.reopened"
	OrderDeleted  Type = "order.deleted"
)

// Event is one lifecycle change. Order is nil for deletions.
type Event struct {
	Type        Type                `json:"type"`
	OrderID     int64               `json:"orderId"`
	Order       *models.Order       `json:"order,omitempty"`
	PaymentType *models.PaymentType `json:"paymentType,omitempty"`
	At          time.Time           `json:"at"`
}

// Publisher delivers events. Implementations must be safe for concurrent use.
type Publisher interface {
	Publish(ctx context.Context, evs ...Event) error
}

// Nop discards every event.
type Nop struct{}

func (Nop) Publish(context.Context, ...Event) error { return nil }

// messageWriter abstracts kafka.Writer for testability.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher writes events to a Kafka topic keyed by order id, so all
// events for one order land on the same partition.
type KafkaPublisher struct {
	writer messageWriter
}

// NewKafkaPublisher creates a publisher. brokers is a comma-separated host:port list.
func NewKafkaPublisher(brokers, topic string) *KafkaPublisher {
	var addrs []string
	for _, a := range strings.Split(brokers, ",") {
		if a = strings.TrimSpace(a); a != "" {
			addrs = append(addrs, a)
		}
	}
	return &KafkaPublisher{writer: &kafka.Writer{
		Addr:         kafka.TCP(addrs...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		BatchTimeout: 50 * time.Millisecond,
	}}
}

// NewKafkaPublisherWith injects a writer; used by tests.
func NewKafkaPublisherWith(w messageWriter) *KafkaPublisher {
	return &KafkaPublisher{writer: w}
}

func (k *KafkaPublisher) Publish(ctx context.Context, evs ...Event) error {
	if len(evs) == 0 {
		return nil
	}
	msgs := make([]kafka.Message, 0, len(evs))
	for _, ev := range evs {
		b, err := json.Marshal(&ev)
		if err != nil {
			return errors.Wrap(err, "marshal event")
		}
		msgs = append(msgs, kafka.Message{
			Key:   []byte(strconv.FormatInt(ev.OrderID, 10)),
			Value: b,
			Headers: []kafka.Header{
				{Key: "type", Value: []byte(ev.Type)},
			},
		})
	}
	if err := k.writer.WriteMessages(ctx, msgs...); err != nil {
		return errors.Wrap(err, "kafka write")
	}
	return nil
}

func (k *KafkaPublisher) Close() error { return k.writer.Close() }

var (
	_ Publisher = Nop{}
	_ Publisher = (*KafkaPublisher)(nil)
)
