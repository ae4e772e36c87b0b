package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/IBM/sarama"

	"github.com/illegalcall/thumbdesk/internal/metrics"
	"github.com/illegalcall/thumbdesk/internal/models"
)

// KafkaPublisher hands events to the worker through a Kafka topic.
type KafkaPublisher struct {
	producer sarama.SyncProducer
	topic    string
}

func NewKafkaPublisher(producer sarama.SyncProducer, topic string) *KafkaPublisher {
	return &KafkaPublisher{producer: producer, topic: topic}
}

// Publish sends the event keyed by request id so events for one request
// stay ordered on a partition.
func (p *KafkaPublisher) Publish(ctx context.Context, ev models.RequestEvent) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	partition, offset, err := p.producer.SendMessage(&sarama.ProducerMessage{
		Topic: p.topic,
		Key:   sarama.StringEncoder(ev.RequestID),
		Value: sarama.ByteEncoder(payload),
	})
	if err != nil {
		// The worker never sees this event, so count the lost delivery here.
		metrics.RecordNotification(ev.Type, false)
		return fmt.Errorf("failed to queue event: %w", err)
	}
	slog.Info("Event queued", "type", ev.Type, "request_id", ev.RequestID, "partition", partition, "offset", offset)
	return nil
}

// InlineRelay delivers events synchronously when no broker is configured.
type InlineRelay struct {
	dispatcher *Dispatcher
}

func NewInlineRelay(d *Dispatcher) *InlineRelay {
	return &InlineRelay{dispatcher: d}
}

func (r *InlineRelay) Publish(ctx context.Context, ev models.RequestEvent) error {
	return r.dispatcher.Handle(ctx, ev)
}
