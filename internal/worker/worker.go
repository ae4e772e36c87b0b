package worker

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/IBM/sarama"
)

// MessageHandler processes one raw event payload.
type MessageHandler interface {
	HandleMessage(ctx context.Context, payload []byte) error
}

// Worker consumes request events from Kafka and hands them to the
// notification dispatcher. Failed deliveries are logged and the offset is
// still committed: notifications are never retried.
type Worker struct {
	topic    string
	consumer sarama.ConsumerGroup
	handler  MessageHandler
	logger   *slog.Logger

	mu    sync.Mutex
	ready chan struct{}
}

func NewWorker(topic string, consumer sarama.ConsumerGroup, handler MessageHandler, logger *slog.Logger) *Worker {
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("Initializing new Worker", "topic", topic)
	return &Worker{
		topic:    topic,
		consumer: consumer,
		handler:  handler,
		logger:   logger,
		ready:    make(chan struct{}),
	}
}

// Ready is closed once the first consumer group session is set up.
func (w *Worker) Ready() <-chan struct{} {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.ready
}

// Start consumes until ctx is cancelled.
func (w *Worker) Start(ctx context.Context) error {
	topics := []string{w.topic}
	w.logger.Info("Starting worker", "topics", topics)

	go func() {
		for err := range w.consumer.Errors() {
			w.logger.Error("Kafka consumer error received", "error", err)
		}
	}()

	for {
		// Consume returns on every rebalance; keep rejoining until shutdown.
		if err := w.consumer.Consume(ctx, topics, w); err != nil {
			if errors.Is(err, sarama.ErrClosedConsumerGroup) {
				w.logger.Info("Consumer group closed; stopping worker")
				return nil
			}
			w.logger.Error("Error from consumer.Consume", "error", err)
		}
		if ctx.Err() != nil {
			w.logger.Info("Context cancelled; shutting down worker")
			return nil
		}
	}
}

// Setup is run at the beginning of a new session, before ConsumeClaim.
func (w *Worker) Setup(sarama.ConsumerGroupSession) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	select {
	case <-w.ready:
	default:
		close(w.ready)
	}
	w.logger.Info("Consumer group session setup complete")
	return nil
}

// Cleanup is run at the end of a session, once all ConsumeClaim goroutines have exited.
func (w *Worker) Cleanup(sarama.ConsumerGroupSession) error {
	w.logger.Info("Consumer group session cleanup complete")
	return nil
}

// ConsumeClaim must start a consumer loop of ConsumerGroupClaim's Messages().
func (w *Worker) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for {
		select {
		case message, ok := <-claim.Messages():
			if !ok {
				return nil
			}
			w.process(session.Context(), message)
			session.MarkMessage(message, "")
		case <-session.Context().Done():
			return nil
		}
	}
}

func (w *Worker) process(ctx context.Context, msg *sarama.ConsumerMessage) {
	w.logger.Debug("Message received from Kafka", "offset", msg.Offset, "partition", msg.Partition, "key", string(msg.Key))
	if err := w.handler.HandleMessage(ctx, msg.Value); err != nil {
		w.logger.Error("Failed to process event", "offset", msg.Offset, "partition", msg.Partition, "error", err)
		return
	}
	w.logger.Info("Event processed", "offset", msg.Offset, "partition", msg.Partition)
}
