package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/illegalcall/thumbdesk/internal/config"
	"github.com/illegalcall/thumbdesk/internal/notify"
	"github.com/illegalcall/thumbdesk/internal/worker"
	"github.com/illegalcall/thumbdesk/pkg/kafka"
	"github.com/illegalcall/thumbdesk/pkg/logging"
)

func main() {
	// Load configuration
	cfg := config.LoadConfig()
	logger := logging.InitLogger(cfg.Log.Level, "worker")

	if !cfg.Kafka.Enabled() {
		logger.Error("KAFKA_BROKER is required for the notification worker")
		os.Exit(1)
	}

	// Initialize Kafka consumer
	consumer, err := kafka.NewConsumer(cfg.Kafka.Broker, cfg.Kafka.Group)
	if err != nil {
		logger.Error("Failed to create Kafka consumer", "error", err)
		os.Exit(1)
	}
	defer consumer.Close()
	logger.Info("✅ Connected to Kafka", "topic", cfg.Kafka.Topic, "group", cfg.Kafka.Group)

	dispatcher := notify.NewDispatcherFromConfig(cfg.Notify, logger)
	w := worker.NewWorker(cfg.Kafka.Topic, consumer, dispatcher, logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := w.Start(ctx); err != nil {
		logger.Error("Worker error", "error", err)
		os.Exit(1)
	}
	logger.Info("🛑 Worker stopped")
}
