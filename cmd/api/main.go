package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/illegalcall/thumbdesk/internal/api"
	"github.com/illegalcall/thumbdesk/internal/config"
	"github.com/illegalcall/thumbdesk/internal/notify"
	"github.com/illegalcall/thumbdesk/internal/pkg/supabase"
	"github.com/illegalcall/thumbdesk/internal/service"
	"github.com/illegalcall/thumbdesk/internal/storage"
	"github.com/illegalcall/thumbdesk/internal/store"
	"github.com/illegalcall/thumbdesk/pkg/database"
	"github.com/illegalcall/thumbdesk/pkg/kafka"
	"github.com/illegalcall/thumbdesk/pkg/logging"
)

func main() {
	// Load configuration
	cfg := config.LoadConfig()
	logger := logging.InitLogger(cfg.Log.Level, "api")
	if err := cfg.Validate(); err != nil {
		logger.Error("Invalid configuration", "error", err)
		os.Exit(1)
	}

	// Initialize database clients
	db, err := database.NewClients(cfg.Database.URL, database.RedisOptions{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err != nil {
		logger.Error("Failed to initialize database clients", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	logger.Info("✅ Connected to databases")

	if cfg.Database.AutoMigrate {
		if err := db.Migrate(); err != nil {
			logger.Error("Failed to migrate database", "error", err)
			os.Exit(1)
		}
	}

	blobs, staticDir, err := newBlobStore(cfg)
	if err != nil {
		logger.Error("Failed to initialize storage", "backend", cfg.Storage.Backend, "error", err)
		os.Exit(1)
	}
	logger.Info("✅ Storage ready", "backend", cfg.Storage.Backend)

	// Events go to Kafka for the worker, or straight to the mailer when no
	// broker is configured.
	var publisher service.Publisher
	if cfg.Kafka.Enabled() {
		producer, err := kafka.NewProducer(cfg.Kafka.Broker, cfg.Kafka.RetryMax, cfg.Kafka.RetryBackoff)
		if err != nil {
			logger.Error("Failed to create Kafka producer", "error", err)
			os.Exit(1)
		}
		defer producer.Close()
		publisher = notify.NewKafkaPublisher(producer, cfg.Kafka.Topic)
		logger.Info("✅ Connected to Kafka", "topic", cfg.Kafka.Topic)
	} else {
		publisher = notify.NewInlineRelay(notify.NewDispatcherFromConfig(cfg.Notify, logger))
		logger.Info("KAFKA_BROKER not set; notifications are sent inline")
	}

	auth, err := supabase.NewClient(cfg.Supabase.URL, cfg.Supabase.AnonKey)
	if err != nil {
		logger.Error("Failed to initialize Supabase auth", "error", err)
		os.Exit(1)
	}

	svc := service.New(service.Config{
		RequestCost:        cfg.Credits.RequestCost,
		SignupCredits:      cfg.Credits.SignupCredits,
		RequireDescription: cfg.Submission.RequireDescription,
		MaxImages:          cfg.Submission.MaxImages,
		MaxReferenceURLs:   cfg.Submission.MaxReferenceURLs,
		MaxImageSize:       cfg.Storage.MaxSize,
		MaxImagePixels:     cfg.Storage.MaxPixels,
		UploadTimeout:      cfg.Storage.UploadTimeout,
		NotifyTimeout:      cfg.Notify.Timeout,
	},
		store.NewPostgres(db.DB),
		blobs,
		publisher,
		service.NewIdempotencyStore(db.Redis, cfg.Redis.IdempotencyTTL),
		logger,
	)

	server := api.NewServer(cfg, svc, auth, staticDir, logger)

	// Graceful shutdown.
	go func() {
		logger.Info("🚀 Server running", "port", cfg.Server.Port)
		if err := server.Start(); err != nil {
			logger.Error("❌ Server error", "error", err)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()

	logger.Info("🛑 Server shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("Shutdown error", "error", err)
	}
}

// newBlobStore builds the configured storage backend. For local storage it
// also returns the directory the API serves under /files.
func newBlobStore(cfg *config.Config) (storage.BlobStore, string, error) {
	switch cfg.Storage.Backend {
	case config.BackendSupabase:
		s, err := storage.NewSupabaseStorage(cfg.Supabase.URL, cfg.Supabase.ServiceKey, cfg.Storage.Bucket)
		return s, "", err
	case config.BackendMinio:
		m := cfg.Storage.Minio
		s, err := storage.NewMinioStore(m.Endpoint, m.AccessKey, m.SecretKey, cfg.Storage.Bucket, m.PublicURL, m.UseSSL)
		return s, "", err
	default:
		s, err := storage.NewLocalStorage(cfg.Storage.LocalDir, cfg.Storage.PublicURL)
		if err != nil {
			return nil, "", err
		}
		slog.Info("Serving local uploads", "dir", s.Dir())
		return s, s.Dir(), nil
	}
}
