// Package service implements the thumbnail request lifecycle: credit-gated
// submission, the admin fulfilment operations and the user's own views.
package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/illegalcall/thumbdesk/internal/models"
	"github.com/illegalcall/thumbdesk/internal/storage"
)

// Store is the relational store the service depends on.
type Store interface {
	Balance(ctx context.Context, userID string) (int, error)
	CreateRequest(ctx context.Context, req models.NewRequest, cost int) (models.ThumbnailRequest, int, error)
	GetRequest(ctx context.Context, id string) (models.AdminRequest, error)
	ListRequests(ctx context.Context, filter models.StatusFilter) ([]models.AdminRequest, error)
	ListUserRequests(ctx context.Context, userID string) ([]models.ThumbnailRequest, error)
	UpdateStatus(ctx context.Context, id string, status models.RequestStatus, at time.Time) (models.ThumbnailRequest, error)
	CompleteWithResult(ctx context.Context, id, resultURL string, at time.Time) (models.ThumbnailRequest, error)
	SetResultURL(ctx context.Context, id, resultURL string, at time.Time) (models.ThumbnailRequest, error)
	IsAdmin(ctx context.Context, userID string) (bool, error)
	EnsureProfile(ctx context.Context, userID, email string, credits int) (models.Profile, error)
	GetProfile(ctx context.Context, userID string) (models.Profile, error)
}

// Publisher hands request events to the notification relay.
type Publisher interface {
	Publish(ctx context.Context, event models.RequestEvent) error
}

// Config holds the tunables of the request workflow.
type Config struct {
	RequestCost        int
	SignupCredits      int
	RequireDescription bool
	MaxImages          int
	MaxReferenceURLs   int
	MaxImageSize       int64
	MaxImagePixels     int64
	UploadTimeout      time.Duration
	NotifyTimeout      time.Duration
}

type Service struct {
	cfg       Config
	store     Store
	blobs     storage.BlobStore
	publisher Publisher
	guard     *IdempotencyStore
	logger    *slog.Logger
	now       func() time.Time
}

// New wires the service. guard may be nil, in which case Idempotency-Key
// headers are ignored.
func New(cfg Config, store Store, blobs storage.BlobStore, publisher Publisher, guard *IdempotencyStore, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.UploadTimeout <= 0 {
		cfg.UploadTimeout = 30 * time.Second
	}
	if cfg.NotifyTimeout <= 0 {
		cfg.NotifyTimeout = 10 * time.Second
	}
	if cfg.MaxImagePixels <= 0 {
		cfg.MaxImagePixels = storage.DefaultMaxPixels
	}
	return &Service{
		cfg:       cfg,
		store:     store,
		blobs:     blobs,
		publisher: publisher,
		guard:     guard,
		logger:    logger,
		now:       time.Now,
	}
}

// deleteBlobs removes objects left behind by a failed operation. Failures are
// only logged.
func (s *Service) deleteBlobs(paths []string) {
	if len(paths) == 0 {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.UploadTimeout)
	defer cancel()
	for _, p := range paths {
		if err := s.blobs.Delete(ctx, p); err != nil {
			s.logger.Warn("Failed to delete orphaned blob", "path", p, "error", err)
		}
	}
}

// publish delivers an event best-effort. Errors never reach the caller.
// Delivery metrics are recorded by the publisher.
func (s *Service) publish(ctx context.Context, event models.RequestEvent) {
	if s.publisher == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.NotifyTimeout)
	defer cancel()
	if err := s.publisher.Publish(ctx, event); err != nil {
		s.logger.Error("Failed to publish request event", "type", event.Type, "request_id", event.RequestID, "error", err)
	}
}
