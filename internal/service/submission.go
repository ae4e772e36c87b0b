package service

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"unicode/utf8"

	"github.com/illegalcall/thumbdesk/internal/metrics"
	"github.com/illegalcall/thumbdesk/internal/models"
	"github.com/illegalcall/thumbdesk/internal/storage"
)

const (
	maxTitleLen       = 200
	maxDescriptionLen = 2000
)

// ImageKind says which slot of a request an uploaded image fills.
type ImageKind string

const (
	ImageReference    ImageKind = "reference"
	ImageFaceReaction ImageKind = "face_reaction"
	ImageMain         ImageKind = "main_image"
)

// ImageUpload is an image attached to a submission.
type ImageUpload struct {
	Kind     ImageKind
	Filename string
	Data     []byte
}

// SubmitInput is what the client sent.
type SubmitInput struct {
	Title           string
	Description     string
	ReferenceURLs   []string
	FaceReactionURL string
	MainImageURL    string
	Images          []ImageUpload
	IdempotencyKey  string
}

// SubmitResult is returned for an accepted (or replayed) submission.
type SubmitResult struct {
	Request          models.ThumbnailRequest
	CreditsRemaining int
	Replayed         bool
}

// Submit validates the input, uploads attachments and atomically charges the
// caller for a new request. Credits are only ever taken together with the
// insert of the request row.
func (s *Service) Submit(ctx context.Context, user models.Identity, in SubmitInput) (SubmitResult, error) {
	if user.UserID == "" {
		return SubmitResult{}, models.ErrUnauthorized
	}

	newReq, images, err := s.validateSubmission(user, in)
	if err != nil {
		metrics.RecordSubmission(metrics.OutcomeInvalid)
		return SubmitResult{}, err
	}

	key := strings.TrimSpace(in.IdempotencyKey)
	guarded := key != "" && s.guard != nil
	if guarded {
		existingID, err := s.guard.Begin(ctx, user.UserID, key)
		if err != nil {
			return SubmitResult{}, err
		}
		if existingID != "" {
			return s.replay(ctx, user, existingID)
		}
	}

	result, err := s.submit(ctx, user, newReq, images)
	if err != nil {
		if guarded {
			if rerr := s.guard.Release(context.WithoutCancel(ctx), user.UserID, key); rerr != nil {
				s.logger.Warn("Failed to release idempotency key", "user_id", user.UserID, "error", rerr)
			}
		}
		switch {
		case errors.Is(err, models.ErrInsufficientCredits):
			metrics.RecordSubmission(metrics.OutcomeInsufficient)
		default:
			metrics.RecordSubmission(metrics.OutcomeFailed)
		}
		return SubmitResult{}, err
	}

	if guarded {
		if err := s.guard.Complete(context.WithoutCancel(ctx), user.UserID, key, result.Request.ID); err != nil {
			s.logger.Warn("Failed to record idempotency key", "user_id", user.UserID, "request_id", result.Request.ID, "error", err)
		}
	}
	metrics.RecordSubmission(metrics.OutcomeAccepted)
	metrics.RecordDeduction(s.cfg.RequestCost)

	s.publish(ctx, createdEvent(result.Request, user.Email))
	return result, nil
}

type validatedImage struct {
	upload ImageUpload
	info   storage.ImageInfo
}

func (s *Service) submit(ctx context.Context, user models.Identity, req models.NewRequest, images []validatedImage) (SubmitResult, error) {
	// The precheck only spares useless uploads; the deduction below decides.
	balance, err := s.store.Balance(ctx, user.UserID)
	if err != nil && !errors.Is(err, models.ErrNotFound) {
		return SubmitResult{}, fmt.Errorf("read balance: %w", err)
	}
	if balance < s.cfg.RequestCost {
		return SubmitResult{}, models.ErrInsufficientCredits
	}

	uploaded, err := s.uploadReferences(ctx, user.UserID, images, &req)
	if err != nil {
		s.deleteBlobs(uploaded)
		return SubmitResult{}, err
	}

	created, remaining, err := s.store.CreateRequest(ctx, req, s.cfg.RequestCost)
	if err != nil {
		s.deleteBlobs(uploaded)
		return SubmitResult{}, err
	}

	s.logger.Info("Thumbnail request created",
		"request_id", created.ID,
		"user_id", user.UserID,
		"credits_remaining", remaining,
		"attachments", len(uploaded),
	)
	return SubmitResult{Request: created, CreditsRemaining: remaining}, nil
}

// uploadReferences stores every attachment and fills the matching URL fields
// of req. It returns the paths written so far, also on error.
func (s *Service) uploadReferences(ctx context.Context, userID string, images []validatedImage, req *models.NewRequest) ([]string, error) {
	var uploaded []string
	now := s.now()
	for i, img := range images {
		objectPath := storage.ReferencePath(userID, now, i, img.info.Ext)

		upCtx, cancel := context.WithTimeout(ctx, s.cfg.UploadTimeout)
		err := s.blobs.Upload(upCtx, objectPath, img.upload.Data, img.info.ContentType)
		cancel()
		if err != nil {
			s.logger.Error("Failed to upload reference image", "path", objectPath, "error", err)
			return uploaded, fmt.Errorf("%w: %v", models.ErrUploadFailed, err)
		}
		uploaded = append(uploaded, objectPath)

		publicURL := s.blobs.PublicURL(objectPath)
		switch img.upload.Kind {
		case ImageFaceReaction:
			req.FaceReactionURL = &publicURL
		case ImageMain:
			req.MainImageURL = &publicURL
		default:
			req.ReferenceURLs = append(req.ReferenceURLs, publicURL)
		}
	}
	return uploaded, nil
}

func (s *Service) replay(ctx context.Context, user models.Identity, requestID string) (SubmitResult, error) {
	req, err := s.store.GetRequest(ctx, requestID)
	if err != nil {
		return SubmitResult{}, fmt.Errorf("load replayed request: %w", err)
	}
	if req.UserID != user.UserID {
		return SubmitResult{}, models.ErrNotFound
	}
	balance, err := s.store.Balance(ctx, user.UserID)
	if err != nil && !errors.Is(err, models.ErrNotFound) {
		return SubmitResult{}, fmt.Errorf("read balance: %w", err)
	}
	metrics.RecordSubmission(metrics.OutcomeReplayed)
	s.logger.Info("Replayed idempotent submission", "request_id", requestID, "user_id", user.UserID)
	return SubmitResult{Request: req.ThumbnailRequest, CreditsRemaining: balance, Replayed: true}, nil
}

func (s *Service) validateSubmission(user models.Identity, in SubmitInput) (models.NewRequest, []validatedImage, error) {
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return models.NewRequest{}, nil, models.Invalid("title", "is required")
	}
	if utf8.RuneCountInString(title) > maxTitleLen {
		return models.NewRequest{}, nil, models.Invalid("title", fmt.Sprintf("must be at most %d characters", maxTitleLen))
	}

	req := models.NewRequest{UserID: user.UserID, Title: title, ReferenceURLs: []string{}}

	description := strings.TrimSpace(in.Description)
	if description == "" && s.cfg.RequireDescription {
		return models.NewRequest{}, nil, models.Invalid("description", "is required")
	}
	if utf8.RuneCountInString(description) > maxDescriptionLen {
		return models.NewRequest{}, nil, models.Invalid("description", fmt.Sprintf("must be at most %d characters", maxDescriptionLen))
	}
	if description != "" {
		req.Description = &description
	}

	for _, raw := range in.ReferenceURLs {
		u := strings.TrimSpace(raw)
		if u == "" {
			continue
		}
		if !validURL(u) {
			return models.NewRequest{}, nil, models.Invalid("reference_urls", fmt.Sprintf("%q is not an http(s) URL", u))
		}
		req.ReferenceURLs = append(req.ReferenceURLs, u)
	}
	if s.cfg.MaxReferenceURLs > 0 && len(req.ReferenceURLs) > s.cfg.MaxReferenceURLs {
		return models.NewRequest{}, nil, models.Invalid("reference_urls", fmt.Sprintf("at most %d allowed", s.cfg.MaxReferenceURLs))
	}

	if u := strings.TrimSpace(in.FaceReactionURL); u != "" {
		if !validURL(u) {
			return models.NewRequest{}, nil, models.Invalid("face_reaction_url", "must be an http(s) URL")
		}
		req.FaceReactionURL = &u
	}
	if u := strings.TrimSpace(in.MainImageURL); u != "" {
		if !validURL(u) {
			return models.NewRequest{}, nil, models.Invalid("main_image_url", "must be an http(s) URL")
		}
		req.MainImageURL = &u
	}

	if len(strings.TrimSpace(in.IdempotencyKey)) > maxIdempotencyKeyLen {
		return models.NewRequest{}, nil, models.Invalid("idempotency_key", fmt.Sprintf("must be at most %d characters", maxIdempotencyKeyLen))
	}

	images, err := s.validateImages(in.Images, req)
	if err != nil {
		return models.NewRequest{}, nil, err
	}
	return req, images, nil
}

func (s *Service) validateImages(uploads []ImageUpload, req models.NewRequest) ([]validatedImage, error) {
	if s.cfg.MaxImages > 0 && len(uploads) > s.cfg.MaxImages {
		return nil, models.Invalid("images", fmt.Sprintf("at most %d images allowed", s.cfg.MaxImages))
	}
	var faces, mains int
	images := make([]validatedImage, 0, len(uploads))
	for _, up := range uploads {
		switch up.Kind {
		case ImageReference:
		case ImageFaceReaction:
			faces++
			if faces > 1 || req.FaceReactionURL != nil {
				return nil, models.Invalid("face_image", "provide a single face image or a face_reaction_url")
			}
		case ImageMain:
			mains++
			if mains > 1 || req.MainImageURL != nil {
				return nil, models.Invalid("main_image", "provide a single main image or a main_image_url")
			}
		default:
			return nil, models.Invalid("images", fmt.Sprintf("unknown image kind %q", up.Kind))
		}
		info, err := storage.InspectImage(up.Data, s.cfg.MaxImageSize, s.cfg.MaxImagePixels)
		if err != nil {
			return nil, models.Invalid("images", fmt.Sprintf("%s: %v", displayName(up), err))
		}
		images = append(images, validatedImage{upload: up, info: info})
	}
	return images, nil
}

func displayName(up ImageUpload) string {
	if up.Filename != "" {
		return up.Filename
	}
	return string(up.Kind)
}

func validURL(raw string) bool {
	u, err := url.ParseRequestURI(raw)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

func createdEvent(req models.ThumbnailRequest, email string) models.RequestEvent {
	ev := models.RequestEvent{
		Type:          models.EventRequestCreated,
		RequestID:     req.ID,
		UserID:        req.UserID,
		UserEmail:     email,
		Title:         req.Title,
		ReferenceURLs: req.ReferenceURLs,
		OccurredAt:    req.CreatedAt,
	}
	if req.Description != nil {
		ev.Description = *req.Description
	}
	return ev
}
