package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/illegalcall/thumbdesk/internal/metrics"
	"github.com/illegalcall/thumbdesk/internal/models"
	"github.com/illegalcall/thumbdesk/internal/storage"
)

// requireAdmin returns ErrForbidden unless the caller holds the admin role.
func (s *Service) requireAdmin(ctx context.Context, user models.Identity) error {
	if user.UserID == "" {
		return models.ErrUnauthorized
	}
	ok, err := s.store.IsAdmin(ctx, user.UserID)
	if err != nil {
		return fmt.Errorf("check admin role: %w", err)
	}
	if !ok {
		return models.ErrForbidden
	}
	return nil
}

// parseRequestID rejects ids that cannot exist so they never reach SQL.
func parseRequestID(id string) (string, error) {
	parsed, err := uuid.Parse(strings.TrimSpace(id))
	if err != nil {
		return "", models.ErrNotFound
	}
	return parsed.String(), nil
}

// ListRequests returns every request matching filter, newest first.
func (s *Service) ListRequests(ctx context.Context, user models.Identity, filter models.StatusFilter) ([]models.AdminRequest, error) {
	if err := s.requireAdmin(ctx, user); err != nil {
		return nil, err
	}
	return s.store.ListRequests(ctx, filter)
}

// SetStatus moves a request to status. Any transition is allowed.
func (s *Service) SetStatus(ctx context.Context, user models.Identity, id string, status models.RequestStatus) (models.ThumbnailRequest, error) {
	if err := s.requireAdmin(ctx, user); err != nil {
		return models.ThumbnailRequest{}, err
	}
	if !status.Valid() {
		return models.ThumbnailRequest{}, models.Invalid("status", "must be one of pending, in_progress, completed, rejected")
	}
	id, err := parseRequestID(id)
	if err != nil {
		return models.ThumbnailRequest{}, err
	}

	updated, err := s.store.UpdateStatus(ctx, id, status, s.now())
	metrics.RecordAdminAction("set_status", err == nil)
	if err != nil {
		return models.ThumbnailRequest{}, err
	}
	s.logger.Info("Request status updated", "request_id", id, "status", status, "admin_id", user.UserID)
	return updated, nil
}

// AttachResult uploads the finished thumbnail and marks the request completed.
func (s *Service) AttachResult(ctx context.Context, user models.Identity, id string, upload ImageUpload) (models.ThumbnailRequest, error) {
	if err := s.requireAdmin(ctx, user); err != nil {
		return models.ThumbnailRequest{}, err
	}
	id, err := parseRequestID(id)
	if err != nil {
		return models.ThumbnailRequest{}, err
	}
	existing, err := s.store.GetRequest(ctx, id)
	if err != nil {
		return models.ThumbnailRequest{}, err
	}
	info, err := storage.InspectImage(upload.Data, s.cfg.MaxImageSize, s.cfg.MaxImagePixels)
	if err != nil {
		return models.ThumbnailRequest{}, models.Invalid("file", err.Error())
	}

	objectPath := storage.ResultPath(id, s.now(), info.Ext)
	upCtx, cancel := context.WithTimeout(ctx, s.cfg.UploadTimeout)
	err = s.blobs.Upload(upCtx, objectPath, upload.Data, info.ContentType)
	cancel()
	if err != nil {
		metrics.RecordAdminAction("attach_result", false)
		s.logger.Error("Failed to upload result", "request_id", id, "path", objectPath, "error", err)
		return models.ThumbnailRequest{}, fmt.Errorf("%w: %v", models.ErrUploadFailed, err)
	}

	resultURL := s.blobs.PublicURL(objectPath)
	updated, err := s.store.CompleteWithResult(ctx, id, resultURL, s.now())
	metrics.RecordAdminAction("attach_result", err == nil)
	if err != nil {
		s.deleteBlobs([]string{objectPath})
		return models.ThumbnailRequest{}, err
	}
	s.logger.Info("Result attached", "request_id", id, "result_url", resultURL, "admin_id", user.UserID)

	s.publish(ctx, completedEvent(updated, existing.UserEmail))
	return updated, nil
}

// SetResultURL points a request at an externally hosted result without
// changing its status.
func (s *Service) SetResultURL(ctx context.Context, user models.Identity, id, resultURL string) (models.ThumbnailRequest, error) {
	if err := s.requireAdmin(ctx, user); err != nil {
		return models.ThumbnailRequest{}, err
	}
	resultURL = strings.TrimSpace(resultURL)
	if !validURL(resultURL) {
		return models.ThumbnailRequest{}, models.Invalid("result_url", "must be an http(s) URL")
	}
	id, err := parseRequestID(id)
	if err != nil {
		return models.ThumbnailRequest{}, err
	}
	updated, err := s.store.SetResultURL(ctx, id, resultURL, s.now())
	metrics.RecordAdminAction("set_result_url", err == nil)
	if err != nil {
		return models.ThumbnailRequest{}, err
	}
	return updated, nil
}

func completedEvent(req models.ThumbnailRequest, email string) models.RequestEvent {
	ev := models.RequestEvent{
		Type:       models.EventRequestCompleted,
		RequestID:  req.ID,
		UserID:     req.UserID,
		Title:      req.Title,
		OccurredAt: req.UpdatedAt,
	}
	// The admin listing falls back to "Unknown" for missing profiles.
	if strings.Contains(email, "@") {
		ev.UserEmail = email
	}
	if req.ResultURL != nil {
		ev.ResultURL = *req.ResultURL
	}
	return ev
}
