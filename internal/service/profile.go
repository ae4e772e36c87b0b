package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/illegalcall/thumbdesk/internal/models"
)

// Profile returns the caller's dashboard view.
func (s *Service) Profile(ctx context.Context, user models.Identity) (models.ProfileView, error) {
	if user.UserID == "" {
		return models.ProfileView{}, models.ErrUnauthorized
	}
	profile, err := s.store.GetProfile(ctx, user.UserID)
	if errors.Is(err, models.ErrNotFound) {
		// Accounts created outside the signup endpoint get their profile lazily.
		profile, err = s.store.EnsureProfile(ctx, user.UserID, user.Email, s.cfg.SignupCredits)
	}
	if err != nil {
		return models.ProfileView{}, err
	}
	isAdmin, err := s.store.IsAdmin(ctx, user.UserID)
	if err != nil {
		return models.ProfileView{}, fmt.Errorf("check admin role: %w", err)
	}
	return models.ProfileView{Profile: profile, IsAdmin: isAdmin}, nil
}

// EnsureProfile creates the caller's profile with the signup grant. Calling
// it again returns the existing profile untouched.
func (s *Service) EnsureProfile(ctx context.Context, user models.Identity) (models.Profile, error) {
	if user.UserID == "" {
		return models.Profile{}, models.ErrUnauthorized
	}
	if user.Email == "" {
		return models.Profile{}, models.Invalid("email", "is required")
	}
	profile, err := s.store.EnsureProfile(ctx, user.UserID, user.Email, s.cfg.SignupCredits)
	if err != nil {
		return models.Profile{}, err
	}
	s.logger.Info("Profile ensured", "user_id", user.UserID, "credits", profile.Credits)
	return profile, nil
}

// ListMine returns the caller's requests, newest first.
func (s *Service) ListMine(ctx context.Context, user models.Identity) ([]models.ThumbnailRequest, error) {
	if user.UserID == "" {
		return nil, models.ErrUnauthorized
	}
	return s.store.ListUserRequests(ctx, user.UserID)
}

// GetMine returns one of the caller's requests. Requests owned by someone
// else are reported as not found.
func (s *Service) GetMine(ctx context.Context, user models.Identity, id string) (models.ThumbnailRequest, error) {
	if user.UserID == "" {
		return models.ThumbnailRequest{}, models.ErrUnauthorized
	}
	id, err := parseRequestID(id)
	if err != nil {
		return models.ThumbnailRequest{}, err
	}
	req, err := s.store.GetRequest(ctx, id)
	if err != nil {
		return models.ThumbnailRequest{}, err
	}
	if req.UserID != user.UserID {
		return models.ThumbnailRequest{}, models.ErrNotFound
	}
	return req.ThumbnailRequest, nil
}
