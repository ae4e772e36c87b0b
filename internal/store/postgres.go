package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/illegalcall/thumbdesk/internal/ledger"
	"github.com/illegalcall/thumbdesk/internal/models"
)

const requestColumns = `id, user_id, title, description, reference_urls, face_reaction_url,
	main_image_url, status, result_url, created_at, updated_at`

const (
	insertRequestQuery = `INSERT INTO thumbnail_requests
		(user_id, title, description, reference_urls, face_reaction_url, main_image_url, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING ` + requestColumns

	getRequestQuery = `SELECT r.id, r.user_id, r.title, r.description, r.reference_urls, r.face_reaction_url,
		r.main_image_url, r.status, r.result_url, r.created_at, r.updated_at,
		COALESCE(p.email, 'Unknown') AS user_email
		FROM thumbnail_requests r
		LEFT JOIN profiles p ON p.id = r.user_id
		WHERE r.id = $1`

	listAllRequestsQuery = `SELECT r.id, r.user_id, r.title, r.description, r.reference_urls, r.face_reaction_url,
		r.main_image_url, r.status, r.result_url, r.created_at, r.updated_at,
		COALESCE(p.email, 'Unknown') AS user_email
		FROM thumbnail_requests r
		LEFT JOIN profiles p ON p.id = r.user_id
		ORDER BY r.created_at DESC`

	listRequestsByStatusQuery = `SELECT r.id, r.user_id, r.title, r.description, r.reference_urls, r.face_reaction_url,
		r.main_image_url, r.status, r.result_url, r.created_at, r.updated_at,
		COALESCE(p.email, 'Unknown') AS user_email
		FROM thumbnail_requests r
		LEFT JOIN profiles p ON p.id = r.user_id
		WHERE r.status = $1
		ORDER BY r.created_at DESC`

	listUserRequestsQuery = `SELECT ` + requestColumns + `
		FROM thumbnail_requests
		WHERE user_id = $1
		ORDER BY created_at DESC`

	updateStatusQuery = `UPDATE thumbnail_requests
		SET status = $2, updated_at = $3
		WHERE id = $1
		RETURNING ` + requestColumns

	completeWithResultQuery = `UPDATE thumbnail_requests
		SET result_url = $2, status = $3, updated_at = $4
		WHERE id = $1
		RETURNING ` + requestColumns

	setResultURLQuery = `UPDATE thumbnail_requests
		SET result_url = $2, updated_at = $3
		WHERE id = $1
		RETURNING ` + requestColumns

	isAdminQuery = `SELECT EXISTS (SELECT 1 FROM user_roles WHERE user_id = $1 AND role = $2)`

	ensureProfileQuery = `INSERT INTO profiles (id, email, credits)
		VALUES ($1, $2, $3)
		ON CONFLICT (id) DO NOTHING`

	getProfileQuery = `SELECT id, email, credits, created_at, updated_at FROM profiles WHERE id = $1`
)

// Postgres is the relational store backed by sqlx.
type Postgres struct {
	db *sqlx.DB
}

// NewPostgres wraps an open connection pool.
func NewPostgres(db *sqlx.DB) *Postgres {
	return &Postgres{db: db}
}

// Balance returns the user's credit balance.
func (s *Postgres) Balance(ctx context.Context, userID string) (int, error) {
	return ledger.Balance(ctx, s.db, userID)
}

// CreateRequest deducts cost credits and inserts a pending request in one
// transaction. The returned int is the balance left after the deduction.
func (s *Postgres) CreateRequest(ctx context.Context, req models.NewRequest, cost int) (models.ThumbnailRequest, int, error) {
	var created models.ThumbnailRequest

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return created, 0, fmt.Errorf("%w: begin transaction: %v", models.ErrStoreWrite, err)
	}
	defer tx.Rollback()

	remaining, err := ledger.Deduct(ctx, tx, req.UserID, cost)
	if err != nil {
		return created, 0, err
	}

	refs := req.ReferenceURLs
	if refs == nil {
		refs = []string{}
	}
	err = tx.QueryRowxContext(ctx, insertRequestQuery,
		req.UserID, req.Title, req.Description, pq.StringArray(refs),
		req.FaceReactionURL, req.MainImageURL, models.StatusPending,
	).StructScan(&created)
	if err != nil {
		return created, 0, fmt.Errorf("%w: insert request: %v", models.ErrStoreWrite, err)
	}

	if err := tx.Commit(); err != nil {
		return created, 0, fmt.Errorf("%w: commit: %v", models.ErrStoreWrite, err)
	}
	return created, remaining, nil
}

// GetRequest loads one request with the submitter's email.
func (s *Postgres) GetRequest(ctx context.Context, id string) (models.AdminRequest, error) {
	var req models.AdminRequest
	err := s.db.GetContext(ctx, &req, getRequestQuery, id)
	if errors.Is(err, sql.ErrNoRows) {
		return req, models.ErrNotFound
	}
	if err != nil {
		return req, fmt.Errorf("get request: %w", err)
	}
	return req, nil
}

// ListRequests returns requests newest first, optionally narrowed to one status.
func (s *Postgres) ListRequests(ctx context.Context, filter models.StatusFilter) ([]models.AdminRequest, error) {
	requests := []models.AdminRequest{}
	var err error
	if filter.All() {
		err = s.db.SelectContext(ctx, &requests, listAllRequestsQuery)
	} else {
		err = s.db.SelectContext(ctx, &requests, listRequestsByStatusQuery, filter.Status)
	}
	if err != nil {
		return nil, fmt.Errorf("list requests: %w", err)
	}
	return requests, nil
}

// ListUserRequests returns the user's own requests newest first.
func (s *Postgres) ListUserRequests(ctx context.Context, userID string) ([]models.ThumbnailRequest, error) {
	requests := []models.ThumbnailRequest{}
	if err := s.db.SelectContext(ctx, &requests, listUserRequestsQuery, userID); err != nil {
		return nil, fmt.Errorf("list user requests: %w", err)
	}
	return requests, nil
}

// UpdateStatus sets a new status. Transitions are not validated.
func (s *Postgres) UpdateStatus(ctx context.Context, id string, status models.RequestStatus, at time.Time) (models.ThumbnailRequest, error) {
	return s.updateOne(ctx, "update status", updateStatusQuery, id, status, at)
}

// CompleteWithResult attaches the result URL and marks the request completed
// in a single statement.
func (s *Postgres) CompleteWithResult(ctx context.Context, id, resultURL string, at time.Time) (models.ThumbnailRequest, error) {
	return s.updateOne(ctx, "complete request", completeWithResultQuery, id, resultURL, models.StatusCompleted, at)
}

// SetResultURL replaces the result URL without touching the status.
func (s *Postgres) SetResultURL(ctx context.Context, id, resultURL string, at time.Time) (models.ThumbnailRequest, error) {
	return s.updateOne(ctx, "set result url", setResultURLQuery, id, resultURL, at)
}

func (s *Postgres) updateOne(ctx context.Context, op, query string, args ...interface{}) (models.ThumbnailRequest, error) {
	var req models.ThumbnailRequest
	err := s.db.QueryRowxContext(ctx, query, args...).StructScan(&req)
	if errors.Is(err, sql.ErrNoRows) {
		return req, models.ErrNotFound
	}
	if err != nil {
		return req, fmt.Errorf("%w: %s: %v", models.ErrStoreWrite, op, err)
	}
	return req, nil
}

// IsAdmin checks user_roles membership.
func (s *Postgres) IsAdmin(ctx context.Context, userID string) (bool, error) {
	var ok bool
	if err := s.db.GetContext(ctx, &ok, isAdminQuery, userID, models.RoleAdmin); err != nil {
		return false, fmt.Errorf("check admin role: %w", err)
	}
	return ok, nil
}

// EnsureProfile creates the profile with the given starting credits if it is
// missing and returns the stored row.
func (s *Postgres) EnsureProfile(ctx context.Context, userID, email string, credits int) (models.Profile, error) {
	if _, err := s.db.ExecContext(ctx, ensureProfileQuery, userID, email, credits); err != nil {
		return models.Profile{}, fmt.Errorf("%w: create profile: %v", models.ErrStoreWrite, err)
	}
	return s.GetProfile(ctx, userID)
}

// GetProfile loads a profile by user id.
func (s *Postgres) GetProfile(ctx context.Context, userID string) (models.Profile, error) {
	var profile models.Profile
	err := s.db.GetContext(ctx, &profile, getProfileQuery, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return profile, models.ErrNotFound
	}
	if err != nil {
		return profile, fmt.Errorf("get profile: %w", err)
	}
	return profile, nil
}
