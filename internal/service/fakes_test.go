package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/illegalcall/thumbdesk/internal/models"
)

// memStore is an in-memory Store. CreateRequest holds the lock for the whole
// deduct-and-insert, mirroring the single transaction in Postgres.
type memStore struct {
	mu        sync.Mutex
	profiles  map[string]*models.Profile
	requests  map[string]*models.ThumbnailRequest
	admins    map[string]bool
	createErr error
	seq       int
}

func newMemStore() *memStore {
	return &memStore{
		profiles: map[string]*models.Profile{},
		requests: map[string]*models.ThumbnailRequest{},
		admins:   map[string]bool{},
	}
}

func (m *memStore) addProfile(id, email string, credits int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.profiles[id] = &models.Profile{ID: id, Email: email, Credits: credits}
}

func (m *memStore) credits(id string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p, ok := m.profiles[id]; ok {
		return p.Credits
	}
	return 0
}

func (m *memStore) requestCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.requests)
}

func (m *memStore) Balance(_ context.Context, userID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.profiles[userID]
	if !ok {
		return 0, models.ErrNotFound
	}
	return p.Credits, nil
}

func (m *memStore) CreateRequest(_ context.Context, req models.NewRequest, cost int) (models.ThumbnailRequest, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return models.ThumbnailRequest{}, 0, m.createErr
	}
	p, ok := m.profiles[req.UserID]
	if !ok || p.Credits < cost {
		return models.ThumbnailRequest{}, 0, models.ErrInsufficientCredits
	}
	p.Credits -= cost

	m.seq++
	now := time.Unix(1700000000+int64(m.seq), 0).UTC()
	row := &models.ThumbnailRequest{
		ID:              uuid.NewString(),
		UserID:          req.UserID,
		Title:           req.Title,
		Description:     req.Description,
		ReferenceURLs:   append([]string{}, req.ReferenceURLs...),
		FaceReactionURL: req.FaceReactionURL,
		MainImageURL:    req.MainImageURL,
		Status:          models.StatusPending,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	m.requests[row.ID] = row
	return *row, p.Credits, nil
}

func (m *memStore) adminRow(r *models.ThumbnailRequest) models.AdminRequest {
	email := "Unknown"
	if p, ok := m.profiles[r.UserID]; ok {
		email = p.Email
	}
	return models.AdminRequest{ThumbnailRequest: *r, UserEmail: email}
}

func (m *memStore) GetRequest(_ context.Context, id string) (models.AdminRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.requests[id]
	if !ok {
		return models.AdminRequest{}, models.ErrNotFound
	}
	return m.adminRow(r), nil
}

func (m *memStore) sorted(keep func(*models.ThumbnailRequest) bool) []*models.ThumbnailRequest {
	var out []*models.ThumbnailRequest
	for _, r := range m.requests {
		if keep(r) {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

func (m *memStore) ListRequests(_ context.Context, filter models.StatusFilter) ([]models.AdminRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.AdminRequest
	for _, r := range m.sorted(func(r *models.ThumbnailRequest) bool { return filter.All() || r.Status == filter.Status }) {
		out = append(out, m.adminRow(r))
	}
	return out, nil
}

func (m *memStore) ListUserRequests(_ context.Context, userID string) ([]models.ThumbnailRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []models.ThumbnailRequest{}
	for _, r := range m.sorted(func(r *models.ThumbnailRequest) bool { return r.UserID == userID }) {
		out = append(out, *r)
	}
	return out, nil
}

func (m *memStore) update(id string, at time.Time, apply func(*models.ThumbnailRequest)) (models.ThumbnailRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.requests[id]
	if !ok {
		return models.ThumbnailRequest{}, models.ErrNotFound
	}
	apply(r)
	r.UpdatedAt = at
	return *r, nil
}

func (m *memStore) UpdateStatus(_ context.Context, id string, status models.RequestStatus, at time.Time) (models.ThumbnailRequest, error) {
	return m.update(id, at, func(r *models.ThumbnailRequest) { r.Status = status })
}

func (m *memStore) CompleteWithResult(_ context.Context, id, resultURL string, at time.Time) (models.ThumbnailRequest, error) {
	return m.update(id, at, func(r *models.ThumbnailRequest) {
		r.ResultURL = &resultURL
		r.Status = models.StatusCompleted
	})
}

func (m *memStore) SetResultURL(_ context.Context, id, resultURL string, at time.Time) (models.ThumbnailRequest, error) {
	return m.update(id, at, func(r *models.ThumbnailRequest) { r.ResultURL = &resultURL })
}

func (m *memStore) IsAdmin(_ context.Context, userID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.admins[userID], nil
}

func (m *memStore) EnsureProfile(_ context.Context, userID, email string, credits int) (models.Profile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p, ok := m.profiles[userID]; ok {
		return *p, nil
	}
	p := &models.Profile{ID: userID, Email: email, Credits: credits}
	m.profiles[userID] = p
	return *p, nil
}

func (m *memStore) GetProfile(_ context.Context, userID string) (models.Profile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.profiles[userID]
	if !ok {
		return models.Profile{}, models.ErrNotFound
	}
	return *p, nil
}

// memBlobs is an in-memory BlobStore. failAfter > 0 makes the upload with
// that 1-based index (and later ones) fail.
type memBlobs struct {
	mu        sync.Mutex
	objects   map[string][]byte
	uploads   int
	failAfter int
}

func newMemBlobs() *memBlobs {
	return &memBlobs{objects: map[string][]byte{}}
}

func (b *memBlobs) Upload(_ context.Context, path string, data []byte, _ string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.uploads++
	if b.failAfter > 0 && b.uploads >= b.failAfter {
		return errors.New("bucket unavailable")
	}
	b.objects[path] = data
	return nil
}

func (b *memBlobs) PublicURL(path string) string {
	return "https://cdn.test/" + path
}

func (b *memBlobs) Delete(_ context.Context, path string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.objects, path)
	return nil
}

func (b *memBlobs) paths() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]string, 0, len(b.objects))
	for p := range b.objects {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []models.RequestEvent
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, ev models.RequestEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return p.err
}

func (p *recordingPublisher) published() []models.RequestEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]models.RequestEvent{}, p.events...)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testConfig() Config {
	return Config{
		RequestCost:      10,
		SignupCredits:    30,
		MaxImages:        5,
		MaxReferenceURLs: 10,
		MaxImageSize:     1 << 20,
		UploadTimeout:    time.Second,
		NotifyTimeout:    time.Second,
	}
}
