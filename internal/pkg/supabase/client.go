package supabase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/supabase-community/gotrue-go"
	"github.com/supabase-community/gotrue-go/types"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrSignupRejected     = errors.New("signup rejected")
)

// Session is the subset of a GoTrue session the API hands back to clients.
type Session struct {
	UserID       string
	Email        string
	AccessToken  string
	RefreshToken string
	ExpiresIn    int
}

// Client wraps the GoTrue auth API.
type Client struct {
	auth gotrue.Client
}

// extractProjectRef extracts just the project reference ID from a Supabase URL
// From: akrqbuajqkirdekonpzy.supabase.co
// To: akrqbuajqkirdekonpzy
func extractProjectRef(url string) string {
	// Remove any protocol prefix
	url = strings.TrimPrefix(url, "https://")
	url = strings.TrimPrefix(url, "http://")

	// Split by the first dot to get just the project reference
	parts := strings.Split(url, ".")
	return parts[0]
}

// NewClient builds an auth client. Hosted projects are addressed by their
// project reference; any other URL (self-hosted, local) is used as the
// GoTrue base URL directly.
func NewClient(supabaseURL, apiKey string) (*Client, error) {
	supabaseURL = strings.TrimRight(strings.TrimSpace(supabaseURL), "/")
	if supabaseURL == "" || apiKey == "" {
		return nil, errors.New("SUPABASE_URL and SUPABASE_ANON_KEY must be set")
	}

	projectRef := extractProjectRef(supabaseURL)
	client := gotrue.New(projectRef, apiKey)
	if !strings.Contains(supabaseURL, ".supabase.co") {
		client = client.WithCustomGoTrueURL(supabaseURL + "/auth/v1")
	}
	slog.Info("Initialized Supabase auth client", "project", projectRef)
	return &Client{auth: client}, nil
}

// NewClientWithGoTrueURL points the client straight at a GoTrue server.
func NewClientWithGoTrueURL(gotrueURL, apiKey string) *Client {
	return &Client{auth: gotrue.New("local", apiKey).WithCustomGoTrueURL(gotrueURL)}
}

// SignIn exchanges an email and password for a session.
func (c *Client) SignIn(ctx context.Context, email, password string) (Session, error) {
	res, err := callWithContext(ctx, func() (*types.TokenResponse, error) {
		return c.auth.SignInWithEmailPassword(email, password)
	})
	if err != nil {
		if isClientError(err) {
			return Session{}, ErrInvalidCredentials
		}
		return Session{}, fmt.Errorf("authentication failed: %w", err)
	}
	if res == nil || res.AccessToken == "" {
		return Session{}, ErrInvalidCredentials
	}
	return Session{
		UserID:       res.User.ID.String(),
		Email:        res.User.Email,
		AccessToken:  res.AccessToken,
		RefreshToken: res.RefreshToken,
		ExpiresIn:    res.ExpiresIn,
	}, nil
}

// SignUp registers a new account. AccessToken is empty when the project
// requires email confirmation.
func (c *Client) SignUp(ctx context.Context, email, password string) (Session, error) {
	res, err := callWithContext(ctx, func() (*types.SignupResponse, error) {
		return c.auth.Signup(types.SignupRequest{Email: email, Password: password})
	})
	if err != nil {
		if isClientError(err) {
			return Session{}, fmt.Errorf("%w: %v", ErrSignupRejected, err)
		}
		return Session{}, fmt.Errorf("signup failed: %w", err)
	}

	id := res.User.ID
	userEmail := res.User.Email
	if id == uuid.Nil {
		// Auto-confirmed projects answer with a session instead of a bare user.
		id = res.Session.User.ID
		userEmail = res.Session.User.Email
	}
	if id == uuid.Nil {
		return Session{}, fmt.Errorf("signup failed: no user in response")
	}
	if userEmail == "" {
		userEmail = email
	}
	return Session{
		UserID:       id.String(),
		Email:        userEmail,
		AccessToken:  res.AccessToken,
		RefreshToken: res.RefreshToken,
		ExpiresIn:    res.ExpiresIn,
	}, nil
}

// SignOut revokes the session behind token.
func (c *Client) SignOut(ctx context.Context, token string) error {
	_, err := callWithContext(ctx, func() (struct{}, error) {
		return struct{}{}, c.auth.WithToken(token).Logout()
	})
	if err != nil {
		return fmt.Errorf("logout failed: %w", err)
	}
	return nil
}

// isClientError reports whether GoTrue rejected the request itself, as
// opposed to being unreachable.
func isClientError(err error) bool {
	msg := err.Error()
	for _, code := range []string{"400", "401", "403", "422"} {
		if strings.Contains(msg, "status code "+code) {
			return true
		}
	}
	return false
}

// callWithContext runs a blocking GoTrue call and abandons it when ctx ends.
func callWithContext[T any](ctx context.Context, fn func() (T, error)) (T, error) {
	type result struct {
		val T
		err error
	}
	done := make(chan result, 1)
	go func() {
		v, err := fn()
		done <- result{val: v, err: err}
	}()
	select {
	case r := <-done:
		return r.val, r.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}
