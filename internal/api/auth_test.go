package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/illegalcall/thumbdesk/internal/models"
	"github.com/illegalcall/thumbdesk/internal/pkg/supabase"
)

func TestHandleLogin(t *testing.T) {
	session := supabase.Session{
		UserID:       testUserID,
		Email:        testEmail,
		AccessToken:  "access-123",
		RefreshToken: "refresh-456",
		ExpiresIn:    3600,
	}

	tests := []struct {
		name           string
		reqBody        LoginRequest
		setup          func(*MockService, *MockAuth)
		expectedStatus int
		checkResponse  func(*testing.T, *http.Response)
	}{
		{
			name:    "successful login",
			reqBody: LoginRequest{Email: testEmail, Password: "correct-horse"},
			setup: func(svc *MockService, auth *MockAuth) {
				auth.On("SignIn", mock.Anything, testEmail, "correct-horse").Return(session, nil)
				svc.On("EnsureProfile", mock.Anything, models.Identity{UserID: testUserID, Email: testEmail}).
					Return(models.Profile{ID: testUserID, Credits: 10}, nil)
			},
			expectedStatus: fiber.StatusOK,
			checkResponse: func(t *testing.T, resp *http.Response) {
				var result LoginResponse
				require.NoError(t, json.NewDecoder(resp.Body).Decode(&result))
				assert.Equal(t, "access-123", result.Token)
				assert.Equal(t, "Bearer", result.TokenType)
				assert.Equal(t, "refresh-456", result.RefreshToken)
				assert.Equal(t, 3600, result.ExpiresIn)
				assert.Equal(t, testUserID, result.UserID)
			},
		},
		{
			name:    "invalid credentials",
			reqBody: LoginRequest{Email: testEmail, Password: "wrong"},
			setup: func(svc *MockService, auth *MockAuth) {
				auth.On("SignIn", mock.Anything, testEmail, "wrong").Return(supabase.Session{}, supabase.ErrInvalidCredentials)
			},
			expectedStatus: fiber.StatusUnauthorized,
			checkResponse: func(t *testing.T, resp *http.Response) {
				assert.Equal(t, "Invalid credentials", decodeBody(t, resp)["error"])
			},
		},
		{
			name:           "missing credentials",
			reqBody:        LoginRequest{Email: " ", Password: ""},
			setup:          func(*MockService, *MockAuth) {},
			expectedStatus: fiber.StatusBadRequest,
			checkResponse: func(t *testing.T, resp *http.Response) {
				assert.Equal(t, "Email and password are required", decodeBody(t, resp)["error"])
			},
		},
		{
			name:    "auth service unreachable",
			reqBody: LoginRequest{Email: testEmail, Password: "correct-horse"},
			setup: func(svc *MockService, auth *MockAuth) {
				auth.On("SignIn", mock.Anything, testEmail, "correct-horse").Return(supabase.Session{}, errors.New("dial tcp: connection refused"))
			},
			expectedStatus: fiber.StatusBadGateway,
			checkResponse: func(t *testing.T, resp *http.Response) {
				assert.Contains(t, decodeBody(t, resp)["error"], "connection refused")
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server, svc, auth := setupTestServer(t)
			tt.setup(svc, auth)

			resp, err := server.app.Test(jsonRequest("POST", "/api/auth/login", "", tt.reqBody))
			require.NoError(t, err)
			assert.Equal(t, tt.expectedStatus, resp.StatusCode)
			tt.checkResponse(t, resp)
		})
	}
}

func TestHandleSignup(t *testing.T) {
	t.Run("confirmation required", func(t *testing.T) {
		server, svc, auth := setupTestServer(t)
		auth.On("SignUp", mock.Anything, "new@example.com", "correct-horse").
			Return(supabase.Session{UserID: testUserID, Email: "new@example.com"}, nil)
		svc.On("EnsureProfile", mock.Anything, models.Identity{UserID: testUserID, Email: "new@example.com"}).
			Return(models.Profile{ID: testUserID, Email: "new@example.com", Credits: 10}, nil)

		resp, err := server.app.Test(jsonRequest("POST", "/api/auth/signup", "", LoginRequest{Email: "new@example.com", Password: "correct-horse"}))
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusCreated, resp.StatusCode)

		var result SignupResponse
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&result))
		assert.True(t, result.Success)
		assert.Equal(t, testUserID, result.UserID)
		assert.Equal(t, 10, result.Credits)
		assert.True(t, result.ConfirmationRequired)
		assert.Nil(t, result.Session)
	})

	t.Run("auto confirmed", func(t *testing.T) {
		server, svc, auth := setupTestServer(t)
		auth.On("SignUp", mock.Anything, "new@example.com", "correct-horse").
			Return(supabase.Session{UserID: testUserID, Email: "new@example.com", AccessToken: "access-1"}, nil)
		svc.On("EnsureProfile", mock.Anything, mock.Anything).Return(models.Profile{Credits: 10}, nil)

		resp, err := server.app.Test(jsonRequest("POST", "/api/auth/signup", "", LoginRequest{Email: "new@example.com", Password: "correct-horse"}))
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusCreated, resp.StatusCode)

		var result SignupResponse
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&result))
		require.NotNil(t, result.Session)
		assert.Equal(t, "access-1", result.Session.Token)
		assert.False(t, result.ConfirmationRequired)
	})

	t.Run("rejected", func(t *testing.T) {
		server, _, auth := setupTestServer(t)
		auth.On("SignUp", mock.Anything, "taken@example.com", "correct-horse").
			Return(supabase.Session{}, supabase.ErrSignupRejected)

		resp, err := server.app.Test(jsonRequest("POST", "/api/auth/signup", "", LoginRequest{Email: "taken@example.com", Password: "correct-horse"}))
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	})
}

func TestHandleLogout(t *testing.T) {
	server, _, auth := setupTestServer(t)
	token := userToken(t)
	auth.On("SignOut", mock.Anything, token).Return(nil)

	resp, err := server.app.Test(jsonRequest("POST", "/api/auth/logout", token, nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, true, decodeBody(t, resp)["success"])

	resp, err = server.app.Test(jsonRequest("POST", "/api/auth/logout", "", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}
