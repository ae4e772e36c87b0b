package api

import (
	"errors"
	"fmt"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/illegalcall/thumbdesk/internal/models"
	"github.com/illegalcall/thumbdesk/internal/pkg/supabase"
)

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type LoginResponse struct {
	Token        string `json:"token"`
	TokenType    string `json:"type"`
	RefreshToken string `json:"refresh_token,omitempty"`
	ExpiresIn    int    `json:"expires_in,omitempty"`
	UserID       string `json:"user_id"`
}

type SignupResponse struct {
	Success              bool           `json:"success"`
	UserID               string         `json:"user_id"`
	Email                string         `json:"email"`
	Credits              int            `json:"credits"`
	Session              *LoginResponse `json:"session,omitempty"`
	ConfirmationRequired bool           `json:"confirmation_required"`
}

// parseCredentials returns the request, or the message to reject it with.
func parseCredentials(c *fiber.Ctx) (LoginRequest, string) {
	var req LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return req, "Invalid request body"
	}
	req.Email = strings.TrimSpace(req.Email)
	if req.Email == "" || req.Password == "" {
		return req, "Email and password are required"
	}
	return req, ""
}

func (s *Server) handleSignup(c *fiber.Ctx) error {
	req, problem := parseCredentials(c)
	if problem != "" {
		return badRequest(c, problem)
	}

	s.logger.Info("Signup attempt", "email", req.Email)
	sess, err := s.auth.SignUp(c.UserContext(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, supabase.ErrSignupRejected) {
			return badRequest(c, "Signup rejected: check the email address and password strength")
		}
		return s.authServiceError(c, "Signup error", err)
	}

	profile, err := s.svc.EnsureProfile(c.UserContext(), models.Identity{UserID: sess.UserID, Email: sess.Email})
	if err != nil {
		return s.writeError(c, err)
	}
	s.logger.Info("User signed up", "user_id", sess.UserID, "credits", profile.Credits)

	resp := SignupResponse{
		Success:              true,
		UserID:               sess.UserID,
		Email:                sess.Email,
		Credits:              profile.Credits,
		ConfirmationRequired: sess.AccessToken == "",
	}
	if sess.AccessToken != "" {
		login := loginResponse(sess)
		resp.Session = &login
	}
	return c.Status(fiber.StatusCreated).JSON(resp)
}

func (s *Server) handleLogin(c *fiber.Ctx) error {
	req, problem := parseCredentials(c)
	if problem != "" {
		return badRequest(c, problem)
	}

	// Log authentication attempt
	s.logger.Info("Authentication attempt", "email", req.Email)

	sess, err := s.auth.SignIn(c.UserContext(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, supabase.ErrInvalidCredentials) {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Invalid credentials",
				"code":  CodeUnauthorized,
			})
		}
		return s.authServiceError(c, "Authentication error", err)
	}

	// Users created before the profiles table existed get one now.
	if _, err := s.svc.EnsureProfile(c.UserContext(), models.Identity{UserID: sess.UserID, Email: sess.Email}); err != nil {
		return s.writeError(c, err)
	}

	s.logger.Info("User successfully authenticated", "user_id", sess.UserID)
	return c.JSON(loginResponse(sess))
}

func (s *Server) handleLogout(c *fiber.Ctx) error {
	user := currentUser(c)
	if err := s.auth.SignOut(c.UserContext(), user.Token); err != nil {
		return s.authServiceError(c, "Logout error", err)
	}
	s.logger.Info("User signed out", "user_id", user.UserID)
	return c.JSON(fiber.Map{"success": true})
}

func (s *Server) authServiceError(c *fiber.Ctx, msg string, err error) error {
	// Log the detailed error for server-side debugging
	s.logger.Error(msg, "error", err)

	errorMessage := "Authentication service error"
	if !s.cfg.Server.Production() {
		errorMessage = fmt.Sprintf("%s: %v", msg, err)
	}
	return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
		"error": errorMessage,
		"code":  CodeInternal,
	})
}

func loginResponse(sess supabase.Session) LoginResponse {
	return LoginResponse{
		Token:        sess.AccessToken,
		TokenType:    "Bearer",
		RefreshToken: sess.RefreshToken,
		ExpiresIn:    sess.ExpiresIn,
		UserID:       sess.UserID,
	}
}
