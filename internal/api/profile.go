package api

import (
	"github.com/gofiber/fiber/v2"

	"github.com/illegalcall/thumbdesk/internal/models"
)

// handleGetProfile returns the caller's credits and whether they are an admin.
func (s *Server) handleGetProfile(c *fiber.Ctx) error {
	view, err := s.svc.Profile(c.UserContext(), currentUser(c))
	if err != nil {
		return s.writeError(c, err)
	}
	return c.JSON(view)
}

// handleEnsureProfile creates the caller's profile if it does not exist yet.
// Repeated calls return the existing profile.
func (s *Server) handleEnsureProfile(c *fiber.Ctx) error {
	user := currentUser(c)
	s.logger.Info("Ensuring profile for user", "user_id", user.UserID)

	profile, err := s.svc.EnsureProfile(c.UserContext(), user)
	if err != nil {
		return s.writeError(c, err)
	}
	return c.JSON(models.NewProfileResponse{
		Profile: profile,
		Success: true,
	})
}
