package api

import (
	"github.com/gofiber/fiber/v2"

	"github.com/illegalcall/thumbdesk/internal/models"
	"github.com/illegalcall/thumbdesk/internal/service"
)

func (s *Server) handleAdminListRequests(c *fiber.Ctx) error {
	filter, err := models.ParseStatusFilter(c.Query("status"))
	if err != nil {
		return s.writeError(c, err)
	}

	requests, err := s.svc.ListRequests(c.UserContext(), currentUser(c), filter)
	if err != nil {
		return s.writeError(c, err)
	}
	if requests == nil {
		requests = []models.AdminRequest{}
	}
	return c.JSON(fiber.Map{
		"requests": requests,
		"count":    len(requests),
	})
}

func (s *Server) handleAdminSetStatus(c *fiber.Ctx) error {
	var body struct {
		Status string `json:"status"`
	}
	if err := c.BodyParser(&body); err != nil {
		return badRequest(c, "Invalid request body")
	}
	// The service rejects unknown statuses after the role check.
	updated, err := s.svc.SetStatus(c.UserContext(), currentUser(c), c.Params("id"), models.RequestStatus(body.Status))
	if err != nil {
		return s.writeError(c, err)
	}
	return c.JSON(fiber.Map{"request": updated})
}

func (s *Server) handleAdminAttachResult(c *fiber.Ctx) error {
	fh, err := c.FormFile("file")
	if err != nil {
		return s.writeError(c, models.Invalid("file", "a result image is required"))
	}
	data, err := readFormFile(fh)
	if err != nil {
		return s.writeError(c, models.Invalid("file", err.Error()))
	}

	updated, err := s.svc.AttachResult(c.UserContext(), currentUser(c), c.Params("id"), service.ImageUpload{
		Kind:     service.ImageMain,
		Filename: fh.Filename,
		Data:     data,
	})
	if err != nil {
		return s.writeError(c, err)
	}
	return c.JSON(fiber.Map{"request": updated})
}

func (s *Server) handleAdminSetResultURL(c *fiber.Ctx) error {
	var body struct {
		ResultURL string `json:"result_url"`
	}
	if err := c.BodyParser(&body); err != nil {
		return badRequest(c, "Invalid request body")
	}

	updated, err := s.svc.SetResultURL(c.UserContext(), currentUser(c), c.Params("id"), body.ResultURL)
	if err != nil {
		return s.writeError(c, err)
	}
	return c.JSON(fiber.Map{"request": updated})
}
