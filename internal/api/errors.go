package api

import (
	"errors"
	"fmt"

	"github.com/gofiber/fiber/v2"

	"github.com/illegalcall/thumbdesk/internal/models"
)

// Error codes returned in the "code" field.
const (
	CodeUnauthorized         = "unauthorized"
	CodeForbidden            = "forbidden"
	CodeInsufficientCredits  = "insufficient_credits"
	CodeValidationFailed     = "validation_failed"
	CodeNotFound             = "not_found"
	CodeSubmissionInProgress = "submission_in_progress"
	CodeUploadFailed         = "upload_failed"
	CodeStoreWriteFailed     = "store_write_failed"
	CodeInternal             = "internal_error"
)

const buyCreditsPath = "/buy-credits"

type apiError struct {
	status   int
	code     string
	message  string
	field    string
	internal bool
}

func classify(err error) apiError {
	var v *models.ValidationError
	switch {
	case errors.Is(err, models.ErrUnauthorized):
		return apiError{status: fiber.StatusUnauthorized, code: CodeUnauthorized, message: "Authentication required"}
	case errors.Is(err, models.ErrForbidden):
		return apiError{status: fiber.StatusForbidden, code: CodeForbidden, message: "Admin access required"}
	case errors.Is(err, models.ErrInsufficientCredits):
		return apiError{status: fiber.StatusPaymentRequired, code: CodeInsufficientCredits, message: "Not enough credits"}
	case errors.As(err, &v):
		return apiError{status: fiber.StatusBadRequest, code: CodeValidationFailed, message: v.Error(), field: v.Field}
	case errors.Is(err, models.ErrNotFound):
		return apiError{status: fiber.StatusNotFound, code: CodeNotFound, message: "Request not found"}
	case errors.Is(err, models.ErrSubmissionInFlight):
		return apiError{status: fiber.StatusConflict, code: CodeSubmissionInProgress, message: "A submission with this idempotency key is already in progress"}
	case errors.Is(err, models.ErrUploadFailed):
		return apiError{status: fiber.StatusBadGateway, code: CodeUploadFailed, message: "Failed to upload image", internal: true}
	case errors.Is(err, models.ErrStoreWrite):
		return apiError{status: fiber.StatusInternalServerError, code: CodeStoreWriteFailed, message: "Failed to save request", internal: true}
	default:
		return apiError{status: fiber.StatusInternalServerError, code: CodeInternal, message: "Internal server error", internal: true}
	}
}

// writeError maps a service error onto the JSON error contract.
func (s *Server) writeError(c *fiber.Ctx, err error) error {
	return s.respond(c, err, classify(err))
}

// writeSubmitError is writeError for the submission endpoint, where a failed
// request write is reported as a client error.
func (s *Server) writeSubmitError(c *fiber.Ctx, err error) error {
	e := classify(err)
	if e.code == CodeStoreWriteFailed {
		e.status = fiber.StatusBadRequest
	}
	return s.respond(c, err, e)
}

func (s *Server) respond(c *fiber.Ctx, err error, e apiError) error {
	message := e.message
	if e.internal {
		s.logger.Error("Request failed",
			"method", c.Method(),
			"path", c.Path(),
			"request_id", c.Locals("requestid"),
			"error", err,
		)
		if !s.cfg.Server.Production() {
			// In non-production environments, include error details
			message = fmt.Sprintf("%s: %v", message, err)
		}
	}

	body := fiber.Map{
		"error": message,
		"code":  e.code,
	}
	if e.field != "" {
		body["field"] = e.field
	}
	if e.code == CodeInsufficientCredits {
		body["redirect"] = buyCreditsPath
	}
	return c.Status(e.status).JSON(body)
}

// handleFiberError renders framework errors (unknown routes, oversized
// bodies, panics) in the same shape as service errors.
func (s *Server) handleFiberError(c *fiber.Ctx, err error) error {
	var fe *fiber.Error
	if errors.As(err, &fe) {
		code := CodeInternal
		switch fe.Code {
		case fiber.StatusNotFound:
			code = CodeNotFound
		case fiber.StatusRequestEntityTooLarge:
			code = CodeValidationFailed
		case fiber.StatusTooManyRequests:
			code = "rate_limited"
		}
		return c.Status(fe.Code).JSON(fiber.Map{"error": fe.Message, "code": code})
	}
	return s.writeError(c, err)
}

func badRequest(c *fiber.Ctx, message string) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
		"error": message,
		"code":  CodeValidationFailed,
	})
}
