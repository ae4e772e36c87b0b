package api

import (
	"fmt"
	"io"
	"mime/multipart"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/illegalcall/thumbdesk/internal/models"
	"github.com/illegalcall/thumbdesk/internal/service"
)

// IdempotencyHeader lets clients retry a submission without paying twice.
const IdempotencyHeader = "Idempotency-Key"

type submitRequest struct {
	Title           string   `json:"title" form:"title"`
	Description     string   `json:"description" form:"description"`
	ReferenceURLs   []string `json:"reference_urls"`
	FaceReactionURL string   `json:"face_reaction_url" form:"face_reaction_url"`
	MainImageURL    string   `json:"main_image_url" form:"main_image_url"`
}

type SubmitResponse struct {
	Success          bool                    `json:"success"`
	RequestID        string                  `json:"request_id"`
	CreditsRemaining int                     `json:"credits_remaining"`
	Replayed         bool                    `json:"replayed"`
	Request          models.ThumbnailRequest `json:"request"`
}

// Multipart file fields.
var imageFields = []struct {
	name string
	kind service.ImageKind
}{
	{"reference_images", service.ImageReference},
	{"face_image", service.ImageFaceReaction},
	{"main_image", service.ImageMain},
}

func (s *Server) handleSubmitRequest(c *fiber.Ctx) error {
	user := currentUser(c)

	in, err := parseSubmission(c)
	if err != nil {
		return s.writeSubmitError(c, err)
	}
	in.IdempotencyKey = c.Get(IdempotencyHeader)

	res, err := s.svc.Submit(c.UserContext(), user, in)
	if err != nil {
		return s.writeSubmitError(c, err)
	}

	status := fiber.StatusCreated
	if res.Replayed {
		status = fiber.StatusOK
	}
	return c.Status(status).JSON(SubmitResponse{
		Success:          true,
		RequestID:        res.Request.ID,
		CreditsRemaining: res.CreditsRemaining,
		Replayed:         res.Replayed,
		Request:          res.Request,
	})
}

// parseSubmission accepts either a JSON body or a multipart form carrying
// the same text fields plus image files.
func parseSubmission(c *fiber.Ctx) (service.SubmitInput, error) {
	if strings.HasPrefix(c.Get(fiber.HeaderContentType), fiber.MIMEMultipartForm) {
		return parseMultipartSubmission(c)
	}

	var req submitRequest
	if err := c.BodyParser(&req); err != nil {
		return service.SubmitInput{}, models.Invalid("body", "invalid request body")
	}
	return service.SubmitInput{
		Title:           req.Title,
		Description:     req.Description,
		ReferenceURLs:   req.ReferenceURLs,
		FaceReactionURL: req.FaceReactionURL,
		MainImageURL:    req.MainImageURL,
	}, nil
}

func parseMultipartSubmission(c *fiber.Ctx) (service.SubmitInput, error) {
	form, err := c.MultipartForm()
	if err != nil {
		return service.SubmitInput{}, models.Invalid("body", "invalid multipart form")
	}

	in := service.SubmitInput{
		Title:           firstValue(form, "title"),
		Description:     firstValue(form, "description"),
		FaceReactionURL: firstValue(form, "face_reaction_url"),
		MainImageURL:    firstValue(form, "main_image_url"),
	}
	// Reference URLs come as repeated fields or one per line.
	for _, v := range form.Value["reference_urls"] {
		in.ReferenceURLs = append(in.ReferenceURLs, strings.Split(v, "\n")...)
	}

	for _, field := range imageFields {
		for _, fh := range form.File[field.name] {
			data, err := readFormFile(fh)
			if err != nil {
				return service.SubmitInput{}, models.Invalid(field.name, err.Error())
			}
			in.Images = append(in.Images, service.ImageUpload{
				Kind:     field.kind,
				Filename: fh.Filename,
				Data:     data,
			})
		}
	}
	return in, nil
}

func firstValue(form *multipart.Form, key string) string {
	if vals := form.Value[key]; len(vals) > 0 {
		return vals[0]
	}
	return ""
}

func readFormFile(fh *multipart.FileHeader) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, fmt.Errorf("could not read %s", fh.Filename)
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("could not read %s", fh.Filename)
	}
	return data, nil
}

func (s *Server) handleListMyRequests(c *fiber.Ctx) error {
	requests, err := s.svc.ListMine(c.UserContext(), currentUser(c))
	if err != nil {
		return s.writeError(c, err)
	}
	if requests == nil {
		requests = []models.ThumbnailRequest{}
	}
	return c.JSON(fiber.Map{"requests": requests})
}

func (s *Server) handleGetMyRequest(c *fiber.Ctx) error {
	req, err := s.svc.GetMine(c.UserContext(), currentUser(c), c.Params("id"))
	if err != nil {
		return s.writeError(c, err)
	}
	return c.JSON(fiber.Map{"request": req})
}
