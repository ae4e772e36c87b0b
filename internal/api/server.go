package api

import (
	"context"
	"log/slog"

	"github.com/gofiber/adaptor/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	jwtware "github.com/gofiber/jwt/v3"
	"github.com/golang-jwt/jwt/v4"

	"github.com/illegalcall/thumbdesk/internal/config"
	"github.com/illegalcall/thumbdesk/internal/metrics"
	"github.com/illegalcall/thumbdesk/internal/models"
	"github.com/illegalcall/thumbdesk/internal/pkg/supabase"
	"github.com/illegalcall/thumbdesk/internal/service"
)

const identityKey = "identity"

// RequestService is the business layer the handlers call into.
type RequestService interface {
	Submit(ctx context.Context, user models.Identity, in service.SubmitInput) (service.SubmitResult, error)
	ListMine(ctx context.Context, user models.Identity) ([]models.ThumbnailRequest, error)
	GetMine(ctx context.Context, user models.Identity, id string) (models.ThumbnailRequest, error)
	Profile(ctx context.Context, user models.Identity) (models.ProfileView, error)
	EnsureProfile(ctx context.Context, user models.Identity) (models.Profile, error)
	ListRequests(ctx context.Context, user models.Identity, filter models.StatusFilter) ([]models.AdminRequest, error)
	SetStatus(ctx context.Context, user models.Identity, id string, status models.RequestStatus) (models.ThumbnailRequest, error)
	AttachResult(ctx context.Context, user models.Identity, id string, upload service.ImageUpload) (models.ThumbnailRequest, error)
	SetResultURL(ctx context.Context, user models.Identity, id, resultURL string) (models.ThumbnailRequest, error)
}

// AuthProvider signs users in and out against the identity service.
type AuthProvider interface {
	SignIn(ctx context.Context, email, password string) (supabase.Session, error)
	SignUp(ctx context.Context, email, password string) (supabase.Session, error)
	SignOut(ctx context.Context, token string) error
}

type Server struct {
	app    *fiber.App
	cfg    *config.Config
	svc    RequestService
	auth   AuthProvider
	logger *slog.Logger
}

// NewServer builds the HTTP API. When staticDir is set, locally stored
// uploads are served from it under /files.
func NewServer(cfg *config.Config, svc RequestService, auth AuthProvider, staticDir string, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	server := &Server{
		cfg:    cfg,
		svc:    svc,
		auth:   auth,
		logger: log,
	}

	app := fiber.New(fiber.Config{
		BodyLimit:    cfg.Server.BodyLimit,
		ErrorHandler: server.handleFiberError,
	})

	// Middleware
	app.Use(recover.New())
	app.Use(requestid.New())
	app.Use(logger.New(logger.Config{
		Format: "[${time}] ${locals:requestid} ${ip} ${method} ${path} ${status}\n",
	}))
	app.Use(cors.New(cors.Config{
		AllowOrigins: cfg.Server.AllowedOrigins,
		AllowMethods: "GET,POST,PATCH,OPTIONS",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization, " + IdempotencyHeader,
	}))
	app.Use(metrics.Middleware())
	if cfg.Server.MaxRequests > 0 {
		app.Use(limiter.New(limiter.Config{
			Max:        cfg.Server.MaxRequests,
			Expiration: cfg.Server.RequestTimeout,
		}))
	}

	app.Get("/healthz", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})
	app.Get("/metrics", adaptor.HTTPHandler(metrics.Handler()))
	if staticDir != "" {
		app.Static("/files", staticDir)
	}

	server.app = app
	server.setupRoutes()
	return server
}

func (s *Server) setupRoutes() {
	api := s.app.Group("/api")

	// Public routes
	api.Post("/auth/signup", s.handleSignup)
	api.Post("/auth/login", s.handleLogin)

	// Protected routes (require a Supabase access token)
	protected := api.Use(jwtware.New(jwtware.Config{
		SigningKey: []byte(s.cfg.JWT.Secret),
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			return s.writeError(c, models.ErrUnauthorized)
		},
	}), s.identify)

	protected.Post("/auth/logout", s.handleLogout)
	protected.Get("/me", s.handleGetProfile)
	protected.Post("/profiles", s.handleEnsureProfile)

	protected.Post("/requests", s.handleSubmitRequest)
	protected.Get("/requests", s.handleListMyRequests)
	protected.Get("/requests/:id", s.handleGetMyRequest)

	admin := protected.Group("/admin")
	admin.Get("/requests", s.handleAdminListRequests)
	admin.Patch("/requests/:id/status", s.handleAdminSetStatus)
	admin.Post("/requests/:id/result", s.handleAdminAttachResult)
	admin.Patch("/requests/:id/result-url", s.handleAdminSetResultURL)
}

func (s *Server) Start() error {
	return s.app.Listen(s.cfg.Server.Port)
}

// Shutdown stops accepting connections and waits for in-flight requests
// until ctx expires.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.app.ShutdownWithContext(ctx)
}

// identify turns the verified token into the caller identity.
func (s *Server) identify(c *fiber.Ctx) error {
	token, ok := c.Locals("user").(*jwt.Token)
	if !ok {
		return s.writeError(c, models.ErrUnauthorized)
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return s.writeError(c, models.ErrUnauthorized)
	}
	sub, _ := claims["sub"].(string)
	if sub == "" {
		return s.writeError(c, models.ErrUnauthorized)
	}
	email, _ := claims["email"].(string)
	c.Locals(identityKey, models.Identity{UserID: sub, Email: email, Token: token.Raw})
	return c.Next()
}

func currentUser(c *fiber.Ctx) models.Identity {
	user, _ := c.Locals(identityKey).(models.Identity)
	return user
}
