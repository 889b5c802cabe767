// Package server exposes the backend over HTTP. All business routes live
// under /api/v1 and require a gateway-injected X-User-ID header; /healthz and
// /metrics are unauthenticated.
package server

import (
	"context"
	"errors"
	"net/http"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const userIDKey = "userID"

// HealthChecker reports backend storage health.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// Server wires the HTTP routes to the service layer.
type Server struct {
	app    *fiber.App
	health HealthChecker
	logger zerolog.Logger
}

// New creates the HTTP server with all routes registered.
func New(chat ChatRunner, rewards Rewarder, offers OfferGenerator, health HealthChecker, metricsHandler http.Handler, logger zerolog.Logger) *Server {
	s := &Server{
		health: health,
		logger: logger.With().Str("component", "http_server").Logger(),
	}

	s.app = fiber.New(fiber.Config{
		ErrorHandler:          s.errorHandler,
		DisableStartupMessage: true,
	})

	s.app.Use(recover.New())
	s.app.Use(requestid.New())

	s.app.Get("/healthz", s.handleHealth)
	s.app.Get("/metrics", adaptor.HTTPHandler(metricsHandler))

	h := &handlers{chat: chat, rewards: rewards, offers: offers, logger: s.logger}

	api := s.app.Group("/api/v1", s.requireIdentity)
	api.Post("/chat", h.handleChat)
	api.Post("/rewards", h.handleReward)
	api.Post("/offer", h.handleGenerateOffer)
	api.Get("/offer/:projectId", h.handleGetOffer)

	return s
}

// Listen starts serving on the given address. Blocks until Shutdown.
func (s *Server) Listen(addr string) error {
	s.logger.Info().Str("addr", addr).Msg("HTTP server listening")
	return s.app.Listen(addr)
}

// Shutdown gracefully stops the server, honoring the context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.app.ShutdownWithContext(ctx)
}

// App exposes the fiber app for tests.
func (s *Server) App() *fiber.App {
	return s.app
}

// requireIdentity extracts the gateway-injected user identity. Requests
// without a well-formed X-User-ID never reach a handler.
func (s *Server) requireIdentity(c *fiber.Ctx) error {
	raw := c.Get("X-User-ID")
	if raw == "" {
		return fiber.NewError(fiber.StatusUnauthorized, "missing X-User-ID header")
	}
	userID, err := uuid.Parse(raw)
	if err != nil {
		return fiber.NewError(fiber.StatusUnauthorized, "malformed X-User-ID header")
	}
	c.Locals(userIDKey, userID)
	return c.Next()
}

func (s *Server) handleHealth(c *fiber.Ctx) error {
	if err := s.health.HealthCheck(c.Context()); err != nil {
		s.logger.Error().Err(err).Msg("health check failed")
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"status": "unhealthy"})
	}
	return c.JSON(fiber.Map{"status": "ok"})
}

// errorHandler renders every error as a ProblemDetail body.
func (s *Server) errorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	title := "Internal Server Error"
	detail := ""

	var fe *fiber.Error
	if errors.As(err, &fe) {
		code = fe.Code
		title = http.StatusText(code)
		detail = fe.Message
	}

	if code >= 500 {
		s.logger.Error().Err(err).
			Str("path", c.Path()).
			Str("request_id", requestID(c)).
			Msg("request failed")
		// Internal details stay in the log.
		detail = ""
	}

	return c.Status(code).JSON(ProblemDetail{Status: code, Title: title, Detail: detail})
}

func requestID(c *fiber.Ctx) string {
	if id, ok := c.Locals(requestid.ConfigDefault.ContextKey).(string); ok {
		return id
	}
	return ""
}
