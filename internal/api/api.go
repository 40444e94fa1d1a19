// Package api exposes the workflow over HTTP with Fiber.
package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"replydesk/internal/delivery"
	"replydesk/internal/model"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
)

// Service is the workflow the routes call into.
type Service interface {
	Onscreen(ctx context.Context) ([]model.Message, error)
	ClaimPending(ctx context.Context) ([]model.Message, error)
	Send(ctx context.Context, id, reply string) (delivery.Result, error)
	Regenerate(ctx context.Context, id, tone, customization, current string) (string, error)
	Conversation(ctx context.Context, email string) (model.ConversationRecord, error)
	Stats(ctx context.Context) (map[model.Status]int, error)
}

type Config struct {
	// Metrics is mounted at /metrics when set.
	Metrics   http.Handler
	AccessLog bool
	Logger    *slog.Logger
}

// ErrorResponse is the body of every non-2xx reply.
type ErrorResponse struct {
	Error string `json:"error"`
}

// New builds the Fiber app with all routes registered.
func New(svc Service, cfg Config) *fiber.App {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	app := fiber.New(fiber.Config{
		AppName:               "replydesk",
		DisableStartupMessage: true,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			var fe *fiber.Error
			if errors.As(err, &fe) {
				code = fe.Code
			}
			return c.Status(code).JSON(ErrorResponse{Error: err.Error()})
		},
	})

	if cfg.AccessLog {
		app.Use(logger.New())
	}
	app.Use(recover.New())
	app.Use(cors.New())

	NewMessageHandler(svc, cfg.Logger).RegisterRoutes(app)
	NewConversationHandler(svc).RegisterRoutes(app)
	NewHealthHandler(svc).RegisterRoutes(app)
	if cfg.Metrics != nil {
		app.Get("/metrics", adaptor.HTTPHandler(cfg.Metrics))
	}
	return app
}

// statusFor maps workflow errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, model.ErrNotFound):
		return fiber.StatusNotFound
	case errors.Is(err, model.ErrInvalidTransition):
		return fiber.StatusConflict
	case errors.Is(err, model.ErrEmptyReply):
		return fiber.StatusBadRequest
	case model.IsDeliveryError(err), model.IsDraftError(err):
		return fiber.StatusBadGateway
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return fiber.StatusServiceUnavailable
	}
	return fiber.StatusInternalServerError
}

func fail(c *fiber.Ctx, err error) error {
	return c.Status(statusFor(err)).JSON(ErrorResponse{Error: err.Error()})
}
