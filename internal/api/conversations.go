package api

import (
	"net/url"
	"strings"

	"github.com/gofiber/fiber/v2"
)

type ConversationHandler struct {
	svc Service
}

func NewConversationHandler(svc Service) *ConversationHandler {
	return &ConversationHandler{svc: svc}
}

func (h *ConversationHandler) RegisterRoutes(app *fiber.App) {
	app.Get("/conversations/:email", h.get)
}

func (h *ConversationHandler) get(c *fiber.Ctx) error {
	email, err := url.PathUnescape(c.Params("email"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "Invalid email"})
	}
	rec, err := h.svc.Conversation(c.UserContext(), strings.ToLower(email))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(rec)
}

type HealthHandler struct {
	svc Service
}

func NewHealthHandler(svc Service) *HealthHandler {
	return &HealthHandler{svc: svc}
}

func (h *HealthHandler) RegisterRoutes(app *fiber.App) {
	app.Get("/healthz", h.health)
}

func (h *HealthHandler) health(c *fiber.Ctx) error {
	counts, err := h.svc.Stats(c.UserContext())
	if err != nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(ErrorResponse{Error: err.Error()})
	}
	return c.JSON(fiber.Map{"status": "ok", "messages": counts})
}
