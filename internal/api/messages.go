package api

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"replydesk/internal/model"

	"github.com/gofiber/fiber/v2"
)

// SendRequest is the body of POST /send-email/:id. A missing llm_reply
// sends the stored draft; a present but blank one is refused.
type SendRequest struct {
	Reply *string `json:"llm_reply"`
}

type SendResponse struct {
	Success        bool            `json:"success"`
	DeliveryResult json.RawMessage `json:"deliveryResult,omitempty"`
	Error          string          `json:"error,omitempty"`
}

// RegenerateRequest is the body of POST /messages/:id/regenerate. Reply is
// the draft currently on screen and may be empty.
type RegenerateRequest struct {
	Tone            string `json:"tone"`
	ImprovementText string `json:"improvement_text"`
	Reply           string `json:"llm_reply"`
}

type RegenerateResponse struct {
	Reply string `json:"llm_reply"`
}

type MessageHandler struct {
	svc Service
	log *slog.Logger
}

func NewMessageHandler(svc Service, log *slog.Logger) *MessageHandler {
	return &MessageHandler{svc: svc, log: log}
}

func (h *MessageHandler) RegisterRoutes(app *fiber.App) {
	app.Get("/messages/onscreen", h.onscreen)
	app.Get("/messages/pending", h.pending)
	app.Post("/messages/:id/regenerate", h.regenerate)
	app.Post("/send-email/:id", h.send)
}

func wire(msgs []model.Message) []model.WireMessage {
	out := make([]model.WireMessage, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, model.ToWire(m))
	}
	return out
}

func (h *MessageHandler) onscreen(c *fiber.Ctx) error {
	msgs, err := h.svc.Onscreen(c.UserContext())
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(wire(msgs))
}

// pending claims every pending message; a message is returned by exactly one
// call.
func (h *MessageHandler) pending(c *fiber.Ctx) error {
	msgs, err := h.svc.ClaimPending(c.UserContext())
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(wire(msgs))
}

func (h *MessageHandler) send(c *fiber.Ctx) error {
	id := c.Params("id")
	var req SendRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "Invalid request: " + err.Error()})
		}
	}

	reply := ""
	if req.Reply != nil {
		if strings.TrimSpace(*req.Reply) == "" {
			return fail(c, fmt.Errorf("send %s: %w", id, model.ErrEmptyReply))
		}
		reply = *req.Reply
	}
	res, err := h.svc.Send(c.UserContext(), id, reply)
	if err != nil {
		h.log.Warn("send-email", "id", id, "err", err)
		if model.IsDeliveryError(err) {
			return c.Status(fiber.StatusBadGateway).JSON(SendResponse{Success: false, Error: err.Error()})
		}
		return fail(c, err)
	}
	detail := res.Detail
	if len(detail) == 0 {
		detail, _ = json.Marshal(res)
	}
	return c.JSON(SendResponse{Success: true, DeliveryResult: detail})
}

func (h *MessageHandler) regenerate(c *fiber.Ctx) error {
	id := c.Params("id")
	var req RegenerateRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "Invalid request: " + err.Error()})
	}
	reply, err := h.svc.Regenerate(c.UserContext(), id, req.Tone, req.ImprovementText, req.Reply)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(RegenerateResponse{Reply: reply})
}
