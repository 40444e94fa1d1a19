// Package draft talks to the services that write reply drafts.
package draft

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"replydesk/internal/model"
)

const DefaultTimeout = 60 * time.Second

// WebhookDrafter posts regenerate requests to an automation webhook (an n8n
// workflow in the usual deployment).
type WebhookDrafter struct {
	url    string
	client *http.Client
}

func NewWebhookDrafter(url string, timeout time.Duration) *WebhookDrafter {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &WebhookDrafter{url: url, client: &http.Client{Timeout: timeout}}
}

type webhookRequest struct {
	Email           model.WireMessage `json:"email"`
	Tone            string            `json:"tone"`
	ImprovementText string            `json:"improvement_text"`
}

// Regenerate returns the reply found at llm_reply.llm_reply in the webhook
// response (a flat llm_reply string is accepted too). Anything else is a
// *model.DraftError.
func (w *WebhookDrafter) Regenerate(ctx context.Context, req model.RegenerateRequest) (string, error) {
	id := req.Message.ID
	body, err := json.Marshal(webhookRequest{
		Email:           model.ToWire(req.Message),
		Tone:            req.Tone,
		ImprovementText: req.Customization,
	})
	if err != nil {
		return "", &model.DraftError{ID: id, Err: err}
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return "", &model.DraftError{ID: id, Err: err}
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := w.client.Do(httpReq)
	if err != nil {
		return "", &model.DraftError{ID: id, Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", &model.DraftError{ID: id, Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", &model.DraftError{ID: id, Err: fmt.Errorf("webhook returned %s", resp.Status)}
	}
	reply, err := parseReply(raw)
	if err != nil {
		return "", &model.DraftError{ID: id, Err: err}
	}
	return reply, nil
}

var errNoReply = errors.New("no llm_reply in response")

func parseReply(raw []byte) (string, error) {
	var top struct {
		LLMReply json.RawMessage `json:"llm_reply"`
	}
	if err := json.Unmarshal(raw, &top); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	if len(top.LLMReply) == 0 || string(top.LLMReply) == "null" {
		return "", errNoReply
	}

	var reply string
	var nested struct {
		LLMReply *string `json:"llm_reply"`
	}
	switch {
	case json.Unmarshal(top.LLMReply, &nested) == nil && nested.LLMReply != nil:
		reply = *nested.LLMReply
	case json.Unmarshal(top.LLMReply, &reply) == nil:
	default:
		return "", errNoReply
	}
	if strings.TrimSpace(reply) == "" {
		return "", errNoReply
	}
	return reply, nil
}
