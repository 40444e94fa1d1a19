package delivery

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"replydesk/internal/model"
)

const DefaultTimeout = 30 * time.Second

// WebhookChannel hands the full record to an automation webhook that does
// the actual sending.
type WebhookChannel struct {
	url    string
	client *http.Client
}

func NewWebhookChannel(url string, timeout time.Duration) *WebhookChannel {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &WebhookChannel{url: url, client: &http.Client{Timeout: timeout}}
}

// webhookRecord keeps the field names the send-email workflow expects.
type webhookRecord struct {
	ID      string    `json:"_id"`
	Sender  string    `json:"client_email"`
	Subject string    `json:"email_subject"`
	Body    string    `json:"orignal_email"`
	Summary string    `json:"summaryOfOrignal_email"`
	Reply   string    `json:"llm_reply"`
	Status  string    `json:"status"`
	Created time.Time `json:"createdAT"`
}

// Deliver posts the record. A non-2xx status, a body that is not JSON, or a
// JSON body with "success": false all count as failure.
func (w *WebhookChannel) Deliver(ctx context.Context, m model.Message) (Result, error) {
	body, err := json.Marshal(webhookRecord{
		ID:      m.ID,
		Sender:  m.Sender,
		Subject: m.Subject,
		Body:    m.Body,
		Summary: m.Summary,
		Reply:   m.Reply,
		Status:  string(m.Status),
		Created: m.CreatedAt,
	})
	if err != nil {
		return Result{}, failed(m.ID, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return Result{}, failed(m.ID, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.client.Do(req)
	if err != nil {
		return Result{}, failed(m.ID, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return Result{}, failed(m.ID, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return Result{}, failed(m.ID, fmt.Errorf("webhook returned %s", resp.Status))
	}
	if !json.Valid(raw) {
		return Result{}, failed(m.ID, errors.New("webhook returned malformed JSON"))
	}
	var ack struct {
		Success *bool `json:"success"`
	}
	if json.Unmarshal(raw, &ack) == nil && ack.Success != nil && !*ack.Success {
		return Result{}, failed(m.ID, errors.New("webhook reported success=false"))
	}
	return Result{Channel: "webhook", Detail: raw}, nil
}
