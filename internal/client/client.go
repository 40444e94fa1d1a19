// Package client is the console's view of the replydesk API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"replydesk/internal/model"
)

const DefaultTimeout = 30 * time.Second

// Client calls the API server. It satisfies session.Backend and
// ledger.Drafter.
type Client struct {
	base string
	http *http.Client
}

func New(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		base: strings.TrimRight(baseURL, "/"),
		http: &http.Client{Timeout: timeout},
	}
}

// apiError carries a non-2xx reply.
type apiError struct {
	Status int
	Msg    string
}

func (e *apiError) Error() string {
	if e.Msg == "" {
		return fmt.Sprintf("api returned %d", e.Status)
	}
	return fmt.Sprintf("api returned %d: %s", e.Status, e.Msg)
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var e struct {
			Error string `json:"error"`
		}
		_ = json.Unmarshal(raw, &e)
		return &apiError{Status: resp.StatusCode, Msg: e.Error}
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode %s %s: %w", method, path, err)
	}
	return nil
}

func (c *Client) list(ctx context.Context, path string) ([]model.Message, error) {
	var wire []model.WireMessage
	if err := c.do(ctx, http.MethodGet, path, nil, &wire); err != nil {
		return nil, fmt.Errorf("get %s: %w", path, err)
	}
	out := make([]model.Message, 0, len(wire))
	for _, w := range wire {
		out = append(out, model.FromWire(w))
	}
	return out, nil
}

func (c *Client) Onscreen(ctx context.Context) ([]model.Message, error) {
	return c.list(ctx, "/messages/onscreen")
}

func (c *Client) Pending(ctx context.Context) ([]model.Message, error) {
	return c.list(ctx, "/messages/pending")
}

// Send posts the final reply. A 404 maps to model.ErrNotFound; every other
// failure is a *model.DeliveryError.
func (c *Client) Send(ctx context.Context, id, reply string) error {
	var out struct {
		Success bool   `json:"success"`
		Error   string `json:"error"`
	}
	err := c.do(ctx, http.MethodPost, "/send-email/"+url.PathEscape(id), map[string]string{"llm_reply": reply}, &out)
	if err != nil {
		var ae *apiError
		if errors.As(err, &ae) && ae.Status == http.StatusNotFound {
			return fmt.Errorf("send %s: %w", id, model.ErrNotFound)
		}
		return &model.DeliveryError{ID: id, Err: err}
	}
	if !out.Success {
		return &model.DeliveryError{ID: id, Err: errors.New("server reported failure: " + out.Error)}
	}
	return nil
}

// Regenerate asks the server's draft service for a new reply. Failures are
// *model.DraftError.
func (c *Client) Regenerate(ctx context.Context, req model.RegenerateRequest) (string, error) {
	in := map[string]string{
		"tone":             req.Tone,
		"improvement_text": req.Customization,
		"llm_reply":        req.Message.Reply,
	}
	var out struct {
		Reply string `json:"llm_reply"`
	}
	id := req.Message.ID
	if err := c.do(ctx, http.MethodPost, "/messages/"+url.PathEscape(id)+"/regenerate", in, &out); err != nil {
		return "", &model.DraftError{ID: id, Err: err}
	}
	if strings.TrimSpace(out.Reply) == "" {
		return "", &model.DraftError{ID: id, Err: errors.New("empty reply")}
	}
	return out.Reply, nil
}
