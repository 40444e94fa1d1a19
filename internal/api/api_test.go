package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"replydesk/internal/delivery"
	"replydesk/internal/metrics"
	"replydesk/internal/model"
	"replydesk/internal/service"
	"replydesk/internal/store"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubChannel struct{ err error }

func (s *stubChannel) Deliver(_ context.Context, m model.Message) (delivery.Result, error) {
	if s.err != nil {
		return delivery.Result{}, &model.DeliveryError{ID: m.ID, Err: s.err}
	}
	return delivery.Result{Channel: "stub", Detail: json.RawMessage(`{"messageId":"out-1"}`)}, nil
}

type stubDrafter struct{}

func (stubDrafter) Regenerate(_ context.Context, req model.RegenerateRequest) (string, error) {
	if req.Customization == "fail" {
		return "", errors.New("no response")
	}
	return req.Tone + ": " + req.Message.Reply, nil
}

type fixture struct {
	app     *fiber.App
	store   *store.SQLStore
	channel *stubChannel
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	st, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "api.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	ch := &stubChannel{}
	rec := metrics.New()
	svc := service.New(st, ch, service.Options{ChannelName: "stub", Drafter: stubDrafter{}, Metrics: rec})
	return &fixture{
		app:     New(svc, Config{Metrics: rec.Handler()}),
		store:   st,
		channel: ch,
	}
}

func (f *fixture) seed(t *testing.T, msgs ...model.Message) []model.Message {
	t.Helper()
	out, err := f.store.InsertMessages(context.Background(), msgs)
	require.NoError(t, err)
	return out
}

func do(t *testing.T, app *fiber.App, method, path, body string) (*http.Response, []byte) {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	b, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	resp.Body.Close()
	return resp, b
}

func TestPendingClaimsOnce(t *testing.T) {
	f := newFixture(t)
	f.seed(t, model.Message{Sender: "jane@example.com", SenderName: "jane", Subject: "Order", Body: "where?", Summary: "late", Reply: "soon"})

	resp, body := do(t, f.app, http.MethodGet, "/messages/pending", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var got []map[string]any
	require.NoError(t, json.Unmarshal(body, &got))
	require.Len(t, got, 1)
	assert.Equal(t, "jane@example.com", got[0]["sender"])
	assert.Equal(t, "where?", got[0]["customerEmail"])
	assert.Equal(t, "late", got[0]["customerEmailSummary"])
	assert.Equal(t, "soon", got[0]["Reply_of_email"])
	assert.Contains(t, got[0], "createdAT")

	_, body = do(t, f.app, http.MethodGet, "/messages/pending", "")
	assert.JSONEq(t, `[]`, string(body))

	_, body = do(t, f.app, http.MethodGet, "/messages/onscreen", "")
	require.NoError(t, json.Unmarshal(body, &got))
	assert.Len(t, got, 1)
}

func TestUpstreamRowsGetDisplayDefaults(t *testing.T) {
	f := newFixture(t)
	// Written by the drafting pipeline: no display name, no subject.
	f.seed(t, model.Message{Sender: "jane.doe@example.com", Reply: "draft"}, model.Message{Reply: "draft"})

	for _, path := range []string{"/messages/pending", "/messages/onscreen"} {
		resp, body := do(t, f.app, http.MethodGet, path, "")
		require.Equal(t, http.StatusOK, resp.StatusCode, path)
		var got []model.WireMessage
		require.NoError(t, json.Unmarshal(body, &got), path)
		require.Len(t, got, 2, path)
		names := []string{got[0].SenderName, got[1].SenderName}
		assert.ElementsMatch(t, []string{"jane.doe", "Unknown"}, names, path)
		assert.Equal(t, "No Subject", got[0].Subject, path)
		assert.Equal(t, "No Subject", got[1].Subject, path)
	}
}

func TestSendEmail(t *testing.T) {
	f := newFixture(t)
	m := f.seed(t, model.Message{Sender: "jane@example.com", Reply: "draft"})[0]
	do(t, f.app, http.MethodGet, "/messages/pending", "")

	resp, body := do(t, f.app, http.MethodPost, "/send-email/"+m.ID, `{"llm_reply":"final"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	assert.JSONEq(t, `{"success":true,"deliveryResult":{"messageId":"out-1"}}`, string(body))

	got, err := f.store.GetMessage(context.Background(), m.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusSent, got.Status)
	assert.Equal(t, "final", got.Reply)

	resp, _ = do(t, f.app, http.MethodPost, "/send-email/"+m.ID, `{}`)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestSendEmailBlankReply(t *testing.T) {
	f := newFixture(t)
	m := f.seed(t, model.Message{Sender: "jane@example.com", Reply: "stored draft"})[0]
	do(t, f.app, http.MethodGet, "/messages/pending", "")

	resp, body := do(t, f.app, http.MethodPost, "/send-email/"+m.ID, `{"llm_reply":"  "}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, string(body), model.ErrEmptyReply.Error())
	got, err := f.store.GetMessage(context.Background(), m.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusOnscreen, got.Status)
	assert.Equal(t, "stored draft", got.Reply)

	resp, body = do(t, f.app, http.MethodPost, "/send-email/"+m.ID, `{}`)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	got, err = f.store.GetMessage(context.Background(), m.ID)
	require.NoError(t, err)
	assert.Equal(t, "stored draft", got.Reply)
	assert.Equal(t, model.StatusSent, got.Status)
}

func TestSendEmailErrors(t *testing.T) {
	f := newFixture(t)

	resp, body := do(t, f.app, http.MethodPost, "/send-email/missing", `{"llm_reply":"x"}`)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Contains(t, string(body), `"error"`)

	m := f.seed(t, model.Message{Sender: "jane@example.com", Reply: "draft"})[0]
	do(t, f.app, http.MethodGet, "/messages/pending", "")
	f.channel.err = errors.New("relay down")
	resp, body = do(t, f.app, http.MethodPost, "/send-email/"+m.ID, `{"llm_reply":"x"}`)
	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
	var sr SendResponse
	require.NoError(t, json.Unmarshal(body, &sr))
	assert.False(t, sr.Success)
	assert.Contains(t, sr.Error, "relay down")

	got, err := f.store.GetMessage(context.Background(), m.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusOnscreen, got.Status)

	resp, _ = do(t, f.app, http.MethodPost, "/send-email/"+m.ID, `{not json`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestRegenerate(t *testing.T) {
	f := newFixture(t)
	m := f.seed(t, model.Message{Sender: "jane@example.com", Reply: "draft"})[0]

	resp, body := do(t, f.app, http.MethodPost, "/messages/"+m.ID+"/regenerate",
		`{"tone":"Friendly, Short length","improvement_text":"","llm_reply":"edited"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	assert.JSONEq(t, `{"llm_reply":"Friendly, Short length: edited"}`, string(body))

	resp, _ = do(t, f.app, http.MethodPost, "/messages/"+m.ID+"/regenerate", `{"improvement_text":"fail"}`)
	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)

	resp, _ = do(t, f.app, http.MethodPost, "/messages/nope/regenerate", `{}`)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestConversations(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.store.AppendConversation(context.Background(), "jane@example.com",
		model.ArchivedMessage{MessageID: "m1", Subject: "Order"}))

	resp, body := do(t, f.app, http.MethodGet, "/conversations/Jane@example.com", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var rec model.ConversationRecord
	require.NoError(t, json.Unmarshal(body, &rec))
	assert.Equal(t, "jane@example.com", rec.Email)
	require.Len(t, rec.Conversations, 1)
	assert.Equal(t, "m1", rec.Conversations[0].MessageID)

	resp, _ = do(t, f.app, http.MethodGet, "/conversations/nobody@example.com", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestHealthAndMetrics(t *testing.T) {
	f := newFixture(t)
	f.seed(t, model.Message{Sender: "a@x.com"})
	do(t, f.app, http.MethodGet, "/messages/pending", "")

	resp, body := do(t, f.app, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), `"onscreen":1`)

	resp, body = do(t, f.app, http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "replydesk_messages_claimed_total 1")
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, 404, statusFor(model.ErrNotFound))
	assert.Equal(t, 409, statusFor(model.ErrInvalidTransition))
	assert.Equal(t, 400, statusFor(model.ErrEmptyReply))
	assert.Equal(t, 502, statusFor(&model.DraftError{Err: errors.New("x")}))
	assert.Equal(t, 500, statusFor(errors.New("db gone")))
}
