package draft

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"replydesk/internal/model"

	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testMsg = model.Message{
	ID:         "m1",
	Sender:     "jane@example.com",
	SenderName: "jane",
	Subject:    "Refund",
	Body:       "Where is my refund?",
	Reply:      "We are looking into it.",
}

func TestWebhookDrafterRequestAndNestedReply(t *testing.T) {
	var got webhookRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"llm_reply":{"llm_reply":"Your refund was issued today."}}`)
	}))
	defer srv.Close()

	d := NewWebhookDrafter(srv.URL, time.Second)
	reply, err := d.Regenerate(context.Background(), model.RegenerateRequest{
		Message: testMsg, Tone: "Friendly, Short length", Customization: "apologise",
	})
	require.NoError(t, err)
	assert.Equal(t, "Your refund was issued today.", reply)
	assert.Equal(t, "m1", got.Email.ID)
	assert.Equal(t, "We are looking into it.", got.Email.Reply)
	assert.Equal(t, "Friendly, Short length", got.Tone)
	assert.Equal(t, "apologise", got.ImprovementText)
}

func TestWebhookDrafterFailures(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{"missing reply", 200, `{"ok":true}`},
		{"null reply", 200, `{"llm_reply":null}`},
		{"nested missing", 200, `{"llm_reply":{"other":"x"}}`},
		{"blank reply", 200, `{"llm_reply":{"llm_reply":"  "}}`},
		{"malformed", 200, `not json`},
		{"server error", 500, `{"llm_reply":{"llm_reply":"x"}}`},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				io.WriteString(w, tc.body)
			}))
			defer srv.Close()

			_, err := NewWebhookDrafter(srv.URL, time.Second).Regenerate(context.Background(), model.RegenerateRequest{Message: testMsg})
			assert.True(t, model.IsDraftError(err), "got %v", err)
		})
	}
}

func TestParseReplyFlat(t *testing.T) {
	reply, err := parseReply([]byte(`{"llm_reply":"flat"}`))
	require.NoError(t, err)
	assert.Equal(t, "flat", reply)
}

func TestAnthropicDrafter(t *testing.T) {
	var body map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/messages", r.URL.Path)
		assert.Equal(t, "test-key", r.Header.Get("X-Api-Key"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{
			"id": "msg_1", "type": "message", "role": "assistant", "model": "claude-test",
			"content": [{"type": "text", "text": "  Hi Jane, your refund is on its way. "}],
			"stop_reason": "end_turn", "stop_sequence": null,
			"usage": {"input_tokens": 10, "output_tokens": 8}
		}`)
	}))
	defer srv.Close()

	d := NewAnthropicDrafter("test-key", "claude-test", option.WithBaseURL(srv.URL+"/"), option.WithMaxRetries(0))
	reply, err := d.Regenerate(context.Background(), model.RegenerateRequest{Message: testMsg, Tone: "Formal, No Change"})
	require.NoError(t, err)
	assert.Equal(t, "Hi Jane, your refund is on its way.", reply)
	assert.Equal(t, "claude-test", body["model"])

	msgs := body["messages"].([]any)
	require.Len(t, msgs, 1)
	raw, _ := json.Marshal(msgs[0])
	assert.Contains(t, string(raw), "Where is my refund?")
	assert.Contains(t, string(raw), "Formal, No Change")
}

func TestAnthropicDrafterError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		io.WriteString(w, `{"type":"error","error":{"type":"invalid_request_error","message":"bad"}}`)
	}))
	defer srv.Close()

	d := NewAnthropicDrafter("k", "", option.WithBaseURL(srv.URL+"/"), option.WithMaxRetries(0))
	_, err := d.Regenerate(context.Background(), model.RegenerateRequest{Message: testMsg})
	assert.True(t, model.IsDraftError(err))
}

func TestPromptMentionsCustomization(t *testing.T) {
	p := prompt(model.RegenerateRequest{Message: testMsg, Customization: "offer a voucher"})
	assert.True(t, strings.Contains(p, "offer a voucher"))
	assert.True(t, strings.Contains(p, "Rewrite the draft reply."))
}
