package client

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"replydesk/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestListDecodesWireShape(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/messages/pending", r.URL.Path)
		io.WriteString(w, `[{"id":"m1","sender":"a@x.com","senderName":"a","subject":"s",
			"customerEmail":"body","createdAT":"2024-01-01T00:00:00Z",
			"customerEmailSummary":"sum","Reply_of_email":"draft"}]`)
	}))
	defer srv.Close()

	msgs, err := New(srv.URL, time.Second).Pending(context.Background())
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	m := msgs[0]
	assert.Equal(t, "m1", m.ID)
	assert.Equal(t, "body", m.Body)
	assert.Equal(t, "draft", m.Reply)
	assert.Equal(t, model.StatusOnscreen, m.Status)
	assert.Equal(t, 2024, m.CreatedAt.Year())
}

func TestSend(t *testing.T) {
	var got map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/send-email/ok":
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
			io.WriteString(w, `{"success":true,"deliveryResult":{}}`)
		case "/send-email/gone":
			w.WriteHeader(http.StatusNotFound)
			io.WriteString(w, `{"error":"message not found"}`)
		default:
			w.WriteHeader(http.StatusBadGateway)
			io.WriteString(w, `{"success":false,"error":"relay down"}`)
		}
	}))
	defer srv.Close()
	c := New(srv.URL, time.Second)
	ctx := context.Background()

	require.NoError(t, c.Send(ctx, "ok", "final"))
	assert.Equal(t, "final", got["llm_reply"])

	assert.ErrorIs(t, c.Send(ctx, "gone", "x"), model.ErrNotFound)

	err := c.Send(ctx, "bad", "x")
	assert.True(t, model.IsDeliveryError(err))
	assert.Contains(t, err.Error(), "relay down")
}

func TestSendUnreachableIsDeliveryError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	base := srv.URL
	srv.Close()
	err := New(base, time.Second).Send(context.Background(), "m1", "x")
	assert.True(t, model.IsDeliveryError(err))
}

func TestRegenerate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var in map[string]string
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&in))
		if in["improvement_text"] == "blank" {
			io.WriteString(w, `{"llm_reply":""}`)
			return
		}
		assert.Equal(t, "/messages/m1/regenerate", r.URL.Path)
		io.WriteString(w, `{"llm_reply":"`+in["tone"]+`|`+in["llm_reply"]+`"}`)
	}))
	defer srv.Close()
	c := New(srv.URL, time.Second)

	reply, err := c.Regenerate(context.Background(), model.RegenerateRequest{
		Message: model.Message{ID: "m1", Reply: "current"},
		Tone:    "Formal, No Change",
	})
	require.NoError(t, err)
	assert.Equal(t, "Formal, No Change|current", reply)

	_, err = c.Regenerate(context.Background(), model.RegenerateRequest{
		Message: model.Message{ID: "m1"}, Customization: "blank",
	})
	assert.True(t, model.IsDraftError(err))
}
