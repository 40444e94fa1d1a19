package delivery

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"replydesk/internal/model"

	"github.com/emersion/go-message/mail"
	"github.com/emersion/go-smtp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	gmailv1 "google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"
)

var reply = model.Message{
	ID:         "m1",
	SourceID:   "g1",
	Sender:     "jane@example.com",
	SenderName: "jane",
	Subject:    "Order 42",
	Body:       "Where is it?",
	Summary:    "Late order",
	Reply:      "Hi Jane,\n\nYour order **ships today**.",
	Status:     model.StatusOnscreen,
	CreatedAt:  time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
}

func TestWebhookChannelSuccess(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		io.WriteString(w, `{"success":true,"messageId":"abc"}`)
	}))
	defer srv.Close()

	res, err := NewWebhookChannel(srv.URL, time.Second).Deliver(context.Background(), reply)
	require.NoError(t, err)
	assert.Equal(t, "webhook", res.Channel)
	assert.JSONEq(t, `{"success":true,"messageId":"abc"}`, string(res.Detail))

	assert.Equal(t, "m1", got["_id"])
	assert.Equal(t, "jane@example.com", got["client_email"])
	assert.Equal(t, "Order 42", got["email_subject"])
	assert.Equal(t, "Where is it?", got["orignal_email"])
	assert.Equal(t, reply.Reply, got["llm_reply"])
}

func TestWebhookChannelFailures(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{"server error", 500, `{"error":"down"}`},
		{"malformed", 200, `<html>ok</html>`},
		{"empty", 200, ``},
		{"reported failure", 200, `{"success":false}`},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				io.WriteString(w, tc.body)
			}))
			defer srv.Close()
			_, err := NewWebhookChannel(srv.URL, time.Second).Deliver(context.Background(), reply)
			assert.True(t, model.IsDeliveryError(err), "got %v", err)
		})
	}
}

func TestWebhookChannelUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()
	_, err := NewWebhookChannel(url, time.Second).Deliver(context.Background(), reply)
	assert.True(t, model.IsDeliveryError(err))
}

func TestCompose(t *testing.T) {
	from := &mail.Address{Name: "Support", Address: "support@shop.test"}
	raw, err := Compose(from, reply, time.Date(2024, 2, 1, 9, 0, 0, 0, time.UTC))
	require.NoError(t, err)

	mr, err := mail.CreateReader(strings.NewReader(string(raw)))
	require.NoError(t, err)
	subject, _ := mr.Header.Subject()
	assert.Equal(t, "Re: Order 42", subject)
	to, err := mr.Header.AddressList("To")
	require.NoError(t, err)
	require.Len(t, to, 1)
	assert.Equal(t, "jane@example.com", to[0].Address)

	parts := map[string]string{}
	for {
		p, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		h := p.Header.(*mail.InlineHeader)
		ct, _, _ := h.ContentType()
		b, _ := io.ReadAll(p.Body)
		parts[ct] = string(b)
	}
	assert.Equal(t, reply.Reply, strings.ReplaceAll(parts["text/plain"], "\r\n", "\n"))
	assert.Contains(t, parts["text/html"], "<strong>ships today</strong>")
}

func TestReplySubject(t *testing.T) {
	assert.Equal(t, "Re: No Subject", replySubject(""))
	assert.Equal(t, "RE: hello", replySubject("RE: hello"))
}

// smtp test server

type capture struct {
	mu      sync.Mutex
	from    string
	to      []string
	data    []byte
	overTLS bool
}

type backend struct{ c *capture }

func (b backend) NewSession(conn *smtp.Conn) (smtp.Session, error) {
	if _, ok := conn.TLSConnectionState(); ok {
		b.c.mu.Lock()
		b.c.overTLS = true
		b.c.mu.Unlock()
	}
	return &session{c: b.c}, nil
}

type session struct{ c *capture }

func (s *session) Mail(from string, _ *smtp.MailOptions) error {
	s.c.mu.Lock()
	defer s.c.mu.Unlock()
	s.c.from = from
	return nil
}

func (s *session) Rcpt(to string, _ *smtp.RcptOptions) error {
	s.c.mu.Lock()
	defer s.c.mu.Unlock()
	s.c.to = append(s.c.to, to)
	return nil
}

func (s *session) Data(r io.Reader) error {
	b, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	s.c.mu.Lock()
	defer s.c.mu.Unlock()
	s.c.data = b
	return nil
}

func (s *session) Reset()        {}
func (s *session) Logout() error { return nil }

func startSMTP(t *testing.T, tlsConfig *tls.Config) (string, *capture) {
	t.Helper()
	c := &capture{}
	srv := smtp.NewServer(backend{c: c})
	srv.Domain = "localhost"
	srv.AllowInsecureAuth = true
	srv.TLSConfig = tlsConfig
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	go srv.Serve(ln)
	t.Cleanup(func() { srv.Close() })
	return ln.Addr().String(), c
}

func TestSMTPChannel(t *testing.T) {
	addr, c := startSMTP(t, nil)
	ch, err := NewSMTPChannel(SMTPConfig{Addr: addr, From: "Support <support@shop.test>"})
	require.NoError(t, err)

	res, err := ch.Deliver(context.Background(), reply)
	require.NoError(t, err)
	assert.Equal(t, "smtp", res.Channel)

	c.mu.Lock()
	defer c.mu.Unlock()
	assert.Equal(t, "support@shop.test", c.from)
	assert.Equal(t, []string{"jane@example.com"}, c.to)
	assert.Contains(t, string(c.data), "Subject: Re: Order 42")
	assert.False(t, c.overTLS)
}

func TestSMTPChannelStartTLS(t *testing.T) {
	// httptest's certificate covers 127.0.0.1.
	ts := httptest.NewTLSServer(http.NotFoundHandler())
	defer ts.Close()
	roots := x509.NewCertPool()
	roots.AddCert(ts.Certificate())

	addr, c := startSMTP(t, ts.TLS)
	ch, err := NewSMTPChannel(SMTPConfig{
		Addr: addr, Username: "agent", Password: "secret",
		From: "support@shop.test", StartTLS: true,
	})
	require.NoError(t, err)
	ch.tls = &tls.Config{RootCAs: roots}

	_, err = ch.Deliver(context.Background(), reply)
	require.NoError(t, err)

	c.mu.Lock()
	defer c.mu.Unlock()
	assert.True(t, c.overTLS)
	assert.Equal(t, []string{"jane@example.com"}, c.to)
}

func TestSMTPChannelStartTLSUnsupported(t *testing.T) {
	addr, _ := startSMTP(t, nil)
	ch, err := NewSMTPChannel(SMTPConfig{Addr: addr, From: "support@shop.test", StartTLS: true})
	require.NoError(t, err)

	_, err = ch.Deliver(context.Background(), reply)
	require.Error(t, err)
	assert.True(t, model.IsDeliveryError(err))
	assert.Contains(t, err.Error(), "starttls")
}

func TestSMTPChannelHonoursCancelledContext(t *testing.T) {
	addr, _ := startSMTP(t, nil)
	ch, err := NewSMTPChannel(SMTPConfig{Addr: addr, From: "support@shop.test"})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = ch.Deliver(ctx, reply)
	assert.True(t, model.IsDeliveryError(err))
}

func TestSMTPChannelUnreachable(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	ln.Close()

	ch, err := NewSMTPChannel(SMTPConfig{Addr: addr, From: "support@shop.test"})
	require.NoError(t, err)
	_, err = ch.Deliver(context.Background(), reply)
	assert.True(t, model.IsDeliveryError(err))
}

func TestNewSMTPChannelRejectsBadFrom(t *testing.T) {
	_, err := NewSMTPChannel(SMTPConfig{From: "not an address"})
	assert.Error(t, err)
}

func TestGmailChannelRepliesInThread(t *testing.T) {
	var sent gmailv1.Message
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch {
		case r.Method == http.MethodGet && r.URL.Path == "/gmail/v1/users/me/messages/g1":
			io.WriteString(w, `{"id":"g1","threadId":"thread-1"}`)
		case r.Method == http.MethodPost && r.URL.Path == "/gmail/v1/users/me/messages/send":
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&sent))
			io.WriteString(w, `{"id":"out-1","threadId":"thread-1"}`)
		default:
			http.Error(w, `{"error":{"code":404}}`, http.StatusNotFound)
		}
	}))
	defer srv.Close()

	svc, err := gmailv1.NewService(context.Background(), option.WithHTTPClient(srv.Client()), option.WithEndpoint(srv.URL+"/"))
	require.NoError(t, err)
	ch, err := NewGmailChannel(svc, "support@shop.test")
	require.NoError(t, err)

	res, err := ch.Deliver(context.Background(), reply)
	require.NoError(t, err)
	assert.Equal(t, "gmail", res.Channel)
	assert.JSONEq(t, `{"id":"out-1","threadId":"thread-1"}`, string(res.Detail))
	assert.Equal(t, "thread-1", sent.ThreadId)
	assert.NotEmpty(t, sent.Raw)
}
