package delivery

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"replydesk/internal/gmail"
	"replydesk/internal/model"

	"github.com/emersion/go-message/mail"
	gmailv1 "google.golang.org/api/gmail/v1"
)

// GmailChannel sends replies through the Gmail API. Messages that came in
// through Gmail intake are answered in their original thread.
type GmailChannel struct {
	svc  *gmailv1.Service
	from *mail.Address
	now  func() time.Time
}

func NewGmailChannel(svc *gmailv1.Service, from string) (*GmailChannel, error) {
	addr, err := mail.ParseAddress(from)
	if err != nil {
		return nil, fmt.Errorf("parse gmail from %q: %w", from, err)
	}
	return &GmailChannel{svc: svc, from: addr, now: time.Now}, nil
}

func (g *GmailChannel) Deliver(ctx context.Context, m model.Message) (Result, error) {
	raw, err := Compose(g.from, m, g.now())
	if err != nil {
		return Result{}, failed(m.ID, err)
	}
	threadID := ""
	if m.SourceID != "" {
		// Best effort: a deleted original still gets a fresh thread.
		threadID, _ = gmail.ThreadOf(ctx, g.svc, m.SourceID)
	}
	sent, err := gmail.SendRaw(ctx, g.svc, raw, threadID)
	if err != nil {
		return Result{}, failed(m.ID, err)
	}
	detail, _ := json.Marshal(map[string]string{"id": sent.Id, "threadId": sent.ThreadId})
	return Result{Channel: "gmail", Detail: detail}, nil
}
