// Package intake turns unread inbox mail into pending messages.
package intake

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"replydesk/internal/gmail"
	"replydesk/internal/ledger"
	"replydesk/internal/model"
	"replydesk/internal/util"

	gmailv1 "google.golang.org/api/gmail/v1"
)

const (
	DefaultLimit = 50
	summaryLen   = 200
)

// Inbox yields unread mail and acknowledges what was ingested.
type Inbox interface {
	FetchUnread(ctx context.Context, limit int) ([]gmail.InboundMessage, error)
	MarkProcessed(ctx context.Context, ids []string) error
}

// Sink stores new pending messages and returns those it accepted.
type Sink interface {
	Ingest(ctx context.Context, msgs []model.Message) ([]model.Message, error)
}

type Intake struct {
	inbox   Inbox
	sink    Sink
	drafter ledger.Drafter
	log     *slog.Logger
}

// New builds an intake. A nil drafter leaves initial replies empty.
func New(inbox Inbox, sink Sink, drafter ledger.Drafter, log *slog.Logger) *Intake {
	if log == nil {
		log = slog.Default()
	}
	return &Intake{inbox: inbox, sink: sink, drafter: drafter, log: log}
}

// Run fetches up to limit unread messages, drafts a first reply for each,
// stores them as pending and marks them processed in the inbox. Messages
// already stored (same source id) are still marked processed. It returns
// the number of new messages.
func (in *Intake) Run(ctx context.Context, limit int) (int, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}
	inbound, fetchErr := in.inbox.FetchUnread(ctx, limit)
	if len(inbound) == 0 {
		return 0, fetchErr
	}
	if fetchErr != nil {
		in.log.Warn("some messages could not be fetched", "err", fetchErr)
	}

	msgs := make([]model.Message, 0, len(inbound))
	ids := make([]string, 0, len(inbound))
	for _, im := range inbound {
		m, ok := toMessage(im)
		if !ok {
			in.log.Warn("skipping message without sender", "source_id", im.ID, "from", im.From)
			continue
		}
		m.Reply = in.draft(ctx, m)
		msgs = append(msgs, m)
		ids = append(ids, im.ID)
	}

	stored, err := in.sink.Ingest(ctx, msgs)
	if err != nil {
		return 0, fmt.Errorf("store inbound: %w", err)
	}
	if err := in.inbox.MarkProcessed(ctx, ids); err != nil {
		return len(stored), fmt.Errorf("mark processed: %w", err)
	}
	in.log.Info("intake complete", "fetched", len(inbound), "new", len(stored))
	return len(stored), nil
}

func (in *Intake) draft(ctx context.Context, m model.Message) string {
	if in.drafter == nil {
		return ""
	}
	reply, err := in.drafter.Regenerate(ctx, model.RegenerateRequest{
		Message: m,
		Tone:    model.Tone{}.String(),
	})
	if err != nil {
		in.log.Warn("initial draft failed", "source_id", m.SourceID, "err", err)
		return ""
	}
	return reply
}

func toMessage(im gmail.InboundMessage) (model.Message, bool) {
	sender := util.NormalizeSender(im.From)
	if sender == "" {
		return model.Message{}, false
	}
	body := strings.TrimSpace(im.Body)
	return model.Message{
		SourceID:   im.ID,
		Sender:     sender,
		SenderName: util.SenderName(sender),
		Subject:    util.SubjectOrDefault(im.Subject),
		Body:       body,
		Summary:    summarize(body),
		Status:     model.StatusPending,
		CreatedAt:  im.Date,
	}, true
}

// summarize collapses whitespace and truncates to a short preview.
func summarize(body string) string {
	s := strings.Join(strings.Fields(body), " ")
	if utf8.RuneCountInString(s) <= summaryLen {
		return s
	}
	r := []rune(s)
	return string(r[:summaryLen]) + "..."
}

// GmailInbox reads from the authorized user's Gmail inbox.
type GmailInbox struct {
	svc *gmailv1.Service
}

func NewGmailInbox(svc *gmailv1.Service) *GmailInbox {
	return &GmailInbox{svc: svc}
}

func (g *GmailInbox) FetchUnread(ctx context.Context, limit int) ([]gmail.InboundMessage, error) {
	return gmail.FetchUnread(ctx, g.svc, limit)
}

func (g *GmailInbox) MarkProcessed(ctx context.Context, ids []string) error {
	return gmail.MarkProcessed(ctx, g.svc, ids)
}
