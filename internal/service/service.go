// Package service implements the server side of the workflow on top of the
// message store, the delivery channel and the draft service.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"replydesk/internal/delivery"
	"replydesk/internal/ledger"
	"replydesk/internal/lifecycle"
	"replydesk/internal/model"
	"replydesk/internal/util"
)

// Store is the subset of the message store the service needs.
type Store interface {
	InsertMessages(ctx context.Context, msgs []model.Message) ([]model.Message, error)
	ClaimPending(ctx context.Context) ([]model.Message, error)
	ListByStatus(ctx context.Context, status model.Status) ([]model.Message, error)
	GetMessage(ctx context.Context, id string) (model.Message, error)
	UpdateReply(ctx context.Context, id, reply string) error
	MarkSent(ctx context.Context, id string) error
	Conversation(ctx context.Context, email string) (model.ConversationRecord, error)
	CountByStatus(ctx context.Context) (map[model.Status]int, error)
}

// Recorder receives workflow metrics. A nil Recorder disables them.
type Recorder interface {
	Claimed(n int)
	ObserveDelivery(channel string, ok bool, d time.Duration)
	ObserveRegeneration(ok bool)
}

type Options struct {
	// ChannelName labels delivery metrics, e.g. "webhook".
	ChannelName string
	Drafter     ledger.Drafter
	Metrics     Recorder
	Logger      *slog.Logger
}

type Service struct {
	store   Store
	channel delivery.Channel
	drafter ledger.Drafter
	metrics Recorder
	chName  string
	log     *slog.Logger
}

func New(store Store, channel delivery.Channel, opts Options) *Service {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Metrics == nil {
		opts.Metrics = nopRecorder{}
	}
	if opts.ChannelName == "" {
		opts.ChannelName = "default"
	}
	return &Service{
		store:   store,
		channel: channel,
		drafter: opts.Drafter,
		metrics: opts.Metrics,
		chName:  opts.ChannelName,
		log:     opts.Logger,
	}
}

// Onscreen lists messages already claimed for review, oldest first.
func (s *Service) Onscreen(ctx context.Context) ([]model.Message, error) {
	msgs, err := s.store.ListByStatus(ctx, model.StatusOnscreen)
	if err != nil {
		return nil, fmt.Errorf("list onscreen: %w", err)
	}
	return present(msgs), nil
}

// ClaimPending moves every pending message to onscreen and returns them in
// creation order. Concurrent callers receive disjoint sets.
func (s *Service) ClaimPending(ctx context.Context) ([]model.Message, error) {
	msgs, err := s.store.ClaimPending(ctx)
	if err != nil {
		return nil, fmt.Errorf("claim pending: %w", err)
	}
	if len(msgs) > 0 {
		s.metrics.Claimed(len(msgs))
		s.log.Info("claimed pending messages", "count", len(msgs))
	}
	return present(msgs), nil
}

// present fills the display fields of rows written upstream without them:
// the sender's local part as its name and "No Subject" for a blank subject.
func present(msgs []model.Message) []model.Message {
	for i := range msgs {
		if msgs[i].SenderName == "" {
			msgs[i].SenderName = util.SenderName(msgs[i].Sender)
		}
		msgs[i].Subject = util.SubjectOrDefault(msgs[i].Subject)
	}
	return msgs
}

// Ingest stores new pending messages and returns the ones not already known.
func (s *Service) Ingest(ctx context.Context, msgs []model.Message) ([]model.Message, error) {
	for i := range msgs {
		msgs[i].Status = model.StatusPending
	}
	inserted, err := s.store.InsertMessages(ctx, msgs)
	if err != nil {
		return nil, fmt.Errorf("ingest: %w", err)
	}
	return inserted, nil
}

// Send delivers reply (or the stored draft when reply is empty) and marks the
// message sent. A blank result is refused with model.ErrEmptyReply. A
// delivery failure leaves the message onscreen and returns a
// *model.DeliveryError.
func (s *Service) Send(ctx context.Context, id, reply string) (delivery.Result, error) {
	m, err := s.store.GetMessage(ctx, id)
	if err != nil {
		return delivery.Result{}, fmt.Errorf("send %s: %w", id, err)
	}
	// A sent message is not delivered again.
	if m.Status == model.StatusSent {
		return delivery.Result{}, fmt.Errorf("send %s: already sent: %w", id, model.ErrInvalidTransition)
	}
	if err := lifecycle.Transition(m.Status, model.StatusSent); err != nil {
		return delivery.Result{}, fmt.Errorf("send %s: %w", id, err)
	}

	if strings.TrimSpace(reply) == "" && strings.TrimSpace(m.Reply) == "" {
		return delivery.Result{}, fmt.Errorf("send %s: %w", id, model.ErrEmptyReply)
	}
	if reply != "" && reply != m.Reply {
		if err := s.store.UpdateReply(ctx, id, reply); err != nil {
			return delivery.Result{}, fmt.Errorf("save reply %s: %w", id, err)
		}
		m.Reply = reply
	}

	start := time.Now()
	res, err := s.channel.Deliver(ctx, m)
	s.metrics.ObserveDelivery(s.chName, err == nil, time.Since(start))
	if err != nil {
		s.log.Warn("delivery failed", "id", id, "sender", m.Sender, "err", err)
		if model.IsDeliveryError(err) {
			return delivery.Result{}, err
		}
		return delivery.Result{}, &model.DeliveryError{ID: id, Err: err}
	}

	if err := s.store.MarkSent(ctx, id); err != nil {
		s.log.Error("delivered but not marked sent", "id", id, "err", err)
		return res, fmt.Errorf("mark sent %s: %w", id, err)
	}
	s.log.Info("reply sent", "id", id, "sender", m.Sender, "channel", res.Channel)
	return res, nil
}

// Regenerate asks the draft service for a new reply to message id. A
// non-empty current replaces the stored draft as the text to improve on.
func (s *Service) Regenerate(ctx context.Context, id, tone, customization, current string) (string, error) {
	m, err := s.store.GetMessage(ctx, id)
	if err != nil {
		return "", fmt.Errorf("regenerate %s: %w", id, err)
	}
	if s.drafter == nil {
		return "", &model.DraftError{ID: id, Err: errors.New("no draft service configured")}
	}
	if current != "" {
		m.Reply = current
	}
	reply, err := s.drafter.Regenerate(ctx, model.RegenerateRequest{
		Message:       m,
		Tone:          tone,
		Customization: customization,
	})
	s.metrics.ObserveRegeneration(err == nil)
	if err != nil {
		s.log.Warn("regeneration failed", "id", id, "err", err)
		if model.IsDraftError(err) {
			return "", err
		}
		return "", &model.DraftError{ID: id, Err: err}
	}
	return reply, nil
}

// Conversation returns the archived history of a sender.
func (s *Service) Conversation(ctx context.Context, email string) (model.ConversationRecord, error) {
	rec, err := s.store.Conversation(ctx, email)
	if err != nil {
		return model.ConversationRecord{}, fmt.Errorf("conversation %s: %w", email, err)
	}
	return rec, nil
}

// Stats counts active messages per status.
func (s *Service) Stats(ctx context.Context) (map[model.Status]int, error) {
	return s.store.CountByStatus(ctx)
}

type nopRecorder struct{}

func (nopRecorder) Claimed(int)                                 {}
func (nopRecorder) ObserveDelivery(string, bool, time.Duration) {}
func (nopRecorder) ObserveRegeneration(bool)                    {}
