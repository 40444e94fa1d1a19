package session

import (
	"context"
	"fmt"
	"strings"

	"replydesk/internal/model"
	"replydesk/internal/notify"
)

const (
	textSending    = "Sending email..."
	textSendFailed = "Failed to send email. Please try again."
	textEmptyReply = "Reply is empty. Nothing was sent."
)

// Send delivers a reply for id. The message leaves the working set before
// the backend is called; if delivery fails it is put back where it was and
// a *model.DeliveryError is returned. A non-empty override replaces the
// stored draft. An id not in the working set yields model.ErrNotFound with
// no side effects.
func (s *Session) Send(ctx context.Context, id, override string) error {
	if override == "" {
		return s.send(ctx, id, nil)
	}
	return s.send(ctx, id, &override)
}

// send delivers reply, or the stored draft when reply is nil. A blank
// payload is refused with model.ErrEmptyReply before anything changes.
func (s *Session) send(ctx context.Context, id string, reply *string) error {
	s.mu.Lock()
	msg, ok := s.set.Get(id)
	payload := msg.Reply
	if reply != nil {
		payload = *reply
	}
	blank := strings.TrimSpace(payload) == ""
	var pos removal
	if ok && !blank {
		msg, pos, _ = s.set.Remove(id)
	}
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("send %s: %w", id, model.ErrNotFound)
	}
	if blank {
		s.notes.Enqueue(notify.KindError, textEmptyReply)
		return fmt.Errorf("send %s: %w", id, model.ErrEmptyReply)
	}
	s.changed()

	loading := s.notes.Enqueue(notify.KindLoading, textSending)
	err := s.backend.Send(ctx, id, payload)
	s.notes.Remove(loading)

	if err != nil {
		s.mu.Lock()
		s.set.Restore(msg, pos)
		s.mu.Unlock()
		s.changed()
		s.notes.Enqueue(notify.KindError, textSendFailed)
		s.log.Warn("send failed", "id", id, "sender", msg.Sender, "err", err)
		if model.IsDeliveryError(err) {
			return err
		}
		return &model.DeliveryError{ID: id, Err: err}
	}

	s.notes.Enqueue(notify.KindSuccess, "Email sent to "+msg.Sender)
	s.log.Info("sent", "id", id, "sender", msg.Sender)
	return nil
}
