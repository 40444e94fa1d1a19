package session

import (
	"context"
	"errors"
	"fmt"

	"replydesk/internal/ledger"
	"replydesk/internal/model"
	"replydesk/internal/notify"
)

const textRegenerated = "Reply regenerated successfully!"

// OpenReview starts (or resumes) the reply history for a working-set message.
func (s *Session) OpenReview(ctx context.Context, id string) (*ledger.Ledger, error) {
	msg, ok := s.Get(id)
	if !ok {
		return nil, fmt.Errorf("review %s: %w", id, model.ErrNotFound)
	}
	return ledger.Open(ctx, s.histories, msg)
}

// Regenerate asks for a new draft in the given tone and records it in l.
// The working-set draft follows the new version.
func (s *Session) Regenerate(ctx context.Context, l *ledger.Ledger, tone model.Tone, customization string) (string, error) {
	if s.drafter == nil {
		err := &model.DraftError{ID: l.MessageID(), Err: errors.New("no draft service configured")}
		s.notes.Enqueue(notify.KindError, "Failed to regenerate reply. No response from AI.")
		return "", err
	}
	reply, err := l.Regenerate(ctx, s.drafter, tone.String(), customization)
	if err != nil && model.IsDraftError(err) {
		s.notes.Enqueue(notify.KindError, "Failed to regenerate reply. No response from AI.")
		s.log.Warn("regenerate failed", "id", l.MessageID(), "err", err)
		return "", err
	}
	// A persistence error still leaves a usable reply in memory.
	if err != nil {
		s.log.Warn("persist reply history", "id", l.MessageID(), "err", err)
	}
	s.SetDraft(l.MessageID(), reply)
	s.notes.Enqueue(notify.KindSuccess, textRegenerated)
	return reply, nil
}

// SendReview sends the displayed version of l exactly as shown, even when
// it was cleared. The review ends either way, so the history is dropped
// whatever the outcome; a failed message goes back to the working set with
// the displayed version as its draft.
func (s *Session) SendReview(ctx context.Context, l *ledger.Ledger) (err error) {
	current := l.Current()
	defer func() {
		if err != nil {
			s.SetDraft(l.MessageID(), current)
		}
		if cerr := l.Close(ctx, err == nil); cerr != nil {
			s.log.Warn("drop reply history", "id", l.MessageID(), "err", cerr)
		}
	}()
	return s.send(ctx, l.MessageID(), &current)
}

// CloseReview abandons the review and drops its history.
func (s *Session) CloseReview(ctx context.Context, l *ledger.Ledger) error {
	return l.Close(ctx, false)
}
