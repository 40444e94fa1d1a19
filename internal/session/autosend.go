package session

import (
	"context"
	"errors"
	"time"

	"replydesk/internal/model"
	"replydesk/internal/notify"
)

const textNothingToSend = "No emails to auto-send!"

// AutoSendAll sends every message in the working set, in order, one at a
// time with the send delay between attempts. The ids are snapshotted up
// front; one already gone (sent by hand meanwhile) is skipped. A failed send
// does not stop the batch. StopAutoSend or ctx ends the batch before the
// next id; a send in flight completes. It returns the number delivered.
func (s *Session) AutoSendAll(ctx context.Context) (int, error) {
	s.mu.Lock()
	ids := s.set.IDs()
	s.mu.Unlock()
	if len(ids) == 0 {
		s.notes.Enqueue(notify.KindError, textNothingToSend)
		return 0, model.ErrNothingToSend
	}
	if !s.batch.TryLock() {
		return 0, model.ErrAutoSendRunning
	}
	defer s.batch.Unlock()

	s.autoSend.Store(true)
	defer s.autoSend.Store(false)
	s.changed()
	defer s.changed()

	sent := 0
	for i, id := range ids {
		if !s.autoSend.Load() || ctx.Err() != nil {
			break
		}
		err := s.Send(ctx, id, "")
		if errors.Is(err, model.ErrNotFound) {
			continue
		}
		if err == nil {
			sent++
		}
		if i < len(ids)-1 && !sleep(ctx, s.sendDelay) {
			break
		}
	}
	s.log.Info("auto-send finished", "sent", sent, "queued", len(ids))
	return sent, ctx.Err()
}

// StopAutoSend asks a running batch to stop before its next send.
func (s *Session) StopAutoSend() {
	s.autoSend.Store(false)
}

// AutoSending reports whether a batch is running.
func (s *Session) AutoSending() bool {
	return s.autoSend.Load()
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
