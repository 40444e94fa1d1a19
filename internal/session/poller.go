package session

import (
	"context"
	"fmt"
	"time"
)

const DefaultPollInterval = 5 * time.Second

// Refresh replaces the working set with the messages already onscreen.
// Used once when a session starts so nothing claimed earlier is lost.
func (s *Session) Refresh(ctx context.Context) error {
	msgs, err := s.backend.Onscreen(ctx)
	if err != nil {
		return fmt.Errorf("load onscreen: %w", err)
	}
	s.mu.Lock()
	s.set.Replace(msgs)
	s.mu.Unlock()
	s.changed()
	return nil
}

// Poll claims pending messages and merges them into the working set. On
// error the set is left untouched.
func (s *Session) Poll(ctx context.Context) (int, error) {
	msgs, err := s.backend.Pending(ctx)
	if err != nil {
		return 0, fmt.Errorf("poll pending: %w", err)
	}
	if len(msgs) == 0 {
		return 0, nil
	}
	s.mu.Lock()
	added := s.set.Merge(msgs)
	s.mu.Unlock()
	s.changed()
	s.log.Debug("polled pending", "claimed", len(msgs), "added", added)
	return added, nil
}

// RunPoller polls every interval until ctx is done.
func (s *Session) RunPoller(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.Poll(ctx); err != nil && ctx.Err() == nil {
				s.log.Warn("poll failed", "err", err)
			}
		}
	}
}
