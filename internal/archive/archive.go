// Package archive moves sent messages into their sender's conversation
// history.
package archive

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"replydesk/internal/model"
)

const DefaultInterval = time.Minute

// Store is the subset of the message store the job needs.
type Store interface {
	ListSentBefore(ctx context.Context, cutoff time.Time) ([]model.Message, error)
	AppendConversation(ctx context.Context, email string, entry model.ArchivedMessage) error
	DeleteMessage(ctx context.Context, id string, status model.Status) error
}

// Recorder receives sweep metrics. Nil disables them.
type Recorder interface {
	Archived(n int)
	ArchiveFailed()
}

type Job struct {
	store    Store
	interval time.Duration
	minRest  time.Duration
	metrics  Recorder
	log      *slog.Logger
	now      func() time.Time
}

// NewJob builds a sweep that archives messages sent at least minRest ago.
// A zero minRest defaults to the interval.
func NewJob(store Store, interval, minRest time.Duration, metrics Recorder, log *slog.Logger) *Job {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if minRest <= 0 {
		minRest = interval
	}
	if log == nil {
		log = slog.Default()
	}
	return &Job{store: store, interval: interval, minRest: minRest, metrics: metrics, log: log, now: time.Now}
}

// Sweep archives every eligible message and returns how many moved. History
// is appended before the active row is deleted; a failed append leaves the
// row for the next sweep. The first error is returned after all messages
// have been tried.
func (j *Job) Sweep(ctx context.Context) (int, error) {
	now := j.now().UTC()
	msgs, err := j.store.ListSentBefore(ctx, now.Add(-j.minRest))
	if err != nil {
		return 0, fmt.Errorf("list sent: %w", err)
	}

	moved := 0
	var firstErr error
	for _, m := range msgs {
		if err := ctx.Err(); err != nil {
			return moved, err
		}
		if err := j.archiveOne(ctx, m, now); err != nil {
			j.log.Warn("archive failed", "id", m.ID, "sender", m.Sender, "err", err)
			if j.metrics != nil {
				j.metrics.ArchiveFailed()
			}
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		moved++
	}
	if moved > 0 {
		j.log.Info("archived sent messages", "count", moved)
		if j.metrics != nil {
			j.metrics.Archived(moved)
		}
	}
	return moved, firstErr
}

func (j *Job) archiveOne(ctx context.Context, m model.Message, now time.Time) error {
	if err := j.store.AppendConversation(ctx, m.Sender, m.Snapshot(now)); err != nil {
		return fmt.Errorf("append history %s: %w", m.ID, err)
	}
	if err := j.store.DeleteMessage(ctx, m.ID, model.StatusSent); err != nil {
		return fmt.Errorf("delete %s: %w", m.ID, err)
	}
	return nil
}

// Run sweeps on every tick until ctx is done.
func (j *Job) Run(ctx context.Context) {
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := j.Sweep(ctx); err != nil && ctx.Err() == nil {
				j.log.Error("archive sweep", "err", err)
			}
		}
	}
}
