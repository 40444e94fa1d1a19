// Package ledger keeps the per-message history of reply drafts shown while an
// operator reviews a message.
package ledger

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"replydesk/internal/model"
)

const keyPrefix = "reply_history_"

// Key is the persistence key for a message's history.
func Key(messageID string) string {
	return keyPrefix + messageID
}

// Store persists a history as an ordered list of snapshots.
// LoadHistory returns nil when nothing is stored under key.
type Store interface {
	LoadHistory(ctx context.Context, key string) ([]string, error)
	SaveHistory(ctx context.Context, key string, versions []string) error
	DeleteHistory(ctx context.Context, key string) error
}

// Drafter produces a regenerated reply.
type Drafter interface {
	Regenerate(ctx context.Context, req model.RegenerateRequest) (string, error)
}

// Ledger is the reply history of one message with a cursor on the displayed
// version. The cursor always stays within [0, Len()-1].
type Ledger struct {
	store Store
	msg   model.Message

	mu       sync.Mutex
	versions []string
	cursor   int
}

// Open restores the persisted history of msg with the cursor on the newest
// version, or starts a new one seeded with the stored draft.
func Open(ctx context.Context, store Store, msg model.Message) (*Ledger, error) {
	l := &Ledger{store: store, msg: msg}
	versions, err := store.LoadHistory(ctx, Key(msg.ID))
	if err != nil {
		return nil, fmt.Errorf("load history %s: %w", msg.ID, err)
	}
	if len(versions) == 0 {
		versions = []string{msg.Reply}
		if err := store.SaveHistory(ctx, Key(msg.ID), versions); err != nil {
			return nil, fmt.Errorf("save history %s: %w", msg.ID, err)
		}
	}
	l.versions = versions
	l.cursor = len(versions) - 1
	return l, nil
}

func (l *Ledger) MessageID() string { return l.msg.ID }

func (l *Ledger) Current() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.versions[l.cursor]
}

func (l *Ledger) Cursor() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.cursor
}

func (l *Ledger) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.versions)
}

func (l *Ledger) Versions() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]string, len(l.versions))
	copy(out, l.versions)
	return out
}

// Edit overwrites the displayed version.
func (l *Ledger) Edit(ctx context.Context, text string) error {
	l.mu.Lock()
	l.versions[l.cursor] = text
	versions := append([]string(nil), l.versions...)
	l.mu.Unlock()
	return l.store.SaveHistory(ctx, Key(l.msg.ID), versions)
}

// Regenerate asks d for a new draft based on the displayed version. On
// success the draft is appended and displayed. On failure the ledger is left
// as it was and a *model.DraftError is returned.
func (l *Ledger) Regenerate(ctx context.Context, d Drafter, tone, customization string) (string, error) {
	msg := l.msg
	msg.Reply = l.Current()
	reply, err := d.Regenerate(ctx, model.RegenerateRequest{Message: msg, Tone: tone, Customization: customization})
	if err != nil {
		if model.IsDraftError(err) {
			return "", err
		}
		return "", &model.DraftError{ID: msg.ID, Err: err}
	}
	if strings.TrimSpace(reply) == "" {
		return "", &model.DraftError{ID: msg.ID, Err: fmt.Errorf("empty reply")}
	}

	l.mu.Lock()
	l.versions = append(l.versions, reply)
	l.cursor = len(l.versions) - 1
	versions := append([]string(nil), l.versions...)
	l.mu.Unlock()

	if err := l.store.SaveHistory(ctx, Key(l.msg.ID), versions); err != nil {
		return reply, fmt.Errorf("save history %s: %w", l.msg.ID, err)
	}
	return reply, nil
}

// Previous moves the cursor back one version, stopping at the first.
func (l *Ledger) Previous() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.cursor > 0 {
		l.cursor--
	}
	return l.versions[l.cursor]
}

// Next moves the cursor forward one version, stopping at the last.
func (l *Ledger) Next() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.cursor < len(l.versions)-1 {
		l.cursor++
	}
	return l.versions[l.cursor]
}

// Close discards the persisted history. The history is dropped whether the
// review ended in a send (committed) or was abandoned.
func (l *Ledger) Close(ctx context.Context, committed bool) error {
	return l.store.DeleteHistory(ctx, Key(l.msg.ID))
}
