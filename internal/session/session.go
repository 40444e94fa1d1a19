// Package session is the operator side of the workflow: the working set, the
// poller, single sends with rollback and the auto-send batch.
package session

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"replydesk/internal/ledger"
	"replydesk/internal/model"
	"replydesk/internal/notify"
)

// DefaultSendDelay is the pause between auto-send attempts.
const DefaultSendDelay = 800 * time.Millisecond

// Backend is the server the session talks to.
type Backend interface {
	// Onscreen lists messages already claimed for review.
	Onscreen(ctx context.Context) ([]model.Message, error)
	// Pending claims new messages, moving them to onscreen.
	Pending(ctx context.Context) ([]model.Message, error)
	// Send delivers reply for id and marks it sent.
	Send(ctx context.Context, id, reply string) error
}

// Options configures a Session. Zero values get defaults: the send delay,
// an in-memory history store and slog.Default.
type Options struct {
	SendDelay time.Duration
	Drafter   ledger.Drafter
	Histories ledger.Store
	Logger    *slog.Logger
}

// Session holds the operator's working set and coordinates sends, polling
// and reviews against a Backend. It is safe for concurrent use.
type Session struct {
	backend   Backend
	drafter   ledger.Drafter
	histories ledger.Store
	notes     *notify.Queue
	log       *slog.Logger
	sendDelay time.Duration

	mu   sync.Mutex
	set  WorkingSet
	subs []chan struct{}

	autoSend atomic.Bool
	batch    sync.Mutex
}

// New returns a Session over backend that reports to notes.
func New(backend Backend, notes *notify.Queue, opts Options) *Session {
	if opts.SendDelay <= 0 {
		opts.SendDelay = DefaultSendDelay
	}
	if opts.Histories == nil {
		opts.Histories = ledger.NewMemoryStore()
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Session{
		backend:   backend,
		drafter:   opts.Drafter,
		histories: opts.Histories,
		notes:     notes,
		log:       opts.Logger,
		sendDelay: opts.SendDelay,
	}
}

// Notifications returns the queue the session reports to.
func (s *Session) Notifications() *notify.Queue { return s.notes }

// Messages returns a snapshot of the working set.
func (s *Session) Messages() []model.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.set.Items()
}

// Get returns the working-set message with the given id.
func (s *Session) Get(id string) (model.Message, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.set.Get(id)
}

// SetDraft updates the local draft of id without touching the server.
func (s *Session) SetDraft(id, reply string) {
	s.mu.Lock()
	ok := s.set.Update(id, func(m *model.Message) { m.Reply = reply })
	s.mu.Unlock()
	if ok {
		s.changed()
	}
}

// Changes signals after every working-set change. Bursts coalesce.
func (s *Session) Changes() <-chan struct{} {
	ch := make(chan struct{}, 1)
	s.mu.Lock()
	s.subs = append(s.subs, ch)
	s.mu.Unlock()
	return ch
}

func (s *Session) changed() {
	s.mu.Lock()
	subs := s.subs
	s.mu.Unlock()
	for _, ch := range subs {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}
