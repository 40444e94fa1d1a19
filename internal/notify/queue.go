// Package notify holds the operator-facing toast notifications.
package notify

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

type Kind string

const (
	KindLoading Kind = "loading"
	KindSuccess Kind = "success"
	KindError   Kind = "error"
)

const DefaultTTL = 3 * time.Second

type Notification struct {
	ID        string
	Kind      Kind
	Text      string
	CreatedAt time.Time
}

// Queue is an ordered set of notifications. Success and error entries remove
// themselves after the TTL; loading entries stay until Remove is called.
type Queue struct {
	ttl time.Duration

	mu     sync.Mutex
	items  []Notification
	timers map[string]*time.Timer
	subs   []chan struct{}
	closed bool
}

func NewQueue(ttl time.Duration) *Queue {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Queue{ttl: ttl, timers: make(map[string]*time.Timer)}
}

// Enqueue appends a notification and returns its id.
func (q *Queue) Enqueue(kind Kind, text string) string {
	n := Notification{ID: uuid.NewString(), Kind: kind, Text: text, CreatedAt: time.Now()}

	q.mu.Lock()
	q.items = append(q.items, n)
	if kind != KindLoading && !q.closed {
		id := n.ID
		q.timers[id] = time.AfterFunc(q.ttl, func() { q.Remove(id) })
	}
	q.mu.Unlock()

	q.changed()
	return n.ID
}

// Remove drops the notification with id. Unknown ids are ignored.
func (q *Queue) Remove(id string) {
	q.mu.Lock()
	if t, ok := q.timers[id]; ok {
		t.Stop()
		delete(q.timers, id)
	}
	removed := false
	for i, n := range q.items {
		if n.ID == id {
			q.items = append(q.items[:i], q.items[i+1:]...)
			removed = true
			break
		}
	}
	q.mu.Unlock()

	if removed {
		q.changed()
	}
}

// List returns a snapshot in insertion order.
func (q *Queue) List() []Notification {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]Notification, len(q.items))
	copy(out, q.items)
	return out
}

// Subscribe returns a channel that receives a value after each change.
// Bursts coalesce into one pending signal.
func (q *Queue) Subscribe() <-chan struct{} {
	ch := make(chan struct{}, 1)
	q.mu.Lock()
	q.subs = append(q.subs, ch)
	q.mu.Unlock()
	return ch
}

// Close stops all expiry timers. Items stay readable.
func (q *Queue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.closed = true
	for id, t := range q.timers {
		t.Stop()
		delete(q.timers, id)
	}
}

func (q *Queue) changed() {
	q.mu.Lock()
	subs := q.subs
	q.mu.Unlock()
	for _, ch := range subs {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}
