// Package lifecycle defines the forward-only status machine a message moves
// through: pending, onscreen, sent, archived.
package lifecycle

import (
	"fmt"

	"replydesk/internal/model"
)

var next = map[model.Status]model.Status{
	model.StatusPending:  model.StatusOnscreen,
	model.StatusOnscreen: model.StatusSent,
	model.StatusSent:     model.StatusArchived,
}

// Transition reports whether from may move to to. Re-applying a transition
// (from == to) is allowed and is a no-op for callers.
func Transition(from, to model.Status) error {
	if !from.Valid() || !to.Valid() {
		return fmt.Errorf("%w: %q -> %q", model.ErrInvalidTransition, from, to)
	}
	if from == to || next[from] == to {
		return nil
	}
	return fmt.Errorf("%w: %s -> %s", model.ErrInvalidTransition, from, to)
}

// Sources lists the statuses a conditional update into to may start from,
// including to itself so that repeats are idempotent.
func Sources(to model.Status) []model.Status {
	out := []model.Status{to}
	for from, n := range next {
		if n == to {
			out = append(out, from)
		}
	}
	return out
}

// Next returns the status that follows s, if any.
func Next(s model.Status) (model.Status, bool) {
	n, ok := next[s]
	return n, ok
}
