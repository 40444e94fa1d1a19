package session

import "replydesk/internal/model"

// WorkingSet is the ordered list of messages the operator is looking at.
// Ids are unique. It is not safe for concurrent use; Session guards it.
type WorkingSet struct {
	items []model.Message
}

// removal remembers where a message sat so it can be put back.
type removal struct {
	index  int
	before []string // ids that preceded the message
}

func (w *WorkingSet) Len() int { return len(w.items) }

// Items returns a copy of the set in display order.
func (w *WorkingSet) Items() []model.Message {
	out := make([]model.Message, len(w.items))
	copy(out, w.items)
	return out
}

// IDs returns the ids in display order.
func (w *WorkingSet) IDs() []string {
	ids := make([]string, len(w.items))
	for i, m := range w.items {
		ids[i] = m.ID
	}
	return ids
}

func (w *WorkingSet) index(id string) int {
	for i, m := range w.items {
		if m.ID == id {
			return i
		}
	}
	return -1
}

func (w *WorkingSet) Get(id string) (model.Message, bool) {
	if i := w.index(id); i >= 0 {
		return w.items[i], true
	}
	return model.Message{}, false
}

// Replace swaps the whole set, dropping duplicate ids after their first
// occurrence.
func (w *WorkingSet) Replace(msgs []model.Message) {
	w.items = nil
	w.Merge(msgs)
}

// Merge folds msgs into the set. A known id has its content replaced in
// place; a new id is appended. It returns how many ids were new.
func (w *WorkingSet) Merge(msgs []model.Message) int {
	added := 0
	for _, m := range msgs {
		if i := w.index(m.ID); i >= 0 {
			w.items[i] = m
			continue
		}
		w.items = append(w.items, m)
		added++
	}
	return added
}

// Update applies fn to the message with id, if present.
func (w *WorkingSet) Update(id string, fn func(*model.Message)) bool {
	i := w.index(id)
	if i < 0 {
		return false
	}
	fn(&w.items[i])
	return true
}

// Remove takes the message out and returns what Restore needs to put it back.
func (w *WorkingSet) Remove(id string) (model.Message, removal, bool) {
	i := w.index(id)
	if i < 0 {
		return model.Message{}, removal{}, false
	}
	m := w.items[i]
	r := removal{index: i, before: w.IDs()[:i]}
	w.items = append(w.items[:i], w.items[i+1:]...)
	return m, r, true
}

// Restore reinserts m directly after the last of its former predecessors
// that is still present, or at the front if none are. With no changes in
// between this is the original index. If m's id came back meanwhile, its
// content is replaced in place instead.
func (w *WorkingSet) Restore(m model.Message, r removal) {
	if i := w.index(m.ID); i >= 0 {
		w.items[i] = m
		return
	}
	at := 0
	for j := len(r.before) - 1; j >= 0; j-- {
		if i := w.index(r.before[j]); i >= 0 {
			at = i + 1
			break
		}
	}
	w.items = append(w.items, model.Message{})
	copy(w.items[at+1:], w.items[at:])
	w.items[at] = m
}
