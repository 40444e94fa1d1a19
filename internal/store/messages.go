package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"replydesk/internal/lifecycle"
	"replydesk/internal/model"

	"github.com/google/uuid"
)

// InsertMessages stores new messages. Missing ids get a UUID, missing status
// defaults to pending. A message whose SourceID is already stored is skipped.
// It returns the messages actually inserted.
func (s *SQLStore) InsertMessages(ctx context.Context, msgs []model.Message) ([]model.Message, error) {
	if len(msgs) == 0 {
		return nil, nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, s.rebind(`
		INSERT INTO messages (`+messageColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (source_id) DO NOTHING
	`))
	if err != nil {
		return nil, err
	}
	defer stmt.Close()

	now := s.now().UTC()
	inserted := make([]model.Message, 0, len(msgs))
	for _, m := range msgs {
		if m.ID == "" {
			m.ID = uuid.NewString()
		}
		if m.Status == "" {
			m.Status = model.StatusPending
		}
		if m.CreatedAt.IsZero() {
			m.CreatedAt = now
		}
		m.UpdatedAt = now
		res, err := stmt.ExecContext(ctx, m.ID, nullString(m.SourceID), m.Sender, m.SenderName, m.Subject, m.Body,
			m.Summary, m.Reply, string(m.Status), toNanos(m.CreatedAt), toNanos(m.UpdatedAt), toNanos(m.SentAt))
		if err != nil {
			return nil, fmt.Errorf("insert message %s: %w", m.ID, err)
		}
		if n, _ := res.RowsAffected(); n > 0 {
			inserted = append(inserted, m)
		}
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return inserted, nil
}

// ClaimPending moves every pending message to onscreen in one conditional
// update and returns the claimed rows oldest first. Concurrent callers always
// receive disjoint sets.
func (s *SQLStore) ClaimPending(ctx context.Context) ([]model.Message, error) {
	now := toNanos(s.now())
	var q string
	switch s.dialect {
	case dialectPostgres:
		q = `UPDATE messages SET status = ?, updated_at = ?
			WHERE id IN (SELECT id FROM messages WHERE status = ? FOR UPDATE SKIP LOCKED)
			RETURNING ` + messageColumns
	default:
		q = `UPDATE messages SET status = ?, updated_at = ?
			WHERE status = ?
			RETURNING ` + messageColumns
	}
	rows, err := s.db.QueryContext(ctx, s.rebind(q), string(model.StatusOnscreen), now, string(model.StatusPending))
	if err != nil {
		return nil, fmt.Errorf("claim pending: %w", err)
	}
	msgs, err := scanMessages(rows)
	if err != nil {
		return nil, fmt.Errorf("claim pending: %w", err)
	}
	sortByCreated(msgs)
	return msgs, nil
}

// ListByStatus returns messages in the given status, oldest first.
func (s *SQLStore) ListByStatus(ctx context.Context, status model.Status) ([]model.Message, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind(
		"SELECT "+messageColumns+" FROM messages WHERE status = ? ORDER BY created_at, id"), string(status))
	if err != nil {
		return nil, err
	}
	return scanMessages(rows)
}

// ListSentBefore returns sent messages whose sent_at is at or before cutoff.
func (s *SQLStore) ListSentBefore(ctx context.Context, cutoff time.Time) ([]model.Message, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind(
		"SELECT "+messageColumns+" FROM messages WHERE status = ? AND sent_at <= ? ORDER BY sent_at, id"),
		string(model.StatusSent), toNanos(cutoff))
	if err != nil {
		return nil, err
	}
	return scanMessages(rows)
}

func (s *SQLStore) GetMessage(ctx context.Context, id string) (model.Message, error) {
	row := s.db.QueryRowContext(ctx, s.rebind("SELECT "+messageColumns+" FROM messages WHERE id = ?"), id)
	m, err := scanMessage(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Message{}, fmt.Errorf("%s: %w", id, model.ErrNotFound)
	}
	return m, err
}

// UpdateReply replaces the stored draft of a message that has not been sent.
func (s *SQLStore) UpdateReply(ctx context.Context, id, reply string) error {
	res, err := s.db.ExecContext(ctx, s.rebind(
		"UPDATE messages SET reply = ?, updated_at = ? WHERE id = ? AND status IN (?, ?)"),
		reply, toNanos(s.now()), id, string(model.StatusPending), string(model.StatusOnscreen))
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n > 0 {
		return nil
	}
	cur, err := s.GetMessage(ctx, id)
	if err != nil {
		return err
	}
	return fmt.Errorf("update reply of %s message: %w", cur.Status, model.ErrInvalidTransition)
}

// SetStatus moves a message forward to status to. The update only applies
// from the statuses lifecycle.Sources allows, so a concurrent or repeated
// call never reverts a later status. Moving to sent records sent_at once.
func (s *SQLStore) SetStatus(ctx context.Context, id string, to model.Status) error {
	if to == model.StatusArchived {
		return fmt.Errorf("archive %s through the archival job: %w", id, model.ErrInvalidTransition)
	}
	sources := lifecycle.Sources(to)
	now := toNanos(s.now())
	args := []any{string(to), now}
	q := "UPDATE messages SET status = ?, updated_at = ?"
	if to == model.StatusSent {
		q += ", sent_at = CASE WHEN sent_at = 0 THEN ? ELSE sent_at END"
		args = append(args, now)
	}
	q += " WHERE id = ? AND status IN (" + placeholders(len(sources)) + ")"
	args = append(args, id)
	for _, src := range sources {
		args = append(args, string(src))
	}
	res, err := s.db.ExecContext(ctx, s.rebind(q), args...)
	if err != nil {
		return fmt.Errorf("set status %s: %w", to, err)
	}
	if n, _ := res.RowsAffected(); n > 0 {
		return nil
	}
	cur, err := s.GetMessage(ctx, id)
	if err != nil {
		return err
	}
	return lifecycle.Transition(cur.Status, to)
}

// MarkSent is SetStatus(id, sent).
func (s *SQLStore) MarkSent(ctx context.Context, id string) error {
	return s.SetStatus(ctx, id, model.StatusSent)
}

// DeleteMessage removes a message only while it is still in status.
func (s *SQLStore) DeleteMessage(ctx context.Context, id string, status model.Status) error {
	res, err := s.db.ExecContext(ctx, s.rebind("DELETE FROM messages WHERE id = ? AND status = ?"), id, string(status))
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%s in %s: %w", id, status, model.ErrNotFound)
	}
	return nil
}

// CountByStatus returns the number of messages per status.
func (s *SQLStore) CountByStatus(ctx context.Context) (map[model.Status]int, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT status, COUNT(*) FROM messages GROUP BY status")
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make(map[model.Status]int)
	for rows.Next() {
		var (
			status string
			n      int
		)
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		out[model.Status(status)] = n
	}
	return out, rows.Err()
}
