package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"replydesk/internal/model"
)

// AppendConversation adds entry to the sender's record, creating the record
// on first use. An entry whose MessageID is already present is not appended
// again, so a retried archival sweep does not duplicate history.
func (s *SQLStore) AppendConversation(ctx context.Context, email string, entry model.ArchivedMessage) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	q := "SELECT conversations FROM conversations WHERE email = ?"
	if s.dialect == dialectPostgres {
		q += " FOR UPDATE"
	}
	var raw string
	err = tx.QueryRowContext(ctx, s.rebind(q), email).Scan(&raw)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("load conversation %s: %w", email, err)
	}
	var convs []model.ArchivedMessage
	if raw != "" {
		if err := json.Unmarshal([]byte(raw), &convs); err != nil {
			return fmt.Errorf("decode conversation %s: %w", email, err)
		}
	}
	for _, c := range convs {
		if entry.MessageID != "" && c.MessageID == entry.MessageID {
			return tx.Commit()
		}
	}
	convs = append(convs, entry)
	b, err := json.Marshal(convs)
	if err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx, s.rebind(`
		INSERT INTO conversations (email, conversations, updated_at) VALUES (?, ?, ?)
		ON CONFLICT (email) DO UPDATE SET
			conversations = excluded.conversations,
			updated_at    = excluded.updated_at
	`), email, string(b), toNanos(s.now()))
	if err != nil {
		return fmt.Errorf("save conversation %s: %w", email, err)
	}
	return tx.Commit()
}

// Conversation returns the sender's record or model.ErrNotFound.
func (s *SQLStore) Conversation(ctx context.Context, email string) (model.ConversationRecord, error) {
	var raw string
	err := s.db.QueryRowContext(ctx, s.rebind("SELECT conversations FROM conversations WHERE email = ?"), email).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return model.ConversationRecord{}, fmt.Errorf("conversation %s: %w", email, model.ErrNotFound)
	}
	if err != nil {
		return model.ConversationRecord{}, err
	}
	rec := model.ConversationRecord{Email: email}
	if err := json.Unmarshal([]byte(raw), &rec.Conversations); err != nil {
		return model.ConversationRecord{}, fmt.Errorf("decode conversation %s: %w", email, err)
	}
	return rec, nil
}
