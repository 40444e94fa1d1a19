package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
)

// LoadHistory reads a persisted reply history. A missing key yields nil.
func (s *SQLStore) LoadHistory(ctx context.Context, key string) ([]string, error) {
	var val string
	err := s.db.QueryRowContext(ctx, s.rebind("SELECT value FROM metadata WHERE key = ?"), key).Scan(&val)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var versions []string
	if err := json.Unmarshal([]byte(val), &versions); err != nil {
		return nil, fmt.Errorf("decode %s: %w", key, err)
	}
	return versions, nil
}

func (s *SQLStore) SaveHistory(ctx context.Context, key string, versions []string) error {
	b, err := json.Marshal(versions)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, s.rebind(`
		INSERT INTO metadata (key, value) VALUES (?, ?)
		ON CONFLICT (key) DO UPDATE SET value = excluded.value
	`), key, string(b))
	return err
}

func (s *SQLStore) DeleteHistory(ctx context.Context, key string) error {
	_, err := s.db.ExecContext(ctx, s.rebind("DELETE FROM metadata WHERE key = ?"), key)
	return err
}
