package store

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"
)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS messages (
	id          TEXT PRIMARY KEY,
	source_id   TEXT UNIQUE,
	sender      TEXT NOT NULL,
	sender_name TEXT NOT NULL DEFAULT '',
	subject     TEXT NOT NULL DEFAULT '',
	body        TEXT NOT NULL DEFAULT '',
	summary     TEXT NOT NULL DEFAULT '',
	reply       TEXT NOT NULL DEFAULT '',
	status      TEXT NOT NULL DEFAULT 'pending',
	created_at  BIGINT NOT NULL DEFAULT 0,
	updated_at  BIGINT NOT NULL DEFAULT 0,
	sent_at     BIGINT NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS messages_status_created ON messages (status, created_at);

CREATE TABLE IF NOT EXISTS conversations (
	email         TEXT PRIMARY KEY,
	conversations TEXT NOT NULL DEFAULT '[]',
	updated_at    BIGINT NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS metadata (
	key   TEXT PRIMARY KEY,
	value TEXT NOT NULL DEFAULT ''
);
`

// NewPostgresStore connects with lib/pq and runs migrations.
func NewPostgresStore(ctx context.Context, dsn string) (*SQLStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	if err := migrate(db, postgresSchema); err != nil {
		db.Close()
		return nil, err
	}
	return newSQLStore(db, dialectPostgres), nil
}
