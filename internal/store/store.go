// Package store persists messages, sender conversation history and small
// key/value state in SQLite or Postgres.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"replydesk/internal/model"
)

type dialect int

const (
	dialectSQLite dialect = iota
	dialectPostgres
)

// SQLStore implements the message store on top of database/sql. The same
// queries serve both drivers; placeholders are rebound for Postgres.
type SQLStore struct {
	db      *sql.DB
	dialect dialect
	now     func() time.Time
}

func newSQLStore(db *sql.DB, d dialect) *SQLStore {
	return &SQLStore{db: db, dialect: d, now: time.Now}
}

// Open picks a backend by driver name ("sqlite" or "postgres").
func Open(ctx context.Context, driver, dsn string) (*SQLStore, error) {
	switch driver {
	case "", "sqlite":
		return NewSQLiteStore(dsn)
	case "postgres":
		return NewPostgresStore(ctx, dsn)
	default:
		return nil, fmt.Errorf("unknown store driver %q", driver)
	}
}

func (s *SQLStore) Close() error {
	return s.db.Close()
}

// Ping checks the database connection.
func (s *SQLStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// rebind rewrites ? placeholders to $n for Postgres.
func (s *SQLStore) rebind(q string) string {
	if s.dialect != dialectPostgres {
		return q
	}
	var b strings.Builder
	n := 0
	for _, r := range q {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

const messageColumns = "id, source_id, sender, sender_name, subject, body, summary, reply, status, created_at, updated_at, sent_at"

type scanner interface {
	Scan(dest ...any) error
}

func scanMessage(sc scanner) (model.Message, error) {
	var (
		m                        model.Message
		source                   sql.NullString
		status                   string
		created, updated, sentAt int64
	)
	err := sc.Scan(&m.ID, &source, &m.Sender, &m.SenderName, &m.Subject, &m.Body, &m.Summary, &m.Reply,
		&status, &created, &updated, &sentAt)
	if err != nil {
		return m, err
	}
	m.SourceID = source.String
	m.Status = model.Status(status)
	m.CreatedAt = fromNanos(created)
	m.UpdatedAt = fromNanos(updated)
	m.SentAt = fromNanos(sentAt)
	return m, nil
}

func scanMessages(rows *sql.Rows) ([]model.Message, error) {
	defer rows.Close()
	var msgs []model.Message
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}

// sortByCreated orders messages oldest first, breaking ties by id.
func sortByCreated(msgs []model.Message) {
	sort.SliceStable(msgs, func(i, j int) bool {
		if msgs[i].CreatedAt.Equal(msgs[j].CreatedAt) {
			return msgs[i].ID < msgs[j].ID
		}
		return msgs[i].CreatedAt.Before(msgs[j].CreatedAt)
	})
}

func toNanos(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixNano()
}

func fromNanos(n int64) time.Time {
	if n == 0 {
		return time.Time{}
	}
	return time.Unix(0, n).UTC()
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
