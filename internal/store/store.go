// Package store persists ingested records into Postgres.
package store

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/k1networth/hello-pipeline/internal/shared/db"
)

const (
	TableMessages      = "messages"
	TablePublishedData = "published_data"

	defaultListLimit = 100
)

type Message struct {
	ID        int64     `json:"id"`
	Topic     string    `json:"topic"`
	Partition int       `json:"part"`
	Offset    int64     `json:"kafkaoffset"`
	Payload   string    `json:"payload"`
	CreatedAt time.Time `json:"created_at"`
}

type PublishedData struct {
	ID        int64          `json:"id"`
	Topic     string         `json:"topic"`
	Partition int            `json:"part"`
	Offset    int64          `json:"kafkaoffset"`
	Data      string         `json:"data"`
	Metadata  sql.NullString `json:"-"`
	CreatedAt time.Time      `json:"created_at"`
}

type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store { return &Store{db: db} }

// InsertMessage writes one messages row in its own transaction.
func (s *Store) InsertMessage(ctx context.Context, topic string, partition int, offset int64, payload string) error {
	const q = `
INSERT INTO messages (topic, part, kafkaoffset, payload)
VALUES ($1, $2, $3, $4);
`
	return db.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, q, topic, partition, offset, payload)
		return err
	})
}

// InsertPublishedData writes one published_data row in its own transaction.
// An empty metadata is stored as NULL.
func (s *Store) InsertPublishedData(ctx context.Context, topic string, partition int, offset int64, data, metadata string) error {
	const q = `
INSERT INTO published_data (topic, part, kafkaoffset, data, metadata)
VALUES ($1, $2, $3, $4, $5);
`
	md := sql.NullString{String: metadata, Valid: metadata != ""}
	return db.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, q, topic, partition, offset, data, md)
		return err
	})
}

// ListMessages returns the newest rows for topic.
func (s *Store) ListMessages(ctx context.Context, topic string, limit int) ([]Message, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	const q = `
SELECT id, topic, part, kafkaoffset, payload, created_at
FROM messages
WHERE topic = $1
ORDER BY created_at DESC, id DESC
LIMIT $2;
`
	rows, err := s.db.QueryContext(ctx, q, topic, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	out := []Message{}
	for rows.Next() {
		var m Message
		if err := rows.Scan(&m.ID, &m.Topic, &m.Partition, &m.Offset, &m.Payload, &m.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// ListPublished returns the newest published_data rows, optionally keeping
// only rows whose data or metadata contains filter as a literal substring.
func (s *Store) ListPublished(ctx context.Context, filter string, limit int) ([]PublishedData, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	const q = `
SELECT id, topic, part, kafkaoffset, data, metadata, created_at
FROM published_data
WHERE $1::text = '' OR data LIKE $2::text ESCAPE '\' OR metadata LIKE $2::text ESCAPE '\'
ORDER BY created_at DESC, id DESC
LIMIT $3;
`
	rows, err := s.db.QueryContext(ctx, q, filter, containsPattern(filter), limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	out := []PublishedData{}
	for rows.Next() {
		var p PublishedData
		if err := rows.Scan(&p.ID, &p.Topic, &p.Partition, &p.Offset, &p.Data, &p.Metadata, &p.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// containsPattern turns s into a LIKE pattern matching any value containing s.
func containsPattern(s string) string {
	return "%" + likeEscaper.Replace(s) + "%"
}

// Ping reports whether the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}
