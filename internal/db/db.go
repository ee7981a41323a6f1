package db

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib"
)

// DefaultPageSize is the number of events returned per FilterEvents page.
const DefaultPageSize = 1000

// DB is the PostgreSQL-backed log store.
type DB struct {
	Conn     *sql.DB
	pageSize int
}

// New opens a connection pool for dsn using the pgx driver.
func New(dsn string) (*DB, error) {
	conn, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to create pool: %w", err)
	}
	return NewWithConn(conn), nil
}

// NewWithConn wraps an existing *sql.DB.
func NewWithConn(conn *sql.DB) *DB {
	return &DB{Conn: conn, pageSize: DefaultPageSize}
}

// WithPageSize overrides the FilterEvents page size.
func (d *DB) WithPageSize(n int) *DB {
	if n > 0 {
		d.pageSize = n
	}
	return d
}

func (d *DB) Ping(ctx context.Context) error {
	return d.Conn.PingContext(ctx)
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS log_streams (
		log_group   TEXT NOT NULL,
		stream_name TEXT NOT NULL,
		created_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
		PRIMARY KEY (log_group, stream_name)
	)`,
	`CREATE TABLE IF NOT EXISTS log_events (
		id          BIGSERIAL PRIMARY KEY,
		log_group   TEXT NOT NULL,
		stream_name TEXT NOT NULL,
		event_ts    BIGINT NOT NULL,
		message     TEXT NOT NULL,
		ingested_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		FOREIGN KEY (log_group, stream_name) REFERENCES log_streams (log_group, stream_name)
	)`,
	`CREATE INDEX IF NOT EXISTS log_events_group_ts_idx ON log_events (log_group, event_ts, id)`,
}

// Migrate creates the log store tables if they do not exist.
func (d *DB) Migrate(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := d.Conn.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to migrate log store: %w", err)
		}
	}
	return nil
}

func (d *DB) Close() error {
	return d.Conn.Close()
}
