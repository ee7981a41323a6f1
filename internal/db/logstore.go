package db

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/jackc/pgx/v5/pgconn"
	"sigevent-service/internal/models"
)

var (
	// ErrStreamExists is returned by CreateStream when the stream is already present.
	ErrStreamExists = errors.New("log stream already exists")
	// ErrStreamNotFound is returned by PutEvents when the stream was never created.
	ErrStreamNotFound = errors.New("log stream does not exist")
)

const foreignKeyViolation = "23503"

func isPgCode(err error, code string) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == code
}

// CreateStream registers stream under group. Concurrent first writers are
// safe: exactly one succeeds and the rest get ErrStreamExists.
func (d *DB) CreateStream(ctx context.Context, group, stream string) error {
	res, err := d.Conn.ExecContext(ctx, `
        INSERT INTO log_streams (log_group, stream_name)
        VALUES ($1, $2)
        ON CONFLICT (log_group, stream_name) DO NOTHING`, group, stream)
	if err != nil {
		return fmt.Errorf("failed to create log stream %s/%s: %w", group, stream, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to create log stream %s/%s: %w", group, stream, err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s/%s", ErrStreamExists, group, stream)
	}
	return nil
}

// PutEvents appends events to stream in a single transaction.
func (d *DB) PutEvents(ctx context.Context, group, stream string, events []models.LogEvent) error {
	if len(events) == 0 {
		return nil
	}

	tx, err := d.Conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin put events on %s/%s: %w", group, stream, err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, ev := range events {
		_, err := tx.ExecContext(ctx, `
            INSERT INTO log_events (log_group, stream_name, event_ts, message)
            VALUES ($1, $2, $3, $4)`, group, stream, ev.Timestamp, ev.Message)
		if err != nil {
			if isPgCode(err, foreignKeyViolation) {
				return fmt.Errorf("%w: %s/%s", ErrStreamNotFound, group, stream)
			}
			return fmt.Errorf("failed to put events on %s/%s: %w", group, stream, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit events on %s/%s: %w", group, stream, err)
	}
	return nil
}

// FilterEvents returns one page of events in group whose timestamp lies in
// [startMs, endMs]. Pass the previous page's NextToken to continue; an empty
// NextToken marks the last page.
func (d *DB) FilterEvents(ctx context.Context, group string, startMs, endMs int64, token string) (models.LogPage, error) {
	var after int64
	if token != "" {
		parsed, err := strconv.ParseInt(token, 10, 64)
		if err != nil || parsed < 0 {
			return models.LogPage{}, fmt.Errorf("invalid continuation token %q", token)
		}
		after = parsed
	}

	rows, err := d.Conn.QueryContext(ctx, `
        SELECT id, event_ts, message
        FROM log_events
        WHERE log_group = $1 AND event_ts >= $2 AND event_ts <= $3 AND id > $4
        ORDER BY id
        LIMIT $5`, group, startMs, endMs, after, d.pageSize)
	if err != nil {
		return models.LogPage{}, fmt.Errorf("failed to filter events in %s: %w", group, err)
	}
	defer rows.Close()

	page := models.LogPage{Events: []models.LogEvent{}}
	for rows.Next() {
		var ev models.LogEvent
		if err := rows.Scan(&ev.ID, &ev.Timestamp, &ev.Message); err != nil {
			return models.LogPage{}, fmt.Errorf("failed to scan log event: %w", err)
		}
		page.Events = append(page.Events, ev)
	}
	if err := rows.Err(); err != nil {
		return models.LogPage{}, fmt.Errorf("failed to filter events in %s: %w", group, err)
	}

	if len(page.Events) == d.pageSize {
		page.NextToken = strconv.FormatInt(page.Events[len(page.Events)-1].ID, 10)
	}
	return page, nil
}
