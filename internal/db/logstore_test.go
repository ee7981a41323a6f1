package db

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
	"sigevent-service/internal/models"
)

func newMockDB(t *testing.T) (*DB, sqlmock.Sqlmock) {
	t.Helper()
	conn, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return NewWithConn(conn), mock
}

var (
	insertStream = regexp.QuoteMeta("INSERT INTO log_streams (log_group, stream_name)")
	insertEvent  = regexp.QuoteMeta("INSERT INTO log_events (log_group, stream_name, event_ts, message)")
	selectEvents = regexp.QuoteMeta("SELECT id, event_ts, message")
)

func TestCreateStream(t *testing.T) {
	store, mock := newMockDB(t)
	mock.ExpectExec(insertStream).
		WithArgs("test-cw-group", "collection-name").
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := store.CreateStream(context.Background(), "test-cw-group", "collection-name"); err != nil {
		t.Errorf("CreateStream() error = %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestCreateStream_AlreadyExists(t *testing.T) {
	store, mock := newMockDB(t)
	mock.ExpectExec(insertStream).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(insertStream).WillReturnResult(sqlmock.NewResult(0, 0))

	ctx := context.Background()
	if err := store.CreateStream(ctx, "g", "s"); err != nil {
		t.Fatalf("first CreateStream() error = %v", err)
	}
	err := store.CreateStream(ctx, "g", "s")
	if !errors.Is(err, ErrStreamExists) {
		t.Errorf("second CreateStream() error = %v, want ErrStreamExists", err)
	}
}

func TestCreateStream_Failure(t *testing.T) {
	store, mock := newMockDB(t)
	mock.ExpectExec(insertStream).WillReturnError(errors.New("connection reset"))

	err := store.CreateStream(context.Background(), "g", "s")
	if err == nil || errors.Is(err, ErrStreamExists) {
		t.Errorf("CreateStream() error = %v, want transient error", err)
	}
}

func TestPutEvents(t *testing.T) {
	store, mock := newMockDB(t)
	events := []models.LogEvent{
		{Timestamp: 0, Message: `{"a":1}`},
		{Timestamp: 1000, Message: `{"a":2}`},
	}

	mock.ExpectBegin()
	mock.ExpectExec(insertEvent).WithArgs("g", "s", int64(0), `{"a":1}`).WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(insertEvent).WithArgs("g", "s", int64(1000), `{"a":2}`).WillReturnResult(sqlmock.NewResult(2, 1))
	mock.ExpectCommit()

	if err := store.PutEvents(context.Background(), "g", "s", events); err != nil {
		t.Errorf("PutEvents() error = %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestPutEvents_MissingStream(t *testing.T) {
	store, mock := newMockDB(t)

	mock.ExpectBegin()
	mock.ExpectExec(insertEvent).WillReturnError(&pgconn.PgError{Code: foreignKeyViolation})
	mock.ExpectRollback()

	err := store.PutEvents(context.Background(), "g", "s", []models.LogEvent{{Message: "{}"}})
	if !errors.Is(err, ErrStreamNotFound) {
		t.Errorf("PutEvents() error = %v, want ErrStreamNotFound", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestPutEvents_Empty(t *testing.T) {
	store, mock := newMockDB(t)
	if err := store.PutEvents(context.Background(), "g", "s", nil); err != nil {
		t.Errorf("PutEvents(nil) error = %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestFilterEvents_Pagination(t *testing.T) {
	store, mock := newMockDB(t)
	store.WithPageSize(2)
	ctx := context.Background()

	mock.ExpectQuery(selectEvents).
		WithArgs("g", int64(631152000000), int64(631238399999), int64(0), int64(2)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "event_ts", "message"}).
			AddRow(int64(3), int64(631152000001), "m1").
			AddRow(int64(7), int64(631152000002), "m2"))
	mock.ExpectQuery(selectEvents).
		WithArgs("g", int64(631152000000), int64(631238399999), int64(7), int64(2)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "event_ts", "message"}).
			AddRow(int64(9), int64(631152000003), "m3"))

	first, err := store.FilterEvents(ctx, "g", 631152000000, 631238399999, "")
	if err != nil {
		t.Fatalf("FilterEvents() error = %v", err)
	}
	if len(first.Events) != 2 || first.NextToken != "7" {
		t.Fatalf("first page = %+v, want 2 events and token 7", first)
	}

	second, err := store.FilterEvents(ctx, "g", 631152000000, 631238399999, first.NextToken)
	if err != nil {
		t.Fatalf("FilterEvents() error = %v", err)
	}
	if len(second.Events) != 1 || second.NextToken != "" {
		t.Errorf("second page = %+v, want 1 event and no token", second)
	}
	if second.Events[0].Message != "m3" {
		t.Errorf("message = %q, want m3", second.Events[0].Message)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestFilterEvents_InvalidToken(t *testing.T) {
	store, _ := newMockDB(t)
	if _, err := store.FilterEvents(context.Background(), "g", 0, 1, "not-a-token"); err == nil {
		t.Error("FilterEvents() should reject malformed token")
	}
}

func TestMigrate(t *testing.T) {
	store, mock := newMockDB(t)
	mock.ExpectExec(regexp.QuoteMeta("CREATE TABLE IF NOT EXISTS log_streams")).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta("CREATE TABLE IF NOT EXISTS log_events")).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta("CREATE INDEX IF NOT EXISTS log_events_group_ts_idx")).WillReturnResult(sqlmock.NewResult(0, 0))

	if err := store.Migrate(context.Background()); err != nil {
		t.Errorf("Migrate() error = %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}
