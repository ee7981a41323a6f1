package logging

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Logger writes structured logs to stdout and a rotated file.
type Logger struct {
	*logrus.Entry
	file *lumberjack.Logger
}

// New creates a Logger writing to dir/sigevent.log and stdout at the given level.
// An empty dir logs to stdout only.
func New(dir, level string) (*Logger, error) {
	var out io.Writer = os.Stdout
	var file *lumberjack.Logger
	if dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create logs folder failed: %w", err)
		}
		file = &lumberjack.Logger{
			Filename:   filepath.Join(dir, "sigevent.log"),
			MaxSize:    50, // megabytes
			MaxBackups: 7,
			MaxAge:     30, // days
			Compress:   true,
		}
		out = io.MultiWriter(os.Stdout, file)
	}

	l, err := NewWithWriter(out, level)
	if err != nil {
		return nil, err
	}
	l.file = file
	return l, nil
}

// NewWithWriter creates a Logger writing only to w.
func NewWithWriter(w io.Writer, level string) (*Logger, error) {
	lvl := logrus.InfoLevel
	if level != "" {
		parsed, err := logrus.ParseLevel(level)
		if err != nil {
			return nil, fmt.Errorf("invalid log level %q: %w", level, err)
		}
		lvl = parsed
	}

	base := logrus.New()
	base.SetOutput(w)
	base.SetLevel(lvl)
	base.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: time.RFC3339,
	})
	return &Logger{Entry: logrus.NewEntry(base).WithField("service", "sigevent")}, nil
}

// Discard returns a Logger that drops everything. Intended for tests.
func Discard() *Logger {
	l, _ := NewWithWriter(io.Discard, "panic")
	return l
}

// WithRequestID tags entries with the id of the message or request being handled.
func (l *Logger) WithRequestID(requestID string) *logrus.Entry {
	return l.WithField("request_id", requestID)
}

type requestIDKey struct{}

// ContextWithRequestID attaches a request id to ctx for later log entries.
func ContextWithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, requestID)
}

// RequestID returns the request id stored in ctx, if any.
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

// FromContext returns an entry tagged with the request id carried by ctx.
func (l *Logger) FromContext(ctx context.Context) *logrus.Entry {
	if id := RequestID(ctx); id != "" {
		return l.WithRequestID(id)
	}
	return l.Entry
}

// Close flushes and closes the log file, if any.
func (l *Logger) Close() {
	if l.file == nil {
		return
	}
	_ = l.file.Close()
}
