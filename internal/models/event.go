package models

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// EventMessage is the Sigevent input message. Values are treated as immutable
// once parsed; WithTimestamp returns a modified copy.
type EventMessage struct {
	CollectionName string     `json:"collection_name"`
	Category       string     `json:"category"`
	Subject        string     `json:"subject"`
	Description    string     `json:"description"`
	GranuleName    *string    `json:"granule_name"`
	EventLevel     EventLevel `json:"event_level"`
	SourceName     string     `json:"source_name"`
	Executor       string     `json:"executor"`
	Timestamp      *time.Time `json:"timestamp"`
}

// eventMessageWire mirrors the inbound JSON so missing fields can be told
// apart from empty ones.
type eventMessageWire struct {
	CollectionName *string `json:"collection_name" validate:"required,min=1"`
	Category       *string `json:"category" validate:"required"`
	Subject        *string `json:"subject" validate:"required"`
	Description    *string `json:"description" validate:"required"`
	GranuleName    *string `json:"granule_name"`
	EventLevel     *string `json:"event_level" validate:"required,oneof=ERROR WARN INFO DEBUG"`
	SourceName     *string `json:"source_name" validate:"required"`
	Executor       *string `json:"executor" validate:"required"`
	Timestamp      *string `json:"timestamp"`
}

// ValidationError reports an inbound payload that does not match the
// EventMessage schema.
type ValidationError struct {
	Raw    string
	Reason string
	Err    error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid event message: %s", e.Reason)
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Accepted timestamp layouts; values without a zone are read as UTC.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
}

func parseTimestamp(s string) (time.Time, error) {
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("timestamp %q is not ISO-8601", s)
}

// ParseEventMessage decodes and strictly validates an inbound message.
// Every failure is returned as a *ValidationError.
func ParseEventMessage(data []byte) (EventMessage, error) {
	invalid := func(reason string, err error) (EventMessage, error) {
		return EventMessage{}, &ValidationError{Raw: string(data), Reason: reason, Err: err}
	}

	var wire eventMessageWire
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&wire); err != nil {
		return invalid(err.Error(), err)
	}
	if _, err := dec.Token(); err != io.EOF {
		return invalid("trailing data after message", err)
	}

	if err := validate.Struct(wire); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) {
			reasons := make([]string, 0, len(fieldErrs))
			for _, fe := range fieldErrs {
				reasons = append(reasons, fmt.Sprintf("%s: failed %s", fe.Field(), fe.Tag()))
			}
			return invalid(strings.Join(reasons, "; "), err)
		}
		return invalid(err.Error(), err)
	}

	msg := EventMessage{
		CollectionName: *wire.CollectionName,
		Category:       *wire.Category,
		Subject:        *wire.Subject,
		Description:    *wire.Description,
		GranuleName:    wire.GranuleName,
		EventLevel:     EventLevel(*wire.EventLevel),
		SourceName:     *wire.SourceName,
		Executor:       *wire.Executor,
	}
	if wire.Timestamp != nil {
		ts, err := parseTimestamp(*wire.Timestamp)
		if err != nil {
			return invalid(err.Error(), err)
		}
		msg.Timestamp = &ts
	}
	return msg, nil
}

// UnmarshalJSON applies the same strict rules as ParseEventMessage.
func (m *EventMessage) UnmarshalJSON(data []byte) error {
	parsed, err := ParseEventMessage(data)
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

// HasTimestamp reports whether the message carries its own timestamp.
func (m EventMessage) HasTimestamp() bool {
	return m.Timestamp != nil
}

// WithTimestamp returns a copy of m whose timestamp is t when m has none.
func (m EventMessage) WithTimestamp(t time.Time) EventMessage {
	if m.Timestamp != nil {
		return m
	}
	ts := t.UTC()
	m.Timestamp = &ts
	return m
}

// TimestampMillis returns the message time in unix milliseconds, or 0 when unset.
func (m EventMessage) TimestampMillis() int64 {
	if m.Timestamp == nil {
		return 0
	}
	return m.Timestamp.UnixMilli()
}

// JSON returns the serialized form stored in the log and embedded in emails.
func (m EventMessage) JSON() (string, error) {
	b, err := json.Marshal(m)
	if err != nil {
		return "", fmt.Errorf("failed to serialize event message: %w", err)
	}
	return string(b), nil
}

func (m EventMessage) String() string {
	granule := "<none>"
	if m.GranuleName != nil {
		granule = *m.GranuleName
	}
	ts := "<none>"
	if m.Timestamp != nil {
		ts = m.Timestamp.Format(time.RFC3339Nano)
	}
	return fmt.Sprintf(
		"EventMessage(event_level=%s, subject=%s, description=%s, collection_name=%s, granule_name=%s, category=%s, source_name=%s, executor=%s, timestamp=%s)",
		m.EventLevel, m.Subject, m.Description, m.CollectionName, granule, m.Category, m.SourceName, m.Executor, ts,
	)
}
