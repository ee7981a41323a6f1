package models

import "fmt"

// EventLevel is the severity of a Sigevent message. Ordering is defined by
// levelRank, not by declaration order.
type EventLevel string

const (
	LevelError EventLevel = "ERROR"
	LevelWarn  EventLevel = "WARN"
	LevelInfo  EventLevel = "INFO"
	LevelDebug EventLevel = "DEBUG"
)

var levelRank = map[EventLevel]int{
	LevelError: 4,
	LevelWarn:  3,
	LevelInfo:  2,
	LevelDebug: 1,
}

// Levels returns every level from most to least severe.
func Levels() []EventLevel {
	return []EventLevel{LevelError, LevelWarn, LevelInfo, LevelDebug}
}

// ParseEventLevel converts a wire value into an EventLevel.
func ParseEventLevel(s string) (EventLevel, error) {
	l := EventLevel(s)
	if !l.Valid() {
		return "", fmt.Errorf("unknown event level %q", s)
	}
	return l, nil
}

// Valid reports whether l is one of the four known levels.
func (l EventLevel) Valid() bool {
	_, ok := levelRank[l]
	return ok
}

// Rank returns the position of l in the severity order; unknown levels rank 0.
func (l EventLevel) Rank() int {
	return levelRank[l]
}

// Compare returns -1, 0 or 1 when l is less, equally or more severe than other.
func (l EventLevel) Compare(other EventLevel) int {
	a, b := l.Rank(), other.Rank()
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

// Less reports whether l is strictly less severe than other.
func (l EventLevel) Less(other EventLevel) bool {
	return l.Compare(other) < 0
}

func (l EventLevel) String() string {
	return string(l)
}
