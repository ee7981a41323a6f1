package models

// NotificationCounterEntry is the persisted per-(level, collection) daily
// notification counter.
type NotificationCounterEntry struct {
	Fingerprint string `json:"message_hash"`
	Date        string `json:"date"`       // UTC calendar day, YYYY-MM-DD
	Count       int64  `json:"count"`      // notifications sent on Date
	Expiration  int64  `json:"expiration"` // unix seconds, start of the next UTC day
}

// LogEvent is a single entry in a log stream.
type LogEvent struct {
	ID        int64  `json:"id,omitempty"`
	Timestamp int64  `json:"timestamp"` // unix milliseconds
	Message   string `json:"message"`
}

// LogPage is one page of a filtered log query. NextToken is empty on the
// last page.
type LogPage struct {
	Events    []LogEvent `json:"events"`
	NextToken string     `json:"next_token,omitempty"`
}
