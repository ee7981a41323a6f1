// Package ratelimit tracks how many WARN notifications were sent per
// (level, collection) pair on the current UTC day.
//
// Admission is lookup, compare, then increment. Those steps are not atomic
// as a whole, so concurrent WARNs for the same fingerprint may be admitted
// slightly past the daily limit. The increment itself is a single store-side
// add and never loses updates.
package ratelimit

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"time"

	"sigevent-service/internal/logging"
	"sigevent-service/internal/models"
)

const dateLayout = "2006-01-02"

// Fingerprint identifies the counter slot for a (level, collection) pair.
func Fingerprint(level models.EventLevel, collection string) string {
	sum := sha1.Sum([]byte(string(level) + collection))
	return hex.EncodeToString(sum[:])
}

// Counter implements the day-scoped lookup/increment protocol over a Store.
type Counter struct {
	store  Store
	logger *logging.Logger
	now    func() time.Time
}

// NewCounter creates a Counter using the wall clock.
func NewCounter(store Store, logger *logging.Logger) *Counter {
	return &Counter{store: store, logger: logger, now: time.Now}
}

// WithClock replaces the clock; used by tests.
func (c *Counter) WithClock(now func() time.Time) *Counter {
	c.now = now
	return c
}

func (c *Counter) freshEntry(fingerprint string) models.NotificationCounterEntry {
	now := c.now().UTC()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	return models.NotificationCounterEntry{
		Fingerprint: fingerprint,
		Date:        today.Format(dateLayout),
		Count:       0,
		Expiration:  today.AddDate(0, 0, 1).Unix(),
	}
}

// LookupNotificationCount returns the number of notifications already sent
// today for fingerprint. A missing or stale entry is (re)created with count 0.
func (c *Counter) LookupNotificationCount(ctx context.Context, fingerprint string) (int64, error) {
	entry, err := c.store.GetItem(ctx, fingerprint)
	if err != nil {
		return 0, err
	}
	c.logger.Debugf("Notification lookup for %s: %+v", fingerprint, entry)

	fresh := c.freshEntry(fingerprint)
	if entry == nil || entry.Date != fresh.Date {
		if err := c.store.PutItem(ctx, fresh); err != nil {
			return 0, err
		}
		return 0, nil
	}
	return entry.Count, nil
}

// IncrementNotificationCount atomically adds one to the counter. The entry
// must already exist, which LookupNotificationCount guarantees.
func (c *Counter) IncrementNotificationCount(ctx context.Context, fingerprint string) error {
	return c.store.AtomicIncrement(ctx, fingerprint, fieldCount, 1)
}
