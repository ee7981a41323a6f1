package report

import (
	"context"
	"time"

	"sigevent-service/internal/logging"
)

// NextRun returns the first time strictly after now at hour:00 UTC.
func NextRun(now time.Time, hour int) time.Time {
	now = now.UTC()
	next := time.Date(now.Year(), now.Month(), now.Day(), hour, 0, 0, 0, time.UTC)
	if !next.After(now) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}

// Schedule calls run once a day at hour UTC until ctx is done. A failed run
// is logged and not retried; the next day's report covers its own day only.
func Schedule(ctx context.Context, hour int, logger *logging.Logger, run func(context.Context) error) {
	for {
		next := NextRun(time.Now(), hour)
		logger.Infof("Next daily report at %s", next.Format(time.RFC3339))

		t := time.NewTimer(time.Until(next))
		select {
		case <-ctx.Done():
			t.Stop()
			return
		case <-t.C:
		}

		if err := run(ctx); err != nil {
			logger.Errorf("Daily report failed: %v", err)
			continue
		}
		logger.Info("Daily report sent")
	}
}
