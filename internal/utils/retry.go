package utils

import (
	"fmt"
	"time"

	"sigevent-service/internal/logging"
)

// Retry runs fn until it succeeds or maxAttempts is reached, sleeping delay
// between attempts. Only used for startup dependency checks; message
// processing is never retried in-process.
func Retry(logger *logging.Logger, name string, maxAttempts int, delay time.Duration, fn func() error) error {
	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err := fn(); err != nil {
			lastErr = err
			logger.Errorf("%s: attempt %d/%d failed: %v", name, attempt, maxAttempts, err)
			if attempt < maxAttempts {
				time.Sleep(delay)
			}
			continue
		}
		return nil
	}
	return fmt.Errorf("%s failed after %d attempts: %w", name, maxAttempts, lastErr)
}
