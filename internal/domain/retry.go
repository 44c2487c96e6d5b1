package domain

import (
	"context"
	"time"

	"pharmaflow/internal/core/apperror"
	"pharmaflow/pkg/logger"
)

// DefaultConflictRetries bounds RetryOnConflict when callers pass zero.
const DefaultConflictRetries = 3

// RetryOnConflict runs fn again when it fails with CONCURRENT_MODIFICATION.
// Any other error, or the last conflict, is returned as is.
func RetryOnConflict(ctx context.Context, attempts int, fn func(ctx context.Context) error) error {
	if attempts <= 0 {
		attempts = DefaultConflictRetries
	}

	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		err = fn(ctx)
		if err == nil || !apperror.IsConcurrentModification(err) {
			return err
		}
		if attempt == attempts {
			break
		}
		logger.Debug(ctx, "version conflict, retrying", "attempt", attempt)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Duration(attempt) * 10 * time.Millisecond):
		}
	}
	return err
}
