package analysis

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/tjfontaine/youtube-reviewer/internal/domain"
)

const defaultRetries = 2

var retryBackoff = 500 * time.Millisecond

// withRetry calls fn until it succeeds, returns a non-retryable error, or
// the attempts run out. Only upstream errors marked retryable are retried.
func withRetry(ctx context.Context, retries int, logger *slog.Logger, fn func() error) error {
	backoff := retryBackoff
	for attempt := 0; ; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}

		var apiErr *domain.APIError
		if !errors.As(err, &apiErr) || !apiErr.Retryable() || attempt >= retries {
			return err
		}

		logger.Warn("retrying analysis call", "attempt", attempt+1, "error", err, "backoff", backoff)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
	}
}
