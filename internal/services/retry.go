package services

import (
	"context"
	"log/slog"
	"time"

	"github.com/SAP-F-2025/test-attempt-service/internal/repositories"
)

// RetryPolicy bounds retries of storage operations that failed transiently
type RetryPolicy struct {
	Attempts int
	Backoff  time.Duration
}

var DefaultRetryPolicy = RetryPolicy{Attempts: 3, Backoff: 50 * time.Millisecond}

// withRetry runs fn until it succeeds, fails with a non-transient error or the policy
// is exhausted. The wait grows linearly with each attempt.
func withRetry(ctx context.Context, policy RetryPolicy, logger *slog.Logger, op string, fn func() error) error {
	attempts := policy.Attempts
	if attempts < 1 {
		attempts = 1
	}

	var err error
	for i := 1; i <= attempts; i++ {
		if err = fn(); err == nil || !repositories.IsTransient(err) || i == attempts {
			return err
		}

		logger.Warn("Transient storage error, retrying", "operation", op, "attempt", i, "error", err)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Duration(i) * policy.Backoff):
		}
	}
	return err
}
