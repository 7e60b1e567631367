package services

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/SAP-F-2025/test-attempt-service/internal/repositories"
	"github.com/SAP-F-2025/test-attempt-service/internal/utils"
)

const sweepBatchSize = 200

// ExpirySweeper periodically finalizes in-progress attempts whose deadline has passed.
// Attempts are also finalized lazily when touched, so the sweeper only bounds how long
// an abandoned attempt stays out of the ranking.
type ExpirySweeper struct {
	repo     repositories.Repository
	attempts AttemptService
	clock    utils.Clock
	logger   *slog.Logger
	interval time.Duration
	grace    time.Duration
	batch    int

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

func NewExpirySweeper(repo repositories.Repository, attempts AttemptService, clock utils.Clock, logger *slog.Logger, interval, grace time.Duration) *ExpirySweeper {
	return &ExpirySweeper{
		repo:     repo,
		attempts: attempts,
		clock:    clock,
		logger:   logger,
		interval: interval,
		grace:    grace,
		batch:    sweepBatchSize,
	}
}

// Start runs the sweep loop until Stop is called or ctx ends. A non-positive interval
// disables the sweeper.
func (w *ExpirySweeper) Start(ctx context.Context) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.cancel != nil || w.interval <= 0 {
		return
	}

	ctx, w.cancel = context.WithCancel(ctx)
	w.done = make(chan struct{})

	go func() {
		defer close(w.done)

		ticker := time.NewTicker(w.interval)
		defer ticker.Stop()

		w.logger.Info("Expiry sweeper started", "interval", w.interval)
		for {
			select {
			case <-ctx.Done():
				w.logger.Info("Expiry sweeper stopped")
				return
			case <-ticker.C:
				if _, err := w.SweepOnce(ctx); err != nil && ctx.Err() == nil {
					w.logger.Error("Expiry sweep failed", "error", err)
				}
			}
		}
	}()
}

func (w *ExpirySweeper) Stop() {
	w.mu.Lock()
	cancel, done := w.cancel, w.done
	w.cancel, w.done = nil, nil
	w.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// SweepOnce finalizes every attempt that is expired at the start of the sweep and
// returns how many it finalized. Pages are keyed by attempt id, so attempts that keep
// failing (an unscorable test) are skipped over instead of filling every batch.
func (w *ExpirySweeper) SweepOnce(ctx context.Context) (int, error) {
	now := w.clock.Now()
	finalized := 0

	var afterID uint
	for {
		ids, err := w.repo.Attempt().ListExpired(ctx, nil, now, w.grace, afterID, w.batch)
		if err != nil {
			return finalized, err
		}

		for _, id := range ids {
			if ctx.Err() != nil {
				return finalized, ctx.Err()
			}

			ok, err := w.attempts.FinalizeIfExpired(ctx, id)
			if err != nil {
				w.logger.Error("Failed to finalize expired attempt", "attempt_id", id, "error", err)
				continue
			}
			if ok {
				finalized++
			}
		}

		if len(ids) < w.batch {
			break
		}
		afterID = ids[len(ids)-1]
	}

	if finalized > 0 {
		w.logger.Info("Expired attempts finalized", "count", finalized)
	}
	return finalized, nil
}
