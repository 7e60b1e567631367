package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jinzhu/copier"

	"github.com/SAP-F-2025/test-attempt-service/internal/events"
	"github.com/SAP-F-2025/test-attempt-service/internal/models"
	"github.com/SAP-F-2025/test-attempt-service/internal/repositories"
)

// ===== FINALIZATION =====

type finalizeResult struct {
	attempt      *models.TestAttempt
	score        *models.ScoreBreakdown
	transitioned bool // false when the attempt had already been submitted
}

// finalize moves an attempt to SUBMITTED and stores its breakdown in one transaction.
// Concurrent callers serialize on the row lock and the conditional status update; the
// ones that arrive second read back the stored breakdown instead of scoring again.
func (s *attemptService) finalize(ctx context.Context, attempt *models.TestAttempt, def *models.TestDefinition, auto bool) (*finalizeResult, error) {
	var result *finalizeResult
	err := withRetry(ctx, s.config.Retry, s.logger, "finalize_attempt", func() error {
		result = &finalizeResult{}
		return s.repo.WithTransaction(ctx, func(txRepo repositories.Repository) error {
			locked, err := txRepo.Attempt().LockForUpdate(ctx, nil, attempt.ID)
			if err != nil {
				if repositories.IsNotFound(err) {
					return ErrAttemptNotFound
				}
				return err
			}

			if locked.Status == models.AttemptSubmitted {
				score, err := txRepo.Score().GetByAttempt(ctx, nil, locked.ID)
				if err != nil {
					return err
				}
				result.attempt, result.score = locked, score
				return nil
			}

			answers, err := txRepo.Answer().GetByAttempt(ctx, nil, locked.ID)
			if err != nil {
				return err
			}

			score, err := ScoreAttempt(def, answers)
			if err != nil {
				return err
			}

			submittedAt := s.submissionTime(locked, auto)
			applied, err := txRepo.Attempt().MarkSubmitted(ctx, nil, locked.ID, submittedAt, auto)
			if err != nil {
				return err
			}
			if !applied {
				return ErrConcurrentFinalizeLost
			}

			score.AttemptID = locked.ID
			score.ScoredAt = s.clock.Now()
			if err := txRepo.Score().Create(ctx, nil, score); err != nil {
				return err
			}

			locked.Status = models.AttemptSubmitted
			locked.SubmittedAt = &submittedAt
			locked.AutoSubmitted = auto
			result.attempt, result.score, result.transitioned = locked, score, true
			return nil
		})
	})

	if errors.Is(err, ErrConcurrentFinalizeLost) {
		s.logger.Info("Attempt finalized concurrently, returning stored score", "attempt_id", attempt.ID)
		return s.reloadFinalized(ctx, attempt.ID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to finalize attempt %d: %w", attempt.ID, err)
	}

	if result.transitioned {
		s.logger.Info("Test attempt submitted",
			"attempt_id", result.attempt.ID,
			"user_id", result.attempt.UserID,
			"net_score", result.score.Net,
			"auto", auto)

		s.publish(ctx, events.AttemptSubmitted, events.AttemptSubmittedData{
			AttemptID:   result.attempt.ID,
			UserID:      result.attempt.UserID,
			SeriesID:    result.attempt.SeriesID,
			TestID:      result.attempt.TestID,
			SubmittedAt: *result.attempt.SubmittedAt,
			NetScore:    result.score.Net,
			Correct:     result.score.Correct,
			Incorrect:   result.score.Incorrect,
			Unattempted: result.score.Unattempted,
			Auto:        auto,
		})
	}

	return result, nil
}

func (s *attemptService) reloadFinalized(ctx context.Context, attemptID uint) (*finalizeResult, error) {
	attempt, err := s.getAttempt(ctx, attemptID)
	if err != nil {
		return nil, err
	}
	score, err := s.storedScore(ctx, attemptID)
	if err != nil {
		return nil, err
	}
	return &finalizeResult{attempt: attempt, score: score}, nil
}

// submissionTime is now, except that an attempt closed for running out of time is
// stamped with its deadline so a late sweep does not cost it ranking ties.
func (s *attemptService) submissionTime(attempt *models.TestAttempt, auto bool) time.Time {
	now := s.clock.Now()
	if auto {
		if deadline := attempt.Deadline(s.config.ExpiryGrace); deadline.Before(now) {
			return deadline
		}
	}
	return now
}

func (s *attemptService) storedScore(ctx context.Context, attemptID uint) (*models.ScoreBreakdown, error) {
	var score *models.ScoreBreakdown
	err := withRetry(ctx, s.config.Retry, s.logger, "get_score", func() error {
		var err error
		score, err = s.repo.Score().GetByAttempt(ctx, s.db, attemptID)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get score for attempt %d: %w", attemptID, err)
	}
	return score, nil
}

// ===== LOOKUPS =====

func (s *attemptService) getAttempt(ctx context.Context, attemptID uint) (*models.TestAttempt, error) {
	var attempt *models.TestAttempt
	err := withRetry(ctx, s.config.Retry, s.logger, "get_attempt", func() error {
		var err error
		attempt, err = s.repo.Attempt().GetByID(ctx, s.db, attemptID)
		return err
	})
	if err != nil {
		if repositories.IsNotFound(err) {
			return nil, ErrAttemptNotFound
		}
		return nil, fmt.Errorf("failed to get attempt: %w", err)
	}
	return attempt, nil
}

func (s *attemptService) getOwnedAttempt(ctx context.Context, attemptID uint, userID, action string) (*models.TestAttempt, error) {
	attempt, err := s.getAttempt(ctx, attemptID)
	if err != nil {
		return nil, err
	}

	// Verify ownership
	if attempt.UserID != userID {
		return nil, NewPermissionError(userID, attemptID, "attempt", action, "not owned by user")
	}
	return attempt, nil
}

func (s *attemptService) findAttempt(ctx context.Context, userID string, seriesID, testID uint) (*models.TestAttempt, error) {
	var attempt *models.TestAttempt
	err := withRetry(ctx, s.config.Retry, s.logger, "find_attempt", func() error {
		var err error
		attempt, err = s.repo.Attempt().GetByUserAndTest(ctx, s.db, userID, seriesID, testID)
		return err
	})
	if err != nil {
		if repositories.IsNotFound(err) {
			return nil, ErrAttemptNotFound
		}
		return nil, fmt.Errorf("failed to find attempt: %w", err)
	}
	return attempt, nil
}

func (s *attemptService) countAnswered(ctx context.Context, attemptID uint) (int, error) {
	var answers []*models.AnswerEntry
	err := withRetry(ctx, s.config.Retry, s.logger, "get_answers", func() error {
		var err error
		answers, err = s.repo.Answer().GetByAttempt(ctx, s.db, attemptID)
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("failed to get answers: %w", err)
	}

	count := 0
	for _, a := range answers {
		if a.Answered() {
			count++
		}
	}
	return count, nil
}

// ===== PRECONDITIONS =====

func (s *attemptService) checkEligibility(ctx context.Context, userID string, seriesID, testID uint) error {
	var eligible bool
	err := withRetry(ctx, s.config.Retry, s.logger, "check_access", func() error {
		var err error
		eligible, err = s.repo.Access().HasEligibleAccess(ctx, userID, seriesID, testID)
		return err
	})
	if err != nil {
		if repositories.IsNotFound(err) {
			return ErrTestNotFound
		}
		return fmt.Errorf("failed to check access: %w", err)
	}

	if !eligible {
		s.logger.Info("Access gate denied attempt start", "user_id", userID, "series_id", seriesID, "test_id", testID)
		return ErrNotEligible
	}
	return nil
}

func checkWindow(def *models.TestDefinition, now time.Time) error {
	if def.StartTime != nil && now.Before(*def.StartTime) {
		return ErrTestWindowNotOpen
	}
	if def.EndTime != nil && !now.Before(*def.EndTime) {
		return ErrTestWindowClosed
	}
	return nil
}

func checkOption(q *models.QuestionDefinition, option int) error {
	if option == models.NoAnswer || option < len(q.Options) {
		return nil
	}
	return ValidationErrors{{
		Field:   "selected_option",
		Message: fmt.Sprintf("must be below %d for question %d", len(q.Options), q.ID),
		Value:   option,
		Rule:    "option_index",
	}}
}

// ===== RESPONSES AND EVENTS =====

func (s *attemptService) toResponse(attempt *models.TestAttempt, def *models.TestDefinition, answered int) *AttemptResponse {
	resp := &AttemptResponse{}
	if err := copier.Copy(resp, attempt); err != nil {
		s.logger.Warn("Failed to copy attempt into response", "attempt_id", attempt.ID, "error", err)
	}

	startedAt := attempt.StartedAt
	resp.StartedAt = &startedAt
	resp.AnsweredCount = answered
	resp.QuestionCount = def.QuestionCount()

	if attempt.Status == models.AttemptInProgress {
		expiresAt := attempt.Deadline(s.config.ExpiryGrace)
		resp.ExpiresAt = &expiresAt
		resp.RemainingSeconds = int64(attempt.RemainingTime(s.clock.Now(), s.config.ExpiryGrace) / time.Second)
	}

	return resp
}

// publish sends an event after the change it reports has committed. Failures are
// logged and never fail the request.
func (s *attemptService) publish(ctx context.Context, eventType events.EventType, data interface{}) {
	if s.publisher == nil {
		return
	}

	event := events.NewEvent(eventType, s.clock.Now(), data)
	if err := s.publisher.Publish(context.WithoutCancel(ctx), event); err != nil {
		s.logger.Warn("Failed to publish event", "event_type", eventType, "error", err)
	}
}
