package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"gorm.io/gorm"

	"github.com/SAP-F-2025/test-attempt-service/internal/events"
	"github.com/SAP-F-2025/test-attempt-service/internal/models"
	"github.com/SAP-F-2025/test-attempt-service/internal/repositories"
	"github.com/SAP-F-2025/test-attempt-service/internal/utils"
	"github.com/SAP-F-2025/test-attempt-service/internal/validator"
)

// AttemptConfig tunes the attempt state machine
type AttemptConfig struct {
	// ExpiryGrace extends every deadline, absorbing client and network latency
	ExpiryGrace time.Duration
	Retry       RetryPolicy
}

type attemptService struct {
	repo        repositories.Repository
	db          *gorm.DB
	logger      *slog.Logger
	validator   *validator.Validator
	definitions DefinitionService
	publisher   events.EventPublisher
	clock       utils.Clock
	config      AttemptConfig
}

func NewAttemptService(
	repo repositories.Repository,
	db *gorm.DB,
	logger *slog.Logger,
	validator *validator.Validator,
	definitions DefinitionService,
	publisher events.EventPublisher,
	clock utils.Clock,
	config AttemptConfig,
) AttemptService {
	return &attemptService{
		repo:        repo,
		db:          db,
		logger:      logger,
		validator:   validator,
		definitions: definitions,
		publisher:   publisher,
		clock:       clock,
		config:      config,
	}
}

// ===== CORE ATTEMPT OPERATIONS =====

func (s *attemptService) Start(ctx context.Context, userID string, seriesID, testID uint) (*AttemptResponse, error) {
	s.logger.Info("Starting test attempt",
		"user_id", userID,
		"series_id", seriesID,
		"test_id", testID)

	def, err := s.definitions.Get(ctx, seriesID, testID)
	if err != nil {
		return nil, err
	}

	// An existing attempt is resumed without consulting the gate or the window again
	existing, err := s.findAttempt(ctx, userID, seriesID, testID)
	if err != nil && !errors.Is(err, ErrAttemptNotFound) {
		return nil, err
	}
	if existing != nil {
		return s.resume(ctx, existing, def)
	}

	if err := s.checkEligibility(ctx, userID, seriesID, testID); err != nil {
		return nil, err
	}

	now := s.clock.Now()
	if err := checkWindow(def, now); err != nil {
		return nil, err
	}

	candidate := &models.TestAttempt{
		UserID:          userID,
		SeriesID:        seriesID,
		TestID:          testID,
		Status:          models.AttemptInProgress,
		StartedAt:       now,
		DurationSeconds: int64(def.Duration / time.Second),
	}

	var stored *models.TestAttempt
	var created bool
	err = withRetry(ctx, s.config.Retry, s.logger, "create_attempt", func() error {
		var err error
		stored, created, err = s.repo.Attempt().CreateOrGet(ctx, s.db, candidate)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create attempt: %w", err)
	}

	if !created {
		// Lost a race with a concurrent start for the same test
		return s.resume(ctx, stored, def)
	}

	s.logger.Info("Test attempt started",
		"attempt_id", stored.ID,
		"user_id", userID,
		"duration_seconds", stored.DurationSeconds)

	s.publish(ctx, events.AttemptStarted, events.AttemptStartedData{
		AttemptID:       stored.ID,
		UserID:          stored.UserID,
		SeriesID:        stored.SeriesID,
		TestID:          stored.TestID,
		StartedAt:       stored.StartedAt,
		DurationSeconds: stored.DurationSeconds,
	})

	resp := s.toResponse(stored, def, 0)
	resp.Created = true
	return resp, nil
}

func (s *attemptService) GetAttempt(ctx context.Context, userID string, seriesID, testID uint) (*AttemptResponse, error) {
	def, err := s.definitions.Get(ctx, seriesID, testID)
	if err != nil {
		return nil, err
	}

	attempt, err := s.findAttempt(ctx, userID, seriesID, testID)
	if errors.Is(err, ErrAttemptNotFound) {
		return &AttemptResponse{
			UserID:          userID,
			SeriesID:        seriesID,
			TestID:          testID,
			Status:          models.AttemptNotStarted,
			DurationSeconds: int64(def.Duration / time.Second),
			QuestionCount:   def.QuestionCount(),
		}, nil
	}
	if err != nil {
		return nil, err
	}

	if attempt.Status == models.AttemptInProgress && attempt.IsExpired(s.clock.Now(), s.config.ExpiryGrace) {
		result, err := s.finalize(ctx, attempt, def, true)
		if err != nil {
			return nil, err
		}
		attempt = result.attempt
	}

	answered, err := s.countAnswered(ctx, attempt.ID)
	if err != nil {
		return nil, err
	}

	return s.toResponse(attempt, def, answered), nil
}

func (s *attemptService) SubmitAnswer(ctx context.Context, attemptID uint, userID string, req *SubmitAnswerRequest) (*AnswerAck, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	attempt, err := s.getOwnedAttempt(ctx, attemptID, userID, "submit_answer")
	if err != nil {
		return nil, err
	}

	return s.submitAnswer(ctx, attempt, req)
}

func (s *attemptService) SubmitAnswerForTest(ctx context.Context, userID string, seriesID, testID uint, req *SubmitAnswerRequest) (*AnswerAck, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	attempt, err := s.findAttempt(ctx, userID, seriesID, testID)
	if err != nil {
		return nil, err
	}

	return s.submitAnswer(ctx, attempt, req)
}

func (s *attemptService) SubmitTest(ctx context.Context, attemptID uint, userID string) (*models.ScoreBreakdown, error) {
	attempt, err := s.getOwnedAttempt(ctx, attemptID, userID, "submit")
	if err != nil {
		return nil, err
	}

	return s.submitTest(ctx, attempt)
}

func (s *attemptService) SubmitTestForTest(ctx context.Context, userID string, seriesID, testID uint) (*models.ScoreBreakdown, error) {
	attempt, err := s.findAttempt(ctx, userID, seriesID, testID)
	if err != nil {
		return nil, err
	}

	return s.submitTest(ctx, attempt)
}

func (s *attemptService) FinalizeIfExpired(ctx context.Context, attemptID uint) (bool, error) {
	attempt, err := s.getAttempt(ctx, attemptID)
	if err != nil {
		return false, err
	}

	if attempt.Status != models.AttemptInProgress || !attempt.IsExpired(s.clock.Now(), s.config.ExpiryGrace) {
		return false, nil
	}

	def, err := s.definitions.Get(ctx, attempt.SeriesID, attempt.TestID)
	if err != nil {
		return false, err
	}

	result, err := s.finalize(ctx, attempt, def, true)
	if err != nil {
		return false, err
	}
	return result.transitioned, nil
}

// ===== INTERNAL FLOWS =====

func (s *attemptService) resume(ctx context.Context, attempt *models.TestAttempt, def *models.TestDefinition) (*AttemptResponse, error) {
	if attempt.Status == models.AttemptSubmitted {
		return nil, ErrAttemptAlreadyFinalized
	}

	if attempt.IsExpired(s.clock.Now(), s.config.ExpiryGrace) {
		if _, err := s.finalize(ctx, attempt, def, true); err != nil {
			return nil, err
		}
		return nil, ErrAttemptAlreadyFinalized
	}

	answered, err := s.countAnswered(ctx, attempt.ID)
	if err != nil {
		return nil, err
	}

	s.logger.Info("Resuming existing attempt", "attempt_id", attempt.ID, "user_id", attempt.UserID)
	return s.toResponse(attempt, def, answered), nil
}

func (s *attemptService) submitAnswer(ctx context.Context, attempt *models.TestAttempt, req *SubmitAnswerRequest) (*AnswerAck, error) {
	if attempt.Status == models.AttemptSubmitted {
		return nil, ErrAttemptAlreadyFinalized
	}

	def, err := s.definitions.Get(ctx, attempt.SeriesID, attempt.TestID)
	if err != nil {
		return nil, err
	}

	if attempt.IsExpired(s.clock.Now(), s.config.ExpiryGrace) {
		return nil, s.expire(ctx, attempt, def)
	}

	question, ok := def.FindQuestion(req.QuestionID)
	if !ok {
		return nil, ErrUnknownQuestion
	}
	if err := checkOption(question, *req.SelectedOption); err != nil {
		return nil, err
	}

	entry := &models.AnswerEntry{
		AttemptID:      attempt.ID,
		QuestionID:     req.QuestionID,
		SelectedOption: *req.SelectedOption,
	}

	err = withRetry(ctx, s.config.Retry, s.logger, "submit_answer", func() error {
		return s.repo.WithTransaction(ctx, func(txRepo repositories.Repository) error {
			// A shared lock keeps the finalizer from reading the ledger mid-write
			locked, err := txRepo.Attempt().LockForShare(ctx, nil, attempt.ID)
			if err != nil {
				return err
			}
			if locked.Status != models.AttemptInProgress {
				return ErrAttemptAlreadyFinalized
			}

			now := s.clock.Now()
			if locked.IsExpired(now, s.config.ExpiryGrace) {
				return ErrAttemptExpired
			}

			entry.AnsweredAt = now
			return txRepo.Answer().Upsert(ctx, nil, entry)
		})
	})
	if err != nil {
		if errors.Is(err, ErrAttemptExpired) {
			return nil, s.expire(ctx, attempt, def)
		}
		if errors.Is(err, ErrAttemptAlreadyFinalized) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to record answer: %w", err)
	}

	s.logger.Debug("Answer recorded",
		"attempt_id", attempt.ID,
		"question_id", entry.QuestionID,
		"selected_option", entry.SelectedOption)

	return &AnswerAck{
		AttemptID:        attempt.ID,
		QuestionID:       entry.QuestionID,
		SelectedOption:   entry.SelectedOption,
		AnsweredAt:       entry.AnsweredAt,
		RemainingSeconds: int64(attempt.RemainingTime(entry.AnsweredAt, s.config.ExpiryGrace) / time.Second),
	}, nil
}

// expire finalizes an attempt whose deadline passed and reports the rejected write
func (s *attemptService) expire(ctx context.Context, attempt *models.TestAttempt, def *models.TestDefinition) error {
	s.logger.Info("Answer rejected after deadline, finalizing attempt", "attempt_id", attempt.ID)

	if _, err := s.finalize(ctx, attempt, def, true); err != nil {
		s.logger.Error("Failed to finalize expired attempt", "attempt_id", attempt.ID, "error", err)
	}
	return ErrAttemptExpired
}

func (s *attemptService) submitTest(ctx context.Context, attempt *models.TestAttempt) (*models.ScoreBreakdown, error) {
	s.logger.Info("Submitting test attempt", "attempt_id", attempt.ID, "user_id", attempt.UserID)

	if attempt.Status == models.AttemptSubmitted {
		return s.storedScore(ctx, attempt.ID)
	}

	def, err := s.definitions.Get(ctx, attempt.SeriesID, attempt.TestID)
	if err != nil {
		return nil, err
	}

	auto := attempt.IsExpired(s.clock.Now(), s.config.ExpiryGrace)
	result, err := s.finalize(ctx, attempt, def, auto)
	if err != nil {
		return nil, err
	}
	return result.score, nil
}
