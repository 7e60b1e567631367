package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/SAP-F-2025/test-attempt-service/internal/models"
	"github.com/SAP-F-2025/test-attempt-service/internal/repositories"
)

type definitionService struct {
	repo   repositories.Repository
	logger *slog.Logger
	retry  RetryPolicy
}

func NewDefinitionService(repo repositories.Repository, logger *slog.Logger, retry RetryPolicy) DefinitionService {
	return &definitionService{
		repo:   repo,
		logger: logger,
		retry:  retry,
	}
}

// Get loads a test definition and checks its invariants. A missing test is
// ErrTestNotFound, an unreachable store is ErrDefinitionUnavailable.
func (s *definitionService) Get(ctx context.Context, seriesID, testID uint) (*models.TestDefinition, error) {
	var def *models.TestDefinition
	err := withRetry(ctx, s.retry, s.logger, "get_definition", func() error {
		var err error
		def, err = s.repo.TestDefinition().GetDefinition(ctx, seriesID, testID)
		return err
	})
	if err != nil {
		if repositories.IsNotFound(err) {
			return nil, ErrTestNotFound
		}
		s.logger.Error("Failed to load test definition", "series_id", seriesID, "test_id", testID, "error", err)
		return nil, fmt.Errorf("%w: %v", ErrDefinitionUnavailable, err)
	}

	if err := def.Validate(); err != nil {
		s.logger.Error("Test definition violates invariants", "series_id", seriesID, "test_id", testID, "error", err)
		return nil, NewBusinessRuleError(ErrInvalidDefinition, "test_definition", err.Error(), map[string]interface{}{
			"series_id": seriesID,
			"test_id":   testID,
		})
	}

	return def, nil
}

func (s *definitionService) Invalidate(ctx context.Context, seriesID, testID uint) error {
	if err := s.repo.TestDefinition().InvalidateDefinition(ctx, seriesID, testID); err != nil {
		return fmt.Errorf("failed to invalidate definition: %w", err)
	}
	s.logger.Info("Test definition cache invalidated", "series_id", seriesID, "test_id", testID)
	return nil
}
