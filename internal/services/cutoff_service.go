package services

import (
	"context"
	"fmt"
	"log/slog"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/SAP-F-2025/test-attempt-service/internal/events"
	"github.com/SAP-F-2025/test-attempt-service/internal/models"
	"github.com/SAP-F-2025/test-attempt-service/internal/repositories"
	"github.com/SAP-F-2025/test-attempt-service/internal/utils"
	"github.com/SAP-F-2025/test-attempt-service/internal/validator"
)

type cutoffService struct {
	repo        repositories.Repository
	db          *gorm.DB
	logger      *slog.Logger
	validator   *validator.Validator
	definitions DefinitionService
	publisher   events.EventPublisher
	clock       utils.Clock
}

func NewCutoffService(
	repo repositories.Repository,
	db *gorm.DB,
	logger *slog.Logger,
	validator *validator.Validator,
	definitions DefinitionService,
	publisher events.EventPublisher,
	clock utils.Clock,
) CutoffService {
	return &cutoffService{
		repo:        repo,
		db:          db,
		logger:      logger,
		validator:   validator,
		definitions: definitions,
		publisher:   publisher,
		clock:       clock,
	}
}

func (s *cutoffService) Create(ctx context.Context, seriesID, testID uint, req *CutoffRequest, adminID string) (*models.CutoffRecord, error) {
	s.logger.Info("Creating cutoff", "series_id", seriesID, "test_id", testID, "admin_id", adminID)

	if errs := s.validator.GetBusinessValidator().ValidateCutoff(req); len(errs) > 0 {
		return nil, errs
	}

	if _, err := s.definitions.Get(ctx, seriesID, testID); err != nil {
		return nil, err
	}

	cutoff := &models.CutoffRecord{
		SeriesID:       seriesID,
		TestID:         testID,
		Score:          req.Score,
		Percentile:     req.Percentile,
		CategoryScores: categoryMap(req.CategoryScores),
		UpdatedBy:      adminID,
	}

	if err := s.repo.Cutoff().Create(ctx, s.db, cutoff); err != nil {
		if repositories.IsUniqueViolation(err) {
			return nil, ErrCutoffExists
		}
		return nil, fmt.Errorf("failed to create cutoff: %w", err)
	}

	s.changed(ctx, seriesID, testID, "created", adminID)
	return cutoff, nil
}

func (s *cutoffService) Get(ctx context.Context, seriesID, testID uint) (*models.CutoffRecord, error) {
	cutoff, err := s.repo.Cutoff().GetByTest(ctx, s.db, seriesID, testID)
	if err != nil {
		if repositories.IsNotFound(err) {
			return nil, ErrCutoffNotFound
		}
		return nil, fmt.Errorf("failed to get cutoff: %w", err)
	}
	return cutoff, nil
}

// Update replaces every threshold of the cutoff with the request's values
func (s *cutoffService) Update(ctx context.Context, seriesID, testID uint, req *CutoffRequest, adminID string) (*models.CutoffRecord, error) {
	s.logger.Info("Updating cutoff", "series_id", seriesID, "test_id", testID, "admin_id", adminID)

	if errs := s.validator.GetBusinessValidator().ValidateCutoff(req); len(errs) > 0 {
		return nil, errs
	}

	var updated *models.CutoffRecord
	err := s.repo.WithTransaction(ctx, func(txRepo repositories.Repository) error {
		cutoff, err := txRepo.Cutoff().GetByTest(ctx, nil, seriesID, testID)
		if err != nil {
			return err
		}

		cutoff.Score = req.Score
		cutoff.Percentile = req.Percentile
		cutoff.CategoryScores = categoryMap(req.CategoryScores)
		cutoff.UpdatedBy = adminID
		cutoff.UpdatedAt = s.clock.Now()

		if err := txRepo.Cutoff().Update(ctx, nil, cutoff); err != nil {
			return err
		}
		updated = cutoff
		return nil
	})
	if err != nil {
		if repositories.IsNotFound(err) {
			return nil, ErrCutoffNotFound
		}
		return nil, fmt.Errorf("failed to update cutoff: %w", err)
	}

	s.changed(ctx, seriesID, testID, "updated", adminID)
	return updated, nil
}

func (s *cutoffService) Delete(ctx context.Context, seriesID, testID uint, adminID string) error {
	s.logger.Info("Deleting cutoff", "series_id", seriesID, "test_id", testID, "admin_id", adminID)

	if err := s.repo.Cutoff().Delete(ctx, s.db, seriesID, testID); err != nil {
		if repositories.IsNotFound(err) {
			return ErrCutoffNotFound
		}
		return fmt.Errorf("failed to delete cutoff: %w", err)
	}

	s.changed(ctx, seriesID, testID, "deleted", adminID)
	return nil
}

func (s *cutoffService) changed(ctx context.Context, seriesID, testID uint, action, adminID string) {
	if s.publisher == nil {
		return
	}

	event := events.NewEvent(events.CutoffChanged, s.clock.Now(), events.CutoffChangedData{
		SeriesID:  seriesID,
		TestID:    testID,
		Action:    action,
		ChangedBy: adminID,
	})
	if err := s.publisher.Publish(context.WithoutCancel(ctx), event); err != nil {
		s.logger.Warn("Failed to publish cutoff event", "series_id", seriesID, "test_id", testID, "error", err)
	}
}

func categoryMap(scores map[string]float64) datatypes.JSONMap {
	if len(scores) == 0 {
		return nil
	}
	m := make(datatypes.JSONMap, len(scores))
	for category, score := range scores {
		m[category] = score
	}
	return m
}
