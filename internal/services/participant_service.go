package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/xuri/excelize/v2"
	"gorm.io/gorm"

	"github.com/SAP-F-2025/test-attempt-service/internal/models"
	"github.com/SAP-F-2025/test-attempt-service/internal/repositories"
)

const participantsSheet = "Participants"

type participantService struct {
	repo        repositories.Repository
	db          *gorm.DB
	logger      *slog.Logger
	definitions DefinitionService
	retry       RetryPolicy
}

func NewParticipantService(repo repositories.Repository, db *gorm.DB, logger *slog.Logger, definitions DefinitionService, retry RetryPolicy) ParticipantService {
	return &participantService{
		repo:        repo,
		db:          db,
		logger:      logger,
		definitions: definitions,
		retry:       retry,
	}
}

// List ranks every submitted attempt of a test. The pool is a snapshot; attempts
// finalized while it is read may or may not be included.
func (s *participantService) List(ctx context.Context, seriesID, testID uint) ([]*RankEntry, error) {
	if _, err := s.definitions.Get(ctx, seriesID, testID); err != nil {
		return nil, err
	}

	var (
		submitted []*models.TestAttempt
		cutoff    *models.CutoffRecord
	)
	err := withRetry(ctx, s.retry, s.logger, "list_participants", func() error {
		var err error
		if submitted, err = s.repo.Attempt().ListSubmitted(ctx, s.db, seriesID, testID); err != nil {
			return err
		}
		cutoff, err = s.repo.Cutoff().GetByTest(ctx, s.db, seriesID, testID)
		if repositories.IsNotFound(err) {
			cutoff, err = nil, nil
		}
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load participants: %w", err)
	}

	ranking := RankAttempts(submitted)
	users := s.lookupUsers(ctx, ranking)

	scores := make(map[uint]*models.ScoreBreakdown, len(submitted))
	for _, a := range submitted {
		scores[a.ID] = a.Score
	}

	for _, entry := range ranking {
		category := ""
		if user, ok := users[entry.UserID]; ok {
			entry.UserName = user.FullName
			category = user.Category
		}
		entry.Verdict = EvaluateCutoff(cutoff, scores[entry.AttemptID], entry.Percentile, category)
	}

	s.logger.Info("Participants ranked", "series_id", seriesID, "test_id", testID, "count", len(ranking))
	return ranking, nil
}

// Export renders the ranking as an xlsx workbook
func (s *participantService) Export(ctx context.Context, seriesID, testID uint) ([]byte, error) {
	ranking, err := s.List(ctx, seriesID, testID)
	if err != nil {
		return nil, err
	}

	f := excelize.NewFile()
	defer func() {
		if err := f.Close(); err != nil {
			s.logger.Warn("Failed to close workbook", "error", err)
		}
	}()

	if err := f.SetSheetName("Sheet1", participantsSheet); err != nil {
		return nil, fmt.Errorf("failed to name sheet: %w", err)
	}

	header := []interface{}{"Rank", "User ID", "Name", "Net Score", "Correct", "Incorrect", "Unattempted", "Accuracy", "Percentile", "Verdict", "Submitted At"}
	if err := f.SetSheetRow(participantsSheet, "A1", &header); err != nil {
		return nil, fmt.Errorf("failed to write header: %w", err)
	}

	if style, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}}); err == nil {
		_ = f.SetRowStyle(participantsSheet, 1, 1, style)
	}

	for i, entry := range ranking {
		var accuracyCell interface{} = "-"
		if entry.Accuracy != nil {
			accuracyCell = *entry.Accuracy
		}

		row := []interface{}{
			entry.Rank,
			entry.UserID,
			entry.UserName,
			entry.NetScore,
			entry.Correct,
			entry.Incorrect,
			entry.Unattempted,
			accuracyCell,
			round(entry.Percentile),
			string(entry.Verdict),
			entry.SubmittedAt.UTC().Format(time.RFC3339),
		}

		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return nil, err
		}
		if err := f.SetSheetRow(participantsSheet, cell, &row); err != nil {
			return nil, fmt.Errorf("failed to write row %d: %w", i+2, err)
		}
	}

	if err := f.SetColWidth(participantsSheet, "A", "K", 16); err != nil {
		return nil, fmt.Errorf("failed to size columns: %w", err)
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to render workbook: %w", err)
	}
	return buf.Bytes(), nil
}

// lookupUsers resolves display names; a failed lookup leaves names empty
func (s *participantService) lookupUsers(ctx context.Context, ranking []*RankEntry) map[string]*models.User {
	if len(ranking) == 0 {
		return nil
	}

	ids := make([]string, 0, len(ranking))
	for _, e := range ranking {
		ids = append(ids, e.UserID)
	}

	users, err := s.repo.User().GetByIDs(ctx, ids)
	if err != nil {
		s.logger.Warn("Failed to resolve participant names", "error", err)
		return nil
	}

	byID := make(map[string]*models.User, len(users))
	for _, u := range users {
		byID[u.ID] = u
	}
	return byID
}
