package postgres

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/SAP-F-2025/test-attempt-service/internal/models"
	"github.com/SAP-F-2025/test-attempt-service/internal/repositories"
)

type AttemptPostgreSQL struct {
	db *gorm.DB
}

func NewAttemptPostgreSQL(db *gorm.DB) repositories.AttemptRepository {
	return &AttemptPostgreSQL{db: db}
}

func (a *AttemptPostgreSQL) CreateOrGet(ctx context.Context, tx *gorm.DB, attempt *models.TestAttempt) (*models.TestAttempt, bool, error) {
	db := getDB(a.db, tx)

	// The unique index on (user_id, series_id, test_id) makes concurrent starts
	// collapse onto a single row.
	result := db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(attempt)
	if result.Error != nil {
		if !repositories.IsUniqueViolation(result.Error) {
			return nil, false, fmt.Errorf("failed to create attempt: %w", result.Error)
		}
	} else if result.RowsAffected == 1 {
		return attempt, true, nil
	}

	existing, err := a.GetByUserAndTest(ctx, tx, attempt.UserID, attempt.SeriesID, attempt.TestID)
	if err != nil {
		return nil, false, fmt.Errorf("failed to load existing attempt: %w", err)
	}
	return existing, false, nil
}

func (a *AttemptPostgreSQL) GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.TestAttempt, error) {
	db := getDB(a.db, tx)
	var attempt models.TestAttempt
	if err := db.WithContext(ctx).First(&attempt, id).Error; err != nil {
		return nil, err
	}
	return &attempt, nil
}

func (a *AttemptPostgreSQL) GetByUserAndTest(ctx context.Context, tx *gorm.DB, userID string, seriesID, testID uint) (*models.TestAttempt, error) {
	db := getDB(a.db, tx)
	var attempt models.TestAttempt
	err := db.WithContext(ctx).
		Where("user_id = ? AND series_id = ? AND test_id = ?", userID, seriesID, testID).
		First(&attempt).Error
	if err != nil {
		return nil, err
	}
	return &attempt, nil
}

func (a *AttemptPostgreSQL) LockForUpdate(ctx context.Context, tx *gorm.DB, id uint) (*models.TestAttempt, error) {
	return a.lock(ctx, tx, id, "UPDATE")
}

func (a *AttemptPostgreSQL) LockForShare(ctx context.Context, tx *gorm.DB, id uint) (*models.TestAttempt, error) {
	return a.lock(ctx, tx, id, "SHARE")
}

func (a *AttemptPostgreSQL) lock(ctx context.Context, tx *gorm.DB, id uint, strength string) (*models.TestAttempt, error) {
	db := getDB(a.db, tx)
	var attempt models.TestAttempt
	err := db.WithContext(ctx).
		Clauses(clause.Locking{Strength: strength}).
		First(&attempt, id).Error
	if err != nil {
		return nil, err
	}
	return &attempt, nil
}

func (a *AttemptPostgreSQL) MarkSubmitted(ctx context.Context, tx *gorm.DB, id uint, submittedAt time.Time, auto bool) (bool, error) {
	db := getDB(a.db, tx)
	result := db.WithContext(ctx).Model(&models.TestAttempt{}).
		Where("id = ? AND status = ?", id, models.AttemptInProgress).
		Updates(map[string]interface{}{
			"status":         models.AttemptSubmitted,
			"submitted_at":   submittedAt,
			"auto_submitted": auto,
		})
	if result.Error != nil {
		return false, fmt.Errorf("failed to submit attempt: %w", result.Error)
	}
	return result.RowsAffected == 1, nil
}

func (a *AttemptPostgreSQL) ListSubmitted(ctx context.Context, tx *gorm.DB, seriesID, testID uint) ([]*models.TestAttempt, error) {
	db := getDB(a.db, tx)
	var attempts []*models.TestAttempt
	err := db.WithContext(ctx).
		Where("series_id = ? AND test_id = ? AND status = ?", seriesID, testID, models.AttemptSubmitted).
		Preload("Score").
		Order("submitted_at ASC, id ASC").
		Find(&attempts).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list submitted attempts: %w", err)
	}
	return attempts, nil
}

func (a *AttemptPostgreSQL) ListExpired(ctx context.Context, tx *gorm.DB, cutoff time.Time, grace time.Duration, afterID uint, limit int) ([]uint, error) {
	db := getDB(a.db, tx)
	var ids []uint
	err := db.WithContext(ctx).Model(&models.TestAttempt{}).
		Where("status = ? AND id > ?", models.AttemptInProgress, afterID).
		Where("started_at + make_interval(secs => duration_seconds + ?) <= ?", grace.Seconds(), cutoff).
		Order("id ASC").
		Limit(limit).
		Pluck("id", &ids).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list expired attempts: %w", err)
	}
	return ids, nil
}

// ===== ANSWER LEDGER =====

type AnswerPostgreSQL struct {
	db *gorm.DB
}

func NewAnswerPostgreSQL(db *gorm.DB) repositories.AnswerRepository {
	return &AnswerPostgreSQL{db: db}
}

// Upsert writes the entry, replacing any earlier answer to the same question.
func (ar *AnswerPostgreSQL) Upsert(ctx context.Context, tx *gorm.DB, entry *models.AnswerEntry) error {
	db := getDB(ar.db, tx)
	err := db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "attempt_id"}, {Name: "question_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"selected_option", "answered_at"}),
		}).
		Create(entry).Error
	if err != nil {
		return fmt.Errorf("failed to upsert answer: %w", err)
	}
	return nil
}

func (ar *AnswerPostgreSQL) GetByAttempt(ctx context.Context, tx *gorm.DB, attemptID uint) ([]*models.AnswerEntry, error) {
	db := getDB(ar.db, tx)
	var answers []*models.AnswerEntry
	err := db.WithContext(ctx).
		Where("attempt_id = ?", attemptID).
		Order("question_id ASC").
		Find(&answers).Error
	if err != nil {
		return nil, fmt.Errorf("failed to get answers by attempt: %w", err)
	}
	return answers, nil
}

// ===== SCORE BREAKDOWNS =====

type ScorePostgreSQL struct {
	db *gorm.DB
}

func NewScorePostgreSQL(db *gorm.DB) repositories.ScoreRepository {
	return &ScorePostgreSQL{db: db}
}

func (s *ScorePostgreSQL) Create(ctx context.Context, tx *gorm.DB, score *models.ScoreBreakdown) error {
	db := getDB(s.db, tx)
	if err := db.WithContext(ctx).Create(score).Error; err != nil {
		return fmt.Errorf("failed to store score breakdown: %w", err)
	}
	return nil
}

func (s *ScorePostgreSQL) GetByAttempt(ctx context.Context, tx *gorm.DB, attemptID uint) (*models.ScoreBreakdown, error) {
	db := getDB(s.db, tx)
	var score models.ScoreBreakdown
	if err := db.WithContext(ctx).Where("attempt_id = ?", attemptID).First(&score).Error; err != nil {
		return nil, err
	}
	return &score, nil
}
