package repositories

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/SAP-F-2025/test-attempt-service/internal/models"
)

// TestDefinitionRepository reads test structure owned by the content side.
type TestDefinitionRepository interface {
	GetDefinition(ctx context.Context, seriesID, testID uint) (*models.TestDefinition, error)
	InvalidateDefinition(ctx context.Context, seriesID, testID uint) error
}

// AccessRepository answers the content-access question consulted before start.
type AccessRepository interface {
	HasEligibleAccess(ctx context.Context, userID string, seriesID, testID uint) (bool, error)
}

type AttemptRepository interface {
	// CreateOrGet inserts the attempt unless one already exists for (user, series, test),
	// in which case the stored attempt is returned with created=false.
	CreateOrGet(ctx context.Context, tx *gorm.DB, attempt *models.TestAttempt) (stored *models.TestAttempt, created bool, err error)

	GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.TestAttempt, error)
	GetByUserAndTest(ctx context.Context, tx *gorm.DB, userID string, seriesID, testID uint) (*models.TestAttempt, error)

	// Row locks, valid only inside a transaction
	LockForUpdate(ctx context.Context, tx *gorm.DB, id uint) (*models.TestAttempt, error)
	LockForShare(ctx context.Context, tx *gorm.DB, id uint) (*models.TestAttempt, error)

	// MarkSubmitted moves the attempt to SUBMITTED only if it is still IN_PROGRESS and
	// reports whether this call made the transition.
	MarkSubmitted(ctx context.Context, tx *gorm.DB, id uint, submittedAt time.Time, auto bool) (bool, error)

	// ListSubmitted returns submitted attempts of a test with their score breakdowns.
	ListSubmitted(ctx context.Context, tx *gorm.DB, seriesID, testID uint) ([]*models.TestAttempt, error)

	// ListExpired returns ids above afterID, ascending, of in-progress attempts whose
	// deadline is at or before cutoff.
	ListExpired(ctx context.Context, tx *gorm.DB, cutoff time.Time, grace time.Duration, afterID uint, limit int) ([]uint, error)
}

type AnswerRepository interface {
	Upsert(ctx context.Context, tx *gorm.DB, entry *models.AnswerEntry) error
	GetByAttempt(ctx context.Context, tx *gorm.DB, attemptID uint) ([]*models.AnswerEntry, error)
}

type ScoreRepository interface {
	Create(ctx context.Context, tx *gorm.DB, score *models.ScoreBreakdown) error
	GetByAttempt(ctx context.Context, tx *gorm.DB, attemptID uint) (*models.ScoreBreakdown, error)
}

type CutoffRepository interface {
	Create(ctx context.Context, tx *gorm.DB, cutoff *models.CutoffRecord) error
	GetByTest(ctx context.Context, tx *gorm.DB, seriesID, testID uint) (*models.CutoffRecord, error)
	Update(ctx context.Context, tx *gorm.DB, cutoff *models.CutoffRecord) error
	Delete(ctx context.Context, tx *gorm.DB, seriesID, testID uint) error
}

// UserRepository is read-only: identities are owned by the auth provider.
type UserRepository interface {
	GetByID(ctx context.Context, id string) (*models.User, error)
	GetByIDs(ctx context.Context, ids []string) ([]*models.User, error)
}
