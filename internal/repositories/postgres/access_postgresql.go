package postgres

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/SAP-F-2025/test-attempt-service/internal/cache"
	"github.com/SAP-F-2025/test-attempt-service/internal/models"
	"github.com/SAP-F-2025/test-attempt-service/internal/repositories"
)

// AccessPostgreSQL decides content access from the series access type, the test's free
// flag and enrollments recorded by the purchase system.
type AccessPostgreSQL struct {
	db           *gorm.DB
	cacheManager *cache.CacheManager
}

func NewAccessPostgreSQL(db *gorm.DB, cacheManager *cache.CacheManager) repositories.AccessRepository {
	return &AccessPostgreSQL{
		db:           db,
		cacheManager: cacheManager,
	}
}

type accessRow struct {
	AccessType models.AccessType
	IsActive   bool
	IsFree     bool
}

func (r *AccessPostgreSQL) HasEligibleAccess(ctx context.Context, userID string, seriesID, testID uint) (bool, error) {
	key := cache.AccessKey(userID, seriesID, testID)

	// Only grants are cached so a fresh purchase is never hidden behind a stale denial
	var granted bool
	if err := r.cacheManager.Access.Get(ctx, key, &granted); err == nil && granted {
		return true, nil
	}

	var row accessRow
	err := r.db.WithContext(ctx).
		Table("tests").
		Select("test_series.access_type, test_series.is_active, tests.is_free").
		Joins("JOIN test_series ON test_series.id = tests.series_id").
		Where("tests.id = ? AND tests.series_id = ?", testID, seriesID).
		Take(&row).Error
	if err != nil {
		if repositories.IsNotFound(err) {
			return false, err
		}
		return false, fmt.Errorf("failed to load access settings: %w", err)
	}

	granted, err = r.decide(ctx, userID, seriesID, row)
	if err != nil {
		return false, err
	}

	if granted {
		cache.SafeSet(ctx, r.cacheManager.Access, key, true, cache.AccessCacheConfig.TTL)
	}
	return granted, nil
}

func (r *AccessPostgreSQL) decide(ctx context.Context, userID string, seriesID uint, row accessRow) (bool, error) {
	if !row.IsActive {
		return false, nil
	}
	if row.AccessType == models.AccessFree || row.IsFree {
		return true, nil
	}

	var count int64
	err := r.db.WithContext(ctx).Model(&models.SeriesEnrollment{}).
		Where("user_id = ? AND series_id = ?", userID, seriesID).
		Where("(expires_at IS NULL OR expires_at > NOW())").
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("failed to check enrollment: %w", err)
	}
	return count > 0, nil
}
