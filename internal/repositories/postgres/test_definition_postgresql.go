package postgres

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/SAP-F-2025/test-attempt-service/internal/cache"
	"github.com/SAP-F-2025/test-attempt-service/internal/models"
	"github.com/SAP-F-2025/test-attempt-service/internal/repositories"
)

// TestDefinitionPostgreSQL reads the content tables and serves definitions through the
// redis cache.
type TestDefinitionPostgreSQL struct {
	db           *gorm.DB
	cacheManager *cache.CacheManager
	ttl          time.Duration
}

func NewTestDefinitionPostgreSQL(db *gorm.DB, cacheManager *cache.CacheManager, ttl time.Duration) repositories.TestDefinitionRepository {
	if ttl <= 0 {
		ttl = cache.DefinitionCacheConfig.TTL
	}
	return &TestDefinitionPostgreSQL{
		db:           db,
		cacheManager: cacheManager,
		ttl:          ttl,
	}
}

func (r *TestDefinitionPostgreSQL) GetDefinition(ctx context.Context, seriesID, testID uint) (*models.TestDefinition, error) {
	var def models.TestDefinition
	err := r.cacheManager.Definition.CacheOrExecute(ctx, cache.DefinitionKey(seriesID, testID), &def, r.ttl, func() (interface{}, error) {
		return r.load(ctx, seriesID, testID)
	})
	if err != nil {
		return nil, err
	}
	return &def, nil
}

func (r *TestDefinitionPostgreSQL) load(ctx context.Context, seriesID, testID uint) (*models.TestDefinition, error) {
	var test models.Test
	err := r.db.WithContext(ctx).
		Preload("Series").
		Preload("Sections", func(db *gorm.DB) *gorm.DB {
			return db.Order("sort_order ASC, id ASC")
		}).
		Preload("Sections.Questions", func(db *gorm.DB) *gorm.DB {
			return db.Order("number ASC, id ASC")
		}).
		Where("id = ? AND series_id = ?", testID, seriesID).
		First(&test).Error
	if err != nil {
		if repositories.IsNotFound(err) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to load test %d: %w", testID, err)
	}

	return models.NewTestDefinition(&test.Series, &test), nil
}

func (r *TestDefinitionPostgreSQL) InvalidateDefinition(ctx context.Context, seriesID, testID uint) error {
	cache.InvalidateTestCache(ctx, r.cacheManager, seriesID, testID)
	return nil
}
