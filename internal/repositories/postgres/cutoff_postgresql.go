package postgres

import (
	"context"

	"gorm.io/gorm"

	"github.com/SAP-F-2025/test-attempt-service/internal/models"
	"github.com/SAP-F-2025/test-attempt-service/internal/repositories"
)

type CutoffPostgreSQL struct {
	db *gorm.DB
}

func NewCutoffPostgreSQL(db *gorm.DB) repositories.CutoffRepository {
	return &CutoffPostgreSQL{db: db}
}

// Create fails with a unique violation when the test already has a cutoff.
func (c *CutoffPostgreSQL) Create(ctx context.Context, tx *gorm.DB, cutoff *models.CutoffRecord) error {
	db := getDB(c.db, tx)
	return db.WithContext(ctx).Create(cutoff).Error
}

func (c *CutoffPostgreSQL) GetByTest(ctx context.Context, tx *gorm.DB, seriesID, testID uint) (*models.CutoffRecord, error) {
	db := getDB(c.db, tx)
	var cutoff models.CutoffRecord
	err := db.WithContext(ctx).
		Where("series_id = ? AND test_id = ?", seriesID, testID).
		First(&cutoff).Error
	if err != nil {
		return nil, err
	}
	return &cutoff, nil
}

func (c *CutoffPostgreSQL) Update(ctx context.Context, tx *gorm.DB, cutoff *models.CutoffRecord) error {
	db := getDB(c.db, tx)
	result := db.WithContext(ctx).Model(&models.CutoffRecord{}).
		Where("id = ?", cutoff.ID).
		Select("score", "percentile", "category_scores", "updated_by", "updated_at").
		Updates(cutoff)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (c *CutoffPostgreSQL) Delete(ctx context.Context, tx *gorm.DB, seriesID, testID uint) error {
	db := getDB(c.db, tx)
	result := db.WithContext(ctx).
		Where("series_id = ? AND test_id = ?", seriesID, testID).
		Delete(&models.CutoffRecord{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
