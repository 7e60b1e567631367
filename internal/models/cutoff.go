package models

import (
	"time"

	"gorm.io/datatypes"
)

// CutoffRecord is managed by admins, one per test.
type CutoffRecord struct {
	ID       uint `json:"id" gorm:"primaryKey"`
	SeriesID uint `json:"series_id" gorm:"not null;uniqueIndex:idx_cutoff_series_test"`
	TestID   uint `json:"test_id" gorm:"not null;uniqueIndex:idx_cutoff_series_test"`

	// At least one threshold is set
	Score      *float64 `json:"score"`
	Percentile *float64 `json:"percentile"`

	// Category-wise score thresholds, keyed by candidate category
	CategoryScores datatypes.JSONMap `json:"category_scores,omitempty" gorm:"type:jsonb"`

	UpdatedBy string    `json:"updated_by" gorm:"size:255"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ScoreThresholdFor returns the score threshold that applies to a candidate category.
func (c *CutoffRecord) ScoreThresholdFor(category string) *float64 {
	if category != "" && c.CategoryScores != nil {
		if raw, ok := c.CategoryScores[category]; ok {
			if v, ok := toFloat(raw); ok {
				return &v
			}
		}
	}
	return c.Score
}

func toFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}
