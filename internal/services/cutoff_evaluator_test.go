package services

import (
	"testing"

	"gorm.io/datatypes"

	"github.com/SAP-F-2025/test-attempt-service/internal/models"
)

func TestEvaluateCutoff(t *testing.T) {
	score := &models.ScoreBreakdown{Tally: models.Tally{Net: 1.5}}

	tests := []struct {
		name       string
		cutoff     *models.CutoffRecord
		score      *models.ScoreBreakdown
		percentile float64
		category   string
		want       Verdict
	}{
		{
			name:  "no cutoff",
			score: score,
			want:  VerdictNotApplicable,
		},
		{
			name:   "cutoff without thresholds",
			cutoff: &models.CutoffRecord{},
			score:  score,
			want:   VerdictNotApplicable,
		},
		{
			name:       "score and percentile both met",
			cutoff:     &models.CutoffRecord{Score: floatPtr(1.0), Percentile: floatPtr(50)},
			score:      score,
			percentile: 60,
			want:       VerdictQualified,
		},
		{
			name:       "score met percentile missed",
			cutoff:     &models.CutoffRecord{Score: floatPtr(1.0), Percentile: floatPtr(50)},
			score:      score,
			percentile: 40,
			want:       VerdictNotQualified,
		},
		{
			name:       "score exactly at threshold",
			cutoff:     &models.CutoffRecord{Score: floatPtr(1.5)},
			score:      score,
			percentile: 0,
			want:       VerdictQualified,
		},
		{
			name:       "score below threshold",
			cutoff:     &models.CutoffRecord{Score: floatPtr(2)},
			score:      score,
			percentile: 99,
			want:       VerdictNotQualified,
		},
		{
			name:       "percentile only",
			cutoff:     &models.CutoffRecord{Percentile: floatPtr(50)},
			score:      score,
			percentile: 50,
			want:       VerdictQualified,
		},
		{
			name: "category threshold overrides general",
			cutoff: &models.CutoffRecord{
				Score:          floatPtr(2),
				CategoryScores: datatypes.JSONMap{"OBC": 1.2},
			},
			score:    score,
			category: "OBC",
			want:     VerdictQualified,
		},
		{
			name: "other category uses general threshold",
			cutoff: &models.CutoffRecord{
				Score:          floatPtr(2),
				CategoryScores: datatypes.JSONMap{"OBC": 1.2},
			},
			score:    score,
			category: "GEN",
			want:     VerdictNotQualified,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := EvaluateCutoff(tt.cutoff, tt.score, tt.percentile, tt.category); got != tt.want {
				t.Errorf("EvaluateCutoff() = %v, want %v", got, tt.want)
			}
		})
	}
}
