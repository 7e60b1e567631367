package services

import (
	"github.com/SAP-F-2025/test-attempt-service/internal/models"
)

// EvaluateCutoff compares a finalized score and its current percentile against the
// test's cutoff. The score threshold is the one for the candidate's category when the
// cutoff lists it. When both a score and a percentile threshold apply, both must hold.
func EvaluateCutoff(cutoff *models.CutoffRecord, score *models.ScoreBreakdown, percentile float64, category string) Verdict {
	if cutoff == nil || score == nil {
		return VerdictNotApplicable
	}

	threshold := cutoff.ScoreThresholdFor(category)
	if threshold == nil && cutoff.Percentile == nil {
		return VerdictNotApplicable
	}

	if threshold != nil && score.Net < *threshold {
		return VerdictNotQualified
	}
	if cutoff.Percentile != nil && percentile < *cutoff.Percentile {
		return VerdictNotQualified
	}

	return VerdictQualified
}
