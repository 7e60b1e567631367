package services

import (
	"sort"

	"github.com/SAP-F-2025/test-attempt-service/internal/models"
)

// RankAttempts orders submitted attempts by net score, highest first. Equal scores are
// ordered by submission time, earlier first, then by attempt id. Percentile is the share
// of participants with a strictly lower net score, kept unrounded so cutoff
// comparisons see the exact value.
//
// Attempts without a stored breakdown are left out.
func RankAttempts(attempts []*models.TestAttempt) []*RankEntry {
	scored := make([]*models.TestAttempt, 0, len(attempts))
	for _, a := range attempts {
		if a.Score != nil && a.SubmittedAt != nil {
			scored = append(scored, a)
		}
	}

	sort.SliceStable(scored, func(i, j int) bool {
		a, b := scored[i], scored[j]
		if a.Score.Net != b.Score.Net {
			return a.Score.Net > b.Score.Net
		}
		if !a.SubmittedAt.Equal(*b.SubmittedAt) {
			return a.SubmittedAt.Before(*b.SubmittedAt)
		}
		return a.ID < b.ID
	})

	total := len(scored)
	entries := make([]*RankEntry, total)

	// Walk groups of equal net score; everyone after a group scored strictly lower
	for start := 0; start < total; {
		end := start
		for end < total && scored[end].Score.Net == scored[start].Score.Net {
			end++
		}
		percentile := float64(total-end) / float64(total) * 100

		for i := start; i < end; i++ {
			a := scored[i]
			entries[i] = &RankEntry{
				Rank:        i + 1,
				AttemptID:   a.ID,
				UserID:      a.UserID,
				NetScore:    a.Score.Net,
				Correct:     a.Score.Correct,
				Incorrect:   a.Score.Incorrect,
				Unattempted: a.Score.Unattempted,
				Accuracy:    accuracy(a.Score.Tally),
				Percentile:  percentile,
				SubmittedAt: *a.SubmittedAt,
			}
		}
		start = end
	}

	return entries
}

// accuracy is nil when nothing was attempted, which is not the same as zero accuracy
func accuracy(t models.Tally) *float64 {
	attempted := t.Attempted()
	if attempted == 0 {
		return nil
	}
	v := round(float64(t.Correct) / float64(attempted))
	return &v
}

func findRank(entries []*RankEntry, attemptID uint) *RankEntry {
	for _, e := range entries {
		if e.AttemptID == attemptID {
			return e
		}
	}
	return nil
}
