package services

import (
	"math"

	"github.com/SAP-F-2025/test-attempt-service/internal/models"
)

// scorePrecision is the number of decimal places totals are rounded to
const scorePrecision = 1e4

// ScoreAttempt computes the breakdown of an answer ledger against a definition. It
// reads nothing but its arguments; the caller sets AttemptID and ScoredAt.
//
// Every question must carry a correct option, answered or not, so that one test never
// scores for some users and fails for others.
func ScoreAttempt(def *models.TestDefinition, answers []*models.AnswerEntry) (*models.ScoreBreakdown, error) {
	selected := make(map[uint]int, len(answers))
	for _, a := range answers {
		if a.Answered() {
			selected[a.QuestionID] = a.SelectedOption
		}
	}

	breakdown := &models.ScoreBreakdown{}
	sections := make([]models.SectionScore, 0, len(def.Sections))

	var earned, lost, net float64
	for _, section := range def.Sections {
		var tally models.Tally
		for _, q := range section.Questions {
			if q.CorrectOption == nil {
				return nil, NewBusinessRuleError(ErrUnscorableQuestion, "correct_option_required",
					"question has no correct option", map[string]interface{}{
						"test_id":     def.TestID,
						"section_id":  section.ID,
						"question_id": q.ID,
					})
			}

			option, attempted := selected[q.ID]
			switch {
			case !attempted:
				tally.Unattempted++
			case option == *q.CorrectOption:
				tally.Correct++
				tally.Earned += q.Marks
			default:
				tally.Incorrect++
				tally.Lost += q.NegativeMarks
			}
		}

		tally.Earned = round(tally.Earned)
		tally.Lost = round(tally.Lost)
		tally.Net = round(tally.Earned - tally.Lost)

		// Totals add up the rounded section figures so they match what each section reports
		earned += tally.Earned
		lost += tally.Lost
		net += tally.Net

		breakdown.Correct += tally.Correct
		breakdown.Incorrect += tally.Incorrect
		breakdown.Unattempted += tally.Unattempted

		sections = append(sections, models.SectionScore{
			SectionID: section.ID,
			Title:     section.Title,
			Tally:     tally,
		})
	}

	breakdown.Earned = round(earned)
	breakdown.Lost = round(lost)
	breakdown.Net = round(net)
	breakdown.Sections = sections

	return breakdown, nil
}

func round(v float64) float64 {
	r := math.Round(v*scorePrecision) / scorePrecision
	if r == 0 {
		return 0 // no negative zero
	}
	return r
}
