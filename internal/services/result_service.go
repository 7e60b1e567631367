package services

import (
	"context"
	"fmt"
	"log/slog"

	"gorm.io/gorm"

	"github.com/SAP-F-2025/test-attempt-service/internal/models"
	"github.com/SAP-F-2025/test-attempt-service/internal/repositories"
	"github.com/SAP-F-2025/test-attempt-service/internal/utils"
)

type resultService struct {
	repo        repositories.Repository
	db          *gorm.DB
	logger      *slog.Logger
	attempts    AttemptService
	definitions DefinitionService
	clock       utils.Clock
	retry       RetryPolicy
}

func NewResultService(
	repo repositories.Repository,
	db *gorm.DB,
	logger *slog.Logger,
	attempts AttemptService,
	definitions DefinitionService,
	clock utils.Clock,
	retry RetryPolicy,
) ResultService {
	return &resultService{
		repo:        repo,
		db:          db,
		logger:      logger,
		attempts:    attempts,
		definitions: definitions,
		clock:       clock,
		retry:       retry,
	}
}

// GetResult assembles the analysis of a finalized attempt. Rank, percentile and the
// cutoff verdict are computed from the participant pool as it is at read time.
// Question-level review is withheld until the test's result publish time.
func (s *resultService) GetResult(ctx context.Context, attemptID uint, userID string) (*ResultAnalysis, error) {
	attempt, err := s.loadAttempt(ctx, attemptID)
	if err != nil {
		return nil, err
	}

	if attempt.UserID != userID {
		return nil, NewPermissionError(userID, attemptID, "attempt", "view_result", "not owned by user")
	}

	if attempt.Status == models.AttemptInProgress {
		finalized, err := s.attempts.FinalizeIfExpired(ctx, attemptID)
		if err != nil {
			return nil, err
		}
		if !finalized {
			return nil, ErrAttemptNotFinalized
		}
		if attempt, err = s.loadAttempt(ctx, attemptID); err != nil {
			return nil, err
		}
	}

	def, err := s.definitions.Get(ctx, attempt.SeriesID, attempt.TestID)
	if err != nil {
		return nil, err
	}

	var (
		score     *models.ScoreBreakdown
		submitted []*models.TestAttempt
		cutoff    *models.CutoffRecord
		answers   []*models.AnswerEntry
	)
	err = withRetry(ctx, s.retry, s.logger, "load_result", func() error {
		var err error
		if score, err = s.repo.Score().GetByAttempt(ctx, s.db, attemptID); err != nil {
			return err
		}
		if submitted, err = s.repo.Attempt().ListSubmitted(ctx, s.db, attempt.SeriesID, attempt.TestID); err != nil {
			return err
		}
		if cutoff, err = s.repo.Cutoff().GetByTest(ctx, s.db, attempt.SeriesID, attempt.TestID); err != nil {
			if !repositories.IsNotFound(err) {
				return err
			}
			cutoff = nil
		}
		answers, err = s.repo.Answer().GetByAttempt(ctx, s.db, attemptID)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load result data: %w", err)
	}

	ranking := RankAttempts(submitted)
	entry := findRank(ranking, attemptID)
	if entry == nil {
		// The pool snapshot can miss an attempt that committed just now; rank it alone
		// against the pool that was read.
		attempt.Score = score
		ranking = RankAttempts(append(submitted, attempt))
		entry = findRank(ranking, attemptID)
		if entry == nil {
			return nil, fmt.Errorf("attempt %d has no score to rank", attemptID)
		}
	}

	now := s.clock.Now()
	analysis := &ResultAnalysis{
		AttemptID:         attempt.ID,
		SeriesID:          attempt.SeriesID,
		TestID:            attempt.TestID,
		TestName:          def.Name,
		Status:            attempt.Status,
		SubmittedAt:       attempt.SubmittedAt,
		AutoSubmitted:     attempt.AutoSubmitted,
		Score:             score,
		Verdict:           EvaluateCutoff(cutoff, score, entry.Percentile, s.userCategory(ctx, userID, cutoff)),
		Rank:              entry.Rank,
		Percentile:        entry.Percentile,
		Accuracy:          entry.Accuracy,
		TotalParticipants: len(ranking),
		ResultsPublished:  def.ResultsPublished(now),
		PublishAt:         def.ResultPublishTime,
	}

	if analysis.ResultsPublished {
		analysis.Review = buildReview(def, answers)
	}

	s.logger.Debug("Result assembled",
		"attempt_id", attemptID,
		"rank", analysis.Rank,
		"verdict", analysis.Verdict,
		"published", analysis.ResultsPublished)

	return analysis, nil
}

func (s *resultService) loadAttempt(ctx context.Context, attemptID uint) (*models.TestAttempt, error) {
	var attempt *models.TestAttempt
	err := withRetry(ctx, s.retry, s.logger, "get_attempt", func() error {
		var err error
		attempt, err = s.repo.Attempt().GetByID(ctx, s.db, attemptID)
		return err
	})
	if err != nil {
		if repositories.IsNotFound(err) {
			return nil, ErrAttemptNotFound
		}
		return nil, fmt.Errorf("failed to get attempt: %w", err)
	}
	return attempt, nil
}

// userCategory is only looked up when the cutoff has category thresholds
func (s *resultService) userCategory(ctx context.Context, userID string, cutoff *models.CutoffRecord) string {
	if cutoff == nil || len(cutoff.CategoryScores) == 0 {
		return ""
	}

	user, err := s.repo.User().GetByID(ctx, userID)
	if err != nil {
		s.logger.Warn("Failed to resolve user category, using general cutoff", "user_id", userID, "error", err)
		return ""
	}
	return user.Category
}

func buildReview(def *models.TestDefinition, answers []*models.AnswerEntry) []QuestionReview {
	selected := make(map[uint]int, len(answers))
	for _, a := range answers {
		if a.Answered() {
			selected[a.QuestionID] = a.SelectedOption
		}
	}

	review := make([]QuestionReview, 0, def.QuestionCount())
	for _, section := range def.Sections {
		for _, q := range section.Questions {
			item := QuestionReview{
				SectionID:     section.ID,
				QuestionID:    q.ID,
				Number:        q.Number,
				Text:          q.Text,
				Options:       q.Options,
				CorrectOption: q.CorrectOption,
				Explanation:   q.Explanation,
				Outcome:       OutcomeUnattempted,
				Marks:         q.Marks,
				NegativeMarks: q.NegativeMarks,
			}

			if option, ok := selected[q.ID]; ok {
				option := option
				item.SelectedOption = &option
				item.Outcome = OutcomeIncorrect
				if q.CorrectOption != nil && *q.CorrectOption == option {
					item.Outcome = OutcomeCorrect
				}
			}

			review = append(review, item)
		}
	}
	return review
}
