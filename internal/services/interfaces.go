package services

import (
	"context"
	"time"

	"github.com/SAP-F-2025/test-attempt-service/internal/models"
	"github.com/SAP-F-2025/test-attempt-service/internal/validator"
)

// ===== REQUEST/RESPONSE DTOs =====

type SubmitAnswerRequest = validator.SubmitAnswerRequest
type CutoffRequest = validator.CutoffRequest

// AttemptResponse is an attempt as seen by its owner
type AttemptResponse struct {
	ID              uint                 `json:"id,omitempty"`
	UserID          string               `json:"user_id"`
	SeriesID        uint                 `json:"series_id"`
	TestID          uint                 `json:"test_id"`
	Status          models.AttemptStatus `json:"status"`
	StartedAt       *time.Time           `json:"started_at,omitempty"`
	SubmittedAt     *time.Time           `json:"submitted_at,omitempty"`
	DurationSeconds int64                `json:"duration_seconds"`
	AutoSubmitted   bool                 `json:"auto_submitted"`

	// Derived at read time
	ExpiresAt        *time.Time `json:"expires_at,omitempty"`
	RemainingSeconds int64      `json:"remaining_seconds"`
	AnsweredCount    int        `json:"answered_count"`
	QuestionCount    int        `json:"question_count"`

	// Created is true when the call created the attempt rather than resuming it
	Created bool `json:"-"`
}

// AnswerAck acknowledges a recorded answer
type AnswerAck struct {
	AttemptID        uint      `json:"attempt_id"`
	QuestionID       uint      `json:"question_id"`
	SelectedOption   int       `json:"selected_option"`
	AnsweredAt       time.Time `json:"answered_at"`
	RemainingSeconds int64     `json:"remaining_seconds"`
}

type Verdict string

const (
	VerdictQualified     Verdict = "Qualified"
	VerdictNotQualified  Verdict = "NotQualified"
	VerdictNotApplicable Verdict = "NotApplicable"
)

// RankEntry is derived on read from the submitted attempts of a test
type RankEntry struct {
	Rank        int       `json:"rank"`
	AttemptID   uint      `json:"attempt_id"`
	UserID      string    `json:"user_id"`
	UserName    string    `json:"user_name,omitempty"`
	NetScore    float64   `json:"net_score"`
	Correct     int       `json:"correct"`
	Incorrect   int       `json:"incorrect"`
	Unattempted int       `json:"unattempted"`
	Accuracy    *float64  `json:"accuracy"` // nil when nothing was attempted
	Percentile  float64   `json:"percentile"`
	SubmittedAt time.Time `json:"submitted_at"`
	Verdict     Verdict   `json:"verdict,omitempty"`
}

type QuestionOutcome string

const (
	OutcomeCorrect     QuestionOutcome = "correct"
	OutcomeIncorrect   QuestionOutcome = "incorrect"
	OutcomeUnattempted QuestionOutcome = "unattempted"
)

// QuestionReview is disclosed only once results are published
type QuestionReview struct {
	SectionID      uint            `json:"section_id"`
	QuestionID     uint            `json:"question_id"`
	Number         int             `json:"number"`
	Text           string          `json:"text"`
	Options        []string        `json:"options"`
	SelectedOption *int            `json:"selected_option"`
	CorrectOption  *int            `json:"correct_option"`
	Explanation    *string         `json:"explanation,omitempty"`
	Outcome        QuestionOutcome `json:"outcome"`
	Marks          float64         `json:"marks"`
	NegativeMarks  float64         `json:"negative_marks"`
}

// ResultAnalysis is what a user sees for a finalized attempt
type ResultAnalysis struct {
	AttemptID     uint                 `json:"attempt_id"`
	SeriesID      uint                 `json:"series_id"`
	TestID        uint                 `json:"test_id"`
	TestName      string               `json:"test_name"`
	Status        models.AttemptStatus `json:"status"`
	SubmittedAt   *time.Time           `json:"submitted_at"`
	AutoSubmitted bool                 `json:"auto_submitted"`

	Score             *models.ScoreBreakdown `json:"score"`
	Verdict           Verdict                `json:"verdict"`
	Rank              int                    `json:"rank"`
	Percentile        float64                `json:"percentile"`
	Accuracy          *float64               `json:"accuracy"`
	TotalParticipants int                    `json:"total_participants"`

	ResultsPublished bool             `json:"results_published"`
	PublishAt        *time.Time       `json:"publish_at,omitempty"`
	Review           []QuestionReview `json:"review,omitempty"`
}

// ===== SERVICE INTERFACES =====

type AttemptService interface {
	// Start creates the caller's attempt, or returns it if one is already running
	Start(ctx context.Context, userID string, seriesID, testID uint) (*AttemptResponse, error)
	GetAttempt(ctx context.Context, userID string, seriesID, testID uint) (*AttemptResponse, error)

	SubmitAnswer(ctx context.Context, attemptID uint, userID string, req *SubmitAnswerRequest) (*AnswerAck, error)
	SubmitAnswerForTest(ctx context.Context, userID string, seriesID, testID uint, req *SubmitAnswerRequest) (*AnswerAck, error)

	// SubmitTest finalizes the attempt; repeated calls return the stored breakdown
	SubmitTest(ctx context.Context, attemptID uint, userID string) (*models.ScoreBreakdown, error)
	SubmitTestForTest(ctx context.Context, userID string, seriesID, testID uint) (*models.ScoreBreakdown, error)

	// FinalizeIfExpired finalizes an in-progress attempt whose deadline has passed and
	// reports whether it did
	FinalizeIfExpired(ctx context.Context, attemptID uint) (bool, error)
}

type ResultService interface {
	GetResult(ctx context.Context, attemptID uint, userID string) (*ResultAnalysis, error)
}

type CutoffService interface {
	Create(ctx context.Context, seriesID, testID uint, req *CutoffRequest, adminID string) (*models.CutoffRecord, error)
	Get(ctx context.Context, seriesID, testID uint) (*models.CutoffRecord, error)
	Update(ctx context.Context, seriesID, testID uint, req *CutoffRequest, adminID string) (*models.CutoffRecord, error)
	Delete(ctx context.Context, seriesID, testID uint, adminID string) error
}

type ParticipantService interface {
	List(ctx context.Context, seriesID, testID uint) ([]*RankEntry, error)
	Export(ctx context.Context, seriesID, testID uint) ([]byte, error)
}

type DefinitionService interface {
	Get(ctx context.Context, seriesID, testID uint) (*models.TestDefinition, error)
	Invalidate(ctx context.Context, seriesID, testID uint) error
}

// ServiceManager owns service construction and lifecycle
type ServiceManager interface {
	Attempt() AttemptService
	Result() ResultService
	Cutoff() CutoffService
	Participant() ParticipantService
	Definition() DefinitionService
	Sweeper() *ExpirySweeper

	Initialize(ctx context.Context) error
	HealthCheck(ctx context.Context) error
	Shutdown(ctx context.Context) error
}
