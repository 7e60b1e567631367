package models

import (
	"time"

	"gorm.io/datatypes"
)

type AttemptStatus string

// NotStarted is never persisted: absence of an attempt row is the signal.
const (
	AttemptNotStarted AttemptStatus = "NOT_STARTED"
	AttemptInProgress AttemptStatus = "IN_PROGRESS"
	AttemptSubmitted  AttemptStatus = "SUBMITTED"
)

// NoAnswer is the selected option of an entry the user cleared.
const NoAnswer = -1

type TestAttempt struct {
	ID       uint          `json:"id" gorm:"primaryKey"`
	UserID   string        `json:"user_id" gorm:"not null;size:255;uniqueIndex:idx_attempt_user_series_test"`
	SeriesID uint          `json:"series_id" gorm:"not null;uniqueIndex:idx_attempt_user_series_test;index:idx_attempt_test_status"`
	TestID   uint          `json:"test_id" gorm:"not null;uniqueIndex:idx_attempt_user_series_test;index:idx_attempt_test_status"`
	Status   AttemptStatus `json:"status" gorm:"not null;size:20;default:IN_PROGRESS;index:idx_attempt_test_status"`

	// Timing
	StartedAt       time.Time  `json:"started_at" gorm:"not null"`
	SubmittedAt     *time.Time `json:"submitted_at"`
	DurationSeconds int64      `json:"duration_seconds" gorm:"not null"` // snapshot taken at start
	AutoSubmitted   bool       `json:"auto_submitted" gorm:"default:false"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Relations
	Answers []AnswerEntry   `json:"answers,omitempty" gorm:"foreignKey:AttemptID"`
	Score   *ScoreBreakdown `json:"score,omitempty" gorm:"foreignKey:AttemptID"`
}

// Deadline is the instant from which answer writes are refused.
func (a *TestAttempt) Deadline(grace time.Duration) time.Time {
	return a.StartedAt.Add(time.Duration(a.DurationSeconds)*time.Second + grace)
}

func (a *TestAttempt) IsExpired(now time.Time, grace time.Duration) bool {
	return !now.Before(a.Deadline(grace))
}

func (a *TestAttempt) RemainingTime(now time.Time, grace time.Duration) time.Duration {
	if a.Status != AttemptInProgress {
		return 0
	}
	remaining := a.Deadline(grace).Sub(now)
	if remaining < 0 {
		return 0
	}
	return remaining
}

// AnswerEntry is unique per (attempt, question); later writes overwrite earlier ones.
type AnswerEntry struct {
	ID             uint      `json:"id" gorm:"primaryKey"`
	AttemptID      uint      `json:"attempt_id" gorm:"not null;uniqueIndex:idx_answer_attempt_question"`
	QuestionID     uint      `json:"question_id" gorm:"not null;uniqueIndex:idx_answer_attempt_question"`
	SelectedOption int       `json:"selected_option" gorm:"not null"`
	AnsweredAt     time.Time `json:"answered_at" gorm:"not null"`
}

func (e *AnswerEntry) Answered() bool {
	return e.SelectedOption != NoAnswer
}

// Tally holds the counters shared by a section breakdown and the total.
type Tally struct {
	Correct     int     `json:"correct" gorm:"not null"`
	Incorrect   int     `json:"incorrect" gorm:"not null"`
	Unattempted int     `json:"unattempted" gorm:"not null"`
	Earned      float64 `json:"earned" gorm:"not null"`
	Lost        float64 `json:"lost" gorm:"not null"`
	Net         float64 `json:"net" gorm:"not null"`
}

func (t Tally) Attempted() int {
	return t.Correct + t.Incorrect
}

type SectionScore struct {
	SectionID uint   `json:"section_id"`
	Title     string `json:"title"`
	Tally
}

// ScoreBreakdown is written once, in the transaction that submits its attempt.
type ScoreBreakdown struct {
	ID        uint `json:"-" gorm:"primaryKey"`
	AttemptID uint `json:"attempt_id" gorm:"not null;uniqueIndex"`

	Tally `gorm:"embedded"`

	Sections datatypes.JSONSlice[SectionScore] `json:"sections" gorm:"type:jsonb"`
	ScoredAt time.Time                         `json:"scored_at" gorm:"not null"`
}
