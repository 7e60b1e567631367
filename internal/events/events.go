package events

import (
	"context"
	"time"

	"github.com/google/uuid"
)

const (
	EventSource  = "test-attempt-service"
	EventVersion = "1.0"
)

type EventType string

const (
	AttemptStarted   EventType = "attempt.started"
	AttemptSubmitted EventType = "attempt.submitted"
	CutoffChanged    EventType = "cutoff.changed"
)

// Event is the envelope every published message carries
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	Source    string      `json:"source"`
	Version   string      `json:"version"`
	Timestamp time.Time   `json:"timestamp"`
	Data      interface{} `json:"data"`
}

func NewEvent(eventType EventType, at time.Time, data interface{}) *Event {
	return &Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		Source:    EventSource,
		Version:   EventVersion,
		Timestamp: at.UTC(),
		Data:      data,
	}
}

// EventPublisher delivers events after the state change they describe has committed.
type EventPublisher interface {
	Publish(ctx context.Context, event *Event) error
	Close() error
}

type AttemptStartedData struct {
	AttemptID       uint      `json:"attempt_id"`
	UserID          string    `json:"user_id"`
	SeriesID        uint      `json:"series_id"`
	TestID          uint      `json:"test_id"`
	StartedAt       time.Time `json:"started_at"`
	DurationSeconds int64     `json:"duration_seconds"`
}

type AttemptSubmittedData struct {
	AttemptID   uint      `json:"attempt_id"`
	UserID      string    `json:"user_id"`
	SeriesID    uint      `json:"series_id"`
	TestID      uint      `json:"test_id"`
	SubmittedAt time.Time `json:"submitted_at"`
	NetScore    float64   `json:"net_score"`
	Correct     int       `json:"correct"`
	Incorrect   int       `json:"incorrect"`
	Unattempted int       `json:"unattempted"`
	Auto        bool      `json:"auto"`
}

type CutoffChangedData struct {
	SeriesID  uint   `json:"series_id"`
	TestID    uint   `json:"test_id"`
	Action    string `json:"action"` // created, updated, deleted
	ChangedBy string `json:"changed_by"`
}
