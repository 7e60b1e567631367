package models

import (
	"time"

	"gorm.io/datatypes"
)

type AccessType string

const (
	AccessFree AccessType = "FREE"
	AccessPaid AccessType = "PAID"
)

// TestSeries is owned by the content-management side. This service only reads it.
type TestSeries struct {
	ID         uint       `json:"id" gorm:"primaryKey"`
	Name       string     `json:"name" gorm:"not null;size:255"`
	AccessType AccessType `json:"access_type" gorm:"size:10;default:PAID"`
	MaxTests   int        `json:"max_tests"`
	IsActive   bool       `json:"is_active" gorm:"default:true"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Relations
	Tests []Test `json:"tests,omitempty" gorm:"foreignKey:SeriesID"`
}

func (TestSeries) TableName() string {
	return "test_series"
}

type Test struct {
	ID       uint   `json:"id" gorm:"primaryKey"`
	SeriesID uint   `json:"series_id" gorm:"not null;index"`
	Name     string `json:"name" gorm:"not null;size:255"`

	// Duration in minutes
	Duration   int      `json:"duration" gorm:"not null"`
	TotalMarks *float64 `json:"total_marks"`

	// Scheduling
	StartTime         *time.Time `json:"start_time"`
	EndTime           *time.Time `json:"end_time"`
	ResultPublishTime *time.Time `json:"result_publish_time"`

	IsFree bool `json:"is_free" gorm:"default:false"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Relations
	Series   TestSeries `json:"-" gorm:"foreignKey:SeriesID"`
	Sections []Section  `json:"sections,omitempty" gorm:"foreignKey:TestID"`
}

type Section struct {
	ID            uint   `json:"id" gorm:"primaryKey"`
	TestID        uint   `json:"test_id" gorm:"not null;index"`
	Title         string `json:"title" gorm:"not null;size:255"`
	Order         int    `json:"order" gorm:"column:sort_order"`
	NoOfQuestions int    `json:"no_of_questions"`

	Questions []Question `json:"questions,omitempty" gorm:"foreignKey:SectionID"`
}

type Question struct {
	ID                 uint                        `json:"id" gorm:"primaryKey"`
	SectionID          uint                        `json:"section_id" gorm:"not null;index"`
	Number             int                         `json:"number"`
	Text               string                      `json:"text" gorm:"type:text;not null"`
	Options            datatypes.JSONSlice[string] `json:"options" gorm:"type:jsonb"`
	CorrectOptionIndex *int                        `json:"correct_option_index"`
	Explanation        *string                     `json:"explanation" gorm:"type:text"`
	Marks              float64                     `json:"marks" gorm:"default:1"`
	NegativeMarks      float64                     `json:"negative_marks" gorm:"default:0"`
}

// SeriesEnrollment grants a user access to a paid series. Rows are written by the
// purchase system.
type SeriesEnrollment struct {
	ID        uint       `json:"id" gorm:"primaryKey"`
	UserID    string     `json:"user_id" gorm:"not null;size:255;uniqueIndex:idx_enrollment_user_series"`
	SeriesID  uint       `json:"series_id" gorm:"not null;uniqueIndex:idx_enrollment_user_series"`
	ExpiresAt *time.Time `json:"expires_at"`
	CreatedAt time.Time  `json:"created_at"`
}
