package models

import (
	"fmt"
	"time"
)

// TestDefinition is the immutable view of a test used while attempts run against it.
// Sections own their questions by value.
type TestDefinition struct {
	SeriesID          uint                `json:"series_id"`
	TestID            uint                `json:"test_id"`
	Name              string              `json:"name"`
	AccessType        AccessType          `json:"access_type"`
	IsFree            bool                `json:"is_free"`
	SeriesActive      bool                `json:"series_active"`
	Duration          time.Duration       `json:"duration"`
	StartTime         *time.Time          `json:"start_time,omitempty"`
	EndTime           *time.Time          `json:"end_time,omitempty"`
	ResultPublishTime *time.Time          `json:"result_publish_time,omitempty"`
	Sections          []SectionDefinition `json:"sections"`
}

type SectionDefinition struct {
	ID            uint                 `json:"id"`
	Title         string               `json:"title"`
	DeclaredCount int                  `json:"declared_count"`
	Questions     []QuestionDefinition `json:"questions"`
}

type QuestionDefinition struct {
	ID            uint     `json:"id"`
	Number        int      `json:"number"`
	Text          string   `json:"text"`
	Options       []string `json:"options"`
	CorrectOption *int     `json:"correct_option,omitempty"`
	Explanation   *string  `json:"explanation,omitempty"`
	Marks         float64  `json:"marks"`
	NegativeMarks float64  `json:"negative_marks"`
}

// NewTestDefinition converts a loaded test tree (sections and questions preloaded and
// ordered) into its definition form.
func NewTestDefinition(series *TestSeries, test *Test) *TestDefinition {
	def := &TestDefinition{
		SeriesID:          test.SeriesID,
		TestID:            test.ID,
		Name:              test.Name,
		AccessType:        series.AccessType,
		IsFree:            test.IsFree,
		SeriesActive:      series.IsActive,
		Duration:          time.Duration(test.Duration) * time.Minute,
		StartTime:         test.StartTime,
		EndTime:           test.EndTime,
		ResultPublishTime: test.ResultPublishTime,
		Sections:          make([]SectionDefinition, 0, len(test.Sections)),
	}

	for _, s := range test.Sections {
		section := SectionDefinition{
			ID:            s.ID,
			Title:         s.Title,
			DeclaredCount: s.NoOfQuestions,
			Questions:     make([]QuestionDefinition, 0, len(s.Questions)),
		}
		for _, q := range s.Questions {
			options := make([]string, len(q.Options))
			copy(options, q.Options)
			section.Questions = append(section.Questions, QuestionDefinition{
				ID:            q.ID,
				Number:        q.Number,
				Text:          q.Text,
				Options:       options,
				CorrectOption: q.CorrectOptionIndex,
				Explanation:   q.Explanation,
				Marks:         q.Marks,
				NegativeMarks: q.NegativeMarks,
			})
		}
		def.Sections = append(def.Sections, section)
	}

	return def
}

// Validate checks the structural invariants the scoring engine relies on.
func (d *TestDefinition) Validate() error {
	if d.Duration <= 0 {
		return fmt.Errorf("test %d has no duration", d.TestID)
	}

	seen := make(map[uint]struct{})
	for _, s := range d.Sections {
		// A zero count means the section never declared one
		if s.DeclaredCount != 0 && s.DeclaredCount != len(s.Questions) {
			return fmt.Errorf("section %d declares %d questions but has %d", s.ID, s.DeclaredCount, len(s.Questions))
		}
		for _, q := range s.Questions {
			if _, dup := seen[q.ID]; dup {
				return fmt.Errorf("question %d appears more than once", q.ID)
			}
			seen[q.ID] = struct{}{}
			if q.Marks < 0 || q.NegativeMarks < 0 {
				return fmt.Errorf("question %d has negative marks configuration", q.ID)
			}
		}
	}

	return nil
}

// FindQuestion returns the question with the given id, if it belongs to the test.
func (d *TestDefinition) FindQuestion(id uint) (*QuestionDefinition, bool) {
	for i := range d.Sections {
		for j := range d.Sections[i].Questions {
			if d.Sections[i].Questions[j].ID == id {
				return &d.Sections[i].Questions[j], true
			}
		}
	}
	return nil, false
}

func (d *TestDefinition) QuestionCount() int {
	n := 0
	for _, s := range d.Sections {
		n += len(s.Questions)
	}
	return n
}

// ResultsPublished reports whether question-level review may be disclosed at now.
// A test without a publish time discloses immediately after finalization.
func (d *TestDefinition) ResultsPublished(now time.Time) bool {
	return d.ResultPublishTime == nil || !now.Before(*d.ResultPublishTime)
}
