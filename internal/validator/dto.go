package validator

// SubmitAnswerRequest records one answer for the caller's attempt
type SubmitAnswerRequest struct {
	QuestionID     uint `json:"question_id" validate:"required"`
	SelectedOption *int `json:"selected_option" validate:"required,option_index"`
}

// CutoffRequest creates or replaces a test's cutoff record
type CutoffRequest struct {
	Score          *float64           `json:"score" validate:"omitempty,gte=0"`
	Percentile     *float64           `json:"percentile" validate:"omitempty,percentile"`
	CategoryScores map[string]float64 `json:"category_scores" validate:"omitempty,dive,gte=0"`
}
