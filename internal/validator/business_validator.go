package validator

import (
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// BusinessValidator handles business rule validation
type BusinessValidator struct {
	validate *validator.Validate
}

// NewBusinessValidator creates a new business validator
func NewBusinessValidator() *BusinessValidator {
	validate := validator.New()

	// Report fields by their json names
	validate.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return field.Name
		}
		return name
	})

	bv := &BusinessValidator{validate: validate}
	bv.registerBusinessRules()

	return bv
}

// Validate validates business rules for any struct
func (bv *BusinessValidator) Validate(s interface{}) ValidationErrors {
	err := bv.validate.Struct(s)
	if err != nil {
		return ToValidationErrors(err)
	}
	return nil
}

// ValidateCutoff validates a cutoff write
func (bv *BusinessValidator) ValidateCutoff(req *CutoffRequest) ValidationErrors {
	var errors ValidationErrors

	// Basic struct validation
	errors = append(errors, bv.Validate(req)...)

	if req.Score == nil && req.Percentile == nil && len(req.CategoryScores) == 0 {
		errors = append(errors, ValidationError{
			Field:   "cutoff",
			Message: "at least one of score, percentile or category_scores is required",
			Rule:    "cutoff_threshold",
		})
	}

	for category := range req.CategoryScores {
		if category == "" {
			errors = append(errors, ValidationError{
				Field:   "category_scores",
				Message: "category names must not be empty",
				Rule:    "cutoff_category",
			})
			break
		}
	}

	return errors
}

func (bv *BusinessValidator) registerBusinessRules() {
	// Option index, with -1 meaning the question was cleared
	bv.validate.RegisterValidation("option_index", func(fl validator.FieldLevel) bool {
		return fl.Field().Int() >= -1
	})

	bv.validate.RegisterValidation("percentile", func(fl validator.FieldLevel) bool {
		p := fl.Field().Float()
		return p >= 0 && p <= 100
	})
}
