package services

import (
	"errors"
	"fmt"

	"github.com/SAP-F-2025/test-attempt-service/internal/validator"
)

// Attempt errors
var (
	ErrNotEligible             = errors.New("user is not eligible to attempt this test")
	ErrAttemptNotFound         = errors.New("attempt not found")
	ErrAttemptAccessDenied     = errors.New("attempt belongs to another user")
	ErrAttemptAlreadyFinalized = errors.New("attempt already finalized")
	ErrAttemptExpired          = errors.New("attempt time has expired")
	ErrAttemptNotFinalized     = errors.New("attempt has not been submitted yet")
	ErrUnknownQuestion         = errors.New("question is not part of this test")

	// ErrConcurrentFinalizeLost is returned inside the finalize transaction when another
	// caller made the transition first. It never leaves the service.
	ErrConcurrentFinalizeLost = errors.New("attempt finalized by a concurrent caller")
)

// Test definition errors
var (
	ErrTestNotFound          = errors.New("test not found")
	ErrTestWindowNotOpen     = errors.New("test window has not opened yet")
	ErrTestWindowClosed      = errors.New("test window has closed")
	ErrDefinitionUnavailable = errors.New("test definition unavailable")
	ErrInvalidDefinition     = errors.New("test definition is invalid")
	ErrUnscorableQuestion    = errors.New("question cannot be scored")
)

// Cutoff errors
var (
	ErrCutoffNotFound = errors.New("cutoff not found")
	ErrCutoffExists   = errors.New("cutoff already exists for this test")
)

type ValidationErrors = validator.ValidationErrors
type ValidationError = validator.ValidationError

// BusinessRuleError reports a rule the stored data violates. Err is the sentinel it
// classifies as.
type BusinessRuleError struct {
	Rule    string                 `json:"rule"`
	Message string                 `json:"message"`
	Context map[string]interface{} `json:"context,omitempty"`
	Err     error                  `json:"-"`
}

func NewBusinessRuleError(sentinel error, rule, message string, context map[string]interface{}) *BusinessRuleError {
	return &BusinessRuleError{
		Rule:    rule,
		Message: message,
		Context: context,
		Err:     sentinel,
	}
}

func (e *BusinessRuleError) Error() string {
	return fmt.Sprintf("business rule %s violated: %s", e.Rule, e.Message)
}

func (e *BusinessRuleError) Unwrap() error {
	return e.Err
}

// PermissionError is returned when a user touches an attempt that is not theirs
type PermissionError struct {
	UserID     string `json:"user_id"`
	ResourceID uint   `json:"resource_id"`
	Resource   string `json:"resource"`
	Action     string `json:"action"`
	Reason     string `json:"reason"`
}

func NewPermissionError(userID string, resourceID uint, resource, action, reason string) *PermissionError {
	return &PermissionError{
		UserID:     userID,
		ResourceID: resourceID,
		Resource:   resource,
		Action:     action,
		Reason:     reason,
	}
}

func (e *PermissionError) Error() string {
	return fmt.Sprintf("user %s cannot %s %s %d: %s", e.UserID, e.Action, e.Resource, e.ResourceID, e.Reason)
}

func (e *PermissionError) Unwrap() error {
	return ErrAttemptAccessDenied
}
