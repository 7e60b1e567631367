package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/SAP-F-2025/test-attempt-service/internal/services"
)

type errorMapping struct {
	err     error
	status  int
	code    string
	message string
}

// Checked in order; the first sentinel the error wraps wins
var errorMappings = []errorMapping{
	{services.ErrAttemptNotFound, http.StatusNotFound, "ATTEMPT_NOT_FOUND", "Attempt not found"},
	{services.ErrTestNotFound, http.StatusNotFound, "TEST_NOT_FOUND", "Test not found"},
	{services.ErrCutoffNotFound, http.StatusNotFound, "CUTOFF_NOT_FOUND", "Cutoff not found"},
	{services.ErrNotEligible, http.StatusForbidden, "NOT_ELIGIBLE", "Not eligible to attempt this test"},
	{services.ErrTestWindowNotOpen, http.StatusForbidden, "TEST_NOT_OPEN", "Test has not opened yet"},
	{services.ErrAttemptAlreadyFinalized, http.StatusConflict, "ATTEMPT_ALREADY_FINALIZED", "Attempt already submitted"},
	{services.ErrAttemptNotFinalized, http.StatusConflict, "ATTEMPT_NOT_FINALIZED", "Attempt has not been submitted yet"},
	{services.ErrCutoffExists, http.StatusConflict, "CUTOFF_EXISTS", "Cutoff already exists for this test"},
	{services.ErrAttemptExpired, http.StatusGone, "ATTEMPT_EXPIRED", "Attempt time has expired"},
	{services.ErrTestWindowClosed, http.StatusGone, "TEST_CLOSED", "Test has closed"},
	{services.ErrUnknownQuestion, http.StatusBadRequest, "UNKNOWN_QUESTION", "Question is not part of this test"},
	{services.ErrDefinitionUnavailable, http.StatusServiceUnavailable, "DEFINITION_UNAVAILABLE", "Test content is temporarily unavailable"},
}

// handleServiceError translates a service error into a response
func (h *BaseHandler) handleServiceError(c *gin.Context, err error) {
	var validationErrors services.ValidationErrors
	if errors.As(err, &validationErrors) {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Validation failed",
			Code:    "VALIDATION_FAILED",
			Details: validationErrors,
		})
		return
	}

	var permissionError *services.PermissionError
	if errors.As(err, &permissionError) {
		c.JSON(http.StatusForbidden, ErrorResponse{
			Message: "Access denied",
			Code:    "ACCESS_DENIED",
			Details: map[string]interface{}{
				"resource": permissionError.Resource,
				"action":   permissionError.Action,
				"reason":   permissionError.Reason,
			},
		})
		return
	}

	var businessRuleError *services.BusinessRuleError
	if errors.As(err, &businessRuleError) {
		h.LogError(c, err, "Business rule violated", "rule", businessRuleError.Rule)
		c.JSON(http.StatusUnprocessableEntity, ErrorResponse{
			Message: businessRuleError.Message,
			Code:    "BUSINESS_RULE_VIOLATION",
			Details: map[string]interface{}{
				"rule":    businessRuleError.Rule,
				"context": businessRuleError.Context,
			},
		})
		return
	}

	for _, m := range errorMappings {
		if errors.Is(err, m.err) {
			if m.status >= http.StatusInternalServerError {
				h.LogError(c, err, m.message)
			}
			c.JSON(m.status, ErrorResponse{Message: m.message, Code: m.code})
			return
		}
	}

	h.LogError(c, err, "Unhandled service error")
	c.JSON(http.StatusInternalServerError, ErrorResponse{
		Message: "Internal server error",
		Code:    "INTERNAL_ERROR",
	})
}
