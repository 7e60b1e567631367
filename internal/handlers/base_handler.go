package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/SAP-F-2025/test-attempt-service/internal/utils"
)

// BaseHandler carries what every handler shares
type BaseHandler struct {
	logger utils.Logger
}

func NewBaseHandler(logger utils.Logger) BaseHandler {
	return BaseHandler{logger: logger}
}

// LogRequest logs an incoming request with the request-scoped logger
func (h *BaseHandler) LogRequest(c *gin.Context, msg string, args ...any) {
	args = append(args, "method", c.Request.Method, "route", c.FullPath())
	utils.GetLogger(c, h.logger).Info(msg, args...)
}

func (h *BaseHandler) LogError(c *gin.Context, err error, msg string, args ...any) {
	args = append(args, "error", err, "route", c.FullPath())
	utils.GetLogger(c, h.logger).Error(msg, args...)
}

// parseIDParam writes a 400 and returns 0 when the path parameter is not a positive id
func (h *BaseHandler) parseIDParam(c *gin.Context, param string) uint {
	id, err := strconv.ParseUint(c.Param(param), 10, 32)
	if err != nil || id == 0 {
		details := "must be a positive integer"
		if err != nil {
			details = err.Error()
		}
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid " + param,
			Code:    "INVALID_PARAMETER",
			Details: details,
		})
		return 0
	}
	return uint(id)
}

// parseTestParams reads the series and test ids of test-scoped routes
func (h *BaseHandler) parseTestParams(c *gin.Context) (uint, uint, bool) {
	seriesID := h.parseIDParam(c, "seriesId")
	if seriesID == 0 {
		return 0, 0, false
	}
	testID := h.parseIDParam(c, "testId")
	if testID == 0 {
		return 0, 0, false
	}
	return seriesID, testID, true
}

// currentUserID writes a 401 when the request carries no authenticated user
func (h *BaseHandler) currentUserID(c *gin.Context) (string, bool) {
	userID, err := GetUserIDFromContext(c)
	if err != nil || userID == "" {
		c.JSON(http.StatusUnauthorized, ErrorResponse{
			Message: "User not authenticated",
			Code:    "UNAUTHORIZED",
		})
		return "", false
	}
	return userID, true
}
