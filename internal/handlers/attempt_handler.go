package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/SAP-F-2025/test-attempt-service/internal/services"
	"github.com/SAP-F-2025/test-attempt-service/internal/utils"
)

type AttemptHandler struct {
	BaseHandler
	attemptService services.AttemptService
	resultService  services.ResultService
}

func NewAttemptHandler(
	attemptService services.AttemptService,
	resultService services.ResultService,
	logger utils.Logger,
) *AttemptHandler {
	return &AttemptHandler{
		BaseHandler:    NewBaseHandler(logger),
		attemptService: attemptService,
		resultService:  resultService,
	}
}

// StartTest starts the caller's attempt or resumes the one already running
// @Summary Start test attempt
// @Tags attempts
// @Produce json
// @Param seriesId path uint true "Series ID"
// @Param testId path uint true "Test ID"
// @Success 201 {object} services.AttemptResponse
// @Success 200 {object} services.AttemptResponse
// @Failure 403 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Router /tests/{seriesId}/{testId}/start [post]
func (h *AttemptHandler) StartTest(c *gin.Context) {
	seriesID, testID, ok := h.parseTestParams(c)
	if !ok {
		return
	}
	userID, ok := h.currentUserID(c)
	if !ok {
		return
	}

	h.LogRequest(c, "Starting test attempt", "series_id", seriesID, "test_id", testID)

	attempt, err := h.attemptService.Start(c.Request.Context(), userID, seriesID, testID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	status := http.StatusOK
	if attempt.Created {
		status = http.StatusCreated
	}
	c.JSON(status, attempt)
}

// GetAttemptStatus reports the caller's attempt for a test, NOT_STARTED included
// @Router /tests/{seriesId}/{testId}/attempt [get]
func (h *AttemptHandler) GetAttemptStatus(c *gin.Context) {
	seriesID, testID, ok := h.parseTestParams(c)
	if !ok {
		return
	}
	userID, ok := h.currentUserID(c)
	if !ok {
		return
	}

	attempt, err := h.attemptService.GetAttempt(c.Request.Context(), userID, seriesID, testID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, attempt)
}

// SubmitQuestion records an answer on the caller's attempt for a test
// @Summary Submit answer
// @Tags attempts
// @Accept json
// @Produce json
// @Param answer body services.SubmitAnswerRequest true "Answer"
// @Success 200 {object} services.AnswerAck
// @Failure 400 {object} ErrorResponse
// @Failure 410 {object} ErrorResponse
// @Router /tests/{seriesId}/{testId}/submit-question [post]
func (h *AttemptHandler) SubmitQuestion(c *gin.Context) {
	seriesID, testID, ok := h.parseTestParams(c)
	if !ok {
		return
	}
	userID, ok := h.currentUserID(c)
	if !ok {
		return
	}

	var req services.SubmitAnswerRequest
	if !h.bindJSON(c, &req) {
		return
	}

	ack, err := h.attemptService.SubmitAnswerForTest(c.Request.Context(), userID, seriesID, testID, &req)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, ack)
}

// SubmitTest finalizes the caller's attempt for a test
// @Router /tests/{seriesId}/{testId}/submit [post]
func (h *AttemptHandler) SubmitTest(c *gin.Context) {
	seriesID, testID, ok := h.parseTestParams(c)
	if !ok {
		return
	}
	userID, ok := h.currentUserID(c)
	if !ok {
		return
	}

	h.LogRequest(c, "Submitting test", "series_id", seriesID, "test_id", testID)

	score, err := h.attemptService.SubmitTestForTest(c.Request.Context(), userID, seriesID, testID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, score)
}

// SubmitAnswer records an answer on an attempt by id
// @Router /attempts/{attemptId}/answers [post]
func (h *AttemptHandler) SubmitAnswer(c *gin.Context) {
	attemptID := h.parseIDParam(c, "attemptId")
	if attemptID == 0 {
		return
	}
	userID, ok := h.currentUserID(c)
	if !ok {
		return
	}

	var req services.SubmitAnswerRequest
	if !h.bindJSON(c, &req) {
		return
	}

	ack, err := h.attemptService.SubmitAnswer(c.Request.Context(), attemptID, userID, &req)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, ack)
}

// SubmitAttempt finalizes an attempt by id
// @Router /attempts/{attemptId}/submit [post]
func (h *AttemptHandler) SubmitAttempt(c *gin.Context) {
	attemptID := h.parseIDParam(c, "attemptId")
	if attemptID == 0 {
		return
	}
	userID, ok := h.currentUserID(c)
	if !ok {
		return
	}

	h.LogRequest(c, "Submitting attempt", "attempt_id", attemptID)

	score, err := h.attemptService.SubmitTest(c.Request.Context(), attemptID, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, score)
}

// GetResult returns the analysis of a finalized attempt
// @Summary Get attempt result
// @Tags results
// @Produce json
// @Param attemptId path uint true "Attempt ID"
// @Success 200 {object} services.ResultAnalysis
// @Failure 409 {object} ErrorResponse
// @Router /attempts/{attemptId}/result [get]
func (h *AttemptHandler) GetResult(c *gin.Context) {
	attemptID := h.parseIDParam(c, "attemptId")
	if attemptID == 0 {
		return
	}
	userID, ok := h.currentUserID(c)
	if !ok {
		return
	}

	result, err := h.resultService.GetResult(c.Request.Context(), attemptID, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

func (h *AttemptHandler) bindJSON(c *gin.Context, req interface{}) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid request payload",
			Code:    "INVALID_PAYLOAD",
			Details: err.Error(),
		})
		return false
	}
	return true
}
