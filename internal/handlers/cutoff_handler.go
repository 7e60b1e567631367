package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/SAP-F-2025/test-attempt-service/internal/services"
	"github.com/SAP-F-2025/test-attempt-service/internal/utils"
)

// CutoffHandler serves the admin cutoff routes and definition cache control
type CutoffHandler struct {
	BaseHandler
	cutoffService     services.CutoffService
	definitionService services.DefinitionService
}

func NewCutoffHandler(cutoffService services.CutoffService, definitionService services.DefinitionService, logger utils.Logger) *CutoffHandler {
	return &CutoffHandler{
		BaseHandler:       NewBaseHandler(logger),
		cutoffService:     cutoffService,
		definitionService: definitionService,
	}
}

// CreateCutoff
// @Router /admin/test-series/{seriesId}/tests/{testId}/cutoff [post]
func (h *CutoffHandler) CreateCutoff(c *gin.Context) {
	seriesID, testID, ok := h.parseTestParams(c)
	if !ok {
		return
	}
	adminID, ok := h.currentUserID(c)
	if !ok {
		return
	}

	var req services.CutoffRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid request payload",
			Code:    "INVALID_PAYLOAD",
			Details: err.Error(),
		})
		return
	}

	h.LogRequest(c, "Creating cutoff", "series_id", seriesID, "test_id", testID)

	cutoff, err := h.cutoffService.Create(c.Request.Context(), seriesID, testID, &req, adminID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, cutoff)
}

// GetCutoff
// @Router /admin/test-series/{seriesId}/tests/{testId}/cutoff [get]
func (h *CutoffHandler) GetCutoff(c *gin.Context) {
	seriesID, testID, ok := h.parseTestParams(c)
	if !ok {
		return
	}

	cutoff, err := h.cutoffService.Get(c.Request.Context(), seriesID, testID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, cutoff)
}

// UpdateCutoff replaces the thresholds of an existing cutoff
// @Router /admin/test-series/{seriesId}/tests/{testId}/cutoff [put]
func (h *CutoffHandler) UpdateCutoff(c *gin.Context) {
	seriesID, testID, ok := h.parseTestParams(c)
	if !ok {
		return
	}
	adminID, ok := h.currentUserID(c)
	if !ok {
		return
	}

	var req services.CutoffRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid request payload",
			Code:    "INVALID_PAYLOAD",
			Details: err.Error(),
		})
		return
	}

	h.LogRequest(c, "Updating cutoff", "series_id", seriesID, "test_id", testID)

	cutoff, err := h.cutoffService.Update(c.Request.Context(), seriesID, testID, &req, adminID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, cutoff)
}

// DeleteCutoff
// @Router /admin/test-series/{seriesId}/tests/{testId}/cutoff [delete]
func (h *CutoffHandler) DeleteCutoff(c *gin.Context) {
	seriesID, testID, ok := h.parseTestParams(c)
	if !ok {
		return
	}
	adminID, ok := h.currentUserID(c)
	if !ok {
		return
	}

	h.LogRequest(c, "Deleting cutoff", "series_id", seriesID, "test_id", testID)

	if err := h.cutoffService.Delete(c.Request.Context(), seriesID, testID, adminID); err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, SuccessResponse{Message: "Cutoff deleted successfully"})
}

// InvalidateDefinition drops the cached definition so the next read sees content edits
// @Router /admin/test-series/{seriesId}/tests/{testId}/definition-cache [delete]
func (h *CutoffHandler) InvalidateDefinition(c *gin.Context) {
	seriesID, testID, ok := h.parseTestParams(c)
	if !ok {
		return
	}

	h.LogRequest(c, "Invalidating definition cache", "series_id", seriesID, "test_id", testID)

	if err := h.definitionService.Invalidate(c.Request.Context(), seriesID, testID); err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}
