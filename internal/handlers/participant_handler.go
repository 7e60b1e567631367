package handlers

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/SAP-F-2025/test-attempt-service/internal/services"
	"github.com/SAP-F-2025/test-attempt-service/internal/utils"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

type ParticipantHandler struct {
	BaseHandler
	participantService services.ParticipantService
}

func NewParticipantHandler(participantService services.ParticipantService, logger utils.Logger) *ParticipantHandler {
	return &ParticipantHandler{
		BaseHandler:        NewBaseHandler(logger),
		participantService: participantService,
	}
}

// ListParticipants returns the ranked submitted attempts of a test
// @Router /admin/test-series/{seriesId}/tests/{testId}/participants [get]
func (h *ParticipantHandler) ListParticipants(c *gin.Context) {
	seriesID, testID, ok := h.parseTestParams(c)
	if !ok {
		return
	}

	ranking, err := h.participantService.List(c.Request.Context(), seriesID, testID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"participants": ranking,
		"total":        len(ranking),
	})
}

// ExportParticipants streams the ranking as an xlsx workbook
// @Produce application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Router /admin/test-series/{seriesId}/tests/{testId}/participants/export [get]
func (h *ParticipantHandler) ExportParticipants(c *gin.Context) {
	seriesID, testID, ok := h.parseTestParams(c)
	if !ok {
		return
	}

	h.LogRequest(c, "Exporting participants", "series_id", seriesID, "test_id", testID)

	data, err := h.participantService.Export(c.Request.Context(), seriesID, testID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="participants-%d-%d.xlsx"`, seriesID, testID))
	c.Data(http.StatusOK, xlsxContentType, data)
}
