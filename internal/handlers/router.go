package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/SAP-F-2025/test-attempt-service/internal/models"
	"github.com/SAP-F-2025/test-attempt-service/internal/services"
	"github.com/SAP-F-2025/test-attempt-service/internal/utils"
)

type HandlerManager struct {
	attemptHandler     *AttemptHandler
	cutoffHandler      *CutoffHandler
	participantHandler *ParticipantHandler
	healthHandler      *HealthHandler
	authMiddleware     *CasdoorAuthMiddleware
}

func NewHandlerManager(
	serviceManager services.ServiceManager,
	storage HealthChecker,
	logger utils.Logger,
	authMiddleware *CasdoorAuthMiddleware,
) *HandlerManager {
	return &HandlerManager{
		attemptHandler:     NewAttemptHandler(serviceManager.Attempt(), serviceManager.Result(), logger),
		cutoffHandler:      NewCutoffHandler(serviceManager.Cutoff(), serviceManager.Definition(), logger),
		participantHandler: NewParticipantHandler(serviceManager.Participant(), logger),
		healthHandler:      NewHealthHandler(serviceManager, storage, logger),
		authMiddleware:     authMiddleware,
	}
}

// SetupRoutes sets up all API routes
func (hm *HandlerManager) SetupRoutes(router *gin.Engine) {
	router.GET("/health", hm.healthHandler.Health)
	router.GET("/health/db", hm.healthHandler.Ready)

	v1 := router.Group("/api/v1")
	v1.Use(hm.authMiddleware.AuthMiddleware())
	{
		// Test-scoped routes act on the caller's attempt for that test
		tests := v1.Group("/tests/:seriesId/:testId")
		{
			tests.POST("/start", hm.attemptHandler.StartTest)
			tests.GET("/attempt", hm.attemptHandler.GetAttemptStatus)
			tests.POST("/submit-question", hm.attemptHandler.SubmitQuestion)
			tests.POST("/submit", hm.attemptHandler.SubmitTest)
		}

		attempts := v1.Group("/attempts/:attemptId")
		{
			attempts.POST("/answers", hm.attemptHandler.SubmitAnswer)
			attempts.POST("/submit", hm.attemptHandler.SubmitAttempt)
			attempts.GET("/result", hm.attemptHandler.GetResult)
		}

		// Admin routes
		admin := v1.Group("/admin/test-series/:seriesId/tests/:testId")
		admin.Use(hm.authMiddleware.RequireRoleMiddleware(models.RoleAdmin))
		{
			admin.POST("/cutoff", hm.cutoffHandler.CreateCutoff)
			admin.GET("/cutoff", hm.cutoffHandler.GetCutoff)
			admin.PUT("/cutoff", hm.cutoffHandler.UpdateCutoff)
			admin.DELETE("/cutoff", hm.cutoffHandler.DeleteCutoff)

			admin.GET("/participants", hm.participantHandler.ListParticipants)
			admin.GET("/participants/export", hm.participantHandler.ExportParticipants)

			admin.DELETE("/definition-cache", hm.cutoffHandler.InvalidateDefinition)
		}
	}
}
