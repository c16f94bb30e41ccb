package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/edulearn/quiz-service/internal/services"
	"github.com/edulearn/quiz-service/internal/utils"
)

type HandlerManager struct {
	attemptHandler *AttemptHandler
}

func NewHandlerManager(
	serviceManager services.ServiceManager,
	logger utils.Logger,
) *HandlerManager {
	return &HandlerManager{
		attemptHandler: NewAttemptHandler(serviceManager.Attempt(), serviceManager.Export(), logger),
	}
}

// SetupRoutes sets up all API routes
func (hm *HandlerManager) SetupRoutes(router *gin.Engine, authMiddleware gin.HandlerFunc) {
	// Health check endpoint
	router.GET("/health", HealthCheck)

	// API v1 routes
	v1 := router.Group("/api/v1")
	v1.Use(authMiddleware)
	{
		// Attempt routes
		attempts := v1.Group("/attempts")
		{
			attempts.POST("/start", hm.attemptHandler.StartAttempt)
			attempts.GET("", hm.attemptHandler.ListAttempts)
			attempts.GET("/stats", hm.attemptHandler.GetAttemptStats)
			attempts.GET("/:id", hm.attemptHandler.GetAttempt)
			attempts.POST("/:id/resume", hm.attemptHandler.ResumeAttempt)
			attempts.POST("/:id/abandon", hm.attemptHandler.AbandonAttempt)
			attempts.PUT("/:id/progress", hm.attemptHandler.SaveProgress)
			attempts.POST("/:id/submit", hm.attemptHandler.SubmitAttempt)
		}

		// Quiz-scoped attempt routes
		quizzes := v1.Group("/quizzes")
		{
			quizzes.GET("/:quiz_id/attempts/export", hm.attemptHandler.ExportQuizAttempts)
		}
	}
}
