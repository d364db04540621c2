package api

import (
	"net/http"

	"alcyxob/neuralfit/internal/metrics"
	"alcyxob/neuralfit/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// SetupRoutes registers every endpoint on router. m may be nil to disable
// request metrics and the /metrics endpoint.
func SetupRoutes(
	router *gin.Engine,
	jwtSecret string,
	authService service.AuthService,
	tracker *service.Tracker,
	m *metrics.Metrics,
	logger zerolog.Logger,
) {
	authHandler := NewAuthHandler(authService)
	trackerHandler := NewTrackerHandler(tracker, logger)

	authMiddleware := AuthMiddleware(jwtSecret)

	router.Use(RequestLogger(logger))
	if m != nil {
		router.Use(RequestMetrics(m))
		router.GET("/metrics", gin.WrapH(m.Handler()))
	}

	router.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "pong"})
	})

	apiV1 := router.Group("/api/v1")
	{
		authGroup := apiV1.Group("/auth")
		{
			authGroup.POST("/register", authHandler.Register)
			authGroup.POST("/login", authHandler.Login)
		}
	}

	protected := apiV1.Group("")
	protected.Use(authMiddleware)
	{
		protected.GET("/me", authHandler.Me)

		// --- Training plan ---
		planGroup := protected.Group("/plan")
		{
			planGroup.GET("", trackerHandler.GetPlan)
			planGroup.POST("/generate", trackerHandler.GeneratePlan)
			planGroup.GET("/today", trackerHandler.Today)
			planGroup.GET("/analysis", trackerHandler.ProgressAnalysis)
			planGroup.GET("/motivation", trackerHandler.Motivation)
			planGroup.POST("/tasks/toggle", trackerHandler.ToggleTask)
			planGroup.PUT("/current-week", trackerHandler.SetCurrentWeek)
			planGroup.GET("/archives", trackerHandler.ListArchives)
			planGroup.GET("/archives/:planId", trackerHandler.GetArchive)
		}

		// --- Progress logging ---
		protected.POST("/workouts/complete", trackerHandler.CompleteWorkout)
		protected.POST("/hydration", trackerHandler.UpdateHydration)
		protected.POST("/meals/log", trackerHandler.LogMeal)
		protected.POST("/weight", trackerHandler.AddWeight)

		// --- Libraries ---
		libraryGroup := protected.Group("/library")
		{
			libraryGroup.GET("/meals", trackerHandler.GetMealLibrary)
			libraryGroup.GET("/workouts", trackerHandler.GetWorkoutLibrary)
			libraryGroup.POST("/workouts", trackerHandler.AddManualWorkout)
			libraryGroup.POST("/meals/generate", trackerHandler.GenerateMeals)
			libraryGroup.POST("/workouts/generate", trackerHandler.GenerateWorkout)
			libraryGroup.DELETE("/:domain/:source/:id", trackerHandler.RemoveLibraryEntry)
		}

		protected.PATCH("/profile", trackerHandler.UpdateProfile)
		protected.POST("/reset", trackerHandler.ResetData)
		protected.GET("/events", trackerHandler.Events)
	}
}
