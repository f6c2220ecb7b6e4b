package router

import (
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"leadflow/internal/followup"
	"leadflow/internal/handler/api"
	"leadflow/internal/middleware"
	"leadflow/internal/repository"
)

// Setup configures all routes for the Echo server.
func Setup(
	e *echo.Echo,
	db *gorm.DB,
	followUps *followup.Service,
	logger *zap.Logger,
	apiKey string,
) {
	// Global middleware
	e.Use(echomw.Recover())
	e.Use(middleware.CORS())

	// Repositories
	repos := &api.Repos{
		User:     repository.NewUserRepository(db),
		Lead:     repository.NewLeadRepository(db),
		Task:     repository.NewTaskRepository(db),
		Activity: repository.NewActivityRepository(db),
		Schedule: repository.NewFollowUpScheduleRepository(db),
	}

	// Handlers
	leadHandler := api.NewLeadHandler(repos, followUps, logger)
	activityHandler := api.NewActivityHandler(repos, followUps, logger)
	taskHandler := api.NewTaskHandler(repos, logger)
	followUpHandler := api.NewFollowUpHandler(repos, followUps, logger)

	// API group with auth middleware
	apiGroup := e.Group("/api")
	apiGroup.Use(middleware.APIAuth(apiKey))

	apiGroup.GET("/leads", leadHandler.List)
	apiGroup.POST("/leads", leadHandler.Create)
	apiGroup.GET("/leads/:id", leadHandler.Get)
	apiGroup.PUT("/leads/:id/status", leadHandler.UpdateStatus)
	apiGroup.DELETE("/leads/:id", leadHandler.Delete)

	apiGroup.GET("/leads/:id/activities", activityHandler.ListByLead)
	apiGroup.POST("/activities", activityHandler.Create)

	apiGroup.GET("/leads/:id/tasks", taskHandler.ListByLead)
	apiGroup.PUT("/tasks/:id/complete", taskHandler.Complete)

	apiGroup.GET("/leads/:id/follow-ups", followUpHandler.ListActive)
	apiGroup.POST("/follow-ups/process", followUpHandler.Process)

	// Health check
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(200, map[string]string{"status": "ok"})
	})
}
