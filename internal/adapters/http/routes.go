package http

import (
	"github.com/labstack/echo/v4"

	"github.com/taskmaster/taskhub/internal/infrastructure/logger"
	"github.com/taskmaster/taskhub/internal/ports"
)

// Handlers groups everything RegisterRoutes mounts.
type Handlers struct {
	Auth *AuthHandler
	Task *TaskHandler
	WS   *WSHandler // optional
}

// RegisterRoutes mounts the API under v1.
func RegisterRoutes(v1 *echo.Group, authService ports.AuthService, h Handlers, log *logger.Logger) {
	authenticated := Authenticate(authService, log)
	adminOnly := RequireAdmin(log)

	// Auth routes (public)
	authGroup := v1.Group("/auth")
	authGroup.POST("/register", h.Auth.Register)
	authGroup.POST("/login", h.Auth.Login)

	// Task routes (authenticated). Static segments are registered before /:id.
	taskGroup := v1.Group("/tasks", authenticated)
	taskGroup.POST("", h.Task.CreateTask)
	taskGroup.GET("/my", h.Task.ListMyTasks)
	taskGroup.GET("", h.Task.ListAllTasks, adminOnly)
	taskGroup.GET("/stats", h.Task.GetStats, adminOnly)
	taskGroup.GET("/:id", h.Task.GetTask)
	taskGroup.PUT("/:id", h.Task.UpdateTask)
	taskGroup.DELETE("/:id", h.Task.DeleteTask)
	taskGroup.PATCH("/:id/assign", h.Task.AssignTask, adminOnly)
	taskGroup.POST("/:id/comments", h.Task.AddComment)
	taskGroup.POST("/:id/subtasks", h.Task.AddSubTask)
	taskGroup.PATCH("/:id/subtasks/:index", h.Task.UpdateSubTask)

	if h.WS != nil {
		v1.GET("/ws", h.WS.Serve, authenticated)
	}
}
