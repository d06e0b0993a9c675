package http

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/taskmaster/taskhub/internal/domain/entities"
	"github.com/taskmaster/taskhub/internal/infrastructure/logger"
	"github.com/taskmaster/taskhub/internal/ports"
)

// TaskHandler handles task-related requests
type TaskHandler struct {
	taskService ports.TaskService
	logger      *logger.Logger
}

// NewTaskHandler creates a new task handler
func NewTaskHandler(taskService ports.TaskService, logger *logger.Logger) *TaskHandler {
	return &TaskHandler{
		taskService: taskService,
		logger:      logger,
	}
}

// CreateTask creates a task assigned to the caller
//
// @Summary Create task
// @Tags Tasks
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param body body ports.CreateTaskRequest true "Task"
// @Success 201 {object} Response
// @Failure 400 {object} Response
// @Router /tasks [post]
func (h *TaskHandler) CreateTask(c echo.Context) error {
	var req ports.CreateTaskRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	view, err := h.taskService.CreateTask(c.Request().Context(), mustActor(c), req)
	if err != nil {
		return err
	}

	return success(c, http.StatusCreated, view)
}

// ListMyTasks lists the caller's tasks
//
// @Summary List my tasks
// @Tags Tasks
// @Security BearerAuth
// @Produce json
// @Success 200 {object} Response
// @Router /tasks/my [get]
func (h *TaskHandler) ListMyTasks(c echo.Context) error {
	tasks, err := h.taskService.ListMyTasks(c.Request().Context(), mustActor(c))
	if err != nil {
		return err
	}

	return success(c, http.StatusOK, tasks)
}

// GetTask returns one task
//
// @Summary Get task
// @Tags Tasks
// @Security BearerAuth
// @Produce json
// @Param id path string true "Task ID"
// @Success 200 {object} Response
// @Failure 403 {object} Response
// @Failure 404 {object} Response
// @Router /tasks/{id} [get]
func (h *TaskHandler) GetTask(c echo.Context) error {
	view, err := h.taskService.GetTask(c.Request().Context(), mustActor(c), c.Param("id"))
	if err != nil {
		return err
	}

	return success(c, http.StatusOK, view)
}

// UpdateTask applies a partial update
//
// @Summary Update task
// @Tags Tasks
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param id path string true "Task ID"
// @Param body body ports.UpdateTaskRequest true "Fields to change"
// @Success 200 {object} Response
// @Failure 400 {object} Response
// @Failure 403 {object} Response
// @Failure 404 {object} Response
// @Failure 409 {object} Response
// @Router /tasks/{id} [put]
func (h *TaskHandler) UpdateTask(c echo.Context) error {
	var req ports.UpdateTaskRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	view, err := h.taskService.UpdateTask(c.Request().Context(), mustActor(c), c.Param("id"), req)
	if err != nil {
		return err
	}

	return success(c, http.StatusOK, view)
}

// DeleteTask permanently deletes a task
//
// @Summary Delete task
// @Tags Tasks
// @Security BearerAuth
// @Produce json
// @Param id path string true "Task ID"
// @Success 200 {object} Response
// @Failure 403 {object} Response
// @Failure 404 {object} Response
// @Router /tasks/{id} [delete]
func (h *TaskHandler) DeleteTask(c echo.Context) error {
	if err := h.taskService.DeleteTask(c.Request().Context(), mustActor(c), c.Param("id")); err != nil {
		return err
	}

	return message(c, http.StatusOK, "Task deleted successfully")
}

// AddComment appends a comment
//
// @Summary Add comment
// @Tags Tasks
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param id path string true "Task ID"
// @Param body body ports.AddCommentRequest true "Comment"
// @Success 201 {object} Response
// @Router /tasks/{id}/comments [post]
func (h *TaskHandler) AddComment(c echo.Context) error {
	var req ports.AddCommentRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	view, err := h.taskService.AddComment(c.Request().Context(), mustActor(c), c.Param("id"), req)
	if err != nil {
		return err
	}

	return success(c, http.StatusCreated, view)
}

// AddSubTask appends a sub-task
//
// @Summary Add sub-task
// @Tags Tasks
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param id path string true "Task ID"
// @Param body body ports.AddSubTaskRequest true "Sub-task"
// @Success 201 {object} Response
// @Router /tasks/{id}/subtasks [post]
func (h *TaskHandler) AddSubTask(c echo.Context) error {
	var req ports.AddSubTaskRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	view, err := h.taskService.AddSubTask(c.Request().Context(), mustActor(c), c.Param("id"), req)
	if err != nil {
		return err
	}

	return success(c, http.StatusCreated, view)
}

// UpdateSubTask edits a sub-task by position
//
// @Summary Update sub-task
// @Tags Tasks
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param id path string true "Task ID"
// @Param index path int true "Sub-task index"
// @Param body body ports.UpdateSubTaskRequest true "Fields to change"
// @Success 200 {object} Response
// @Router /tasks/{id}/subtasks/{index} [patch]
func (h *TaskHandler) UpdateSubTask(c echo.Context) error {
	index, err := strconv.Atoi(c.Param("index"))
	if err != nil {
		return entities.NewValidationError("invalid subtask index", "index must be a number")
	}

	var req ports.UpdateSubTaskRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	view, err := h.taskService.UpdateSubTask(c.Request().Context(), mustActor(c), c.Param("id"), index, req)
	if err != nil {
		return err
	}

	return success(c, http.StatusOK, view)
}

// ListAllTasks lists every task, paginated (admin)
//
// @Summary List all tasks
// @Tags Admin
// @Security BearerAuth
// @Produce json
// @Param status query string false "todo, in-progress or done"
// @Param priority query string false "low, medium or high"
// @Param search query string false "Case-insensitive title substring"
// @Param page query int false "Page, default 1"
// @Param limit query int false "Page size, default 5, max 50"
// @Success 200 {object} Response
// @Router /tasks [get]
func (h *TaskHandler) ListAllTasks(c echo.Context) error {
	query := ports.ListTasksQuery{
		Status:   c.QueryParam("status"),
		Priority: c.QueryParam("priority"),
		Search:   c.QueryParam("search"),
		Page:     lenientInt(c.QueryParam("page")),
		Limit:    lenientInt(c.QueryParam("limit")),
	}

	page, err := h.taskService.ListAllTasks(c.Request().Context(), mustActor(c), query)
	if err != nil {
		return err
	}

	return success(c, http.StatusOK, page)
}

// AssignTask reassigns a task (admin)
//
// @Summary Assign task
// @Tags Admin
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param id path string true "Task ID"
// @Param body body ports.AssignTaskRequest true "New assignee"
// @Success 200 {object} Response
// @Failure 404 {object} Response
// @Failure 500 {object} Response
// @Router /tasks/{id}/assign [patch]
func (h *TaskHandler) AssignTask(c echo.Context) error {
	var req ports.AssignTaskRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	view, err := h.taskService.AssignTask(c.Request().Context(), mustActor(c), c.Param("id"), req.UserID)
	if err != nil {
		return err
	}

	return success(c, http.StatusOK, view)
}

// GetStats returns task counters (admin)
//
// @Summary Task statistics
// @Tags Admin
// @Security BearerAuth
// @Produce json
// @Success 200 {object} Response
// @Router /tasks/stats [get]
func (h *TaskHandler) GetStats(c echo.Context) error {
	stats, err := h.taskService.GetStats(c.Request().Context(), mustActor(c))
	if err != nil {
		return err
	}

	return success(c, http.StatusOK, stats)
}

func bindAndValidate(c echo.Context, req interface{}) error {
	if err := c.Bind(req); err != nil {
		return errInvalidBody
	}
	return c.Validate(req)
}

// mustActor is only called behind Authenticate; the zero actor owns nothing and is not admin.
func mustActor(c echo.Context) entities.Actor {
	actor, _ := ActorFrom(c)
	return actor
}

// lenientInt treats anything unparsable as absent.
func lenientInt(s string) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0
	}
	return n
}
