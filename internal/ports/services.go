package ports

import (
	"context"

	"github.com/taskmaster/taskhub/internal/domain/entities"
)

// AuthService interface for authentication operations
type AuthService interface {
	Register(ctx context.Context, req RegisterRequest) (*AuthResponse, error)
	Login(ctx context.Context, req LoginRequest) (*AuthResponse, error)
	ValidateToken(tokenString string) (entities.Actor, error)
}

// TaskService interface for task management operations
type TaskService interface {
	CreateTask(ctx context.Context, actor entities.Actor, req CreateTaskRequest) (*entities.TaskView, error)
	GetTask(ctx context.Context, actor entities.Actor, taskID string) (*entities.TaskView, error)
	UpdateTask(ctx context.Context, actor entities.Actor, taskID string, req UpdateTaskRequest) (*entities.TaskView, error)
	DeleteTask(ctx context.Context, actor entities.Actor, taskID string) error
	ListMyTasks(ctx context.Context, actor entities.Actor) ([]entities.TaskView, error)
	ListAllTasks(ctx context.Context, actor entities.Actor, query ListTasksQuery) (*TaskPage, error)
	AssignTask(ctx context.Context, actor entities.Actor, taskID, userID string) (*entities.TaskView, error)
	GetStats(ctx context.Context, actor entities.Actor) (*TaskStats, error)
	AddComment(ctx context.Context, actor entities.Actor, taskID string, req AddCommentRequest) (*entities.TaskView, error)
	AddSubTask(ctx context.Context, actor entities.Actor, taskID string, req AddSubTaskRequest) (*entities.TaskView, error)
	UpdateSubTask(ctx context.Context, actor entities.Actor, taskID string, index int, req UpdateSubTaskRequest) (*entities.TaskView, error)
}

// Request/Response Types

// Auth related types
type RegisterRequest struct {
	Name     string `json:"name" validate:"required,max=100"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type AuthResponse struct {
	AccessToken string         `json:"access_token"`
	TokenType   string         `json:"token_type"`
	ExpiresIn   int64          `json:"expires_in"`
	User        *entities.User `json:"user"`
}

// Task related types
// Title and text bounds are checked by the service after trimming.
type CreateTaskRequest struct {
	Title       string  `json:"title" validate:"required" maxLength:"120"`
	Description *string `json:"description"`
	Priority    *string `json:"priority" validate:"omitempty,task_priority"`
	Deadline    *string `json:"deadline" validate:"omitempty,datestr"`
}

// UpdateTaskRequest uses pointers so that an absent field is distinguishable from an empty one.
type UpdateTaskRequest struct {
	Title       *string `json:"title" maxLength:"120"`
	Description *string `json:"description"`
	Status      *string `json:"status" validate:"omitempty,task_status"`
	Priority    *string `json:"priority" validate:"omitempty,task_priority"`
	Deadline    *string `json:"deadline" validate:"omitempty,datestr"`
	Version     *int    `json:"version" validate:"omitempty,min=1"`
}

type AssignTaskRequest struct {
	UserID string `json:"user_id" validate:"required"`
}

type AddCommentRequest struct {
	Text string `json:"text" validate:"required" maxLength:"1000"`
}

type AddSubTaskRequest struct {
	Title string `json:"title" validate:"required" maxLength:"120"`
}

type UpdateSubTaskRequest struct {
	Title     *string `json:"title" maxLength:"120"`
	Completed *bool   `json:"completed"`
}

// ListTasksQuery carries the admin listing filters. Status and Priority values outside their
// enums are ignored rather than rejected.
type ListTasksQuery struct {
	Status   string
	Priority string
	Search   string
	Page     int
	Limit    int
}

type TaskPage struct {
	Total int64               `json:"total"`
	Page  int                 `json:"page"`
	Pages int                 `json:"pages"`
	Count int                 `json:"count"`
	Data  []entities.TaskView `json:"data"`
}

type TaskStats struct {
	Total         int64                         `json:"total"`
	Completed     int64                         `json:"completed"`
	Pending       int64                         `json:"pending"`
	Overdue       int64                         `json:"overdue"`
	StatusCount   map[entities.TaskStatus]int64 `json:"status_count"`
	PriorityCount map[entities.Priority]int64   `json:"priority_count"`
}
