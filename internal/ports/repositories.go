package ports

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/taskmaster/taskhub/internal/domain/entities"
)

// UserRepository defines the interface for user data operations
type UserRepository interface {
	Create(ctx context.Context, user *entities.User) error
	GetByID(ctx context.Context, id uuid.UUID) (*entities.User, error)
	GetByEmail(ctx context.Context, email string) (*entities.User, error)
}

// TaskRepository defines the interface for task data operations.
// Every read excludes rows flagged is_deleted.
type TaskRepository interface {
	Create(ctx context.Context, task *entities.Task) error
	// GetByID returns the task joined with creator and assignee summaries.
	GetByID(ctx context.Context, id uuid.UUID) (*entities.Task, error)
	// Update persists task and bumps its version. With checkVersion the write only applies
	// when the stored version still equals task.Version.
	Update(ctx context.Context, task *entities.Task, checkVersion bool) error
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, filter TaskFilter) ([]*entities.Task, error)
	Count(ctx context.Context, filter TaskFilter) (int64, error)
	CountByStatus(ctx context.Context) (map[entities.TaskStatus]int64, error)
	CountByPriority(ctx context.Context) (map[entities.Priority]int64, error)
}

// AssignmentScope is the view of the store available inside an assignment transaction.
// Rows read through it stay locked until the transaction ends.
type AssignmentScope interface {
	LockTask(ctx context.Context, id uuid.UUID) (*entities.Task, error)
	LockUser(ctx context.Context, id uuid.UUID) (*entities.User, error)
	SaveAssignment(ctx context.Context, task *entities.Task) error
}

// Transactor runs fn atomically: it commits when fn returns nil and rolls back otherwise.
type Transactor interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context, scope AssignmentScope) error) error
}

// Filter types for repository queries
type TaskFilter struct {
	AssignedTo     *uuid.UUID
	Status         *entities.TaskStatus
	ExcludeStatus  *entities.TaskStatus
	Priority       *entities.Priority
	DeadlineBefore *time.Time
	Search         string
	Limit          int
	Offset         int
}
