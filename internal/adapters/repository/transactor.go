package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/taskmaster/taskhub/internal/domain/entities"
	"github.com/taskmaster/taskhub/internal/ports"
)

// Transactor runs assignment work inside a database transaction.
type Transactor struct {
	db *sqlx.DB
}

// NewTransactor creates a new transactor
func NewTransactor(db *sqlx.DB) *Transactor {
	return &Transactor{db: db}
}

// WithinTx executes fn within a database transaction
func (t *Transactor) WithinTx(ctx context.Context, fn func(ctx context.Context, scope ports.AssignmentScope) error) error {
	tx, err := t.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(ctx, &txScope{tx: tx}); err != nil {
		if rollbackErr := tx.Rollback(); rollbackErr != nil {
			return fmt.Errorf("failed to rollback transaction: %v (original error: %w)", rollbackErr, err)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

type txScope struct {
	tx *sqlx.Tx
}

// LockTask takes a row lock that blocks concurrent writers and deleters until commit.
func (s *txScope) LockTask(ctx context.Context, id uuid.UUID) (*entities.Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks t WHERE t.id = $1 AND t.is_deleted = false FOR UPDATE`

	var task entities.Task
	if err := s.tx.GetContext(ctx, &task, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, entities.ErrTaskNotFound
		}
		return nil, fmt.Errorf("lock task: %w", err)
	}

	return &task, nil
}

// LockUser takes a shared lock so the user cannot be deleted before the assignment commits.
func (s *txScope) LockUser(ctx context.Context, id uuid.UUID) (*entities.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1 AND deleted_at IS NULL FOR SHARE`

	var user entities.User
	if err := s.tx.GetContext(ctx, &user, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, entities.ErrUserNotFound
		}
		return nil, fmt.Errorf("lock user: %w", err)
	}

	return &user, nil
}

func (s *txScope) SaveAssignment(ctx context.Context, task *entities.Task) error {
	query := `
		UPDATE tasks
		SET assigned_to = $2, activity_logs = $3, updated_at = $4, version = version + 1
		WHERE id = $1 AND is_deleted = false
		RETURNING version`

	var version int
	err := s.tx.QueryRowxContext(ctx, query, task.ID, task.AssignedTo, task.ActivityLogs, task.UpdatedAt).Scan(&version)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return entities.ErrTaskNotFound
		}
		return fmt.Errorf("save assignment: %w", err)
	}

	task.Version = version
	return nil
}
