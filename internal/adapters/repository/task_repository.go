package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/taskmaster/taskhub/internal/domain/entities"
	"github.com/taskmaster/taskhub/internal/ports"
)

const taskColumns = `t.id, t.title, t.description, t.status, t.priority, t.deadline, t.created_by,
		t.assigned_to, t.sub_tasks, t.comments, t.activity_logs, t.is_deleted, t.version,
		t.created_at, t.updated_at`

const taskSelect = `
		SELECT ` + taskColumns + `,
			c.name AS creator_name, c.email AS creator_email,
			a.name AS assignee_name, a.email AS assignee_email
		FROM tasks t
		LEFT JOIN users c ON c.id = t.created_by
		LEFT JOIN users a ON a.id = t.assigned_to`

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// taskRow is a task joined with the names of its creator and assignee.
type taskRow struct {
	entities.Task
	CreatorName   sql.NullString `db:"creator_name"`
	CreatorEmail  sql.NullString `db:"creator_email"`
	AssigneeName  sql.NullString `db:"assignee_name"`
	AssigneeEmail sql.NullString `db:"assignee_email"`
}

func (r *taskRow) toEntity() *entities.Task {
	t := r.Task
	if r.CreatorName.Valid {
		t.Creator = &entities.UserSummary{ID: t.CreatedBy, Name: r.CreatorName.String, Email: r.CreatorEmail.String}
	}
	if r.AssigneeName.Valid {
		t.Assignee = &entities.UserSummary{ID: t.AssignedTo, Name: r.AssigneeName.String, Email: r.AssigneeEmail.String}
	}
	return &t
}

// TaskRepositoryImpl implements the TaskRepository interface
type TaskRepositoryImpl struct {
	db *sqlx.DB
}

// NewTaskRepository creates a new task repository
func NewTaskRepository(db *sqlx.DB) ports.TaskRepository {
	return &TaskRepositoryImpl{db: db}
}

func (r *TaskRepositoryImpl) Create(ctx context.Context, task *entities.Task) error {
	query := `
		INSERT INTO tasks (id, title, description, status, priority, deadline, created_by, assigned_to,
			sub_tasks, comments, activity_logs, is_deleted, version, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`

	if task.ID == uuid.Nil {
		task.ID = uuid.New()
	}
	if task.Version == 0 {
		task.Version = 1
	}

	_, err := r.db.ExecContext(ctx, query,
		task.ID, task.Title, task.Description, task.Status, task.Priority, task.Deadline,
		task.CreatedBy, task.AssignedTo, task.SubTasks, task.Comments, task.ActivityLogs,
		task.IsDeleted, task.Version, task.CreatedAt, task.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("create task: %w", err)
	}

	return nil
}

func (r *TaskRepositoryImpl) GetByID(ctx context.Context, id uuid.UUID) (*entities.Task, error) {
	query := taskSelect + ` WHERE t.id = $1 AND t.is_deleted = false`

	var row taskRow
	if err := r.db.GetContext(ctx, &row, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, entities.ErrTaskNotFound
		}
		return nil, fmt.Errorf("get task by id: %w", err)
	}

	return row.toEntity(), nil
}

func (r *TaskRepositoryImpl) Update(ctx context.Context, task *entities.Task, checkVersion bool) error {
	query := `
		UPDATE tasks
		SET title = $2, description = $3, status = $4, priority = $5, deadline = $6, assigned_to = $7,
			sub_tasks = $8, comments = $9, activity_logs = $10, updated_at = $11, version = version + 1
		WHERE id = $1 AND is_deleted = false`
	args := []interface{}{
		task.ID, task.Title, task.Description, task.Status, task.Priority, task.Deadline, task.AssignedTo,
		task.SubTasks, task.Comments, task.ActivityLogs, task.UpdatedAt,
	}
	if checkVersion {
		query += ` AND version = $12`
		args = append(args, task.Version)
	}
	query += ` RETURNING version`

	var version int
	err := r.db.QueryRowxContext(ctx, query, args...).Scan(&version)
	if err == nil {
		task.Version = version
		return nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("update task: %w", err)
	}
	if !checkVersion {
		return entities.ErrTaskNotFound
	}

	// Distinguish a stale version from a missing row.
	var exists bool
	if err := r.db.GetContext(ctx, &exists, `SELECT EXISTS (SELECT 1 FROM tasks WHERE id = $1 AND is_deleted = false)`, task.ID); err != nil {
		return fmt.Errorf("check task existence: %w", err)
	}
	if exists {
		return entities.ErrVersionConflict
	}
	return entities.ErrTaskNotFound
}

func (r *TaskRepositoryImpl) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM tasks WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete task: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return entities.ErrTaskNotFound
	}

	return nil
}

func (r *TaskRepositoryImpl) List(ctx context.Context, filter ports.TaskFilter) ([]*entities.Task, error) {
	whereClause, args := buildTaskWhere(filter)

	query := taskSelect + " " + whereClause + " ORDER BY t.created_at DESC"
	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d OFFSET $%d", len(args)+1, len(args)+2)
		args = append(args, filter.Limit, filter.Offset)
	}

	var rows []taskRow
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}

	tasks := make([]*entities.Task, 0, len(rows))
	for i := range rows {
		tasks = append(tasks, rows[i].toEntity())
	}
	return tasks, nil
}

func (r *TaskRepositoryImpl) Count(ctx context.Context, filter ports.TaskFilter) (int64, error) {
	whereClause, args := buildTaskWhere(filter)

	var count int64
	if err := r.db.GetContext(ctx, &count, "SELECT COUNT(*) FROM tasks t "+whereClause, args...); err != nil {
		return 0, fmt.Errorf("count tasks: %w", err)
	}

	return count, nil
}

type groupCount struct {
	Key   string `db:"key"`
	Count int64  `db:"count"`
}

func (r *TaskRepositoryImpl) countBy(ctx context.Context, column string) ([]groupCount, error) {
	query := fmt.Sprintf(`SELECT %s AS key, COUNT(*) AS count FROM tasks WHERE is_deleted = false GROUP BY %s`, column, column)

	var groups []groupCount
	if err := r.db.SelectContext(ctx, &groups, query); err != nil {
		return nil, fmt.Errorf("count tasks by %s: %w", column, err)
	}
	return groups, nil
}

func (r *TaskRepositoryImpl) CountByStatus(ctx context.Context) (map[entities.TaskStatus]int64, error) {
	groups, err := r.countBy(ctx, "status")
	if err != nil {
		return nil, err
	}

	out := make(map[entities.TaskStatus]int64, len(groups))
	for _, g := range groups {
		out[entities.TaskStatus(g.Key)] = g.Count
	}
	return out, nil
}

func (r *TaskRepositoryImpl) CountByPriority(ctx context.Context) (map[entities.Priority]int64, error) {
	groups, err := r.countBy(ctx, "priority")
	if err != nil {
		return nil, err
	}

	out := make(map[entities.Priority]int64, len(groups))
	for _, g := range groups {
		out[entities.Priority(g.Key)] = g.Count
	}
	return out, nil
}

// buildTaskWhere turns a filter into a WHERE clause over the "t" alias. Paging is left to the caller.
func buildTaskWhere(filter ports.TaskFilter) (string, []interface{}) {
	conditions := []string{"t.is_deleted = false"}
	var args []interface{}
	argIndex := 1

	if filter.AssignedTo != nil {
		conditions = append(conditions, fmt.Sprintf("t.assigned_to = $%d", argIndex))
		args = append(args, *filter.AssignedTo)
		argIndex++
	}

	if filter.Status != nil {
		conditions = append(conditions, fmt.Sprintf("t.status = $%d", argIndex))
		args = append(args, *filter.Status)
		argIndex++
	}

	if filter.ExcludeStatus != nil {
		conditions = append(conditions, fmt.Sprintf("t.status <> $%d", argIndex))
		args = append(args, *filter.ExcludeStatus)
		argIndex++
	}

	if filter.Priority != nil {
		conditions = append(conditions, fmt.Sprintf("t.priority = $%d", argIndex))
		args = append(args, *filter.Priority)
		argIndex++
	}

	if filter.DeadlineBefore != nil {
		conditions = append(conditions, fmt.Sprintf("t.deadline < $%d", argIndex))
		args = append(args, *filter.DeadlineBefore)
		argIndex++
	}

	if filter.Search != "" {
		conditions = append(conditions, fmt.Sprintf("t.title ILIKE $%d", argIndex))
		args = append(args, "%"+likeEscaper.Replace(filter.Search)+"%")
	}

	return "WHERE " + strings.Join(conditions, " AND "), args
}
