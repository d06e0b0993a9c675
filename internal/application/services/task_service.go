package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/taskmaster/taskhub/internal/domain/entities"
	"github.com/taskmaster/taskhub/internal/infrastructure/logger"
	"github.com/taskmaster/taskhub/internal/infrastructure/metrics"
	"github.com/taskmaster/taskhub/internal/ports"
)

// Pagination limits for the admin listing
const (
	DefaultPage  = 1
	DefaultLimit = 5
	MaxLimit     = 50
)

// TaskService handles task-related operations
type TaskService struct {
	taskRepo  ports.TaskRepository
	tx        ports.Transactor
	publisher ports.EventPublisher
	metrics   *metrics.Metrics
	logger    *logger.Logger

	// Now is the clock used for timestamps and overdue computation.
	Now func() time.Time
}

// NewTaskService creates a new task service
func NewTaskService(taskRepo ports.TaskRepository, tx ports.Transactor, publisher ports.EventPublisher, m *metrics.Metrics, logger *logger.Logger) *TaskService {
	return &TaskService{
		taskRepo:  taskRepo,
		tx:        tx,
		publisher: publisher,
		metrics:   m,
		logger:    logger.WithComponent("task_service"),
		Now:       time.Now,
	}
}

// CreateTask creates a new task owned by and assigned to the actor
func (s *TaskService) CreateTask(ctx context.Context, actor entities.Actor, req ports.CreateTaskRequest) (_ *entities.TaskView, err error) {
	defer func() { s.metrics.ObserveTaskOperation("create", err) }()

	title, err := entities.NormalizeTitle("title", req.Title)
	if err != nil {
		return nil, err
	}

	priority := entities.PriorityMedium
	if req.Priority != nil {
		if priority, err = entities.ParsePriority(*req.Priority); err != nil {
			return nil, err
		}
	}

	var deadline *time.Time
	if req.Deadline != nil && strings.TrimSpace(*req.Deadline) != "" {
		d, err := entities.ParseDeadline(*req.Deadline)
		if err != nil {
			return nil, err
		}
		deadline = &d
	}

	description := ""
	if req.Description != nil {
		description = strings.TrimSpace(*req.Description)
	}

	now := s.Now()
	task := &entities.Task{
		ID:          uuid.New(),
		Title:       title,
		Description: description,
		Status:      entities.TaskStatusTodo,
		Priority:    priority,
		Deadline:    deadline,
		CreatedBy:   actor.ID,
		AssignedTo:  actor.ID,
		Version:     1,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	task.Log(entities.ActivityCreated, actor.ID, "", title, now)

	if err := s.taskRepo.Create(ctx, task); err != nil {
		return nil, fmt.Errorf("failed to create task: %w", err)
	}

	view := entities.NewTaskView(task, now)
	s.emit(ctx, ports.EventTaskCreated, actor.ID, view)

	s.logger.LogUserAction(actor.ID.String(), "task.create", map[string]interface{}{"task_id": task.ID.String()})

	return &view, nil
}

// GetTask retrieves a task visible to the actor
func (s *TaskService) GetTask(ctx context.Context, actor entities.Actor, taskID string) (*entities.TaskView, error) {
	task, err := s.loadForActor(ctx, actor, taskID)
	if err != nil {
		return nil, err
	}

	view := entities.NewTaskView(task, s.Now())
	return &view, nil
}

// UpdateTask applies the fields present in req. Nothing is written unless every provided value is valid.
func (s *TaskService) UpdateTask(ctx context.Context, actor entities.Actor, taskID string, req ports.UpdateTaskRequest) (_ *entities.TaskView, err error) {
	defer func() { s.metrics.ObserveTaskOperation("update", err) }()

	task, err := s.loadForActor(ctx, actor, taskID)
	if err != nil {
		return nil, err
	}

	var (
		title    string
		status   entities.TaskStatus
		priority entities.Priority
		deadline time.Time
	)
	if req.Title != nil {
		if title, err = entities.NormalizeTitle("title", *req.Title); err != nil {
			return nil, err
		}
	}
	if req.Status != nil {
		if status, err = entities.ParseTaskStatus(*req.Status); err != nil {
			return nil, err
		}
	}
	if req.Priority != nil {
		if priority, err = entities.ParsePriority(*req.Priority); err != nil {
			return nil, err
		}
	}
	// A blank deadline means "not provided", as on create.
	setDeadline := req.Deadline != nil && strings.TrimSpace(*req.Deadline) != ""
	if setDeadline {
		if deadline, err = entities.ParseDeadline(*req.Deadline); err != nil {
			return nil, err
		}
	}
	if req.Version != nil && *req.Version != task.Version {
		return nil, entities.ErrVersionConflict
	}

	now := s.Now()
	edited := false

	if req.Title != nil && title != task.Title {
		task.Title = title
		edited = true
	}
	if req.Description != nil {
		description := strings.TrimSpace(*req.Description)
		if description != task.Description {
			task.Description = description
			edited = true
		}
	}
	if req.Status != nil && status != task.Status {
		task.Log(entities.ActivityStatusChanged, actor.ID, string(task.Status), string(status), now)
		task.Status = status
	}
	if req.Priority != nil && priority != task.Priority {
		task.Log(entities.ActivityPriorityChanged, actor.ID, string(task.Priority), string(priority), now)
		task.Priority = priority
	}
	if setDeadline {
		old := ""
		if task.Deadline != nil {
			old = task.Deadline.Format(time.RFC3339)
		}
		if task.Deadline == nil || !task.Deadline.Equal(deadline) {
			task.Log(entities.ActivityDeadlineChanged, actor.ID, old, deadline.Format(time.RFC3339), now)
			task.Deadline = &deadline
		}
	}
	if edited {
		task.Log(entities.ActivityUpdated, actor.ID, "", "", now)
	}

	task.UpdatedAt = now
	if err := s.taskRepo.Update(ctx, task, req.Version != nil); err != nil {
		return nil, wrapRepoError("failed to update task", err)
	}

	view := entities.NewTaskView(task, now)
	s.emit(ctx, ports.EventTaskUpdated, task.AssignedTo, view)

	s.logger.LogUserAction(actor.ID.String(), "task.update", map[string]interface{}{"task_id": task.ID.String()})

	return &view, nil
}

// DeleteTask permanently removes a task
func (s *TaskService) DeleteTask(ctx context.Context, actor entities.Actor, taskID string) (err error) {
	defer func() { s.metrics.ObserveTaskOperation("delete", err) }()

	task, err := s.loadForActor(ctx, actor, taskID)
	if err != nil {
		return err
	}

	if err := s.taskRepo.Delete(ctx, task.ID); err != nil {
		return wrapRepoError("failed to delete task", err)
	}

	s.emit(ctx, ports.EventTaskDeleted, task.AssignedTo, task.ID.String())

	s.logger.LogUserAction(actor.ID.String(), "task.delete", map[string]interface{}{"task_id": task.ID.String()})

	return nil
}

// ListMyTasks returns every task assigned to the actor, newest first
func (s *TaskService) ListMyTasks(ctx context.Context, actor entities.Actor) ([]entities.TaskView, error) {
	tasks, err := s.taskRepo.List(ctx, ports.TaskFilter{AssignedTo: &actor.ID})
	if err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}

	return s.views(tasks), nil
}

// ListAllTasks returns one page of all tasks for administrators
func (s *TaskService) ListAllTasks(ctx context.Context, actor entities.Actor, query ports.ListTasksQuery) (*ports.TaskPage, error) {
	if !actor.IsAdmin() {
		return nil, entities.ErrAdminOnly
	}

	page, limit := normalizePage(query.Page, query.Limit)
	filter := ports.TaskFilter{
		Search: strings.TrimSpace(query.Search),
		Limit:  limit,
		Offset: (page - 1) * limit,
	}
	// Unknown enum values are ignored, not rejected.
	if status := entities.TaskStatus(query.Status); status.IsValid() {
		filter.Status = &status
	}
	if priority := entities.Priority(query.Priority); priority.IsValid() {
		filter.Priority = &priority
	}

	var (
		tasks []*entities.Task
		total int64
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		tasks, err = s.taskRepo.List(gctx, filter)
		return err
	})
	g.Go(func() error {
		var err error
		countFilter := filter
		countFilter.Limit, countFilter.Offset = 0, 0
		total, err = s.taskRepo.Count(gctx, countFilter)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}

	data := s.views(tasks)
	return &ports.TaskPage{
		Total: total,
		Page:  page,
		Pages: int((total + int64(limit) - 1) / int64(limit)),
		Count: len(data),
		Data:  data,
	}, nil
}

// AssignTask reassigns a task inside a single transaction. The task row and the target user row
// stay locked until commit, so a concurrent delete of either makes the whole call fail.
func (s *TaskService) AssignTask(ctx context.Context, actor entities.Actor, taskID, userID string) (_ *entities.TaskView, err error) {
	defer func() { s.metrics.ObserveTaskOperation("assign", err) }()

	if !actor.IsAdmin() {
		return nil, entities.ErrAdminOnly
	}

	tid, err := entities.ParseID("task id", taskID)
	if err != nil {
		return nil, err
	}
	uid, err := entities.ParseID("user id", userID)
	if err != nil {
		return nil, err
	}

	now := s.Now()
	var assigned *entities.Task

	err = s.tx.WithinTx(ctx, func(ctx context.Context, scope ports.AssignmentScope) error {
		task, err := scope.LockTask(ctx, tid)
		if err != nil {
			return err
		}

		user, err := scope.LockUser(ctx, uid)
		if err != nil {
			return err
		}

		task.AssignTo(user.ID, actor.ID, now)
		task.UpdatedAt = now
		if err := scope.SaveAssignment(ctx, task); err != nil {
			return err
		}

		assigned = task
		return nil
	})
	if err != nil {
		if entities.KindOf(err) == entities.KindNotFound {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %w", entities.ErrAssignmentFailed, err)
	}

	// The locked rows carry no creator or assignee summaries.
	if joined, err := s.taskRepo.GetByID(ctx, tid); err == nil {
		assigned = joined
	} else {
		s.logger.WithError(err).Warnw("Failed to reload assigned task", "task_id", tid.String())
	}

	view := entities.NewTaskView(assigned, now)
	s.emit(ctx, ports.EventTaskUpdated, uid, view)

	s.logger.LogUserAction(actor.ID.String(), "task.assign", map[string]interface{}{
		"task_id":     tid.String(),
		"assignee_id": uid.String(),
	})

	return &view, nil
}

// AddComment appends a comment authored by the actor
func (s *TaskService) AddComment(ctx context.Context, actor entities.Actor, taskID string, req ports.AddCommentRequest) (*entities.TaskView, error) {
	text := strings.TrimSpace(req.Text)
	if text == "" {
		return nil, entities.NewValidationError("comment text is required", "text is required")
	}
	if len([]rune(text)) > entities.MaxCommentLength {
		return nil, entities.NewValidationError("comment text is too long", fmt.Sprintf("text must be at most %d characters", entities.MaxCommentLength))
	}

	return s.mutate(ctx, actor, taskID, "task.comment", func(task *entities.Task, now time.Time) error {
		task.Comments = append(task.Comments, entities.Comment{Author: actor.ID, Text: text, CreatedAt: now})
		task.Log(entities.ActivityCommented, actor.ID, "", text, now)
		return nil
	})
}

// AddSubTask appends an unfinished sub-task
func (s *TaskService) AddSubTask(ctx context.Context, actor entities.Actor, taskID string, req ports.AddSubTaskRequest) (*entities.TaskView, error) {
	title, err := entities.NormalizeTitle("subtask title", req.Title)
	if err != nil {
		return nil, err
	}

	return s.mutate(ctx, actor, taskID, "task.subtask_add", func(task *entities.Task, now time.Time) error {
		task.SubTasks = append(task.SubTasks, entities.SubTask{Title: title})
		task.Log(entities.ActivitySubTaskAdded, actor.ID, "", title, now)
		return nil
	})
}

// UpdateSubTask edits the sub-task at index
func (s *TaskService) UpdateSubTask(ctx context.Context, actor entities.Actor, taskID string, index int, req ports.UpdateSubTaskRequest) (*entities.TaskView, error) {
	var title string
	if req.Title != nil {
		var err error
		if title, err = entities.NormalizeTitle("subtask title", *req.Title); err != nil {
			return nil, err
		}
	}

	return s.mutate(ctx, actor, taskID, "task.subtask_update", func(task *entities.Task, now time.Time) error {
		if index < 0 || index >= len(task.SubTasks) {
			return entities.ErrSubTaskNotFound
		}

		sub := &task.SubTasks[index]
		old := describeSubTask(*sub)
		if req.Title != nil {
			sub.Title = title
		}
		if req.Completed != nil {
			sub.Completed = *req.Completed
		}
		task.Log(entities.ActivitySubTaskUpdated, actor.ID, old, describeSubTask(*sub), now)
		return nil
	})
}

// mutate loads a task the actor may modify, applies fn and persists the result.
func (s *TaskService) mutate(ctx context.Context, actor entities.Actor, taskID, action string, fn func(task *entities.Task, now time.Time) error) (*entities.TaskView, error) {
	task, err := s.loadForActor(ctx, actor, taskID)
	if err != nil {
		return nil, err
	}

	now := s.Now()
	if err := fn(task, now); err != nil {
		return nil, err
	}

	task.UpdatedAt = now
	if err := s.taskRepo.Update(ctx, task, false); err != nil {
		return nil, wrapRepoError("failed to update task", err)
	}

	view := entities.NewTaskView(task, now)
	s.emit(ctx, ports.EventTaskUpdated, task.AssignedTo, view)

	s.logger.LogUserAction(actor.ID.String(), action, map[string]interface{}{"task_id": task.ID.String()})

	return &view, nil
}

// loadForActor resolves taskID and applies the owner-or-admin check.
func (s *TaskService) loadForActor(ctx context.Context, actor entities.Actor, taskID string) (*entities.Task, error) {
	id, err := entities.ParseID("task id", taskID)
	if err != nil {
		return nil, err
	}

	task, err := s.taskRepo.GetByID(ctx, id)
	if err != nil {
		return nil, wrapRepoError("failed to get task", err)
	}

	if !task.CanBeModifiedBy(actor) {
		s.logger.Warnw("Task access denied",
			"task_id", task.ID.String(),
			"user_id", actor.ID.String(),
			"role", actor.Role,
		)
		return nil, entities.ErrNotAuthorized
	}

	return task, nil
}

func (s *TaskService) views(tasks []*entities.Task) []entities.TaskView {
	now := s.Now()
	views := make([]entities.TaskView, 0, len(tasks))
	for _, t := range tasks {
		views = append(views, entities.NewTaskView(t, now))
	}
	return views
}

// emit publishes without ever failing the caller.
func (s *TaskService) emit(ctx context.Context, eventType ports.EventType, userID uuid.UUID, data interface{}) {
	event := ports.TaskEvent{
		Type:       eventType,
		UserID:     userID,
		Data:       data,
		OccurredAt: s.Now(),
	}

	if err := s.publisher.Publish(ctx, event); err != nil {
		s.logger.WithError(err).Warnw("Failed to publish task event",
			"event", eventType,
			"user_id", userID.String(),
		)
	}
}

func normalizePage(page, limit int) (int, int) {
	if page < 1 {
		page = DefaultPage
	}
	if limit < 1 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}
	return page, limit
}

func describeSubTask(st entities.SubTask) string {
	return fmt.Sprintf("%s (completed=%t)", st.Title, st.Completed)
}

// wrapRepoError keeps domain errors untouched so callers can classify them.
func wrapRepoError(msg string, err error) error {
	if entities.KindOf(err) != entities.KindInternal {
		return err
	}
	return fmt.Errorf("%s: %w", msg, err)
}
