package entities

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Field limits
const (
	MaxTitleLength   = 120
	MaxCommentLength = 1000
)

// Enums and types
type UserRole string

const (
	UserRoleUser  UserRole = "user"
	UserRoleAdmin UserRole = "admin"
)

type TaskStatus string

const (
	TaskStatusTodo       TaskStatus = "todo"
	TaskStatusInProgress TaskStatus = "in-progress"
	TaskStatusDone       TaskStatus = "done"
)

// TaskStatuses lists every valid status in display order.
var TaskStatuses = []TaskStatus{TaskStatusTodo, TaskStatusInProgress, TaskStatusDone}

type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

// Priorities lists every valid priority in display order.
var Priorities = []Priority{PriorityLow, PriorityMedium, PriorityHigh}

type ActivityAction string

const (
	ActivityCreated         ActivityAction = "created"
	ActivityUpdated         ActivityAction = "updated"
	ActivityStatusChanged   ActivityAction = "status_changed"
	ActivityPriorityChanged ActivityAction = "priority_changed"
	ActivityDeadlineChanged ActivityAction = "deadline_changed"
	ActivityAssigned        ActivityAction = "assigned"
	ActivityCommented       ActivityAction = "commented"
	ActivitySubTaskAdded    ActivityAction = "subtask_added"
	ActivitySubTaskUpdated  ActivityAction = "subtask_updated"
)

// User represents a user in the system
type User struct {
	ID           uuid.UUID  `json:"id" db:"id"`
	Name         string     `json:"name" db:"name"`
	Email        string     `json:"email" db:"email"`
	PasswordHash string     `json:"-" db:"password_hash"`
	Role         UserRole   `json:"role" db:"role"`
	CreatedAt    time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at" db:"updated_at"`
	DeletedAt    *time.Time `json:"deleted_at,omitempty" db:"deleted_at"`
}

// UserSummary is the minimal identity joined onto task listings.
type UserSummary struct {
	ID    uuid.UUID `json:"id"`
	Name  string    `json:"name"`
	Email string    `json:"email"`
}

// Actor is the authenticated principal issuing a request.
type Actor struct {
	ID   uuid.UUID
	Role UserRole
}

func (a Actor) IsAdmin() bool {
	return a.Role == UserRoleAdmin
}

// SubTask is a checklist item owned by its parent task.
type SubTask struct {
	Title     string `json:"title"`
	Completed bool   `json:"completed"`
}

// Comment is a note left on a task.
type Comment struct {
	Author    uuid.UUID `json:"author"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
}

// ActivityLog is one append-only audit entry.
type ActivityLog struct {
	Action    ActivityAction `json:"action"`
	Actor     uuid.UUID      `json:"actor"`
	OldValue  string         `json:"old_value,omitempty"`
	NewValue  string         `json:"new_value,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

// SubTasks, Comments and ActivityLogs are stored as JSONB columns on the task row.
type SubTasks []SubTask
type Comments []Comment
type ActivityLogs []ActivityLog

// Task represents a task in the system
type Task struct {
	ID           uuid.UUID    `json:"id" db:"id"`
	Title        string       `json:"title" db:"title"`
	Description  string       `json:"description" db:"description"`
	Status       TaskStatus   `json:"status" db:"status"`
	Priority     Priority     `json:"priority" db:"priority"`
	Deadline     *time.Time   `json:"deadline" db:"deadline"`
	CreatedBy    uuid.UUID    `json:"created_by" db:"created_by"`
	AssignedTo   uuid.UUID    `json:"assigned_to" db:"assigned_to"`
	SubTasks     SubTasks     `json:"sub_tasks" db:"sub_tasks"`
	Comments     Comments     `json:"comments" db:"comments"`
	ActivityLogs ActivityLogs `json:"activity_logs" db:"activity_logs"`
	IsDeleted    bool         `json:"is_deleted" db:"is_deleted"`
	Version      int          `json:"version" db:"version"`
	CreatedAt    time.Time    `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time    `json:"updated_at" db:"updated_at"`

	// Populated by joined reads only.
	Creator  *UserSummary `json:"creator,omitempty" db:"-"`
	Assignee *UserSummary `json:"assignee,omitempty" db:"-"`
}

// Business logic methods for Task

// CanBeModifiedBy is the owner-or-admin predicate shared by every mutating operation.
func (t *Task) CanBeModifiedBy(actor Actor) bool {
	return t.AssignedTo == actor.ID || actor.IsAdmin()
}

func (t *Task) IsOverdue(now time.Time) bool {
	if t.Deadline == nil {
		return false
	}
	return t.Deadline.Before(now) && t.Status != TaskStatusDone
}

// Log appends an activity entry. Existing entries are never rewritten.
func (t *Task) Log(action ActivityAction, actor uuid.UUID, oldValue, newValue string, at time.Time) {
	t.ActivityLogs = append(t.ActivityLogs, ActivityLog{
		Action:    action,
		Actor:     actor,
		OldValue:  oldValue,
		NewValue:  newValue,
		CreatedAt: at,
	})
}

func (t *Task) AssignTo(userID, actor uuid.UUID, at time.Time) {
	old := t.AssignedTo
	t.AssignedTo = userID
	t.Log(ActivityAssigned, actor, old.String(), userID.String(), at)
}

// Clone returns a deep copy so that callers can mutate without aliasing the original slices.
func (t *Task) Clone() *Task {
	c := *t
	c.SubTasks = append(SubTasks(nil), t.SubTasks...)
	c.Comments = append(Comments(nil), t.Comments...)
	c.ActivityLogs = append(ActivityLogs(nil), t.ActivityLogs...)
	if t.Deadline != nil {
		d := *t.Deadline
		c.Deadline = &d
	}
	if t.Creator != nil {
		cr := *t.Creator
		c.Creator = &cr
	}
	if t.Assignee != nil {
		as := *t.Assignee
		c.Assignee = &as
	}
	return &c
}

// Utility methods
func (ur UserRole) IsValid() bool {
	switch ur {
	case UserRoleUser, UserRoleAdmin:
		return true
	default:
		return false
	}
}

func (ts TaskStatus) IsValid() bool {
	switch ts {
	case TaskStatusTodo, TaskStatusInProgress, TaskStatusDone:
		return true
	default:
		return false
	}
}

func (p Priority) IsValid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh:
		return true
	default:
		return false
	}
}

func ParseTaskStatus(s string) (TaskStatus, error) {
	ts := TaskStatus(s)
	if !ts.IsValid() {
		return "", NewValidationError("invalid status value", "status must be one of todo, in-progress, done")
	}
	return ts, nil
}

func ParsePriority(s string) (Priority, error) {
	p := Priority(s)
	if !p.IsValid() {
		return "", NewValidationError("invalid priority value", "priority must be one of low, medium, high")
	}
	return p, nil
}

func ParseUserRole(s string) (UserRole, error) {
	r := UserRole(s)
	if !r.IsValid() {
		return "", NewValidationError("invalid role value", "role must be one of user, admin")
	}
	return r, nil
}

// ParseID parses a task or user identifier.
func ParseID(field, s string) (uuid.UUID, error) {
	id, err := uuid.Parse(strings.TrimSpace(s))
	if err != nil {
		return uuid.Nil, NewValidationError("invalid "+field, field+" must be a valid identifier")
	}
	return id, nil
}

var deadlineLayouts = []string{time.RFC3339Nano, time.RFC3339, "2006-01-02T15:04:05", "2006-01-02"}

// ParseDeadline accepts an RFC 3339 timestamp or a plain YYYY-MM-DD date (UTC midnight).
func ParseDeadline(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range deadlineLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, NewValidationError("invalid deadline date", "deadline must be a valid date")
}

// NormalizeTitle trims a title and checks its length bounds.
func NormalizeTitle(field, s string) (string, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", NewValidationError(field+" is required", field+" is required")
	}
	if len([]rune(s)) > MaxTitleLength {
		return "", NewValidationError(field+" is too long", fmt.Sprintf("%s must be at most %d characters", field, MaxTitleLength))
	}
	return s, nil
}

// JSONB column support

func (s SubTasks) Value() (driver.Value, error)     { return marshalJSONB(s) }
func (c Comments) Value() (driver.Value, error)     { return marshalJSONB(c) }
func (a ActivityLogs) Value() (driver.Value, error) { return marshalJSONB(a) }

func (s *SubTasks) Scan(src interface{}) error     { return unmarshalJSONB(src, s) }
func (c *Comments) Scan(src interface{}) error     { return unmarshalJSONB(src, c) }
func (a *ActivityLogs) Scan(src interface{}) error { return unmarshalJSONB(src, a) }

func marshalJSONB(v interface{}) (driver.Value, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	if string(b) == "null" {
		return []byte("[]"), nil
	}
	return b, nil
}

func unmarshalJSONB(src interface{}, dest interface{}) error {
	switch v := src.(type) {
	case nil:
		return nil
	case []byte:
		return json.Unmarshal(v, dest)
	case string:
		return json.Unmarshal([]byte(v), dest)
	default:
		return fmt.Errorf("unsupported JSONB source type %T", src)
	}
}
