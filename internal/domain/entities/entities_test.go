package entities

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var now = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func TestParseEnums(t *testing.T) {
	for _, s := range TaskStatuses {
		got, err := ParseTaskStatus(string(s))
		require.NoError(t, err)
		assert.Equal(t, s, got)
	}
	for _, p := range Priorities {
		got, err := ParsePriority(string(p))
		require.NoError(t, err)
		assert.Equal(t, p, got)
	}

	_, err := ParseTaskStatus("archived")
	assert.Equal(t, KindValidation, KindOf(err))
	_, err = ParseTaskStatus("DONE")
	assert.Error(t, err)
	_, err = ParsePriority("urgent")
	assert.Equal(t, KindValidation, KindOf(err))
	_, err = ParseUserRole("manager")
	assert.Equal(t, KindValidation, KindOf(err))

	role, err := ParseUserRole("admin")
	require.NoError(t, err)
	assert.Equal(t, UserRoleAdmin, role)
}

func TestParseDeadline(t *testing.T) {
	tests := []struct {
		in   string
		want time.Time
		ok   bool
	}{
		{"2024-12-31", time.Date(2024, 12, 31, 0, 0, 0, 0, time.UTC), true},
		{" 2024-12-31 ", time.Date(2024, 12, 31, 0, 0, 0, 0, time.UTC), true},
		{"2024-06-01T10:30:00Z", time.Date(2024, 6, 1, 10, 30, 0, 0, time.UTC), true},
		{"2024-06-01T12:30:00+02:00", time.Date(2024, 6, 1, 10, 30, 0, 0, time.UTC), true},
		{"2024-02-30", time.Time{}, false},
		{"tomorrow", time.Time{}, false},
		{"", time.Time{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseDeadline(tt.in)
			if !tt.ok {
				assert.Equal(t, KindValidation, KindOf(err))
				return
			}
			require.NoError(t, err)
			assert.True(t, tt.want.Equal(got), "got %s", got)
		})
	}
}

func TestNormalizeTitle(t *testing.T) {
	got, err := NormalizeTitle("title", "  Write report  ")
	require.NoError(t, err)
	assert.Equal(t, "Write report", got)

	_, err = NormalizeTitle("title", "   ")
	assert.Equal(t, KindValidation, KindOf(err))

	_, err = NormalizeTitle("title", strings.Repeat("é", MaxTitleLength))
	assert.NoError(t, err)

	_, err = NormalizeTitle("title", strings.Repeat("a", MaxTitleLength+1))
	assert.Equal(t, KindValidation, KindOf(err))
}

func TestParseID(t *testing.T) {
	id := uuid.New()
	got, err := ParseID("task id", id.String())
	require.NoError(t, err)
	assert.Equal(t, id, got)

	_, err = ParseID("task id", "42")
	require.Error(t, err)
	assert.Equal(t, KindValidation, KindOf(err))
	assert.Equal(t, "invalid task id", err.Error())
}

func TestTask_IsOverdue(t *testing.T) {
	past := now.Add(-time.Hour)
	future := now.Add(time.Hour)

	tests := []struct {
		name     string
		deadline *time.Time
		status   TaskStatus
		want     bool
	}{
		{"no deadline", nil, TaskStatusTodo, false},
		{"future deadline", &future, TaskStatusTodo, false},
		{"past deadline", &past, TaskStatusInProgress, true},
		{"past deadline but done", &past, TaskStatusDone, false},
		{"deadline equals now", &now, TaskStatusTodo, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			task := &Task{Deadline: tt.deadline, Status: tt.status}
			assert.Equal(t, tt.want, task.IsOverdue(now))
		})
	}
}

func TestTask_CanBeModifiedBy(t *testing.T) {
	owner := uuid.New()
	task := &Task{CreatedBy: owner, AssignedTo: owner}

	assert.True(t, task.CanBeModifiedBy(Actor{ID: owner, Role: UserRoleUser}))
	assert.False(t, task.CanBeModifiedBy(Actor{ID: uuid.New(), Role: UserRoleUser}))
	assert.True(t, task.CanBeModifiedBy(Actor{ID: uuid.New(), Role: UserRoleAdmin}))

	// Creating a task does not grant access once it is reassigned.
	task.AssignedTo = uuid.New()
	assert.False(t, task.CanBeModifiedBy(Actor{ID: owner, Role: UserRoleUser}))
}

func TestTask_AssignToLogs(t *testing.T) {
	from, to, admin := uuid.New(), uuid.New(), uuid.New()
	task := &Task{AssignedTo: from}

	task.AssignTo(to, admin, now)

	assert.Equal(t, to, task.AssignedTo)
	require.Len(t, task.ActivityLogs, 1)
	entry := task.ActivityLogs[0]
	assert.Equal(t, ActivityAssigned, entry.Action)
	assert.Equal(t, admin, entry.Actor)
	assert.Equal(t, from.String(), entry.OldValue)
	assert.Equal(t, to.String(), entry.NewValue)
}

func TestTask_CloneIsDeep(t *testing.T) {
	deadline := now
	task := &Task{
		Title:    "original",
		Deadline: &deadline,
		SubTasks: SubTasks{{Title: "a"}},
		Comments: Comments{{Text: "c"}},
		Assignee: &UserSummary{Name: "Alice"},
	}

	c := task.Clone()
	c.SubTasks[0].Completed = true
	c.Comments = append(c.Comments, Comment{Text: "d"})
	*c.Deadline = now.Add(time.Hour)
	c.Assignee.Name = "Bob"

	assert.False(t, task.SubTasks[0].Completed)
	assert.Len(t, task.Comments, 1)
	assert.True(t, task.Deadline.Equal(now))
	assert.Equal(t, "Alice", task.Assignee.Name)
}

func TestJSONBColumns(t *testing.T) {
	v, err := SubTasks(nil).Value()
	require.NoError(t, err)
	assert.Equal(t, []byte("[]"), v)

	v, err = SubTasks{{Title: "a", Completed: true}}.Value()
	require.NoError(t, err)

	var back SubTasks
	require.NoError(t, back.Scan(v))
	assert.Equal(t, SubTasks{{Title: "a", Completed: true}}, back)

	var comments Comments
	require.NoError(t, comments.Scan(`[{"text":"hi"}]`))
	require.Len(t, comments, 1)
	assert.Equal(t, "hi", comments[0].Text)

	var logs ActivityLogs
	require.NoError(t, logs.Scan(nil))
	assert.Empty(t, logs)
	assert.Error(t, logs.Scan(42))
}

func TestKindOf(t *testing.T) {
	assert.Equal(t, KindNotFound, KindOf(fmt.Errorf("lookup: %w", ErrTaskNotFound)))
	assert.Equal(t, KindConflict, KindOf(ErrVersionConflict))
	assert.Equal(t, KindAuthentication, KindOf(ErrInvalidToken))
	assert.Equal(t, KindInternal, KindOf(ErrAssignmentFailed))
	assert.Equal(t, KindInternal, KindOf(fmt.Errorf("boom")))
}

func TestNotification(t *testing.T) {
	tests := []struct {
		status   TaskStatus
		priority Priority
		overdue  bool
		want     string
	}{
		{TaskStatusDone, PriorityHigh, true, NotifyCompleted},
		{TaskStatusDone, PriorityLow, false, NotifyCompleted},
		{TaskStatusTodo, PriorityHigh, true, NotifyOverdueUrgent},
		{TaskStatusInProgress, PriorityHigh, true, NotifyOverdueUrgent},
		{TaskStatusTodo, PriorityMedium, true, NotifyOverdue},
		{TaskStatusInProgress, PriorityLow, true, NotifyOverdue},
		{TaskStatusInProgress, PriorityHigh, false, NotifyInProgressUrgent},
		{TaskStatusInProgress, PriorityMedium, false, NotifyInProgress},
		{TaskStatusTodo, PriorityHigh, false, NotifyPendingHigh},
		{TaskStatusTodo, PriorityLow, false, NotifyPending},
	}

	for _, tt := range tests {
		name := fmt.Sprintf("%s/%s/overdue=%t", tt.status, tt.priority, tt.overdue)
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, tt.want, Notification(tt.status, tt.priority, tt.overdue))
		})
	}
}

func TestNotificationIsTotal(t *testing.T) {
	for _, s := range TaskStatuses {
		for _, p := range Priorities {
			for _, overdue := range []bool{false, true} {
				assert.NotEmpty(t, Notification(s, p, overdue), "%s/%s/%t", s, p, overdue)
			}
		}
	}
}

func TestNewTaskView(t *testing.T) {
	past := now.Add(-24 * time.Hour)
	task := &Task{Status: TaskStatusTodo, Priority: PriorityHigh, Deadline: &past}

	view := NewTaskView(task, now)
	assert.True(t, view.IsOverdue)
	assert.Equal(t, NotifyOverdueUrgent, view.Notification)
	assert.Same(t, task, view.Task)
}
