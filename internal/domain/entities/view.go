package entities

import "time"

// TaskView is a task as returned to clients: the stored fields plus values computed at read time.
type TaskView struct {
	*Task
	IsOverdue    bool   `json:"is_overdue"`
	Notification string `json:"notification"`
}

// NewTaskView builds the derived view of t as of now. It does not modify t.
func NewTaskView(t *Task, now time.Time) TaskView {
	overdue := t.IsOverdue(now)
	return TaskView{
		Task:         t,
		IsOverdue:    overdue,
		Notification: Notification(t.Status, t.Priority, overdue),
	}
}

// Notification texts
const (
	NotifyCompleted        = "Task completed. Great job!"
	NotifyOverdueUrgent    = "Urgent: high priority task is overdue!"
	NotifyOverdue          = "Task is overdue."
	NotifyInProgressUrgent = "High priority task in progress."
	NotifyInProgress       = "Task is in progress."
	NotifyPendingHigh      = "High priority task is waiting to be started."
	NotifyPending          = "Task is pending."
)

// Notification maps (status, priority, overdue) to a status message. Every combination of valid
// values yields a non-empty string.
func Notification(status TaskStatus, priority Priority, overdue bool) string {
	high := priority == PriorityHigh

	switch {
	case status == TaskStatusDone:
		return NotifyCompleted
	case overdue && high:
		return NotifyOverdueUrgent
	case overdue:
		return NotifyOverdue
	case status == TaskStatusInProgress && high:
		return NotifyInProgressUrgent
	case status == TaskStatusInProgress:
		return NotifyInProgress
	case high:
		return NotifyPendingHigh
	default:
		return NotifyPending
	}
}
