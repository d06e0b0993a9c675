package ports

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type EventType string

const (
	EventTaskCreated EventType = "taskCreated"
	EventTaskUpdated EventType = "taskUpdated"
	EventTaskDeleted EventType = "taskDeleted"
)

// TaskEvent is a lifecycle notification routed to the listeners of one user.
type TaskEvent struct {
	Type       EventType   `json:"event"`
	UserID     uuid.UUID   `json:"user_id"`
	Data       interface{} `json:"data"`
	OccurredAt time.Time   `json:"occurred_at"`
}

// EventPublisher hands events to the notification fan-out. Implementations must not block the
// caller; delivery is best effort and a returned error only reports that the event was dropped.
type EventPublisher interface {
	Publish(ctx context.Context, event TaskEvent) error
}
