package testutil

import (
	"context"
	"sync"

	"github.com/taskmaster/taskhub/internal/ports"
)

// RecordingPublisher captures published events.
type RecordingPublisher struct {
	mu     sync.Mutex
	events []ports.TaskEvent

	// PublishErr is returned from Publish; the event is still recorded.
	PublishErr error
}

// Publish implements ports.EventPublisher.
func (p *RecordingPublisher) Publish(_ context.Context, event ports.TaskEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return p.PublishErr
}

// Events returns a copy of everything published so far.
func (p *RecordingPublisher) Events() []ports.TaskEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]ports.TaskEvent(nil), p.events...)
}

// Reset forgets recorded events.
func (p *RecordingPublisher) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = nil
}
