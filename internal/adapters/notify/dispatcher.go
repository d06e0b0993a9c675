// Package notify delivers task lifecycle events to the users they concern.
//
// Services hand events to a Dispatcher, which never blocks them. Dispatcher workers pass each
// event to a Sink: either the local WebSocket Hub, or Redis when several API instances share
// the same listeners, in which case a RedisRelay on every instance feeds its own Hub.
package notify

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/taskmaster/taskhub/internal/infrastructure/logger"
	"github.com/taskmaster/taskhub/internal/infrastructure/metrics"
	"github.com/taskmaster/taskhub/internal/ports"
)

var (
	ErrBufferFull       = errors.New("event buffer full")
	ErrDispatcherClosed = errors.New("event dispatcher closed")
)

const deliverTimeout = 5 * time.Second

// Sink receives events from the dispatcher workers.
type Sink interface {
	Deliver(ctx context.Context, event ports.TaskEvent) error
}

// Dispatcher is a bounded, asynchronous ports.EventPublisher.
type Dispatcher struct {
	sink    Sink
	events  chan ports.TaskEvent
	workers int
	metrics *metrics.Metrics
	logger  *logger.Logger

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

// NewDispatcher creates a dispatcher with the given buffer size and worker count.
func NewDispatcher(sink Sink, bufferSize, workers int, m *metrics.Metrics, log *logger.Logger) *Dispatcher {
	if bufferSize < 1 {
		bufferSize = 1
	}
	if workers < 1 {
		workers = 1
	}
	return &Dispatcher{
		sink:    sink,
		events:  make(chan ports.TaskEvent, bufferSize),
		workers: workers,
		metrics: m,
		logger:  log.WithComponent("event_dispatcher"),
	}
}

// Start launches the worker goroutines.
func (d *Dispatcher) Start() {
	for i := 0; i < d.workers; i++ {
		d.wg.Add(1)
		go d.work()
	}
}

// Publish enqueues event without blocking. A full buffer drops the event.
func (d *Dispatcher) Publish(_ context.Context, event ports.TaskEvent) error {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		return ErrDispatcherClosed
	}

	select {
	case d.events <- event:
		return nil
	default:
		if d.metrics != nil {
			d.metrics.EventsDropped.Inc()
		}
		return ErrBufferFull
	}
}

// Close stops accepting events and waits for the queued ones to be delivered.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	close(d.events)
	d.mu.Unlock()

	d.wg.Wait()
}

func (d *Dispatcher) work() {
	defer d.wg.Done()

	for event := range d.events {
		ctx, cancel := context.WithTimeout(context.Background(), deliverTimeout)
		err := d.sink.Deliver(ctx, event)
		cancel()

		if err != nil {
			d.logger.Warnw("Failed to deliver task event",
				"event", event.Type,
				"user_id", event.UserID.String(),
				"error", err,
			)
			continue
		}

		if d.metrics != nil {
			d.metrics.EventsPublished.WithLabelValues(string(event.Type)).Inc()
		}
	}
}
