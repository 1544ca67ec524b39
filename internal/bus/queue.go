package bus

import (
	"context"
	"errors"
	"sync/atomic"

	"main/internal/mem"
	"main/internal/model"
	"main/internal/schema"
)

var (
	ErrQueueFull   = errors.New("event queue full")
	ErrQueueClosed = errors.New("event queue closed")
)

// Event is the unit passed from the feed to the store loop: one pooled tick
// and its stream metadata. Whoever ends up with the event owns the tick
// reference; a publisher keeps ownership when TryPublish fails.
type Event struct {
	Header schema.EventHeader
	Tick   mem.Handle[model.Tick]
}

// Queue is a bounded, non-blocking event queue.
type Queue struct {
	ch     chan Event
	closed uint32
}

// NewQueue allocates a queue with the given capacity.
func NewQueue(capacity int) *Queue {
	if capacity <= 0 {
		capacity = 1
	}
	return &Queue{ch: make(chan Event, capacity)}
}

// TryPublish enqueues an event without blocking. On error the caller still
// owns the tick reference and must release it.
func (q *Queue) TryPublish(e Event) error {
	if atomic.LoadUint32(&q.closed) != 0 {
		return ErrQueueClosed
	}
	select {
	case q.ch <- e:
		return nil
	default:
		return ErrQueueFull
	}
}

// Close stops the queue from accepting new events.
func (q *Queue) Close() {
	if atomic.CompareAndSwapUint32(&q.closed, 0, 1) {
		close(q.ch)
	}
}

// Run consumes events until the context is done or the queue is closed.
// The handler owns each event's tick reference.
func (q *Queue) Run(ctx context.Context, handler func(Event)) {
	for {
		select {
		case <-ctx.Done():
			return
		case e, ok := <-q.ch:
			if !ok {
				return
			}
			handler(e)
		}
	}
}

// Drain empties anything still queued once Run has returned, handing each
// event to release so pooled ticks find their way home.
func (q *Queue) Drain(release func(Event)) {
	for {
		select {
		case e, ok := <-q.ch:
			if !ok {
				return
			}
			release(e)
		default:
			return
		}
	}
}
