package bus

import (
	"context"
	"sync"
	"sync/atomic"

	"feedstate/pkg/exception"
)

// Queue is a bounded FIFO carrying one message class between a feed task and its
// consumer loop.
type Queue[T any] struct {
	name   string
	ch     chan T
	done   chan struct{}
	once   sync.Once
	closed uint32
}

// NewQueue allocates a queue with the given capacity.
func NewQueue[T any](name string, capacity int) *Queue[T] {
	if capacity <= 0 {
		capacity = 1
	}
	return &Queue[T]{
		name: name,
		ch:   make(chan T, capacity),
		done: make(chan struct{}),
	}
}

func (q *Queue[T]) Name() string {
	return q.name
}

// Len returns the number of buffered messages.
func (q *Queue[T]) Len() int {
	return len(q.ch)
}

func (q *Queue[T]) Cap() int {
	return cap(q.ch)
}

// Publish enqueues e, waiting for space. Messages are never dropped; it fails only when
// ctx ends or the queue is closed first.
func (q *Queue[T]) Publish(ctx context.Context, e T) error {
	if atomic.LoadUint32(&q.closed) != 0 {
		return exception.ErrQueueClosed
	}
	select {
	case q.ch <- e:
		return nil
	default:
	}
	select {
	case q.ch <- e:
		return nil
	case <-q.done:
		return exception.ErrQueueClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops the queue from accepting new events. Buffered events are still
// delivered by Run.
func (q *Queue[T]) Close() {
	q.once.Do(func() {
		atomic.StoreUint32(&q.closed, 1)
		close(q.done)
	})
}

// Run consumes events until ctx is done, or until the queue is closed and drained.
// The handler always runs to completion; cancellation is observed between events.
func (q *Queue[T]) Run(ctx context.Context, handler func(context.Context, T)) {
	for {
		select {
		case <-ctx.Done():
			return
		case e := <-q.ch:
			handler(ctx, e)
		case <-q.done:
			for {
				select {
				case e := <-q.ch:
					handler(ctx, e)
				default:
					return
				}
			}
		}
	}
}
