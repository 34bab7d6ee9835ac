package queue

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/arloliu/go-firmata/internal/pool"
)

var (
	// ErrProducerDone is returned by Pop when the done channel is closed and
	// the queue holds no item.
	ErrProducerDone = errors.New("queue: producer done")

	// ErrTimeout is returned by Pop when no item arrives within the timeout.
	ErrTimeout = errors.New("queue: wait timeout")
)

// Blocking is an unbounded FIFO safe for concurrent use. Push never blocks;
// Pop waits for an item.
type Blocking[T any] struct {
	mu     sync.Mutex
	items  Queue[T]
	notify chan struct{}
}

// NewBlocking creates an empty blocking queue.
func NewBlocking[T any](prealloc int) *Blocking[T] {
	return &Blocking[T]{
		items:  NewSliceQueue[T](prealloc),
		notify: make(chan struct{}, 1),
	}
}

// Push appends v and wakes a waiting Pop.
func (q *Blocking[T]) Push(v T) {
	q.mu.Lock()
	q.items.Enqueue(v)
	q.mu.Unlock()

	q.signal()
}

func (q *Blocking[T]) signal() {
	select {
	case q.notify <- struct{}{}:
	default:
	}
}

// TryPop removes the head item without waiting.
func (q *Blocking[T]) TryPop() (T, bool) {
	q.mu.Lock()
	v, ok := q.items.Dequeue()
	more := !q.items.IsEmpty()
	q.mu.Unlock()

	// pass the wake-up on to other waiters
	if ok && more {
		q.signal()
	}

	return v, ok
}

// Pop removes the head item, waiting until one is pushed.
//
// It returns ctx.Err() when ctx is done, [ErrTimeout] when timeout is positive
// and elapses, and [ErrProducerDone] when done is closed and the queue is
// empty. Items pushed before done was closed are still returned. A failed Pop
// leaves the queue untouched.
func (q *Blocking[T]) Pop(ctx context.Context, done <-chan struct{}, timeout time.Duration) (T, error) {
	var zero T

	var timeoutCh <-chan time.Time
	if timeout > 0 {
		timer := pool.GetTimer(timeout)
		defer pool.PutTimer(timer)
		timeoutCh = timer.C
	}

	for {
		if v, ok := q.TryPop(); ok {
			return v, nil
		}

		select {
		case <-q.notify:
		case <-ctx.Done():
			return zero, ctx.Err()
		case <-timeoutCh:
			return zero, ErrTimeout
		case <-done:
			if v, ok := q.TryPop(); ok {
				return v, nil
			}

			return zero, ErrProducerDone
		}
	}
}

// Len returns the number of queued items.
func (q *Blocking[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()

	return q.items.Length()
}

// Drain removes and returns every queued item.
func (q *Blocking[T]) Drain() []T {
	q.mu.Lock()
	defer q.mu.Unlock()

	out := make([]T, 0, q.items.Length())
	for {
		v, ok := q.items.Dequeue()
		if !ok {
			return out
		}
		out = append(out, v)
	}
}
