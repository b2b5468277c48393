package stream

import (
	"context"
	"errors"
	"sync"

	"golang.org/x/sync/semaphore"
)

var (
	// ErrQueueClosed is returned by Add after MarkComplete has been called.
	ErrQueueClosed = errors.New("stream: add to completed queue")

	// ErrAlreadyProcessing is returned by Process when another Process call
	// is still running. A queue supports exactly one consumer.
	ErrAlreadyProcessing = errors.New("stream: queue is already processing")
)

// defaultMaxInFlight bounds how many queued tasks may execute concurrently.
// Without a bound a very long response could hold one synthesis call in
// flight per sentence.
const defaultMaxInFlight = 4

// taskResult carries a finished task's value or error to the drain loop.
type taskResult[T any] struct {
	val T
	err error
}

// Queue runs asynchronous tasks concurrently but delivers their results to a
// single consumer strictly in submission order: task i+1's result is never
// delivered before task i's, even when i+1 finishes first.
//
// The producer appends with [Queue.Add] and closes the queue with
// [Queue.MarkComplete]; the consumer runs [Queue.Process] once. Both sides
// may run on different goroutines.
type Queue[T any] struct {
	mu         sync.Mutex
	tasks      []chan taskResult[T]
	complete   bool
	processing bool

	// wake is signalled (non-blocking, capacity 1) whenever an item is added
	// or the queue is marked complete, so Process never busy-waits.
	wake chan struct{}

	sem *semaphore.Weighted
}

// QueueOption configures a [Queue] at construction.
type QueueOption[T any] func(*Queue[T])

// WithMaxInFlight bounds the number of tasks executing concurrently.
// n <= 0 removes the bound.
func WithMaxInFlight[T any](n int) QueueOption[T] {
	return func(q *Queue[T]) {
		if n <= 0 {
			q.sem = nil
			return
		}
		q.sem = semaphore.NewWeighted(int64(n))
	}
}

// NewQueue creates an empty queue with the default in-flight bound.
func NewQueue[T any](opts ...QueueOption[T]) *Queue[T] {
	q := &Queue[T]{
		wake: make(chan struct{}, 1),
		sem:  semaphore.NewWeighted(defaultMaxInFlight),
	}
	for _, o := range opts {
		o(q)
	}
	return q
}

// Add submits a task and starts it immediately in its own goroutine. The
// task's result is held until the drain loop reaches its submission index.
// Returns [ErrQueueClosed] if MarkComplete has already been called.
func (q *Queue[T]) Add(ctx context.Context, task func(context.Context) (T, error)) error {
	q.mu.Lock()
	if q.complete {
		q.mu.Unlock()
		return ErrQueueClosed
	}
	ch := make(chan taskResult[T], 1)
	q.tasks = append(q.tasks, ch)
	q.mu.Unlock()

	go func() {
		if q.sem != nil {
			if err := q.sem.Acquire(ctx, 1); err != nil {
				ch <- taskResult[T]{err: err}
				q.signal()
				return
			}
			defer q.sem.Release(1)
		}
		val, err := task(ctx)
		ch <- taskResult[T]{val: val, err: err}
		q.signal()
	}()

	q.signal()
	return nil
}

// MarkComplete declares that no further items will be added. Process returns
// once every already-submitted result has been delivered.
func (q *Queue[T]) MarkComplete() {
	q.mu.Lock()
	q.complete = true
	q.mu.Unlock()
	q.signal()
}

// Len returns the number of tasks submitted so far.
func (q *Queue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.tasks)
}

// Process drains task results in submission order, invoking onResult for each
// success and onError (if non-nil) for each failure. A failed task does not
// abort the drain: processing continues with the next index, so one bad item
// cannot lose the results behind it.
//
// Process blocks until MarkComplete has been called and every submitted
// result has been delivered, or until ctx is cancelled. Only one Process
// call may run at a time; a second concurrent call returns
// [ErrAlreadyProcessing].
func (q *Queue[T]) Process(ctx context.Context, onResult func(T), onError func(error, int)) error {
	q.mu.Lock()
	if q.processing {
		q.mu.Unlock()
		return ErrAlreadyProcessing
	}
	q.processing = true
	q.mu.Unlock()

	defer func() {
		q.mu.Lock()
		q.processing = false
		q.mu.Unlock()
	}()

	for idx := 0; ; {
		q.mu.Lock()
		switch {
		case idx < len(q.tasks):
			ch := q.tasks[idx]
			q.tasks[idx] = nil // result is consumed exactly once
			q.mu.Unlock()

			select {
			case res := <-ch:
				if res.err != nil {
					if onError != nil {
						onError(res.err, idx)
					}
				} else {
					onResult(res.val)
				}
			case <-ctx.Done():
				return ctx.Err()
			}
			idx++

		case q.complete:
			q.mu.Unlock()
			return nil

		default:
			q.mu.Unlock()
			select {
			case <-q.wake:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
}

// signal wakes a waiting Process call without blocking the caller.
func (q *Queue[T]) signal() {
	select {
	case q.wake <- struct{}{}:
	default:
	}
}
