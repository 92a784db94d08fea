// Package mailbox is the runner's task queue: every trigger that may touch
// runner state (output emissions, channel notifications, action completions)
// is enqueued here and consumed by a single loop goroutine.
package mailbox

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrClosed is returned by Enqueue and Dequeue once the mailbox is closed.
var ErrClosed = errors.New("mailbox closed")

// TaskType identifies what the runner loop should do.
type TaskType string

const (
	TaskEvaluate   TaskType = "evaluate"
	TaskOutput     TaskType = "output"
	TaskChannel    TaskType = "channel"
	TaskActionDone TaskType = "action-done"
	TaskBind       TaskType = "bind"
	TaskBarrier    TaskType = "barrier"
	TaskInspect    TaskType = "inspect"
)

// Task represents a unit of work for the runner loop.
type Task struct {
	Type TaskType

	// Occurrence is the step occurrence the task was issued for. Output and
	// action-done tasks from an older occurrence are stale.
	Occurrence uint64
	Step       string

	// For channel tasks.
	ChannelKey string

	// Payload is task-type specific:
	//   - output: the emitted value
	//   - action-done: the action output and its data writes
	//   - bind: api.Channels
	//   - barrier: chan struct{} closed once the runner is idle
	//   - inspect: func() run on the loop goroutine
	Payload any
	Err     error

	// Duration of the action body, for action-done tasks.
	Duration time.Duration

	EnqueuedAt time.Time
}

// Queue is an unbounded FIFO. Enqueue never blocks, so it is safe to call
// from channel listeners and surfaces. It is safe for concurrent use.
type Queue struct {
	mu     sync.Mutex
	tasks  []Task
	ready  chan struct{}
	closed bool
}

// New creates an empty queue.
func New() *Queue {
	return &Queue{ready: make(chan struct{}, 1)}
}

// Enqueue appends t.
func (q *Queue) Enqueue(t Task) error {
	if t.EnqueuedAt.IsZero() {
		t.EnqueuedAt = time.Now()
	}

	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return ErrClosed
	}
	q.tasks = append(q.tasks, t)
	q.mu.Unlock()

	select {
	case q.ready <- struct{}{}:
	default:
	}
	return nil
}

// Dequeue removes and returns the oldest task, blocking until one is
// available, the queue is closed, or ctx is cancelled.
func (q *Queue) Dequeue(ctx context.Context) (Task, error) {
	for {
		q.mu.Lock()
		if q.closed {
			q.mu.Unlock()
			return Task{}, ErrClosed
		}
		if len(q.tasks) > 0 {
			t := q.tasks[0]
			q.tasks[0] = Task{}
			q.tasks = q.tasks[1:]
			q.mu.Unlock()
			return t, nil
		}
		q.mu.Unlock()

		select {
		case <-q.ready:
		case <-ctx.Done():
			return Task{}, ctx.Err()
		}
	}
}

// Len returns the number of queued tasks.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.tasks)
}

// Close discards queued tasks and wakes any blocked Dequeue. It is
// idempotent and returns the queued tasks that were dropped.
func (q *Queue) Close() []Task {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return nil
	}
	q.closed = true
	dropped := q.tasks
	q.tasks = nil
	q.mu.Unlock()

	select {
	case q.ready <- struct{}{}:
	default:
	}
	return dropped
}
