// Package task provides the bounded background scheduler: a FIFO queue of
// date-lookup tasks drained by a small fixed number of workers. The worker
// count is the single place the tracker-facing concurrency budget is
// enforced.
package task

import (
	"context"

	"github.com/google/uuid"
)

// Kind distinguishes how a task may be cancelled.
type Kind string

const (
	// KindSingle is a direct user-initiated lookup. It is cancelled only by
	// a full session disconnect, never by a batch reset, so an explicit
	// user action is never silently dropped.
	KindSingle Kind = "single"

	// KindBatch is a background prefetch lookup tied to a session's current
	// batch; superseding the batch cancels it.
	KindBatch Kind = "batch"
)

// Task represents a unit of enqueued background work. Implementations are
// immutable after creation and discarded after execution.
// Version: 1.0
type Task interface {
	// ID returns the task's unique identifier
	ID() uuid.UUID

	// Kind returns the task's cancellation scope
	Kind() Kind

	// Date returns the calendar date (YYYY-MM-DD) the task resolves
	Date() string

	// Cancelled reports whether the task has been superseded or its session
	// disconnected. It captures its epoch and batch key at creation time.
	Cancelled() bool

	// Execute runs the task logic
	Execute(ctx context.Context) error
}

// QueueReader provides read-only access to the task channel, allowing
// workers to consume tasks without the ability to enqueue.
// Version: 1.0
type QueueReader interface {
	// GetChannel returns a read-only channel for consuming tasks
	GetChannel() <-chan Task
}

// QueueWriter provides write access to the task queue, allowing transports
// to enqueue lookups for processing.
// Version: 1.0
type QueueWriter interface {
	// Enqueue adds a task to the queue for processing.
	// Returns an error if the queue is full or closed.
	Enqueue(task Task) error

	// Close closes the task queue, preventing further task submission
	Close()
}

// SyncTask is the standard Task implementation used by the request router:
// a date lookup closed over its cancellation check and its result delivery.
type SyncTask struct {
	id        uuid.UUID
	kind      Kind
	date      string
	cancelled func() bool
	run       func(ctx context.Context) error
}

// New creates an immutable SyncTask. cancelled must already have captured
// the session epoch and batch key in force at enqueue time.
func New(kind Kind, date string, cancelled func() bool, run func(ctx context.Context) error) *SyncTask {
	return &SyncTask{
		id:        uuid.New(),
		kind:      kind,
		date:      date,
		cancelled: cancelled,
		run:       run,
	}
}

// ID returns the task's unique identifier.
func (t *SyncTask) ID() uuid.UUID { return t.id }

// Kind returns the task's cancellation scope.
func (t *SyncTask) Kind() Kind { return t.kind }

// Date returns the calendar date the task resolves.
func (t *SyncTask) Date() string { return t.date }

// Cancelled evaluates the captured cancellation check.
func (t *SyncTask) Cancelled() bool {
	if t.cancelled == nil {
		return false
	}
	return t.cancelled()
}

// Execute runs the task body.
func (t *SyncTask) Execute(ctx context.Context) error {
	return t.run(ctx)
}
