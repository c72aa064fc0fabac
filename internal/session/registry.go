// Package session tracks one entry per live UI connection and answers the
// single question the scheduler needs: has this task been superseded?
package session

import (
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"github.com/hoursync/hoursync/internal/task"
)

// state is the registry's record for one connection. The epoch only ever
// increases; every bump invalidates previously captured batch-scoped checks.
type state struct {
	epoch    uint64
	batchKey string
}

// Registry owns the session table with an enforced lifecycle: entries are
// created on connect and removed on disconnect. Sessions are never shared
// between connections.
type Registry struct {
	mu       sync.Mutex
	sessions map[uuid.UUID]*state
	logger   *slog.Logger
}

// NewRegistry creates an empty session registry.
func NewRegistry(logger *slog.Logger) *Registry {
	return &Registry{
		sessions: make(map[uuid.UUID]*state),
		logger:   logger.With("component", "session_registry"),
	}
}

// Register creates a session entry for a new connection and returns its
// handle. The cancellation epoch starts at zero with no batch key.
func (r *Registry) Register() uuid.UUID {
	id := uuid.New()

	r.mu.Lock()
	r.sessions[id] = &state{}
	count := len(r.sessions)
	r.mu.Unlock()

	r.logger.Debug("session registered", "session_id", id, "session_count", count)
	return id
}

// MarkDisconnected removes the session entry so no further results can be
// delivered to it. Every cancellation check captured for the handle reports
// cancelled from this point on, regardless of task kind.
func (r *Registry) MarkDisconnected(id uuid.UUID) {
	r.mu.Lock()
	_, existed := r.sessions[id]
	delete(r.sessions, id)
	count := len(r.sessions)
	r.mu.Unlock()

	if existed {
		r.logger.Debug("session disconnected", "session_id", id, "session_count", count)
	}
}

// SetBatch bumps the session's cancellation epoch and records the new batch
// key, superseding every previously captured batch-scoped check for the
// handle. Unknown handles are ignored.
func (r *Registry) SetBatch(id uuid.UUID, batchKey string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[id]
	if !ok {
		return
	}
	s.epoch++
	s.batchKey = batchKey
	r.logger.Debug("session batch updated",
		"session_id", id,
		"epoch", s.epoch,
		"batch_key", batchKey)
}

// CancellationCheckFor builds the predicate a task carries into the queue.
// The session's epoch and batch key are captured now, at submission time.
// When requestKey is non-empty it overrides the captured batch key; the
// transport passes the batch key named in the request itself.
//
// The predicate reports cancelled when the session is gone, or, for
// batch-scoped tasks only, when the live epoch has moved past the captured
// one or both batch keys are set and differ. Single-scoped tasks survive
// batch resets by design.
func (r *Registry) CancellationCheckFor(id uuid.UUID, kind task.Kind, requestKey string) func() bool {
	r.mu.Lock()
	s, ok := r.sessions[id]
	var capturedEpoch uint64
	capturedKey := requestKey
	if ok {
		capturedEpoch = s.epoch
		if capturedKey == "" {
			capturedKey = s.batchKey
		}
	}
	r.mu.Unlock()

	if !ok {
		// Captured against a session that no longer exists.
		return func() bool { return true }
	}

	return func() bool {
		r.mu.Lock()
		defer r.mu.Unlock()

		live, ok := r.sessions[id]
		if !ok {
			return true
		}
		if kind != task.KindBatch {
			return false
		}
		if live.epoch != capturedEpoch {
			return true
		}
		if capturedKey != "" && live.batchKey != "" && capturedKey != live.batchKey {
			return true
		}
		return false
	}
}
