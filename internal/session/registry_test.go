package session

import (
	"log/slog"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hoursync/hoursync/internal/task"
)

func setupTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))
}

func TestRegisterCreatesLiveSession(t *testing.T) {
	registry := NewRegistry(setupTestLogger())
	id := registry.Register()

	cancelled := registry.CancellationCheckFor(id, task.KindBatch, "")
	assert.False(t, cancelled(), "fresh session must not report cancelled")
}

func TestDisconnectCancelsEveryKind(t *testing.T) {
	registry := NewRegistry(setupTestLogger())
	id := registry.Register()

	single := registry.CancellationCheckFor(id, task.KindSingle, "")
	batch := registry.CancellationCheckFor(id, task.KindBatch, "2025-03")

	registry.MarkDisconnected(id)

	assert.True(t, single(), "disconnect cancels single-scoped tasks")
	assert.True(t, batch(), "disconnect cancels batch-scoped tasks")
}

func TestEpochBumpCancelsOnlyBatchScopedTasks(t *testing.T) {
	registry := NewRegistry(setupTestLogger())
	id := registry.Register()

	single := registry.CancellationCheckFor(id, task.KindSingle, "")
	batch := registry.CancellationCheckFor(id, task.KindBatch, "")

	// Superseding the batch bumps the epoch past both captured checks.
	registry.SetBatch(id, "2025-04")

	assert.True(t, batch(), "epoch bump cancels batch-scoped tasks")
	assert.False(t, single(), "a user-initiated lookup survives batch resets")
}

func TestBatchKeyMismatchCancels(t *testing.T) {
	registry := NewRegistry(setupTestLogger())
	id := registry.Register()
	registry.SetBatch(id, "2025-03")

	// Captured after the first SetBatch, carrying the live epoch and key.
	batch := registry.CancellationCheckFor(id, task.KindBatch, "2025-03")
	require.False(t, batch())

	registry.SetBatch(id, "2025-04")
	assert.True(t, batch())
}

func TestRequestKeyOverridesCapturedBatchKey(t *testing.T) {
	registry := NewRegistry(setupTestLogger())
	id := registry.Register()
	registry.SetBatch(id, "2025-03")

	// The request names an older batch explicitly. The live key differs,
	// so the check reports cancelled even though the epoch never moved
	// after capture.
	stale := registry.CancellationCheckFor(id, task.KindBatch, "2025-02")
	assert.True(t, stale(), "a request naming a superseded batch is already cancelled")

	fresh := registry.CancellationCheckFor(id, task.KindBatch, "2025-03")
	assert.False(t, fresh())
}

func TestCheckForUnknownSessionAlwaysCancels(t *testing.T) {
	registry := NewRegistry(setupTestLogger())

	cancelled := registry.CancellationCheckFor(uuid.New(), task.KindSingle, "")
	assert.True(t, cancelled())
}

func TestSetBatchOnUnknownSessionIsNoop(t *testing.T) {
	registry := NewRegistry(setupTestLogger())
	assert.NotPanics(t, func() {
		registry.SetBatch(uuid.New(), "2025-03")
	})
}
