package task

import (
	"context"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func setupTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))
}

func newNoopTask() *SyncTask {
	return New(KindSingle, "2025-06-10", nil, func(ctx context.Context) error {
		return nil
	})
}

func TestNewQueue(t *testing.T) {
	logger := setupTestLogger()
	queueSize := 10
	queue := NewQueue(queueSize, logger)

	assert.NotNil(t, queue)
	assert.Equal(t, queueSize, cap(queue.tasks))
	assert.False(t, queue.closed)
}

func TestEnqueue(t *testing.T) {
	logger := setupTestLogger()
	queue := NewQueue(2, logger)

	// Test successful enqueue
	task1 := newNoopTask()
	err := queue.Enqueue(task1)
	assert.NoError(t, err)

	task2 := newNoopTask()
	err = queue.Enqueue(task2)
	assert.NoError(t, err)

	// Test queue full
	task3 := newNoopTask()
	err = queue.Enqueue(task3)
	assert.Error(t, err)
	assert.ErrorIs(t, err, ErrQueueFull)

	// Dequeue one item to make space
	<-queue.tasks

	// Now we should be able to enqueue again
	err = queue.Enqueue(task3)
	assert.NoError(t, err)
}

func TestEnqueuePreservesFIFOOrder(t *testing.T) {
	logger := setupTestLogger()
	queue := NewQueue(10, logger)

	first := New(KindSingle, "2025-06-01", nil, func(ctx context.Context) error { return nil })
	second := New(KindBatch, "2025-06-02", nil, func(ctx context.Context) error { return nil })
	third := New(KindBatch, "2025-06-03", nil, func(ctx context.Context) error { return nil })

	assert.NoError(t, queue.Enqueue(first))
	assert.NoError(t, queue.Enqueue(second))
	assert.NoError(t, queue.Enqueue(third))

	assert.Equal(t, first.ID(), (<-queue.GetChannel()).ID())
	assert.Equal(t, second.ID(), (<-queue.GetChannel()).ID())
	assert.Equal(t, third.ID(), (<-queue.GetChannel()).ID())
}

func TestClose(t *testing.T) {
	logger := setupTestLogger()
	queue := NewQueue(10, logger)

	// Enqueue a task
	task := newNoopTask()
	err := queue.Enqueue(task)
	assert.NoError(t, err)

	// Close the queue
	queue.Close()
	assert.True(t, queue.closed)

	// Try to enqueue after closing
	err = queue.Enqueue(newNoopTask())
	assert.Error(t, err)
	assert.ErrorIs(t, err, ErrQueueClosed)

	// Make sure we can still read from the queue
	received := <-queue.GetChannel()
	assert.Equal(t, task.ID(), received.ID())

	// After draining the channel, the next read should report closed
	select {
	case _, ok := <-queue.GetChannel():
		assert.False(t, ok, "Channel should be closed")
	case <-time.After(100 * time.Millisecond):
		t.Fatal("Timed out waiting for closed channel read")
	}
}

func TestCloseIsIdempotent(t *testing.T) {
	logger := setupTestLogger()
	queue := NewQueue(10, logger)

	queue.Close()
	assert.NotPanics(t, func() { queue.Close() })
}
