package task

import (
	"context"
	"log/slog"
	"sync"
)

// RunnerConfig holds configuration for the task runner
type RunnerConfig struct {
	// WorkerCount determines how many tasks may execute concurrently,
	// system-wide across all sessions. This is the tracker concurrency
	// budget; keep it small.
	WorkerCount int
}

// DefaultRunnerConfig returns a RunnerConfig with reasonable defaults
func DefaultRunnerConfig() RunnerConfig {
	return RunnerConfig{
		WorkerCount: 2,
	}
}

// Runner drains the task queue with a fixed pool of workers. Cancelled
// tasks are skipped at pop time without occupying a worker slot, and one
// task's failure never stops the drain loop.
type Runner struct {
	queue      QueueReader
	ctx        context.Context
	cancelFunc context.CancelFunc
	stopOnce   sync.Once
	stopped    chan struct{}
	wg         sync.WaitGroup
	config     RunnerConfig
	logger     *slog.Logger
	errHandler func(task Task, err error)
}

// NewRunner creates a new Runner reading from the given queue.
func NewRunner(queue QueueReader, config RunnerConfig, logger *slog.Logger) *Runner {
	if config.WorkerCount <= 0 {
		logger.Warn("invalid worker count specified, using default",
			"specified_count", config.WorkerCount,
			"default_count", DefaultRunnerConfig().WorkerCount)
		config.WorkerCount = DefaultRunnerConfig().WorkerCount
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Runner{
		queue:      queue,
		ctx:        ctx,
		cancelFunc: cancel,
		stopped:    make(chan struct{}),
		config:     config,
		logger:     logger,
		errHandler: func(task Task, err error) {
			// Default error handler just logs the error
			logger.Error("task execution failed",
				"task_id", task.ID(),
				"kind", task.Kind(),
				"date", task.Date(),
				"error", err)
		},
	}
}

// SetErrorHandler allows setting a custom error handler function
func (r *Runner) SetErrorHandler(handler func(task Task, err error)) {
	r.errHandler = handler
}

// Start launches the worker pool.
func (r *Runner) Start() {
	for i := 0; i < r.config.WorkerCount; i++ {
		r.wg.Add(1)
		go r.worker(i)
	}
}

// Stop shuts the pop loop down and waits for in-flight tasks to finish.
// The execution context is released only after the last worker returns, so
// a task body already running completes its tracker calls undisturbed.
func (r *Runner) Stop() {
	r.stopOnce.Do(func() { close(r.stopped) })
	r.wg.Wait()
	r.cancelFunc()
}

// worker processes tasks from the queue
func (r *Runner) worker(id int) {
	defer r.wg.Done()

	r.logger.Debug("starting worker", "worker_id", id)

	for {
		select {
		case <-r.stopped:
			r.logger.Debug("stopping worker", "worker_id", id)
			return

		case task, ok := <-r.queue.GetChannel():
			if !ok {
				r.logger.Debug("task channel closed, stopping worker", "worker_id", id)
				return
			}

			// Early-exit fast path: a task already superseded or orphaned
			// by a disconnect is dropped before its body ever runs.
			if task.Cancelled() {
				r.logger.Debug("skipping cancelled task",
					"task_id", task.ID(),
					"kind", task.Kind(),
					"date", task.Date(),
					"worker_id", id)
				continue
			}

			r.processTask(task, id)
		}
	}
}

// processTask handles execution of a single task, isolating its failures
// from the drain loop.
func (r *Runner) processTask(task Task, workerID int) {
	logger := r.logger.With(
		"task_id", task.ID(),
		"kind", task.Kind(),
		"date", task.Date(),
		"worker_id", workerID,
	)

	defer func() {
		if rec := recover(); rec != nil {
			logger.Error("task panicked", "panic", rec)
		}
	}()

	logger.Debug("processing task")

	if err := task.Execute(r.ctx); err != nil {
		logger.Error("task execution failed", "error", err)
		r.errHandler(task, err)
		return
	}

	logger.Debug("task completed")
}
