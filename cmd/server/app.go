package main

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/hoursync/hoursync/internal/api"
	"github.com/hoursync/hoursync/internal/config"
	"github.com/hoursync/hoursync/internal/jira"
	"github.com/hoursync/hoursync/internal/session"
	"github.com/hoursync/hoursync/internal/task"
	"github.com/hoursync/hoursync/internal/worklog"
)

// taskBacklog sizes the in-memory queue between the transports and the
// worker pool. A whole month of prefetch dates fits with room to spare.
const taskBacklog = 128

// application holds the wired components of the sync service.
type application struct {
	config     *config.Config
	logger     *slog.Logger
	queue      *task.Queue
	runner     *task.Runner
	registry   *session.Registry
	dispatcher *api.Dispatcher
}

// newApplication builds the component graph: tracker client, aggregator,
// bounded queue and worker pool, session registry, and the transport
// dispatcher.
func newApplication(cfg *config.Config, logger *slog.Logger) (*application, error) {
	location, err := time.LoadLocation(cfg.Jira.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid timezone %q: %w", cfg.Jira.Timezone, err)
	}

	client := jira.NewClient(
		cfg.Jira,
		time.Duration(cfg.Sync.RequestTimeoutSeconds)*time.Second,
		logger,
	)
	aggregator := worklog.NewAggregator(
		client,
		location,
		cfg.Sync.IssueFanout,
		cfg.Sync.MaxSearchResults,
		logger,
	)

	queue := task.NewQueue(taskBacklog, logger)
	runner := task.NewRunner(queue, task.RunnerConfig{
		WorkerCount: cfg.Sync.MaxConcurrency,
	}, logger)

	registry := session.NewRegistry(logger)
	dispatcher := api.NewDispatcher(queue, aggregator, logger)

	return &application{
		config:     cfg,
		logger:     logger,
		queue:      queue,
		runner:     runner,
		registry:   registry,
		dispatcher: dispatcher,
	}, nil
}

// start launches the background worker pool.
func (app *application) start() {
	app.runner.Start()
	app.logger.Info("task runner started",
		"worker_count", app.config.Sync.MaxConcurrency)
}

// cleanup stops accepting work and waits for in-flight tasks.
func (app *application) cleanup() {
	app.queue.Close()
	app.runner.Stop()
	app.logger.Info("task runner stopped")
}
