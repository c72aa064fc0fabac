package api

import (
	"context"
	"errors"
	"log/slog"

	"github.com/hoursync/hoursync/internal/task"
	"github.com/hoursync/hoursync/internal/worklog"
)

// HoursAggregator is the slice of the worklog aggregator the transports
// depend on.
type HoursAggregator interface {
	DailyHours(ctx context.Context, date string, cancelled func() bool) ([]worklog.Entry, error)
}

// Dispatcher is the shared funnel both transports reduce to: it wraps a
// date lookup as a task closed over its cancellation check and puts it on
// the bounded queue. Results flow back through the deliver callback; a
// cancelled lookup delivers nothing at all.
type Dispatcher struct {
	queue      task.QueueWriter
	aggregator HoursAggregator
	logger     *slog.Logger
}

// NewDispatcher creates a dispatcher writing to the given queue.
func NewDispatcher(queue task.QueueWriter, aggregator HoursAggregator, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{
		queue:      queue,
		aggregator: aggregator,
		logger:     logger.With("component", "dispatcher"),
	}
}

// Submit enqueues a lookup for date. cancelled must capture the session
// scope in force at submission time; deliver is invoked exactly once with
// the summary or a fatal error, or never if the lookup is cancelled. The
// returned error covers enqueueing only.
func (d *Dispatcher) Submit(kind task.Kind, date string, cancelled func() bool, deliver func(worklog.DateSummary, error)) error {
	t := task.New(kind, date, cancelled, func(ctx context.Context) error {
		entries, err := d.aggregator.DailyHours(ctx, date, cancelled)
		if err != nil {
			if errors.Is(err, worklog.ErrCancelled) {
				// Not a failure: a superseded request resolves as no result.
				return nil
			}
			// A superseded lookup shows nothing, not even its failure.
			if cancelled() {
				d.logger.Debug("discarding failure of superseded lookup", "date", date, "kind", kind)
				return nil
			}
			deliver(worklog.DateSummary{}, err)
			return err
		}

		// A straggling lookup may finish after its session moved on; its
		// result is discarded here, never re-delivered.
		if cancelled() {
			d.logger.Debug("discarding result of superseded lookup", "date", date, "kind", kind)
			return nil
		}

		deliver(worklog.Summarize(date, entries), nil)
		return nil
	})

	return d.queue.Enqueue(t)
}
