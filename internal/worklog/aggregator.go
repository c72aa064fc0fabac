// Package worklog aggregates per-issue time records from the tracker into
// daily hour summaries for a single user.
package worklog

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/hoursync/hoursync/internal/jira"
)

// ErrCancelled is returned when a lookup was abandoned because its session
// was superseded or disconnected. It is not a failure: callers must deliver
// nothing for a cancelled lookup, never a zero-hours answer.
var ErrCancelled = errors.New("date lookup cancelled")

// startedLayouts are the timestamp formats the tracker uses for worklog
// start instants. The first is the tracker's native millisecond format with
// a numeric offset.
var startedLayouts = []string{
	"2006-01-02T15:04:05.000-0700",
	time.RFC3339,
}

// TrackerClient is the slice of the tracker client the aggregator depends on.
type TrackerClient interface {
	WhoAmI(ctx context.Context) (*jira.User, error)
	SearchIssues(ctx context.Context, jql string, maxResults int) ([]string, error)
	IssueWorklogs(ctx context.Context, issueKey string) ([]jira.Worklog, error)
}

// Entry is one matched worklog occurrence: hours spent on an issue on the
// target date. Multiple entries may share an issue key; Summarize groups them.
type Entry struct {
	IssueKey string
	Hours    float64
}

// Aggregator fetches and filters worklogs for single calendar dates.
type Aggregator struct {
	client     TrackerClient
	location   *time.Location
	fanout     int
	maxResults int
	logger     *slog.Logger

	// The resolved account id is process-wide state, written at most once.
	identityOnce sync.Once
	accountID    string
}

// NewAggregator creates an aggregator. fanout bounds concurrent per-issue
// worklog fetches inside one lookup; maxResults caps the issue search.
func NewAggregator(client TrackerClient, location *time.Location, fanout, maxResults int, logger *slog.Logger) *Aggregator {
	return &Aggregator{
		client:     client,
		location:   location,
		fanout:     fanout,
		maxResults: maxResults,
		logger:     logger.With("component", "worklog_aggregator"),
	}
}

// DailyHours returns every worklog occurrence authored by the current user
// on exactly the given date (YYYY-MM-DD, interpreted in the configured
// timezone). A zero-issue search is an empty result, not an error. A failed
// identity resolution degrades to unfiltered aggregation. A failed per-issue
// fetch degrades that issue to zero worklogs. A fatal search failure aborts
// the whole lookup.
//
// cancelled is consulted before the search, after the search, and before
// consuming each issue's fan-out result; once it reports true the lookup
// returns ErrCancelled and any partial results are discarded.
func (a *Aggregator) DailyHours(ctx context.Context, date string, cancelled func() bool) ([]Entry, error) {
	if cancelled() {
		return nil, ErrCancelled
	}

	accountID := a.currentAccountID(ctx)

	if cancelled() {
		return nil, ErrCancelled
	}
	keys, err := a.client.SearchIssues(ctx, dailyWorklogJQL(accountID, date), a.maxResults)
	if err != nil {
		return nil, fmt.Errorf("searching issues with worklogs: %w", err)
	}
	if cancelled() {
		return nil, ErrCancelled
	}
	if len(keys) == 0 {
		return []Entry{}, nil
	}

	// Fan out per-issue worklog fetches under the inner concurrency bound.
	// This tier is distinct from the outer task queue: it spreads one
	// lookup's calls, not calls across lookups. All results are collected
	// before filtering proceeds.
	type issueResult struct {
		key      string
		worklogs []jira.Worklog
	}
	results := make(chan issueResult, len(keys))
	sem := make(chan struct{}, a.fanout)
	var wg sync.WaitGroup
	for _, key := range keys {
		wg.Add(1)
		go func(key string) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			worklogs, err := a.client.IssueWorklogs(ctx, key)
			if err != nil {
				// Partial results beat total failure: one broken issue
				// becomes zero worklogs for that issue.
				a.logger.Warn("worklog fetch failed, treating issue as empty",
					"issue_key", key,
					"error", err)
				results <- issueResult{key: key}
				return
			}
			results <- issueResult{key: key, worklogs: worklogs}
		}(key)
	}
	wg.Wait()
	close(results)

	var entries []Entry
	for res := range results {
		if cancelled() {
			return nil, ErrCancelled
		}
		for _, w := range res.worklogs {
			hours, ok := a.matchEntry(w, date, accountID)
			if !ok {
				continue
			}
			entries = append(entries, Entry{IssueKey: res.key, Hours: hours})
		}
	}
	return entries, nil
}

// currentAccountID resolves the authenticated user's account id once per
// process. Resolution failure is cached too: the lookup proceeds without
// author filtering rather than failing outright.
func (a *Aggregator) currentAccountID(ctx context.Context) string {
	a.identityOnce.Do(func() {
		user, err := a.client.WhoAmI(ctx)
		if err != nil {
			a.logger.Warn("could not resolve current user, aggregating without author filter",
				"error", err)
			return
		}
		a.accountID = user.AccountID
		a.logger.Info("resolved current user", "account_id", user.AccountID)
	})
	return a.accountID
}

// matchEntry decides whether a worklog entry counts toward the target date
// and returns its hours if so.
func (a *Aggregator) matchEntry(w jira.Worklog, date, accountID string) (float64, bool) {
	if w.Started == "" {
		return 0, false
	}
	if accountID != "" && w.Author.AccountID != accountID {
		return 0, false
	}

	started, err := parseStarted(w.Started)
	if err != nil {
		a.logger.Debug("skipping worklog with unparseable start", "started", w.Started)
		return 0, false
	}
	// The entry belongs to whichever local calendar day its instant falls
	// on in the configured timezone; compare by exact string equality.
	if started.In(a.location).Format("2006-01-02") != date {
		return 0, false
	}

	secs := w.TimeSpentSeconds
	if math.IsNaN(secs) || math.IsInf(secs, 0) || secs < 0 {
		return 0, false
	}
	return secs / 3600, true
}

func parseStarted(started string) (time.Time, error) {
	var lastErr error
	for _, layout := range startedLayouts {
		t, err := time.Parse(layout, started)
		if err == nil {
			return t, nil
		}
		lastErr = err
	}
	return time.Time{}, lastErr
}

// dailyWorklogJQL builds the scoped search query. Scoping to the author and
// the exact date keeps the fan-out small; global worklog history is never
// fetched. Without a resolved author the query falls back to date-only.
func dailyWorklogJQL(accountID, date string) string {
	clauses := make([]string, 0, 2)
	if accountID != "" {
		clauses = append(clauses, fmt.Sprintf("worklogAuthor = %q", accountID))
	}
	clauses = append(clauses, fmt.Sprintf("worklogDate = %q", date))
	return strings.Join(clauses, " AND ")
}
