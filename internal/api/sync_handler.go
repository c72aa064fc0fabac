package api

import (
	"log/slog"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/hoursync/hoursync/internal/api/shared"
	"github.com/hoursync/hoursync/internal/task"
	"github.com/hoursync/hoursync/internal/worklog"
)

// SyncHandler serves the one-shot transport: a single HTTP request per date
// lookup. One-shot calls have no session lifecycle, so there is no
// meaningful cancellation surface; they run single-scoped and best-effort.
type SyncHandler struct {
	dispatcher *Dispatcher
	validator  *validator.Validate
	logger     *slog.Logger
}

// NewSyncHandler creates a new SyncHandler.
func NewSyncHandler(dispatcher *Dispatcher, logger *slog.Logger) *SyncHandler {
	return &SyncHandler{
		dispatcher: dispatcher,
		validator:  validator.New(),
		logger:     logger.With("component", "sync_handler"),
	}
}

// HandleSync handles POST /api/worklogs requests.
func (h *SyncHandler) HandleSync(w http.ResponseWriter, r *http.Request) {
	var req SyncRequest
	if err := shared.DecodeJSON(r, &req); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid request format")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid action or date")
		return
	}

	type lookupResult struct {
		summary worklog.DateSummary
		err     error
	}
	resultCh := make(chan lookupResult, 1)

	neverCancelled := func() bool { return false }
	err := h.dispatcher.Submit(task.KindSingle, req.Date, neverCancelled, func(summary worklog.DateSummary, err error) {
		resultCh <- lookupResult{summary: summary, err: err}
	})
	if err != nil {
		h.logger.Warn("could not enqueue lookup", "date", req.Date, "error", err)
		shared.RespondWithError(w, r, MapErrorToStatusCode(err), GetSafeErrorMessage(err))
		return
	}

	select {
	case res := <-resultCh:
		if res.err != nil {
			h.logger.Error("date lookup failed", "date", req.Date, "error", res.err)
			shared.RespondWithError(w, r, MapErrorToStatusCode(res.err), GetSafeErrorMessage(res.err))
			return
		}
		if req.Action == ActionGetDateHours {
			shared.RespondWithJSON(w, r, http.StatusOK, HoursResponse{
				Success:    true,
				TotalHours: res.summary.TotalHoursValue(),
			})
			return
		}
		shared.RespondWithJSON(w, r, http.StatusOK, newSyncResponse(res.summary))

	case <-r.Context().Done():
		// Caller went away; the task still runs, its result is dropped.
		h.logger.Debug("one-shot caller disconnected before completion", "date", req.Date)
	}
}
