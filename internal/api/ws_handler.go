package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/hoursync/hoursync/internal/api/shared"
	"github.com/hoursync/hoursync/internal/session"
	"github.com/hoursync/hoursync/internal/task"
	"github.com/hoursync/hoursync/internal/worklog"
)

const (
	// outboundBuffer sizes the per-connection write queue. With a small
	// worker pool only a handful of results can complete at once.
	outboundBuffer = 32

	defaultWriteTimeout = 10 * time.Second
)

// WSHandler serves the persistent-connection transport. Each connection
// gets a session entry in the registry; lookups submitted on it carry
// cancellation checks scoped to that session, and results are delivered as
// envelopes matching the request's requestId. A session that disconnects
// before a result is ready gets nothing: the result is dropped, never an
// error.
type WSHandler struct {
	registry     *session.Registry
	dispatcher   *Dispatcher
	upgrader     websocket.Upgrader
	validator    *validator.Validate
	logger       *slog.Logger
	writeTimeout time.Duration
}

// NewWSHandler creates a new WSHandler.
func NewWSHandler(registry *session.Registry, dispatcher *Dispatcher, logger *slog.Logger) *WSHandler {
	return &WSHandler{
		registry:   registry,
		dispatcher: dispatcher,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		validator:    validator.New(),
		logger:       logger.With("component", "ws_handler"),
		writeTimeout: defaultWriteTimeout,
	}
}

// HandleWS upgrades GET /api/ws and runs the connection until the client
// goes away.
func (h *WSHandler) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", "error", err)
		return
	}

	sessionID := h.registry.Register()
	logger := h.logger.With("session_id", sessionID)
	logger.Info("session connected")

	outbound := make(chan ResponseEnvelope, outboundBuffer)
	done := make(chan struct{})

	go h.writeLoop(conn, outbound, done, logger)

	h.readLoop(conn, sessionID, outbound, done, logger)

	// Read side finished: the session is over. Marking it disconnected
	// flips every outstanding cancellation check for this session.
	close(done)
	h.registry.MarkDisconnected(sessionID)
	_ = conn.Close()
	logger.Info("session disconnected")
}

// writeLoop owns the write side of the socket. A write failure tears the
// whole connection down: closing the socket unblocks the read loop, which
// ends the session, so pending deliveries drop instead of occupying shared
// workers once the outbound buffer fills behind a dead writer.
func (h *WSHandler) writeLoop(conn *websocket.Conn, outbound <-chan ResponseEnvelope, done <-chan struct{}, logger *slog.Logger) {
	for {
		select {
		case <-done:
			return
		case env := <-outbound:
			_ = conn.SetWriteDeadline(time.Now().Add(h.writeTimeout))
			if err := conn.WriteJSON(env); err != nil {
				logger.Warn("failed to write response envelope, dropping connection", "error", err)
				_ = conn.Close()
				return
			}
		}
	}
}

// readLoop consumes request envelopes until the connection drops.
func (h *WSHandler) readLoop(conn *websocket.Conn, sessionID uuid.UUID, outbound chan<- ResponseEnvelope, done <-chan struct{}, logger *slog.Logger) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logger.Warn("connection read failed", "error", err)
			}
			return
		}

		var env Envelope
		if err := json.Unmarshal(data, &env); err != nil {
			logger.Warn("dropping unparseable envelope", "error", err)
			continue
		}
		var payload ConnPayload
		if err := json.Unmarshal(env.Payload, &payload); err != nil {
			h.deliver(outbound, done, errorEnvelope(env.RequestID, "Invalid payload format"))
			continue
		}
		if err := h.validator.Struct(payload); err != nil {
			h.deliver(outbound, done, errorEnvelope(env.RequestID, "Invalid payload"))
			continue
		}

		switch payload.Action {
		case ActionSetBatchSession:
			// Control message: mutates session state, carries no task and
			// receives no response.
			h.registry.SetBatch(sessionID, payload.BatchKey())

		case ActionSyncLogs:
			h.submitLookup(sessionID, env.RequestID, payload, outbound, done, logger)
		}
	}
}

// submitLookup turns a syncLogs payload into a queued task whose result, if
// any, is delivered back on this connection.
func (h *WSHandler) submitLookup(sessionID uuid.UUID, requestID string, payload ConnPayload, outbound chan<- ResponseEnvelope, done <-chan struct{}, logger *slog.Logger) {
	if _, err := time.Parse("2006-01-02", payload.Date); err != nil {
		h.deliver(outbound, done, errorEnvelope(requestID, "Invalid action or date"))
		return
	}

	kind := task.KindSingle
	if payload.Kind == string(task.KindBatch) {
		kind = task.KindBatch
	}

	// Capture the cancellation scope now, at submission time.
	cancelled := h.registry.CancellationCheckFor(sessionID, kind, payload.BatchKey())

	err := h.dispatcher.Submit(kind, payload.Date, cancelled, func(summary worklog.DateSummary, err error) {
		if err != nil {
			logger.Error("date lookup failed", "date", payload.Date, "error", err)
			h.deliver(outbound, done, errorEnvelope(requestID, GetSafeErrorMessage(err)))
			return
		}
		h.deliver(outbound, done, ResponseEnvelope{
			RequestID: requestID,
			Payload:   newSyncResponse(summary),
		})
	})
	if err != nil {
		logger.Warn("could not enqueue lookup", "date", payload.Date, "error", err)
		h.deliver(outbound, done, errorEnvelope(requestID, GetSafeErrorMessage(err)))
	}
}

// deliver hands an envelope to the write loop, or drops it silently when
// the session is already gone.
func (h *WSHandler) deliver(outbound chan<- ResponseEnvelope, done <-chan struct{}, env ResponseEnvelope) {
	select {
	case <-done:
	case outbound <- env:
	}
}

func errorEnvelope(requestID, message string) ResponseEnvelope {
	return ResponseEnvelope{
		RequestID: requestID,
		Payload:   shared.ErrorResponse{Success: false, Error: message},
	}
}
