package api

import (
	"encoding/json"

	"github.com/hoursync/hoursync/internal/worklog"
)

// Inbound actions shared by both transports.
const (
	ActionSyncLogs        = "syncLogs"
	ActionGetDateHours    = "getDateHours"
	ActionSetBatchSession = "setBatchSession"
)

// SyncRequest is the one-shot request body for a date lookup.
type SyncRequest struct {
	Action string `json:"action" validate:"required,oneof=syncLogs getDateHours"`
	Date   string `json:"date"   validate:"required,datetime=2006-01-02"`
}

// SyncResponse is the successful answer for a syncLogs lookup.
type SyncResponse struct {
	Success    bool                 `json:"success"`
	Count      int                  `json:"count"`
	Logs       []worklog.IssueHours `json:"logs"`
	TotalHours string               `json:"totalHours"`
}

// HoursResponse is the successful answer for a getDateHours lookup, which
// carries the total as a number rather than a display string.
type HoursResponse struct {
	Success    bool    `json:"success"`
	TotalHours float64 `json:"totalHours"`
}

// Envelope frames every message on the persistent connection. Responses
// echo the requestId of the request they answer; control messages receive
// no response at all.
type Envelope struct {
	RequestID string          `json:"requestId"`
	Payload   json.RawMessage `json:"payload"`
}

// ResponseEnvelope is the outbound counterpart of Envelope.
type ResponseEnvelope struct {
	RequestID string      `json:"requestId"`
	Payload   interface{} `json:"payload"`
}

// ConnPayload is the body of a persistent-connection message: either a date
// lookup (syncLogs, with an optional cancellation scope) or the
// setBatchSession control message that mutates session state only.
type ConnPayload struct {
	Action          string `json:"action"          validate:"required,oneof=syncLogs setBatchSession"`
	Date            string `json:"date,omitempty"`
	Kind            string `json:"kind,omitempty"  validate:"omitempty,oneof=single batch"`
	BatchSessionID  string `json:"batchSessionId,omitempty"`
	BatchSessionKey string `json:"batchSessionKey,omitempty"`
}

// BatchKey combines the payload's batch identifiers into the registry's
// batch key. A new popup instance and a new prefetch month both produce a
// distinct key, so either one supersedes older batch-scoped work.
func (p ConnPayload) BatchKey() string {
	if p.BatchSessionID == "" {
		return p.BatchSessionKey
	}
	return p.BatchSessionID + ":" + p.BatchSessionKey
}

// newSyncResponse builds the syncLogs answer from a computed summary.
func newSyncResponse(summary worklog.DateSummary) SyncResponse {
	return SyncResponse{
		Success:    true,
		Count:      summary.Count,
		Logs:       summary.Logs,
		TotalHours: summary.TotalHours,
	}
}
