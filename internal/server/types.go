package server

import (
	"github.com/danielpatrickdp/speaking-coach/internal/engine"
	"github.com/danielpatrickdp/speaking-coach/internal/notify"
)

// #region requests

// StartRequest names the module to run, e.g. "energizer/intro.json".
type StartRequest struct {
	Config string `json:"config" binding:"required"`
}

// SubmitRequest carries one learner answer.
type SubmitRequest struct {
	SessionID string `json:"session_id" binding:"required"`
	Field     string `json:"field" binding:"required"`
	Text      string `json:"text"`
}

// SkipRequest abandons the active field or the summary step.
type SkipRequest struct {
	SessionID string `json:"session_id" binding:"required"`
	Field     string `json:"field" binding:"required"`
}

// #endregion

// #region responses

// StartResponse is returned by /start-module.
type StartResponse struct {
	Status      string       `json:"status"`
	SessionID   string       `json:"session_id"`
	Module      string       `json:"module"`
	State       engine.State `json:"state"`
	ActiveField string       `json:"active_field,omitempty"`
}

// SummaryResponse is returned by /get-summary.
type SummaryResponse struct {
	SessionID    string            `json:"session_id"`
	FilledFields map[string]string `json:"filled_fields"`
	FieldScores  map[string]bool   `json:"field_scores"`
}

// ModulesResponse is returned by /list-modules.
type ModulesResponse struct {
	Modules []string `json:"modules"`
}

// EventsResponse is one page of a session's event history. Next is the
// cursor for the following request.
type EventsResponse struct {
	SessionID string         `json:"session_id"`
	Events    []notify.Event `json:"events"`
	Next      int            `json:"next"`
}

// HealthResponse is returned by /healthz.
type HealthResponse struct {
	Status   string `json:"status"`
	Sessions int    `json:"sessions"`
	Clients  int    `json:"ws_clients"`
}

// ErrorResponse is the body of every non-2xx reply.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

// #endregion
