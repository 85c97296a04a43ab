package chi

import (
	"github.com/kailas-cloud/hintd/internal/document"
	"github.com/kailas-cloud/hintd/internal/domain/hint"
	sessionuc "github.com/kailas-cloud/hintd/internal/usecase/session"
)

// ErrorCode is the machine-readable error code of an API error.
type ErrorCode string

// API error codes.
const (
	CodeBadRequest       ErrorCode = "bad_request"
	CodeUnauthorized     ErrorCode = "unauthorized"
	CodeValidationFailed ErrorCode = "validation_failed"
	CodeSessionNotFound  ErrorCode = "session_not_found"
	CodeFrameNotFound    ErrorCode = "frame_not_found"
	CodeTooManySessions  ErrorCode = "too_many_sessions"
	CodeNotStarted       ErrorCode = "not_started"
	CodeInvalidDocument  ErrorCode = "invalid_document"
	CodeInternalError    ErrorCode = "internal_error"
)

type errorResponse struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
}

type createSessionRequest struct {
	HTML      string            `json:"html"`
	URL       string            `json:"url,omitempty"`
	Resources map[string]string `json:"resources,omitempty"`
}

type startRequest struct {
	Query    string `json:"query,omitempty"`
	Strategy string `json:"strategy,omitempty"`
}

type filterRequest struct {
	Text string `json:"text"`
}

type selectRequest struct {
	Label string `json:"label"`
}

type hintResponse struct {
	Frame   hint.ContextID `json:"frame"`
	Slot    int            `json:"slot"`
	Index   int            `json:"index"`
	Label   string         `json:"label"`
	Visible bool           `json:"visible"`
	Active  bool           `json:"active"`
	Kind    string         `json:"kind"`
	Text    string         `json:"text"`
	URL     string         `json:"url,omitempty"`
}

type snapshotResponse struct {
	ID       string           `json:"id"`
	Started  bool             `json:"started"`
	Strategy string           `json:"strategy,omitempty"`
	Query    string           `json:"query,omitempty"`
	Filter   string           `json:"filter,omitempty"`
	Total    int              `json:"total"`
	Complete bool             `json:"complete"`
	Epoch    uint64           `json:"epoch"`
	Hints    []hintResponse   `json:"hints"`
	Active   *hintResponse    `json:"active,omitempty"`
	Events   []document.Event `json:"events"`
	Error    string           `json:"error,omitempty"`
}

type healthResponse struct {
	Status   string            `json:"status"`
	Checks   map[string]string `json:"checks"`
	Sessions int               `json:"sessions"`
}

func hintToResponse(h sessionuc.Hint) hintResponse {
	return hintResponse{
		Frame:   h.Frame,
		Slot:    h.Slot,
		Index:   h.Index,
		Label:   h.Label,
		Visible: h.Visible,
		Active:  h.Active,
		Kind:    h.Kind,
		Text:    h.Text,
		URL:     h.URL,
	}
}

func snapshotToResponse(snap sessionuc.Snapshot) snapshotResponse {
	resp := snapshotResponse{
		ID:       snap.ID,
		Started:  snap.Started,
		Strategy: string(snap.Strategy),
		Query:    snap.Query,
		Filter:   snap.Filter,
		Total:    snap.Total,
		Complete: snap.Complete,
		Epoch:    snap.Epoch,
		Hints:    make([]hintResponse, len(snap.Hints)),
		Events:   snap.Events,
	}
	for i, h := range snap.Hints {
		resp.Hints[i] = hintToResponse(h)
	}
	if snap.Active != nil {
		a := hintToResponse(*snap.Active)
		resp.Active = &a
	}
	if resp.Events == nil {
		resp.Events = []document.Event{}
	}
	if snap.Err != nil {
		resp.Error = snap.Err.Error()
	}
	return resp
}
