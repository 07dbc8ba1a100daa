package api

import (
	"context"
	"errors"
	"net/http"

	service "github.com/okian/zonetrust/internal/app"
	"github.com/okian/zonetrust/internal/domain/model"
)

// IntelDependencies defines the interface for intel ingestion.
type IntelDependencies interface {
	Submit(ctx context.Context, r model.IntelReport) (model.IntelSubmission, error)
}

// IntelHandler handles intel submissions.
type IntelHandler struct {
	deps IntelDependencies
}

// NewIntelHandler creates a new intel handler.
func NewIntelHandler(deps IntelDependencies) *IntelHandler {
	return &IntelHandler{deps: deps}
}

type ackResponse struct {
	Status    string `json:"status"`
	ID        string `json:"id,omitempty"`
	ZoneID    string `json:"zone_id,omitempty"`
	Duplicate bool   `json:"duplicate"`
}

// HandlePostIntel handles POST /intel requests. Accepted reports are applied
// asynchronously.
func (h *IntelHandler) HandlePostIntel(w http.ResponseWriter, r *http.Request) {
	const op = "api.post_intel"

	var req model.IntelReport
	if err := decodeBody(w, r, op, &req); err != nil {
		writeServiceError(w, err)
		return
	}

	sub, err := h.deps.Submit(r.Context(), req)
	switch {
	case errors.Is(err, service.ErrDuplicate):
		writeJSON(w, http.StatusOK, ackResponse{Status: "duplicate", ID: sub.ID, ZoneID: sub.ZoneID, Duplicate: true})
	case errors.Is(err, service.ErrBackpressure):
		writeError(w, http.StatusTooManyRequests, "backpressure", WrapKind(op, ErrBackpressure, err))
	case err != nil:
		writeServiceError(w, err)
	default:
		writeJSON(w, http.StatusAccepted, ackResponse{Status: "accepted", ID: sub.ID, ZoneID: sub.ZoneID})
	}
}
