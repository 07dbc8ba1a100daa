package api

import (
	"context"
	"fmt"
	"net/http"
	"strconv"

	"github.com/okian/zonetrust/internal/domain/model"
)

// ZoneDependencies defines the interface for catalog and confidence reads.
type ZoneDependencies interface {
	ConfidenceOf(ctx context.Context, zoneID string) (model.ZoneConfidenceState, error)
	AuditTrail(ctx context.Context, zoneID string, limit int) ([]model.AuditEntry, error)
	Tick(ctx context.Context, zoneID string) (model.ZoneConfidenceState, error)
	PutZones(ctx context.Context, zones []model.Zone) error
	ListZones(ctx context.Context) ([]model.Zone, error)
}

// ZonesHandler handles zone requests.
type ZonesHandler struct {
	deps ZoneDependencies
}

// NewZonesHandler creates a new zones handler.
func NewZonesHandler(deps ZoneDependencies) *ZonesHandler {
	return &ZonesHandler{deps: deps}
}

type zonesRequest struct {
	Zones []model.Zone `json:"zones"`
}

type zonesResponse struct {
	Zones []model.Zone `json:"zones"`
	Count int          `json:"count"`
}

type auditResponse struct {
	ZoneID  string             `json:"zone_id"`
	Entries []model.AuditEntry `json:"entries"`
}

// HandleListZones handles GET /zones requests.
func (h *ZonesHandler) HandleListZones(w http.ResponseWriter, r *http.Request) {
	zones, err := h.deps.ListZones(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if zones == nil {
		zones = []model.Zone{}
	}
	writeJSON(w, http.StatusOK, zonesResponse{Zones: zones, Count: len(zones)})
}

// HandlePutZones handles PUT /zones requests.
func (h *ZonesHandler) HandlePutZones(w http.ResponseWriter, r *http.Request) {
	const op = "api.put_zones"

	var req zonesRequest
	if err := decodeBody(w, r, op, &req); err != nil {
		writeServiceError(w, err)
		return
	}
	if err := h.deps.PutZones(r.Context(), req.Zones); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"stored": len(req.Zones)})
}

// HandleGetConfidence handles GET /zones/{id}/confidence requests.
func (h *ZonesHandler) HandleGetConfidence(w http.ResponseWriter, r *http.Request) {
	st, err := h.deps.ConfidenceOf(r.Context(), r.PathValue("id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// HandleGetAudit handles GET /zones/{id}/audit?limit=N requests.
func (h *ZonesHandler) HandleGetAudit(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_audit"

	var limit int
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeServiceError(w, WrapKind(op, ErrBadRequest, fmt.Errorf("invalid limit %q", raw)))
			return
		}
		limit = n
	}

	id := r.PathValue("id")
	entries, err := h.deps.AuditTrail(r.Context(), id, limit)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if entries == nil {
		entries = []model.AuditEntry{}
	}
	writeJSON(w, http.StatusOK, auditResponse{ZoneID: id, Entries: entries})
}

// HandleTick handles POST /zones/{id}/tick requests.
func (h *ZonesHandler) HandleTick(w http.ResponseWriter, r *http.Request) {
	st, err := h.deps.Tick(r.Context(), r.PathValue("id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}
