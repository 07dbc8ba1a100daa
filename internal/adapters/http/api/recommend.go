package api

import (
	"context"
	"errors"
	"net/http"

	service "github.com/okian/zonetrust/internal/app"
	"github.com/okian/zonetrust/internal/domain/ranking"
	"github.com/okian/zonetrust/internal/domain/weather"
	"github.com/okian/zonetrust/pkg/geo"
)

// RecommendDependencies defines the interface for ranking and weather input.
type RecommendDependencies interface {
	Recommend(ctx context.Context, req service.RecommendRequest) (ranking.Result, error)
	PutWeather(ctx context.Context, location geo.Point, r weather.Reading) error
}

// RecommendHandler handles recommendation requests.
type RecommendHandler struct {
	deps RecommendDependencies
}

// NewRecommendHandler creates a new recommendation handler.
func NewRecommendHandler(deps RecommendDependencies) *RecommendHandler {
	return &RecommendHandler{deps: deps}
}

type weatherRequest struct {
	Location *geo.Point      `json:"location"`
	Reading  weather.Reading `json:"reading"`
}

// HandleRecommend handles POST /recommendations requests. An empty body asks
// for the default ranking.
func (h *RecommendHandler) HandleRecommend(w http.ResponseWriter, r *http.Request) {
	const op = "api.recommend"

	var req service.RecommendRequest
	if r.ContentLength != 0 {
		if err := decodeBody(w, r, op, &req); err != nil && !errors.Is(err, errEmptyBody) {
			writeServiceError(w, err)
			return
		}
	}

	res, err := h.deps.Recommend(r.Context(), req)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// HandlePutWeather handles POST /weather requests.
func (h *RecommendHandler) HandlePutWeather(w http.ResponseWriter, r *http.Request) {
	const op = "api.put_weather"

	var req weatherRequest
	if err := decodeBody(w, r, op, &req); err != nil {
		writeServiceError(w, err)
		return
	}
	if req.Location == nil {
		writeServiceError(w, WrapKind(op, ErrBadRequest, errors.New("location is required")))
		return
	}
	if err := h.deps.PutWeather(r.Context(), *req.Location, req.Reading); err != nil {
		writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
