package service

import (
	"context"
	"fmt"
	"time"

	"github.com/okian/zonetrust/internal/domain/model"
	"github.com/okian/zonetrust/internal/domain/ranking"
	"github.com/okian/zonetrust/internal/domain/weather"
	"github.com/okian/zonetrust/pkg/geo"
	"github.com/okian/zonetrust/pkg/logger"
	"github.com/okian/zonetrust/pkg/metrics"
)

// RecommendRequest asks for ranked zones. Everything is optional.
type RecommendRequest struct {
	Now            *time.Time           `json:"now,omitempty"`
	Weather        *weather.Reading     `json:"weather,omitempty"`
	Location       *geo.Point           `json:"location,omitempty"`
	Profile        *ranking.UserProfile `json:"profile,omitempty"`
	ExcludeZoneIDs []string             `json:"exclude_zone_ids,omitempty"`
	// ZoneIDs restricts the candidates to these catalog zones.
	ZoneIDs []string `json:"zone_ids,omitempty"`
	Limit   int      `json:"limit,omitempty"`
}

// PutWeather caches a reading for the area around location.
func (s *Service) PutWeather(ctx context.Context, location geo.Point, r weather.Reading) error { //nolint:gocritic // hugeParam: readings are values
	if !location.Valid() {
		return fmt.Errorf("%w: invalid location", ErrInvalidRequest)
	}
	if err := r.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	now := s.now()
	if r.ObservedAt.IsZero() {
		r.ObservedAt = now
	}
	s.weather.Put(location, r, now)
	s.weather.EvictExpired(now)
	metrics.UpdateWeatherCacheEntries(s.weather.Len())
	s.logger.Debug(ctx, "weather cached",
		logger.Float64("lat", location.Lat),
		logger.Float64("lon", location.Lon),
		logger.String("weather", weather.Summary(&r)),
	)
	return nil
}

// Recommend ranks catalog zones for the request. Zones under an active hazard,
// offline or already visited are left out and counted.
func (s *Service) Recommend(ctx context.Context, req RecommendRequest) (ranking.Result, error) { //nolint:gocritic // hugeParam: requests are values
	start := time.Now()

	rc, err := s.recommendationContext(req)
	if err != nil {
		return ranking.Result{}, err
	}

	zones, err := s.store.Zones(ctx)
	if err != nil {
		return ranking.Result{}, fmt.Errorf("load zones: %w", err)
	}
	zones = restrict(zones, req.ZoneIDs)

	states, err := s.store.ListStates(ctx)
	if err != nil {
		return ranking.Result{}, fmt.Errorf("load states: %w", err)
	}
	lookup := make(ranking.StateMap, len(states))
	for i := range states {
		lookup[states[i].ZoneID] = states[i]
	}

	res := s.ranker.Rank(zones, lookup, rc)

	metrics.RecordRecommendation(float64(time.Since(start).Microseconds()) / 1000)
	for reason, n := range res.Excluded {
		metrics.RecordZonesExcluded(string(reason), n)
	}
	s.logger.Debug(ctx, "recommendations ranked",
		logger.Int("candidates", len(zones)),
		logger.Int("returned", len(res.Recommendations)),
		logger.String("timeOfDay", string(res.Summary.TimeOfDay)),
	)
	return res, nil
}

func (s *Service) recommendationContext(req RecommendRequest) (ranking.RecommendationContext, error) { //nolint:gocritic // hugeParam: requests are values
	switch {
	case req.Limit < 0:
		return ranking.RecommendationContext{}, fmt.Errorf("%w: negative limit", ErrInvalidRequest)
	case req.Location != nil && !req.Location.Valid():
		return ranking.RecommendationContext{}, fmt.Errorf("%w: invalid location", ErrInvalidRequest)
	}
	if req.Weather != nil {
		if err := req.Weather.Validate(); err != nil {
			return ranking.RecommendationContext{}, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
		}
	}
	if req.Profile != nil {
		for _, t := range append(append([]model.Texture(nil), req.Profile.PreferredTextures...), req.Profile.AvoidedTextures...) {
			if !t.Valid() {
				return ranking.RecommendationContext{}, fmt.Errorf("%w: unknown texture %q", ErrInvalidRequest, t)
			}
		}
	}

	now := s.now()
	if req.Now != nil && !req.Now.IsZero() {
		now = *req.Now
	}

	reading := req.Weather
	if reading == nil && req.Location != nil {
		if cached, ok := s.weather.Get(*req.Location, s.now()); ok {
			reading = cached
		}
	}

	limit := req.Limit
	if limit == 0 || limit > s.maxRecommendations {
		limit = s.maxRecommendations
	}

	return ranking.RecommendationContext{
		Now:            now,
		Weather:        reading,
		Location:       req.Location,
		Profile:        req.Profile,
		ExcludeZoneIDs: req.ExcludeZoneIDs,
		Limit:          limit,
	}, nil
}

// restrict keeps the zones named in ids, in catalog order. Empty ids keeps all.
func restrict(zones []model.Zone, ids []string) []model.Zone {
	if len(ids) == 0 {
		return zones
	}
	want := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		want[id] = struct{}{}
	}
	out := make([]model.Zone, 0, len(ids))
	for i := range zones {
		if _, ok := want[zones[i].ID]; ok {
			out = append(out, zones[i])
		}
	}
	return out
}
