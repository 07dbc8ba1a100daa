package ranking

import (
	"math"
	"sort"

	"github.com/okian/zonetrust/internal/domain/model"
	"github.com/okian/zonetrust/internal/domain/weather"
)

// Weights are the factors of the weighted sum. They should add up to 1.
type Weights struct {
	Texture    float64 `json:"texture"`
	Confidence float64 `json:"confidence"`
	Time       float64 `json:"time"`
	Weather    float64 `json:"weather"`
	Distance   float64 `json:"distance"`
}

// DefaultWeights returns the production weighting.
func DefaultWeights() Weights {
	return Weights{Texture: 0.30, Confidence: 0.25, Time: 0.15, Weather: 0.15, Distance: 0.15}
}

// ExclusionReason explains why a zone was left out.
type ExclusionReason string

// Exclusion reasons, in the order they are checked.
const (
	ExcludedHazard  ExclusionReason = "hazard"
	ExcludedOffline ExclusionReason = "offline"
	ExcludedVisited ExclusionReason = "visited"
)

// SubScores are the five independent scores of a zone, each in [0, 100].
type SubScores struct {
	Texture    float64 `json:"texture"`
	Confidence float64 `json:"confidence"`
	Time       float64 `json:"time"`
	Weather    float64 `json:"weather"`
	Distance   float64 `json:"distance"`
}

// ZoneRecommendation is one ranked, explained zone.
type ZoneRecommendation struct {
	Zone                model.Zone                `json:"zone"`
	Confidence          model.ZoneConfidenceState `json:"confidence"`
	Scores              SubScores                 `json:"scores"`
	TotalScore          int                       `json:"total_score"`
	Reasons             []string                  `json:"reasons"`
	Warnings            []string                  `json:"warnings"`
	AdjustedWalkability float64                   `json:"adjusted_walkability"`
	AdjustedSafety      float64                   `json:"adjusted_safety"`
	DistanceKm          *float64                  `json:"distance_km,omitempty"`
}

// Summary describes the resolved context of a ranking call.
type Summary struct {
	TimeOfDay      TimeOfDay `json:"time_of_day"`
	Weather        string    `json:"weather"`
	HasUserProfile bool      `json:"has_user_profile"`
}

// Result is the output of Rank.
type Result struct {
	Recommendations []ZoneRecommendation    `json:"recommendations"`
	Excluded        map[ExclusionReason]int `json:"excluded"`
	Summary         Summary                 `json:"summary"`
}

// Ranker scores and orders zones. It holds only configuration and is safe
// for concurrent use.
type Ranker struct {
	weights Weights
	adapter *weather.Adapter
}

// Option applies a configuration option to the Ranker.
type Option func(*Ranker)

// WithWeights replaces the sub-score weighting.
func WithWeights(w Weights) Option {
	return func(r *Ranker) {
		r.weights = w
	}
}

// WithWeatherAdapter sets the adapter translating readings into modifiers.
func WithWeatherAdapter(a *weather.Adapter) Option {
	return func(r *Ranker) {
		if a != nil {
			r.adapter = a
		}
	}
}

// NewRanker creates a ranker with default weights and weather adapter.
func NewRanker(opts ...Option) *Ranker {
	r := &Ranker{
		weights: DefaultWeights(),
		adapter: weather.NewAdapter(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Rank excludes unsuitable zones, scores the rest and returns them best
// first. Zones without a known state are scored as a fresh, neutral zone.
// Ties keep catalog order. zones and lookup are not modified.
func (r *Ranker) Rank(zones []model.Zone, lookup Lookup, ctx RecommendationContext) Result {
	bucket := TimeOfDayAt(ctx.Now)
	var mods *weather.Modifiers
	if ctx.Weather != nil {
		m := r.adapter.Modifiers(ctx.Weather)
		mods = &m
	}
	visited := make(map[string]struct{}, len(ctx.ExcludeZoneIDs))
	for _, id := range ctx.ExcludeZoneIDs {
		visited[id] = struct{}{}
	}

	res := Result{
		Recommendations: make([]ZoneRecommendation, 0, len(zones)),
		Excluded:        make(map[ExclusionReason]int),
		Summary: Summary{
			TimeOfDay:      bucket,
			Weather:        weather.Summary(ctx.Weather),
			HasUserProfile: ctx.Profile != nil,
		},
	}

	for i := range zones {
		z := zones[i]
		state, ok := model.ZoneConfidenceState{}, false
		if lookup != nil {
			state, ok = lookup.State(z.ID)
		}
		if !ok {
			state = model.NewZoneConfidenceState(z.ID, ctx.Now)
		}

		if reason, skip := exclusion(z.ID, state, visited); skip {
			res.Excluded[reason]++
			continue
		}
		res.Recommendations = append(res.Recommendations, r.score(z, state, ctx, bucket, mods))
	}

	sort.SliceStable(res.Recommendations, func(a, b int) bool {
		return res.Recommendations[a].TotalScore > res.Recommendations[b].TotalScore
	})
	if ctx.Limit > 0 && len(res.Recommendations) > ctx.Limit {
		res.Recommendations = res.Recommendations[:ctx.Limit]
	}
	return res
}

func exclusion(zoneID string, s model.ZoneConfidenceState, visited map[string]struct{}) (ExclusionReason, bool) {
	switch {
	case s.HazardActive:
		return ExcludedHazard, true
	case s.State == model.StateOffline:
		return ExcludedOffline, true
	}
	if _, ok := visited[zoneID]; ok {
		return ExcludedVisited, true
	}
	return "", false
}

func (r *Ranker) score(z model.Zone, s model.ZoneConfidenceState, ctx RecommendationContext, bucket TimeOfDay, mods *weather.Modifiers) ZoneRecommendation {
	rec := ZoneRecommendation{
		Zone:                z,
		Confidence:          s,
		AdjustedWalkability: clamp100(z.Walkability),
		AdjustedSafety:      clamp100(z.Safety),
	}
	rec.Scores.Texture = textureScore(z, ctx.Profile)
	rec.Scores.Confidence = confidenceScore(s)
	rec.Scores.Time = timeScore(z.PrimaryTexture, bucket)
	rec.Scores.Weather = weatherScore(z.PrimaryTexture, mods)
	rec.Scores.Distance, rec.DistanceKm = distanceScore(z.Center, ctx.Location)
	if mods != nil {
		rec.AdjustedWalkability = clamp100(z.Walkability + mods.WalkabilityDelta)
		rec.AdjustedSafety = clamp100(z.Safety + mods.SafetyDelta)
	}

	w := r.weights
	total := rec.Scores.Texture*w.Texture +
		rec.Scores.Confidence*w.Confidence +
		rec.Scores.Time*w.Time +
		rec.Scores.Weather*w.Weather +
		rec.Scores.Distance*w.Distance
	rec.TotalScore = int(math.Round(total))

	rec.Reasons = reasons(rec, ctx.Profile != nil, bucket)
	rec.Warnings = warnings(s, mods)
	return rec
}
