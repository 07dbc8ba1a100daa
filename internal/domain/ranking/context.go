// Package ranking orders zones for a visitor from their confidence state and
// the request context. Ranking is a pure function of its inputs: identical
// inputs at the same instant produce identical output.
package ranking

import (
	"time"

	"github.com/okian/zonetrust/internal/domain/model"
	"github.com/okian/zonetrust/internal/domain/weather"
	"github.com/okian/zonetrust/pkg/geo"
)

// ActivityLevel is how energetic a visitor wants the outing to be.
type ActivityLevel string

// Activity levels. The empty value expresses no preference.
const (
	ActivityActive  ActivityLevel = "ACTIVE"
	ActivityRelaxed ActivityLevel = "RELAXED"
)

// UserProfile is the optional preference profile of the requesting visitor.
type UserProfile struct {
	PreferredTextures []model.Texture `json:"preferred_textures,omitempty"`
	AvoidedTextures   []model.Texture `json:"avoided_textures,omitempty"`
	ActivityLevel     ActivityLevel   `json:"activity_level,omitempty"`
}

// RecommendationContext is the per-request input to Rank. It is never stored.
type RecommendationContext struct {
	Now            time.Time        `json:"now"`
	Weather        *weather.Reading `json:"weather,omitempty"`
	Location       *geo.Point       `json:"location,omitempty"`
	Profile        *UserProfile     `json:"profile,omitempty"`
	ExcludeZoneIDs []string         `json:"exclude_zone_ids,omitempty"`
	Limit          int              `json:"limit,omitempty"`
}

// TimeOfDay is the coarse bucket used for time affinity.
type TimeOfDay string

// Time-of-day buckets.
const (
	Morning   TimeOfDay = "MORNING"
	Afternoon TimeOfDay = "AFTERNOON"
	Evening   TimeOfDay = "EVENING"
	Night     TimeOfDay = "NIGHT"
)

// TimeOfDayAt buckets t by its wall-clock hour in t's own location.
func TimeOfDayAt(t time.Time) TimeOfDay {
	switch h := t.Hour(); {
	case h >= 5 && h < 12:
		return Morning
	case h >= 12 && h < 17:
		return Afternoon
	case h >= 17 && h < 21:
		return Evening
	default:
		return Night
	}
}

// Lookup resolves a zone's current confidence state.
type Lookup interface {
	State(zoneID string) (model.ZoneConfidenceState, bool)
}

// StateMap is a Lookup backed by a snapshot map.
type StateMap map[string]model.ZoneConfidenceState

// State implements Lookup.
func (m StateMap) State(zoneID string) (model.ZoneConfidenceState, bool) {
	s, ok := m[zoneID]
	return s, ok
}
