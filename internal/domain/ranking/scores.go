package ranking

import (
	"math"
	"slices"

	"github.com/okian/zonetrust/internal/domain/model"
	"github.com/okian/zonetrust/internal/domain/weather"
	"github.com/okian/zonetrust/pkg/geo"
)

// Neutral sub-scores used when an input is missing.
const (
	noProfileTextureScore = 70.0
	defaultTimeScore      = 60.0
	noWeatherScore        = 70.0
	noLocationScore       = 70.0
)

// Texture scoring.
const (
	profileBaseScore    = 50.0
	primaryMatchBonus   = 40.0
	secondaryMatchBonus = 25.0
	avoidedPenalty      = 30.0
	activityBonus       = 10.0
)

const anomalyConfidencePenalty = 20.0

var confidenceScores = map[model.ConfidenceLevel]float64{
	model.LevelHigh:     100,
	model.LevelMedium:   75,
	model.LevelLow:      50,
	model.LevelDegraded: 25,
	model.LevelUnknown:  10,
}

// timeAffinity scores how well a texture suits a time-of-day bucket.
// Unlisted pairs score defaultTimeScore.
var timeAffinity = map[TimeOfDay]map[model.Texture]float64{
	Morning: {
		model.TextureCafeDistrict: 90,
		model.TextureMarket:       90,
		model.TexturePark:         85,
		model.TextureHistoric:     80,
		model.TextureAdventure:    80,
		model.TextureWaterfront:   75,
		model.TextureCultural:     70,
		model.TextureShopping:     55,
		model.TextureNightlife:    15,
	},
	Afternoon: {
		model.TextureShopping:     85,
		model.TextureCultural:     85,
		model.TextureHistoric:     85,
		model.TextureWaterfront:   80,
		model.TextureAdventure:    80,
		model.TexturePark:         75,
		model.TextureCafeDistrict: 75,
		model.TextureMarket:       70,
		model.TextureNightlife:    30,
	},
	Evening: {
		model.TextureWaterfront:   90,
		model.TextureNightlife:    85,
		model.TextureCafeDistrict: 70,
		model.TextureHistoric:     65,
		model.TextureShopping:     65,
		model.TexturePark:         50,
		model.TextureAdventure:    40,
	},
	Night: {
		model.TextureNightlife:   95,
		model.TextureWaterfront:  45,
		model.TextureHistoric:    35,
		model.TextureMarket:      25,
		model.TextureShopping:    25,
		model.TexturePark:        20,
		model.TextureAdventure:   15,
		model.TextureResidential: 40,
	},
}

// distanceBands maps an upper bound in km to a score; beyond the last band
// the score is farScore.
var distanceBands = []struct {
	maxKm float64
	score float64
}{
	{0.5, 100},
	{1, 90},
	{2, 80},
	{5, 60},
	{10, 40},
}

const farScore = 20.0

func textureScore(z model.Zone, profile *UserProfile) float64 {
	if profile == nil {
		return noProfileTextureScore
	}
	score := profileBaseScore
	if slices.Contains(profile.PreferredTextures, z.PrimaryTexture) {
		score += primaryMatchBonus
	}
	for _, t := range z.SecondaryTextures {
		if slices.Contains(profile.PreferredTextures, t) {
			score += secondaryMatchBonus
			break
		}
	}
	if avoided(z, profile.AvoidedTextures) {
		score -= avoidedPenalty
	}
	switch profile.ActivityLevel {
	case ActivityActive:
		if z.PrimaryTexture.IsActive() {
			score += activityBonus
		}
	case ActivityRelaxed:
		if z.PrimaryTexture.IsRelaxed() {
			score += activityBonus
		}
	}
	return clamp100(score)
}

func avoided(z model.Zone, list []model.Texture) bool {
	if slices.Contains(list, z.PrimaryTexture) {
		return true
	}
	for _, t := range z.SecondaryTextures {
		if slices.Contains(list, t) {
			return true
		}
	}
	return false
}

func confidenceScore(s model.ZoneConfidenceState) float64 {
	score, ok := confidenceScores[s.Level]
	if !ok {
		score = confidenceScores[model.LevelUnknown]
	}
	if s.AnomalyDetected {
		score -= anomalyConfidencePenalty
	}
	return clamp100(score)
}

func timeScore(t model.Texture, bucket TimeOfDay) float64 {
	if score, ok := timeAffinity[bucket][t]; ok {
		return score
	}
	return defaultTimeScore
}

// weatherScore applies the outdoor penalty or indoor bonus to the zone's
// primary texture and then the generic walkability and safety shift.
func weatherScore(t model.Texture, m *weather.Modifiers) float64 {
	if m == nil {
		return noWeatherScore
	}
	score := noWeatherScore
	if t.IsOutdoor() {
		score -= m.OutdoorPenalty
	}
	if t.IsIndoor() {
		score += m.IndoorBonus
	}
	score += (m.WalkabilityDelta + m.SafetyDelta) / 2
	return clamp100(score)
}

func distanceScore(center geo.Point, from *geo.Point) (float64, *float64) {
	if from == nil || !from.Valid() {
		return noLocationScore, nil
	}
	km := geo.DistanceKm(*from, center)
	for _, b := range distanceBands {
		if km < b.maxKm {
			return b.score, &km
		}
	}
	return farScore, &km
}

func clamp100(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return math.Max(0, math.Min(100, v))
}
