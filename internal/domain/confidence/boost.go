package confidence

import (
	"math"

	"github.com/okian/zonetrust/internal/domain/model"
)

// Reputation mapping used by TrustWeightFromReputation.
const (
	reputationBaseWeight = 0.5
	reputationPerWeight  = 1000.0
)

// IntelBoost returns the points a single report adds, using the default tuning.
func IntelBoost(t model.IntelType, trustWeight float64, recentCount int) float64 {
	return defaults.IntelBoost(t, trustWeight, recentCount)
}

// IntelBoost returns the points a single report adds before the 24h cap.
//
// The per-type base is scaled by the contributor's trust weight and by a
// diminishing factor over reports already received in the last 24h, then
// capped per submission. Hazard reports never add trust.
func (p Params) IntelBoost(t model.IntelType, trustWeight float64, recentCount int) float64 {
	if t == model.IntelHazardReport {
		return 0
	}
	base, ok := p.BaseBoost[t]
	if !ok || base <= 0 {
		return 0
	}
	if math.IsNaN(trustWeight) {
		trustWeight = p.MinTrustWeight
	}
	weight := clamp(trustWeight, p.MinTrustWeight, p.MaxTrustWeight)
	if recentCount < 0 {
		recentCount = 0
	}
	diminishing := math.Max(p.DiminishingFloor, 1-p.DiminishingStep*float64(recentCount))
	return math.Min(base*weight*diminishing, p.MaxBoostPerSubmission)
}

// TrustWeightFromReputation maps a contributor reputation (0 and up, 500 being
// an established contributor) onto the trust weight scale.
func TrustWeightFromReputation(reputation int) float64 {
	if reputation < 0 {
		reputation = 0
	}
	w := reputationBaseWeight + float64(reputation)/reputationPerWeight
	return clamp(w, defaultMinTrustWeight, defaultMaxTrustWeight)
}
