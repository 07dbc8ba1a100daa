package confidence

import (
	"math"
	"time"
)

const hoursPerDay = 24.0

// Decay returns the points to subtract from score for intel last seen at
// lastIntel, using the default tuning.
func Decay(score float64, lastIntel *time.Time, now time.Time) float64 {
	return defaults.Decay(score, lastIntel, now)
}

// Decay returns the points to subtract from score.
//
// Intel younger than the grace window costs nothing; past it the score erodes
// linearly at DecayRatePerDay. A zone that never received intel erodes by one
// day's worth. A lastIntel in the future counts as no elapsed time. The result
// never pushes score below ScoreFloor.
func (p Params) Decay(score float64, lastIntel *time.Time, now time.Time) float64 {
	return p.DecaySince(score, lastIntel, nil, now)
}

// DecaySince is Decay restricted to time not yet charged. decayedThrough marks
// the instant up to which earlier updates already subtracted decay; only the
// part of [max(lastIntel+grace, decayedThrough), now] is charged again. With a
// nil decayedThrough it equals Decay.
func (p Params) DecaySince(score float64, lastIntel, decayedThrough *time.Time, now time.Time) float64 {
	var raw float64
	switch {
	case lastIntel == nil && decayedThrough == nil:
		raw = p.DecayRatePerDay
	case lastIntel == nil:
		raw = p.DecayRatePerDay * daysBetween(*decayedThrough, now)
	default:
		start := lastIntel.Add(p.DecayGrace)
		if decayedThrough != nil && decayedThrough.After(start) {
			start = *decayedThrough
		}
		raw = p.DecayRatePerDay * daysBetween(start, now)
	}

	headroom := sanitize(score) - ScoreFloor
	if headroom <= 0 || raw <= 0 || math.IsNaN(raw) {
		return 0
	}
	return math.Min(raw, headroom)
}

// daysBetween is the non-negative span from start to end in days.
func daysBetween(start, end time.Time) float64 {
	if !end.After(start) {
		return 0
	}
	return end.Sub(start).Hours() / hoursPerDay
}
