package confidence

import (
	"math"
	"time"

	"github.com/okian/zonetrust/internal/domain/model"
)

// defaults backs the package-level helpers. It is never mutated.
var defaults = DefaultParams() //nolint:gochecknoglobals // read-only default tuning

// Engine is the zone confidence state machine.
type Engine struct {
	params Params
}

// NewEngine creates an engine with the default tuning adjusted by opts.
func NewEngine(opts ...Option) *Engine {
	e := &Engine{params: DefaultParams()}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Params returns a copy of the engine's tuning.
func (e *Engine) Params() Params { return e.params }

// Apply folds one intel event into state.
//
// recent is the zone's intel history covering at least the hazard window; the
// event's submission is added to it if missing. All adjustments are computed
// against the pre-update score and summed once before clamping. Decay covers
// only the time since state.DecayedThrough.
func (e *Engine) Apply(state model.ZoneConfidenceState, ev model.IntelEvent, recent []model.IntelSubmission, now time.Time) (model.ZoneConfidenceState, model.ConfidenceFactors) {
	p := e.params
	sub := ev.Submission
	at := sub.CreatedAt
	if at.IsZero() || at.After(now) {
		at = now
	}

	base := sanitize(state.Score)
	decay := p.DecaySince(base, state.LastIntelAt, state.DecayedThrough, now)
	window := withSubmission(recent, sub, at)

	count24h, boost24h := state.IntelCount24h, state.BoostApplied24h
	if state.LastIntelAt == nil || now.Sub(*state.LastIntelAt) >= rollingWindow {
		count24h, boost24h = 0, 0
	}
	if seen := countOthers(recent, sub.ID, now, rollingWindow); seen > count24h {
		count24h = seen
	}

	var boost float64
	if sub.Type != model.IntelHazardReport {
		allowed := math.Max(0, p.MaxBoostPer24h-boost24h)
		boost = math.Min(p.IntelBoost(sub.Type, sub.TrustWeight, count24h), allowed)
	}

	conflicts := p.DetectConflicts(window, now)
	var conflictPenalty float64
	if conflicts >= p.ConflictThreshold {
		conflictPenalty = p.ConflictPenalty
	}

	hazard := p.EvaluateHazard(state, window, &sub, now)

	anomaly, reason := state.AnomalyDetected, state.AnomalyReason
	var anomalyPenalty float64
	switch {
	case ev.PriceAnomaly:
		anomaly, reason = true, ev.AnomalyReason
		anomalyPenalty = p.AnomalyPenalty
	case sub.Type == model.IntelPriceSubmission:
		anomaly, reason = false, ""
	}

	factors := model.ConfidenceFactors{
		BaseScore:       base,
		DecayApplied:    decay,
		BoostApplied:    boost,
		ConflictPenalty: conflictPenalty,
		HazardPenalty:   hazard.Penalty,
		AnomalyPenalty:  anomalyPenalty,
	}
	factors.FinalScore = sanitize(base - decay + boost - conflictPenalty - hazard.Penalty - anomalyPenalty)

	next := state
	next.Score = factors.FinalScore
	if next.LastIntelAt == nil || at.After(*next.LastIntelAt) {
		next.LastIntelAt = timePtr(at)
	}
	if sub.Type == model.IntelVerification {
		next.LastVerifiedAt = timePtr(at)
	}
	next.IntelCount24h = count24h + 1
	next.BoostApplied24h = boost24h + boost
	next.ConflictCount = conflicts
	next.HazardActive = hazard.Active
	next.HazardExpiresAt = hazard.ExpiresAt
	next.AnomalyDetected = anomaly
	next.AnomalyReason = reason
	next.Level = LevelForScore(next.Score)
	next.State = DeriveState(next.Score, next.HazardActive, next.AnomalyDetected)
	next.DecayedThrough = decayedThrough(state.DecayedThrough, now)
	next.LastUpdatedAt = now
	return next, factors
}

// Tick runs the scheduled decay step: decay and hazard expiry only. It resets
// the rolling 24h counters. Each tick charges decay only for the time elapsed
// since the previous update, so daily ticks erode a zone linearly and a
// repeated tick on the same day subtracts just the few hours in between.
func (e *Engine) Tick(state model.ZoneConfidenceState, recent []model.IntelSubmission, now time.Time) (model.ZoneConfidenceState, model.ConfidenceFactors) {
	p := e.params
	base := sanitize(state.Score)
	decay := p.DecaySince(base, state.LastIntelAt, state.DecayedThrough, now)
	hazard := p.EvaluateHazard(state, recent, nil, now)

	factors := model.ConfidenceFactors{
		BaseScore:    base,
		DecayApplied: decay,
	}
	factors.FinalScore = sanitize(base - decay)

	next := state
	next.Score = factors.FinalScore
	next.IntelCount24h = 0
	next.BoostApplied24h = 0
	next.HazardActive = hazard.Active
	next.HazardExpiresAt = hazard.ExpiresAt
	next.Level = LevelForScore(next.Score)
	next.State = DeriveState(next.Score, next.HazardActive, next.AnomalyDetected)
	next.DecayedThrough = decayedThrough(state.DecayedThrough, now)
	next.LastUpdatedAt = now
	return next, factors
}

// decayedThrough advances the decay watermark to now. It never moves back.
func decayedThrough(prev *time.Time, now time.Time) *time.Time {
	if prev != nil && prev.After(now) {
		return timePtr(*prev)
	}
	return timePtr(now)
}

// withSubmission returns recent plus sub (stamped at at) unless an entry with
// the same ID is already present. recent is not modified.
func withSubmission(recent []model.IntelSubmission, sub model.IntelSubmission, at time.Time) []model.IntelSubmission {
	if sub.ID != "" {
		for i := range recent {
			if recent[i].ID == sub.ID {
				return recent
			}
		}
	}
	sub.CreatedAt = at
	out := make([]model.IntelSubmission, 0, len(recent)+1)
	out = append(out, recent...)
	return append(out, sub)
}

// countOthers counts submissions inside span other than the one with skipID.
func countOthers(window []model.IntelSubmission, skipID string, now time.Time, span time.Duration) int {
	since := now.Add(-span)
	n := 0
	for i := range window {
		s := &window[i]
		if skipID != "" && s.ID == skipID {
			continue
		}
		if s.CreatedAt.After(now) || !s.CreatedAt.After(since) {
			continue
		}
		n++
	}
	return n
}

func timePtr(t time.Time) *time.Time { return &t }
