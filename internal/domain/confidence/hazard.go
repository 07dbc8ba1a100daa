package confidence

import (
	"time"

	"github.com/okian/zonetrust/internal/domain/model"
)

// HazardVerdict is the outcome of one hazard evaluation.
type HazardVerdict struct {
	Active    bool
	ExpiresAt *time.Time
	Reports   int
	Activated bool // tripped by this evaluation
	Cleared   bool // an expired hazard was lifted by this evaluation
	Penalty   float64
}

// EvaluateHazard runs the hazard kill switch with the default tuning.
func EvaluateHazard(state model.ZoneConfidenceState, recent []model.IntelSubmission, trigger *model.IntelSubmission, now time.Time) HazardVerdict {
	return defaults.EvaluateHazard(state, recent, trigger, now)
}

// EvaluateHazard decides the hazard flag for a zone.
//
// An expired hazard is cleared in one step. Reaching HazardThreshold reports
// within HazardWindow activates the hazard for HazardDuration and costs
// HazardPenalty once, on activation. A hazard report that does not trip the
// switch costs a severity-scaled caution penalty. With a nil trigger (the
// scheduled tick) only expiry is processed. Report independence is enforced
// upstream.
func (p Params) EvaluateHazard(state model.ZoneConfidenceState, recent []model.IntelSubmission, trigger *model.IntelSubmission, now time.Time) HazardVerdict {
	v := HazardVerdict{Active: state.HazardActive, ExpiresAt: state.HazardExpiresAt}

	if v.Active {
		switch {
		case v.ExpiresAt == nil:
			expires := now.Add(p.HazardDuration)
			v.ExpiresAt = &expires
		case !now.Before(*v.ExpiresAt):
			v.Active = false
			v.ExpiresAt = nil
			v.Cleared = true
		}
	}

	if trigger == nil {
		return v
	}

	hazard := model.IntelHazardReport
	v.Reports = countByType(recent, now, p.HazardWindow, &hazard)[hazard]

	switch {
	case v.Active:
		// already dark; further reports change nothing until expiry
	case v.Reports >= p.HazardThreshold:
		expires := now.Add(p.HazardDuration)
		v.Active = true
		v.ExpiresAt = &expires
		v.Activated = true
		v.Penalty = p.HazardPenalty
	case trigger.Type == model.IntelHazardReport:
		v.Penalty = p.CautionPenalty[trigger.Severity()]
	}
	return v
}
