package confidence

import (
	"time"

	"github.com/okian/zonetrust/internal/domain/model"
)

// contradiction is a pair of intel types that cannot both describe the same moment.
type contradiction struct {
	a, b model.IntelType
}

var contradictions = []contradiction{
	{model.IntelQuietConfirmed, model.IntelCrowdSurge},
	{model.IntelQuietConfirmed, model.IntelHassleReport},
	{model.IntelQuietConfirmed, model.IntelConstruction},
	{model.IntelVerification, model.IntelHazardReport},
}

// DetectConflicts counts contradicting report pairs in the default window.
func DetectConflicts(recent []model.IntelSubmission, now time.Time) int {
	return defaults.DetectConflicts(recent, now)
}

// DetectConflicts counts pairs of reports inside the conflict window whose
// types contradict each other. Every (a, b) submission pair counts once, so
// two quiet confirmations against two crowd surges make four conflicts. A
// lone quiet confirmation against a lone crowd surge counts one: it marks the
// zone as conflicted but stays under the default ConflictThreshold.
func (p Params) DetectConflicts(recent []model.IntelSubmission, now time.Time) int {
	counts := countByType(recent, now, p.ConflictWindow, nil)
	total := 0
	for _, c := range contradictions {
		total += counts[c.a] * counts[c.b]
	}
	return total
}

// countByType tallies submissions created in (now-window, now], optionally
// restricted to one type.
func countByType(recent []model.IntelSubmission, now time.Time, window time.Duration, only *model.IntelType) map[model.IntelType]int {
	since := now.Add(-window)
	counts := make(map[model.IntelType]int, len(model.IntelTypes))
	for i := range recent {
		s := &recent[i]
		if only != nil && s.Type != *only {
			continue
		}
		if s.CreatedAt.After(now) || !s.CreatedAt.After(since) {
			continue
		}
		counts[s.Type]++
	}
	return counts
}
