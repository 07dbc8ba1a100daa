package ranking

import (
	"strings"

	"github.com/okian/zonetrust/internal/domain/model"
	"github.com/okian/zonetrust/internal/domain/weather"
)

// Sub-score thresholds above which a reason is attached.
const (
	textureReasonAt    = 80.0
	timeReasonAt       = 80.0
	confidenceReasonAt = 75.0
)

// DefaultReason is used when no sub-score stands out.
const DefaultReason = "Available zone"

func reasons(rec ZoneRecommendation, hasProfile bool, bucket TimeOfDay) []string {
	var out []string
	if hasProfile && rec.Scores.Texture >= textureReasonAt {
		out = append(out, "Matches your interests")
	}
	if rec.Scores.Time >= timeReasonAt {
		out = append(out, "Great for the "+strings.ToLower(string(bucket)))
	}
	if rec.Scores.Confidence >= confidenceReasonAt {
		out = append(out, "Recently corroborated information")
	}
	if len(out) == 0 {
		out = append(out, DefaultReason)
	}
	return out
}

func warnings(s model.ZoneConfidenceState, mods *weather.Modifiers) []string {
	out := []string{}
	switch s.Level {
	case model.LevelLow:
		out = append(out, "Limited recent information")
	case model.LevelDegraded, model.LevelUnknown:
		out = append(out, "Information may be outdated")
	}
	if mods != nil && mods.Hazardous {
		msg := "Hazardous weather"
		if mods.Warning != "" {
			msg += ": " + mods.Warning
		}
		out = append(out, msg)
	}
	if s.AnomalyDetected {
		msg := "Unusual prices reported"
		if s.AnomalyReason != "" {
			msg += ": " + s.AnomalyReason
		}
		out = append(out, msg)
	}
	if s.HasConflicts() {
		out = append(out, "Recent reports disagree")
	}
	return out
}
