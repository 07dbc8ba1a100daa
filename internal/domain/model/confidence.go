package model

import "time"

// ConfidenceLevel is derived purely from a confidence score.
type ConfidenceLevel string

// Confidence levels, best first.
const (
	LevelHigh     ConfidenceLevel = "HIGH"
	LevelMedium   ConfidenceLevel = "MEDIUM"
	LevelLow      ConfidenceLevel = "LOW"
	LevelDegraded ConfidenceLevel = "DEGRADED"
	LevelUnknown  ConfidenceLevel = "UNKNOWN"
)

// OperationalState says whether a zone may be recommended at all.
type OperationalState string

// Operational states.
const (
	StateActive   OperationalState = "ACTIVE"
	StateDegraded OperationalState = "DEGRADED"
	StateOffline  OperationalState = "OFFLINE"
)

// Defaults for a zone seen for the first time.
const (
	DefaultScore = 50.0
)

// Trigger names what caused a confidence update.
type Trigger string

// TriggerTick marks a scheduled decay sweep; report-driven updates use the intel type.
const TriggerTick Trigger = "TICK"

// AuditSummary keeps the fields of the most recent audit entry that later
// updates need, so the full log can live outside the state.
type AuditSummary struct {
	EntryID string    `json:"entry_id"`
	At      time.Time `json:"at"`
	Trigger Trigger   `json:"trigger"`
	Delta   float64   `json:"delta"`
}

// ZoneConfidenceState is the per-zone trust record. It is treated as an
// immutable value: every update produces a new one.
type ZoneConfidenceState struct {
	ZoneID          string           `json:"zone_id"`
	Score           float64          `json:"score"`
	Level           ConfidenceLevel  `json:"level"`
	State           OperationalState `json:"state"`
	LastVerifiedAt  *time.Time       `json:"last_verified_at,omitempty"`
	LastIntelAt     *time.Time       `json:"last_intel_at,omitempty"`
	IntelCount24h   int              `json:"intel_count_24h"`
	BoostApplied24h float64          `json:"boost_applied_24h"`
	ConflictCount   int              `json:"conflict_count"`
	HazardActive    bool             `json:"hazard_active"`
	HazardExpiresAt *time.Time       `json:"hazard_expires_at,omitempty"`
	AnomalyDetected bool             `json:"anomaly_detected"`
	AnomalyReason   string           `json:"anomaly_reason,omitempty"`
	LastUpdatedAt   time.Time        `json:"last_updated_at"`
	DecayedThrough  *time.Time       `json:"decayed_through,omitempty"`
	LastAudit       *AuditSummary    `json:"last_audit,omitempty"`
}

// NewZoneConfidenceState returns the neutral state for a zone with no history.
func NewZoneConfidenceState(zoneID string, now time.Time) ZoneConfidenceState {
	return ZoneConfidenceState{
		ZoneID:        zoneID,
		Score:         DefaultScore,
		Level:         LevelMedium,
		State:         StateActive,
		LastUpdatedAt: now,
	}
}

// HasConflicts reports whether contradictory intel was seen in the last window.
func (s ZoneConfidenceState) HasConflicts() bool { return s.ConflictCount > 0 }

// ConfidenceFactors is the transient breakdown of a single update.
type ConfidenceFactors struct {
	BaseScore       float64 `json:"base_score"`
	DecayApplied    float64 `json:"decay_applied"`
	BoostApplied    float64 `json:"boost_applied"`
	ConflictPenalty float64 `json:"conflict_penalty"`
	HazardPenalty   float64 `json:"hazard_penalty"`
	AnomalyPenalty  float64 `json:"anomaly_penalty"`
	FinalScore      float64 `json:"final_score"`
}

// AuditEntry is one record in the append-only confidence log.
type AuditEntry struct {
	ID           string            `json:"id"`
	ZoneID       string            `json:"zone_id"`
	At           time.Time         `json:"at"`
	Trigger      Trigger           `json:"trigger"`
	SubmissionID string            `json:"submission_id,omitempty"`
	Factors      ConfidenceFactors `json:"factors"`
	Level        ConfidenceLevel   `json:"level"`
	State        OperationalState  `json:"state"`
}
