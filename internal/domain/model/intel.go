// Package model contains domain models passed between layers.
package model

import (
	"strings"
	"time"
)

// IntelType classifies a contributor report.
type IntelType string

// Known intel types.
const (
	IntelPriceSubmission IntelType = "PRICE_SUBMISSION"
	IntelHassleReport    IntelType = "HASSLE_REPORT"
	IntelConstruction    IntelType = "CONSTRUCTION"
	IntelCrowdSurge      IntelType = "CROWD_SURGE"
	IntelQuietConfirmed  IntelType = "QUIET_CONFIRMED"
	IntelHazardReport    IntelType = "HAZARD_REPORT"
	IntelVerification    IntelType = "VERIFICATION"
)

// IntelTypes lists every known type in a stable order.
var IntelTypes = []IntelType{
	IntelPriceSubmission,
	IntelHassleReport,
	IntelConstruction,
	IntelCrowdSurge,
	IntelQuietConfirmed,
	IntelHazardReport,
	IntelVerification,
}

// Valid reports whether t is one of the known intel types.
func (t IntelType) Valid() bool {
	for _, known := range IntelTypes {
		if t == known {
			return true
		}
	}
	return false
}

// ParseIntelType normalizes s (case and surrounding space) into an IntelType.
func ParseIntelType(s string) (IntelType, bool) {
	t := IntelType(strings.ToUpper(strings.TrimSpace(s)))
	return t, t.Valid()
}

// Severity grades hazard reports. It is read from the submission payload.
type Severity string

// Hazard severities.
const (
	SeverityLow    Severity = "LOW"
	SeverityMedium Severity = "MEDIUM"
	SeverityHigh   Severity = "HIGH"
)

// payloadSeverityKey is the payload field carrying a hazard severity.
const payloadSeverityKey = "severity"

// IntelSubmission is one contributor report about a zone. Immutable once created.
type IntelSubmission struct {
	ID            string         `json:"id"`
	ZoneID        string         `json:"zone_id"`
	ContributorID string         `json:"contributor_id"`
	Type          IntelType      `json:"type"`
	Payload       map[string]any `json:"payload,omitempty"`
	TrustWeight   float64        `json:"trust_weight"` // 0.0-1.5, derived from reputation upstream
	CreatedAt     time.Time      `json:"created_at"`
}

// Severity returns the hazard severity carried in the payload, defaulting to MEDIUM.
func (s IntelSubmission) Severity() Severity {
	raw, ok := s.Payload[payloadSeverityKey].(string)
	if !ok {
		return SeverityMedium
	}
	switch Severity(strings.ToUpper(strings.TrimSpace(raw))) {
	case SeverityLow:
		return SeverityLow
	case SeverityHigh:
		return SeverityHigh
	default:
		return SeverityMedium
	}
}

// IntelEvent is the unit of work flowing through ingestion: a submission plus
// the price-anomaly verdict computed against the zone's rolling price baseline.
type IntelEvent struct {
	Submission    IntelSubmission
	PriceAnomaly  bool
	AnomalyReason string
}

// IntelReport is an inbound submission as received over HTTP or Kafka,
// before the service assigns defaults and validates it.
type IntelReport struct {
	ID            string         `json:"id,omitempty"`
	ZoneID        string         `json:"zone_id"`
	ContributorID string         `json:"contributor_id"`
	Type          string         `json:"type"`
	Payload       map[string]any `json:"payload,omitempty"`
	TrustWeight   *float64       `json:"trust_weight,omitempty"`
	Reputation    *int           `json:"reputation,omitempty"` // used when trust_weight is absent
	CreatedAt     *time.Time     `json:"created_at,omitempty"`
	PriceAnomaly  bool           `json:"price_anomaly,omitempty"`
	AnomalyReason string         `json:"anomaly_reason,omitempty"`
}
