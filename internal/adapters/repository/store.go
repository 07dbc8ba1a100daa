// Package repository persists zone confidence state, the intel history the
// engine windows over, the confidence audit log and the zone catalog.
package repository

import (
	"context"
	"time"

	"github.com/okian/zonetrust/internal/domain/model"
	"github.com/okian/zonetrust/pkg/metrics"
)

// StateStore holds the current confidence state of every tracked zone.
type StateStore interface {
	// GetState returns the state of a zone, or ErrNotFound.
	GetState(ctx context.Context, zoneID string) (model.ZoneConfidenceState, error)
	// PutState replaces the state of a zone.
	PutState(ctx context.Context, s model.ZoneConfidenceState) error
	// ListStates returns every state ordered by zone id.
	ListStates(ctx context.Context) ([]model.ZoneConfidenceState, error)
	// CountStates returns the number of tracked zones.
	CountStates(ctx context.Context) int
}

// IntelStore keeps accepted submissions for windowed lookups.
type IntelStore interface {
	// AppendIntel records a submission. Recording the same id twice is a no-op.
	AppendIntel(ctx context.Context, s model.IntelSubmission) error
	// RecentIntel returns submissions of a zone created at or after since,
	// oldest first.
	RecentIntel(ctx context.Context, zoneID string, since time.Time) ([]model.IntelSubmission, error)
	// PruneIntel drops submissions created before the cutoff and returns how many.
	PruneIntel(ctx context.Context, before time.Time) (int, error)
}

// AuditLog is the append-only record of confidence updates.
type AuditLog interface {
	AppendAudit(ctx context.Context, e model.AuditEntry) error
	// ListAudit returns up to limit entries of a zone, newest first.
	ListAudit(ctx context.Context, zoneID string, limit int) ([]model.AuditEntry, error)
}

// Catalog stores zone definitions produced by the geometry pipeline.
type Catalog interface {
	// PutZones upserts zones by id.
	PutZones(ctx context.Context, zones []model.Zone) error
	// Zones returns the catalog ordered by id.
	Zones(ctx context.Context) ([]model.Zone, error)
	// Zone returns one zone, or ErrNotFound.
	Zone(ctx context.Context, id string) (model.Zone, error)
}

// Store is everything the service persists.
type Store interface {
	StateStore
	IntelStore
	AuditLog
	Catalog
	Close() error
}

// observe records the latency of a repository operation started at start.
func observe(op string, start time.Time) {
	metrics.RecordRepositoryLatency(op, float64(time.Since(start).Microseconds())/1000)
}
