package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/okian/zonetrust/internal/domain/model"
	"github.com/okian/zonetrust/pkg/metrics"
)

// MemoryStore is an in-process Store. State is lost on restart.
type MemoryStore struct {
	mu       sync.RWMutex
	states   map[string]model.ZoneConfidenceState
	intel    map[string][]model.IntelSubmission // per zone, ordered by CreatedAt
	intelIDs map[string]struct{}
	audit    map[string][]model.AuditEntry // per zone, oldest first
	zones    map[string]model.Zone
	closed   bool

	auditRetention int
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore(opts ...Option) *MemoryStore {
	o := newOptions(opts)
	return &MemoryStore{
		states:         make(map[string]model.ZoneConfidenceState),
		intel:          make(map[string][]model.IntelSubmission),
		intelIDs:       make(map[string]struct{}),
		audit:          make(map[string][]model.AuditEntry),
		zones:          make(map[string]model.Zone),
		auditRetention: o.auditRetention,
	}
}

// GetState implements StateStore.
func (s *MemoryStore) GetState(_ context.Context, zoneID string) (model.ZoneConfidenceState, error) {
	defer observe("get_state", time.Now())
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.states[zoneID]
	if !ok {
		return model.ZoneConfidenceState{}, ErrNotFound
	}
	return cloneState(st), nil
}

// PutState implements StateStore.
func (s *MemoryStore) PutState(_ context.Context, st model.ZoneConfidenceState) error { //nolint:gocritic // hugeParam: states are values
	defer observe("put_state", time.Now())
	if st.ZoneID == "" {
		return ErrEmptyZoneID
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	s.states[st.ZoneID] = cloneState(st)
	return nil
}

// ListStates implements StateStore.
func (s *MemoryStore) ListStates(_ context.Context) ([]model.ZoneConfidenceState, error) {
	defer observe("list_states", time.Now())
	s.mu.RLock()
	out := make([]model.ZoneConfidenceState, 0, len(s.states))
	for _, st := range s.states {
		out = append(out, cloneState(st))
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].ZoneID < out[j].ZoneID })
	return out, nil
}

// CountStates implements StateStore.
func (s *MemoryStore) CountStates(_ context.Context) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.states)
}

// AppendIntel implements IntelStore.
func (s *MemoryStore) AppendIntel(_ context.Context, sub model.IntelSubmission) error { //nolint:gocritic // hugeParam: submissions are values
	defer observe("append_intel", time.Now())
	if sub.ZoneID == "" {
		return ErrEmptyZoneID
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	if _, seen := s.intelIDs[sub.ID]; seen && sub.ID != "" {
		return nil
	}
	s.intelIDs[sub.ID] = struct{}{}

	list := s.intel[sub.ZoneID]
	// Submissions mostly arrive in order; insert from the back.
	i := len(list)
	for i > 0 && list[i-1].CreatedAt.After(sub.CreatedAt) {
		i--
	}
	list = append(list, model.IntelSubmission{})
	copy(list[i+1:], list[i:])
	list[i] = sub
	s.intel[sub.ZoneID] = list
	return nil
}

// RecentIntel implements IntelStore.
func (s *MemoryStore) RecentIntel(_ context.Context, zoneID string, since time.Time) ([]model.IntelSubmission, error) {
	defer observe("recent_intel", time.Now())
	s.mu.RLock()
	defer s.mu.RUnlock()
	list := s.intel[zoneID]
	i := sort.Search(len(list), func(i int) bool { return !list[i].CreatedAt.Before(since) })
	out := make([]model.IntelSubmission, len(list)-i)
	copy(out, list[i:])
	return out, nil
}

// PruneIntel implements IntelStore.
func (s *MemoryStore) PruneIntel(_ context.Context, before time.Time) (int, error) {
	defer observe("prune_intel", time.Now())
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for zone, list := range s.intel {
		i := sort.Search(len(list), func(i int) bool { return !list[i].CreatedAt.Before(before) })
		if i == 0 {
			continue
		}
		for _, sub := range list[:i] {
			delete(s.intelIDs, sub.ID)
		}
		removed += i
		if i == len(list) {
			delete(s.intel, zone)
			continue
		}
		s.intel[zone] = append([]model.IntelSubmission(nil), list[i:]...)
	}
	return removed, nil
}

// AppendAudit implements AuditLog.
func (s *MemoryStore) AppendAudit(_ context.Context, e model.AuditEntry) error { //nolint:gocritic // hugeParam: entries are values
	defer observe("append_audit", time.Now())
	if e.ZoneID == "" {
		return ErrEmptyZoneID
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	list := append(s.audit[e.ZoneID], e)
	if s.auditRetention > 0 && len(list) > s.auditRetention {
		list = append([]model.AuditEntry(nil), list[len(list)-s.auditRetention:]...)
	}
	s.audit[e.ZoneID] = list
	return nil
}

// ListAudit implements AuditLog.
func (s *MemoryStore) ListAudit(_ context.Context, zoneID string, limit int) ([]model.AuditEntry, error) {
	defer observe("list_audit", time.Now())
	if limit <= 0 {
		metrics.RecordErrorByComponent("repository", "invalid_limit")
		return nil, ErrInvalidLimit
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	list := s.audit[zoneID]
	if limit > len(list) {
		limit = len(list)
	}
	out := make([]model.AuditEntry, 0, limit)
	for i := len(list) - 1; i >= len(list)-limit; i-- {
		out = append(out, list[i])
	}
	return out, nil
}

// PutZones implements Catalog.
func (s *MemoryStore) PutZones(_ context.Context, zones []model.Zone) error {
	defer observe("put_zones", time.Now())
	for i := range zones {
		if zones[i].ID == "" {
			return ErrEmptyZoneID
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	for i := range zones {
		z := zones[i]
		z.SecondaryTextures = append([]model.Texture(nil), z.SecondaryTextures...)
		s.zones[z.ID] = z
	}
	return nil
}

// Zones implements Catalog.
func (s *MemoryStore) Zones(_ context.Context) ([]model.Zone, error) {
	defer observe("zones", time.Now())
	s.mu.RLock()
	out := make([]model.Zone, 0, len(s.zones))
	for _, z := range s.zones {
		out = append(out, z)
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// Zone implements Catalog.
func (s *MemoryStore) Zone(_ context.Context, id string) (model.Zone, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	z, ok := s.zones[id]
	if !ok {
		return model.Zone{}, ErrNotFound
	}
	return z, nil
}

// Close marks the store closed; later writes fail with ErrClosed.
func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func cloneState(st model.ZoneConfidenceState) model.ZoneConfidenceState { //nolint:gocritic // hugeParam: states are values
	st.LastVerifiedAt = cloneTime(st.LastVerifiedAt)
	st.LastIntelAt = cloneTime(st.LastIntelAt)
	st.HazardExpiresAt = cloneTime(st.HazardExpiresAt)
	st.DecayedThrough = cloneTime(st.DecayedThrough)
	if st.LastAudit != nil {
		a := *st.LastAudit
		st.LastAudit = &a
	}
	return st
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	c := *t
	return &c
}
