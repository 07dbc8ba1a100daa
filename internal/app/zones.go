package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/okian/zonetrust/internal/adapters/repository"
	"github.com/okian/zonetrust/internal/domain/model"
	"github.com/okian/zonetrust/pkg/logger"
)

// defaultAuditLimit is how many audit entries AuditTrail returns by default.
const defaultAuditLimit = 50

// PutZones validates and upserts catalog zones. The whole batch is rejected
// if any zone is invalid.
func (s *Service) PutZones(ctx context.Context, zones []model.Zone) error {
	if len(zones) == 0 {
		return fmt.Errorf("%w: no zones", ErrInvalidZone)
	}
	seen := make(map[string]struct{}, len(zones))
	for i := range zones {
		zones[i].ID = strings.TrimSpace(zones[i].ID)
		if err := validateZone(&zones[i]); err != nil {
			return err
		}
		if _, dup := seen[zones[i].ID]; dup {
			return fmt.Errorf("%w: duplicate id %q", ErrInvalidZone, zones[i].ID)
		}
		seen[zones[i].ID] = struct{}{}
	}
	if err := s.store.PutZones(ctx, zones); err != nil {
		return fmt.Errorf("save zones: %w", err)
	}
	s.logger.Info(ctx, "zone catalog updated", logger.Int("zones", len(zones)))
	return nil
}

func validateZone(z *model.Zone) error {
	switch {
	case z.ID == "":
		return fmt.Errorf("%w: id is required", ErrInvalidZone)
	case !z.PrimaryTexture.Valid():
		return fmt.Errorf("%w: zone %s has unknown texture %q", ErrInvalidZone, z.ID, z.PrimaryTexture)
	case !z.Center.Valid():
		return fmt.Errorf("%w: zone %s has an invalid center", ErrInvalidZone, z.ID)
	case z.Walkability < 0 || z.Walkability > 100:
		return fmt.Errorf("%w: zone %s walkability out of range", ErrInvalidZone, z.ID)
	case z.Safety < 0 || z.Safety > 100:
		return fmt.Errorf("%w: zone %s safety out of range", ErrInvalidZone, z.ID)
	}
	for _, t := range z.SecondaryTextures {
		if !t.Valid() {
			return fmt.Errorf("%w: zone %s has unknown texture %q", ErrInvalidZone, z.ID, t)
		}
	}
	return nil
}

// ListZones returns the zone catalog ordered by id.
func (s *Service) ListZones(ctx context.Context) ([]model.Zone, error) {
	return s.store.Zones(ctx)
}

// ConfidenceOf returns the confidence state of a zone. A catalog zone that
// has not received intel yet reports the neutral state.
func (s *Service) ConfidenceOf(ctx context.Context, zoneID string) (model.ZoneConfidenceState, error) {
	if zoneID == "" {
		return model.ZoneConfidenceState{}, ErrInvalidZone
	}
	st, err := s.store.GetState(ctx, zoneID)
	if err == nil {
		return st, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return model.ZoneConfidenceState{}, err
	}
	if _, err := s.store.Zone(ctx, zoneID); err != nil {
		return model.ZoneConfidenceState{}, err
	}
	return model.NewZoneConfidenceState(zoneID, s.now()), nil
}

// AuditTrail returns up to limit audit entries of a zone, newest first.
// A zero limit uses the default.
func (s *Service) AuditTrail(ctx context.Context, zoneID string, limit int) ([]model.AuditEntry, error) {
	if zoneID == "" {
		return nil, ErrInvalidZone
	}
	if limit < 0 {
		return nil, fmt.Errorf("%w: negative limit", ErrInvalidRequest)
	}
	if limit == 0 {
		limit = defaultAuditLimit
	}
	return s.store.ListAudit(ctx, zoneID, limit)
}
