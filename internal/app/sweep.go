package service

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/okian/zonetrust/internal/domain/model"
	"github.com/okian/zonetrust/pkg/logger"
	"github.com/okian/zonetrust/pkg/metrics"
)

// SweepReport summarizes one pass of the scheduled decay step.
type SweepReport struct {
	At          time.Time     `json:"at"`
	Zones       int           `json:"zones"`
	Failed      int           `json:"failed"`
	PrunedIntel int           `json:"pruned_intel"`
	Evicted     int           `json:"evicted_weather"`
	Duration    time.Duration `json:"duration"`
}

// Tick runs the decay step for one tracked zone and returns its new state.
// Zones that never received intel return ErrNotFound.
func (s *Service) Tick(ctx context.Context, zoneID string) (model.ZoneConfidenceState, error) {
	if zoneID == "" {
		return model.ZoneConfidenceState{}, ErrInvalidZone
	}
	start := time.Now()

	release := s.locks.lock(zoneID)
	defer release()

	prev, err := s.store.GetState(ctx, zoneID)
	if err != nil {
		return model.ZoneConfidenceState{}, err
	}
	now := s.now()
	recent, err := s.store.RecentIntel(ctx, zoneID, now.Add(-s.lookback()))
	if err != nil {
		return prev, fmt.Errorf("load intel: %w", err)
	}

	next, factors := s.engine.Tick(prev, recent, now)
	return s.commit(ctx, prev, next, factors, model.TriggerTick, "", now, start)
}

// Sweep ticks every tracked zone, prunes intel older than the retention
// window and evicts expired weather readings. Failures on single zones are
// counted and logged; the sweep carries on.
func (s *Service) Sweep(ctx context.Context) (SweepReport, error) {
	start := time.Now()
	now := s.now()

	states, err := s.store.ListStates(ctx)
	if err != nil {
		return SweepReport{}, fmt.Errorf("list zones: %w", err)
	}

	var failed atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.sweepConcurrency)
	for i := range states {
		zoneID := states[i].ZoneID
		g.Go(func() error {
			if _, err := s.Tick(gctx, zoneID); err != nil {
				failed.Add(1)
				s.logger.Warn(gctx, "tick failed", logger.String("zone_id", zoneID), logger.Error(err))
			}
			return nil
		})
	}
	_ = g.Wait()

	report := SweepReport{
		At:     now,
		Zones:  len(states),
		Failed: int(failed.Load()),
	}

	pruned, err := s.store.PruneIntel(ctx, now.Add(-s.retention()))
	if err != nil {
		s.logger.Warn(ctx, "prune intel failed", logger.Error(err))
	}
	report.PrunedIntel = pruned
	report.Evicted = s.weather.EvictExpired(now)
	report.Duration = time.Since(start)

	metrics.RecordSweep(report.Zones, report.Duration.Seconds())
	metrics.UpdateWeatherCacheEntries(s.weather.Len())
	s.lastSweep.Store(&report)

	s.logger.Info(ctx, "sweep complete",
		logger.Int("zones", report.Zones),
		logger.Int("failed", report.Failed),
		logger.Int("prunedIntel", report.PrunedIntel),
		logger.Duration("duration", report.Duration),
	)
	return report, ctx.Err()
}

func (s *Service) sweepLoop(ctx context.Context) {
	defer s.loops.Done()

	t := time.NewTicker(s.sweepInterval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if _, err := s.Sweep(ctx); err != nil && ctx.Err() == nil {
				s.logger.Error(ctx, "sweep failed", logger.Error(err))
			}
		}
	}
}
