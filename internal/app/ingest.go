package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/okian/zonetrust/internal/adapters/mq/queue"
	"github.com/okian/zonetrust/internal/adapters/repository"
	"github.com/okian/zonetrust/internal/domain/confidence"
	"github.com/okian/zonetrust/internal/domain/model"
	"github.com/okian/zonetrust/pkg/logger"
	"github.com/okian/zonetrust/pkg/metrics"
)

// Submit validates a report, drops redeliveries and queues it on its zone's
// partition. It returns the normalized submission. A full partition returns
// ErrBackpressure and the report may be retried.
func (s *Service) Submit(ctx context.Context, r model.IntelReport) (model.IntelSubmission, error) { //nolint:gocritic // hugeParam: reports are values
	s.received.Add(1)
	if !s.isRunning() {
		return model.IntelSubmission{}, ErrNotStarted
	}

	sub, err := s.normalize(r)
	if err != nil {
		s.rejected.Add(1)
		metrics.RecordIntelRejected("invalid")
		return model.IntelSubmission{}, err
	}
	metrics.RecordIntelReceived(string(sub.Type))

	if s.deduper.SeenAndRecord(ctx, sub.ID) {
		s.duplicates.Add(1)
		metrics.RecordIntelDuplicate()
		s.logger.Debug(ctx, "duplicate submission, skipping",
			logger.String("submission_id", sub.ID),
			logger.String("zone_id", sub.ZoneID),
		)
		return sub, ErrDuplicate
	}

	ev := model.IntelEvent{
		Submission:    sub,
		PriceAnomaly:  r.PriceAnomaly,
		AnomalyReason: r.AnomalyReason,
	}
	if !ev.PriceAnomaly && sub.Type == model.IntelPriceSubmission {
		ev.PriceAnomaly, ev.AnomalyReason = s.checkPrice(ctx, &sub)
	}

	if err := s.queue.Enqueue(ctx, ev); err != nil {
		s.deduper.Unrecord(ctx, sub.ID)
		s.rejected.Add(1)
		switch {
		case errors.Is(err, queue.ErrFull):
			metrics.RecordIntelRejected("backpressure")
			return sub, ErrBackpressure
		case errors.Is(err, queue.ErrClosed):
			metrics.RecordIntelRejected("stopped")
			return sub, ErrStopped
		default:
			return sub, err
		}
	}
	s.accepted.Add(1)
	return sub, nil
}

// normalize turns a report into a submission, filling in the id, timestamp
// and trust weight when they are missing.
func (s *Service) normalize(r model.IntelReport) (model.IntelSubmission, error) { //nolint:gocritic // hugeParam: reports are values
	now := s.now()

	zoneID := strings.TrimSpace(r.ZoneID)
	if zoneID == "" {
		return model.IntelSubmission{}, fmt.Errorf("%w: zone_id is required", ErrInvalidSubmission)
	}
	typ, ok := model.ParseIntelType(r.Type)
	if !ok {
		return model.IntelSubmission{}, fmt.Errorf("%w: unknown intel type %q", ErrInvalidSubmission, r.Type)
	}

	weight := 1.0
	switch {
	case r.TrustWeight != nil:
		weight = *r.TrustWeight
		if math.IsNaN(weight) || weight < 0 || weight > confidence.DefaultParams().MaxTrustWeight {
			return model.IntelSubmission{}, fmt.Errorf("%w: trust_weight must be within [0, %.1f]",
				ErrInvalidSubmission, confidence.DefaultParams().MaxTrustWeight)
		}
	case r.Reputation != nil:
		weight = confidence.TrustWeightFromReputation(*r.Reputation)
	}

	created := now
	if r.CreatedAt != nil && !r.CreatedAt.IsZero() {
		if r.CreatedAt.After(now.Add(maxClockSkew)) {
			return model.IntelSubmission{}, fmt.Errorf("%w: created_at is in the future", ErrInvalidSubmission)
		}
		created = *r.CreatedAt
	}

	id := strings.TrimSpace(r.ID)
	if id == "" {
		id = uuid.NewString()
	}

	return model.IntelSubmission{
		ID:            id,
		ZoneID:        zoneID,
		ContributorID: strings.TrimSpace(r.ContributorID),
		Type:          typ,
		Payload:       r.Payload,
		TrustWeight:   weight,
		CreatedAt:     created.UTC(),
	}, nil
}

// checkPrice compares a price submission with the zone's recent prices.
func (s *Service) checkPrice(ctx context.Context, sub *model.IntelSubmission) (bool, string) {
	now := s.now()
	history, err := s.store.RecentIntel(ctx, sub.ZoneID, now.Add(-s.baseline.Window()))
	if err != nil {
		s.logger.Warn(ctx, "price history unavailable",
			logger.String("zone_id", sub.ZoneID),
			logger.Error(err),
		)
		return false, ""
	}
	v := s.baseline.Check(sub, history, now)
	if v.Anomaly {
		s.logger.Info(ctx, "price anomaly detected",
			logger.String("zone_id", sub.ZoneID),
			logger.Float64("baseline", v.Baseline),
			logger.Float64("ratio", v.Ratio),
		)
	}
	return v.Anomaly, v.Reason
}

// Process applies one queued intel event. It implements worker.Processor.
func (s *Service) Process(ctx context.Context, ev queue.Event) error { //nolint:gocritic // hugeParam: Event is passed by value for channel semantics
	start := time.Now()
	sub := ev.Submission

	release := s.locks.lock(sub.ZoneID)
	defer release()

	now := s.now()
	prev, err := s.loadState(ctx, sub.ZoneID, now)
	if err != nil {
		return s.processFailed(ctx, sub, err)
	}
	recent, err := s.store.RecentIntel(ctx, sub.ZoneID, now.Add(-s.lookback()))
	if err != nil {
		return s.processFailed(ctx, sub, fmt.Errorf("load intel: %w", err))
	}

	next, factors := s.engine.Apply(prev, ev, recent, now)

	if err := s.store.AppendIntel(ctx, sub); err != nil {
		return s.processFailed(ctx, sub, err)
	}
	if _, err := s.commit(ctx, prev, next, factors, model.Trigger(sub.Type), sub.ID, now, start); err != nil {
		return s.processFailed(ctx, sub, err)
	}

	s.processed.Add(1)
	metrics.RecordIntelProcessed(string(sub.Type))
	s.logger.Debug(ctx, "intel applied",
		logger.String("zone_id", sub.ZoneID),
		logger.String("submission_id", sub.ID),
		logger.Float64("score", next.Score),
		logger.String("state", string(next.State)),
	)
	return nil
}

// processFailed forgets the submission id so a redelivery can succeed.
func (s *Service) processFailed(ctx context.Context, sub model.IntelSubmission, err error) error { //nolint:gocritic // hugeParam: submissions are values
	s.failed.Add(1)
	s.deduper.Unrecord(ctx, sub.ID)
	metrics.RecordErrorByComponent("service", "process")
	return fmt.Errorf("process %s for zone %s: %w", sub.ID, sub.ZoneID, err)
}

// loadState returns the stored state of a zone or a fresh one.
func (s *Service) loadState(ctx context.Context, zoneID string, now time.Time) (model.ZoneConfidenceState, error) {
	st, err := s.store.GetState(ctx, zoneID)
	if errors.Is(err, repository.ErrNotFound) {
		return model.NewZoneConfidenceState(zoneID, now), nil
	}
	if err != nil {
		return model.ZoneConfidenceState{}, fmt.Errorf("load state: %w", err)
	}
	return st, nil
}

// lookback is how much intel history an update needs.
func (s *Service) lookback() time.Duration {
	p := s.engine.Params()
	d := 24 * time.Hour
	if p.HazardWindow > d {
		d = p.HazardWindow
	}
	if p.ConflictWindow > d {
		d = p.ConflictWindow
	}
	return d
}

// retention is how long intel is kept before a sweep prunes it.
func (s *Service) retention() time.Duration {
	d := s.lookback()
	if w := s.baseline.Window(); w > d {
		d = w
	}
	return d + 24*time.Hour
}

// commit persists next, appends its audit entry and publishes it.
func (s *Service) commit(ctx context.Context, prev, next model.ZoneConfidenceState, f model.ConfidenceFactors,
	trigger model.Trigger, submissionID string, now, start time.Time,
) (model.ZoneConfidenceState, error) { //nolint:gocritic // hugeParam: states are values
	entry := model.AuditEntry{
		ID:           uuid.NewString(),
		ZoneID:       next.ZoneID,
		At:           now,
		Trigger:      trigger,
		SubmissionID: submissionID,
		Factors:      f,
		Level:        next.Level,
		State:        next.State,
	}
	next.LastAudit = &model.AuditSummary{
		EntryID: entry.ID,
		At:      now,
		Trigger: trigger,
		Delta:   f.FinalScore - f.BaseScore,
	}

	if err := s.store.PutState(ctx, next); err != nil {
		return prev, fmt.Errorf("save state: %w", err)
	}
	if err := s.store.AppendAudit(ctx, entry); err != nil {
		metrics.RecordErrorByComponent("service", "audit")
		s.logger.Warn(ctx, "audit append failed",
			logger.String("zone_id", next.ZoneID),
			logger.Error(err),
		)
	}

	metrics.RecordConfidenceUpdate(string(trigger), next.Score, float64(time.Since(start).Microseconds())/1000)
	switch {
	case !prev.HazardActive && next.HazardActive:
		metrics.RecordHazardActivation()
		s.logger.Warn(ctx, "hazard activated", logger.String("zone_id", next.ZoneID))
	case prev.HazardActive && !next.HazardActive:
		metrics.RecordHazardCleared()
		s.logger.Info(ctx, "hazard cleared", logger.String("zone_id", next.ZoneID))
	}
	if f.ConflictPenalty > 0 {
		metrics.RecordConflictPenalty()
	}
	if f.AnomalyPenalty > 0 {
		metrics.RecordAnomalyPenalty()
	}

	if s.publisher != nil {
		if err := s.publisher.PublishUpdate(ctx, next, entry); err != nil {
			s.logger.Warn(ctx, "publish update failed",
				logger.String("zone_id", next.ZoneID),
				logger.Error(err),
			)
		}
	}
	return next, nil
}
