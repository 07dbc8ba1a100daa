package simulate

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/okian/zonetrust/internal/domain/confidence"
	"github.com/okian/zonetrust/internal/domain/model"
	"github.com/okian/zonetrust/internal/domain/ranking"
	"github.com/okian/zonetrust/pkg/logger"
)

// verifyResults checks the read-back states and recommendations against the
// engine's invariants.
func verifyResults(ctx context.Context, config *Config, states map[string]model.ZoneConfidenceState, res ranking.Result) error {
	logger.Get().Info(ctx, "verifying results", logger.Int("zones", len(states)))

	if len(states) == 0 {
		return errors.New("no confidence states to verify")
	}

	var errs []error
	for id, st := range states {
		if err := verifyState(id, &st); err != nil {
			errs = append(errs, err)
		}
	}
	if err := verifyRecommendations(states, res); err != nil {
		errs = append(errs, err)
	}
	if err := errors.Join(errs...); err != nil {
		return err
	}

	displayTopZones(ctx, res, config.Verbose)
	logger.Get().Info(ctx, "result verification completed")
	return nil
}

// verifyState checks score bounds and that an active hazard takes the zone offline.
func verifyState(id string, st *model.ZoneConfidenceState) error {
	if st.ZoneID != id {
		return fmt.Errorf("zone %s: state reports zone %q", id, st.ZoneID)
	}
	if st.Score < confidence.ScoreFloor || st.Score > confidence.ScoreCeiling {
		return fmt.Errorf("zone %s: score %.2f out of bounds", id, st.Score)
	}
	if st.HazardActive && st.State != model.StateOffline {
		return fmt.Errorf("zone %s: active hazard but state %s", id, st.State)
	}
	return nil
}

// verifyRecommendations checks that no hazardous or offline zone is
// recommended and that the list is ordered by total score.
func verifyRecommendations(states map[string]model.ZoneConfidenceState, res ranking.Result) error { //nolint:gocritic // hugeParam: results are values
	for _, rec := range res.Recommendations {
		st, ok := states[rec.Zone.ID]
		if !ok {
			continue
		}
		if st.HazardActive || st.State == model.StateOffline {
			return fmt.Errorf("zone %s recommended while %s", rec.Zone.ID, st.State)
		}
	}
	sorted := slices.IsSortedFunc(res.Recommendations, func(a, b ranking.ZoneRecommendation) int {
		return b.TotalScore - a.TotalScore
	})
	if !sorted {
		return errors.New("recommendations not ordered by total score")
	}
	return nil
}

// displayTopZones logs the recommended zones.
func displayTopZones(ctx context.Context, res ranking.Result, verbose bool) { //nolint:gocritic // hugeParam: results are values
	for i := range res.Recommendations {
		rec := &res.Recommendations[i]
		logger.Get().Info(ctx, "recommended zone",
			logger.Int("rank", i+1),
			logger.String("zone", rec.Zone.ID),
			logger.Int("total", rec.TotalScore),
			logger.Float64("confidence", rec.Confidence.Score))
		if verbose {
			logger.Get().Debug(ctx, "recommendation detail",
				logger.String("zone", rec.Zone.ID),
				logger.Any("reasons", rec.Reasons),
				logger.Any("warnings", rec.Warnings))
		}
	}
	for reason, n := range res.Excluded {
		logger.Get().Info(ctx, "zones excluded", logger.String("reason", string(reason)), logger.Int("count", n))
	}
}
