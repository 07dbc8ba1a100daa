package simulate

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/okian/zonetrust/internal/domain/model"
	"github.com/okian/zonetrust/pkg/logger"
)

// File permission constants.
const (
	directoryPermission = 0750
	filePermission      = 0600
)

// Run executes a complete simulation: seed zones, submit intel, wait for the
// queue to drain, then read back confidence and recommendations and verify
// them.
func Run(ctx context.Context, config *Config) (*Stats, error) {
	stats := &Stats{StartTime: time.Now()}
	log := logger.Get().Named("simulate")

	log.Info(ctx, "starting zone intel simulation",
		logger.String("baseURL", config.BaseURL),
		logger.Int("zones", config.Zones),
		logger.Int("reports", config.Reports),
		logger.Int("workers", config.Workers),
		logger.Duration("timeout", config.Timeout))

	client := NewHTTPClient(config.BaseURL, config.Timeout)

	// Step 1: Check service health
	if err := client.Health(ctx); err != nil {
		return stats, fmt.Errorf("service health check failed: %w", err)
	}

	// Step 2: Generate the plan
	plan, err := Generate(ctx, config)
	if err != nil {
		return stats, fmt.Errorf("generation failed: %w", err)
	}
	stats.ReportsBuilt = len(plan.Reports)

	// Step 3: Seed the catalog
	if err := client.PutZones(ctx, plan.Zones); err != nil {
		return stats, fmt.Errorf("seeding zones failed: %w", err)
	}
	stats.ZonesSeeded = len(plan.Zones)

	// Step 4: Submit reports concurrently
	if err := submitReports(ctx, config, client, plan.Reports, stats); err != nil {
		return stats, fmt.Errorf("submission failed: %w", err)
	}

	// Step 5: Wait for processing
	if err := waitForDrain(ctx, config, client); err != nil {
		return stats, fmt.Errorf("waiting for processing failed: %w", err)
	}

	// Step 6: Read back confidence
	states := make(map[string]model.ZoneConfidenceState, len(plan.Zones))
	for _, z := range plan.Zones {
		st, err := client.Confidence(ctx, z.ID)
		if err != nil {
			return stats, fmt.Errorf("reading confidence failed: %w", err)
		}
		states[z.ID] = st
	}
	stats.StatesRead = len(states)

	// Step 7: Ask for recommendations
	res, err := client.Recommend(ctx, map[string]any{
		"location": map[string]float64{"lat": centerLat, "lon": centerLon},
		"limit":    recommendLimit,
	})
	if err != nil {
		return stats, fmt.Errorf("recommendations failed: %w", err)
	}
	stats.Recommendations = len(res.Recommendations)

	// Step 8: Verify
	if err := verifyResults(ctx, config, states, res); err != nil {
		return stats, fmt.Errorf("verification failed: %w", err)
	}

	// Step 9: Save reports
	if config.OutputFile != "" {
		if err := saveReports(ctx, config.OutputFile, plan.Reports); err != nil {
			log.Warn(ctx, "failed to save reports to file", logger.Error(err))
		}
	}

	stats.EndTime = time.Now()
	stats.Duration = stats.EndTime.Sub(stats.StartTime)
	displayFinalStats(ctx, stats)

	log.Info(ctx, "simulation completed successfully")
	return stats, nil
}

// waitForDrain polls /stats until every accepted report is processed or
// failed.
func waitForDrain(ctx context.Context, config *Config, client *HTTPClient) error {
	timeout := config.SettleTimeout
	if timeout <= 0 {
		timeout = DefaultSettleTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(SettlePollInterval)
	defer ticker.Stop()
	for {
		st, err := client.Stats(ctx)
		if err == nil && st.Processed+st.Failed >= st.Accepted {
			if st.Failed > 0 {
				logger.Get().Warn(ctx, "some reports failed to process", logger.Any("failed", st.Failed))
			}
			return nil
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("queue did not drain: %w", ctx.Err())
		case <-ticker.C:
		}
	}
}

// saveReports writes the generated reports to a JSON file.
func saveReports(ctx context.Context, filename string, reports []model.IntelReport) error {
	if len(reports) == 0 {
		return fmt.Errorf("no reports to save")
	}
	if dir := filepath.Dir(filename); dir != "." {
		if err := os.MkdirAll(dir, directoryPermission); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
	}
	data, err := json.MarshalIndent(reports, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal reports: %w", err)
	}
	if err := os.WriteFile(filename, data, filePermission); err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}
	logger.Get().Info(ctx, "reports saved to file", logger.String("filename", filename))
	return nil
}

// displayFinalStats logs the final run statistics.
func displayFinalStats(ctx context.Context, stats *Stats) {
	var acceptRate, perSecond float64
	if stats.Submitted > 0 {
		acceptRate = float64(stats.Accepted) / float64(stats.Submitted) * PercentageMultiplier
	}
	if stats.Duration > 0 {
		perSecond = float64(stats.Submitted) / stats.Duration.Seconds()
	}

	logger.Get().Info(ctx, "final statistics",
		logger.Int("zonesSeeded", stats.ZonesSeeded),
		logger.Int("reportsBuilt", stats.ReportsBuilt),
		logger.Int("submitted", stats.Submitted),
		logger.Int("accepted", stats.Accepted),
		logger.Int("duplicates", stats.Duplicates),
		logger.Int("throttled", stats.Throttled),
		logger.Int("failed", stats.Failed),
		logger.Int("statesRead", stats.StatesRead),
		logger.Int("recommendations", stats.Recommendations),
		logger.Duration("duration", stats.Duration),
		logger.Float64("acceptRate", acceptRate),
		logger.Float64("reportsPerSecond", perSecond))
}
