package simulate

import (
	"context"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/google/uuid"
	"github.com/okian/zonetrust/internal/domain/model"
	"github.com/okian/zonetrust/internal/domain/pricing"
	"github.com/okian/zonetrust/pkg/geo"
	"github.com/okian/zonetrust/pkg/logger"
)

// Constants for catalog generation. Zones are scattered around central Lisbon.
const (
	centerLat       = 38.7223
	centerLon       = -9.1393
	scatterDegrees  = 0.03
	minWalkability  = 40.0
	walkabilitySpan = 60.0
	minSafety       = 50.0
	safetySpan      = 50.0
)

// Constants for report generation.
const (
	contributorPool  = 50
	maxReputation    = 1000
	basePrice        = 8.0
	priceSpread      = 6.0
	priceOutlierRate = 0.05
	priceOutlierMult = 4.0
)

// neutralTypes are drawn uniformly once hazards are accounted for.
var neutralTypes = []model.IntelType{
	model.IntelPriceSubmission,
	model.IntelHassleReport,
	model.IntelConstruction,
	model.IntelCrowdSurge,
	model.IntelQuietConfirmed,
	model.IntelVerification,
}

var severities = []model.Severity{model.SeverityLow, model.SeverityMedium, model.SeverityHigh}

type contributor struct {
	id         string
	reputation int
}

// Generate builds the zone catalog and the intel reports for a run.
func Generate(ctx context.Context, config *Config) (Plan, error) {
	if config.Zones <= 0 {
		return Plan{}, fmt.Errorf("zones must be positive, got %d", config.Zones)
	}
	if config.Reports < 0 {
		return Plan{}, fmt.Errorf("reports must not be negative, got %d", config.Reports)
	}

	seed := config.Seed
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	rng := rand.New(rand.NewPCG(seed, seed>>1|1))

	logger.Get().Info(ctx, "generating simulation plan",
		logger.Int("zones", config.Zones),
		logger.Int("reports", config.Reports),
		logger.Any("seed", seed))

	plan := Plan{
		Zones:   generateZones(rng, config.Zones),
		Reports: make([]model.IntelReport, 0, config.Reports),
	}

	contributors := make([]contributor, contributorPool)
	for i := range contributors {
		contributors[i] = contributor{id: uuid.NewString(), reputation: rng.IntN(maxReputation + 1)}
	}

	for len(plan.Reports) < config.Reports {
		if err := ctx.Err(); err != nil {
			return Plan{}, fmt.Errorf("context cancelled during generation: %w", err)
		}
		if n := len(plan.Reports); n > 0 && rng.Float64() < config.DuplicateRate {
			plan.Reports = append(plan.Reports, plan.Reports[rng.IntN(n)])
			continue
		}
		zone := plan.Zones[rng.IntN(len(plan.Zones))]
		c := contributors[rng.IntN(len(contributors))]
		plan.Reports = append(plan.Reports, generateReport(rng, config.HazardRate, zone.ID, c))
	}

	logger.Get().Info(ctx, "generated plan", logger.Int("zones", len(plan.Zones)), logger.Int("reports", len(plan.Reports)))
	return plan, nil
}

func generateZones(rng *rand.Rand, n int) []model.Zone {
	zones := make([]model.Zone, n)
	for i := range zones {
		primary := model.Textures[i%len(model.Textures)]
		secondary := model.Textures[(i+3)%len(model.Textures)]
		zones[i] = model.Zone{
			ID:                fmt.Sprintf("zone-%03d", i+1),
			Name:              fmt.Sprintf("Zone %d", i+1),
			PrimaryTexture:    primary,
			SecondaryTextures: []model.Texture{secondary},
			Center: geo.Point{
				Lat: centerLat + (rng.Float64()*2-1)*scatterDegrees,
				Lon: centerLon + (rng.Float64()*2-1)*scatterDegrees,
			},
			Walkability: minWalkability + rng.Float64()*walkabilitySpan,
			Safety:      minSafety + rng.Float64()*safetySpan,
		}
	}
	return zones
}

func generateReport(rng *rand.Rand, hazardRate float64, zoneID string, c contributor) model.IntelReport {
	typ := neutralTypes[rng.IntN(len(neutralTypes))]
	if rng.Float64() < hazardRate {
		typ = model.IntelHazardReport
	}

	var payload map[string]any
	switch typ {
	case model.IntelPriceSubmission:
		price := basePrice + rng.Float64()*priceSpread
		if rng.Float64() < priceOutlierRate {
			price *= priceOutlierMult
		}
		payload = map[string]any{pricing.PayloadKey: price}
	case model.IntelHazardReport:
		payload = map[string]any{"severity": string(severities[rng.IntN(len(severities))])}
	}

	reputation := c.reputation
	return model.IntelReport{
		ID:            uuid.NewString(),
		ZoneID:        zoneID,
		ContributorID: c.id,
		Type:          string(typ),
		Payload:       payload,
		Reputation:    &reputation,
	}
}
