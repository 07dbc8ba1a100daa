package simulate

import (
	"time"

	"github.com/okian/zonetrust/internal/domain/model"
)

// Config holds configuration for a simulation run.
type Config struct {
	BaseURL       string        // Base URL of the service
	Zones         int           // Number of catalog zones to seed
	Reports       int           // Number of intel reports to submit
	Workers       int           // Number of concurrent submitters
	Timeout       time.Duration // HTTP request timeout
	DuplicateRate float64       // Share of reports resubmitted with the same id
	HazardRate    float64       // Share of reports that are HAZARD_REPORT
	Seed          uint64        // Generator seed; 0 picks one from the clock
	SettleTimeout time.Duration // How long to wait for the queue to drain
	OutputFile    string        // Output file for generated reports
	Verbose       bool          // Enable verbose logging
}

// Ack is the response to an intel submission.
type Ack struct {
	Status    string `json:"status"`
	ID        string `json:"id"`
	ZoneID    string `json:"zone_id"`
	Duplicate bool   `json:"duplicate"`
}

// Stats holds simulation statistics.
type Stats struct {
	ZonesSeeded     int
	ReportsBuilt    int
	Submitted       int
	Accepted        int
	Duplicates      int
	Throttled       int
	Failed          int
	StatesRead      int
	Recommendations int
	StartTime       time.Time
	EndTime         time.Time
	Duration        time.Duration
}

// serviceStats is the subset of GET /stats the runner needs.
type serviceStats struct {
	Accepted  uint64 `json:"accepted"`
	Processed uint64 `json:"processed"`
	Failed    uint64 `json:"failed"`
}

// Plan is the generated input of a run.
type Plan struct {
	Zones   []model.Zone
	Reports []model.IntelReport
}
