package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/okian/zonetrust/internal/simulate"
)

// Default configuration constants.
const (
	defaultZones         = 40
	defaultReports       = 5000
	defaultWorkers       = 2 // multiplier for runtime.NumCPU()
	defaultDuplicateRate = 0.02
	defaultHazardRate    = 0.01
	defaultTimeout       = 30 * time.Second
	defaultRunTimeout    = 10 * time.Minute
)

func main() {
	var (
		baseURL    = flag.String("url", "http://localhost:9080", "Base URL of the service")
		zones      = flag.Int("zones", defaultZones, "Number of catalog zones to seed")
		reports    = flag.Int("reports", defaultReports, "Number of intel reports to submit")
		workers    = flag.Int("workers", runtime.NumCPU()*defaultWorkers, "Number of concurrent submitters")
		duplicates = flag.Float64("duplicates", defaultDuplicateRate, "Share of reports resubmitted with an existing id")
		hazards    = flag.Float64("hazards", defaultHazardRate, "Share of reports that are hazard reports")
		seed       = flag.Uint64("seed", 0, "Generator seed, 0 for a random one")
		timeout    = flag.Duration("timeout", defaultTimeout, "HTTP request timeout")
		settle     = flag.Duration("settle", simulate.DefaultSettleTimeout, "How long to wait for the queue to drain")
		outputFile = flag.String("output", "", "Write the generated reports to this JSON file")
		logFile    = flag.String("log", "", "Also write log output to this file")
		verbose    = flag.Bool("verbose", false, "Enable debug logging")
		help       = flag.Bool("help", false, "Show help")
	)
	flag.Parse()

	if *help {
		simulate.ShowHelp()
		return
	}

	closeLog, err := simulate.SetupLogging(*logFile, *verbose)
	if err != nil {
		_, _ = os.Stderr.WriteString("Failed to setup logging: " + err.Error() + "\n")
		os.Exit(1)
	}
	defer func() { _ = closeLog() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, defaultRunTimeout)
	defer cancel()

	config := &simulate.Config{
		BaseURL:       *baseURL,
		Zones:         *zones,
		Reports:       *reports,
		Workers:       *workers,
		Timeout:       *timeout,
		DuplicateRate: *duplicates,
		HazardRate:    *hazards,
		Seed:          *seed,
		SettleTimeout: *settle,
		OutputFile:    *outputFile,
		Verbose:       *verbose,
	}

	if _, err := simulate.Run(ctx, config); err != nil {
		_, _ = os.Stderr.WriteString("Simulation failed: " + err.Error() + "\n")
		cancel()
		stop()
		_ = closeLog()
		os.Exit(1) //nolint:gocritic // exitAfterDefer: deferred cleanups run above
	}
}
