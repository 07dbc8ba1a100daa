package simulate

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/okian/zonetrust/pkg/logger"
)

// SetupLogging sends log output to stdout and, when logFile is set, to that
// file as well. The returned func closes the file.
func SetupLogging(logFile string, verbose bool) (func() error, error) {
	var (
		out     io.Writer = os.Stdout
		closeFn           = func() error { return nil }
	)
	if logFile != "" {
		file, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, filePermission)
		if err != nil {
			return nil, fmt.Errorf("failed to create log file: %w", err)
		}
		out = io.MultiWriter(os.Stdout, file)
		closeFn = file.Close
	}

	if err := logger.Init(logger.WithOutput(out)); err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	if verbose {
		_ = logger.SetLevelString("debug")
	}
	if logFile != "" {
		logger.Get().Info(context.Background(), "logging to file", logger.String("logFile", logFile))
	}
	return closeFn, nil
}

// ShowHelp prints usage information for the simulator.
func ShowHelp() {
	_, _ = os.Stdout.WriteString(`Zone Intel Simulator
====================

Seeds a zone catalog, floods the service with contributor intel and checks
the resulting confidence states and recommendations.

Usage:
  go run ./cmd/intel-sim [options]

Options:
  -url string
        Base URL of the service (default "http://localhost:9080")
  -zones int
        Number of catalog zones to seed (default 40)
  -reports int
        Number of intel reports to submit (default 5000)
  -workers int
        Number of concurrent submitters (default CPU cores * 2)
  -duplicates float
        Share of reports resubmitted with an existing id (default 0.02)
  -hazards float
        Share of reports that are hazard reports (default 0.01)
  -seed uint
        Generator seed, 0 for a random one
  -timeout duration
        HTTP request timeout (default 30s)
  -settle duration
        How long to wait for the queue to drain (default 30s)
  -output string
        Write the generated reports to this JSON file
  -log string
        Also write log output to this file
  -verbose
        Enable debug logging
  -help
        Show this help message

Examples:
  go run ./cmd/intel-sim -reports 20000 -workers 32
  go run ./cmd/intel-sim -seed 42 -output reports.json
`)
}
