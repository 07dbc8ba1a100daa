package simulate

import "time"

// Runner configuration constants.
const (
	DefaultSettleTimeout = 30 * time.Second
	SettlePollInterval   = 100 * time.Millisecond
	PercentageMultiplier = 100
	recommendLimit       = 10
)

// Submission outcomes.
const (
	outcomeAccepted  = "accepted"
	outcomeDuplicate = "duplicate"
	outcomeThrottled = "throttled"
	outcomeFailed    = "failed"
)
