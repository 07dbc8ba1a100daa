// Package pricing flags price reports that stray far from a zone's rolling
// average.
package pricing

import (
	"fmt"
	"math"
	"time"

	"github.com/okian/zonetrust/internal/domain/model"
)

// PayloadKey is the submission payload field carrying the reported price.
const PayloadKey = "price"

// Default baseline tuning.
const (
	DefaultWindow     = 7 * 24 * time.Hour
	DefaultMinSamples = 3
	DefaultHighRatio  = 2.0
	DefaultLowRatio   = 0.5
)

// Verdict is the outcome of comparing one price with the baseline.
type Verdict struct {
	Anomaly  bool
	Reason   string
	Baseline float64 // mean of the history, 0 when there were too few samples
	Ratio    float64
	Samples  int
}

// Baseline compares new prices against recent ones.
type Baseline struct {
	window     time.Duration
	minSamples int
	highRatio  float64
	lowRatio   float64
}

// Option applies a configuration option to the Baseline.
type Option func(*Baseline)

// WithWindow sets how far back prices count toward the average.
func WithWindow(d time.Duration) Option {
	return func(b *Baseline) {
		if d > 0 {
			b.window = d
		}
	}
}

// WithMinSamples sets how many prior prices are needed before flagging.
func WithMinSamples(n int) Option {
	return func(b *Baseline) {
		if n > 0 {
			b.minSamples = n
		}
	}
}

// WithRatios sets the multiples of the average that count as anomalous.
func WithRatios(low, high float64) Option {
	return func(b *Baseline) {
		if low > 0 && high > low {
			b.lowRatio, b.highRatio = low, high
		}
	}
}

// NewBaseline creates a Baseline with defaults adjusted by opts.
func NewBaseline(opts ...Option) *Baseline {
	b := &Baseline{
		window:     DefaultWindow,
		minSamples: DefaultMinSamples,
		highRatio:  DefaultHighRatio,
		lowRatio:   DefaultLowRatio,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Window returns the lookback the baseline needs.
func (b *Baseline) Window() time.Duration { return b.window }

// PriceOf extracts a positive finite price from a submission payload.
func PriceOf(s *model.IntelSubmission) (float64, bool) {
	if s.Type != model.IntelPriceSubmission {
		return 0, false
	}
	var v float64
	switch raw := s.Payload[PayloadKey].(type) {
	case float64:
		v = raw
	case float32:
		v = float64(raw)
	case int:
		v = float64(raw)
	case int64:
		v = float64(raw)
	default:
		return 0, false
	}
	if v <= 0 || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

// Check compares sub's price with the priced submissions in history that
// fall inside the window ending at now. sub itself is skipped if present.
func (b *Baseline) Check(sub *model.IntelSubmission, history []model.IntelSubmission, now time.Time) Verdict {
	price, ok := PriceOf(sub)
	if !ok {
		return Verdict{}
	}

	since := now.Add(-b.window)
	var sum float64
	var n int
	for i := range history {
		h := &history[i]
		if h.ID == sub.ID || h.CreatedAt.Before(since) || h.CreatedAt.After(now) {
			continue
		}
		if p, ok := PriceOf(h); ok {
			sum += p
			n++
		}
	}

	v := Verdict{Samples: n}
	if n < b.minSamples {
		return v
	}
	v.Baseline = sum / float64(n)
	v.Ratio = price / v.Baseline
	switch {
	case v.Ratio >= b.highRatio:
		v.Anomaly = true
		v.Reason = fmt.Sprintf("price %.1fx above zone average", v.Ratio)
	case v.Ratio <= b.lowRatio:
		v.Anomaly = true
		v.Reason = fmt.Sprintf("price %.1fx below zone average", 1/v.Ratio)
	}
	return v
}
