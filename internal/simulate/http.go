package simulate

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/okian/zonetrust/internal/domain/model"
	"github.com/okian/zonetrust/internal/domain/ranking"
	"github.com/okian/zonetrust/pkg/logger"
	"golang.org/x/sync/errgroup"
)

// HTTPClient talks JSON to the service.
type HTTPClient struct {
	client  *http.Client
	baseURL string
}

// NewHTTPClient creates a client for baseURL with the given request timeout.
func NewHTTPClient(baseURL string, timeout time.Duration) *HTTPClient {
	return &HTTPClient{
		client:  &http.Client{Timeout: timeout},
		baseURL: baseURL,
	}
}

// do sends a request and decodes a JSON response into out when out is non-nil.
// It returns the status code.
func (c *HTTPClient) do(ctx context.Context, method, path string, body, out any) (int, error) {
	var reader io.Reader = http.NoBody
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return 0, fmt.Errorf("failed to marshal request body: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return 0, fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, fmt.Errorf("failed to read response: %w", err)
	}
	if out != nil && resp.StatusCode < http.StatusMultipleChoices && len(data) > 0 {
		if err := json.Unmarshal(data, out); err != nil {
			return resp.StatusCode, fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return resp.StatusCode, nil
}

// Health checks GET /healthz.
func (c *HTTPClient) Health(ctx context.Context) error {
	code, err := c.do(ctx, http.MethodGet, "/healthz", nil, nil)
	if err != nil {
		return fmt.Errorf("failed to connect to service: %w", err)
	}
	if code != http.StatusOK {
		return fmt.Errorf("service health check failed with status: %d", code)
	}
	return nil
}

// PutZones seeds the catalog.
func (c *HTTPClient) PutZones(ctx context.Context, zones []model.Zone) error {
	code, err := c.do(ctx, http.MethodPut, "/zones", map[string]any{"zones": zones}, nil)
	if err != nil {
		return err
	}
	if code != http.StatusOK {
		return fmt.Errorf("put zones failed with status: %d", code)
	}
	return nil
}

// Submit posts one report and classifies the outcome.
func (c *HTTPClient) Submit(ctx context.Context, r model.IntelReport) string { //nolint:gocritic // hugeParam: reports are values
	var ack Ack
	code, err := c.do(ctx, http.MethodPost, "/intel", r, &ack)
	if err != nil {
		return outcomeFailed
	}
	switch code {
	case http.StatusAccepted:
		return outcomeAccepted
	case http.StatusOK:
		return outcomeDuplicate
	case http.StatusTooManyRequests:
		return outcomeThrottled
	default:
		return outcomeFailed
	}
}

// Stats reads the service counters.
func (c *HTTPClient) Stats(ctx context.Context) (serviceStats, error) {
	var st serviceStats
	code, err := c.do(ctx, http.MethodGet, "/stats", nil, &st)
	if err != nil {
		return st, err
	}
	if code != http.StatusOK {
		return st, fmt.Errorf("stats failed with status: %d", code)
	}
	return st, nil
}

// Confidence reads one zone's state.
func (c *HTTPClient) Confidence(ctx context.Context, zoneID string) (model.ZoneConfidenceState, error) {
	var st model.ZoneConfidenceState
	code, err := c.do(ctx, http.MethodGet, "/zones/"+zoneID+"/confidence", nil, &st)
	if err != nil {
		return st, err
	}
	if code != http.StatusOK {
		return st, fmt.Errorf("confidence for %s failed with status: %d", zoneID, code)
	}
	return st, nil
}

// Recommend asks for ranked zones.
func (c *HTTPClient) Recommend(ctx context.Context, req map[string]any) (ranking.Result, error) {
	var res ranking.Result
	code, err := c.do(ctx, http.MethodPost, "/recommendations", req, &res)
	if err != nil {
		return res, err
	}
	if code != http.StatusOK {
		return res, fmt.Errorf("recommendations failed with status: %d", code)
	}
	return res, nil
}

// submitReports posts reports with config.Workers concurrent submitters.
func submitReports(ctx context.Context, config *Config, client *HTTPClient, reports []model.IntelReport, stats *Stats) error {
	logger.Get().Info(ctx, "submitting reports", logger.Int("reports", len(reports)), logger.Int("workers", config.Workers))

	var submitted, accepted, duplicate, throttled, failed atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(1, config.Workers))
	for i := range reports {
		r := reports[i]
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			switch client.Submit(gctx, r) {
			case outcomeAccepted:
				accepted.Add(1)
			case outcomeDuplicate:
				duplicate.Add(1)
			case outcomeThrottled:
				throttled.Add(1)
			default:
				failed.Add(1)
			}
			if n := submitted.Add(1); config.Verbose && n%1000 == 0 {
				logger.Get().Debug(gctx, "progress", logger.Int("submitted", int(n)), logger.Int("total", len(reports)))
			}
			return nil
		})
	}
	err := g.Wait()

	stats.Submitted = int(submitted.Load())
	stats.Accepted = int(accepted.Load())
	stats.Duplicates = int(duplicate.Load())
	stats.Throttled = int(throttled.Load())
	stats.Failed = int(failed.Load())

	logger.Get().Info(ctx, "report submission completed",
		logger.Int("accepted", stats.Accepted),
		logger.Int("duplicate", stats.Duplicates),
		logger.Int("throttled", stats.Throttled),
		logger.Int("failed", stats.Failed))
	if err != nil {
		return fmt.Errorf("submission interrupted: %w", err)
	}
	return nil
}
