// Package kafka bridges the engine to Kafka: intel reports are consumed from
// an ingest topic and confidence updates are published keyed by zone id.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/okian/zonetrust/internal/domain/model"
	"github.com/okian/zonetrust/pkg/logger"
	"github.com/okian/zonetrust/pkg/metrics"
)

// MessageReader is the part of *kafkago.Reader the consumer uses.
type MessageReader interface {
	FetchMessage(ctx context.Context) (kafkago.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// Submitter accepts decoded intel reports.
type Submitter interface {
	Submit(ctx context.Context, r model.IntelReport) (model.IntelSubmission, error)
}

// ReaderConfig names the topic and group to consume.
type ReaderConfig struct {
	Brokers []string
	Topic   string
	GroupID string
}

// NewReader builds a group reader for the intel topic.
func NewReader(cfg ReaderConfig) (*kafkago.Reader, error) {
	if len(cfg.Brokers) == 0 {
		return nil, ErrNoBrokers
	}
	if strings.TrimSpace(cfg.Topic) == "" {
		return nil, ErrNoTopic
	}
	if strings.TrimSpace(cfg.GroupID) == "" {
		return nil, ErrNoGroup
	}
	return kafkago.NewReader(kafkago.ReaderConfig{
		Brokers:     cfg.Brokers,
		GroupID:     cfg.GroupID,
		Topic:       cfg.Topic,
		StartOffset: kafkago.FirstOffset,
		MinBytes:    1,
		MaxBytes:    10e6,
		MaxWait:     500 * time.Millisecond,
	}), nil
}

// Consumer feeds intel reports from Kafka into a Submitter. Offsets are
// committed once a message is accepted, rejected as invalid or found to be
// malformed; retryable submit errors hold the offset until they clear.
type Consumer struct {
	reader    MessageReader
	submitter Submitter
	retryable func(error) bool
	backoff   time.Duration
	logger    logger.Logger
}

// NewConsumer creates a consumer reading from reader.
func NewConsumer(reader MessageReader, submitter Submitter, opts ...ConsumerOption) *Consumer {
	c := &Consumer{
		reader:    reader,
		submitter: submitter,
		retryable: func(error) bool { return false },
		backoff:   defaultRetryBackoff,
		logger:    logger.Get().Named("kafka-consumer"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Run consumes until ctx is done. It returns nil on cancellation.
func (c *Consumer) Run(ctx context.Context) error {
	c.logger.Info(ctx, "consumer started")
	defer c.logger.Info(ctx, "consumer stopped")

	wait := c.backoff
	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			metrics.RecordKafkaError("fetch")
			c.logger.Warn(ctx, "fetch failed", logger.Error(err))
			if !sleep(ctx, wait) {
				return nil
			}
			wait = nextBackoff(wait)
			continue
		}
		wait = c.backoff

		if err := c.handle(ctx, msg); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
	}
}

// handle submits one message, retrying retryable failures, then commits it.
func (c *Consumer) handle(ctx context.Context, msg kafkago.Message) error { //nolint:gocritic // hugeParam: kafka messages are values
	metrics.RecordKafkaConsumed()

	report, err := Decode(msg.Value)
	if err != nil {
		metrics.RecordKafkaError("decode")
		c.logger.Warn(ctx, "dropping malformed message",
			logger.Int("partition", msg.Partition),
			logger.Any("offset", msg.Offset),
			logger.Error(err),
		)
		return c.commit(ctx, msg)
	}

	wait := c.backoff
	for {
		_, err := c.submitter.Submit(ctx, report)
		if err == nil || !c.retryable(err) {
			if err != nil {
				c.logger.Debug(ctx, "report rejected",
					logger.String("zone_id", report.ZoneID),
					logger.Error(err),
				)
			}
			return c.commit(ctx, msg)
		}
		if !sleep(ctx, wait) {
			return ctx.Err()
		}
		wait = nextBackoff(wait)
	}
}

func (c *Consumer) commit(ctx context.Context, msg kafkago.Message) error { //nolint:gocritic // hugeParam: kafka messages are values
	if err := c.reader.CommitMessages(ctx, msg); err != nil {
		metrics.RecordKafkaError("commit")
		return fmt.Errorf("commit offset %d: %w", msg.Offset, err)
	}
	return nil
}

// Close closes the underlying reader.
func (c *Consumer) Close() error {
	return c.reader.Close()
}

// Decode parses a JSON intel report.
func Decode(value []byte) (model.IntelReport, error) {
	var r model.IntelReport
	if err := json.Unmarshal(value, &r); err != nil {
		return model.IntelReport{}, fmt.Errorf("%w: %v", ErrBadMessage, err)
	}
	if r.ZoneID == "" || r.Type == "" {
		return model.IntelReport{}, fmt.Errorf("%w: zone_id and type are required", ErrBadMessage)
	}
	return r, nil
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

func nextBackoff(d time.Duration) time.Duration {
	d *= 2
	if d > maxRetryBackoff {
		return maxRetryBackoff
	}
	return d
}
