package kafka

import (
	"time"

	"github.com/okian/zonetrust/pkg/logger"
)

// Default consumer configuration constants.
const (
	defaultRetryBackoff = 200 * time.Millisecond
	maxRetryBackoff     = 5 * time.Second
)

// ConsumerOption applies a configuration option to the Consumer.
type ConsumerOption func(*Consumer)

// WithRetryable marks submit errors that should be retried instead of
// committed past, typically backpressure from a full queue.
func WithRetryable(fn func(error) bool) ConsumerOption {
	return func(c *Consumer) {
		if fn != nil {
			c.retryable = fn
		}
	}
}

// WithRetryBackoff sets the initial wait between retries.
func WithRetryBackoff(d time.Duration) ConsumerOption {
	return func(c *Consumer) {
		if d > 0 {
			c.backoff = d
		}
	}
}

// WithConsumerLogger sets a custom logger for the consumer.
func WithConsumerLogger(l logger.Logger) ConsumerOption {
	return func(c *Consumer) {
		if l != nil {
			c.logger = l
		}
	}
}

// PublisherOption applies a configuration option to the Publisher.
type PublisherOption func(*Publisher)

// WithPublisherLogger sets a custom logger for the publisher.
func WithPublisherLogger(l logger.Logger) PublisherOption {
	return func(p *Publisher) {
		if l != nil {
			p.logger = l
		}
	}
}
