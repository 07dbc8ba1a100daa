package kafka

import "errors"

// Sentinel errors for the kafka adapters.
var (
	ErrNoBrokers  = errors.New("at least one broker is required")
	ErrNoTopic    = errors.New("topic must not be empty")
	ErrNoGroup    = errors.New("consumer group must not be empty")
	ErrBadMessage = errors.New("malformed intel message")
)
