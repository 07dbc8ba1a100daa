package queue

import "errors"

// Sentinel errors returned by Enqueue.
var (
	ErrClosed = errors.New("queue closed")
	ErrFull   = errors.New("queue partition full")
)
