package repository

import "time"

// Default store configuration constants.
const (
	defaultAuditRetention = 1000
	defaultMaxOpenConns   = 1
	defaultBusyTimeout    = 5 * time.Second
)

type options struct {
	auditRetention int
	maxOpenConns   int
	busyTimeout    time.Duration
}

func newOptions(opts []Option) options {
	o := options{
		auditRetention: defaultAuditRetention,
		maxOpenConns:   defaultMaxOpenConns,
		busyTimeout:    defaultBusyTimeout,
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// Option applies a configuration option to a store.
type Option func(*options)

// WithAuditRetention caps the audit entries the memory store keeps per zone.
// Zero or less keeps everything.
func WithAuditRetention(n int) Option {
	return func(o *options) {
		o.auditRetention = n
	}
}

// WithMaxOpenConns sets the sqlite connection pool size.
func WithMaxOpenConns(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.maxOpenConns = n
		}
	}
}

// WithBusyTimeout sets how long sqlite waits on a locked database.
func WithBusyTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.busyTimeout = d
		}
	}
}
