package worker

import (
	"github.com/okian/zonetrust/pkg/logger"
)

// Option applies a configuration option to the PartitionWorker.
type Option func(*PartitionWorker)

// WithName sets the worker name for identification and logging.
func WithName(name string) Option {
	return func(w *PartitionWorker) {
		if name != "" {
			w.name = name
		}
	}
}

// WithLogger sets a custom logger for the worker.
func WithLogger(l logger.Logger) Option {
	return func(w *PartitionWorker) {
		if l != nil {
			w.logger = l
		}
	}
}
