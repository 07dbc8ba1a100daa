package service

import (
	"errors"

	"github.com/okian/zonetrust/internal/adapters/repository"
)

// Sentinel errors returned by the service.
var (
	ErrInvalidSubmission = errors.New("invalid submission")
	ErrDuplicate         = errors.New("duplicate submission")
	ErrBackpressure      = errors.New("ingestion queue full")
	ErrNotStarted        = errors.New("service not started")
	ErrStopped           = errors.New("service stopped")
	ErrInvalidRequest    = errors.New("invalid request")
	ErrInvalidZone       = errors.New("invalid zone")

	// ErrNotFound is the repository's not-found error so callers need one check.
	ErrNotFound = repository.ErrNotFound
)
