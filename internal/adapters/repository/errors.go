package repository

import "errors"

// Sentinel errors returned by stores.
var (
	ErrNotFound     = errors.New("not found")
	ErrInvalidLimit = errors.New("invalid limit")
	ErrEmptyZoneID  = errors.New("empty zone id")
	ErrClosed       = errors.New("store closed")
)
