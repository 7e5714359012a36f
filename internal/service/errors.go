package service

import "errors"

// Validation errors: surfaced to the caller as client errors, never retried.
var (
	ErrInvalidSide  = errors.New("side must be YES or NO")
	ErrInvalidStake = errors.New("stake out of allowed range")
)
