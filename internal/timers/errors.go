package timers

import "errors"

var (
	ErrNoName   = errors.New("timer name is required")
	ErrNoJob    = errors.New("timer job is required")
	ErrBadEvery = errors.New("interval must be positive")
	ErrNotFound = errors.New("timer not found")
)
