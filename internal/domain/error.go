package domain

import "errors"

var (
	// Common domain errors
	ErrNotFound        = errors.New("entity not found")
	ErrInvalidArgument = errors.New("invalid argument")
	ErrNoActiveCall    = errors.New("no active group call for chat")
	ErrRateLimited     = errors.New("rate limit exceeded")

	// Worker loop errors
	ErrLoopNotStarted = errors.New("worker loop not started")
	ErrLoopStopped    = errors.New("worker loop stopped")
	ErrQueueFull      = errors.New("worker queue full")
)
