package repository

import (
	"context"
	"time"
)

// CommandLimiter counts command invocations in a fixed window.
type CommandLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}
