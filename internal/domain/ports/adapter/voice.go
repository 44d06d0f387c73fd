package adapter

import "context"

// CallController joins and leaves group voice calls.
//
// Join on a chat that is already in a call replaces the streamed source.
// Leave on a chat without an active call returns domain.ErrNoActiveCall.
type CallController interface {
	Join(ctx context.Context, chatID int64, streamURL string) error
	Leave(ctx context.Context, chatID int64) error
}
