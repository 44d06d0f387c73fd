package voice

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"telegram-music-bot/internal/domain"
	"telegram-music-bot/internal/domain/ports/adapter"
)

var _ adapter.CallController = (*NoopController)(nil)

// NoopController pretends to join calls (dev mode).
type NoopController struct {
	log *zerolog.Logger

	mu    sync.Mutex
	calls map[int64]string
}

func NewNoopController(log *zerolog.Logger) *NoopController {
	l := log.With().Str("component", "noop_voice").Logger()
	return &NoopController{log: &l, calls: make(map[int64]string)}
}

func (n *NoopController) Join(_ context.Context, chatID int64, streamURL string) error {
	n.mu.Lock()
	n.calls[chatID] = streamURL
	n.mu.Unlock()
	n.log.Info().Int64("chat_id", chatID).Str("url", streamURL).Msg("join")
	return nil
}

func (n *NoopController) Leave(_ context.Context, chatID int64) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if _, ok := n.calls[chatID]; !ok {
		return domain.ErrNoActiveCall
	}
	delete(n.calls, chatID)
	n.log.Info().Int64("chat_id", chatID).Msg("leave")
	return nil
}

func (n *NoopController) Close(context.Context) error {
	n.mu.Lock()
	n.calls = make(map[int64]string)
	n.mu.Unlock()
	return nil
}
