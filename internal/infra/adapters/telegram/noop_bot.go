package telegram

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"telegram-music-bot/internal/domain/ports/adapter"
)

var (
	_ adapter.TelegramBotAdapter = (*NoopBotAdapter)(nil)
	_ adapter.WebhookRegistrar   = (*NoopBotAdapter)(nil)
)

// NoopBotAdapter logs replies instead of sending them (dev mode).
type NoopBotAdapter struct {
	log *zerolog.Logger
}

func NewNoopBotAdapter(log *zerolog.Logger) *NoopBotAdapter {
	l := log.With().Str("component", "noop_bot").Logger()
	return &NoopBotAdapter{log: &l}
}

// SendMessage logs the message and simulates small delay.
func (b *NoopBotAdapter) SendMessage(ctx context.Context, chatID int64, text string) error {
	select {
	case <-time.After(100 * time.Millisecond):
	case <-ctx.Done():
		return ctx.Err()
	}
	b.log.Info().Int64("chat_id", chatID).Str("text", text).Msg("reply")
	return nil
}

func (b *NoopBotAdapter) SetWebhook(_ context.Context, url string) ([]byte, error) {
	b.log.Info().Str("url", url).Msg("setWebhook skipped")
	return []byte(`{"ok":true,"result":true,"description":"noop"}`), nil
}
