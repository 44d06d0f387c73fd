package telegram

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"telegram-music-bot/internal/config"
	"telegram-music-bot/internal/domain/ports/adapter"
	"telegram-music-bot/internal/infra/logging"
	"telegram-music-bot/internal/infra/metrics"
)

var (
	_ adapter.TelegramBotAdapter = (*BotAPIAdapter)(nil)
	_ adapter.WebhookRegistrar   = (*BotAPIAdapter)(nil)
)

// BotAPIAdapter sends replies and registers the webhook through the Bot API.
type BotAPIAdapter struct {
	bot     *tgbotapi.BotAPI
	limiter *rate.Limiter
	log     *zerolog.Logger
}

// NewBotAPIAdapter authenticates the token (getMe) against the configured endpoint.
func NewBotAPIAdapter(cfg *config.BotConfig, log *zerolog.Logger) (*BotAPIAdapter, error) {
	return NewBotAPIWithClient(cfg, &http.Client{Timeout: 30 * time.Second}, log)
}

func NewBotAPIWithClient(cfg *config.BotConfig, client tgbotapi.HTTPClient, log *zerolog.Logger) (*BotAPIAdapter, error) {
	if cfg == nil {
		return nil, errors.New("bot config is nil")
	}
	endpoint := cfg.APIEndpoint
	if endpoint == "" {
		endpoint = tgbotapi.APIEndpoint
	}

	bot, err := tgbotapi.NewBotAPIWithClient(cfg.Token, endpoint, client)
	if err != nil {
		return nil, fmt.Errorf("bot api auth: %w", err)
	}

	perSec, burst := cfg.SendRate, cfg.SendBurst
	if perSec <= 0 {
		perSec = 25
	}
	if burst <= 0 {
		burst = 5
	}

	l := log.With().Str("component", "bot_api").Str("bot", bot.Self.UserName).Logger()
	return &BotAPIAdapter{
		bot:     bot,
		limiter: rate.NewLimiter(rate.Limit(perSec), burst),
		log:     &l,
	}, nil
}

// SendMessage posts text to chatID. It waits for the outbound limiter first.
func (a *BotAPIAdapter) SendMessage(ctx context.Context, chatID int64, text string) error {
	if err := a.limiter.Wait(ctx); err != nil {
		metrics.IncReply("failed")
		return fmt.Errorf("reply limiter: %w", err)
	}
	if _, err := a.bot.Send(tgbotapi.NewMessage(chatID, text)); err != nil {
		metrics.IncReply("failed")
		return fmt.Errorf("send message to %d: %w", chatID, err)
	}
	metrics.IncReply("sent")
	return nil
}

// SetWebhook points the bot at url, dropping updates queued while we were away.
// The platform's response is returned as JSON even when it reports ok=false.
func (a *BotAPIAdapter) SetWebhook(ctx context.Context, url string) ([]byte, error) {
	wh, err := tgbotapi.NewWebhook(url)
	if err != nil {
		return nil, fmt.Errorf("webhook url: %w", err)
	}
	wh.DropPendingUpdates = true

	resp, err := a.bot.Request(wh)
	if err != nil {
		var apiErr *tgbotapi.Error
		if resp == nil || !errors.As(err, &apiErr) {
			return nil, fmt.Errorf("set webhook: %w", err)
		}
		a.log.Warn().Err(err).Msg("platform rejected webhook")
	} else {
		logging.With(ctx, a.log).Info().Str("url", logging.Redact(url, false)).Msg("webhook registered")
	}
	return json.Marshal(resp)
}
