// File: internal/domain/ports/adapter/telegram.go
package adapter

import "context"

// TelegramBotAdapter delivers plain-text replies to a chat.
type TelegramBotAdapter interface {
	SendMessage(ctx context.Context, chatID int64, text string) error
}

// WebhookRegistrar points the platform's webhook at this service.
// The returned bytes are the platform's raw JSON response.
type WebhookRegistrar interface {
	SetWebhook(ctx context.Context, url string) ([]byte, error)
}
