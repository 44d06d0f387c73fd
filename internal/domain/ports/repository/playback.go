package repository

import "telegram-music-bot/internal/domain/model"

// PlaybackRegistry maps a chat to its single now-playing entry.
// It has no locking of its own: only the worker loop may touch it.
type PlaybackRegistry interface {
	Set(chatID int64, entry model.NowPlaying)
	Get(chatID int64) (model.NowPlaying, bool)
	Remove(chatID int64)
	Len() int
}
