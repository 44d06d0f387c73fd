package memory

import (
	"telegram-music-bot/internal/domain/model"
	"telegram-music-bot/internal/domain/ports/repository"
)

var _ repository.PlaybackRegistry = (*PlaybackRegistry)(nil)

// PlaybackRegistry is the in-process chat -> now-playing store.
// It is not safe for concurrent use; the command loop is its only caller.
type PlaybackRegistry struct {
	entries map[int64]model.NowPlaying
}

func NewPlaybackRegistry() *PlaybackRegistry {
	return &PlaybackRegistry{entries: make(map[int64]model.NowPlaying)}
}

func (r *PlaybackRegistry) Set(chatID int64, entry model.NowPlaying) {
	entry.ChatID = chatID
	r.entries[chatID] = entry
}

func (r *PlaybackRegistry) Get(chatID int64) (model.NowPlaying, bool) {
	e, ok := r.entries[chatID]
	return e, ok
}

func (r *PlaybackRegistry) Remove(chatID int64) {
	delete(r.entries, chatID)
}

func (r *PlaybackRegistry) Len() int { return len(r.entries) }
