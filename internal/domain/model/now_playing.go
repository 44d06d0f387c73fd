package model

import "time"

// NowPlaying is the active playback of one chat.
// It exists only between a successful join and the next successful leave.
type NowPlaying struct {
	ChatID    int64
	Title     string
	Duration  int // seconds
	StreamURL string
	StartedAt time.Time
}

func NewNowPlaying(chatID int64, t *Track) NowPlaying {
	return NowPlaying{
		ChatID:    chatID,
		Title:     t.Title,
		Duration:  t.Duration,
		StreamURL: t.StreamURL,
		StartedAt: time.Now(),
	}
}
