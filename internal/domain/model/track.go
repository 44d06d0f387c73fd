package model

import (
	"strings"

	"telegram-music-bot/internal/domain"
)

// Track is one playable catalog hit.
type Track struct {
	StreamURL string
	Title     string
	Duration  int // seconds
	Provider  string
}

// NewTrack validates the fields a resolver must fill before a track can be played.
func NewTrack(streamURL, title string, duration int, provider string) (*Track, error) {
	streamURL = strings.TrimSpace(streamURL)
	if streamURL == "" {
		return nil, domain.ErrInvalidArgument
	}
	title = strings.TrimSpace(title)
	if title == "" {
		title = "Unknown"
	}
	if duration < 0 {
		duration = 0
	}
	return &Track{
		StreamURL: streamURL,
		Title:     title,
		Duration:  duration,
		Provider:  provider,
	}, nil
}
