package adapter

import (
	"context"

	"telegram-music-bot/internal/domain/model"
)

// SongResolver maps a free-text query to the top catalog hit.
// Implementations return domain.ErrNotFound when the catalog has no match;
// any other error means the lookup itself failed.
type SongResolver interface {
	Resolve(ctx context.Context, query string) (*model.Track, error)
}

// NamedResolver is a SongResolver that can be placed in a provider chain.
type NamedResolver interface {
	SongResolver
	Name() string
}
