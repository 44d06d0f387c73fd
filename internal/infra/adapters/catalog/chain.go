package catalog

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"telegram-music-bot/internal/domain"
	"telegram-music-bot/internal/domain/model"
	"telegram-music-bot/internal/domain/ports/adapter"
	"telegram-music-bot/internal/infra/logging"
	"telegram-music-bot/internal/infra/metrics"
)

var _ adapter.SongResolver = (*ChainResolver)(nil)

// ChainResolver asks each provider in order and returns the first hit.
type ChainResolver struct {
	providers []adapter.NamedResolver
	log       *zerolog.Logger
}

func NewChainResolver(log *zerolog.Logger, providers ...adapter.NamedResolver) *ChainResolver {
	l := log.With().Str("component", "catalog").Logger()
	return &ChainResolver{providers: providers, log: &l}
}

// Resolve returns domain.ErrNotFound only when every provider found nothing;
// if any provider failed outright, the last such failure is returned.
func (c *ChainResolver) Resolve(ctx context.Context, query string) (*model.Track, error) {
	if len(c.providers) == 0 {
		return nil, errors.New("no catalog providers configured")
	}
	log := logging.With(ctx, c.log)

	var lastErr error
	for _, p := range c.providers {
		start := time.Now()
		t, err := p.Resolve(ctx, query)
		metrics.ObserveResolve(p.Name(), time.Since(start), err == nil)
		if err == nil {
			log.Debug().Str("provider", p.Name()).Str("title", t.Title).Msg("resolved")
			return t, nil
		}
		if errors.Is(err, domain.ErrNotFound) {
			log.Debug().Str("provider", p.Name()).Msg("no match")
			continue
		}
		log.Warn().Err(err).Str("provider", p.Name()).Msg("provider failed")
		lastErr = fmt.Errorf("%s: %w", p.Name(), err)
		if ctx.Err() != nil {
			break
		}
	}
	if lastErr != nil {
		return nil, lastErr
	}
	return nil, domain.ErrNotFound
}

// BuildChain maps provider names from config to resolvers, skipping unknown names.
func BuildChain(names []string, jioSaavnURL string, timeout time.Duration, log *zerolog.Logger) *ChainResolver {
	var ps []adapter.NamedResolver
	for _, n := range names {
		switch n {
		case "jiosaavn":
			ps = append(ps, NewJioSaavnResolver(jioSaavnURL, timeout))
		case "youtube":
			ps = append(ps, NewYouTubeResolver())
		default:
			log.Warn().Str("provider", n).Msg("unknown catalog provider ignored")
		}
	}
	return NewChainResolver(log, ps...)
}
