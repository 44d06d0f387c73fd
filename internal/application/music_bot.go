package application

import (
	"context"
	"errors"
	"runtime/debug"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"telegram-music-bot/internal/domain"
	"telegram-music-bot/internal/domain/model"
	"telegram-music-bot/internal/domain/ports/adapter"
	"telegram-music-bot/internal/domain/ports/repository"
	"telegram-music-bot/internal/infra/logging"
	"telegram-music-bot/internal/infra/metrics"
	red "telegram-music-bot/internal/infra/redis"
)

const (
	CmdPlay    = "/play"
	CmdStop    = "/stop"
	CmdCurrent = "/current"
)

// Translator looks up reply texts by key.
type Translator interface {
	T(key string, args ...interface{}) string
}

// RateLimit enables per-chat command limiting when Limiter is set.
type RateLimit struct {
	Limiter   repository.CommandLimiter
	PerMinute int
}

// MusicBot turns one inbound update into at most one reply, keeping the
// playback registry in step with the voice chats it joins and leaves.
// It must be driven from a single goroutine.
type MusicBot struct {
	resolver adapter.SongResolver
	calls    adapter.CallController
	registry repository.PlaybackRegistry
	sender   adapter.TelegramBotAdapter
	tr       Translator
	limit    RateLimit
	log      *zerolog.Logger
}

func NewMusicBot(
	resolver adapter.SongResolver,
	calls adapter.CallController,
	registry repository.PlaybackRegistry,
	sender adapter.TelegramBotAdapter,
	tr Translator,
	limit RateLimit,
	log *zerolog.Logger,
) *MusicBot {
	l := log.With().Str("component", "music_bot").Logger()
	return &MusicBot{
		resolver: resolver,
		calls:    calls,
		registry: registry,
		sender:   sender,
		tr:       tr,
		limit:    limit,
		log:      &l,
	}
}

// ParseCommand prefix-matches the trimmed text against the known commands.
// A "@botname" suffix glued to the command is dropped from the argument.
func ParseCommand(text string) (cmd, arg string, ok bool) {
	text = strings.TrimSpace(text)
	for _, c := range []string{CmdPlay, CmdStop, CmdCurrent} {
		if !strings.HasPrefix(text, c) {
			continue
		}
		rest := text[len(c):]
		if strings.HasPrefix(rest, "@") {
			if i := strings.IndexAny(rest, " \t\n"); i >= 0 {
				rest = rest[i:]
			} else {
				rest = ""
			}
		}
		return c, strings.TrimSpace(rest), true
	}
	return "", "", false
}

// HandleUpdate never returns an error and never panics: every failure ends
// here as a log line and, where the chat is known, a reply.
func (b *MusicBot) HandleUpdate(ctx context.Context, upd model.Update) {
	cmd, arg, ok := ParseCommand(upd.Text)
	if !ok {
		return
	}
	ctx = logging.WithCommand(logging.WithChatID(ctx, upd.ChatID), cmd)
	log := logging.With(ctx, b.log)
	defer logging.TraceDuration(log, "MusicBot.HandleUpdate")()

	defer func() {
		if rec := recover(); rec != nil {
			metrics.IncCommand(cmd, "panic")
			log.Error().Interface("panic", rec).Bytes("stack", debug.Stack()).Msg("recovered from command panic")
		}
	}()

	if !b.allow(ctx, upd.ChatID, cmd) {
		metrics.IncCommand(cmd, "rate_limited")
		log.Info().Err(domain.ErrRateLimited).Msg("command dropped")
		b.reply(ctx, upd.ChatID, b.tr.T("rate_limited"))
		return
	}

	var outcome string
	switch cmd {
	case CmdPlay:
		outcome = b.play(ctx, upd.ChatID, arg)
	case CmdStop:
		outcome = b.stop(ctx, upd.ChatID)
	case CmdCurrent:
		outcome = b.current(ctx, upd.ChatID)
	}
	metrics.IncCommand(cmd, outcome)
	metrics.SetActiveChats(b.registry.Len())
}

func (b *MusicBot) play(ctx context.Context, chatID int64, query string) string {
	log := logging.With(ctx, b.log)
	if query == "" {
		b.reply(ctx, chatID, b.tr.T("play_usage"))
		return "usage"
	}

	track, err := b.resolver.Resolve(ctx, query)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			log.Info().Str("query", query).Msg("no catalog match")
		} else {
			log.Error().Err(err).Str("query", query).Msg("catalog lookup failed")
		}
		b.reply(ctx, chatID, b.tr.T("play_not_found"))
		return "not_found"
	}

	if err := b.calls.Join(ctx, chatID, track.StreamURL); err != nil {
		// A failed join never leaves the previous track audible.
		b.registry.Remove(chatID)
		log.Error().Err(err).Str("title", track.Title).Msg("join voice chat failed")
		b.reply(ctx, chatID, b.tr.T("play_failed"))
		return "failed"
	}

	b.registry.Set(chatID, model.NewNowPlaying(chatID, track))
	log.Info().Str("title", track.Title).Str("provider", track.Provider).Int("duration", track.Duration).Msg("now playing")
	b.reply(ctx, chatID, b.tr.T("now_playing", track.Title))
	return "playing"
}

func (b *MusicBot) stop(ctx context.Context, chatID int64) string {
	err := b.calls.Leave(ctx, chatID)
	switch {
	case err == nil:
		b.registry.Remove(chatID)
		b.reply(ctx, chatID, b.tr.T("stopped"))
		return "stopped"
	case errors.Is(err, domain.ErrNoActiveCall):
		// Not in a call, so any entry left behind is stale.
		b.registry.Remove(chatID)
	default:
		logging.With(ctx, b.log).Error().Err(err).Msg("leave voice chat failed")
	}
	b.reply(ctx, chatID, b.tr.T("nothing_playing"))
	return "idle"
}

func (b *MusicBot) current(ctx context.Context, chatID int64) string {
	e, ok := b.registry.Get(chatID)
	if !ok {
		b.reply(ctx, chatID, b.tr.T("nothing_playing"))
		return "idle"
	}
	b.reply(ctx, chatID, b.tr.T("currently_playing", e.Title))
	return "current"
}

// allow fails open: a broken limiter must not take the bot down with it.
func (b *MusicBot) allow(ctx context.Context, chatID int64, cmd string) bool {
	if b.limit.Limiter == nil || b.limit.PerMinute <= 0 {
		return true
	}
	key := red.ChatCommandKey(chatID, strings.TrimPrefix(cmd, "/"))
	ok, err := b.limit.Limiter.Allow(ctx, key, b.limit.PerMinute, time.Minute)
	if err != nil {
		logging.With(ctx, b.log).Warn().Err(err).Msg("rate limiter unavailable")
		return true
	}
	return ok
}

func (b *MusicBot) reply(ctx context.Context, chatID int64, text string) {
	if err := b.sender.SendMessage(ctx, chatID, text); err != nil {
		logging.With(ctx, b.log).Warn().Err(err).Msg("reply not delivered")
	}
}
