// File: cmd/musicbot/main.go
package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"telegram-music-bot/internal/application"
	"telegram-music-bot/internal/config"
	"telegram-music-bot/internal/domain/ports/adapter"
	"telegram-music-bot/internal/infra/adapters/catalog"
	tele "telegram-music-bot/internal/infra/adapters/telegram"
	"telegram-music-bot/internal/infra/adapters/voice"
	"telegram-music-bot/internal/infra/api"
	"telegram-music-bot/internal/infra/i18n"
	"telegram-music-bot/internal/infra/logging"
	"telegram-music-bot/internal/infra/memory"
	"telegram-music-bot/internal/infra/metrics"
	red "telegram-music-bot/internal/infra/redis"
	"telegram-music-bot/internal/infra/sched"
	"telegram-music-bot/internal/infra/worker"
)

// set with -ldflags "-X main.version=... -X main.commit=..."
var (
	version = "dev"
	commit  = "none"
)

// callController is what main needs from either controller flavour.
type callController interface {
	adapter.CallController
	Close(ctx context.Context) error
}

type botAdapter interface {
	adapter.TelegramBotAdapter
	adapter.WebhookRegistrar
}

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ---- CLI flags ----
	cfgPath := flag.String("config", "config.yaml", "path to optional YAML config file")
	devMode := flag.Bool("dev", false, "developer mode: log replies and fake voice calls instead of using Telegram")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath, *devMode)
	if err != nil {
		l := zerolog.New(os.Stderr).With().Timestamp().Logger()
		l.Fatal().Err(err).Msg("config")
	}

	logger := logging.New(cfg.Log, cfg.Runtime.Dev)
	logger.Info().
		Str("version", version).
		Bool("dev", cfg.Runtime.Dev).
		Str("webhook", logging.Redact(cfg.WebhookTarget(), cfg.Runtime.Dev)).
		Msg("starting music bot")

	// ---- Metrics ----
	metrics.MustRegister()
	metrics.SetBuildInfo(version, commit)

	// ---- Replies ----
	tr, err := i18n.NewTranslator(i18n.LocalesFS, cfg.Bot.Language)
	if err != nil {
		logger.Fatal().Err(err).Str("lang", cfg.Bot.Language).Msg("translations")
	}

	// ---- Catalog ----
	resolver := catalog.BuildChain(cfg.Catalog.Providers, cfg.Catalog.JioSaavnURL, cfg.Catalog.Timeout, logger)

	// ---- Voice ----
	var (
		calls   callController
		session *voice.MTProto
	)
	if cfg.Runtime.Dev {
		calls = voice.NewNoopController(logger)
	} else {
		session, err = voice.NewMTProto(cfg.Voice.APIID, cfg.Voice.APIHash, cfg.Voice.SessionString,
			logging.NewZap(cfg.Log, cfg.Runtime.Dev), logger)
		if err != nil {
			logger.Fatal().Err(err).Msg("mtproto session")
		}
		startCtx, startCancel := context.WithTimeout(ctx, time.Minute)
		err = session.Start(startCtx)
		startCancel()
		if err != nil {
			logger.Fatal().Err(err).Msg("mtproto start")
		}
		defer session.Close()
		calls = voice.NewController(session, voice.FeederConfig{
			FFmpegPath: cfg.Voice.FFmpegPath,
			Bitrate:    cfg.Voice.Bitrate,
		}, logger)
	}

	// ---- Telegram ----
	var bot botAdapter
	if cfg.Runtime.Dev {
		bot = tele.NewNoopBotAdapter(logger)
	} else {
		bot, err = tele.NewBotAPIAdapter(&cfg.Bot, logger)
		if err != nil {
			logger.Fatal().Err(err).Msg("telegram")
		}
	}

	// ---- Redis (optional) ----
	var limit application.RateLimit
	if cfg.Redis.URL != "" {
		redisClient, err := red.NewClient(ctx, &cfg.Redis)
		if err != nil {
			logger.Warn().Err(err).Msg("redis unavailable, command rate limiting disabled")
		} else {
			defer redisClient.Close()
			limit = application.RateLimit{Limiter: red.NewRateLimiter(redisClient), PerMinute: cfg.RateLimit.PerMinute}
		}
	}

	// ---- Dispatcher + worker loop ----
	musicBot := application.NewMusicBot(resolver, calls, memory.NewPlaybackRegistry(), bot, tr, limit, logger)

	loop := worker.NewLoop(cfg.Worker.QueueSize, cfg.Worker.TaskTimeout, logger)
	loop.Start(ctx)

	// ---- HTTP ----
	srv := api.NewServer(cfg, musicBot, loop, bot, logger)
	srvErr := make(chan error, 1)
	go func() { srvErr <- srv.Start() }()

	// ---- Keep-alive (optional) ----
	if cfg.KeepAlive.URL != "" {
		ka := sched.NewKeepAlive(cfg.KeepAlive.URL, cfg.KeepAlive.Interval, logger)
		go func() { _ = ka.Run(ctx) }()
	}

	// ---- Graceful shutdown ----
	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-sigc:
		logger.Info().Str("signal", sig.String()).Msg("shutdown requested")
	case err := <-srvErr:
		if err != nil {
			logger.Error().Err(err).Msg("http server stopped")
		}
	}
	shutdown(srv, loop, calls, logger)
}

func shutdown(srv *api.Server, loop *worker.Loop, calls callController, logger *zerolog.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Warn().Err(err).Msg("http shutdown")
	}
	loop.Stop()
	if err := calls.Close(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Warn().Err(err).Msg("leaving voice chats")
	}
	logger.Info().Msg("bye")
}
