// File: cmd/keepalive/main.go
//
// keepalive serves a status banner and pings KEEPALIVE_URL on an interval,
// for hosts that idle services without inbound traffic.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"telegram-music-bot/internal/config"
	"telegram-music-bot/internal/infra/logging"
	"telegram-music-bot/internal/infra/sched"
)

func main() {
	cfgPath := flag.String("config", "config.yaml", "path to optional YAML config file")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath, false)
	if err != nil {
		l := zerolog.New(os.Stderr).With().Timestamp().Logger()
		l.Fatal().Err(err).Msg("config")
	}
	logger := logging.New(cfg.Log, false)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.KeepAlive.Port),
		Handler:           sched.StatusHandler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		logger.Info().Int("port", cfg.KeepAlive.Port).Msg("keep-alive server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("keep-alive server stopped")
			stop()
		}
	}()

	go func() { _ = sched.NewKeepAlive(cfg.KeepAlive.URL, cfg.KeepAlive.Interval, logger).Run(ctx) }()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
}
