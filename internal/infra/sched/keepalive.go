package sched

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"telegram-music-bot/internal/infra/metrics"
)

// Banner is what the keep-alive status page serves.
const Banner = "Keep-alive service is running!"

// KeepAlive periodically GETs a public URL so that hosting platforms which
// idle inactive instances see traffic.
type KeepAlive struct {
	url      string
	interval time.Duration
	client   *http.Client
	log      *zerolog.Logger
}

func NewKeepAlive(url string, interval time.Duration, logger *zerolog.Logger) *KeepAlive {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	l := logger.With().Str("component", "keepalive").Logger()
	return &KeepAlive{
		url:      url,
		interval: interval,
		client:   &http.Client{Timeout: 30 * time.Second},
		log:      &l,
	}
}

// Run waits one interval, pings, and repeats until ctx is done.
// An empty URL makes it return immediately.
func (k *KeepAlive) Run(ctx context.Context) error {
	if k.url == "" {
		k.log.Info().Msg("keep-alive disabled, no url configured")
		return nil
	}
	k.log.Info().Dur("interval", k.interval).Msg("Starting keep-alive")
	ticker := time.NewTicker(k.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			k.log.Info().Msg("Stopping keep-alive")
			return ctx.Err()
		case <-ticker.C:
			if err := k.Ping(ctx); err != nil {
				metrics.IncKeepAlivePing("failed")
				k.log.Warn().Err(err).Msg("Keep-alive ping failed")
				continue
			}
			metrics.IncKeepAlivePing("ok")
			k.log.Info().Msg("Keep-alive ping sent")
		}
	}
}

// Ping issues one GET. Any response counts as alive; only transport errors fail.
func (k *KeepAlive) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, k.url, nil)
	if err != nil {
		return fmt.Errorf("build ping request: %w", err)
	}
	resp, err := k.client.Do(req)
	if err != nil {
		return err
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return resp.Body.Close()
}

// StatusHandler serves the keep-alive banner on every path.
func StatusHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = io.WriteString(w, Banner)
	})
}
