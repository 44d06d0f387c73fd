package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"telegram-music-bot/internal/config"
	"telegram-music-bot/internal/domain/model"
	"telegram-music-bot/internal/domain/ports/adapter"
	"telegram-music-bot/internal/infra/logging"
	"telegram-music-bot/internal/infra/metrics"
	"telegram-music-bot/internal/infra/worker"
)

const (
	indexBody     = "Telegram JioSaavn Music Bot is running!"
	webhookRoute  = "/{token}"
	setWebhookTTL = 10 * time.Second // within the default write timeout
)

// UpdateHandler processes one normalised update. It runs on the worker loop.
type UpdateHandler interface {
	HandleUpdate(ctx context.Context, upd model.Update)
}

// Submitter queues work for the single command goroutine.
type Submitter interface {
	Submit(name string, task worker.Task) (string, error)
}

// Server is the inbound HTTP side: the webhook endpoint the platform
// posts updates to, plus health, metrics and the webhook registration helper.
type Server struct {
	token     string
	target    string
	handler   UpdateHandler
	queue     Submitter
	registrar adapter.WebhookRegistrar
	log       *zerolog.Logger
	httpCfg   config.HTTPConfig

	srv *http.Server
}

func NewServer(cfg *config.Config, handler UpdateHandler, queue Submitter, registrar adapter.WebhookRegistrar, log *zerolog.Logger) *Server {
	l := log.With().Str("component", "http").Logger()
	return &Server{
		token:     cfg.Bot.Token,
		target:    cfg.WebhookTarget(),
		handler:   handler,
		queue:     queue,
		registrar: registrar,
		log:       &l,
		httpCfg:   cfg.HTTP,
	}
}

// Router builds the chi router with the standard middleware chain.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Get("/", s.handleIndex)
	r.Get("/health", s.handleHealth)
	r.Handle("/metrics", promhttp.Handler())
	r.HandleFunc("/setwebhook", s.handleSetWebhook)
	r.Post(webhookRoute, s.handleWebhook)

	mws := []Middleware{TraceID(), RequestLog(s.log, s.token), Recover(s.log)}
	if s.httpCfg.WriteTimeout > 0 {
		mws = append(mws, Timeout(s.httpCfg.WriteTimeout))
	}
	return Chain(r, mws...)
}

// Start serves on the configured port and returns once the listener stops.
// http.ErrServerClosed after Shutdown is reported as nil.
func (s *Server) Start() error {
	s.srv = &http.Server{
		Addr:              fmt.Sprintf(":%d", s.httpCfg.Port),
		Handler:           s.Router(),
		ReadHeaderTimeout: s.httpCfg.ReadTimeout,
		ReadTimeout:       s.httpCfg.ReadTimeout,
		WriteTimeout:      s.httpCfg.WriteTimeout,
	}
	s.log.Info().Int("port", s.httpCfg.Port).Msg("http server listening")
	if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.srv == nil {
		return nil
	}
	return s.srv.Shutdown(ctx)
}

func (s *Server) handleIndex(w http.ResponseWriter, _ *http.Request) {
	writeText(w, http.StatusOK, indexBody)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeText(w, http.StatusOK, "OK")
}

func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	if chi.URLParam(r, "token") != s.token {
		metrics.IncWebhookUpdate("forbidden")
		http.NotFound(w, r)
		return
	}
	log := logging.With(r.Context(), s.log)

	var upd tgbotapi.Update
	if err := json.NewDecoder(r.Body).Decode(&upd); err != nil {
		metrics.IncWebhookUpdate("bad_body")
		log.Error().Err(err).Msg("webhook body is not a valid update")
		writeText(w, http.StatusInternalServerError, "Error")
		return
	}

	msg := upd.Message
	if msg == nil || msg.Chat == nil {
		metrics.IncWebhookUpdate("ignored")
		writeText(w, http.StatusOK, "OK")
		return
	}

	traceID := logging.TraceID(r.Context())
	u := model.Update{UpdateID: upd.UpdateID, ChatID: msg.Chat.ID, Text: msg.Text}
	id, err := s.queue.Submit("update", func(ctx context.Context) error {
		s.handler.HandleUpdate(logging.WithTraceID(ctx, traceID), u)
		return nil
	})
	if err != nil {
		metrics.IncWebhookUpdate("rejected")
		log.Error().Err(err).Int64("chat_id", u.ChatID).Msg("update not queued")
		writeText(w, http.StatusInternalServerError, "Error")
		return
	}

	metrics.IncWebhookUpdate("queued")
	log.Debug().Str("job_id", id).Int("update_id", u.UpdateID).Msg("update queued")
	writeText(w, http.StatusOK, "OK")
}

func (s *Server) handleSetWebhook(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), setWebhookTTL)
	defer cancel()

	raw, err := s.registrar.SetWebhook(ctx, s.target)
	if err != nil {
		logging.With(ctx, s.log).Error().Err(err).Msg("set webhook failed")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	logging.With(ctx, s.log).Info().Msg("webhook registered")
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(raw)
}

func writeText(w http.ResponseWriter, code int, body string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(code)
	_, _ = w.Write([]byte(body))
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
