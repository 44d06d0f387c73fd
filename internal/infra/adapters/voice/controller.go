package voice

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"telegram-music-bot/internal/domain"
	"telegram-music-bot/internal/domain/ports/adapter"
	"telegram-music-bot/internal/infra/logging"
)

var _ adapter.CallController = (*Controller)(nil)

type activeCall struct {
	handle callHandle
	ssrc   uint32
	media  mediaSession
}

// Controller streams audio into group voice chats: MTProto for signalling,
// WebRTC for media.
type Controller struct {
	sig      signaller
	newMedia mediaFactory
	log      *zerolog.Logger

	mu    sync.Mutex
	calls map[int64]*activeCall
}

func NewController(sig *MTProto, feeder FeederConfig, log *zerolog.Logger) *Controller {
	l := log.With().Str("component", "voice").Logger()
	return newController(sig, newWebRTCFactory(feeder, &l), &l)
}

func newController(sig signaller, newMedia mediaFactory, log *zerolog.Logger) *Controller {
	return &Controller{
		sig:      sig,
		newMedia: newMedia,
		log:      log,
		calls:    make(map[int64]*activeCall),
	}
}

// Join starts streaming streamURL in chatID's voice chat. If we are already in
// that call, only the source is swapped.
func (c *Controller) Join(ctx context.Context, chatID int64, streamURL string) error {
	log := logging.With(ctx, c.log)

	c.mu.Lock()
	cur, ok := c.calls[chatID]
	c.mu.Unlock()
	if ok {
		// Play has already stopped the old source; a call left silent is dropped.
		if err := cur.media.Play(streamURL); err != nil {
			if lerr := c.Leave(ctx, chatID); lerr != nil {
				log.Warn().Err(lerr).Int64("chat_id", chatID).Msg("leave after failed replace")
			}
			return fmt.Errorf("replace source: %w", err)
		}
		log.Info().Int64("chat_id", chatID).Msg("source replaced")
		return nil
	}

	m, err := c.newMedia()
	if err != nil {
		return fmt.Errorf("media session: %w", err)
	}
	params, ssrc, err := m.Offer(ctx)
	if err != nil {
		_ = m.Close()
		return fmt.Errorf("media offer: %w", err)
	}
	handle, transport, err := c.sig.JoinGroupCall(ctx, chatID, params)
	if err != nil {
		_ = m.Close()
		return err
	}

	// From here on we are a call participant; undo the join on failure.
	fail := func(err error) error {
		_ = m.Close()
		if lerr := c.sig.LeaveGroupCall(context.WithoutCancel(ctx), handle, ssrc); lerr != nil {
			log.Warn().Err(lerr).Int64("chat_id", chatID).Msg("leave after failed join")
		}
		return err
	}
	if err := m.Accept(transport); err != nil {
		return fail(fmt.Errorf("apply transport: %w", err))
	}
	if err := m.Play(streamURL); err != nil {
		return fail(fmt.Errorf("start stream: %w", err))
	}

	c.mu.Lock()
	c.calls[chatID] = &activeCall{handle: handle, ssrc: ssrc, media: m}
	c.mu.Unlock()
	log.Info().Int64("chat_id", chatID).Uint32("ssrc", ssrc).Msg("joined voice chat")
	return nil
}

// Leave hangs up chatID's call. Local media is torn down even when the server
// rejects the leave, since the call is unusable either way.
func (c *Controller) Leave(ctx context.Context, chatID int64) error {
	c.mu.Lock()
	cur, ok := c.calls[chatID]
	delete(c.calls, chatID)
	c.mu.Unlock()
	if !ok {
		return domain.ErrNoActiveCall
	}

	err := c.sig.LeaveGroupCall(ctx, cur.handle, cur.ssrc)
	if cerr := cur.media.Close(); cerr != nil {
		logging.With(ctx, c.log).Debug().Err(cerr).Msg("close media")
	}
	if err != nil {
		return err
	}
	logging.With(ctx, c.log).Info().Int64("chat_id", chatID).Msg("left voice chat")
	return nil
}

// Close leaves every call; used on shutdown.
func (c *Controller) Close(ctx context.Context) error {
	c.mu.Lock()
	ids := make([]int64, 0, len(c.calls))
	for id := range c.calls {
		ids = append(ids, id)
	}
	c.mu.Unlock()

	var errs []error
	for _, id := range ids {
		if err := c.Leave(ctx, id); err != nil {
			errs = append(errs, fmt.Errorf("chat %d: %w", id, err))
		}
	}
	return errors.Join(errs...)
}

// Active reports the number of calls we are in.
func (c *Controller) Active() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.calls)
}
