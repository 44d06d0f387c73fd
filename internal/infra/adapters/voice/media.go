package voice

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"sync"
	"time"

	"github.com/pion/interceptor"
	"github.com/pion/webrtc/v4"
	"github.com/pion/webrtc/v4/pkg/media"
	"github.com/pion/webrtc/v4/pkg/media/oggreader"
	"github.com/rs/zerolog"
)

// mediaSession is the local end of one group call: a WebRTC peer connection
// carrying a single Opus track, and the decoder feeding it.
type mediaSession interface {
	// Offer gathers ICE and returns Telegram join params plus our audio SSRC.
	Offer(ctx context.Context) (params string, ssrc uint32, err error)
	// Accept applies the server's transport description.
	Accept(transportParams string) error
	// Play replaces whatever is being streamed with streamURL.
	Play(streamURL string) error
	Close() error
}

type mediaFactory func() (mediaSession, error)

type FeederConfig struct {
	FFmpegPath string
	Bitrate    string
}

// webrtcSession is the pion-backed mediaSession.
type webrtcSession struct {
	pc     *webrtc.PeerConnection
	track  *webrtc.TrackLocalStaticSample
	sender *webrtc.RTPSender
	feeder FeederConfig
	log    *zerolog.Logger

	mu         sync.Mutex
	stopFeeder context.CancelFunc
	feederDone chan struct{}
}

func newWebRTCFactory(feeder FeederConfig, log *zerolog.Logger) mediaFactory {
	return func() (mediaSession, error) { return newWebRTCSession(feeder, log) }
}

func newWebRTCSession(feeder FeederConfig, log *zerolog.Logger) (*webrtcSession, error) {
	me := &webrtc.MediaEngine{}
	if err := me.RegisterCodec(webrtc.RTPCodecParameters{
		RTPCodecCapability: webrtc.RTPCodecCapability{
			MimeType:    webrtc.MimeTypeOpus,
			ClockRate:   48000,
			Channels:    2,
			SDPFmtpLine: opusFmtp,
		},
		PayloadType: opusPayloadType,
	}, webrtc.RTPCodecTypeAudio); err != nil {
		return nil, err
	}

	ir := &interceptor.Registry{}
	if err := webrtc.RegisterDefaultInterceptors(me, ir); err != nil {
		return nil, err
	}

	api := webrtc.NewAPI(
		webrtc.WithMediaEngine(me),
		webrtc.WithInterceptorRegistry(ir),
	)
	pc, err := api.NewPeerConnection(webrtc.Configuration{})
	if err != nil {
		return nil, fmt.Errorf("new peer connection: %w", err)
	}

	track, err := webrtc.NewTrackLocalStaticSample(
		webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeOpus, ClockRate: 48000, Channels: 2},
		"audio", "musicbot",
	)
	if err != nil {
		_ = pc.Close()
		return nil, err
	}
	sender, err := pc.AddTrack(track)
	if err != nil {
		_ = pc.Close()
		return nil, fmt.Errorf("add track: %w", err)
	}

	// RTCP must be read for the interceptors (NACK, reports) to work.
	go func() {
		buf := make([]byte, 1500)
		for {
			if _, _, err := sender.Read(buf); err != nil {
				return
			}
		}
	}()

	s := &webrtcSession{pc: pc, track: track, sender: sender, feeder: feeder, log: log}
	pc.OnConnectionStateChange(func(st webrtc.PeerConnectionState) {
		log.Debug().Str("state", st.String()).Msg("peer connection state")
	})
	return s, nil
}

func (s *webrtcSession) Offer(ctx context.Context) (string, uint32, error) {
	offer, err := s.pc.CreateOffer(nil)
	if err != nil {
		return "", 0, fmt.Errorf("create offer: %w", err)
	}
	gathered := webrtc.GatheringCompletePromise(s.pc)
	if err := s.pc.SetLocalDescription(offer); err != nil {
		return "", 0, fmt.Errorf("set local description: %w", err)
	}
	select {
	case <-gathered:
	case <-ctx.Done():
		return "", 0, ctx.Err()
	}

	encs := s.sender.GetParameters().Encodings
	if len(encs) == 0 {
		return "", 0, errors.New("audio sender has no encoding")
	}
	ssrc := uint32(encs[0].SSRC)

	params, err := buildJoinParams(s.pc.LocalDescription().SDP, ssrc)
	if err != nil {
		return "", 0, err
	}
	return params, ssrc, nil
}

func (s *webrtcSession) Accept(transportParams string) error {
	answer, err := buildAnswerSDP(transportParams)
	if err != nil {
		return err
	}
	return s.pc.SetRemoteDescription(webrtc.SessionDescription{Type: webrtc.SDPTypeAnswer, SDP: answer})
}

func (s *webrtcSession) Play(streamURL string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopLocked()

	ctx, cancel := context.WithCancel(context.Background())
	cmd := exec.CommandContext(ctx, s.feeder.FFmpegPath, ffmpegArgs(streamURL, s.feeder.Bitrate)...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		cancel()
		return err
	}
	if err := cmd.Start(); err != nil {
		cancel()
		return fmt.Errorf("start ffmpeg: %w", err)
	}

	done := make(chan struct{})
	s.stopFeeder, s.feederDone = cancel, done
	go func() {
		defer close(done)
		defer cancel()
		err := pumpOgg(ctx, stdout, s.track)
		_ = cmd.Wait()
		switch {
		case err == nil || errors.Is(err, io.EOF):
			s.log.Info().Msg("stream finished")
		case ctx.Err() != nil:
		default:
			s.log.Warn().Err(err).Msg("stream aborted")
		}
	}()
	return nil
}

func (s *webrtcSession) stopLocked() {
	if s.stopFeeder == nil {
		return
	}
	s.stopFeeder()
	<-s.feederDone
	s.stopFeeder, s.feederDone = nil, nil
}

func (s *webrtcSession) Close() error {
	s.mu.Lock()
	s.stopLocked()
	s.mu.Unlock()
	return s.pc.Close()
}

// ffmpegArgs decodes any input ffmpeg understands into 20 ms Ogg/Opus pages on stdout.
func ffmpegArgs(streamURL, bitrate string) []string {
	if bitrate == "" {
		bitrate = "128k"
	}
	return []string{
		"-hide_banner", "-loglevel", "error",
		"-reconnect", "1", "-reconnect_streamed", "1", "-reconnect_delay_max", "5",
		"-i", streamURL,
		"-vn",
		"-c:a", "libopus", "-b:a", bitrate,
		"-ar", "48000", "-ac", "2",
		"-frame_duration", "20",
		"-page_duration", "20000",
		"-f", "ogg", "pipe:1",
	}
}

const oggPageInterval = 20 * time.Millisecond

// pumpOgg writes one Ogg page per tick to track until r is exhausted or ctx ends.
func pumpOgg(ctx context.Context, r io.Reader, track *webrtc.TrackLocalStaticSample) error {
	ogg, _, err := oggreader.NewWith(r)
	if err != nil {
		return fmt.Errorf("ogg header: %w", err)
	}

	ticker := time.NewTicker(oggPageInterval)
	defer ticker.Stop()

	var lastGranule uint64
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}

		page, header, err := ogg.ParseNextPage()
		if err != nil {
			return err
		}
		if header.GranulePosition == 0 {
			continue // OpusTags
		}
		samples := header.GranulePosition - lastGranule
		lastGranule = header.GranulePosition
		dur := time.Duration(float64(samples)/48000*1000) * time.Millisecond
		if dur <= 0 {
			dur = oggPageInterval
		}
		if err := track.WriteSample(media.Sample{Data: page, Duration: dur}); err != nil {
			return err
		}
	}
}
