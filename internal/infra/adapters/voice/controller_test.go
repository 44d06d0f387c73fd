//go:build !integration

package voice

import (
	"context"
	"errors"
	"testing"

	"github.com/gotd/td/tg"
	"github.com/rs/zerolog"

	"telegram-music-bot/internal/domain"
)

type fakeSignaller struct {
	joinErr  error
	leaveErr error
	joins    []int64
	leaves   []callHandle
}

func (f *fakeSignaller) JoinGroupCall(_ context.Context, chatID int64, params string) (callHandle, string, error) {
	if f.joinErr != nil {
		return callHandle{}, "", f.joinErr
	}
	f.joins = append(f.joins, chatID)
	return callHandle{ID: chatID, AccessHash: 1}, `{"transport":{}}`, nil
}

func (f *fakeSignaller) LeaveGroupCall(_ context.Context, call callHandle, _ uint32) error {
	f.leaves = append(f.leaves, call)
	return f.leaveErr
}

type fakeMedia struct {
	acceptErr error
	playErr   error
	played    []string
	closed    bool
}

func (m *fakeMedia) Offer(context.Context) (string, uint32, error) { return `{"ssrc":1}`, 1, nil }
func (m *fakeMedia) Accept(string) error                           { return m.acceptErr }
func (m *fakeMedia) Play(u string) error {
	if m.playErr != nil {
		return m.playErr
	}
	m.played = append(m.played, u)
	return nil
}
func (m *fakeMedia) Close() error                                  { m.closed = true; return nil }

func newTestController(sig signaller, medias *[]*fakeMedia, acceptErr error) *Controller {
	log := zerolog.Nop()
	return newController(sig, func() (mediaSession, error) {
		m := &fakeMedia{acceptErr: acceptErr}
		*medias = append(*medias, m)
		return m, nil
	}, &log)
}

func TestController_JoinThenReplace(t *testing.T) {
	sig := &fakeSignaller{}
	var medias []*fakeMedia
	c := newTestController(sig, &medias, nil)

	if err := c.Join(context.Background(), -1001, "http://x/a.mp3"); err != nil {
		t.Fatalf("Join: %v", err)
	}
	if err := c.Join(context.Background(), -1001, "http://x/b.mp3"); err != nil {
		t.Fatalf("second Join: %v", err)
	}

	if len(sig.joins) != 1 || len(medias) != 1 {
		t.Fatalf("expected one signalling join, got %d joins / %d sessions", len(sig.joins), len(medias))
	}
	if got := medias[0].played; len(got) != 2 || got[1] != "http://x/b.mp3" {
		t.Fatalf("played = %v", got)
	}
	if c.Active() != 1 {
		t.Fatalf("Active = %d", c.Active())
	}
}

func TestController_LeaveWithoutCall(t *testing.T) {
	var medias []*fakeMedia
	c := newTestController(&fakeSignaller{}, &medias, nil)
	if err := c.Leave(context.Background(), 42); !errors.Is(err, domain.ErrNoActiveCall) {
		t.Fatalf("err = %v, want ErrNoActiveCall", err)
	}
}

func TestController_LeaveTearsDown(t *testing.T) {
	sig := &fakeSignaller{leaveErr: errors.New("GROUPCALL_FORBIDDEN")}
	var medias []*fakeMedia
	c := newTestController(sig, &medias, nil)

	_ = c.Join(context.Background(), -42, "http://x/a.mp3")
	if err := c.Leave(context.Background(), -42); err == nil {
		t.Fatal("expected server error to surface")
	}
	if !medias[0].closed || c.Active() != 0 {
		t.Fatal("local media should be closed even when the server rejects the leave")
	}
	if err := c.Leave(context.Background(), -42); !errors.Is(err, domain.ErrNoActiveCall) {
		t.Fatalf("second leave err = %v", err)
	}
}

func TestController_JoinFailures(t *testing.T) {
	t.Run("signalling", func(t *testing.T) {
		sig := &fakeSignaller{joinErr: domain.ErrNotFound}
		var medias []*fakeMedia
		c := newTestController(sig, &medias, nil)
		if err := c.Join(context.Background(), -1, "u"); !errors.Is(err, domain.ErrNotFound) {
			t.Fatalf("err = %v", err)
		}
		if !medias[0].closed || c.Active() != 0 {
			t.Fatal("media session leaked")
		}
	})

	t.Run("transport rejected", func(t *testing.T) {
		sig := &fakeSignaller{}
		var medias []*fakeMedia
		c := newTestController(sig, &medias, errors.New("bad sdp"))
		if err := c.Join(context.Background(), -1, "u"); err == nil {
			t.Fatal("expected error")
		}
		if len(sig.leaves) != 1 {
			t.Fatal("a half-joined call must be left")
		}
		if c.Active() != 0 {
			t.Fatal("call should not be recorded")
		}
	})
}

func TestController_Close(t *testing.T) {
	sig := &fakeSignaller{}
	var medias []*fakeMedia
	c := newTestController(sig, &medias, nil)
	_ = c.Join(context.Background(), -1, "u")
	_ = c.Join(context.Background(), -2, "u")

	if err := c.Close(context.Background()); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if len(sig.leaves) != 2 || c.Active() != 0 {
		t.Fatalf("leaves = %d, active = %d", len(sig.leaves), c.Active())
	}
}

func TestSplitChatID(t *testing.T) {
	tests := []struct {
		in      int64
		kind    peerKind
		id      int64
		wantErr bool
	}{
		{-1001234567890, peerChannel, 1234567890, false},
		{-123456, peerBasicChat, 123456, false},
		{42, 0, 0, true},
	}
	for _, tc := range tests {
		kind, id, err := splitChatID(tc.in)
		if (err != nil) != tc.wantErr {
			t.Fatalf("%d: err = %v", tc.in, err)
		}
		if err == nil && (kind != tc.kind || id != tc.id) {
			t.Fatalf("%d: got (%v, %d)", tc.in, kind, id)
		}
	}
}

func TestConnectionFromUpdates(t *testing.T) {
	upd := &tg.Updates{Updates: []tg.UpdateClass{
		&tg.UpdateGroupCallConnection{Presentation: true, Params: tg.DataJSON{Data: "screen"}},
		&tg.UpdateGroupCallConnection{Params: tg.DataJSON{Data: `{"transport":{}}`}},
	}}
	got, err := connectionFromUpdates(upd)
	if err != nil || got != `{"transport":{}}` {
		t.Fatalf("got %q, %v", got, err)
	}

	if _, err := connectionFromUpdates(&tg.Updates{}); err == nil {
		t.Fatal("expected error when no connection update is present")
	}
}

func TestController_FailedReplaceLeavesCall(t *testing.T) {
	sig := &fakeSignaller{}
	var medias []*fakeMedia
	c := newTestController(sig, &medias, nil)

	if err := c.Join(context.Background(), -5, "http://x/a.mp3"); err != nil {
		t.Fatalf("Join: %v", err)
	}
	medias[0].playErr = errors.New("exec: ffmpeg not found")

	if err := c.Join(context.Background(), -5, "http://x/b.mp3"); err == nil {
		t.Fatal("expected replace error")
	}
	if c.Active() != 0 || len(sig.leaves) != 1 || !medias[0].closed {
		t.Fatalf("silent call kept: active=%d leaves=%d closed=%v", c.Active(), len(sig.leaves), medias[0].closed)
	}
	if err := c.Leave(context.Background(), -5); !errors.Is(err, domain.ErrNoActiveCall) {
		t.Fatalf("Leave after failed replace = %v", err)
	}
}
