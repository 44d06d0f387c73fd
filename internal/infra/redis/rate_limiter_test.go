//go:build !integration

package redis

import (
	"context"
	"errors"
	"testing"
	"time"
)

type fakeCounter struct {
	counts  map[string]int64
	expires map[string]time.Duration
	incrErr error
}

func newFakeCounter() *fakeCounter {
	return &fakeCounter{counts: map[string]int64{}, expires: map[string]time.Duration{}}
}

func (f *fakeCounter) Ping(context.Context) error { return nil }
func (f *fakeCounter) Close() error               { return nil }

func (f *fakeCounter) Incr(_ context.Context, key string) (int64, error) {
	if f.incrErr != nil {
		return 0, f.incrErr
	}
	f.counts[key]++
	return f.counts[key], nil
}

func (f *fakeCounter) Expire(_ context.Context, key string, d time.Duration) error {
	f.expires[key] = d
	return nil
}

func TestRateLimiter_Allow(t *testing.T) {
	fc := newFakeCounter()
	rl := NewRateLimiter(fc)
	key := ChatCommandKey(42, "play")

	for i := 1; i <= 3; i++ {
		ok, err := rl.Allow(context.Background(), key, 3, time.Minute)
		if err != nil || !ok {
			t.Fatalf("hit %d: ok=%v err=%v", i, ok, err)
		}
	}
	ok, err := rl.Allow(context.Background(), key, 3, time.Minute)
	if err != nil || ok {
		t.Fatalf("4th hit should be refused: ok=%v err=%v", ok, err)
	}
	if fc.expires[key] != time.Minute {
		t.Fatalf("window not set on first hit: %v", fc.expires[key])
	}
}

func TestRateLimiter_PropagatesErrors(t *testing.T) {
	fc := newFakeCounter()
	fc.incrErr = errors.New("connection refused")
	if _, err := NewRateLimiter(fc).Allow(context.Background(), "k", 1, time.Second); err == nil {
		t.Fatal("expected error")
	}
}

func TestChatCommandKey(t *testing.T) {
	if got := ChatCommandKey(-1001, "stop"); got != "rate_limit:-1001:stop" {
		t.Fatalf("key = %q", got)
	}
}
