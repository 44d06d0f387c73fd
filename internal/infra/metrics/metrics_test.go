//go:build !integration

package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestCommandCounterNormalizesLabels(t *testing.T) {
	before := testutil.ToFloat64(botCommandsTotal.WithLabelValues("play", "playing"))
	IncCommand(" PLAY ", "Playing")
	if got := testutil.ToFloat64(botCommandsTotal.WithLabelValues("play", "playing")); got != before+1 {
		t.Fatalf("counter = %v, want %v", got, before+1)
	}
}

func TestGauges(t *testing.T) {
	SetActiveChats(3)
	if got := testutil.ToFloat64(playbackActiveChats); got != 3 {
		t.Fatalf("active chats = %v", got)
	}
	SetQueueDepth(7)
	if got := testutil.ToFloat64(workerQueueDepth); got != 7 {
		t.Fatalf("queue depth = %v", got)
	}
}

func TestCollectorsEnqueued(t *testing.T) {
	if len(collectors) < 9 {
		t.Fatalf("expected all collectors enqueued, got %d", len(collectors))
	}
	ObserveResolve("jiosaavn", 120*time.Millisecond, true)
	if n := testutil.CollectAndCount(catalogResolveSeconds); n != 1 {
		t.Fatalf("histogram series = %d", n)
	}
}

func TestWebhookUpdateStatuses(t *testing.T) {
	for _, status := range []string{"queued", "ignored", "bad_body", "forbidden", "rejected"} {
		before := testutil.ToFloat64(webhookUpdatesTotal.WithLabelValues(status))
		IncWebhookUpdate(status)
		if got := testutil.ToFloat64(webhookUpdatesTotal.WithLabelValues(status)); got != before+1 {
			t.Fatalf("%s: counter = %v, want %v", status, got, before+1)
		}
	}
}
