package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(
		botCommandsTotal,
		botRepliesTotal,
		webhookUpdatesTotal,
		playbackActiveChats,
	)
}

var (
	botCommandsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bot_commands_total",
			Help: "Commands handled, labeled by command and outcome.",
		},
		[]string{"command", "outcome"}, // outcome: playing|usage|not_found|failed|stopped|idle|current|rate_limited|ignored
	)

	botRepliesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bot_replies_total",
			Help: "Replies sent to chats, labeled by delivery status.",
		},
		[]string{"status"}, // sent|failed
	)

	webhookUpdatesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "webhook_updates_total",
			Help: "Incoming webhook deliveries by status.",
		},
		[]string{"status"}, // queued|ignored|bad_body|forbidden|rejected
	)

	playbackActiveChats = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "playback_active_chats",
			Help: "Number of chats with an active voice stream.",
		},
	)
)

func IncCommand(command, outcome string) {
	botCommandsTotal.WithLabelValues(norm(command), norm(outcome)).Inc()
}

func IncReply(status string) {
	botRepliesTotal.WithLabelValues(norm(status)).Inc()
}

func IncWebhookUpdate(status string) {
	webhookUpdatesTotal.WithLabelValues(norm(status)).Inc()
}

func SetActiveChats(n int) {
	playbackActiveChats.Set(float64(n))
}
