package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() { register(keepalivePingsTotal) }

var keepalivePingsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "keepalive_pings_total",
		Help: "Self-pings issued by the keep-alive loop, labeled by status.",
	},
	[]string{"status"}, // ok|failed
)

func IncKeepAlivePing(status string) {
	keepalivePingsTotal.WithLabelValues(norm(status)).Inc()
}
