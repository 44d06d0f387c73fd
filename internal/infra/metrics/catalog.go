package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func init() { register(catalogResolveSeconds) }

var catalogResolveSeconds = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "catalog_resolve_seconds",
		Help:    "Song lookup latency per provider.",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 4, 8, 15},
	},
	[]string{"provider", "success"},
)

func ObserveResolve(provider string, d time.Duration, success bool) {
	catalogResolveSeconds.WithLabelValues(norm(provider), strconv.FormatBool(success)).Observe(d.Seconds())
}
