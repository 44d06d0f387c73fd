package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() { register(workerQueueDepth, workerTasksTotal) }

var (
	workerQueueDepth = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "worker_queue_depth",
			Help: "Tasks waiting in the command loop queue.",
		},
	)

	workerTasksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "worker_tasks_total",
			Help: "Tasks processed by the command loop, labeled by status.",
		},
		[]string{"status"}, // completed|failed|panicked|dropped
	)
)

func SetQueueDepth(n int) {
	workerQueueDepth.Set(float64(n))
}

func IncWorkerTask(status string) {
	workerTasksTotal.WithLabelValues(norm(status)).Inc()
}
