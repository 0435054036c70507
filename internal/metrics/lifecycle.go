package metrics

import (
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	lifecycleTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "roulette_lifecycle_total",
			Help: "Total lifecycle operations by result and event (create/open)",
		},
		[]string{"result", "event"},
	)

	lifecycleDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "roulette_lifecycle_duration_ms",
			Help:    "Lifecycle operation duration in milliseconds",
			Buckets: prometheus.ExponentialBuckets(5, 2, 10),
		},
		[]string{"result", "event"},
	)
)

// RecordLifecycle 记录 create/open 生命周期操作指标
// result: "success" | "noop"(软失败) | "fail"
func RecordLifecycle(result, event string, started time.Time) {
	res := strings.ToLower(result)
	if res != "success" && res != "noop" {
		res = "fail"
	}
	ev := strings.ToLower(event)
	lifecycleTotal.WithLabelValues(res, ev).Inc()
	durMs := float64(time.Since(started).Milliseconds())
	lifecycleDuration.WithLabelValues(res, ev).Observe(durMs)
}
