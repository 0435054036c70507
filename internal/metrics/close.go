package metrics

import (
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	closeTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "roulette_close_total",
			Help: "Total roulette close attempts by result and winning color",
		},
		[]string{"result", "color"},
	)

	closeDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "roulette_close_duration_ms",
			Help:    "Roulette close+settlement duration in milliseconds",
			Buckets: prometheus.ExponentialBuckets(5, 2, 10),
		},
		[]string{"result", "color"},
	)
)

// RecordClose 记录关闭+结算的业务指标
// result: "success" | "fail"
// color: "red" | "black" | "unknown"
func RecordClose(result, color string, started time.Time) {
	res := result
	if res != "success" {
		res = "fail"
	}
	c := strings.ToLower(strings.TrimSpace(color))
	if c == "" {
		c = "unknown"
	}
	closeTotal.WithLabelValues(res, c).Inc()
	durMs := float64(time.Since(started).Milliseconds())
	closeDuration.WithLabelValues(res, c).Observe(durMs)
}
