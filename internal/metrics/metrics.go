package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "raffle_engine"

var (
	// Registry holds the application-specific Prometheus collectors.
	Registry = prometheus.NewRegistry()

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled.",
		},
		[]string{"method", "route", "status"},
	)

	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10), // 5ms to ~5s
		},
		[]string{"method", "route"},
	)

	participations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "raffle",
			Name:      "participations_total",
			Help:      "Participation attempts by result code.",
		},
		[]string{"result"},
	)

	draws = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "raffle",
			Name:      "draws_total",
			Help:      "Committed prize draws by prize type and mode.",
		},
		[]string{"prize_type", "mode"},
	)

	reveals = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "raffle",
			Name:      "reveals_total",
			Help:      "Entries flipped to revealed.",
		},
	)

	payouts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "distribution",
			Name:      "payouts_total",
			Help:      "Winner payouts by prize type and final status.",
		},
		[]string{"prize_type", "status"},
	)

	payoutDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "distribution",
			Name:      "payout_duration_seconds",
			Help:      "Duration of a single winner payout.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 16), // 1ms to ~65s
		},
		[]string{"prize_type"},
	)
)

func init() {
	Registry.MustRegister(
		httpRequests,
		httpDuration,
		participations,
		draws,
		reveals,
		payouts,
		payoutDuration,
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		collectors.NewGoCollector(),
	)
}

// Handler returns an HTTP handler exposing the registered Prometheus metrics.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// GinMiddleware records request counts and latency per route template.
func GinMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		if route == "/metrics" {
			return
		}

		httpRequests.WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).Inc()
		httpDuration.WithLabelValues(c.Request.Method, route).Observe(time.Since(start).Seconds())
	}
}

// RecordParticipation counts a participation attempt by result code.
func RecordParticipation(result string) {
	participations.WithLabelValues(result).Inc()
}

// RecordDraw counts a committed draw.
func RecordDraw(prizeType, mode string) {
	draws.WithLabelValues(prizeType, mode).Inc()
}

// RecordReveals counts revealed entries.
func RecordReveals(n int) {
	if n > 0 {
		reveals.Add(float64(n))
	}
}

// RecordPayout records the outcome and duration of a payout.
func RecordPayout(prizeType, status string, duration time.Duration) {
	payouts.WithLabelValues(prizeType, status).Inc()
	payoutDuration.WithLabelValues(prizeType).Observe(duration.Seconds())
}
