package metrics

import (
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	// RequestsTotal counts HTTP requests by route and status code.
	RequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "pointstream",
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "Total number of HTTP requests, labeled by route and status.",
	}, []string{"route", "status"})

	// StreamsInFlight is the number of point streams currently being written.
	StreamsInFlight = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "pointstream",
		Subsystem: "stream",
		Name:      "in_flight",
		Help:      "Current number of point streams being written.",
	})

	// StreamsTotal counts finished streams by outcome.
	StreamsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "pointstream",
		Subsystem: "stream",
		Name:      "total",
		Help:      "Total number of point streams, labeled by outcome.",
	}, []string{"outcome"})

	ChunksTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "pointstream",
		Subsystem: "stream",
		Name:      "chunks_total",
		Help:      "Total number of chunks written.",
	})

	PointsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "pointstream",
		Subsystem: "stream",
		Name:      "points_total",
		Help:      "Total number of points written.",
	})

	BytesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "pointstream",
		Subsystem: "stream",
		Name:      "bytes_total",
		Help:      "Total number of payload bytes written, before compression.",
	})

	// StreamDurationSeconds is the time from the first to the last chunk write.
	StreamDurationSeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "pointstream",
		Subsystem: "stream",
		Name:      "duration_seconds",
		Help:      "Time spent writing one point stream.",
		Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
	}, []string{"outcome"})
)

// Register registers the stream metrics with the default Prometheus registry.
// Safe to call multiple times.
func Register() {
	once.Do(func() {
		prometheus.MustRegister(
			RequestsTotal,
			StreamsInFlight,
			StreamsTotal,
			ChunksTotal,
			PointsTotal,
			BytesTotal,
			StreamDurationSeconds,
		)
	})
}

// ObserveStream records one finished stream.
func ObserveStream(outcome string, chunks, points, bytes int, elapsed time.Duration) {
	StreamsTotal.WithLabelValues(outcome).Inc()
	ChunksTotal.Add(float64(chunks))
	PointsTotal.Add(float64(points))
	BytesTotal.Add(float64(bytes))
	StreamDurationSeconds.WithLabelValues(outcome).Observe(elapsed.Seconds())
}

// Middleware counts requests per matched route.
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		RequestsTotal.WithLabelValues(route, strconv.Itoa(c.Writer.Status())).Inc()
	}
}
