package metrics

import (
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "objectd",
		Name:      "http_requests_total",
		Help:      "HTTP requests by method and status code.",
	}, []string{"method", "status"})

	httpDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "objectd",
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request latency.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method"})

	// ObjectsCreated counts objects confirmed on disk.
	ObjectsCreated = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "objectd",
		Name:      "objects_created_total",
		Help:      "Objects written and confirmed.",
	})

	// ObjectsDeleted counts metadata rows removed by deletes, including cascades.
	ObjectsDeleted = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "objectd",
		Name:      "objects_deleted_total",
		Help:      "Objects removed, including cascaded children and ancestors.",
	})

	UploadBytes = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "objectd",
		Name:      "upload_bytes_total",
		Help:      "Bytes written by successful uploads.",
	})

	BucketsCreated = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "objectd",
		Name:      "buckets_created_total",
		Help:      "Buckets created.",
	})

	PendingSwept = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "objectd",
		Name:      "pending_swept_total",
		Help:      "Stale pending object reservations removed by the sweeper.",
	})

	initOnce sync.Once
)

// InitMetrics registers the collectors with the default registry. Safe to call more than once.
func InitMetrics() {
	initOnce.Do(func() {
		prometheus.MustRegister(
			httpRequests,
			httpDuration,
			ObjectsCreated,
			ObjectsDeleted,
			UploadBytes,
			BucketsCreated,
			PendingSwept,
		)
	})
}

// Middleware records request counts and latency.
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		method := c.Request.Method
		httpRequests.WithLabelValues(method, strconv.Itoa(c.Writer.Status())).Inc()
		httpDuration.WithLabelValues(method).Observe(time.Since(start).Seconds())
	}
}

// Register attaches the Prometheus metrics endpoint to the router.
func Register(router *gin.Engine, path string) {
	router.GET(path, gin.WrapH(promhttp.Handler()))
}
