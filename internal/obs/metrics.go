package obs

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	LoginAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rbac_login_attempts_total",
		Help: "Login attempts by outcome.",
	}, []string{"outcome"})

	TokenRefreshes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rbac_token_refreshes_total",
		Help: "Refresh token exchanges by outcome.",
	}, []string{"outcome"})

	AuthzDenials = promauto.NewCounter(prometheus.CounterOpts{
		Name: "rbac_authorization_denials_total",
		Help: "Requests rejected by the authorization middleware.",
	})

	AuditWriteFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "rbac_audit_write_failures_total",
		Help: "Audit log appends that failed in the background.",
	})

	httpRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rbac_http_requests_total",
		Help: "HTTP requests by method, route and status.",
	}, []string{"method", "route", "status"})

	httpDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "rbac_http_request_duration_seconds",
		Help:    "HTTP request latency by route.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route"})
)

// Instrument records request counts and latency per route template.
func Instrument() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		httpRequests.WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).Inc()
		httpDuration.WithLabelValues(c.Request.Method, route).Observe(time.Since(start).Seconds())
	}
}

// MetricsHandler exposes the default registry for Prometheus scraping.
func MetricsHandler() gin.HandlerFunc {
	h := promhttp.Handler()
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}
