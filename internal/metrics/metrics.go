package metrics

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	upstreamRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "console_upstream_requests_total",
			Help: "Requests issued to the iPrescribe API.",
		},
		[]string{"method", "route", "status"},
	)

	upstreamRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "console_upstream_request_duration_seconds",
			Help:    "iPrescribe API request latencies in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	sessionInvalidationsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "console_session_invalidations_total",
		Help: "Sessions dropped after the API rejected the credential.",
	})

	queryLookupsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "console_query_lookups_total",
			Help: "Query cache lookups by resource and outcome (hit, stale, miss, shared, disabled).",
		},
		[]string{"resource", "outcome"},
	)

	queryFetchErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "console_query_fetch_errors_total",
			Help: "Query fetches that failed after retries.",
		},
		[]string{"resource"},
	)

	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "console_http_requests_total",
			Help: "Console page requests.",
		},
		[]string{"method", "route", "status"},
	)
)

var registerOnce sync.Once

// Register adds the console collectors to the default registry. It is safe to
// call more than once.
func Register() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			upstreamRequestsTotal,
			upstreamRequestDuration,
			sessionInvalidationsTotal,
			queryLookupsTotal,
			queryFetchErrorsTotal,
			httpRequestsTotal,
		)
	})
}

func Handler() http.Handler {
	return promhttp.Handler()
}

func ObserveUpstream(method, route string, status int, elapsed time.Duration) {
	code := "error"
	if status > 0 {
		code = strconv.Itoa(status)
	}
	upstreamRequestsTotal.WithLabelValues(method, route, code).Inc()
	upstreamRequestDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

func SessionInvalidated() {
	sessionInvalidationsTotal.Inc()
}

func QueryLookup(resource, outcome string) {
	queryLookupsTotal.WithLabelValues(resource, outcome).Inc()
}

func QueryFetchError(resource string) {
	queryFetchErrorsTotal.WithLabelValues(resource).Inc()
}

// Instrument counts console page requests by matched route.
func Instrument() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		httpRequestsTotal.WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).Inc()
	}
}
