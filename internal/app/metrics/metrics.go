// Package metrics exposes Prometheus collectors for the bridge.
package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Registry holds the bridge-specific Prometheus collectors.
	Registry = prometheus.NewRegistry()

	httpInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "dexifi_bridge",
			Subsystem: "http",
			Name:      "inflight_requests",
			Help:      "Current number of in-flight HTTP requests.",
		},
	)

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "dexifi_bridge",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled.",
		},
		[]string{"method", "path", "status"},
	)

	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "dexifi_bridge",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10), // 5ms to ~5s
		},
		[]string{"method", "path"},
	)

	locksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "dexifi_bridge",
			Subsystem: "coordinator",
			Name:      "locks_total",
			Help:      "Total number of successful lock operations.",
		},
		[]string{"asset"},
	)

	releasesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "dexifi_bridge",
			Subsystem: "coordinator",
			Name:      "releases_total",
			Help:      "Total number of successful release operations.",
		},
		[]string{"asset"},
	)

	mintsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "dexifi_bridge",
			Subsystem: "coordinator",
			Name:      "mints_total",
			Help:      "Total number of representation mints.",
		},
		[]string{"asset"},
	)

	burnsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "dexifi_bridge",
			Subsystem: "coordinator",
			Name:      "burns_total",
			Help:      "Total number of representation burns.",
		},
		[]string{"asset"},
	)

	lockedAmount = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "dexifi_bridge",
			Subsystem: "coordinator",
			Name:      "locked_amount",
			Help:      "Net amount currently held in custody per asset.",
		},
		[]string{"asset"},
	)

	ledgerFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "dexifi_bridge",
			Subsystem: "ledger",
			Name:      "call_failures_total",
			Help:      "Total number of failed asset ledger calls.",
		},
		[]string{"op"},
	)
)

func init() {
	Registry.MustRegister(
		httpInFlight,
		httpRequests,
		httpDuration,
		locksTotal,
		releasesTotal,
		mintsTotal,
		burnsTotal,
		lockedAmount,
		ledgerFailures,
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
		prometheus.NewGoCollector(),
	)
}

// Handler returns an HTTP handler exposing the registered Prometheus metrics.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// InstrumentHandler wraps the provided handler with HTTP metrics collection.
func InstrumentHandler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/metrics" {
			next.ServeHTTP(w, r)
			return
		}

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()

		httpInFlight.Inc()
		defer httpInFlight.Dec()

		next.ServeHTTP(rec, r)

		duration := time.Since(start)
		path := canonicalPath(r.URL.Path)
		method := strings.ToUpper(r.Method)

		httpRequests.WithLabelValues(method, path, strconv.Itoa(rec.status)).Inc()
		httpDuration.WithLabelValues(method, path).Observe(duration.Seconds())
	})
}

// RecordLock counts a successful lock and raises the custody gauge.
func RecordLock(asset string, amount uint64) {
	locksTotal.WithLabelValues(asset).Inc()
	lockedAmount.WithLabelValues(asset).Add(float64(amount))
}

// RecordRelease counts a successful release and lowers the custody gauge.
func RecordRelease(asset string, amount uint64) {
	releasesTotal.WithLabelValues(asset).Inc()
	lockedAmount.WithLabelValues(asset).Sub(float64(amount))
}

// RecordMint counts a representation mint.
func RecordMint(asset string, _ uint64) {
	mintsTotal.WithLabelValues(asset).Inc()
}

// RecordBurn counts a representation burn.
func RecordBurn(asset string, _ uint64) {
	burnsTotal.WithLabelValues(asset).Inc()
}

// RecordLedgerFailure counts a failed asset ledger call.
func RecordLedgerFailure(op string) {
	ledgerFailures.WithLabelValues(op).Inc()
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	return r.ResponseWriter.Write(b)
}

// canonicalPath collapses record ids so the label space stays bounded.
func canonicalPath(raw string) string {
	trimmed := strings.Trim(raw, "/")
	if trimmed == "" {
		return "/"
	}
	parts := strings.Split(trimmed, "/")
	if parts[0] != "v1" || len(parts) == 1 {
		return "/" + parts[0]
	}
	switch parts[1] {
	case "locks":
		if len(parts) == 2 {
			return "/v1/locks"
		}
		if len(parts) == 4 && parts[3] == "release" {
			return "/v1/locks/:id/release"
		}
		return "/v1/locks/:id"
	case "representations":
		if len(parts) == 3 {
			return "/v1/representations/" + parts[2]
		}
		return "/v1/representations"
	case "events":
		if len(parts) == 3 && parts[2] == "ws" {
			return "/v1/events/ws"
		}
		return "/v1/events"
	default:
		return "/v1/" + parts[1]
	}
}
