// Package metrics exposes the Prometheus collectors and HTTP
// instrumentation for the server.
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
	// Registry holds the application-specific Prometheus collectors.
	Registry = prometheus.NewRegistry()

	httpInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "myrc",
			Subsystem: "http",
			Name:      "inflight_requests",
			Help:      "Current number of in-flight HTTP requests.",
		},
	)

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "myrc",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled.",
		},
		[]string{"method", "path", "status"},
	)

	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "myrc",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10), // 5ms to ~5s
		},
		[]string{"method", "path"},
	)

	auditEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "myrc",
			Subsystem: "audit",
			Name:      "events_total",
			Help:      "Total number of completed audit events.",
		},
		[]string{"outcome"},
	)

	loginAttempts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "myrc",
			Subsystem: "auth",
			Name:      "login_attempts_total",
			Help:      "Total number of login attempts.",
		},
		[]string{"success"},
	)

	attachmentBytes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "myrc",
			Subsystem: "uploads",
			Name:      "bytes_total",
			Help:      "Total bytes accepted through attachment uploads.",
		},
		[]string{"kind"},
	)

	permissionLookups = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "myrc",
			Subsystem: "permissions",
			Name:      "cache_lookups_total",
			Help:      "Permission cache lookups by result.",
		},
		[]string{"result"},
	)
)

func init() {
	Registry.MustRegister(
		httpInFlight,
		httpRequests,
		httpDuration,
		auditEvents,
		loginAttempts,
		attachmentBytes,
		permissionLookups,
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

// RecordAuditEvent counts a completed audit event by outcome.
func RecordAuditEvent(outcome string) {
	auditEvents.WithLabelValues(outcome).Inc()
}

// RecordLoginAttempt counts a login attempt.
func RecordLoginAttempt(success bool) {
	loginAttempts.WithLabelValues(strconv.FormatBool(success)).Inc()
}

// RecordUpload counts accepted attachment bytes by kind (invoice, quote).
func RecordUpload(kind string, size int64) {
	if size < 0 {
		size = 0
	}
	attachmentBytes.WithLabelValues(kind).Add(float64(size))
}

// RecordPermissionLookup counts a permission cache lookup (hit, miss).
func RecordPermissionLookup(result string) {
	permissionLookups.WithLabelValues(result).Inc()
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

// idCollections names the path segments that are followed by a record ID.
var idCollections = map[string]bool{
	"responsibility-centres": true,
	"access-grants":          true,
	"fiscal-years":           true,
	"monies":                 true,
	"categories":             true,
	"funding-items":          true,
	"spending-items":         true,
	"procurement-items":      true,
	"quotes":                 true,
	"events":                 true,
	"training-items":         true,
	"travel-items":           true,
}

// canonicalPath collapses record IDs out of a request path so metric label
// cardinality stays bounded.
func canonicalPath(raw string) string {
	trimmed := strings.Trim(raw, "/")
	if trimmed == "" {
		return "/"
	}

	parts := strings.Split(trimmed, "/")
	out := make([]string, 0, len(parts))
	expectID := false
	for _, part := range parts {
		if expectID {
			out = append(out, ":id")
			expectID = false
			continue
		}
		out = append(out, part)
		expectID = idCollections[part]
	}
	return "/" + strings.Join(out, "/")
}
