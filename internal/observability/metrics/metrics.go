// Package metrics holds the Prometheus collectors for coursedesk.
package metrics

import (
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	obserrors "github.com/coursedesk/coursedesk/internal/observability/errors"
)

const namespace = "coursedesk"

// Result constants for metric labels.
const (
	ResultSuccess      = "success"
	ResultError        = "error"
	ResultUnauthorized = "unauthorized"
)

var (
	// HTTPRequestsTotal counts inbound requests served by the web client.
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests served",
		},
		[]string{"method", "path", "status"},
	)

	// HTTPRequestDuration measures inbound request latency.
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "Duration of HTTP requests in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	// GuardDecisionsTotal counts route guard outcomes.
	GuardDecisionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "guard_decisions_total",
			Help:      "Route guard decisions by outcome",
		},
		[]string{"decision"},
	)

	// GatewayRequestsTotal counts outbound course backend requests.
	GatewayRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "gateway_requests_total",
			Help:      "Outbound course backend requests by result",
		},
		[]string{"method", "path", "result", "error_class"},
	)

	// GatewayRequestDuration measures outbound request latency.
	GatewayRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "gateway_request_duration_seconds",
			Help:      "Duration of outbound course backend requests in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	// SessionsReapedTotal counts expired sessions removed by the sweeper.
	SessionsReapedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_reaped_total",
			Help:      "Expired sessions deleted by the session reaper, by result",
		},
		[]string{"result"},
	)
)

// GatewayMetric captures one outbound request for emission.
type GatewayMetric struct {
	Method   string
	Path     string
	Result   string
	Duration time.Duration
	Err      error
}

// ObserveGateway records an outbound request.
func ObserveGateway(in GatewayMetric) {
	path := NormalizePath(in.Path)
	class := ""
	if in.Err != nil && in.Result != ResultSuccess {
		class = obserrors.Classify(in.Err)
	}
	GatewayRequestsTotal.WithLabelValues(in.Method, path, in.Result, class).Inc()
	if in.Duration > 0 {
		GatewayRequestDuration.WithLabelValues(in.Method, path).Observe(in.Duration.Seconds())
	}
}

// pathWords are the fixed segments of course backend paths. Anything else is
// caller-supplied (ids, user input) and is collapsed to {id}.
var pathWords = map[string]bool{
	"answers": true, "assignments": true, "course": true, "courses": true,
	"feedbacks": true, "files": true, "login": true, "login-sms": true,
	"register": true, "reset-password": true, "send": true, "sms": true,
	"teacher": true, "users": true,
}

// maxPathSegments caps label depth; deeper paths end in "/*".
const maxPathSegments = 4

// NormalizePath maps a backend path onto a bounded label: the query is dropped,
// segments outside the backend's fixed vocabulary become {id}, and paths deeper
// than maxPathSegments are truncated.
func NormalizePath(path string) string {
	if i := strings.IndexByte(path, '?'); i >= 0 {
		path = path[:i]
	}
	path = strings.Trim(path, "/")
	if path == "" {
		return "/"
	}
	segs := strings.Split(path, "/")
	truncated := len(segs) > maxPathSegments
	if truncated {
		segs = segs[:maxPathSegments]
	}
	for i, s := range segs {
		if !pathWords[s] {
			segs[i] = "{id}"
		}
	}
	out := "/" + strings.Join(segs, "/")
	if truncated {
		out += "/*"
	}
	return out
}
