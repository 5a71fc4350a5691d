package httpx

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	domainauth "github.com/coursedesk/coursedesk/internal/domain/auth"
	"github.com/coursedesk/coursedesk/internal/observability/metrics"
)

func TestRoutePath(t *testing.T) {
	tests := []struct{ in, want string }{
		{"", "other"},
		{"GET /teacher/dashboard", "/teacher/dashboard"},
		{"GET /student/courses/{courseId}", "/student/courses/{courseId}"},
		{"GET /static/", "/static/"},
		{"/healthz", "/healthz"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, routePath(tt.in), tt.in)
	}
	assert.Equal(t, "OTHER", methodLabel("PROPFIND"))
	assert.Equal(t, http.MethodPost, methodLabel(http.MethodPost))
}

func TestMetrics_LabelsByRoutePattern(t *testing.T) {
	h := newHarness(t, harnessOptions{})
	h.seed(t, "stu", domainauth.RoleStudent)
	handler := Metrics()(h.handler)

	serve := func(method, path string) {
		req := httptest.NewRequest(method, path, nil)
		req.AddCookie(&http.Cookie{Name: DefaultSessionCookie, Value: "stu"})
		handler.ServeHTTP(httptest.NewRecorder(), req)
	}
	burst := func(offset int) {
		for i := offset; i < offset+25; i++ {
			serve(http.MethodGet, fmt.Sprintf("/junk-%d", i))
			serve(http.MethodGet, fmt.Sprintf("/student/courses/c-%d", i))
			serve(fmt.Sprintf("VERB%d", i), "/healthz")
		}
	}

	burst(0)
	series := testutil.CollectAndCount(metrics.HTTPRequestsTotal)
	burst(25)
	assert.Equal(t, series, testutil.CollectAndCount(metrics.HTTPRequestsTotal),
		"distinct paths and methods must not add series")

	assert.GreaterOrEqual(t, testutil.ToFloat64(
		metrics.HTTPRequestsTotal.WithLabelValues(http.MethodGet, "other", "303")), 50.0)
	assert.GreaterOrEqual(t, testutil.ToFloat64(
		metrics.HTTPRequestsTotal.WithLabelValues("OTHER", "other", "405")), 50.0)
}
