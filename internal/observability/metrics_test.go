package observability

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	jobmetrics "github.com/sizang-hub/sizang-hub/internal/jobs"
	"github.com/sizang-hub/sizang-hub/internal/rbac"
)

func scrape(t *testing.T, m *Metrics) string {
	t.Helper()
	rr := httptest.NewRecorder()
	m.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	return rr.Body.String()
}

func TestMetricsHandlerExposesJobMetrics(t *testing.T) {
	metrics := NewMetrics()
	jobs := jobmetrics.NewMetrics(metrics.Registerer())
	require.NoError(t, jobs.Track("mail:send").End(nil))

	body := scrape(t, metrics)
	assert.Contains(t, body, "sizang_jobs_total")
	assert.Contains(t, body, "go_goroutines")
}

func TestMetricsMiddlewareRecordsRequest(t *testing.T) {
	metrics := NewMetrics()

	handler := metrics.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	routeCtx := chi.NewRouteContext()
	routeCtx.RoutePatterns = append(routeCtx.RoutePatterns, "/test")

	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, routeCtx))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusTeapot, rr.Code)

	body := scrape(t, metrics)
	assert.Contains(t, body, `sizang_http_requests_total{code="418",route="/test"} 1`)
	assert.Contains(t, body, `sizang_http_request_duration_seconds_bucket{route="/test"`)
}

func TestGuardObserverCountsOutcomes(t *testing.T) {
	metrics := NewMetrics()
	mw := rbac.Middleware{Observer: metrics}
	guarded := mw.Require(rbac.CapModerateContent)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	for _, actor := range []*rbac.Actor{nil, {ID: "m1", Role: rbac.RoleMember}, {ID: "mod1", Role: rbac.RoleModerator}} {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req = req.WithContext(rbac.ContextWithActor(req.Context(), actor))
		guarded.ServeHTTP(httptest.NewRecorder(), req)
	}

	body := scrape(t, metrics)
	assert.Contains(t, body, `sizang_guard_decisions_total{capability="moderate_content",outcome="auth_prompt"} 1`)
	assert.Contains(t, body, `sizang_guard_decisions_total{capability="moderate_content",outcome="denied"} 1`)
	assert.Contains(t, body, `sizang_guard_decisions_total{capability="moderate_content",outcome="allowed"} 1`)

	var nilMetrics *Metrics
	nilMetrics.ObserveGuard("x", rbac.OutcomeAllowed)
}
