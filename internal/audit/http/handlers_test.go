package audithttp

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sizang-hub/sizang-hub/internal/audit"
	"github.com/sizang-hub/sizang-hub/internal/rbac"
)

var (
	admin     = &rbac.Actor{ID: "a1", Role: rbac.RoleAdmin}
	moderator = &rbac.Actor{ID: "mod1", Role: rbac.RoleModerator}
)

type stubService struct {
	last audit.TimelineFilters
	rows []audit.TimelineRow
}

func (s *stubService) Timeline(ctx context.Context, filters audit.TimelineFilters) (audit.Result, error) {
	s.last = filters
	return audit.Result{Rows: s.rows, Paging: audit.PagingInfo{Page: filters.Page, PageSize: 20}}, nil
}

func (s *stubService) Export(ctx context.Context, filters audit.TimelineFilters) ([]audit.TimelineRow, error) {
	s.last = filters
	return s.rows, nil
}

func newRouter(svc *stubService) http.Handler {
	h := NewHandler(nil, svc, rbac.Middleware{})
	h.now = func() time.Time { return time.Date(2025, 3, 15, 12, 0, 0, 0, time.UTC) }
	r := chi.NewRouter()
	r.Route("/audit", h.MountRoutes)
	return r
}

func get(h http.Handler, path string, actor *rbac.Actor) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	req = req.WithContext(rbac.ContextWithActor(req.Context(), actor))
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func TestTimelineRequiresUserManagement(t *testing.T) {
	h := newRouter(&stubService{})
	assert.Equal(t, http.StatusUnauthorized, get(h, "/audit/", nil).Code)
	assert.Equal(t, http.StatusForbidden, get(h, "/audit/", moderator).Code)
	assert.Equal(t, http.StatusOK, get(h, "/audit/", admin).Code)
}

func TestTimelineDefaultsToLastWeek(t *testing.T) {
	svc := &stubService{}
	rr := get(newRouter(svc), "/audit/?actor=a1&page=2", admin)
	require.Equal(t, http.StatusOK, rr.Code)

	assert.Equal(t, time.Date(2025, 3, 8, 0, 0, 0, 0, time.UTC), svc.last.From)
	assert.Equal(t, time.Date(2025, 3, 16, 0, 0, 0, 0, time.UTC), svc.last.To)
	assert.Equal(t, "a1", svc.last.Actor)
	assert.Equal(t, 2, svc.last.Page)
}

func TestTimelineRejectsBadRanges(t *testing.T) {
	h := newRouter(&stubService{})
	cases := map[string]string{
		"/audit/?from=2025-03-10&to=2025-03-01": "range",
		"/audit/?from=2024-01-01&to=2025-03-01": "range",
		"/audit/?to=yesterday":                  "to",
		"/audit/?page=0":                        "page",
	}
	for path, field := range cases {
		rr := get(h, path, admin)
		assert.Equal(t, http.StatusBadRequest, rr.Code, path)
		assert.Contains(t, rr.Body.String(), `"`+field+`"`, path)
	}
}

func TestExportWritesCSV(t *testing.T) {
	svc := &stubService{rows: []audit.TimelineRow{{
		ID: 7, At: time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC), ActorID: "a1",
		Action: "report.reviewed", Entity: "report", EntityID: "r1",
	}}}
	rr := get(newRouter(svc), "/audit/export.csv", admin)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "text/csv; charset=utf-8", rr.Header().Get("Content-Type"))
	lines := strings.Split(strings.TrimSpace(rr.Body.String()), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "7,2025-03-10T09:00:00Z,a1,report.reviewed,report,r1,", lines[1])
}

func TestExportIsRateLimitedPerActor(t *testing.T) {
	h := newRouter(&stubService{})
	for i := 0; i < rateLimit; i++ {
		require.Equal(t, http.StatusOK, get(h, "/audit/export.csv", admin).Code)
	}
	assert.Equal(t, http.StatusTooManyRequests, get(h, "/audit/export.csv", admin).Code)
	other := &rbac.Actor{ID: "a2", Role: rbac.RoleAdmin}
	assert.Equal(t, http.StatusOK, get(h, "/audit/export.csv", other).Code)
}
