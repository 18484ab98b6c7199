package admin

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sizang-hub/sizang-hub/internal/platform/cache"
	"github.com/sizang-hub/sizang-hub/internal/platform/httpx"
	"github.com/sizang-hub/sizang-hub/internal/rbac"
	"github.com/sizang-hub/sizang-hub/internal/reports"
)

var (
	admin     = &rbac.Actor{ID: "a1", Role: rbac.RoleAdmin}
	moderator = &rbac.Actor{ID: "mod1", Role: rbac.RoleModerator}
	member    = &rbac.Actor{ID: "m1", Role: rbac.RoleMember}
)

type stubSources struct {
	calls int
}

func (s *stubSources) RoleCounts(context.Context) (map[rbac.Role]int, error) {
	s.calls++
	return map[rbac.Role]int{rbac.RoleAdmin: 1, rbac.RoleModerator: 2, rbac.RoleMember: 40}, nil
}

func (s *stubSources) Count(context.Context) (int, error) { return 5, nil }

type forumStats struct{}

func (forumStats) Stats(context.Context) (int, int, error) { return 12, 80, nil }

type resourceStats struct{ failing bool }

func (r resourceStats) Stats(context.Context) (int, int, error) {
	if r.failing {
		return 0, 0, errors.New("db down")
	}
	return 9, 3, nil
}

type reportCounts struct{}

func (reportCounts) StatusCounts(context.Context) (map[reports.Status]int, error) {
	return map[reports.Status]int{reports.StatusPending: 4, reports.StatusResolved: 7}, nil
}

type recordingAnnouncer struct {
	actorID, content string
}

func (a *recordingAnnouncer) Announce(ctx context.Context, actorID, content string) error {
	a.actorID, a.content = actorID, content
	return nil
}

func newTestService(t *testing.T, failing bool) (*Service, *stubSources, *recordingAnnouncer) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	src := &stubSources{}
	ann := &recordingAnnouncer{}
	svc := NewService(Sources{
		Users:     src,
		Forums:    forumStats{},
		Groups:    src,
		Resources: resourceStats{failing: failing},
		Reports:   reportCounts{},
	}, cache.NewJSONCache(client, "admin_dashboard", time.Minute), ann)
	return svc, src, ann
}

func TestDashboardAggregatesAndCaches(t *testing.T) {
	svc, src, _ := newTestService(t, false)
	ctx := context.Background()

	data, err := svc.Dashboard(ctx, moderator)
	require.NoError(t, err)
	assert.Equal(t, 43, data.TotalUsers)
	assert.Equal(t, 0, data.UsersByRole["guest"])
	assert.Equal(t, 40, data.UsersByRole["member"])
	assert.Equal(t, 12, data.Threads)
	assert.Equal(t, 80, data.Replies)
	assert.Equal(t, 5, data.Groups)
	assert.Equal(t, 9, data.Resources)
	assert.Equal(t, 3, data.PendingResources)
	assert.Equal(t, 4, data.PendingReports)

	_, err = svc.Dashboard(ctx, admin)
	require.NoError(t, err)
	assert.Equal(t, 1, src.calls)

	require.NoError(t, svc.Refresh(ctx))
	_, err = svc.Dashboard(ctx, admin)
	require.NoError(t, err)
	assert.Equal(t, 2, src.calls)
}

func TestDashboardPermissionsAndErrors(t *testing.T) {
	svc, _, _ := newTestService(t, true)
	ctx := context.Background()

	_, err := svc.Dashboard(ctx, nil)
	assert.ErrorIs(t, err, httpx.ErrUnauthorized)
	_, err = svc.Dashboard(ctx, member)
	assert.ErrorIs(t, err, httpx.ErrForbidden)
	_, err = svc.Dashboard(ctx, admin)
	assert.ErrorContains(t, err, "resource stats")
}

func TestAnnounce(t *testing.T) {
	svc, _, ann := newTestService(t, false)
	ctx := context.Background()

	assert.ErrorIs(t, svc.Announce(ctx, moderator, "hello"), httpx.ErrForbidden)
	assert.ErrorIs(t, svc.Announce(ctx, admin, "   "), httpx.ErrValidation)
	require.NoError(t, svc.Announce(ctx, admin, " Christmas service at 10am "))
	assert.Equal(t, "a1", ann.actorID)
	assert.Equal(t, "Christmas service at 10am", ann.content)
}

func TestDashboardRoutes(t *testing.T) {
	svc, _, _ := newTestService(t, false)
	router := chi.NewRouter()
	router.Route("/api/admin", NewHandler(nil, svc, rbac.Middleware{}).MountRoutes)
	serve := func(method, path, body string, actor *rbac.Actor) *httptest.ResponseRecorder {
		req := httptest.NewRequest(method, path, strings.NewReader(body))
		req = req.WithContext(rbac.ContextWithActor(req.Context(), actor))
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)
		return rr
	}

	assert.Equal(t, http.StatusUnauthorized, serve(http.MethodGet, "/api/admin/dashboard", "", nil).Code)
	assert.Equal(t, http.StatusForbidden, serve(http.MethodGet, "/api/admin/dashboard", "", member).Code)
	assert.Equal(t, http.StatusOK, serve(http.MethodGet, "/api/admin/dashboard", "", moderator).Code)
	assert.Equal(t, http.StatusForbidden, serve(http.MethodPost, "/api/admin/announcements", `{"content":"hi"}`, moderator).Code)
	assert.Equal(t, http.StatusAccepted, serve(http.MethodPost, "/api/admin/announcements", `{"content":"hi"}`, admin).Code)
}
