package rbac_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sizang-hub/sizang-hub/internal/platform/httpx"
	"github.com/sizang-hub/sizang-hub/internal/rbac"
)

type recordingObserver struct {
	events []string
}

func (o *recordingObserver) ObserveGuard(capability string, outcome rbac.Outcome) {
	o.events = append(o.events, capability+":"+outcome.String())
}

func serve(t *testing.T, h http.Handler, actor *rbac.Actor, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	req = req.WithContext(rbac.ContextWithActor(req.Context(), actor))
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

var okHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("protected"))
})

func decodeProblem(t *testing.T, rr *httptest.ResponseRecorder) httpx.ProblemDetail {
	t.Helper()
	assert.Equal(t, "application/problem+json", rr.Header().Get("Content-Type"))
	var problem httpx.ProblemDetail
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &problem))
	return problem
}

func TestRequireRendersOutcomes(t *testing.T) {
	observer := &recordingObserver{}
	mw := rbac.Middleware{Observer: observer}
	h := mw.Require(rbac.CapManageUsers)(okHandler)

	rr := serve(t, h, nil, "/admin")
	require.Equal(t, http.StatusUnauthorized, rr.Code)
	problem := decodeProblem(t, rr)
	assert.Equal(t, "Authentication Required", problem.Title)
	assert.Equal(t, rbac.SignInPath, problem.Links["sign_in"])
	assert.Equal(t, rbac.SignUpPath, problem.Links["sign_up"])
	assert.NotContains(t, rr.Body.String(), "protected")

	rr = serve(t, h, &rbac.Actor{ID: "m1", Role: rbac.RoleMember}, "/admin")
	require.Equal(t, http.StatusForbidden, rr.Code)
	problem = decodeProblem(t, rr)
	assert.Equal(t, "Access Denied", problem.Title)
	assert.Equal(t, rbac.HomePath, problem.Links["home"])

	rr = serve(t, h, &rbac.Actor{ID: "a1", Role: rbac.RoleAdmin}, "/admin")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "protected", rr.Body.String())

	assert.Equal(t, []string{
		"manage_users:auth_prompt",
		"manage_users:denied",
		"manage_users:allowed",
	}, observer.events)
}

func TestRequireWithFallback(t *testing.T) {
	fallback := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("fallback"))
	})
	h := rbac.Middleware{}.RequireWithFallback(rbac.CapModerateContent, fallback)(okHandler)

	rr := serve(t, h, &rbac.Actor{ID: "m1", Role: rbac.RoleMember}, "/reports")
	assert.Equal(t, "fallback", rr.Body.String())

	rr = serve(t, h, nil, "/reports")
	assert.Equal(t, http.StatusUnauthorized, rr.Code, "fallback never replaces the auth prompt")

	rr = serve(t, h, &rbac.Actor{ID: "mod", Role: rbac.RoleModerator}, "/reports")
	assert.Equal(t, "protected", rr.Body.String())
}

func TestRequireAny(t *testing.T) {
	observer := &recordingObserver{}
	h := rbac.Middleware{Observer: observer}.RequireAny(rbac.CapManageContent, rbac.CapModerateContent)(okHandler)

	assert.Equal(t, http.StatusOK, serve(t, h, &rbac.Actor{ID: "mod", Role: rbac.RoleModerator}, "/").Code)
	assert.Equal(t, http.StatusForbidden, serve(t, h, &rbac.Actor{ID: "m1", Role: rbac.RoleMember}, "/").Code)
	assert.Equal(t, http.StatusUnauthorized, serve(t, h, nil, "/").Code)
	assert.Equal(t, "manage_content|moderate_content:allowed", observer.events[0])
}

func TestRequireAuthenticated(t *testing.T) {
	h := rbac.Middleware{}.RequireAuthenticated()(okHandler)
	assert.Equal(t, http.StatusUnauthorized, serve(t, h, nil, "/").Code)
	assert.Equal(t, http.StatusOK, serve(t, h, &rbac.Actor{ID: "g", Role: rbac.RoleGuest}, "/").Code)
}

func TestPermissionsHandler(t *testing.T) {
	r := chi.NewRouter()
	r.Route("/api/permissions", rbac.NewPermissionsHandler(nil).MountRoutes)

	rr := serve(t, r, nil, "/api/permissions")
	require.Equal(t, http.StatusOK, rr.Code)
	var listing struct {
		Capabilities []struct {
			Name string `json:"name"`
		} `json:"capabilities"`
		Roles []struct {
			Role         rbac.Role          `json:"role"`
			Capabilities rbac.CapabilitySet `json:"capabilities"`
		} `json:"roles"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &listing))
	assert.Len(t, listing.Capabilities, 7)
	require.Len(t, listing.Roles, 4)
	assert.Equal(t, rbac.RoleAdmin, listing.Roles[3].Role)
	assert.Equal(t, rbac.CapabilitiesFor(rbac.RoleAdmin), listing.Roles[3].Capabilities)

	member := &rbac.Actor{ID: "m1", Role: rbac.RoleMember}
	rr = serve(t, r, member, "/api/permissions/check?capability=moderateContent&owner=m1&fallback=true")
	require.Equal(t, http.StatusOK, rr.Code)
	var check map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &check))
	assert.Equal(t, "custom_fallback", check["outcome"])
	assert.Equal(t, false, check["has_capability"])
	assert.Equal(t, true, check["can_manage_content"])
	assert.Equal(t, false, check["can_manage_users"])

	rr = serve(t, r, nil, "/api/permissions/check?capability=create_content")
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &check))
	assert.Equal(t, "auth_prompt", check["outcome"])
}
