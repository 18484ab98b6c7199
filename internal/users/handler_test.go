package users

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sizang-hub/sizang-hub/internal/rbac"
)

func newTestRouter(t *testing.T) (http.Handler, *memoryRepo) {
	t.Helper()
	repo := newMemoryRepo(seedUsers()...)
	h := NewHandler(nil, NewService(repo, nil), rbac.Middleware{})
	r := chi.NewRouter()
	r.Route("/api/users", h.MountRoutes)
	return r, repo
}

func do(h http.Handler, method, path, body string, actor *rbac.Actor) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req = req.WithContext(rbac.ContextWithActor(req.Context(), actor))
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func TestRoleChangeEndpoint(t *testing.T) {
	router, repo := newTestRouter(t)
	admin := &rbac.Actor{ID: "a1", Role: rbac.RoleAdmin}
	member := &rbac.Actor{ID: "m1", Role: rbac.RoleMember}

	rr := do(router, http.MethodPut, "/api/users/m1/role", `{"role":"moderator"}`, nil)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	rr = do(router, http.MethodPut, "/api/users/mod1/role", `{"role":"admin"}`, member)
	assert.Equal(t, http.StatusForbidden, rr.Code)

	rr = do(router, http.MethodPut, "/api/users/a1/role", `{"role":"member"}`, admin)
	assert.Equal(t, http.StatusForbidden, rr.Code)
	assert.Equal(t, rbac.RoleAdmin, repo.users["a1"].Role)

	rr = do(router, http.MethodPut, "/api/users/m1/role", `{"role":"wizard"}`, admin)
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = do(router, http.MethodPut, "/api/users/m1/role", `{"role":"moderator"}`, admin)
	require.Equal(t, http.StatusOK, rr.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(t, "moderator", body["role"])
	assert.NotContains(t, rr.Body.String(), "password")
}

func TestListAndProfileEndpoints(t *testing.T) {
	router, _ := newTestRouter(t)
	member := &rbac.Actor{ID: "m1", Role: rbac.RoleMember}

	assert.Equal(t, http.StatusUnauthorized, do(router, http.MethodGet, "/api/users", "", nil).Code)

	rr := do(router, http.MethodGet, "/api/users?per_page=2", "", member)
	require.Equal(t, http.StatusOK, rr.Code)
	var page struct {
		Items      []User `json:"items"`
		Pagination struct {
			Total int `json:"total"`
		} `json:"pagination"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &page))
	assert.Equal(t, 3, page.Pagination.Total)

	rr = do(router, http.MethodPatch, "/api/users/m1", `{"bio":"Youth member"}`, member)
	require.Equal(t, http.StatusOK, rr.Code)

	rr = do(router, http.MethodPatch, "/api/users/mod1", `{"bio":"hijack"}`, member)
	assert.Equal(t, http.StatusForbidden, rr.Code)

	rr = do(router, http.MethodPatch, "/api/users/m1", `{"display_name":"x"}`, member)
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = do(router, http.MethodGet, "/api/users/ghost", "", member)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestDeleteEndpoint(t *testing.T) {
	router, repo := newTestRouter(t)
	admin := &rbac.Actor{ID: "a1", Role: rbac.RoleAdmin}

	assert.Equal(t, http.StatusForbidden, do(router, http.MethodDelete, "/api/users/m1", "", &rbac.Actor{ID: "mod1", Role: rbac.RoleModerator}).Code)
	assert.Equal(t, http.StatusNoContent, do(router, http.MethodDelete, "/api/users/m1", "", admin).Code)
	_, ok := repo.users["m1"]
	assert.False(t, ok)
}
