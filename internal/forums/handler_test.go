package forums

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
	"github.com/sizang-hub/sizang-hub/internal/shared"
)

func newTestRouter(t *testing.T) (http.Handler, *memoryRepo) {
	t.Helper()
	svc, repo, _ := newTestService()
	h := NewHandler(nil, svc, rbac.Middleware{}, shared.NewMemoryIdempotency())
	r := chi.NewRouter()
	r.Route("/api/forum-threads", h.MountThreadRoutes)
	r.Route("/api/categories", h.MountCategoryRoutes)
	return r, repo
}

func do(h http.Handler, method, path, body string, actor *rbac.Actor, headers ...string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	req = req.WithContext(rbac.ContextWithActor(req.Context(), actor))
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func TestThreadEndpoints(t *testing.T) {
	router, _ := newTestRouter(t)
	body := `{"title":"Tedim history","content":"Long ago...","category_id":"general"}`

	rr := do(router, http.MethodPost, "/api/forum-threads", body, nil)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.Contains(t, rr.Body.String(), rbac.SignInPath)

	rr = do(router, http.MethodPost, "/api/forum-threads", body, guest)
	assert.Equal(t, http.StatusForbidden, rr.Code)

	rr = do(router, http.MethodPost, "/api/forum-threads", body, member, shared.IdempotencyHeader, "k1")
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	var thread Thread
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &thread))

	rr = do(router, http.MethodPost, "/api/forum-threads", body, member, shared.IdempotencyHeader, "k1")
	assert.Equal(t, http.StatusConflict, rr.Code)

	rr = do(router, http.MethodGet, "/api/forum-threads?category=general", "", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	var page shared.Page[Thread]
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &page))
	assert.Len(t, page.Items, 1)

	rr = do(router, http.MethodPatch, "/api/forum-threads/"+thread.ID, `{"title":"Not yours"}`, other)
	assert.Equal(t, http.StatusForbidden, rr.Code)

	rr = do(router, http.MethodPut, "/api/forum-threads/"+thread.ID+"/state", `{"is_pinned":true}`, member)
	assert.Equal(t, http.StatusForbidden, rr.Code)
	rr = do(router, http.MethodPut, "/api/forum-threads/"+thread.ID+"/state", `{"is_pinned":true}`, moderator)
	assert.Equal(t, http.StatusOK, rr.Code)

	rr = do(router, http.MethodPost, "/api/forum-threads/"+thread.ID+"/replies", `{"content":"Thanks!"}`, other)
	require.Equal(t, http.StatusCreated, rr.Code)
	var reply Reply
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &reply))

	rr = do(router, http.MethodPost, "/api/forum-threads/replies/"+reply.ID+"/like", "", member)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"liked":true,"like_count":1}`, rr.Body.String())

	rr = do(router, http.MethodDelete, "/api/forum-threads/replies/"+reply.ID, "", member)
	assert.Equal(t, http.StatusForbidden, rr.Code)

	rr = do(router, http.MethodDelete, "/api/forum-threads/"+thread.ID, "", member)
	assert.Equal(t, http.StatusNoContent, rr.Code)

	rr = do(router, http.MethodGet, "/api/forum-threads/"+thread.ID, "", nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestCategoryEndpoints(t *testing.T) {
	router, _ := newTestRouter(t)

	rr := do(router, http.MethodGet, "/api/categories", "", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"slug":"general"`)

	rr = do(router, http.MethodPost, "/api/categories", `{"name":"Language","slug":"language"}`, moderator)
	assert.Equal(t, http.StatusForbidden, rr.Code)

	rr = do(router, http.MethodPost, "/api/categories", `{"name":"Language","slug":"language"}`, admin)
	assert.Equal(t, http.StatusOK, rr.Code)

	rr = do(router, http.MethodGet, "/api/categories/language", "", nil)
	assert.Equal(t, http.StatusOK, rr.Code)
}
