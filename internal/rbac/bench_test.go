package rbac_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/sizang-hub/sizang-hub/internal/rbac"
)

func BenchmarkDecide(b *testing.B) {
	actors := []*rbac.Actor{
		nil,
		{ID: "g1", Role: rbac.RoleGuest},
		{ID: "m1", Role: rbac.RoleMember},
		{ID: "a1", Role: rbac.RoleAdmin},
	}
	caps := rbac.AllCapabilities()
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		rbac.Decide(actors[i%len(actors)], caps[i%len(caps)], i%2 == 0)
	}
}

func BenchmarkGuardMiddleware(b *testing.B) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusNoContent) })
	h := rbac.Middleware{}.Require(rbac.CapModerateContent)(ok)
	req := httptest.NewRequest(http.MethodGet, "/reports", nil)
	req = req.WithContext(rbac.ContextWithActor(req.Context(), &rbac.Actor{ID: "mod1", Role: rbac.RoleModerator}))
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		h.ServeHTTP(httptest.NewRecorder(), req)
	}
}
