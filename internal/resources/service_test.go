package resources

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sizang-hub/sizang-hub/internal/platform/httpx"
	"github.com/sizang-hub/sizang-hub/internal/rbac"
	"github.com/sizang-hub/sizang-hub/internal/shared"
)

type memoryRepo struct {
	mu    sync.Mutex
	items map[string]Resource
	order []string
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{items: map[string]Resource{}}
}

func (m *memoryRepo) List(ctx context.Context, f ListFilter) ([]Resource, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Resource
	for _, id := range m.order {
		res, ok := m.items[id]
		if !ok {
			continue
		}
		switch {
		case f.PendingOnly:
			if res.IsApproved {
				continue
			}
		case f.IncludeUnapproved:
		default:
			if !res.IsApproved && res.AuthorID != f.ViewerID {
				continue
			}
		}
		if f.Type != "" && res.Type != f.Type {
			continue
		}
		out = append(out, res)
	}
	return out, len(out), nil
}

func (m *memoryRepo) Get(ctx context.Context, id string) (Resource, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	res, ok := m.items[id]
	if !ok {
		return Resource{}, fmt.Errorf("%w: resource %s", httpx.ErrNotFound, id)
	}
	return res, nil
}

func (m *memoryRepo) Create(ctx context.Context, res Resource) (Resource, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items[res.ID] = res
	m.order = append(m.order, res.ID)
	return res, nil
}

func (m *memoryRepo) Update(ctx context.Context, res Resource) (Resource, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items[res.ID] = res
	return res, nil
}

func (m *memoryRepo) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.items, id)
	return nil
}

func (m *memoryRepo) Approve(ctx context.Context, id, approverID string) (Resource, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	res := m.items[id]
	res.IsApproved = true
	res.ApprovedBy = &approverID
	m.items[id] = res
	return res, nil
}

func (m *memoryRepo) IncrementViews(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	res := m.items[id]
	res.ViewCount++
	m.items[id] = res
	return nil
}

func (m *memoryRepo) IncrementDownloads(ctx context.Context, id string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	res := m.items[id]
	res.DownloadCount++
	m.items[id] = res
	return res.DownloadCount, nil
}

func (m *memoryRepo) CountPending(ctx context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, res := range m.items {
		if !res.IsApproved {
			n++
		}
	}
	return n, nil
}

func (m *memoryRepo) Count(ctx context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.items), nil
}

type approvals struct{ authors []string }

func (a *approvals) ResourceApproved(ctx context.Context, res Resource, approverID string) error {
	a.authors = append(a.authors, res.AuthorID)
	return nil
}

var (
	admin     = &rbac.Actor{ID: "a1", Role: rbac.RoleAdmin}
	moderator = &rbac.Actor{ID: "mod1", Role: rbac.RoleModerator}
	member    = &rbac.Actor{ID: "m1", Role: rbac.RoleMember}
	other     = &rbac.Actor{ID: "m2", Role: rbac.RoleMember}
)

var hymnal = Input{Title: "Zolai hymnal", Type: TypeDocument, URL: "https://example.org/hymnal.pdf", Language: "ctd"}

func TestApprovalWorkflow(t *testing.T) {
	ctx := context.Background()
	repo := newMemoryRepo()
	notes := &approvals{}
	svc := NewService(repo, notes, nil)

	res, err := svc.Create(ctx, member, hymnal)
	require.NoError(t, err)
	assert.False(t, res.IsApproved)

	items, _, err := svc.List(ctx, other, ListFilter{})
	require.NoError(t, err)
	assert.Empty(t, items, "pending submissions are hidden from other members")
	items, _, err = svc.List(ctx, member, ListFilter{})
	require.NoError(t, err)
	assert.Len(t, items, 1, "authors see their own pending submissions")
	_, err = svc.Get(ctx, other, res.ID)
	assert.ErrorIs(t, err, httpx.ErrNotFound)

	_, _, err = svc.List(ctx, member, ListFilter{PendingOnly: true})
	assert.ErrorIs(t, err, httpx.ErrForbidden)
	queue, _, err := svc.List(ctx, moderator, ListFilter{PendingOnly: true})
	require.NoError(t, err)
	assert.Len(t, queue, 1)

	_, err = svc.Approve(ctx, member, res.ID)
	assert.ErrorIs(t, err, httpx.ErrForbidden)
	approved, err := svc.Approve(ctx, moderator, res.ID)
	require.NoError(t, err)
	assert.True(t, approved.IsApproved)
	assert.Equal(t, []string{"m1"}, notes.authors)

	got, err := svc.Get(ctx, other, res.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.ViewCount)
}

func TestModeratorSubmissionsAutoApprove(t *testing.T) {
	svc := NewService(newMemoryRepo(), nil, nil)
	res, err := svc.Create(context.Background(), moderator, hymnal)
	require.NoError(t, err)
	assert.True(t, res.IsApproved)
	require.NotNil(t, res.ApprovedBy)
	assert.Equal(t, "mod1", *res.ApprovedBy)
}

func TestCreateValidation(t *testing.T) {
	ctx := context.Background()
	svc := NewService(newMemoryRepo(), nil, nil)

	_, err := svc.Create(ctx, nil, hymnal)
	assert.ErrorIs(t, err, httpx.ErrUnauthorized)
	_, err = svc.Create(ctx, &rbac.Actor{ID: "g", Role: rbac.RoleGuest}, hymnal)
	assert.ErrorIs(t, err, httpx.ErrForbidden)
	_, err = svc.Create(ctx, member, Input{Title: "No link", Type: TypeVideo})
	assert.ErrorIs(t, err, httpx.ErrValidation)
	_, err = svc.Create(ctx, member, Input{Title: "Bad type", Type: "podcast", URL: "https://example.org"})
	assert.Error(t, err)
	_, err = svc.Create(ctx, member, Input{Title: "Essay", Type: TypeArticle})
	assert.NoError(t, err)
}

func TestUpdateDeleteOwnership(t *testing.T) {
	ctx := context.Background()
	svc := NewService(newMemoryRepo(), nil, nil)
	res, err := svc.Create(ctx, member, hymnal)
	require.NoError(t, err)
	title := "Zolai hymnal (2nd ed.)"

	_, err = svc.Update(ctx, other, res.ID, Update{Title: &title})
	assert.ErrorIs(t, err, httpx.ErrForbidden)
	updated, err := svc.Update(ctx, member, res.ID, Update{Title: &title})
	require.NoError(t, err)
	assert.Equal(t, title, updated.Title)

	assert.ErrorIs(t, svc.Delete(ctx, other, res.ID), httpx.ErrForbidden)
	assert.NoError(t, svc.Delete(ctx, admin, res.ID))
}

func TestUpdateRevalidatesLinks(t *testing.T) {
	ctx := context.Background()
	repo := newMemoryRepo()
	svc := NewService(repo, nil, nil)
	res, err := svc.Create(ctx, member, hymnal)
	require.NoError(t, err)
	_, err = svc.Approve(ctx, moderator, res.ID)
	require.NoError(t, err)

	empty := ""
	_, err = svc.Update(ctx, member, res.ID, Update{URL: &empty})
	assert.ErrorIs(t, err, httpx.ErrValidation)
	assert.Equal(t, hymnal.URL, repo.items[res.ID].URL)

	title := "Zolai hymnal"
	kept, err := svc.Update(ctx, member, res.ID, Update{Title: &title})
	require.NoError(t, err)
	assert.True(t, kept.IsApproved, "text edits keep the approval")

	moved := "https://example.org/elsewhere.pdf"
	relinked, err := svc.Update(ctx, member, res.ID, Update{URL: &moved})
	require.NoError(t, err)
	assert.False(t, relinked.IsApproved)
	assert.Nil(t, relinked.ApprovedBy)

	_, err = svc.Approve(ctx, moderator, res.ID)
	require.NoError(t, err)
	fixed := "https://example.org/hymnal-v2.pdf"
	byMod, err := svc.Update(ctx, moderator, res.ID, Update{URL: &fixed})
	require.NoError(t, err)
	assert.True(t, byMod.IsApproved)
}

func TestDownloadEndpoint(t *testing.T) {
	ctx := context.Background()
	repo := newMemoryRepo()
	svc := NewService(repo, nil, nil)
	res, err := svc.Create(ctx, moderator, hymnal)
	require.NoError(t, err)

	r := chi.NewRouter()
	r.Route("/api/resources", NewHandler(nil, svc, rbac.Middleware{}, shared.NewMemoryIdempotency()).MountRoutes)

	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/resources/"+res.ID+"/download", nil))
	assert.Equal(t, http.StatusFound, rr.Code)
	assert.Equal(t, hymnal.URL, rr.Header().Get("Location"))

	rr = httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/resources/"+res.ID+"/download?redirect=false", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.True(t, strings.Contains(rr.Body.String(), `"download_count":2`))

	rr = httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/resources/pending", nil))
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}
