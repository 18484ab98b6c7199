package users

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sizang-hub/sizang-hub/internal/platform/httpx"
	"github.com/sizang-hub/sizang-hub/internal/rbac"
	"github.com/sizang-hub/sizang-hub/internal/shared"
)

type memoryRepo struct {
	users    map[string]User
	touches  int
	touchErr error
}

func newMemoryRepo(users ...User) *memoryRepo {
	repo := &memoryRepo{users: make(map[string]User)}
	for _, u := range users {
		repo.users[u.ID] = u
	}
	return repo
}

func (m *memoryRepo) get(id string) (User, error) {
	u, ok := m.users[id]
	if !ok {
		return User{}, fmt.Errorf("%w: user %s", httpx.ErrNotFound, id)
	}
	return u, nil
}

func (m *memoryRepo) List(ctx context.Context, filter ListFilter) ([]User, int, error) {
	var out []User
	for _, u := range m.users {
		if filter.Search != "" && !strings.Contains(strings.ToLower(u.DisplayName), strings.ToLower(filter.Search)) {
			continue
		}
		if filter.Role != nil && u.Role != *filter.Role {
			continue
		}
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, len(out), nil
}

func (m *memoryRepo) Get(ctx context.Context, id string) (User, error) { return m.get(id) }

func (m *memoryRepo) GetByEmail(ctx context.Context, email string) (User, error) {
	for _, u := range m.users {
		if strings.EqualFold(u.Email, email) {
			return u, nil
		}
	}
	return User{}, httpx.ErrNotFound
}

func (m *memoryRepo) Create(ctx context.Context, input NewUser) (User, error) {
	u := User{ID: fmt.Sprintf("u%d", len(m.users)+1), Email: input.Email, DisplayName: input.DisplayName, Role: input.Role}
	m.users[u.ID] = u
	return u, nil
}

func (m *memoryRepo) UpdateProfile(ctx context.Context, id string, input ProfileInput) (User, error) {
	u, err := m.get(id)
	if err != nil {
		return User{}, err
	}
	if input.DisplayName != nil {
		u.DisplayName = *input.DisplayName
	}
	if input.Bio != nil {
		u.Bio = *input.Bio
	}
	if input.Languages != nil {
		u.Languages = input.Languages
	}
	m.users[id] = u
	return u, nil
}

func (m *memoryRepo) UpdateRole(ctx context.Context, id string, role rbac.Role) (User, error) {
	u, err := m.get(id)
	if err != nil {
		return User{}, err
	}
	u.Role = role
	m.users[id] = u
	return u, nil
}

func (m *memoryRepo) SetPassword(ctx context.Context, id, hash string) error { return nil }

func (m *memoryRepo) MarkVerified(ctx context.Context, id string) (User, error) { return m.get(id) }

func (m *memoryRepo) Touch(ctx context.Context, id string, at time.Time) error {
	m.touches++
	if m.touchErr != nil {
		return m.touchErr
	}
	u, err := m.get(id)
	if err != nil {
		return err
	}
	u.LastActiveAt = &at
	m.users[id] = u
	return nil
}

func (m *memoryRepo) Delete(ctx context.Context, id string) error {
	if _, err := m.get(id); err != nil {
		return err
	}
	delete(m.users, id)
	return nil
}

func (m *memoryRepo) CountByRole(ctx context.Context) (map[rbac.Role]int, error) {
	out := map[rbac.Role]int{}
	for _, u := range m.users {
		out[u.Role]++
	}
	return out, nil
}

type recordingAuditor struct {
	logs []shared.AuditLog
}

func (a *recordingAuditor) Record(ctx context.Context, log shared.AuditLog) error {
	a.logs = append(a.logs, log)
	return nil
}

func seedUsers() []User {
	return []User{
		{ID: "a1", DisplayName: "Mang Lian", Email: "admin@example.com", Role: rbac.RoleAdmin},
		{ID: "mod1", DisplayName: "Niang Thian", Email: "mod@example.com", Role: rbac.RoleModerator},
		{ID: "m1", DisplayName: "Lal Pi", Email: "lalpi@example.com", Role: rbac.RoleMember},
	}
}

func actorOf(u User) *rbac.Actor {
	actor := u.Actor()
	return &actor
}

func TestChangeRole(t *testing.T) {
	ctx := context.Background()
	seed := seedUsers()
	audit := &recordingAuditor{}
	svc := NewService(newMemoryRepo(seed...), audit)
	admin := actorOf(seed[0])

	updated, err := svc.ChangeRole(ctx, admin, "m1", rbac.RoleModerator)
	require.NoError(t, err)
	assert.Equal(t, rbac.RoleModerator, updated.Role)
	require.Len(t, audit.logs, 1)
	assert.Equal(t, "user.role_changed", audit.logs[0].Action)
	assert.Equal(t, "member", audit.logs[0].Meta["from"])

	_, err = svc.ChangeRole(ctx, admin, "a1", rbac.RoleMember)
	assert.ErrorIs(t, err, httpx.ErrForbidden, "admins cannot change their own role")

	_, err = svc.ChangeRole(ctx, actorOf(seed[1]), "m1", rbac.RoleAdmin)
	assert.ErrorIs(t, err, httpx.ErrForbidden)

	_, err = svc.ChangeRole(ctx, nil, "m1", rbac.RoleAdmin)
	assert.ErrorIs(t, err, httpx.ErrUnauthorized)

	_, err = svc.ChangeRole(ctx, admin, "ghost", rbac.RoleAdmin)
	assert.ErrorIs(t, err, httpx.ErrNotFound)
}

func TestUpdateProfilePermissions(t *testing.T) {
	ctx := context.Background()
	seed := seedUsers()
	svc := NewService(newMemoryRepo(seed...), nil)
	name := "  Lal Pi Thang "

	updated, err := svc.UpdateProfile(ctx, actorOf(seed[2]), "m1", ProfileInput{DisplayName: &name, Languages: []string{"ctd", "EN", "en"}})
	require.NoError(t, err)
	assert.Equal(t, "Lal Pi Thang", updated.DisplayName)
	assert.Equal(t, []string{"ctd", "en"}, updated.Languages)

	_, err = svc.UpdateProfile(ctx, actorOf(seed[2]), "mod1", ProfileInput{DisplayName: &name})
	assert.ErrorIs(t, err, httpx.ErrForbidden)

	_, err = svc.UpdateProfile(ctx, actorOf(seed[1]), "m1", ProfileInput{DisplayName: &name})
	assert.ErrorIs(t, err, httpx.ErrForbidden, "moderators do not manage users")

	_, err = svc.UpdateProfile(ctx, actorOf(seed[0]), "m1", ProfileInput{DisplayName: &name})
	assert.NoError(t, err)
}

func TestUpdateProfileValidation(t *testing.T) {
	ctx := context.Background()
	seed := seedUsers()
	svc := NewService(newMemoryRepo(seed...), nil)
	short := "x"

	_, err := svc.UpdateProfile(ctx, actorOf(seed[2]), "m1", ProfileInput{DisplayName: &short})
	var fieldErrs validator.ValidationErrors
	require.True(t, errors.As(err, &fieldErrs))
	assert.Equal(t, "min", httpx.FieldErrors(fieldErrs)["DisplayName"])

	_, err = svc.UpdateProfile(ctx, actorOf(seed[2]), "m1", ProfileInput{Languages: []string{"not a tag!"}})
	assert.ErrorIs(t, err, httpx.ErrValidation)
}

func TestDeleteUser(t *testing.T) {
	ctx := context.Background()
	seed := seedUsers()
	repo := newMemoryRepo(seed...)
	svc := NewService(repo, nil)

	assert.ErrorIs(t, svc.Delete(ctx, actorOf(seed[0]), "a1"), httpx.ErrForbidden)
	assert.ErrorIs(t, svc.Delete(ctx, actorOf(seed[2]), "mod1"), httpx.ErrForbidden)
	require.NoError(t, svc.Delete(ctx, actorOf(seed[0]), "m1"))
	_, err := repo.Get(ctx, "m1")
	assert.ErrorIs(t, err, httpx.ErrNotFound)
}

func TestLoadActor(t *testing.T) {
	ctx := context.Background()
	seed := seedUsers()
	repo := newMemoryRepo(seed...)
	svc := NewService(repo, nil)

	actor, err := svc.LoadActor(ctx, "mod1")
	require.NoError(t, err)
	assert.Equal(t, rbac.RoleModerator, actor.Role)
	assert.NotNil(t, repo.users["mod1"].LastActiveAt)

	_, err = svc.LoadActor(ctx, "ghost")
	assert.ErrorIs(t, err, httpx.ErrNotFound)
}

func TestLoadActorThrottlesActivityWrites(t *testing.T) {
	ctx := context.Background()
	repo := newMemoryRepo(seedUsers()...)
	svc := NewService(repo, nil)
	now := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return now }

	for i := 0; i < 3; i++ {
		_, err := svc.LoadActor(ctx, "m1")
		require.NoError(t, err)
	}
	assert.Equal(t, 1, repo.touches)

	now = now.Add(activityInterval)
	_, err := svc.LoadActor(ctx, "m1")
	require.NoError(t, err)
	assert.Equal(t, 2, repo.touches)

	repo.touchErr = errors.New("db down")
	now = now.Add(2 * activityInterval)
	actor, err := svc.LoadActor(ctx, "m1")
	require.NoError(t, err, "activity tracking never blocks the actor")
	assert.Equal(t, "m1", actor.ID)
	assert.Equal(t, 3, repo.touches)
}

func TestListRequiresActor(t *testing.T) {
	svc := NewService(newMemoryRepo(seedUsers()...), nil)
	_, _, err := svc.List(context.Background(), nil, ListFilter{})
	assert.ErrorIs(t, err, httpx.ErrUnauthorized)

	items, total, err := svc.List(context.Background(), &rbac.Actor{ID: "m1", Role: rbac.RoleMember}, ListFilter{Search: " lian "})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.Equal(t, "a1", items[0].ID)
}
