package session_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sizang-hub/sizang-hub/internal/platform/httpx"
	"github.com/sizang-hub/sizang-hub/internal/rbac"
	"github.com/sizang-hub/sizang-hub/internal/session"
)

type stubLoader struct {
	actors map[string]rbac.Actor
	err    error
}

func (l *stubLoader) LoadActor(ctx context.Context, id string) (rbac.Actor, error) {
	if l.err != nil {
		return rbac.Actor{}, l.err
	}
	actor, ok := l.actors[id]
	if !ok {
		return rbac.Actor{}, fmt.Errorf("user %s: %w", id, httpx.ErrNotFound)
	}
	return actor, nil
}

type failingStore struct {
	session.ActorStore
	getErr error
	setErr error
}

func (s failingStore) Get(ctx context.Context) (*rbac.Actor, error) {
	if s.getErr != nil {
		return nil, s.getErr
	}
	return s.ActorStore.Get(ctx)
}

func (s failingStore) Set(ctx context.Context, actor rbac.Actor) error {
	if s.setErr != nil {
		return s.setErr
	}
	return s.ActorStore.Set(ctx, actor)
}

var member = rbac.Actor{ID: "m1", DisplayName: "Mang", Email: "mang@example.com", Role: rbac.RoleMember, EmailVerified: true}

func TestProviderFailsClosedBeforeRestore(t *testing.T) {
	ctx := context.Background()
	store := session.NewMemoryStore()
	require.NoError(t, store.Set(ctx, member))

	p := session.NewProvider(store, nil)
	assert.Nil(t, p.Actor())
	assert.False(t, p.Restored())

	require.NoError(t, p.Restore(ctx))
	require.NotNil(t, p.Actor())
	assert.Equal(t, member, *p.Actor())
	assert.Equal(t, session.StateAuthenticated, p.State())
}

func TestProviderRestoreErrorLeavesNoActor(t *testing.T) {
	ctx := context.Background()
	inner := session.NewMemoryStore()
	require.NoError(t, inner.Set(ctx, member))

	p := session.NewProvider(failingStore{ActorStore: inner, getErr: errors.New("redis down")}, nil)
	assert.Error(t, p.Restore(ctx))
	assert.Nil(t, p.Actor())
	assert.Equal(t, session.StateUnauthenticated, p.State())
}

func TestAuthenticateTransitions(t *testing.T) {
	ctx := context.Background()
	p := session.NewProvider(session.NewMemoryStore(), nil)
	require.NoError(t, p.Restore(ctx))

	var during session.State
	actor, err := p.Authenticate(ctx, func(ctx context.Context) (rbac.Actor, error) {
		during = p.State()
		return member, nil
	})
	require.NoError(t, err)
	assert.Equal(t, session.StateAuthenticating, during)
	assert.Equal(t, member, *actor)
	assert.Equal(t, session.StateAuthenticated, p.State())

	require.NoError(t, p.Logout(ctx))
	assert.Nil(t, p.Actor())
	assert.Equal(t, session.StateUnauthenticated, p.State())
}

func TestAuthenticateFailureRevertsState(t *testing.T) {
	ctx := context.Background()
	store := session.NewMemoryStore()
	require.NoError(t, store.Set(ctx, member))
	p := session.NewProvider(store, nil)
	require.NoError(t, p.Restore(ctx))

	_, err := p.Authenticate(ctx, func(ctx context.Context) (rbac.Actor, error) {
		return rbac.Actor{}, errors.New("bad password")
	})
	require.Error(t, err)
	assert.Equal(t, session.StateAuthenticated, p.State())
	assert.Equal(t, member, *p.Actor())

	p = session.NewProvider(failingStore{ActorStore: session.NewMemoryStore(), setErr: errors.New("full")}, nil)
	require.NoError(t, p.Restore(ctx))
	_, err = p.Authenticate(ctx, func(ctx context.Context) (rbac.Actor, error) { return member, nil })
	require.Error(t, err)
	assert.Nil(t, p.Actor())
	assert.Equal(t, session.StateUnauthenticated, p.State())
}

func TestSubscribeReceivesChanges(t *testing.T) {
	ctx := context.Background()
	p := session.NewProvider(session.NewMemoryStore(), nil)
	require.NoError(t, p.Restore(ctx))

	var seen []string
	unsubscribe := p.Subscribe(func(actor *rbac.Actor) {
		if actor == nil {
			seen = append(seen, "none")
			return
		}
		seen = append(seen, actor.ID)
	})

	_, err := p.Authenticate(ctx, func(ctx context.Context) (rbac.Actor, error) { return member, nil })
	require.NoError(t, err)
	require.NoError(t, p.Logout(ctx))

	unsubscribe()
	unsubscribe()
	_, err = p.Authenticate(ctx, func(ctx context.Context) (rbac.Actor, error) { return member, nil })
	require.NoError(t, err)

	assert.Equal(t, []string{"m1", "none"}, seen)
}

func TestRefreshPicksUpRoleChange(t *testing.T) {
	ctx := context.Background()
	store := session.NewMemoryStore()
	require.NoError(t, store.Set(ctx, member))
	p := session.NewProvider(store, nil)
	require.NoError(t, p.Restore(ctx))

	promoted := member
	promoted.Role = rbac.RoleModerator
	require.NoError(t, p.Refresh(ctx, &stubLoader{actors: map[string]rbac.Actor{"m1": promoted}}))
	assert.Equal(t, rbac.RoleModerator, p.Actor().Role)

	persisted, err := store.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, rbac.RoleModerator, persisted.Role)
}

func TestRefreshIgnoresUnchangedActor(t *testing.T) {
	ctx := context.Background()
	base := session.NewMemoryStore()
	require.NoError(t, base.Set(ctx, member))
	store := failingStore{ActorStore: base, setErr: errors.New("unexpected write")}
	p := session.NewProvider(store, nil)
	require.NoError(t, p.Restore(ctx))

	notified := 0
	p.Subscribe(func(*rbac.Actor) { notified++ })

	same := member
	same.Languages = []string{}
	loader := &stubLoader{actors: map[string]rbac.Actor{"m1": same}}
	for i := 0; i < 3; i++ {
		require.NoError(t, p.Refresh(ctx, loader))
	}
	assert.Zero(t, notified)
	assert.Equal(t, "m1", p.Actor().ID)
}

func TestRefreshLogsOutVanishedUser(t *testing.T) {
	ctx := context.Background()
	store := session.NewMemoryStore()
	require.NoError(t, store.Set(ctx, member))
	p := session.NewProvider(store, nil)
	require.NoError(t, p.Restore(ctx))

	require.NoError(t, p.Refresh(ctx, &stubLoader{actors: map[string]rbac.Actor{}}))
	assert.Nil(t, p.Actor())
	persisted, err := store.Get(ctx)
	require.NoError(t, err)
	assert.Nil(t, persisted)
}

func TestRefreshErrorFailsClosed(t *testing.T) {
	ctx := context.Background()
	store := session.NewMemoryStore()
	require.NoError(t, store.Set(ctx, member))
	p := session.NewProvider(store, nil)
	require.NoError(t, p.Restore(ctx))

	assert.Error(t, p.Refresh(ctx, &stubLoader{err: errors.New("db down")}))
	assert.Nil(t, p.Actor())
}

func TestActorReturnsCopy(t *testing.T) {
	ctx := context.Background()
	store := session.NewMemoryStore()
	require.NoError(t, store.Set(ctx, member))
	p := session.NewProvider(store, nil)
	require.NoError(t, p.Restore(ctx))

	p.Actor().Role = rbac.RoleAdmin
	assert.Equal(t, rbac.RoleMember, p.Actor().Role)
}
