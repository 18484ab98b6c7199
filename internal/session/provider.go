// Package session owns the zero-or-one authenticated actor of a client
// session: restoring it from storage, replacing it on sign-in and clearing it
// on sign-out. It assumes nothing about where the actor is stored.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/sizang-hub/sizang-hub/internal/platform/httpx"
	"github.com/sizang-hub/sizang-hub/internal/rbac"
)

// State is the lifecycle position of a Provider.
type State uint8

const (
	StateUnauthenticated State = iota
	StateAuthenticating
	StateAuthenticated
)

func (s State) String() string {
	switch s {
	case StateUnauthenticated:
		return "unauthenticated"
	case StateAuthenticating:
		return "authenticating"
	case StateAuthenticated:
		return "authenticated"
	default:
		return "unknown"
	}
}

// ActorStore persists the authenticated actor between requests. Get returns
// nil without error when nothing is stored.
type ActorStore interface {
	Get(ctx context.Context) (*rbac.Actor, error)
	Set(ctx context.Context, actor rbac.Actor) error
	Clear(ctx context.Context) error
}

// ActorLoader reads the current snapshot of a user. Implementations return an
// error wrapping httpx.ErrNotFound when the user no longer exists.
type ActorLoader interface {
	LoadActor(ctx context.Context, id string) (rbac.Actor, error)
}

// AuthFunc performs a sign-in style operation and yields the actor to adopt.
type AuthFunc func(ctx context.Context) (rbac.Actor, error)

// Listener is notified with the new actor, or nil, after every change.
type Listener func(actor *rbac.Actor)

// ErrNotRestored is returned when an operation needs the persisted actor
// before Restore has completed.
var ErrNotRestored = errors.New("session: actor not restored")

// Provider holds the current actor for one client session. It is safe for
// concurrent use, but concurrent Authenticate calls are not coordinated: the
// last one to finish wins.
type Provider struct {
	store  ActorStore
	logger *slog.Logger

	mu        sync.Mutex
	state     State
	actor     *rbac.Actor
	restored  bool
	listeners map[int]Listener
	nextID    int
}

// NewProvider builds a Provider over store. The provider reports no actor
// until Restore completes.
func NewProvider(store ActorStore, logger *slog.Logger) *Provider {
	if logger == nil {
		logger = slog.Default()
	}
	return &Provider{store: store, logger: logger, listeners: make(map[int]Listener)}
}

// Restore loads the persisted actor. A read failure leaves the provider
// unauthenticated and is returned to the caller.
func (p *Provider) Restore(ctx context.Context) error {
	actor, err := p.store.Get(ctx)
	if err != nil {
		p.logger.Warn("restore session actor", slog.Any("error", err))
		p.set(nil, StateUnauthenticated, true)
		return fmt.Errorf("session: restore: %w", err)
	}
	if actor == nil {
		p.set(nil, StateUnauthenticated, true)
		return nil
	}
	p.set(actor, StateAuthenticated, true)
	return nil
}

// Restored reports whether Restore has completed.
func (p *Provider) Restored() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.restored
}

// Actor returns a copy of the current actor, or nil when unauthenticated or
// not yet restored.
func (p *Provider) Actor() *rbac.Actor {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.restored || p.actor == nil {
		return nil
	}
	actor := *p.actor
	return &actor
}

// State returns the lifecycle state.
func (p *Provider) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Authenticate runs fn while the provider is Authenticating, then persists
// and adopts the returned actor. On failure the previous state is restored
// and the persisted actor is left untouched.
func (p *Provider) Authenticate(ctx context.Context, fn AuthFunc) (*rbac.Actor, error) {
	p.mu.Lock()
	prev := p.state
	p.state = StateAuthenticating
	p.mu.Unlock()

	actor, err := fn(ctx)
	if err == nil {
		err = p.store.Set(ctx, actor)
	}
	if err != nil {
		p.mu.Lock()
		if p.state == StateAuthenticating {
			p.state = prev
		}
		p.mu.Unlock()
		return nil, err
	}

	p.set(&actor, StateAuthenticated, true)
	out := actor
	return &out, nil
}

// Logout clears the persisted actor. The in-memory actor is dropped even
// when the store fails so the caller never keeps acting as the old user.
func (p *Provider) Logout(ctx context.Context) error {
	err := p.store.Clear(ctx)
	p.set(nil, StateUnauthenticated, true)
	if err != nil {
		return fmt.Errorf("session: logout: %w", err)
	}
	return nil
}

// Refresh re-reads the current actor through loader so role changes and
// deletions take effect. A user that no longer exists is logged out; any
// other failure drops the actor for this provider and is returned.
func (p *Provider) Refresh(ctx context.Context, loader ActorLoader) error {
	current := p.Actor()
	if current == nil {
		return nil
	}
	fresh, err := loader.LoadActor(ctx, current.ID)
	if errors.Is(err, httpx.ErrNotFound) {
		p.logger.Info("session actor no longer exists", slog.String("actor_id", current.ID))
		return p.Logout(ctx)
	}
	if err != nil {
		p.set(nil, StateUnauthenticated, true)
		return fmt.Errorf("session: refresh: %w", err)
	}
	if current.Equal(fresh) {
		return nil
	}
	if err := p.store.Set(ctx, fresh); err != nil {
		return fmt.Errorf("session: refresh: %w", err)
	}
	p.set(&fresh, StateAuthenticated, true)
	return nil
}

// Subscribe registers fn for actor changes and returns a func that removes
// it.
func (p *Provider) Subscribe(fn Listener) func() {
	p.mu.Lock()
	id := p.nextID
	p.nextID++
	p.listeners[id] = fn
	p.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			p.mu.Lock()
			delete(p.listeners, id)
			p.mu.Unlock()
		})
	}
}

func (p *Provider) set(actor *rbac.Actor, state State, restored bool) {
	p.mu.Lock()
	var stored *rbac.Actor
	if actor != nil {
		copied := *actor
		stored = &copied
	}
	p.actor = stored
	p.state = state
	p.restored = restored
	listeners := make([]Listener, 0, len(p.listeners))
	for _, fn := range p.listeners {
		listeners = append(listeners, fn)
	}
	p.mu.Unlock()

	for _, fn := range listeners {
		if stored == nil {
			fn(nil)
			continue
		}
		copied := *stored
		fn(&copied)
	}
}

type providerContextKey struct{}

// ContextWithProvider stores the request's provider.
func ContextWithProvider(ctx context.Context, p *Provider) context.Context {
	return context.WithValue(ctx, providerContextKey{}, p)
}

// ProviderFromContext returns the request's provider, or nil.
func ProviderFromContext(ctx context.Context) *Provider {
	p, _ := ctx.Value(providerContextKey{}).(*Provider)
	return p
}
