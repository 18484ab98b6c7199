package roles

import (
	"context"
	"fmt"

	"github.com/sizang-hub/sizang-hub/internal/platform/httpx"
	"github.com/sizang-hub/sizang-hub/internal/rbac"
)

// Counter tallies accounts per role.
type Counter interface {
	RoleCounts(ctx context.Context) (map[rbac.Role]int, error)
}

// Service handles role business logic.
type Service struct {
	counter Counter
}

// NewService builds Service instance.
func NewService(counter Counter) *Service {
	return &Service{counter: counter}
}

// ListRoles returns every role from most to least privileged.
func (s *Service) ListRoles(ctx context.Context, actor *rbac.Actor) ([]Role, error) {
	if actor == nil {
		return nil, httpx.ErrUnauthorized
	}
	if !rbac.CanManageUsers(actor, "") {
		return nil, fmt.Errorf("%w: role overview requires user management", httpx.ErrForbidden)
	}
	counts, err := s.counter.RoleCounts(ctx)
	if err != nil {
		return nil, err
	}
	all := rbac.AllRoles()
	out := make([]Role, 0, len(all))
	for i := len(all) - 1; i >= 0; i-- {
		role := all[i]
		out = append(out, Role{
			Name:         role,
			Description:  descriptions[role],
			Capabilities: rbac.CapabilitiesFor(role),
			Flags:        rbac.FlagsFor(role),
			Members:      counts[role],
		})
	}
	return out, nil
}
