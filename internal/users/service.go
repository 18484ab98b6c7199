package users

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"golang.org/x/text/language"

	"github.com/sizang-hub/sizang-hub/internal/platform/httpx"
	"github.com/sizang-hub/sizang-hub/internal/rbac"
	"github.com/sizang-hub/sizang-hub/internal/shared"
)

// Service handles user business logic. Every operation takes the acting
// actor and re-checks permissions regardless of route guards.
type Service struct {
	repo     RepositoryPort
	audit    shared.Auditor
	validate *validator.Validate
	logger   *slog.Logger
	now      func() time.Time
}

// activityInterval bounds how often last-active timestamps are written.
const activityInterval = time.Minute

// Option configures Service.
type Option func(*Service)

// WithLogger sets the service logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// NewService builds Service instance.
func NewService(repo RepositoryPort, audit shared.Auditor, opts ...Option) *Service {
	if audit == nil {
		audit = shared.NopAuditor{}
	}
	s := &Service{repo: repo, audit: audit, validate: validator.New(), logger: slog.Default(), now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// List returns users matching filter. Any signed-in actor may browse members.
func (s *Service) List(ctx context.Context, actor *rbac.Actor, filter ListFilter) ([]User, int, error) {
	if actor == nil {
		return nil, 0, httpx.ErrUnauthorized
	}
	filter.Search = strings.TrimSpace(filter.Search)
	return s.repo.List(ctx, filter)
}

// Get returns one user.
func (s *Service) Get(ctx context.Context, actor *rbac.Actor, id string) (User, error) {
	if actor == nil {
		return User{}, httpx.ErrUnauthorized
	}
	return s.repo.Get(ctx, id)
}

// UpdateProfile edits a profile. Actors edit their own profile; editing
// someone else's requires user management rights over them.
func (s *Service) UpdateProfile(ctx context.Context, actor *rbac.Actor, id string, input ProfileInput) (User, error) {
	if actor == nil {
		return User{}, httpx.ErrUnauthorized
	}
	if actor.ID != id && !rbac.CanManageUsers(actor, id) {
		return User{}, fmt.Errorf("%w: cannot edit another member's profile", httpx.ErrForbidden)
	}
	if input.DisplayName != nil {
		trimmed := strings.TrimSpace(*input.DisplayName)
		input.DisplayName = &trimmed
	}
	if err := s.validate.Struct(input); err != nil {
		return User{}, err
	}
	if input.Languages != nil {
		langs, err := NormalizeLanguages(input.Languages)
		if err != nil {
			return User{}, err
		}
		input.Languages = langs
	}
	return s.repo.UpdateProfile(ctx, id, input)
}

// ChangeRole assigns a new role. Administrators cannot change their own role.
func (s *Service) ChangeRole(ctx context.Context, actor *rbac.Actor, id string, role rbac.Role) (User, error) {
	if actor == nil {
		return User{}, httpx.ErrUnauthorized
	}
	if !rbac.CanManageUsers(actor, id) {
		return User{}, fmt.Errorf("%w: cannot change this member's role", httpx.ErrForbidden)
	}
	if !role.Valid() {
		return User{}, fmt.Errorf("%w: unknown role", httpx.ErrValidation)
	}
	before, err := s.repo.Get(ctx, id)
	if err != nil {
		return User{}, err
	}
	if before.Role == role {
		return before, nil
	}
	updated, err := s.repo.UpdateRole(ctx, id, role)
	if err != nil {
		return User{}, err
	}
	if err := s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actor.ID,
		Action:   "user.role_changed",
		Entity:   "user",
		EntityID: id,
		Meta:     map[string]any{"from": before.Role.String(), "to": role.String()},
		At:       s.now(),
	}); err != nil {
		return updated, fmt.Errorf("users: audit role change: %w", err)
	}
	return updated, nil
}

// Delete removes an account. Administrators cannot delete themselves.
func (s *Service) Delete(ctx context.Context, actor *rbac.Actor, id string) error {
	if actor == nil {
		return httpx.ErrUnauthorized
	}
	if !rbac.CanManageUsers(actor, id) {
		return fmt.Errorf("%w: cannot delete this member", httpx.ErrForbidden)
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	return s.audit.Record(ctx, shared.AuditLog{ActorID: actor.ID, Action: "user.deleted", Entity: "user", EntityID: id, At: s.now()})
}

// LoadActor returns the current permission snapshot of a user and records
// activity. It satisfies session.ActorLoader.
func (s *Service) LoadActor(ctx context.Context, id string) (rbac.Actor, error) {
	u, err := s.repo.Get(ctx, id)
	if err != nil {
		return rbac.Actor{}, err
	}
	now := s.now()
	if u.LastActiveAt == nil || now.Sub(*u.LastActiveAt) >= activityInterval {
		if err := s.repo.Touch(ctx, id, now); err != nil {
			s.logger.Warn("record user activity", slog.String("user_id", id), slog.Any("error", err))
		}
	}
	return u.Actor(), nil
}

// RoleCounts tallies members per role.
func (s *Service) RoleCounts(ctx context.Context) (map[rbac.Role]int, error) {
	return s.repo.CountByRole(ctx)
}

// NormalizeLanguages canonicalises BCP 47 tags and drops duplicates.
func NormalizeLanguages(tags []string) ([]string, error) {
	out := make([]string, 0, len(tags))
	seen := make(map[string]struct{}, len(tags))
	for _, raw := range tags {
		tag, err := language.Parse(strings.TrimSpace(raw))
		if err != nil {
			var invalid language.ValueError
			if errors.As(err, &invalid) {
				return nil, fmt.Errorf("%w: unsupported language %q", httpx.ErrValidation, raw)
			}
			return nil, fmt.Errorf("%w: malformed language %q", httpx.ErrValidation, raw)
		}
		canonical := tag.String()
		if _, dup := seen[canonical]; dup {
			continue
		}
		seen[canonical] = struct{}{}
		out = append(out, canonical)
	}
	return out, nil
}
