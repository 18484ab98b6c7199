// Package admin serves the moderation dashboard.
package admin

import (
	"context"
	"fmt"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/sizang-hub/sizang-hub/internal/platform/cache"
	"github.com/sizang-hub/sizang-hub/internal/platform/httpx"
	"github.com/sizang-hub/sizang-hub/internal/rbac"
	"github.com/sizang-hub/sizang-hub/internal/reports"
)

const requestTimeout = 2 * time.Second

// Sources are the counters the dashboard aggregates.
type Sources struct {
	Users     interface{ RoleCounts(context.Context) (map[rbac.Role]int, error) }
	Forums    interface{ Stats(context.Context) (int, int, error) }
	Groups    interface{ Count(context.Context) (int, error) }
	Resources interface{ Stats(context.Context) (int, int, error) }
	Reports   interface {
		StatusCounts(context.Context) (map[reports.Status]int, error)
	}
}

// Announcer fans a system notice out to every member.
type Announcer interface {
	Announce(ctx context.Context, actorID, content string) error
}

// Dashboard is the moderation overview.
type Dashboard struct {
	UsersByRole      map[string]int `json:"users_by_role"`
	TotalUsers       int            `json:"total_users"`
	Threads          int            `json:"threads"`
	Replies          int            `json:"replies"`
	Groups           int            `json:"groups"`
	Resources        int            `json:"resources"`
	PendingResources int            `json:"pending_resources"`
	PendingReports   int            `json:"pending_reports"`
	GeneratedAt      time.Time      `json:"generated_at"`
}

// Service assembles the dashboard.
type Service struct {
	sources   Sources
	cache     *cache.JSONCache
	announcer Announcer
}

// NewService builds Service instance. A nil cache disables caching.
func NewService(sources Sources, c *cache.JSONCache, announcer Announcer) *Service {
	if c == nil {
		c = cache.NewJSONCache(nil, "admin_dashboard", 0)
	}
	return &Service{sources: sources, cache: c, announcer: announcer}
}

func canModerate(actor *rbac.Actor) error {
	if actor == nil {
		return httpx.ErrUnauthorized
	}
	if !rbac.HasCapability(actor, rbac.CapManageContent) && !rbac.HasCapability(actor, rbac.CapModerateContent) {
		return fmt.Errorf("%w: the dashboard requires manage_content or moderate_content", httpx.ErrForbidden)
	}
	return nil
}

// Dashboard returns the cached overview, computing it on a miss.
func (s *Service) Dashboard(ctx context.Context, actor *rbac.Actor) (Dashboard, error) {
	if err := canModerate(actor); err != nil {
		return Dashboard{}, err
	}
	var out Dashboard
	err := s.cache.Fetch(ctx, &out, func(ctx context.Context) (any, error) {
		return s.compute(ctx)
	}, "overview")
	return out, err
}

// Refresh drops the cached overview.
func (s *Service) Refresh(ctx context.Context) error {
	return s.cache.Bump(ctx)
}

func (s *Service) compute(ctx context.Context) (Dashboard, error) {
	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	data := Dashboard{UsersByRole: map[string]int{}, GeneratedAt: time.Now().UTC()}
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		counts, err := s.sources.Users.RoleCounts(ctx)
		if err != nil {
			return fmt.Errorf("user counts: %w", err)
		}
		for _, role := range rbac.AllRoles() {
			data.UsersByRole[role.String()] = counts[role]
			data.TotalUsers += counts[role]
		}
		return nil
	})
	g.Go(func() error {
		threads, replies, err := s.sources.Forums.Stats(ctx)
		if err != nil {
			return fmt.Errorf("forum stats: %w", err)
		}
		data.Threads, data.Replies = threads, replies
		return nil
	})
	g.Go(func() error {
		n, err := s.sources.Groups.Count(ctx)
		if err != nil {
			return fmt.Errorf("group count: %w", err)
		}
		data.Groups = n
		return nil
	})
	g.Go(func() error {
		total, pending, err := s.sources.Resources.Stats(ctx)
		if err != nil {
			return fmt.Errorf("resource stats: %w", err)
		}
		data.Resources, data.PendingResources = total, pending
		return nil
	})
	g.Go(func() error {
		counts, err := s.sources.Reports.StatusCounts(ctx)
		if err != nil {
			return fmt.Errorf("report counts: %w", err)
		}
		data.PendingReports = counts[reports.StatusPending]
		return nil
	})

	if err := g.Wait(); err != nil {
		return Dashboard{}, err
	}
	return data, nil
}

// Announce sends content to every member as a system notification.
func (s *Service) Announce(ctx context.Context, actor *rbac.Actor, content string) error {
	if actor == nil {
		return httpx.ErrUnauthorized
	}
	if !rbac.HasCapability(actor, rbac.CapManageContent) {
		return fmt.Errorf("%w: announcements require manage_content", httpx.ErrForbidden)
	}
	content = strings.TrimSpace(content)
	if content == "" || len(content) > 1000 {
		return fmt.Errorf("%w: announcement must be 1-1000 characters", httpx.ErrValidation)
	}
	if s.announcer == nil {
		return fmt.Errorf("%w: announcements are not configured", httpx.ErrConflict)
	}
	return s.announcer.Announce(ctx, actor.ID, content)
}
