package resources

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/sizang-hub/sizang-hub/internal/ids"
	"github.com/sizang-hub/sizang-hub/internal/platform/httpx"
	"github.com/sizang-hub/sizang-hub/internal/rbac"
	"github.com/sizang-hub/sizang-hub/internal/users"
)

// Notifier is told when a moderator publishes a member's resource.
type Notifier interface {
	ResourceApproved(ctx context.Context, res Resource, approverID string) error
}

// Service handles resource business logic.
type Service struct {
	repo     RepositoryPort
	notifier Notifier
	logger   *slog.Logger
	validate *validator.Validate
}

// NewService builds Service instance. notifier may be nil.
func NewService(repo RepositoryPort, notifier Notifier, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, notifier: notifier, logger: logger, validate: validator.New()}
}

// List returns resources visible to actor. Moderators see the approval
// queue; everyone else sees approved entries plus their own submissions.
func (s *Service) List(ctx context.Context, actor *rbac.Actor, filter ListFilter) ([]Resource, int, error) {
	filter.Search = strings.TrimSpace(filter.Search)
	filter.IncludeUnapproved = rbac.HasCapability(actor, rbac.CapModerateContent)
	if filter.PendingOnly && !filter.IncludeUnapproved {
		return nil, 0, fmt.Errorf("%w: the approval queue requires moderate_content", httpx.ErrForbidden)
	}
	filter.ViewerID = ""
	if actor != nil {
		filter.ViewerID = actor.ID
	}
	return s.repo.List(ctx, filter)
}

func (s *Service) visible(actor *rbac.Actor, res Resource) bool {
	if res.IsApproved || rbac.HasCapability(actor, rbac.CapModerateContent) {
		return true
	}
	return actor != nil && actor.ID == res.AuthorID
}

// Get returns a resource and counts the view.
func (s *Service) Get(ctx context.Context, actor *rbac.Actor, id string) (Resource, error) {
	res, err := s.repo.Get(ctx, id)
	if err != nil {
		return Resource{}, err
	}
	if !s.visible(actor, res) {
		return Resource{}, fmt.Errorf("%w: resource %s", httpx.ErrNotFound, id)
	}
	if err := s.repo.IncrementViews(ctx, id); err != nil {
		s.logger.Warn("count resource view", slog.String("resource_id", id), slog.Any("error", err))
	} else {
		res.ViewCount++
	}
	return res, nil
}

// Create submits a resource. Submissions from moderators are published
// immediately; others wait for approval.
func (s *Service) Create(ctx context.Context, actor *rbac.Actor, input Input) (Resource, error) {
	if actor == nil {
		return Resource{}, httpx.ErrUnauthorized
	}
	if !rbac.HasCapability(actor, rbac.CapCreateContent) {
		return Resource{}, fmt.Errorf("%w: sharing resources requires create_content", httpx.ErrForbidden)
	}
	input.Title = strings.TrimSpace(input.Title)
	if err := s.validate.Struct(input); err != nil {
		return Resource{}, err
	}
	if input.URL == "" && input.FileURL == "" && input.Type != TypeArticle {
		return Resource{}, fmt.Errorf("%w: url or file_url is required", httpx.ErrValidation)
	}
	lang := "ctd"
	if input.Language != "" {
		langs, err := users.NormalizeLanguages([]string{input.Language})
		if err != nil {
			return Resource{}, err
		}
		lang = langs[0]
	}
	res := Resource{
		ID:          ids.New(),
		Title:       input.Title,
		Description: strings.TrimSpace(input.Description),
		Type:        input.Type,
		URL:         input.URL,
		FileURL:     input.FileURL,
		Language:    lang,
		AuthorID:    actor.ID,
		Category:    input.Category,
		Tags:        cleanTags(input.Tags),
	}
	if rbac.HasCapability(actor, rbac.CapModerateContent) {
		res.IsApproved = true
		res.ApprovedBy = &actor.ID
	}
	return s.repo.Create(ctx, res)
}

// Update edits a resource.
func (s *Service) Update(ctx context.Context, actor *rbac.Actor, id string, input Update) (Resource, error) {
	if actor == nil {
		return Resource{}, httpx.ErrUnauthorized
	}
	if err := s.validate.Struct(input); err != nil {
		return Resource{}, err
	}
	res, err := s.repo.Get(ctx, id)
	if err != nil {
		return Resource{}, err
	}
	if !rbac.CanManageContent(actor, res.AuthorID) {
		return Resource{}, fmt.Errorf("%w: cannot edit this resource", httpx.ErrForbidden)
	}
	if input.Title != nil {
		res.Title = strings.TrimSpace(*input.Title)
	}
	if input.Description != nil {
		res.Description = strings.TrimSpace(*input.Description)
	}
	prevURL, prevFile := res.URL, res.FileURL
	if input.URL != nil {
		res.URL = *input.URL
	}
	if input.FileURL != nil {
		res.FileURL = *input.FileURL
	}
	if input.Category != nil {
		res.Category = *input.Category
	}
	if input.Tags != nil {
		res.Tags = cleanTags(input.Tags)
	}
	if res.URL == "" && res.FileURL == "" && res.Type != TypeArticle {
		return Resource{}, fmt.Errorf("%w: url or file_url is required", httpx.ErrValidation)
	}
	// A changed link goes back through review unless a moderator made it.
	linkChanged := res.URL != prevURL || res.FileURL != prevFile
	if linkChanged && res.IsApproved && !rbac.HasCapability(actor, rbac.CapModerateContent) {
		res.IsApproved = false
		res.ApprovedBy = nil
	}
	return s.repo.Update(ctx, res)
}

// Delete removes a resource.
func (s *Service) Delete(ctx context.Context, actor *rbac.Actor, id string) error {
	if actor == nil {
		return httpx.ErrUnauthorized
	}
	res, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	if !rbac.CanDeleteContent(actor, res.AuthorID) {
		return fmt.Errorf("%w: cannot delete this resource", httpx.ErrForbidden)
	}
	return s.repo.Delete(ctx, id)
}

// Approve publishes a pending resource and tells its author.
func (s *Service) Approve(ctx context.Context, actor *rbac.Actor, id string) (Resource, error) {
	if actor == nil {
		return Resource{}, httpx.ErrUnauthorized
	}
	if !rbac.HasCapability(actor, rbac.CapModerateContent) {
		return Resource{}, fmt.Errorf("%w: approving resources requires moderate_content", httpx.ErrForbidden)
	}
	current, err := s.repo.Get(ctx, id)
	if err != nil {
		return Resource{}, err
	}
	if current.IsApproved {
		return current, nil
	}
	res, err := s.repo.Approve(ctx, id, actor.ID)
	if err != nil {
		return Resource{}, err
	}
	if s.notifier != nil && res.AuthorID != actor.ID {
		if err := s.notifier.ResourceApproved(ctx, res, actor.ID); err != nil {
			s.logger.Warn("notify resource approval", slog.String("resource_id", id), slog.Any("error", err))
		}
	}
	return res, nil
}

// Download counts a download and returns the resource to redirect to.
func (s *Service) Download(ctx context.Context, actor *rbac.Actor, id string) (Resource, error) {
	res, err := s.repo.Get(ctx, id)
	if err != nil {
		return Resource{}, err
	}
	if !s.visible(actor, res) {
		return Resource{}, fmt.Errorf("%w: resource %s", httpx.ErrNotFound, id)
	}
	if res.Link() == "" {
		return Resource{}, fmt.Errorf("%w: resource has nothing to download", httpx.ErrConflict)
	}
	n, err := s.repo.IncrementDownloads(ctx, id)
	if err != nil {
		return Resource{}, err
	}
	res.DownloadCount = n
	return res, nil
}

// Stats returns totals for the dashboard.
func (s *Service) Stats(ctx context.Context) (total, pending int, err error) {
	if total, err = s.repo.Count(ctx); err != nil {
		return 0, 0, err
	}
	pending, err = s.repo.CountPending(ctx)
	return total, pending, err
}

func cleanTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	seen := make(map[string]struct{}, len(tags))
	for _, t := range tags {
		t = strings.ToLower(strings.TrimSpace(t))
		if _, dup := seen[t]; dup || t == "" {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}
