package forums

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/sizang-hub/sizang-hub/internal/ids"
	"github.com/sizang-hub/sizang-hub/internal/platform/cache"
	"github.com/sizang-hub/sizang-hub/internal/platform/httpx"
	"github.com/sizang-hub/sizang-hub/internal/rbac"
	"github.com/sizang-hub/sizang-hub/internal/users"
)

// DefaultLanguage tags content that does not name a language.
const DefaultLanguage = "ctd"

// Service handles forum business logic.
type Service struct {
	repo       RepositoryPort
	renderer   *Renderer
	categories *cache.JSONCache
	notifier   Notifier
	mentions   MentionResolver
	logger     *slog.Logger
	validate   *validator.Validate
}

// Option configures Service.
type Option func(*Service)

// WithNotifier routes reply and like notifications.
func WithNotifier(n Notifier) Option {
	return func(s *Service) { s.notifier = n }
}

// WithMentions resolves @handles in threads and replies so the named
// members are notified.
func WithMentions(r MentionResolver) Option {
	return func(s *Service) { s.mentions = r }
}

// WithCategoryCache caches the category listing.
func WithCategoryCache(c *cache.JSONCache) Option {
	return func(s *Service) { s.categories = c }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// NewService builds Service instance.
func NewService(repo RepositoryPort, opts ...Option) *Service {
	s := &Service{
		repo:       repo,
		renderer:   NewRenderer(),
		categories: cache.NewJSONCache(nil, "forum_categories", 0),
		notifier:   nopNotifier{},
		logger:     slog.Default(),
		validate:   validator.New(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ListCategories returns the active categories.
func (s *Service) ListCategories(ctx context.Context) ([]Category, error) {
	var out []Category
	err := s.categories.Fetch(ctx, &out, func(ctx context.Context) (any, error) {
		cats, err := s.repo.ListCategories(ctx)
		if cats == nil {
			cats = []Category{}
		}
		return cats, err
	}, "all")
	return out, err
}

// GetCategory returns a category by id or slug.
func (s *Service) GetCategory(ctx context.Context, id string) (Category, error) {
	return s.repo.GetCategory(ctx, id)
}

// SaveCategory creates or updates a category by slug.
func (s *Service) SaveCategory(ctx context.Context, actor *rbac.Actor, input CategoryInput) (Category, error) {
	if actor == nil {
		return Category{}, httpx.ErrUnauthorized
	}
	if !rbac.HasCapability(actor, rbac.CapManageContent) {
		return Category{}, fmt.Errorf("%w: managing categories requires manage_content", httpx.ErrForbidden)
	}
	return s.ImportCategory(ctx, input)
}

// ImportCategory upserts a category without a permission check. It is used
// when seeding from the community file.
func (s *Service) ImportCategory(ctx context.Context, input CategoryInput) (Category, error) {
	input.Name = strings.TrimSpace(input.Name)
	input.Slug = strings.ToLower(strings.TrimSpace(input.Slug))
	if err := s.validate.Struct(input); err != nil {
		return Category{}, err
	}
	cat, err := s.repo.UpsertCategory(ctx, Category{
		ID:          ids.New(),
		Name:        input.Name,
		Description: strings.TrimSpace(input.Description),
		Slug:        input.Slug,
		SortOrder:   input.SortOrder,
		ParentID:    input.ParentID,
	})
	if err != nil {
		return Category{}, err
	}
	s.invalidateCategories(ctx)
	return cat, nil
}

// DeleteCategory deactivates a category.
func (s *Service) DeleteCategory(ctx context.Context, actor *rbac.Actor, id string) error {
	if actor == nil {
		return httpx.ErrUnauthorized
	}
	if !rbac.HasCapability(actor, rbac.CapManageContent) {
		return fmt.Errorf("%w: managing categories requires manage_content", httpx.ErrForbidden)
	}
	if err := s.repo.DeleteCategory(ctx, id); err != nil {
		return err
	}
	s.invalidateCategories(ctx)
	return nil
}

func (s *Service) invalidateCategories(ctx context.Context) {
	if err := s.categories.Bump(ctx); err != nil {
		s.logger.Warn("invalidate category cache", slog.Any("error", err))
	}
}

// ListThreads returns threads matching filter, pinned first.
func (s *Service) ListThreads(ctx context.Context, filter ThreadFilter) ([]Thread, int, error) {
	filter.Search = strings.TrimSpace(filter.Search)
	return s.repo.ListThreads(ctx, filter)
}

// GetThread returns a thread and counts the view.
func (s *Service) GetThread(ctx context.Context, id string) (Thread, error) {
	t, err := s.repo.GetThread(ctx, id)
	if err != nil {
		return Thread{}, err
	}
	if err := s.repo.IncrementViews(ctx, id); err != nil {
		s.logger.Warn("count thread view", slog.String("thread_id", id), slog.Any("error", err))
	} else {
		t.ViewCount++
	}
	return t, nil
}

// CreateThread starts a discussion authored by actor.
func (s *Service) CreateThread(ctx context.Context, actor *rbac.Actor, input ThreadInput) (Thread, error) {
	if err := requireCreate(actor); err != nil {
		return Thread{}, err
	}
	input.Title = strings.TrimSpace(input.Title)
	if err := s.validate.Struct(input); err != nil {
		return Thread{}, err
	}
	lang, err := normalizeLanguage(input.Language)
	if err != nil {
		return Thread{}, err
	}
	cat, err := s.repo.GetCategory(ctx, input.CategoryID)
	if err != nil {
		return Thread{}, err
	}
	if !cat.IsActive {
		return Thread{}, fmt.Errorf("%w: category %s is closed", httpx.ErrValidation, cat.Slug)
	}
	thread, err := s.repo.CreateThread(ctx, Thread{
		ID:          ids.New(),
		Title:       input.Title,
		Content:     input.Content,
		ContentHTML: s.renderer.Render(input.Content),
		CategoryID:  cat.ID,
		AuthorID:    actor.ID,
		Language:    lang,
		Tags:        normalizeTags(input.Tags),
	})
	if err != nil {
		return Thread{}, err
	}
	s.invalidateCategories(ctx)
	s.notifyMentions(ctx, actor, thread, thread.Content)
	return thread, nil
}

// UpdateThread edits a thread. Locked threads are only editable by
// moderators.
func (s *Service) UpdateThread(ctx context.Context, actor *rbac.Actor, id string, input ThreadUpdate) (Thread, error) {
	if actor == nil {
		return Thread{}, httpx.ErrUnauthorized
	}
	if err := s.validate.Struct(input); err != nil {
		return Thread{}, err
	}
	thread, err := s.repo.GetThread(ctx, id)
	if err != nil {
		return Thread{}, err
	}
	if !rbac.CanManageContent(actor, thread.AuthorID) {
		return Thread{}, fmt.Errorf("%w: cannot edit this thread", httpx.ErrForbidden)
	}
	if thread.IsLocked && !rbac.HasCapability(actor, rbac.CapModerateContent) {
		return Thread{}, fmt.Errorf("%w: thread is locked", httpx.ErrForbidden)
	}
	if input.Title != nil {
		thread.Title = strings.TrimSpace(*input.Title)
	}
	if input.Content != nil {
		thread.Content = *input.Content
		thread.ContentHTML = s.renderer.Render(*input.Content)
	}
	if input.CategoryID != nil && *input.CategoryID != thread.CategoryID {
		cat, err := s.repo.GetCategory(ctx, *input.CategoryID)
		if err != nil {
			return Thread{}, err
		}
		thread.CategoryID = cat.ID
		defer s.invalidateCategories(ctx)
	}
	if input.Tags != nil {
		thread.Tags = normalizeTags(input.Tags)
	}
	return s.repo.UpdateThread(ctx, thread)
}

// DeleteThread removes a thread.
func (s *Service) DeleteThread(ctx context.Context, actor *rbac.Actor, id string) error {
	if actor == nil {
		return httpx.ErrUnauthorized
	}
	thread, err := s.repo.GetThread(ctx, id)
	if err != nil {
		return err
	}
	if !rbac.CanDeleteContent(actor, thread.AuthorID) {
		return fmt.Errorf("%w: cannot delete this thread", httpx.ErrForbidden)
	}
	if err := s.repo.DeleteThread(ctx, id); err != nil {
		return err
	}
	s.invalidateCategories(ctx)
	return nil
}

// ThreadState toggles moderation flags.
type ThreadState struct {
	Pinned *bool `json:"is_pinned"`
	Locked *bool `json:"is_locked"`
}

// SetThreadState pins or locks a thread.
func (s *Service) SetThreadState(ctx context.Context, actor *rbac.Actor, id string, state ThreadState) (Thread, error) {
	if actor == nil {
		return Thread{}, httpx.ErrUnauthorized
	}
	if !rbac.HasCapability(actor, rbac.CapModerateContent) {
		return Thread{}, fmt.Errorf("%w: moderating threads requires moderate_content", httpx.ErrForbidden)
	}
	return s.repo.SetThreadState(ctx, id, state.Pinned, state.Locked)
}

// ListReplies returns a page of replies for a thread.
func (s *Service) ListReplies(ctx context.Context, threadID string, limit, offset int) ([]Reply, int, error) {
	if _, err := s.repo.GetThread(ctx, threadID); err != nil {
		return nil, 0, err
	}
	return s.repo.ListReplies(ctx, threadID, limit, offset)
}

// CreateReply posts a reply and notifies the thread author.
func (s *Service) CreateReply(ctx context.Context, actor *rbac.Actor, threadID string, input ReplyInput) (Reply, error) {
	if err := requireCreate(actor); err != nil {
		return Reply{}, err
	}
	if err := s.validate.Struct(input); err != nil {
		return Reply{}, err
	}
	lang, err := normalizeLanguage(input.Language)
	if err != nil {
		return Reply{}, err
	}
	thread, err := s.repo.GetThread(ctx, threadID)
	if err != nil {
		return Reply{}, err
	}
	if thread.IsLocked && !rbac.HasCapability(actor, rbac.CapModerateContent) {
		return Reply{}, fmt.Errorf("%w: thread is locked", httpx.ErrConflict)
	}
	if input.ParentID != nil {
		parent, err := s.repo.GetReply(ctx, *input.ParentID)
		if err != nil {
			return Reply{}, err
		}
		if parent.ThreadID != thread.ID {
			return Reply{}, fmt.Errorf("%w: parent reply belongs to another thread", httpx.ErrValidation)
		}
	}
	reply, err := s.repo.CreateReply(ctx, Reply{
		ID:          ids.New(),
		ThreadID:    thread.ID,
		ParentID:    input.ParentID,
		Content:     input.Content,
		ContentHTML: s.renderer.Render(input.Content),
		AuthorID:    actor.ID,
		Language:    lang,
	})
	if err != nil {
		return Reply{}, err
	}
	if thread.AuthorID != actor.ID {
		if err := s.notifier.ReplyPosted(ctx, thread, reply); err != nil {
			s.logger.Warn("notify reply", slog.String("thread_id", thread.ID), slog.Any("error", err))
		}
	}
	s.notifyMentions(ctx, actor, thread, reply.Content, thread.AuthorID)
	return reply, nil
}

// UpdateReply edits a reply and marks it edited.
func (s *Service) UpdateReply(ctx context.Context, actor *rbac.Actor, id string, input ReplyInput) (Reply, error) {
	if actor == nil {
		return Reply{}, httpx.ErrUnauthorized
	}
	if err := s.validate.Struct(input); err != nil {
		return Reply{}, err
	}
	reply, err := s.repo.GetReply(ctx, id)
	if err != nil {
		return Reply{}, err
	}
	if !rbac.CanManageContent(actor, reply.AuthorID) {
		return Reply{}, fmt.Errorf("%w: cannot edit this reply", httpx.ErrForbidden)
	}
	thread, err := s.repo.GetThread(ctx, reply.ThreadID)
	if err != nil {
		return Reply{}, err
	}
	if thread.IsLocked && !rbac.HasCapability(actor, rbac.CapModerateContent) {
		return Reply{}, fmt.Errorf("%w: thread is locked", httpx.ErrForbidden)
	}
	reply.Content = input.Content
	reply.ContentHTML = s.renderer.Render(input.Content)
	return s.repo.UpdateReply(ctx, reply)
}

// DeleteReply removes a reply with its nested replies.
func (s *Service) DeleteReply(ctx context.Context, actor *rbac.Actor, id string) error {
	if actor == nil {
		return httpx.ErrUnauthorized
	}
	reply, err := s.repo.GetReply(ctx, id)
	if err != nil {
		return err
	}
	if !rbac.CanDeleteContent(actor, reply.AuthorID) {
		return fmt.Errorf("%w: cannot delete this reply", httpx.ErrForbidden)
	}
	// Owners may only remove their own subtree; answers from other members
	// need a moderator.
	if !rbac.CanDeleteContent(actor, "") {
		foreign, err := s.repo.CountForeignReplies(ctx, id, reply.AuthorID)
		if err != nil {
			return err
		}
		if foreign > 0 {
			return fmt.Errorf("%w: reply has answers from other members", httpx.ErrForbidden)
		}
	}
	return s.repo.DeleteReply(ctx, id)
}

// LikeResult reports the like state after a toggle.
type LikeResult struct {
	Liked     bool `json:"liked"`
	LikeCount int  `json:"like_count"`
}

// ToggleLike likes or unlikes a thread or reply.
func (s *Service) ToggleLike(ctx context.Context, actor *rbac.Actor, target LikeTarget, id string) (LikeResult, error) {
	if err := requireCreate(actor); err != nil {
		return LikeResult{}, err
	}
	var ownerID string
	switch target {
	case LikeThread:
		t, err := s.repo.GetThread(ctx, id)
		if err != nil {
			return LikeResult{}, err
		}
		ownerID = t.AuthorID
	case LikeReply:
		r, err := s.repo.GetReply(ctx, id)
		if err != nil {
			return LikeResult{}, err
		}
		ownerID = r.AuthorID
	default:
		return LikeResult{}, fmt.Errorf("%w: unknown like target %q", httpx.ErrValidation, target)
	}
	liked, count, err := s.repo.ToggleLike(ctx, target, id, actor.ID)
	if err != nil {
		return LikeResult{}, err
	}
	if liked && ownerID != actor.ID {
		if err := s.notifier.ContentLiked(ctx, ownerID, actor.ID, target, id); err != nil {
			s.logger.Warn("notify like", slog.String("target_id", id), slog.Any("error", err))
		}
	}
	return LikeResult{Liked: liked, LikeCount: count}, nil
}

// Stats returns forum totals for the dashboard.
func (s *Service) Stats(ctx context.Context) (threads, replies int, err error) {
	if threads, err = s.repo.CountThreads(ctx); err != nil {
		return 0, 0, err
	}
	replies, err = s.repo.CountReplies(ctx)
	return threads, replies, err
}

func requireCreate(actor *rbac.Actor) error {
	if actor == nil {
		return httpx.ErrUnauthorized
	}
	if !rbac.HasCapability(actor, rbac.CapCreateContent) {
		return fmt.Errorf("%w: posting requires create_content", httpx.ErrForbidden)
	}
	return nil
}

func normalizeLanguage(tag string) (string, error) {
	if strings.TrimSpace(tag) == "" {
		return DefaultLanguage, nil
	}
	langs, err := users.NormalizeLanguages([]string{tag})
	if err != nil {
		return "", err
	}
	return langs[0], nil
}

func normalizeTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	seen := make(map[string]struct{}, len(tags))
	for _, tag := range tags {
		tag = strings.ToLower(strings.TrimSpace(tag))
		if tag == "" {
			continue
		}
		if _, dup := seen[tag]; dup {
			continue
		}
		seen[tag] = struct{}{}
		out = append(out, tag)
	}
	return out
}
