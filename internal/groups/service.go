package groups

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/sizang-hub/sizang-hub/internal/ids"
	"github.com/sizang-hub/sizang-hub/internal/platform/httpx"
	"github.com/sizang-hub/sizang-hub/internal/rbac"
	"github.com/sizang-hub/sizang-hub/internal/users"
)

// Directory finds the members a group manager invites.
type Directory interface {
	Get(ctx context.Context, id string) (users.User, error)
	GetByEmail(ctx context.Context, email string) (users.User, error)
}

// Service handles group business logic.
type Service struct {
	repo      RepositoryPort
	directory Directory
	notifier  Notifier
	logger    *slog.Logger
	validate  *validator.Validate
}

// Option configures Service.
type Option func(*Service)

// WithDirectory enables invitations.
func WithDirectory(d Directory) Option {
	return func(s *Service) { s.directory = d }
}

// WithNotifier routes invitation, post and comment notifications.
func WithNotifier(n Notifier) Option {
	return func(s *Service) { s.notifier = n }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// NewService builds Service instance.
func NewService(repo RepositoryPort, opts ...Option) *Service {
	s := &Service{repo: repo, notifier: nopNotifier{}, logger: slog.Default(), validate: validator.New()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// List returns the groups actor may discover. Secret groups are hidden from
// actors without view_private_content unless they belong to them.
func (s *Service) List(ctx context.Context, actor *rbac.Actor, filter ListFilter) ([]Group, int, error) {
	filter.Search = strings.TrimSpace(filter.Search)
	filter.IncludeSecret = rbac.HasCapability(actor, rbac.CapViewPrivateContent)
	filter.MemberID = ""
	if actor != nil {
		filter.MemberID = actor.ID
	}
	return s.repo.List(ctx, filter)
}

// Get returns a group when actor may see it.
func (s *Service) Get(ctx context.Context, actor *rbac.Actor, idOrSlug string) (Group, error) {
	g, err := s.repo.Get(ctx, idOrSlug)
	if err != nil {
		return Group{}, err
	}
	if err := s.checkVisible(ctx, actor, g); err != nil {
		return Group{}, err
	}
	return g, nil
}

func (s *Service) checkVisible(ctx context.Context, actor *rbac.Actor, g Group) error {
	if g.Privacy == PrivacyPublic || rbac.HasCapability(actor, rbac.CapViewPrivateContent) {
		return nil
	}
	if actor != nil {
		m, err := s.repo.GetMembership(ctx, g.ID, actor.ID)
		if err == nil && (m.Status == StatusActive || m.Status == StatusInvited) {
			return nil
		}
	}
	if g.Privacy == PrivacySecret {
		// Secret groups do not reveal that they exist.
		return fmt.Errorf("%w: group %s", httpx.ErrNotFound, g.ID)
	}
	if actor == nil {
		return httpx.ErrUnauthorized
	}
	return fmt.Errorf("%w: group is private", httpx.ErrForbidden)
}

// Create makes a group with actor as its first admin.
func (s *Service) Create(ctx context.Context, actor *rbac.Actor, input CreateInput) (Group, error) {
	if actor == nil {
		return Group{}, httpx.ErrUnauthorized
	}
	if !rbac.HasCapability(actor, rbac.CapCreateContent) {
		return Group{}, fmt.Errorf("%w: creating groups requires create_content", httpx.ErrForbidden)
	}
	input.Name = strings.TrimSpace(input.Name)
	if err := s.validate.Struct(input); err != nil {
		return Group{}, err
	}
	slug := Slugify(input.Slug)
	if slug == "" {
		slug = Slugify(input.Name)
	}
	if slug == "" {
		return Group{}, fmt.Errorf("%w: name must contain letters or digits", httpx.ErrValidation)
	}
	privacy := input.Privacy
	if privacy == "" {
		privacy = PrivacyPublic
	}
	lang := "ctd"
	if input.Language != "" {
		langs, err := users.NormalizeLanguages([]string{input.Language})
		if err != nil {
			return Group{}, err
		}
		lang = langs[0]
	}
	return s.repo.Create(ctx, Group{
		ID:          ids.New(),
		Name:        input.Name,
		Description: strings.TrimSpace(input.Description),
		Slug:        slug,
		Privacy:     privacy,
		CreatorID:   actor.ID,
		Rules:       input.Rules,
		CoverImage:  input.CoverImage,
		Category:    input.Category,
		Language:    lang,
		Tags:        cleanTags(input.Tags),
	})
}

// canManage reports whether actor may administer g: site-level content
// managers, the creator, and the group's own admins.
func (s *Service) canManage(ctx context.Context, actor *rbac.Actor, g Group) bool {
	if rbac.CanManageContent(actor, g.CreatorID) {
		return true
	}
	if actor == nil {
		return false
	}
	m, err := s.repo.GetMembership(ctx, g.ID, actor.ID)
	return err == nil && m.Status == StatusActive && m.Role == MemberAdmin
}

// Update edits group settings.
func (s *Service) Update(ctx context.Context, actor *rbac.Actor, id string, input UpdateInput) (Group, error) {
	if actor == nil {
		return Group{}, httpx.ErrUnauthorized
	}
	if err := s.validate.Struct(input); err != nil {
		return Group{}, err
	}
	g, err := s.Get(ctx, actor, id)
	if err != nil {
		return Group{}, err
	}
	if !s.canManage(ctx, actor, g) {
		return Group{}, fmt.Errorf("%w: cannot edit this group", httpx.ErrForbidden)
	}
	if input.Name != nil {
		g.Name = strings.TrimSpace(*input.Name)
	}
	if input.Description != nil {
		g.Description = strings.TrimSpace(*input.Description)
	}
	if input.Privacy != nil {
		g.Privacy = *input.Privacy
	}
	if input.Rules != nil {
		g.Rules = *input.Rules
	}
	if input.CoverImage != nil {
		g.CoverImage = *input.CoverImage
	}
	if input.Category != nil {
		g.Category = *input.Category
	}
	if input.Tags != nil {
		g.Tags = cleanTags(input.Tags)
	}
	return s.repo.Update(ctx, g)
}

// Delete removes a group.
func (s *Service) Delete(ctx context.Context, actor *rbac.Actor, id string) error {
	if actor == nil {
		return httpx.ErrUnauthorized
	}
	g, err := s.Get(ctx, actor, id)
	if err != nil {
		return err
	}
	if !rbac.CanDeleteContent(actor, g.CreatorID) {
		return fmt.Errorf("%w: cannot delete this group", httpx.ErrForbidden)
	}
	return s.repo.Delete(ctx, g.ID)
}

// Join adds actor to a group. Public groups admit immediately, private
// groups queue a pending request and secret groups are invitation only.
// Joining with an open invitation accepts it whatever the privacy.
func (s *Service) Join(ctx context.Context, actor *rbac.Actor, id string) (Membership, error) {
	if actor == nil {
		return Membership{}, httpx.ErrUnauthorized
	}
	g, err := s.repo.Get(ctx, id)
	if err != nil {
		return Membership{}, err
	}
	existing, err := s.repo.GetMembership(ctx, g.ID, actor.ID)
	switch {
	case err == nil && existing.Status == StatusBanned:
		return Membership{}, fmt.Errorf("%w: banned from this group", httpx.ErrForbidden)
	case err == nil && existing.Status == StatusInvited:
		return s.repo.SetMemberStatus(ctx, g.ID, actor.ID, StatusActive)
	case err == nil:
		return existing, nil
	case !errors.Is(err, httpx.ErrNotFound):
		return Membership{}, err
	}

	status := StatusActive
	switch g.Privacy {
	case PrivacyPrivate:
		status = StatusPending
	case PrivacySecret:
		return Membership{}, fmt.Errorf("%w: group %s", httpx.ErrNotFound, id)
	}
	return s.repo.AddMember(ctx, Membership{GroupID: g.ID, UserID: actor.ID, Role: MemberRegular, Status: status})
}

// Leave removes actor from a group. The creator cannot leave.
func (s *Service) Leave(ctx context.Context, actor *rbac.Actor, id string) error {
	if actor == nil {
		return httpx.ErrUnauthorized
	}
	g, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	if g.CreatorID == actor.ID {
		return fmt.Errorf("%w: the creator cannot leave the group", httpx.ErrConflict)
	}
	return s.repo.RemoveMember(ctx, g.ID, actor.ID)
}

// Members lists active members, or pending requests for group managers.
func (s *Service) Members(ctx context.Context, actor *rbac.Actor, id string, status MemberStatus, limit, offset int) ([]Membership, int, error) {
	g, err := s.Get(ctx, actor, id)
	if err != nil {
		return nil, 0, err
	}
	if status == "" {
		status = StatusActive
	}
	if status != StatusActive && !s.canManage(ctx, actor, g) {
		return nil, 0, fmt.Errorf("%w: only group managers see %s members", httpx.ErrForbidden, status)
	}
	return s.repo.ListMembers(ctx, g.ID, status, limit, offset)
}

// SetMemberStatus approves, bans or reinstates a member.
func (s *Service) SetMemberStatus(ctx context.Context, actor *rbac.Actor, id, userID string, status MemberStatus) (Membership, error) {
	if actor == nil {
		return Membership{}, httpx.ErrUnauthorized
	}
	switch status {
	case StatusActive, StatusBanned:
	default:
		return Membership{}, fmt.Errorf("%w: unsupported status %q", httpx.ErrValidation, status)
	}
	g, err := s.repo.Get(ctx, id)
	if err != nil {
		return Membership{}, err
	}
	if !s.canManage(ctx, actor, g) && !rbac.HasCapability(actor, rbac.CapModerateContent) {
		return Membership{}, fmt.Errorf("%w: cannot manage members of this group", httpx.ErrForbidden)
	}
	if userID == g.CreatorID {
		return Membership{}, fmt.Errorf("%w: the creator's membership cannot change", httpx.ErrConflict)
	}
	return s.repo.SetMemberStatus(ctx, g.ID, userID, status)
}

// Invite offers membership to another member and notifies them. Only group
// managers and site moderators invite. Inviting someone with a pending join
// request admits them at once.
func (s *Service) Invite(ctx context.Context, actor *rbac.Actor, id string, input InviteInput) (Membership, error) {
	if actor == nil {
		return Membership{}, httpx.ErrUnauthorized
	}
	input.UserID = strings.TrimSpace(input.UserID)
	input.Email = strings.TrimSpace(input.Email)
	if err := s.validate.Struct(input); err != nil {
		return Membership{}, err
	}
	if input.UserID == "" && input.Email == "" {
		return Membership{}, fmt.Errorf("%w: user_id or email is required", httpx.ErrValidation)
	}
	if s.directory == nil {
		return Membership{}, errors.New("groups: invitations need a member directory")
	}
	g, err := s.Get(ctx, actor, id)
	if err != nil {
		return Membership{}, err
	}
	if !s.canManage(ctx, actor, g) && !rbac.HasCapability(actor, rbac.CapModerateContent) {
		return Membership{}, fmt.Errorf("%w: cannot invite to this group", httpx.ErrForbidden)
	}
	var invitee users.User
	if input.UserID != "" {
		invitee, err = s.directory.Get(ctx, input.UserID)
	} else {
		invitee, err = s.directory.GetByEmail(ctx, input.Email)
	}
	if err != nil {
		return Membership{}, err
	}
	if invitee.ID == actor.ID {
		return Membership{}, fmt.Errorf("%w: cannot invite yourself", httpx.ErrValidation)
	}

	existing, err := s.repo.GetMembership(ctx, g.ID, invitee.ID)
	switch {
	case err == nil && existing.Status == StatusActive:
		return Membership{}, fmt.Errorf("%w: already a member", httpx.ErrDuplicate)
	case err == nil && existing.Status == StatusBanned:
		return Membership{}, fmt.Errorf("%w: member is banned from this group", httpx.ErrConflict)
	case err == nil && existing.Status == StatusPending:
		return s.repo.SetMemberStatus(ctx, g.ID, invitee.ID, StatusActive)
	case err == nil:
		return existing, nil
	case !errors.Is(err, httpx.ErrNotFound):
		return Membership{}, err
	}

	m, err := s.repo.AddMember(ctx, Membership{GroupID: g.ID, UserID: invitee.ID, Role: MemberRegular, Status: StatusInvited})
	if err != nil {
		return Membership{}, err
	}
	if err := s.notifier.Invited(ctx, g, actor.DisplayName, invitee.ID); err != nil {
		s.logger.Warn("notify group invite", slog.String("group_id", g.ID), slog.Any("error", err))
	}
	return m, nil
}

func (s *Service) isActiveMember(ctx context.Context, groupID, userID string) bool {
	m, err := s.repo.GetMembership(ctx, groupID, userID)
	return err == nil && m.Status == StatusActive
}

// canContribute reports whether actor may post or comment in g: active
// members and site moderators.
func (s *Service) canContribute(ctx context.Context, actor *rbac.Actor, g Group) error {
	if !rbac.HasCapability(actor, rbac.CapCreateContent) {
		return fmt.Errorf("%w: posting requires create_content", httpx.ErrForbidden)
	}
	if s.isActiveMember(ctx, g.ID, actor.ID) || rbac.HasCapability(actor, rbac.CapModerateContent) {
		return nil
	}
	return fmt.Errorf("%w: only members can post in this group", httpx.ErrForbidden)
}

// ListPosts returns a group's posts, newest first.
func (s *Service) ListPosts(ctx context.Context, actor *rbac.Actor, id string, limit, offset int) ([]Post, int, error) {
	g, err := s.Get(ctx, actor, id)
	if err != nil {
		return nil, 0, err
	}
	return s.repo.ListPosts(ctx, g.ID, limit, offset)
}

// CreatePost publishes a post and notifies the other active members.
func (s *Service) CreatePost(ctx context.Context, actor *rbac.Actor, id string, input PostInput) (Post, error) {
	if actor == nil {
		return Post{}, httpx.ErrUnauthorized
	}
	input.Title = strings.TrimSpace(input.Title)
	if err := s.validate.Struct(input); err != nil {
		return Post{}, err
	}
	g, err := s.Get(ctx, actor, id)
	if err != nil {
		return Post{}, err
	}
	if err := s.canContribute(ctx, actor, g); err != nil {
		return Post{}, err
	}
	lang, err := normalizeLanguage(input.Language)
	if err != nil {
		return Post{}, err
	}
	post, err := s.repo.CreatePost(ctx, Post{
		ID:            ids.New(),
		GroupID:       g.ID,
		Title:         input.Title,
		Content:       input.Content,
		AuthorID:      actor.ID,
		AttachmentURL: input.AttachmentURL,
		Language:      lang,
	})
	if err != nil {
		return Post{}, err
	}
	if post.AuthorName == "" {
		post.AuthorName = actor.DisplayName
	}
	memberIDs, err := s.repo.ActiveMemberIDs(ctx, g.ID)
	if err != nil {
		s.logger.Warn("list group members for notification", slog.String("group_id", g.ID), slog.Any("error", err))
		return post, nil
	}
	recipients := memberIDs[:0]
	for _, uid := range memberIDs {
		if uid != actor.ID {
			recipients = append(recipients, uid)
		}
	}
	if len(recipients) > 0 {
		if err := s.notifier.Posted(ctx, g, post, recipients); err != nil {
			s.logger.Warn("notify group post", slog.String("group_id", g.ID), slog.Any("error", err))
		}
	}
	return post, nil
}

func (s *Service) groupPost(ctx context.Context, g Group, postID string) (Post, error) {
	post, err := s.repo.GetPost(ctx, postID)
	if err != nil {
		return Post{}, err
	}
	if post.GroupID != g.ID {
		return Post{}, fmt.Errorf("%w: post %s", httpx.ErrNotFound, postID)
	}
	return post, nil
}

// DeletePost removes a post with its comments. Authors remove their own
// posts; group managers and moderators remove any.
func (s *Service) DeletePost(ctx context.Context, actor *rbac.Actor, id, postID string) error {
	if actor == nil {
		return httpx.ErrUnauthorized
	}
	g, err := s.Get(ctx, actor, id)
	if err != nil {
		return err
	}
	post, err := s.groupPost(ctx, g, postID)
	if err != nil {
		return err
	}
	if !rbac.CanDeleteContent(actor, post.AuthorID) && !s.canManage(ctx, actor, g) {
		return fmt.Errorf("%w: cannot delete this post", httpx.ErrForbidden)
	}
	return s.repo.DeletePost(ctx, post.ID)
}

// ListComments returns the comments on a post, oldest first.
func (s *Service) ListComments(ctx context.Context, actor *rbac.Actor, id, postID string, limit, offset int) ([]Comment, int, error) {
	g, err := s.Get(ctx, actor, id)
	if err != nil {
		return nil, 0, err
	}
	if _, err := s.groupPost(ctx, g, postID); err != nil {
		return nil, 0, err
	}
	return s.repo.ListComments(ctx, postID, limit, offset)
}

// CreateComment answers a post and notifies its author.
func (s *Service) CreateComment(ctx context.Context, actor *rbac.Actor, id, postID string, input CommentInput) (Comment, error) {
	if actor == nil {
		return Comment{}, httpx.ErrUnauthorized
	}
	if err := s.validate.Struct(input); err != nil {
		return Comment{}, err
	}
	g, err := s.Get(ctx, actor, id)
	if err != nil {
		return Comment{}, err
	}
	if err := s.canContribute(ctx, actor, g); err != nil {
		return Comment{}, err
	}
	post, err := s.groupPost(ctx, g, postID)
	if err != nil {
		return Comment{}, err
	}
	lang, err := normalizeLanguage(input.Language)
	if err != nil {
		return Comment{}, err
	}
	c, err := s.repo.CreateComment(ctx, Comment{
		ID:       ids.New(),
		GroupID:  g.ID,
		PostID:   post.ID,
		Content:  input.Content,
		AuthorID: actor.ID,
		Language: lang,
	})
	if err != nil {
		return Comment{}, err
	}
	if c.AuthorName == "" {
		c.AuthorName = actor.DisplayName
	}
	if post.AuthorID != actor.ID {
		if err := s.notifier.Commented(ctx, g, post, c); err != nil {
			s.logger.Warn("notify group comment", slog.String("post_id", post.ID), slog.Any("error", err))
		}
	}
	return c, nil
}

// Count returns the number of groups.
func (s *Service) Count(ctx context.Context) (int, error) {
	return s.repo.Count(ctx)
}

func normalizeLanguage(raw string) (string, error) {
	if raw == "" {
		return "ctd", nil
	}
	langs, err := users.NormalizeLanguages([]string{raw})
	if err != nil {
		return "", err
	}
	return langs[0], nil
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
