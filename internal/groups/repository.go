package groups

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sizang-hub/sizang-hub/internal/platform/db"
	"github.com/sizang-hub/sizang-hub/internal/platform/httpx"
)

// RepositoryPort defines data access methods for groups.
type RepositoryPort interface {
	List(ctx context.Context, filter ListFilter) ([]Group, int, error)
	Get(ctx context.Context, idOrSlug string) (Group, error)
	Create(ctx context.Context, g Group) (Group, error)
	Update(ctx context.Context, g Group) (Group, error)
	Delete(ctx context.Context, id string) error
	Count(ctx context.Context) (int, error)

	GetMembership(ctx context.Context, groupID, userID string) (Membership, error)
	AddMember(ctx context.Context, m Membership) (Membership, error)
	SetMemberStatus(ctx context.Context, groupID, userID string, status MemberStatus) (Membership, error)
	RemoveMember(ctx context.Context, groupID, userID string) error
	ListMembers(ctx context.Context, groupID string, status MemberStatus, limit, offset int) ([]Membership, int, error)
	ActiveMemberIDs(ctx context.Context, groupID string) ([]string, error)

	ListPosts(ctx context.Context, groupID string, limit, offset int) ([]Post, int, error)
	GetPost(ctx context.Context, id string) (Post, error)
	CreatePost(ctx context.Context, p Post) (Post, error)
	DeletePost(ctx context.Context, id string) error
	ListComments(ctx context.Context, postID string, limit, offset int) ([]Comment, int, error)
	CreateComment(ctx context.Context, c Comment) (Comment, error)
}

// Repository provides PostgreSQL backed persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const groupColumns = `id, name, description, slug, privacy, creator_id, rules, cover_image, category, language, tags, member_count, created_at, updated_at`

func scanGroup(row pgx.Row) (Group, error) {
	var (
		g       Group
		privacy string
	)
	err := row.Scan(&g.ID, &g.Name, &g.Description, &g.Slug, &privacy, &g.CreatorID, &g.Rules, &g.CoverImage,
		&g.Category, &g.Language, &g.Tags, &g.MemberCount, &g.CreatedAt, &g.UpdatedAt)
	g.Privacy = Privacy(privacy)
	if g.Tags == nil {
		g.Tags = []string{}
	}
	return g, err
}

func scanMembership(row pgx.Row) (Membership, error) {
	var (
		m            Membership
		role, status string
	)
	err := row.Scan(&m.GroupID, &m.UserID, &m.DisplayName, &role, &status, &m.JoinedAt)
	m.Role = MemberRole(role)
	m.Status = MemberStatus(status)
	return m, err
}

const membershipSelect = `SELECT gm.group_id, gm.user_id, COALESCE(u.display_name, ''), gm.role, gm.status, gm.joined_at
FROM group_memberships gm LEFT JOIN users u ON u.id = gm.user_id`

// List returns groups ordered by size.
func (r *Repository) List(ctx context.Context, filter ListFilter) ([]Group, int, error) {
	where := []string{"TRUE"}
	args := []any{}
	add := func(cond string, v any) {
		args = append(args, v)
		where = append(where, strings.ReplaceAll(cond, "?", "$"+strconv.Itoa(len(args))))
	}
	if !filter.IncludeSecret {
		if filter.MemberID != "" {
			add("(privacy <> 'secret' OR id IN (SELECT group_id FROM group_memberships WHERE user_id = ? AND status = 'active'))", filter.MemberID)
		} else {
			where = append(where, "privacy <> 'secret'")
		}
	}
	if filter.Language != "" {
		add("language = ?", filter.Language)
	}
	if filter.Search != "" {
		add("(name ILIKE ? OR description ILIKE ?)", "%"+filter.Search+"%")
	}
	clause := strings.Join(where, " AND ")

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM groups WHERE `+clause, args...).Scan(&total); err != nil {
		return nil, 0, err
	}
	args = append(args, filter.Limit, filter.Offset)
	rows, err := r.pool.Query(ctx, `SELECT `+groupColumns+` FROM groups WHERE `+clause+
		` ORDER BY member_count DESC, created_at DESC LIMIT $`+strconv.Itoa(len(args)-1)+` OFFSET $`+strconv.Itoa(len(args)), args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var out []Group
	for rows.Next() {
		g, err := scanGroup(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, g)
	}
	return out, total, rows.Err()
}

// Get returns a group by id or slug.
func (r *Repository) Get(ctx context.Context, idOrSlug string) (Group, error) {
	g, err := scanGroup(r.pool.QueryRow(ctx, `SELECT `+groupColumns+` FROM groups WHERE id = $1 OR slug = $1`, idOrSlug))
	if db.IsNoRows(err) {
		return Group{}, fmt.Errorf("%w: group %s", httpx.ErrNotFound, idOrSlug)
	}
	return g, err
}

// Create inserts g and makes its creator the first admin member.
func (r *Repository) Create(ctx context.Context, g Group) (Group, error) {
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `INSERT INTO groups (id, name, description, slug, privacy, creator_id, rules, cover_image, category, language, tags, member_count)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, 1)`,
			g.ID, g.Name, g.Description, g.Slug, string(g.Privacy), g.CreatorID, g.Rules, g.CoverImage, g.Category, g.Language, g.Tags); err != nil {
			return err
		}
		_, err := tx.Exec(ctx, `INSERT INTO group_memberships (group_id, user_id, role, status) VALUES ($1, $2, 'admin', 'active')`, g.ID, g.CreatorID)
		return err
	})
	if db.IsUniqueViolation(err) {
		return Group{}, fmt.Errorf("%w: group slug %s is taken", httpx.ErrDuplicate, g.Slug)
	}
	if err != nil {
		return Group{}, err
	}
	return r.Get(ctx, g.ID)
}

// Update stores the editable fields of g.
func (r *Repository) Update(ctx context.Context, g Group) (Group, error) {
	updated, err := scanGroup(r.pool.QueryRow(ctx, `UPDATE groups SET name = $2, description = $3, privacy = $4, rules = $5,
    cover_image = $6, category = $7, tags = $8, updated_at = NOW()
WHERE id = $1 RETURNING `+groupColumns, g.ID, g.Name, g.Description, string(g.Privacy), g.Rules, g.CoverImage, g.Category, g.Tags))
	if db.IsNoRows(err) {
		return Group{}, fmt.Errorf("%w: group %s", httpx.ErrNotFound, g.ID)
	}
	return updated, err
}

// Delete removes a group and its memberships.
func (r *Repository) Delete(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM groups WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: group %s", httpx.ErrNotFound, id)
	}
	return nil
}

// Count returns the number of groups.
func (r *Repository) Count(ctx context.Context) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM groups`).Scan(&n)
	return n, err
}

// GetMembership returns the membership of userID in groupID.
func (r *Repository) GetMembership(ctx context.Context, groupID, userID string) (Membership, error) {
	m, err := scanMembership(r.pool.QueryRow(ctx, membershipSelect+` WHERE gm.group_id = $1 AND gm.user_id = $2`, groupID, userID))
	if db.IsNoRows(err) {
		return Membership{}, fmt.Errorf("%w: membership", httpx.ErrNotFound)
	}
	return m, err
}

// AddMember inserts m, counting it when active.
func (r *Repository) AddMember(ctx context.Context, m Membership) (Membership, error) {
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `INSERT INTO group_memberships (group_id, user_id, role, status) VALUES ($1, $2, $3, $4)`,
			m.GroupID, m.UserID, string(m.Role), string(m.Status)); err != nil {
			return err
		}
		if m.Status != StatusActive {
			return nil
		}
		_, err := tx.Exec(ctx, `UPDATE groups SET member_count = member_count + 1 WHERE id = $1`, m.GroupID)
		return err
	})
	if db.IsUniqueViolation(err) {
		return Membership{}, fmt.Errorf("%w: already a member", httpx.ErrDuplicate)
	}
	if err != nil {
		return Membership{}, err
	}
	return r.GetMembership(ctx, m.GroupID, m.UserID)
}

// SetMemberStatus moves a membership to status and keeps the count in step.
func (r *Repository) SetMemberStatus(ctx context.Context, groupID, userID string, status MemberStatus) (Membership, error) {
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		var prev string
		err := tx.QueryRow(ctx, `SELECT status FROM group_memberships WHERE group_id = $1 AND user_id = $2 FOR UPDATE`, groupID, userID).Scan(&prev)
		if db.IsNoRows(err) {
			return fmt.Errorf("%w: membership", httpx.ErrNotFound)
		}
		if err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, `UPDATE group_memberships SET status = $3 WHERE group_id = $1 AND user_id = $2`, groupID, userID, string(status)); err != nil {
			return err
		}
		delta := 0
		switch {
		case prev != string(StatusActive) && status == StatusActive:
			delta = 1
		case prev == string(StatusActive) && status != StatusActive:
			delta = -1
		}
		if delta == 0 {
			return nil
		}
		_, err = tx.Exec(ctx, `UPDATE groups SET member_count = GREATEST(member_count + $2, 0) WHERE id = $1`, groupID, delta)
		return err
	})
	if err != nil {
		return Membership{}, err
	}
	return r.GetMembership(ctx, groupID, userID)
}

// RemoveMember deletes a membership.
func (r *Repository) RemoveMember(ctx context.Context, groupID, userID string) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		var status string
		err := tx.QueryRow(ctx, `DELETE FROM group_memberships WHERE group_id = $1 AND user_id = $2 RETURNING status`, groupID, userID).Scan(&status)
		if db.IsNoRows(err) {
			return fmt.Errorf("%w: membership", httpx.ErrNotFound)
		}
		if err != nil {
			return err
		}
		if status != string(StatusActive) {
			return nil
		}
		_, err = tx.Exec(ctx, `UPDATE groups SET member_count = GREATEST(member_count - 1, 0) WHERE id = $1`, groupID)
		return err
	})
}

// ListMembers returns memberships with the given status, admins first.
func (r *Repository) ListMembers(ctx context.Context, groupID string, status MemberStatus, limit, offset int) ([]Membership, int, error) {
	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM group_memberships WHERE group_id = $1 AND status = $2`, groupID, string(status)).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.pool.Query(ctx, membershipSelect+` WHERE gm.group_id = $1 AND gm.status = $2
ORDER BY CASE gm.role WHEN 'admin' THEN 0 WHEN 'moderator' THEN 1 ELSE 2 END, gm.joined_at LIMIT $3 OFFSET $4`,
		groupID, string(status), limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var out []Membership
	for rows.Next() {
		m, err := scanMembership(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, m)
	}
	return out, total, rows.Err()
}

// ActiveMemberIDs returns the ids of every active member of a group.
func (r *Repository) ActiveMemberIDs(ctx context.Context, groupID string) ([]string, error) {
	rows, err := r.pool.Query(ctx, `SELECT user_id FROM group_memberships WHERE group_id = $1 AND status = 'active' ORDER BY joined_at`, groupID)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowTo[string])
}

const postSelect = `SELECT p.id, p.group_id, p.title, p.content, p.author_id, COALESCE(u.display_name, ''), p.attachment_url,
p.language, p.comment_count, p.created_at, p.updated_at
FROM group_posts p LEFT JOIN users u ON u.id = p.author_id`

func scanPost(row pgx.Row) (Post, error) {
	var p Post
	err := row.Scan(&p.ID, &p.GroupID, &p.Title, &p.Content, &p.AuthorID, &p.AuthorName, &p.AttachmentURL,
		&p.Language, &p.CommentCount, &p.CreatedAt, &p.UpdatedAt)
	return p, err
}

// ListPosts returns a group's posts, newest first.
func (r *Repository) ListPosts(ctx context.Context, groupID string, limit, offset int) ([]Post, int, error) {
	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM group_posts WHERE group_id = $1`, groupID).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.pool.Query(ctx, postSelect+` WHERE p.group_id = $1 ORDER BY p.created_at DESC LIMIT $2 OFFSET $3`, groupID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var out []Post
	for rows.Next() {
		p, err := scanPost(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, p)
	}
	return out, total, rows.Err()
}

// GetPost returns one post.
func (r *Repository) GetPost(ctx context.Context, id string) (Post, error) {
	p, err := scanPost(r.pool.QueryRow(ctx, postSelect+` WHERE p.id = $1`, id))
	if db.IsNoRows(err) {
		return Post{}, fmt.Errorf("%w: post %s", httpx.ErrNotFound, id)
	}
	return p, err
}

// CreatePost inserts p.
func (r *Repository) CreatePost(ctx context.Context, p Post) (Post, error) {
	if _, err := r.pool.Exec(ctx, `INSERT INTO group_posts (id, group_id, title, content, author_id, attachment_url, language)
VALUES ($1, $2, $3, $4, $5, $6, $7)`, p.ID, p.GroupID, p.Title, p.Content, p.AuthorID, p.AttachmentURL, p.Language); err != nil {
		return Post{}, err
	}
	return r.GetPost(ctx, p.ID)
}

// DeletePost removes a post and, by cascade, its comments.
func (r *Repository) DeletePost(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM group_posts WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: post %s", httpx.ErrNotFound, id)
	}
	return nil
}

const commentSelect = `SELECT c.id, c.group_id, c.post_id, c.content, c.author_id, COALESCE(u.display_name, ''), c.language, c.created_at
FROM group_comments c LEFT JOIN users u ON u.id = c.author_id`

func scanComment(row pgx.Row) (Comment, error) {
	var c Comment
	err := row.Scan(&c.ID, &c.GroupID, &c.PostID, &c.Content, &c.AuthorID, &c.AuthorName, &c.Language, &c.CreatedAt)
	return c, err
}

// ListComments returns the comments on a post, oldest first.
func (r *Repository) ListComments(ctx context.Context, postID string, limit, offset int) ([]Comment, int, error) {
	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM group_comments WHERE post_id = $1`, postID).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.pool.Query(ctx, commentSelect+` WHERE c.post_id = $1 ORDER BY c.created_at LIMIT $2 OFFSET $3`, postID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var out []Comment
	for rows.Next() {
		c, err := scanComment(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, c)
	}
	return out, total, rows.Err()
}

// CreateComment inserts c and bumps the post's comment count.
func (r *Repository) CreateComment(ctx context.Context, c Comment) (Comment, error) {
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `INSERT INTO group_comments (id, group_id, post_id, content, author_id, language)
VALUES ($1, $2, $3, $4, $5, $6)`, c.ID, c.GroupID, c.PostID, c.Content, c.AuthorID, c.Language); err != nil {
			return err
		}
		_, err := tx.Exec(ctx, `UPDATE group_posts SET comment_count = comment_count + 1, updated_at = NOW() WHERE id = $1`, c.PostID)
		return err
	})
	if err != nil {
		return Comment{}, err
	}
	return scanComment(r.pool.QueryRow(ctx, commentSelect+` WHERE c.id = $1`, c.ID))
}
