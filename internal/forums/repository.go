package forums

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

// RepositoryPort defines data access methods for forums.
type RepositoryPort interface {
	ListCategories(ctx context.Context) ([]Category, error)
	GetCategory(ctx context.Context, id string) (Category, error)
	UpsertCategory(ctx context.Context, c Category) (Category, error)
	DeleteCategory(ctx context.Context, id string) error

	ListThreads(ctx context.Context, filter ThreadFilter) ([]Thread, int, error)
	GetThread(ctx context.Context, id string) (Thread, error)
	IncrementViews(ctx context.Context, id string) error
	CreateThread(ctx context.Context, t Thread) (Thread, error)
	UpdateThread(ctx context.Context, t Thread) (Thread, error)
	SetThreadState(ctx context.Context, id string, pinned, locked *bool) (Thread, error)
	DeleteThread(ctx context.Context, id string) error

	ListReplies(ctx context.Context, threadID string, limit, offset int) ([]Reply, int, error)
	GetReply(ctx context.Context, id string) (Reply, error)
	CreateReply(ctx context.Context, r Reply) (Reply, error)
	UpdateReply(ctx context.Context, r Reply) (Reply, error)
	DeleteReply(ctx context.Context, id string) error
	CountForeignReplies(ctx context.Context, id, authorID string) (int, error)

	ToggleLike(ctx context.Context, target LikeTarget, targetID, userID string) (bool, int, error)
	CountThreads(ctx context.Context) (int, error)
	CountReplies(ctx context.Context) (int, error)
}

// Repository provides PostgreSQL backed persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const threadColumns = `t.id, t.title, t.content, t.content_html, t.category_id, t.author_id, COALESCE(u.display_name, ''),
t.language, t.tags, t.is_pinned, t.is_locked, t.view_count, t.like_count, t.reply_count, t.created_at, t.updated_at, t.last_reply_at`

const threadFrom = ` FROM forum_threads t LEFT JOIN users u ON u.id = t.author_id`

const replyColumns = `r.id, r.thread_id, r.parent_id, r.content, r.content_html, r.author_id, COALESCE(u.display_name, ''),
r.language, r.is_edited, r.like_count, r.created_at, r.updated_at`

const replyFrom = ` FROM forum_replies r LEFT JOIN users u ON u.id = r.author_id`

func scanThread(row pgx.Row) (Thread, error) {
	var t Thread
	err := row.Scan(&t.ID, &t.Title, &t.Content, &t.ContentHTML, &t.CategoryID, &t.AuthorID, &t.AuthorName,
		&t.Language, &t.Tags, &t.IsPinned, &t.IsLocked, &t.ViewCount, &t.LikeCount, &t.ReplyCount, &t.CreatedAt, &t.UpdatedAt, &t.LastReplyAt)
	if t.Tags == nil {
		t.Tags = []string{}
	}
	return t, err
}

func scanReply(row pgx.Row) (Reply, error) {
	var r Reply
	err := row.Scan(&r.ID, &r.ThreadID, &r.ParentID, &r.Content, &r.ContentHTML, &r.AuthorID, &r.AuthorName,
		&r.Language, &r.IsEdited, &r.LikeCount, &r.CreatedAt, &r.UpdatedAt)
	return r, err
}

func notFound(err error, kind, id string) error {
	if db.IsNoRows(err) {
		return fmt.Errorf("%w: %s %s", httpx.ErrNotFound, kind, id)
	}
	return err
}

// ListCategories returns active categories with their thread counts.
func (r *Repository) ListCategories(ctx context.Context) ([]Category, error) {
	rows, err := r.pool.Query(ctx, `SELECT c.id, c.name, c.description, c.slug, c.sort_order, c.parent_id, c.is_active, c.created_at,
    (SELECT COUNT(*) FROM forum_threads t WHERE t.category_id = c.id)
FROM forum_categories c WHERE c.is_active ORDER BY c.sort_order, c.name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Category
	for rows.Next() {
		var c Category
		if err := rows.Scan(&c.ID, &c.Name, &c.Description, &c.Slug, &c.SortOrder, &c.ParentID, &c.IsActive, &c.CreatedAt, &c.ThreadCount); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// GetCategory returns a category by id or slug.
func (r *Repository) GetCategory(ctx context.Context, id string) (Category, error) {
	var c Category
	err := r.pool.QueryRow(ctx, `SELECT id, name, description, slug, sort_order, parent_id, is_active, created_at
FROM forum_categories WHERE id = $1 OR slug = $1`, id).
		Scan(&c.ID, &c.Name, &c.Description, &c.Slug, &c.SortOrder, &c.ParentID, &c.IsActive, &c.CreatedAt)
	return c, notFound(err, "category", id)
}

// UpsertCategory inserts c or updates the category sharing its slug.
func (r *Repository) UpsertCategory(ctx context.Context, c Category) (Category, error) {
	err := r.pool.QueryRow(ctx, `INSERT INTO forum_categories (id, name, description, slug, sort_order, parent_id, is_active)
VALUES ($1, $2, $3, $4, $5, $6, TRUE)
ON CONFLICT (slug) DO UPDATE SET name = EXCLUDED.name, description = EXCLUDED.description,
    sort_order = EXCLUDED.sort_order, parent_id = EXCLUDED.parent_id, is_active = TRUE, updated_at = NOW()
RETURNING id, is_active, created_at`, c.ID, c.Name, c.Description, c.Slug, c.SortOrder, c.ParentID).
		Scan(&c.ID, &c.IsActive, &c.CreatedAt)
	if db.IsForeignKeyViolation(err) {
		return Category{}, fmt.Errorf("%w: unknown parent category", httpx.ErrValidation)
	}
	return c, err
}

// DeleteCategory deactivates a category. Its threads stay reachable.
func (r *Repository) DeleteCategory(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, `UPDATE forum_categories SET is_active = FALSE, updated_at = NOW() WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: category %s", httpx.ErrNotFound, id)
	}
	return nil
}

// ListThreads returns pinned threads first, then by latest activity.
func (r *Repository) ListThreads(ctx context.Context, filter ThreadFilter) ([]Thread, int, error) {
	where := []string{"TRUE"}
	args := []any{}
	add := func(cond string, v any) {
		args = append(args, v)
		where = append(where, strings.ReplaceAll(cond, "?", "$"+strconv.Itoa(len(args))))
	}
	if filter.CategoryID != "" {
		add("t.category_id = ?", filter.CategoryID)
	}
	if filter.Language != "" {
		add("t.language = ?", filter.Language)
	}
	if filter.AuthorID != "" {
		add("t.author_id = ?", filter.AuthorID)
	}
	if filter.Search != "" {
		add("(t.title ILIKE ? OR t.content ILIKE ?)", "%"+filter.Search+"%")
	}
	clause := strings.Join(where, " AND ")

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM forum_threads t WHERE `+clause, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	args = append(args, filter.Limit, filter.Offset)
	query := `SELECT ` + threadColumns + threadFrom + ` WHERE ` + clause +
		` ORDER BY t.is_pinned DESC, t.last_reply_at DESC, t.id LIMIT $` + strconv.Itoa(len(args)-1) + ` OFFSET $` + strconv.Itoa(len(args))
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var out []Thread
	for rows.Next() {
		t, err := scanThread(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, t)
	}
	return out, total, rows.Err()
}

// GetThread returns one thread.
func (r *Repository) GetThread(ctx context.Context, id string) (Thread, error) {
	t, err := scanThread(r.pool.QueryRow(ctx, `SELECT `+threadColumns+threadFrom+` WHERE t.id = $1`, id))
	return t, notFound(err, "thread", id)
}

// IncrementViews bumps the view counter.
func (r *Repository) IncrementViews(ctx context.Context, id string) error {
	_, err := r.pool.Exec(ctx, `UPDATE forum_threads SET view_count = view_count + 1 WHERE id = $1`, id)
	return err
}

// CreateThread inserts t.
func (r *Repository) CreateThread(ctx context.Context, t Thread) (Thread, error) {
	_, err := r.pool.Exec(ctx, `INSERT INTO forum_threads (id, title, content, content_html, category_id, author_id, language, tags)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`, t.ID, t.Title, t.Content, t.ContentHTML, t.CategoryID, t.AuthorID, t.Language, t.Tags)
	if db.IsForeignKeyViolation(err) {
		return Thread{}, fmt.Errorf("%w: unknown category", httpx.ErrValidation)
	}
	if err != nil {
		return Thread{}, err
	}
	return r.GetThread(ctx, t.ID)
}

// UpdateThread stores the editable fields of t.
func (r *Repository) UpdateThread(ctx context.Context, t Thread) (Thread, error) {
	tag, err := r.pool.Exec(ctx, `UPDATE forum_threads SET title = $2, content = $3, content_html = $4, category_id = $5, tags = $6, updated_at = NOW()
WHERE id = $1`, t.ID, t.Title, t.Content, t.ContentHTML, t.CategoryID, t.Tags)
	if db.IsForeignKeyViolation(err) {
		return Thread{}, fmt.Errorf("%w: unknown category", httpx.ErrValidation)
	}
	if err != nil {
		return Thread{}, err
	}
	if tag.RowsAffected() == 0 {
		return Thread{}, fmt.Errorf("%w: thread %s", httpx.ErrNotFound, t.ID)
	}
	return r.GetThread(ctx, t.ID)
}

// SetThreadState applies the non-nil moderation flags.
func (r *Repository) SetThreadState(ctx context.Context, id string, pinned, locked *bool) (Thread, error) {
	tag, err := r.pool.Exec(ctx, `UPDATE forum_threads SET is_pinned = COALESCE($2, is_pinned), is_locked = COALESCE($3, is_locked), updated_at = NOW()
WHERE id = $1`, id, pinned, locked)
	if err != nil {
		return Thread{}, err
	}
	if tag.RowsAffected() == 0 {
		return Thread{}, fmt.Errorf("%w: thread %s", httpx.ErrNotFound, id)
	}
	return r.GetThread(ctx, id)
}

// DeleteThread removes a thread with its replies and likes.
func (r *Repository) DeleteThread(ctx context.Context, id string) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM content_likes WHERE (target_type = 'thread' AND target_id = $1)
    OR (target_type = 'reply' AND target_id IN (SELECT id FROM forum_replies WHERE thread_id = $1))`, id); err != nil {
			return err
		}
		tag, err := tx.Exec(ctx, `DELETE FROM forum_threads WHERE id = $1`, id)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return fmt.Errorf("%w: thread %s", httpx.ErrNotFound, id)
		}
		return nil
	})
}

// ListReplies returns replies oldest first.
func (r *Repository) ListReplies(ctx context.Context, threadID string, limit, offset int) ([]Reply, int, error) {
	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM forum_replies WHERE thread_id = $1`, threadID).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.pool.Query(ctx, `SELECT `+replyColumns+replyFrom+` WHERE r.thread_id = $1 ORDER BY r.created_at, r.id LIMIT $2 OFFSET $3`, threadID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var out []Reply
	for rows.Next() {
		reply, err := scanReply(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, reply)
	}
	return out, total, rows.Err()
}

// GetReply returns one reply.
func (r *Repository) GetReply(ctx context.Context, id string) (Reply, error) {
	reply, err := scanReply(r.pool.QueryRow(ctx, `SELECT `+replyColumns+replyFrom+` WHERE r.id = $1`, id))
	return reply, notFound(err, "reply", id)
}

// CreateReply inserts reply and updates the thread's counters.
func (r *Repository) CreateReply(ctx context.Context, reply Reply) (Reply, error) {
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `INSERT INTO forum_replies (id, thread_id, parent_id, content, content_html, author_id, language)
VALUES ($1, $2, $3, $4, $5, $6, $7)`, reply.ID, reply.ThreadID, reply.ParentID, reply.Content, reply.ContentHTML, reply.AuthorID, reply.Language); err != nil {
			return err
		}
		_, err := tx.Exec(ctx, `UPDATE forum_threads SET reply_count = reply_count + 1, last_reply_at = NOW() WHERE id = $1`, reply.ThreadID)
		return err
	})
	if db.IsForeignKeyViolation(err) {
		return Reply{}, fmt.Errorf("%w: unknown thread or parent reply", httpx.ErrValidation)
	}
	if err != nil {
		return Reply{}, err
	}
	return r.GetReply(ctx, reply.ID)
}

// UpdateReply stores new content and marks the reply edited.
func (r *Repository) UpdateReply(ctx context.Context, reply Reply) (Reply, error) {
	tag, err := r.pool.Exec(ctx, `UPDATE forum_replies SET content = $2, content_html = $3, is_edited = TRUE, updated_at = NOW() WHERE id = $1`,
		reply.ID, reply.Content, reply.ContentHTML)
	if err != nil {
		return Reply{}, err
	}
	if tag.RowsAffected() == 0 {
		return Reply{}, fmt.Errorf("%w: reply %s", httpx.ErrNotFound, reply.ID)
	}
	return r.GetReply(ctx, reply.ID)
}

// DeleteReply removes a reply and its nested replies.
func (r *Repository) DeleteReply(ctx context.Context, id string) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		var threadID string
		if err := tx.QueryRow(ctx, `SELECT thread_id FROM forum_replies WHERE id = $1`, id).Scan(&threadID); err != nil {
			return notFound(err, "reply", id)
		}
		tag, err := tx.Exec(ctx, `WITH RECURSIVE tree AS (
    SELECT id FROM forum_replies WHERE id = $1
    UNION ALL
    SELECT c.id FROM forum_replies c JOIN tree ON c.parent_id = tree.id
)
DELETE FROM forum_replies WHERE id IN (SELECT id FROM tree)`, id)
		if err != nil {
			return err
		}
		_, err = tx.Exec(ctx, `UPDATE forum_threads SET reply_count = GREATEST(reply_count - $2, 0) WHERE id = $1`, threadID, tag.RowsAffected())
		return err
	})
}

// CountForeignReplies counts the replies nested under id written by someone
// other than authorID.
func (r *Repository) CountForeignReplies(ctx context.Context, id, authorID string) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx, `WITH RECURSIVE tree AS (
    SELECT id, author_id FROM forum_replies WHERE parent_id = $1
    UNION ALL
    SELECT c.id, c.author_id FROM forum_replies c JOIN tree ON c.parent_id = tree.id
)
SELECT COUNT(*) FROM tree WHERE author_id <> $2`, id, authorID).Scan(&n)
	return n, err
}

// ToggleLike likes the target, or removes an existing like. It reports the
// resulting state and like count.
func (r *Repository) ToggleLike(ctx context.Context, target LikeTarget, targetID, userID string) (bool, int, error) {
	table := "forum_threads"
	if target == LikeReply {
		table = "forum_replies"
	}
	var (
		liked bool
		count int
	)
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `INSERT INTO content_likes (target_type, target_id, user_id) VALUES ($1, $2, $3) ON CONFLICT DO NOTHING`,
			string(target), targetID, userID)
		if err != nil {
			return err
		}
		delta := 1
		liked = tag.RowsAffected() == 1
		if !liked {
			if _, err := tx.Exec(ctx, `DELETE FROM content_likes WHERE target_type = $1 AND target_id = $2 AND user_id = $3`,
				string(target), targetID, userID); err != nil {
				return err
			}
			delta = -1
		}
		err = tx.QueryRow(ctx, `UPDATE `+table+` SET like_count = GREATEST(like_count + $2, 0) WHERE id = $1 RETURNING like_count`, targetID, delta).Scan(&count)
		return notFound(err, string(target), targetID)
	})
	return liked, count, err
}

// CountThreads returns the number of threads.
func (r *Repository) CountThreads(ctx context.Context) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM forum_threads`).Scan(&n)
	return n, err
}

// CountReplies returns the number of replies.
func (r *Repository) CountReplies(ctx context.Context) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM forum_replies`).Scan(&n)
	return n, err
}
