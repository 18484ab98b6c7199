package notifications

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sizang-hub/sizang-hub/internal/platform/db"
	"github.com/sizang-hub/sizang-hub/internal/platform/httpx"
)

// RepositoryPort defines data access methods for notifications.
type RepositoryPort interface {
	Insert(ctx context.Context, items ...Notification) error
	List(ctx context.Context, filter ListFilter) ([]Notification, int, error)
	UnreadCount(ctx context.Context, userID string) (int, error)
	MarkRead(ctx context.Context, userID, id string) error
	MarkAllRead(ctx context.Context, userID string) (int64, error)
	DeleteReadBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// Repository provides PostgreSQL backed persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Insert stores items in one round trip.
func (r *Repository) Insert(ctx context.Context, items ...Notification) error {
	if len(items) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, n := range items {
		batch.Queue(`INSERT INTO notifications (id, user_id, type, content, related_id, related_type)
VALUES ($1, $2, $3, $4, $5, $6)`, n.ID, n.UserID, string(n.Type), n.Content, n.RelatedID, n.RelatedType)
	}
	return r.pool.SendBatch(ctx, batch).Close()
}

// List returns notifications newest first.
func (r *Repository) List(ctx context.Context, filter ListFilter) ([]Notification, int, error) {
	cond := `user_id = $1`
	if filter.UnreadOnly {
		cond += ` AND NOT is_read`
	}
	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM notifications WHERE `+cond, filter.UserID).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.pool.Query(ctx, `SELECT id, user_id, type, content, related_id, related_type, is_read, created_at
FROM notifications WHERE `+cond+` ORDER BY id DESC LIMIT $2 OFFSET $3`, filter.UserID, filter.Limit, filter.Offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var out []Notification
	for rows.Next() {
		var (
			n    Notification
			kind string
		)
		if err := rows.Scan(&n.ID, &n.UserID, &kind, &n.Content, &n.RelatedID, &n.RelatedType, &n.IsRead, &n.CreatedAt); err != nil {
			return nil, 0, err
		}
		n.Type = Type(kind)
		out = append(out, n)
	}
	return out, total, rows.Err()
}

// UnreadCount counts unread notifications.
func (r *Repository) UnreadCount(ctx context.Context, userID string) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM notifications WHERE user_id = $1 AND NOT is_read`, userID).Scan(&n)
	return n, err
}

// MarkRead flags one notification. Notifications of other users look
// missing.
func (r *Repository) MarkRead(ctx context.Context, userID, id string) error {
	var found string
	err := r.pool.QueryRow(ctx, `UPDATE notifications SET is_read = TRUE WHERE id = $1 AND user_id = $2 RETURNING id`, id, userID).Scan(&found)
	if db.IsNoRows(err) {
		return fmt.Errorf("%w: notification %s", httpx.ErrNotFound, id)
	}
	return err
}

// MarkAllRead flags every unread notification of userID.
func (r *Repository) MarkAllRead(ctx context.Context, userID string) (int64, error) {
	tag, err := r.pool.Exec(ctx, `UPDATE notifications SET is_read = TRUE WHERE user_id = $1 AND NOT is_read`, userID)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// DeleteReadBefore drops read notifications older than cutoff.
func (r *Repository) DeleteReadBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM notifications WHERE is_read AND created_at < $1`, cutoff)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
