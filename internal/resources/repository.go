package resources

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

// RepositoryPort defines data access methods for resources.
type RepositoryPort interface {
	List(ctx context.Context, filter ListFilter) ([]Resource, int, error)
	Get(ctx context.Context, id string) (Resource, error)
	Create(ctx context.Context, r Resource) (Resource, error)
	Update(ctx context.Context, r Resource) (Resource, error)
	Delete(ctx context.Context, id string) error
	Approve(ctx context.Context, id, approverID string) (Resource, error)
	IncrementViews(ctx context.Context, id string) error
	IncrementDownloads(ctx context.Context, id string) (int, error)
	CountPending(ctx context.Context) (int, error)
	Count(ctx context.Context) (int, error)
}

// Repository provides PostgreSQL backed persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const resourceColumns = `r.id, r.title, r.description, r.type, r.url, r.file_url, r.language, r.author_id, COALESCE(u.display_name, ''),
r.category, r.tags, r.view_count, r.download_count, r.is_approved, r.approved_by, r.created_at, r.updated_at`

const resourceFrom = ` FROM resources r LEFT JOIN users u ON u.id = r.author_id`

func scanResource(row pgx.Row) (Resource, error) {
	var (
		res  Resource
		kind string
	)
	err := row.Scan(&res.ID, &res.Title, &res.Description, &kind, &res.URL, &res.FileURL, &res.Language, &res.AuthorID, &res.AuthorName,
		&res.Category, &res.Tags, &res.ViewCount, &res.DownloadCount, &res.IsApproved, &res.ApprovedBy, &res.CreatedAt, &res.UpdatedAt)
	res.Type = Type(kind)
	if res.Tags == nil {
		res.Tags = []string{}
	}
	return res, err
}

func notFound(err error, id string) error {
	if db.IsNoRows(err) {
		return fmt.Errorf("%w: resource %s", httpx.ErrNotFound, id)
	}
	return err
}

// List returns resources newest first.
func (r *Repository) List(ctx context.Context, filter ListFilter) ([]Resource, int, error) {
	where := []string{"TRUE"}
	args := []any{}
	add := func(cond string, v any) {
		args = append(args, v)
		where = append(where, strings.ReplaceAll(cond, "?", "$"+strconv.Itoa(len(args))))
	}
	switch {
	case filter.PendingOnly:
		where = append(where, "NOT r.is_approved")
	case filter.IncludeUnapproved:
	case filter.ViewerID != "":
		add("(r.is_approved OR r.author_id = ?)", filter.ViewerID)
	default:
		where = append(where, "r.is_approved")
	}
	if filter.Type != "" {
		add("r.type = ?", string(filter.Type))
	}
	if filter.Language != "" {
		add("r.language = ?", filter.Language)
	}
	if filter.Category != "" {
		add("r.category = ?", filter.Category)
	}
	if filter.Search != "" {
		add("(r.title ILIKE ? OR r.description ILIKE ?)", "%"+filter.Search+"%")
	}
	clause := strings.Join(where, " AND ")

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM resources r WHERE `+clause, args...).Scan(&total); err != nil {
		return nil, 0, err
	}
	args = append(args, filter.Limit, filter.Offset)
	rows, err := r.pool.Query(ctx, `SELECT `+resourceColumns+resourceFrom+` WHERE `+clause+
		` ORDER BY r.created_at DESC, r.id LIMIT $`+strconv.Itoa(len(args)-1)+` OFFSET $`+strconv.Itoa(len(args)), args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var out []Resource
	for rows.Next() {
		res, err := scanResource(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, res)
	}
	return out, total, rows.Err()
}

// Get returns one resource.
func (r *Repository) Get(ctx context.Context, id string) (Resource, error) {
	res, err := scanResource(r.pool.QueryRow(ctx, `SELECT `+resourceColumns+resourceFrom+` WHERE r.id = $1`, id))
	return res, notFound(err, id)
}

// Create inserts res.
func (r *Repository) Create(ctx context.Context, res Resource) (Resource, error) {
	_, err := r.pool.Exec(ctx, `INSERT INTO resources (id, title, description, type, url, file_url, language, author_id, category, tags, is_approved, approved_by)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		res.ID, res.Title, res.Description, string(res.Type), res.URL, res.FileURL, res.Language, res.AuthorID, res.Category, res.Tags, res.IsApproved, res.ApprovedBy)
	if err != nil {
		return Resource{}, err
	}
	return r.Get(ctx, res.ID)
}

// Update stores the editable fields of res.
func (r *Repository) Update(ctx context.Context, res Resource) (Resource, error) {
	tag, err := r.pool.Exec(ctx, `UPDATE resources SET title = $2, description = $3, url = $4, file_url = $5, category = $6, tags = $7,
    is_approved = $8, approved_by = $9, updated_at = NOW()
WHERE id = $1`, res.ID, res.Title, res.Description, res.URL, res.FileURL, res.Category, res.Tags, res.IsApproved, res.ApprovedBy)
	if err != nil {
		return Resource{}, err
	}
	if tag.RowsAffected() == 0 {
		return Resource{}, fmt.Errorf("%w: resource %s", httpx.ErrNotFound, res.ID)
	}
	return r.Get(ctx, res.ID)
}

// Delete removes a resource.
func (r *Repository) Delete(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM resources WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: resource %s", httpx.ErrNotFound, id)
	}
	return nil
}

// Approve publishes a resource.
func (r *Repository) Approve(ctx context.Context, id, approverID string) (Resource, error) {
	tag, err := r.pool.Exec(ctx, `UPDATE resources SET is_approved = TRUE, approved_by = $2, updated_at = NOW() WHERE id = $1`, id, approverID)
	if err != nil {
		return Resource{}, err
	}
	if tag.RowsAffected() == 0 {
		return Resource{}, fmt.Errorf("%w: resource %s", httpx.ErrNotFound, id)
	}
	return r.Get(ctx, id)
}

// IncrementViews bumps the view counter.
func (r *Repository) IncrementViews(ctx context.Context, id string) error {
	_, err := r.pool.Exec(ctx, `UPDATE resources SET view_count = view_count + 1 WHERE id = $1`, id)
	return err
}

// IncrementDownloads bumps the download counter and returns the new value.
func (r *Repository) IncrementDownloads(ctx context.Context, id string) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx, `UPDATE resources SET download_count = download_count + 1 WHERE id = $1 RETURNING download_count`, id).Scan(&n)
	return n, notFound(err, id)
}

// CountPending returns the approval backlog.
func (r *Repository) CountPending(ctx context.Context) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM resources WHERE NOT is_approved`).Scan(&n)
	return n, err
}

// Count returns the number of resources.
func (r *Repository) Count(ctx context.Context) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM resources`).Scan(&n)
	return n, err
}
