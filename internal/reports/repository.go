package reports

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

// RepositoryPort defines data access methods for reports.
type RepositoryPort interface {
	List(ctx context.Context, filter ListFilter) ([]Report, int, error)
	Get(ctx context.Context, id string) (Report, error)
	Create(ctx context.Context, r Report) (Report, error)
	Update(ctx context.Context, r Report) (Report, error)
	Delete(ctx context.Context, id string) error
	CountByStatus(ctx context.Context) (map[Status]int, error)
}

// Repository provides PostgreSQL backed persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const reportColumns = `id, type, target_id, reporter_id, reason, status, notes, created_at, updated_at`

func scanReport(row pgx.Row) (Report, error) {
	var (
		r            Report
		kind, status string
	)
	err := row.Scan(&r.ID, &kind, &r.TargetID, &r.ReporterID, &r.Reason, &status, &r.Notes, &r.CreatedAt, &r.UpdatedAt)
	r.Type = TargetType(kind)
	r.Status = Status(status)
	return r, err
}

// List returns reports newest first.
func (r *Repository) List(ctx context.Context, filter ListFilter) ([]Report, int, error) {
	where := []string{"TRUE"}
	args := []any{}
	add := func(cond string, v any) {
		args = append(args, v)
		where = append(where, strings.ReplaceAll(cond, "?", "$"+strconv.Itoa(len(args))))
	}
	if filter.Status != "" {
		add("status = ?", string(filter.Status))
	}
	if filter.Type != "" {
		add("type = ?", string(filter.Type))
	}
	if filter.ReporterID != "" {
		add("reporter_id = ?", filter.ReporterID)
	}
	clause := strings.Join(where, " AND ")

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM reports WHERE `+clause, args...).Scan(&total); err != nil {
		return nil, 0, err
	}
	args = append(args, filter.Limit, filter.Offset)
	rows, err := r.pool.Query(ctx, `SELECT `+reportColumns+` FROM reports WHERE `+clause+
		` ORDER BY created_at DESC, id LIMIT $`+strconv.Itoa(len(args)-1)+` OFFSET $`+strconv.Itoa(len(args)), args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var out []Report
	for rows.Next() {
		rep, err := scanReport(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, rep)
	}
	return out, total, rows.Err()
}

// Get returns one report.
func (r *Repository) Get(ctx context.Context, id string) (Report, error) {
	rep, err := scanReport(r.pool.QueryRow(ctx, `SELECT `+reportColumns+` FROM reports WHERE id = $1`, id))
	if db.IsNoRows(err) {
		return Report{}, fmt.Errorf("%w: report %s", httpx.ErrNotFound, id)
	}
	return rep, err
}

// Create inserts rep.
func (r *Repository) Create(ctx context.Context, rep Report) (Report, error) {
	return scanReport(r.pool.QueryRow(ctx, `INSERT INTO reports (id, type, target_id, reporter_id, reason, status)
VALUES ($1, $2, $3, $4, $5, $6) RETURNING `+reportColumns,
		rep.ID, string(rep.Type), rep.TargetID, rep.ReporterID, rep.Reason, string(rep.Status)))
}

// Update stores the status and notes of rep.
func (r *Repository) Update(ctx context.Context, rep Report) (Report, error) {
	updated, err := scanReport(r.pool.QueryRow(ctx, `UPDATE reports SET status = $2, notes = $3, updated_at = NOW()
WHERE id = $1 RETURNING `+reportColumns, rep.ID, string(rep.Status), rep.Notes))
	if db.IsNoRows(err) {
		return Report{}, fmt.Errorf("%w: report %s", httpx.ErrNotFound, rep.ID)
	}
	return updated, err
}

// Delete removes a report.
func (r *Repository) Delete(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM reports WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: report %s", httpx.ErrNotFound, id)
	}
	return nil
}

// CountByStatus tallies reports per status.
func (r *Repository) CountByStatus(ctx context.Context) (map[Status]int, error) {
	rows, err := r.pool.Query(ctx, `SELECT status, COUNT(*) FROM reports GROUP BY status`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := map[Status]int{}
	for rows.Next() {
		var (
			status string
			n      int
		)
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		out[Status(status)] = n
	}
	return out, rows.Err()
}
