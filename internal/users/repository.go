package users

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sizang-hub/sizang-hub/internal/ids"
	"github.com/sizang-hub/sizang-hub/internal/platform/db"
	"github.com/sizang-hub/sizang-hub/internal/platform/httpx"
	"github.com/sizang-hub/sizang-hub/internal/rbac"
)

// RepositoryPort defines data access methods for users.
type RepositoryPort interface {
	List(ctx context.Context, filter ListFilter) ([]User, int, error)
	Get(ctx context.Context, id string) (User, error)
	GetByEmail(ctx context.Context, email string) (User, error)
	Create(ctx context.Context, input NewUser) (User, error)
	UpdateProfile(ctx context.Context, id string, input ProfileInput) (User, error)
	UpdateRole(ctx context.Context, id string, role rbac.Role) (User, error)
	SetPassword(ctx context.Context, id, hash string) error
	MarkVerified(ctx context.Context, id string) (User, error)
	Touch(ctx context.Context, id string, at time.Time) error
	Delete(ctx context.Context, id string) error
	CountByRole(ctx context.Context) (map[rbac.Role]int, error)
}

// Repository provides PostgreSQL backed persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const userColumns = `id, email, display_name, password_hash, role, email_verified, avatar, bio, location, languages, created_at, updated_at, last_active_at`

func scanUser(row pgx.Row) (User, error) {
	var (
		u    User
		role string
	)
	err := row.Scan(&u.ID, &u.Email, &u.DisplayName, &u.PasswordHash, &role, &u.EmailVerified, &u.Avatar, &u.Bio, &u.Location, &u.Languages, &u.CreatedAt, &u.UpdatedAt, &u.LastActiveAt)
	if err != nil {
		return User{}, err
	}
	parsed, err := rbac.ParseRole(role)
	if err != nil {
		return User{}, fmt.Errorf("users: stored role: %w", err)
	}
	u.Role = parsed
	if u.Languages == nil {
		u.Languages = []string{}
	}
	return u, nil
}

func notFound(err error, id string) error {
	if db.IsNoRows(err) {
		return fmt.Errorf("%w: user %s", httpx.ErrNotFound, id)
	}
	return err
}

// List returns a page of users and the total match count.
func (r *Repository) List(ctx context.Context, filter ListFilter) ([]User, int, error) {
	where := []string{"TRUE"}
	args := []any{}
	if filter.Search != "" {
		args = append(args, "%"+filter.Search+"%")
		n := strconv.Itoa(len(args))
		where = append(where, "(display_name ILIKE $"+n+" OR email ILIKE $"+n+")")
	}
	if filter.Role != nil {
		args = append(args, filter.Role.String())
		where = append(where, "role = $"+strconv.Itoa(len(args)))
	}
	clause := strings.Join(where, " AND ")

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM users WHERE `+clause, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	args = append(args, filter.Limit, filter.Offset)
	query := `SELECT ` + userColumns + ` FROM users WHERE ` + clause +
		` ORDER BY created_at DESC, id LIMIT $` + strconv.Itoa(len(args)-1) + ` OFFSET $` + strconv.Itoa(len(args))
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, u)
	}
	return out, total, rows.Err()
}

// Get returns a user by id.
func (r *Repository) Get(ctx context.Context, id string) (User, error) {
	u, err := scanUser(r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id))
	return u, notFound(err, id)
}

// GetByEmail returns a user by email, case insensitively.
func (r *Repository) GetByEmail(ctx context.Context, email string) (User, error) {
	u, err := scanUser(r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE LOWER(email) = LOWER($1)`, email))
	return u, notFound(err, email)
}

// ResolveHandles maps @handles to user ids. A handle matches the display
// name without spaces or the local part of the email, case insensitively.
func (r *Repository) ResolveHandles(ctx context.Context, handles []string) ([]string, error) {
	if len(handles) == 0 {
		return nil, nil
	}
	rows, err := r.pool.Query(ctx, `SELECT id FROM users
WHERE LOWER(REPLACE(display_name, ' ', '')) = ANY($1) OR LOWER(SPLIT_PART(email, '@', 1)) = ANY($1)
ORDER BY created_at`, handles)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowTo[string])
}

// Create inserts a new account.
func (r *Repository) Create(ctx context.Context, input NewUser) (User, error) {
	languages := input.Languages
	if languages == nil {
		languages = []string{}
	}
	u, err := scanUser(r.pool.QueryRow(ctx, `INSERT INTO users (id, email, display_name, password_hash, role, email_verified, languages)
VALUES ($1, LOWER($2), $3, $4, $5, $6, $7) RETURNING `+userColumns,
		ids.New(), input.Email, input.DisplayName, input.PasswordHash, input.Role.String(), input.Verified, languages))
	if db.IsUniqueViolation(err) {
		return User{}, fmt.Errorf("%w: email already registered", httpx.ErrDuplicate)
	}
	return u, err
}

// UpdateProfile applies the non-nil fields of input.
func (r *Repository) UpdateProfile(ctx context.Context, id string, input ProfileInput) (User, error) {
	u, err := scanUser(r.pool.QueryRow(ctx, `UPDATE users SET
    display_name = COALESCE($2, display_name),
    avatar = COALESCE($3, avatar),
    bio = COALESCE($4, bio),
    location = COALESCE($5, location),
    languages = COALESCE($6, languages),
    updated_at = NOW()
WHERE id = $1 RETURNING `+userColumns, id, input.DisplayName, input.Avatar, input.Bio, input.Location, input.Languages))
	return u, notFound(err, id)
}

// UpdateRole sets the role of a user.
func (r *Repository) UpdateRole(ctx context.Context, id string, role rbac.Role) (User, error) {
	u, err := scanUser(r.pool.QueryRow(ctx, `UPDATE users SET role = $2, updated_at = NOW() WHERE id = $1 RETURNING `+userColumns, id, role.String()))
	return u, notFound(err, id)
}

// SetPassword replaces the password hash.
func (r *Repository) SetPassword(ctx context.Context, id, hash string) error {
	tag, err := r.pool.Exec(ctx, `UPDATE users SET password_hash = $2, updated_at = NOW() WHERE id = $1`, id, hash)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: user %s", httpx.ErrNotFound, id)
	}
	return nil
}

// MarkVerified flags the email address as confirmed.
func (r *Repository) MarkVerified(ctx context.Context, id string) (User, error) {
	u, err := scanUser(r.pool.QueryRow(ctx, `UPDATE users SET email_verified = TRUE, updated_at = NOW() WHERE id = $1 RETURNING `+userColumns, id))
	return u, notFound(err, id)
}

// Touch records activity.
func (r *Repository) Touch(ctx context.Context, id string, at time.Time) error {
	_, err := r.pool.Exec(ctx, `UPDATE users SET last_active_at = $2 WHERE id = $1`, id, at)
	return err
}

// Delete removes a user and, by cascade, their content.
func (r *Repository) Delete(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: user %s", httpx.ErrNotFound, id)
	}
	return nil
}

// CountByRole tallies accounts per role.
func (r *Repository) CountByRole(ctx context.Context) (map[rbac.Role]int, error) {
	rows, err := r.pool.Query(ctx, `SELECT role, COUNT(*) FROM users GROUP BY role`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make(map[rbac.Role]int, len(rbac.AllRoles()))
	for rows.Next() {
		var (
			name  string
			count int
		)
		if err := rows.Scan(&name, &count); err != nil {
			return nil, err
		}
		role, err := rbac.ParseRole(name)
		if err != nil {
			return nil, err
		}
		out[role] += count
	}
	return out, rows.Err()
}
