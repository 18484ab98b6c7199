package community

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sizang-hub/sizang-hub/internal/platform/db"
)

// RepositoryPort defines data access methods for languages.
type RepositoryPort interface {
	ListLanguages(ctx context.Context) ([]Language, error)
	ReplaceLanguages(ctx context.Context, langs []Language) error
}

// Repository provides PostgreSQL backed persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// ListLanguages returns every language, default first.
func (r *Repository) ListLanguages(ctx context.Context) ([]Language, error) {
	rows, err := r.pool.Query(ctx, `SELECT code, name, native_name, is_active, is_default, direction
FROM languages ORDER BY is_default DESC, code`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Language
	for rows.Next() {
		var l Language
		if err := rows.Scan(&l.Code, &l.Name, &l.NativeName, &l.IsActive, &l.IsDefault, &l.Direction); err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

// ReplaceLanguages upserts langs and deactivates languages missing from
// them. Content already written in a removed language keeps its code.
func (r *Repository) ReplaceLanguages(ctx context.Context, langs []Language) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		codes := make([]string, 0, len(langs))
		batch := &pgx.Batch{}
		batch.Queue(`UPDATE languages SET is_default = FALSE`)
		for _, l := range langs {
			codes = append(codes, l.Code)
			batch.Queue(`INSERT INTO languages (code, name, native_name, is_active, is_default, direction)
VALUES ($1, $2, $3, $4, $5, $6)
ON CONFLICT (code) DO UPDATE SET name = EXCLUDED.name, native_name = EXCLUDED.native_name,
	is_active = EXCLUDED.is_active, is_default = EXCLUDED.is_default, direction = EXCLUDED.direction`,
				l.Code, l.Name, l.NativeName, l.IsActive, l.IsDefault, l.Direction)
		}
		batch.Queue(`UPDATE languages SET is_active = FALSE WHERE NOT (code = ANY($1))`, codes)
		return tx.SendBatch(ctx, batch).Close()
	})
}
