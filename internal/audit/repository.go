package audit

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository reads audit_logs.
type Repository interface {
	Window(ctx context.Context, arg WindowParams) ([]TimelineRow, error)
	All(ctx context.Context, arg RangeParams, limit int32) ([]TimelineRow, error)
}

// RangeParams are the shared timeline predicates.
type RangeParams struct {
	FromAt pgtype.Timestamptz
	ToAt   pgtype.Timestamptz
	Actor  pgtype.Text
	Entity pgtype.Text
	Action pgtype.Text
}

// WindowParams selects a slice of the timeline. Invalid fields are unbounded.
type WindowParams struct {
	Range  RangeParams
	Offset int32
	Limit  int32
}

// PGRepository implements Repository using PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PGRepository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

const timelineQuery = `SELECT id, occurred_at, COALESCE(actor_id, ''), action, entity, entity_id, meta
FROM audit_logs
WHERE ($1::timestamptz IS NULL OR occurred_at >= $1)
  AND ($2::timestamptz IS NULL OR occurred_at < $2)
  AND ($3::text IS NULL OR actor_id = $3)
  AND ($4::text IS NULL OR entity = $4)
  AND ($5::text IS NULL OR action = $5)
ORDER BY occurred_at DESC, id DESC
LIMIT $6 OFFSET $7`

// Window returns one page of the timeline, newest first.
func (r *PGRepository) Window(ctx context.Context, arg WindowParams) ([]TimelineRow, error) {
	rows, err := r.pool.Query(ctx, timelineQuery,
		arg.Range.FromAt, arg.Range.ToAt, arg.Range.Actor, arg.Range.Entity, arg.Range.Action, arg.Limit, arg.Offset)
	if err != nil {
		return nil, err
	}
	return collectRows(rows)
}

// All returns up to limit rows for export.
func (r *PGRepository) All(ctx context.Context, arg RangeParams, limit int32) ([]TimelineRow, error) {
	rows, err := r.pool.Query(ctx, timelineQuery,
		arg.FromAt, arg.ToAt, arg.Actor, arg.Entity, arg.Action, limit, int32(0))
	if err != nil {
		return nil, err
	}
	return collectRows(rows)
}

func collectRows(rows pgx.Rows) ([]TimelineRow, error) {
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (TimelineRow, error) {
		var (
			out  TimelineRow
			meta []byte
		)
		if err := row.Scan(&out.ID, &out.At, &out.ActorID, &out.Action, &out.Entity, &out.EntityID, &meta); err != nil {
			return TimelineRow{}, err
		}
		if len(meta) > 0 {
			if err := json.Unmarshal(meta, &out.Meta); err != nil {
				return TimelineRow{}, err
			}
		}
		return out, nil
	})
}

func toPgTime(t time.Time) pgtype.Timestamptz {
	if t.IsZero() {
		return pgtype.Timestamptz{}
	}
	return pgtype.Timestamptz{Time: t, Valid: true}
}

func optionalText(value string) pgtype.Text {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return pgtype.Text{}
	}
	return pgtype.Text{String: trimmed, Valid: true}
}
