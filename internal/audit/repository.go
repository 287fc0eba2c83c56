package audit

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/odyssey-erp/odyssey-ledger/internal/platform/db"
)

// Repository reads ledger_audit_logs.
type Repository interface {
	Timeline(ctx context.Context, f TimelineFilters) ([]TimelineRow, int, error)
}

// PGRepository is the pgx implementation of Repository.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository returns a pgx backed repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

const timelineWhere = `
WHERE scope = $1
  AND ($2::text IS NULL OR entity = $2)
  AND ($3::text IS NULL OR entity_id = $3)
  AND ($4::text IS NULL OR action = $4)
  AND ($5::timestamptz IS NULL OR occurred_at >= $5)
  AND ($6::timestamptz IS NULL OR occurred_at < $6)`

// Timeline returns one page of rows, newest first, and the filtered total.
func (r *PGRepository) Timeline(ctx context.Context, f TimelineFilters) ([]TimelineRow, int, error) {
	args := []any{f.Scope.String(), optionalText(f.Entity), optionalText(f.EntityID), optionalText(f.Action), optionalTime(f.From), optionalTime(f.To)}
	var (
		rows  []TimelineRow
		total int
	)
	err := db.WithReadTx(ctx, r.pool, func(tx pgx.Tx) error {
		if err := tx.QueryRow(ctx, `SELECT COUNT(*) FROM ledger_audit_logs`+timelineWhere, args...).Scan(&total); err != nil {
			return err
		}
		res, err := tx.Query(ctx, `SELECT id, occurred_at, actor_id, action, entity, entity_id, scope, meta
FROM ledger_audit_logs`+timelineWhere+`
ORDER BY occurred_at DESC, id DESC
LIMIT $7 OFFSET $8`, append(args, f.Page.Limit, f.Page.Offset())...)
		if err != nil {
			return err
		}
		defer res.Close()
		for res.Next() {
			var (
				row  TimelineRow
				meta []byte
			)
			if err := res.Scan(&row.ID, &row.At, &row.ActorID, &row.Action, &row.Entity, &row.EntityID, &row.Scope, &meta); err != nil {
				return err
			}
			if len(meta) > 0 {
				if err := json.Unmarshal(meta, &row.Meta); err != nil {
					return err
				}
			}
			rows = append(rows, row)
		}
		return res.Err()
	})
	if err != nil {
		return nil, 0, err
	}
	return rows, total, nil
}

func optionalText(v string) *string {
	if v == "" {
		return nil
	}
	return &v
}

func optionalTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
