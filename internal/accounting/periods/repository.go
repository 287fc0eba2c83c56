package periods

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/odyssey-erp/odyssey-ledger/internal/platform/db"
	"github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

// TxRepository exposes transactional operations.
type TxRepository interface {
	LockScope(ctx context.Context, scope shared.Scope) error
	HasOverlap(ctx context.Context, scope shared.Scope, start, end time.Time) (bool, error)
	InsertPeriod(ctx context.Context, in CreateInput) (Period, error)
	GetPeriodForUpdate(ctx context.Context, id int64) (Period, error)
	MarkClosed(ctx context.Context, id, actorID int64, at time.Time) (Period, error)
	RecordAudit(ctx context.Context, log shared.AuditLog) error
}

// RepositoryPort abstracts persistence for the service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	List(ctx context.Context, scope shared.Scope) ([]Period, error)
	Get(ctx context.Context, id int64) (Period, error)
}

// Querier is satisfied by *pgxpool.Pool and pgx.Tx.
type Querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Repository persists accounting periods.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

type txRepository struct {
	tx pgx.Tx
}

// WithTx runs fn inside a RepeatableRead transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	if r == nil || r.pool == nil {
		return fmt.Errorf("periods: repository not initialised")
	}
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{tx: tx})
	})
}

// RecordAudit writes log in the same transaction as the period change.
func (r *txRepository) RecordAudit(ctx context.Context, log shared.AuditLog) error {
	return shared.RecordAudit(ctx, r.tx, log)
}

const selectPeriod = `SELECT id, period_name, period_type, start_date, end_date, entity_type, entity_id,
is_active, is_closed, closed_at, closed_by, created_by, created_at, updated_at FROM accounting_periods`

// List returns the periods of scope ordered by start date.
func (r *Repository) List(ctx context.Context, scope shared.Scope) ([]Period, error) {
	rows, err := r.pool.Query(ctx, selectPeriod+`
WHERE entity_type = $1 AND entity_id IS NOT DISTINCT FROM $2
ORDER BY start_date, id`, scope.EntityType, scope.EntityID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Period
	for rows.Next() {
		p, err := scanPeriod(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// Get loads one period.
func (r *Repository) Get(ctx context.Context, id int64) (Period, error) {
	return getPeriod(ctx, r.pool, id, "")
}

func (r *txRepository) LockScope(ctx context.Context, scope shared.Scope) error {
	_, err := r.tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, "accounting_periods:"+scope.String())
	return err
}

func (r *txRepository) HasOverlap(ctx context.Context, scope shared.Scope, start, end time.Time) (bool, error) {
	var exists bool
	err := r.tx.QueryRow(ctx, `SELECT EXISTS (
SELECT 1 FROM accounting_periods
WHERE entity_type = $1 AND entity_id IS NOT DISTINCT FROM $2
  AND is_closed = FALSE AND start_date <= $4 AND end_date >= $3)`,
		scope.EntityType, scope.EntityID, start, end).Scan(&exists)
	return exists, err
}

func (r *txRepository) InsertPeriod(ctx context.Context, in CreateInput) (Period, error) {
	var createdBy *int64
	if in.ActorID != 0 {
		createdBy = &in.ActorID
	}
	row := r.tx.QueryRow(ctx, `INSERT INTO accounting_periods
(period_name, period_type, start_date, end_date, entity_type, entity_id, is_active, is_closed, created_by)
VALUES ($1, $2, $3, $4, $5, $6, TRUE, FALSE, $7)
RETURNING id, period_name, period_type, start_date, end_date, entity_type, entity_id,
is_active, is_closed, closed_at, closed_by, created_by, created_at, updated_at`,
		in.Name, in.Type, in.StartDate, in.EndDate, in.Scope.EntityType, in.Scope.EntityID, createdBy)
	return scanPeriod(row)
}

func (r *txRepository) GetPeriodForUpdate(ctx context.Context, id int64) (Period, error) {
	return GetForUpdate(ctx, r.tx, id)
}

func (r *txRepository) MarkClosed(ctx context.Context, id, actorID int64, at time.Time) (Period, error) {
	row := r.tx.QueryRow(ctx, `UPDATE accounting_periods
SET is_closed = TRUE, is_active = FALSE, closed_at = $2, closed_by = $3, updated_at = $2
WHERE id = $1 AND is_closed = FALSE
RETURNING id, period_name, period_type, start_date, end_date, entity_type, entity_id,
is_active, is_closed, closed_at, closed_by, created_by, created_at, updated_at`, id, at, actorID)
	p, err := scanPeriod(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Period{}, ErrPeriodAlreadyClosed
	}
	return p, err
}

// GetForUpdate locks the period row inside q's transaction. Voucher writes
// take the same lock so closing serializes against them.
func GetForUpdate(ctx context.Context, q Querier, id int64) (Period, error) {
	return getPeriod(ctx, q, id, " FOR UPDATE")
}

func getPeriod(ctx context.Context, q Querier, id int64, suffix string) (Period, error) {
	p, err := scanPeriod(q.QueryRow(ctx, selectPeriod+` WHERE id = $1`+suffix, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Period{}, ErrPeriodNotFound
	}
	return p, err
}

func scanPeriod(row pgx.Row) (Period, error) {
	var p Period
	err := row.Scan(&p.ID, &p.Name, &p.Type, &p.StartDate, &p.EndDate, &p.Scope.EntityType, &p.Scope.EntityID,
		&p.IsActive, &p.IsClosed, &p.ClosedAt, &p.ClosedBy, &p.CreatedBy, &p.CreatedAt, &p.UpdatedAt)
	return p, err
}
