package ledger

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/odyssey-erp/odyssey-ledger/internal/platform/db"
)

// Repository reads posted ledger entries.
type Repository interface {
	Snapshot(ctx context.Context, accountID int64, start, end time.Time, limit, offset int) (Snapshot, error)
}

type repository struct {
	pool *pgxpool.Pool
}

// NewRepository returns a pgx backed repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

// Only entries of POSTED and REVERSED vouchers count; a reversed voucher's
// entries stay and its reversal voucher offsets them.
const postedEntries = `FROM ledger_entries e
JOIN vouchers v ON v.id = e.voucher_id
WHERE e.account_id = $1 AND v.status IN ('POSTED', 'REVERSED')`

const windowClause = ` AND ($2::date IS NULL OR e.entry_date >= $2::date) AND ($3::date IS NULL OR e.entry_date <= $3::date)`

// Snapshot reads every aggregate and the page rows inside one read-only
// transaction so they describe the same state.
func (r *repository) Snapshot(ctx context.Context, accountID int64, start, end time.Time, limit, offset int) (Snapshot, error) {
	startArg, endArg := dateArg(start), dateArg(end)
	var snap Snapshot
	err := db.WithReadTx(ctx, r.pool, func(tx pgx.Tx) error {
		if startArg != nil {
			if err := tx.QueryRow(ctx, `SELECT COALESCE(SUM(e.debit_amount), 0), COALESCE(SUM(e.credit_amount), 0) `+
				postedEntries+` AND e.entry_date < $2::date`, accountID, startArg).
				Scan(&snap.Before.Debit, &snap.Before.Credit); err != nil {
				return err
			}
		}
		if err := tx.QueryRow(ctx, `SELECT COUNT(*), COALESCE(SUM(e.debit_amount), 0), COALESCE(SUM(e.credit_amount), 0) `+
			postedEntries+windowClause, accountID, startArg, endArg).
			Scan(&snap.WindowCount, &snap.Window.Debit, &snap.Window.Credit); err != nil {
			return err
		}
		if offset > 0 {
			if err := tx.QueryRow(ctx, `SELECT COALESCE(SUM(p.debit_amount), 0), COALESCE(SUM(p.credit_amount), 0) FROM (
SELECT e.debit_amount, e.credit_amount `+postedEntries+windowClause+`
ORDER BY e.entry_date, e.id LIMIT $4) p`, accountID, startArg, endArg, offset).
				Scan(&snap.PagePrefix.Debit, &snap.PagePrefix.Credit); err != nil {
				return err
			}
		}
		rows, err := tx.Query(ctx, `SELECT e.id, e.voucher_id, v.voucher_number, v.voucher_type, v.status, e.line_no,
e.description, v.narration, e.debit_amount, e.credit_amount, e.entry_date `+postedEntries+windowClause+`
ORDER BY e.entry_date, e.id LIMIT $4 OFFSET $5`, accountID, startArg, endArg, limit, offset)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var l Line
			if err := rows.Scan(&l.EntryID, &l.VoucherID, &l.VoucherNumber, &l.VoucherType, &l.VoucherStatus, &l.LineNo,
				&l.Description, &l.Narration, &l.Debit, &l.Credit, &l.EntryDate); err != nil {
				return err
			}
			snap.Lines = append(snap.Lines, l)
		}
		return rows.Err()
	})
	return snap, err
}

func dateArg(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
