package reports

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/odyssey-erp/odyssey-ledger/internal/platform/db"
	"github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

// Repository aggregates ledger entries per account.
type Repository interface {
	AccountBalances(ctx context.Context, scope shared.Scope, start, end time.Time) ([]AccountBalance, error)
}

type repository struct {
	pool *pgxpool.Pool
}

// NewRepository returns a pgx backed repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

const accountBalancesSQL = `SELECT a.id, a.code, a.name, a.type,
	COALESCE(SUM(e.debit_amount) FILTER (WHERE e.entry_date < $3::date), 0),
	COALESCE(SUM(e.credit_amount) FILTER (WHERE e.entry_date < $3::date), 0),
	COALESCE(SUM(e.debit_amount) FILTER (WHERE $3::date IS NULL OR e.entry_date >= $3::date), 0),
	COALESCE(SUM(e.credit_amount) FILTER (WHERE $3::date IS NULL OR e.entry_date >= $3::date), 0)
FROM accounts a
LEFT JOIN (ledger_entries e JOIN vouchers v ON v.id = e.voucher_id AND v.status IN ('POSTED', 'REVERSED'))
	ON e.account_id = a.id AND ($4::date IS NULL OR e.entry_date <= $4::date)
WHERE a.entity_type = $1 AND a.entity_id IS NOT DISTINCT FROM $2
GROUP BY a.id, a.code, a.name, a.type
ORDER BY a.code`

func (r *repository) AccountBalances(ctx context.Context, scope shared.Scope, start, end time.Time) ([]AccountBalance, error) {
	var out []AccountBalance
	err := db.WithReadTx(ctx, r.pool, func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx, accountBalancesSQL, scope.EntityType, scope.EntityID, dateArg(start), dateArg(end))
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var b AccountBalance
			if err := rows.Scan(&b.AccountID, &b.Code, &b.Name, &b.Type, &b.BeforeDebit, &b.BeforeCredit, &b.Debit, &b.Credit); err != nil {
				return err
			}
			out = append(out, b)
		}
		return rows.Err()
	})
	return out, err
}

func dateArg(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
