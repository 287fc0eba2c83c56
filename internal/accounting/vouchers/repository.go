package vouchers

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/accounts"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/money"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/periods"
	"github.com/odyssey-erp/odyssey-ledger/internal/platform/db"
	"github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

// TxRepository exposes transactional operations.
type TxRepository interface {
	LockPeriod(ctx context.Context, periodID int64) (periods.Period, error)
	GetAccounts(ctx context.Context, ids []int64) (map[int64]accounts.Account, error)
	NextSequence(ctx context.Context, voucherType VoucherType, year int) (int64, error)
	InsertVoucher(ctx context.Context, v Voucher) (Voucher, error)
	InsertEntries(ctx context.Context, voucherID int64, date time.Time, entries []Entry) ([]Entry, error)
	GetVoucherForUpdate(ctx context.Context, id int64) (Voucher, error)
	MarkPosted(ctx context.Context, id int64, debit, credit decimal.Decimal, at time.Time) error
	MarkReversed(ctx context.Context, id, reversalID, actorID int64, reason string, at time.Time) error
	RecordAudit(ctx context.Context, log shared.AuditLog) error
}

// RepositoryPort abstracts persistence for the service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	Get(ctx context.Context, id int64) (Voucher, error)
	List(ctx context.Context, filter ListFilter) ([]Voucher, int, error)
}

type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Repository persists vouchers and their ledger entries.
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
		return fmt.Errorf("vouchers: repository not initialised")
	}
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{tx: tx})
	})
}

// RecordAudit writes log in the same transaction as the voucher change.
func (r *txRepository) RecordAudit(ctx context.Context, log shared.AuditLog) error {
	return shared.RecordAudit(ctx, r.tx, log)
}

const voucherColumns = `v.id, v.voucher_number, v.voucher_type, v.voucher_date, v.period_id, v.narration, v.internal_notes,
v.entity_type, v.entity_id, v.status, v.is_reversed, v.total_debit, v.total_credit, v.reversal_of_id,
v.reversal_voucher_id, v.reversal_reason, v.reversed_at, v.reversed_by, v.source_module, v.source_id,
v.created_by, v.posting_date, v.locked_at, v.created_at, v.updated_at`

// Get loads a voucher with its entries.
func (r *Repository) Get(ctx context.Context, id int64) (Voucher, error) {
	var v Voucher
	err := db.WithReadTx(ctx, r.pool, func(tx pgx.Tx) error {
		var err error
		v, err = loadVoucher(ctx, tx, id, "")
		return err
	})
	return v, err
}

// List returns voucher headers for the filter, newest first, with the total match count.
func (r *Repository) List(ctx context.Context, filter ListFilter) ([]Voucher, int, error) {
	var status *string
	if filter.Status != "" {
		s := string(filter.Status)
		status = &s
	}
	var total int
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM vouchers v
WHERE v.entity_type = $1 AND v.entity_id IS NOT DISTINCT FROM $2 AND ($3::text IS NULL OR v.status = $3)`,
		filter.Scope.EntityType, filter.Scope.EntityID, status).Scan(&total)
	if err != nil {
		return nil, 0, err
	}
	rows, err := r.pool.Query(ctx, `SELECT `+voucherColumns+` FROM vouchers v
WHERE v.entity_type = $1 AND v.entity_id IS NOT DISTINCT FROM $2 AND ($3::text IS NULL OR v.status = $3)
ORDER BY v.voucher_date DESC, v.id DESC
LIMIT $4 OFFSET $5`,
		filter.Scope.EntityType, filter.Scope.EntityID, status, filter.Page.Limit, filter.Page.Offset())
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var out []Voucher
	for rows.Next() {
		v, err := scanVoucher(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, v)
	}
	return out, total, rows.Err()
}

func (r *txRepository) LockPeriod(ctx context.Context, periodID int64) (periods.Period, error) {
	return periods.GetForUpdate(ctx, r.tx, periodID)
}

func (r *txRepository) GetAccounts(ctx context.Context, ids []int64) (map[int64]accounts.Account, error) {
	out := make(map[int64]accounts.Account, len(ids))
	for _, id := range ids {
		if _, ok := out[id]; ok {
			continue
		}
		a, err := accounts.GetWith(ctx, r.tx, id)
		if errors.Is(err, accounts.ErrAccountNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		out[id] = a
	}
	return out, nil
}

func (r *txRepository) NextSequence(ctx context.Context, voucherType VoucherType, year int) (int64, error) {
	var next int64
	err := r.tx.QueryRow(ctx, `INSERT INTO voucher_sequences (voucher_type, year, last_value)
VALUES ($1, $2, 1)
ON CONFLICT (voucher_type, year) DO UPDATE SET last_value = voucher_sequences.last_value + 1
RETURNING last_value`, voucherType, year).Scan(&next)
	return next, err
}

func (r *txRepository) InsertVoucher(ctx context.Context, v Voucher) (Voucher, error) {
	err := r.tx.QueryRow(ctx, `INSERT INTO vouchers (voucher_number, voucher_type, voucher_date, period_id, narration,
internal_notes, entity_type, entity_id, status, is_reversed, total_debit, total_credit, reversal_of_id,
source_module, source_id, created_by, posting_date, locked_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, FALSE, $10::numeric, $11::numeric, $12, $13, $14, $15, $16, $17)
RETURNING id, created_at, updated_at`,
		v.Number, v.Type, v.Date, v.PeriodID, v.Narration, v.InternalNotes, v.Scope.EntityType, v.Scope.EntityID,
		v.Status, money.Format(v.TotalDebit), money.Format(v.TotalCredit), v.ReversalOfID, v.SourceModule, v.SourceID,
		v.CreatedBy, v.PostingDate, v.LockedAt).Scan(&v.ID, &v.CreatedAt, &v.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" && pgErr.ConstraintName == "ux_vouchers_source" {
			return Voucher{}, ErrSourceAlreadyLinked
		}
		return Voucher{}, err
	}
	return v, nil
}

func (r *txRepository) InsertEntries(ctx context.Context, voucherID int64, date time.Time, entries []Entry) ([]Entry, error) {
	out := make([]Entry, 0, len(entries))
	for idx, e := range entries {
		e.VoucherID = voucherID
		e.LineNo = idx + 1
		e.EntryDate = date
		err := r.tx.QueryRow(ctx, `INSERT INTO ledger_entries (voucher_id, line_no, account_id, description, debit_amount, credit_amount, entry_date)
VALUES ($1, $2, $3, $4, $5::numeric, $6::numeric, $7)
RETURNING id, created_at`,
			voucherID, e.LineNo, e.AccountID, e.Description, money.Format(e.Debit), money.Format(e.Credit), date).
			Scan(&e.ID, &e.CreatedAt)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, nil
}

func (r *txRepository) GetVoucherForUpdate(ctx context.Context, id int64) (Voucher, error) {
	return loadVoucher(ctx, r.tx, id, " FOR UPDATE OF v")
}

func (r *txRepository) MarkPosted(ctx context.Context, id int64, debit, credit decimal.Decimal, at time.Time) error {
	tag, err := r.tx.Exec(ctx, `UPDATE vouchers
SET status = 'POSTED', total_debit = $2::numeric, total_credit = $3::numeric, posting_date = $4, locked_at = $4, updated_at = $4
WHERE id = $1 AND status = 'DRAFT'`, id, money.Format(debit), money.Format(credit), at)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotDraft
	}
	return nil
}

func (r *txRepository) MarkReversed(ctx context.Context, id, reversalID, actorID int64, reason string, at time.Time) error {
	tag, err := r.tx.Exec(ctx, `UPDATE vouchers
SET status = 'REVERSED', is_reversed = TRUE, reversal_voucher_id = $2, reversal_reason = $3,
    reversed_at = $4, reversed_by = $5, updated_at = $4
WHERE id = $1 AND status = 'POSTED' AND is_reversed = FALSE`, id, reversalID, reason, at, actorID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrAlreadyReversed
	}
	return nil
}

func loadVoucher(ctx context.Context, q querier, id int64, lock string) (Voucher, error) {
	v, err := scanVoucher(q.QueryRow(ctx, `SELECT `+voucherColumns+` FROM vouchers v WHERE v.id = $1`+lock, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Voucher{}, ErrVoucherNotFound
	}
	if err != nil {
		return Voucher{}, err
	}
	rows, err := q.Query(ctx, `SELECT e.id, e.voucher_id, e.line_no, e.account_id, a.code, a.name, e.description,
e.debit_amount, e.credit_amount, e.entry_date, e.created_at
FROM ledger_entries e JOIN accounts a ON a.id = e.account_id
WHERE e.voucher_id = $1 ORDER BY e.line_no`, id)
	if err != nil {
		return Voucher{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.ID, &e.VoucherID, &e.LineNo, &e.AccountID, &e.AccountCode, &e.AccountName, &e.Description,
			&e.Debit, &e.Credit, &e.EntryDate, &e.CreatedAt); err != nil {
			return Voucher{}, err
		}
		v.Entries = append(v.Entries, e)
	}
	return v, rows.Err()
}

func scanVoucher(row pgx.Row) (Voucher, error) {
	var v Voucher
	err := row.Scan(&v.ID, &v.Number, &v.Type, &v.Date, &v.PeriodID, &v.Narration, &v.InternalNotes,
		&v.Scope.EntityType, &v.Scope.EntityID, &v.Status, &v.IsReversed, &v.TotalDebit, &v.TotalCredit, &v.ReversalOfID,
		&v.ReversalVoucherID, &v.ReversalReason, &v.ReversedAt, &v.ReversedBy, &v.SourceModule, &v.SourceID,
		&v.CreatedBy, &v.PostingDate, &v.LockedAt, &v.CreatedAt, &v.UpdatedAt)
	return v, err
}
