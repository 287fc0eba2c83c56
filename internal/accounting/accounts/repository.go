package accounts

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

// Repository reads chart of accounts rows.
type Repository interface {
	List(ctx context.Context, scope shared.Scope) ([]Account, error)
	Get(ctx context.Context, id int64) (Account, error)
}

// Querier is satisfied by *pgxpool.Pool and pgx.Tx.
type Querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type repository struct {
	db Querier
}

// NewRepository returns a pgx backed repository.
func NewRepository(db *pgxpool.Pool) Repository {
	return &repository{db: db}
}

const selectAccount = `SELECT id, code, name, type, entity_type, entity_id, is_active, created_at, updated_at FROM accounts`

func (r *repository) List(ctx context.Context, scope shared.Scope) ([]Account, error) {
	rows, err := r.db.Query(ctx, selectAccount+`
WHERE entity_type = $1 AND entity_id IS NOT DISTINCT FROM $2
ORDER BY code`, scope.EntityType, scope.EntityID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var accounts []Account
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, a)
	}
	return accounts, rows.Err()
}

func (r *repository) Get(ctx context.Context, id int64) (Account, error) {
	return GetWith(ctx, r.db, id)
}

// GetWith loads one account through q so callers can read inside a transaction.
func GetWith(ctx context.Context, q Querier, id int64) (Account, error) {
	a, err := scanAccount(q.QueryRow(ctx, selectAccount+` WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Account{}, ErrAccountNotFound
	}
	return a, err
}

func scanAccount(row pgx.Row) (Account, error) {
	var a Account
	err := row.Scan(&a.ID, &a.Code, &a.Name, &a.Type, &a.Scope.EntityType, &a.Scope.EntityID, &a.IsActive, &a.CreatedAt, &a.UpdatedAt)
	return a, err
}
