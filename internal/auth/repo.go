package auth

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository defines persistence operations for API clients.
type Repository interface {
	FindByKeyID(ctx context.Context, keyID string) (*Client, error)
	TouchLastUsed(ctx context.Context, id int64, at time.Time) error
	CreateClient(ctx context.Context, client Client) (Client, error)
}

// PGRepository implements Repository using PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

// FindByKeyID fetches a client by its public key id.
func (r *PGRepository) FindByKeyID(ctx context.Context, keyID string) (*Client, error) {
	var c Client
	err := r.pool.QueryRow(ctx, `SELECT id, name, key_id, secret_hash, entity_type, entity_id, permissions, is_active, last_used_at, created_at
FROM api_clients WHERE key_id = $1`, keyID).
		Scan(&c.ID, &c.Name, &c.KeyID, &c.SecretHash, &c.Scope.EntityType, &c.Scope.EntityID, &c.Permissions, &c.IsActive, &c.LastUsedAt, &c.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// TouchLastUsed records the latest successful authentication.
func (r *PGRepository) TouchLastUsed(ctx context.Context, id int64, at time.Time) error {
	_, err := r.pool.Exec(ctx, `UPDATE api_clients SET last_used_at = $2 WHERE id = $1`, id, at)
	return err
}

// CreateClient inserts a client row.
func (r *PGRepository) CreateClient(ctx context.Context, c Client) (Client, error) {
	err := r.pool.QueryRow(ctx, `INSERT INTO api_clients (name, key_id, secret_hash, entity_type, entity_id, permissions, is_active)
VALUES ($1, $2, $3, $4, $5, $6, TRUE) RETURNING id, is_active, created_at`,
		c.Name, c.KeyID, c.SecretHash, c.Scope.EntityType, c.Scope.EntityID, c.Permissions).
		Scan(&c.ID, &c.IsActive, &c.CreatedAt)
	return c, err
}

var _ Repository = (*PGRepository)(nil)
