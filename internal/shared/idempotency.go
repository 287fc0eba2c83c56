package shared

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// IdempotencyRecord is the stored outcome of a keyed request.
type IdempotencyRecord struct {
	Key         string
	Module      string
	Fingerprint string
	Completed   bool
	StatusCode  int
	ContentType string
	Body        []byte
	CreatedAt   time.Time
}

// IdempotencyStore persists processed keys.
type IdempotencyStore struct {
	pool *pgxpool.Pool
	now  func() time.Time
}

// NewIdempotencyStore constructs the store.
func NewIdempotencyStore(pool *pgxpool.Pool) *IdempotencyStore {
	return &IdempotencyStore{pool: pool, now: time.Now}
}

var (
	// ErrIdempotencyConflict indicates the key is still being processed.
	ErrIdempotencyConflict = fmt.Errorf("%w: idempotent request already in flight", ErrConflict)
	// ErrIdempotencyMismatch indicates the key was first used for a different request.
	ErrIdempotencyMismatch = fmt.Errorf("%w: idempotency key reused for a different request", ErrConflict)
)

// Reserve claims key for module, remembering the request fingerprint. When
// the key already exists the stored record is returned with reserved=false.
func (s *IdempotencyStore) Reserve(ctx context.Context, key, module, fingerprint string) (IdempotencyRecord, bool, error) {
	if s == nil {
		return IdempotencyRecord{}, false, errors.New("idempotency store not initialised")
	}
	if key == "" {
		return IdempotencyRecord{}, false, errors.New("idempotency key required")
	}
	if module == "" {
		return IdempotencyRecord{}, false, errors.New("idempotency module required")
	}
	tag, err := s.pool.Exec(ctx, `INSERT INTO idempotency_keys (key, module, request_hash, created_at) VALUES ($1, $2, $3, $4)
ON CONFLICT (key, module) DO NOTHING`, key, module, fingerprint, s.now())
	if err != nil {
		return IdempotencyRecord{}, false, err
	}
	if tag.RowsAffected() == 1 {
		return IdempotencyRecord{Key: key, Module: module, Fingerprint: fingerprint}, true, nil
	}
	rec := IdempotencyRecord{Key: key, Module: module}
	var status *int
	var contentType *string
	err = s.pool.QueryRow(ctx, `SELECT request_hash, completed, status_code, content_type, body, created_at
FROM idempotency_keys WHERE key=$1 AND module=$2`, key, module).
		Scan(&rec.Fingerprint, &rec.Completed, &status, &contentType, &rec.Body, &rec.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// Released between insert and select; let the caller retry.
			return IdempotencyRecord{}, false, ErrIdempotencyConflict
		}
		return IdempotencyRecord{}, false, err
	}
	if status != nil {
		rec.StatusCode = *status
	}
	if contentType != nil {
		rec.ContentType = *contentType
	}
	return rec, false, nil
}

// Complete stores the response produced for key.
func (s *IdempotencyStore) Complete(ctx context.Context, key, module string, status int, contentType string, body []byte) error {
	if s == nil {
		return nil
	}
	_, err := s.pool.Exec(ctx, `UPDATE idempotency_keys SET completed=TRUE, status_code=$3, content_type=$4, body=$5
WHERE key=$1 AND module=$2`, key, module, status, contentType, body)
	return err
}

// Cleanup removes entries older than retention.
func (s *IdempotencyStore) Cleanup(ctx context.Context, olderThan time.Duration) (int64, error) {
	if s == nil {
		return 0, nil
	}
	cutoff := s.now().Add(-olderThan)
	tag, err := s.pool.Exec(ctx, `DELETE FROM idempotency_keys WHERE created_at < $1`, cutoff)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// Delete removes a key, typically used to roll back failed processing.
func (s *IdempotencyStore) Delete(ctx context.Context, key, module string) error {
	if s == nil {
		return nil
	}
	if key == "" {
		return errors.New("idempotency key required")
	}
	_, err := s.pool.Exec(ctx, `DELETE FROM idempotency_keys WHERE key=$1 AND module=$2`, key, module)
	return err
}
