package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/money"
	jobmetrics "github.com/odyssey-erp/odyssey-ledger/internal/jobs"
	"github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

// Imbalance is a posted voucher whose entries do not balance or disagree
// with the stored totals.
type Imbalance struct {
	VoucherID     int64
	VoucherNumber string
	Scope         shared.Scope
	TotalDebit    decimal.Decimal
	TotalCredit   decimal.Decimal
	EntryDebit    decimal.Decimal
	EntryCredit   decimal.Decimal
}

// IntegrityStore finds ledger imbalances.
type IntegrityStore interface {
	FindImbalances(ctx context.Context, since time.Time) ([]Imbalance, error)
}

// PGIntegrityStore reads imbalances from postgres.
type PGIntegrityStore struct {
	Pool *pgxpool.Pool
}

// FindImbalances compares each posted voucher's stored totals with the sum
// of its entries.
func (s PGIntegrityStore) FindImbalances(ctx context.Context, since time.Time) ([]Imbalance, error) {
	if s.Pool == nil {
		return nil, errors.New("integrity scan: pool not configured")
	}
	var sinceArg *time.Time
	if !since.IsZero() {
		sinceArg = &since
	}
	rows, err := s.Pool.Query(ctx, `SELECT v.id, v.voucher_number, v.entity_type, v.entity_id, v.total_debit, v.total_credit,
	COALESCE(SUM(e.debit_amount), 0), COALESCE(SUM(e.credit_amount), 0)
FROM vouchers v
LEFT JOIN ledger_entries e ON e.voucher_id = v.id
WHERE v.status IN ('POSTED', 'REVERSED') AND ($1::date IS NULL OR v.posting_date >= $1::date)
GROUP BY v.id
HAVING COALESCE(SUM(e.debit_amount), 0) <> COALESCE(SUM(e.credit_amount), 0)
	OR COALESCE(SUM(e.debit_amount), 0) <> v.total_debit
	OR COALESCE(SUM(e.credit_amount), 0) <> v.total_credit
ORDER BY v.id`, sinceArg)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Imbalance
	for rows.Next() {
		var im Imbalance
		if err := rows.Scan(&im.VoucherID, &im.VoucherNumber, &im.Scope.EntityType, &im.Scope.EntityID,
			&im.TotalDebit, &im.TotalCredit, &im.EntryDebit, &im.EntryCredit); err != nil {
			return nil, err
		}
		out = append(out, im)
	}
	return out, rows.Err()
}

// IntegrityScanJob verifies that every posted voucher still balances.
type IntegrityScanJob struct {
	Store   IntegrityStore
	Redis   *redis.Client
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
	LockTTL time.Duration
	clock   func() time.Time
}

// NewIntegrityScanJob wires the scan handler.
func NewIntegrityScanJob(store IntegrityStore, redisClient *redis.Client, logger *slog.Logger, metrics *jobmetrics.Metrics) *IntegrityScanJob {
	return &IntegrityScanJob{
		Store:   store,
		Redis:   redisClient,
		Logger:  logger,
		Metrics: metrics,
		LockTTL: 10 * time.Minute,
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// Handle runs one scan. A scan already running elsewhere is not an error.
func (j *IntegrityScanJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Store == nil {
		return errors.New("integrity scan: handler not configured")
	}
	var payload IntegrityScanPayload
	if len(t.Payload()) > 0 {
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return asynq.SkipRetry
		}
	}
	var since time.Time
	if payload.Since != "" {
		parsed, err := shared.ParseDate("since", payload.Since)
		if err != nil {
			return errors.Join(err, asynq.SkipRetry)
		}
		since = parsed
	}

	logger := j.logger()
	lock, err := shared.AcquireLock(ctx, j.Redis, shared.LedgerScanLockKey(TaskLedgerIntegrityScan), j.LockTTL)
	if errors.Is(err, shared.ErrLockHeld) {
		logger.Info("integrity scan already running, skipping")
		return nil
	}
	if err != nil {
		return err
	}
	defer func() {
		if err := lock.Release(context.WithoutCancel(ctx)); err != nil {
			logger.Warn("release scan lock", slog.Any("error", err))
		}
	}()

	start := j.now()
	tracker := j.metrics().Track(TaskLedgerIntegrityScan)
	imbalances, err := j.Store.FindImbalances(ctx, since)
	if err != nil {
		logger.Error("scan failed", slog.Any("error", err))
		return tracker.End(err)
	}
	for _, im := range imbalances {
		logger.Error("ledger imbalance detected",
			slog.Int64("voucher_id", im.VoucherID),
			slog.String("voucher_number", im.VoucherNumber),
			slog.String("scope", im.Scope.String()),
			slog.String("total_debit", money.Format(im.TotalDebit)),
			slog.String("total_credit", money.Format(im.TotalCredit)),
			slog.String("entry_debit", money.Format(im.EntryDebit)),
			slog.String("entry_credit", money.Format(im.EntryCredit)),
		)
	}
	j.metrics().SetImbalances(len(imbalances))
	logger.Info("completed integrity scan",
		slog.Int("imbalances", len(imbalances)),
		slog.Duration("duration", time.Since(start)),
	)
	return tracker.End(nil)
}

func (j *IntegrityScanJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskLedgerIntegrityScan))
	}
	return slog.Default().With(slog.String("job", TaskLedgerIntegrityScan))
}

func (j *IntegrityScanJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}

func (j *IntegrityScanJob) now() time.Time {
	if j.clock != nil {
		return j.clock()
	}
	return time.Now().UTC()
}
