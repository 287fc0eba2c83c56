package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	jobmetrics "github.com/odyssey-erp/odyssey-ledger/internal/jobs"
	"github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

type stubIntegrityStore struct {
	calls int
	since time.Time
	found []Imbalance
	err   error
}

func (s *stubIntegrityStore) FindImbalances(ctx context.Context, since time.Time) ([]Imbalance, error) {
	s.calls++
	s.since = since
	return s.found, s.err
}

func newRedis(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return client, mr
}

func TestIntegrityScanReportsImbalances(t *testing.T) {
	client, mr := newRedis(t)
	store := &stubIntegrityStore{found: []Imbalance{{
		VoucherID:     7,
		VoucherNumber: "JV-2024-000007",
		Scope:         shared.AdminScope(),
		TotalDebit:    decimal.RequireFromString("100"),
		TotalCredit:   decimal.RequireFromString("100"),
		EntryDebit:    decimal.RequireFromString("100"),
		EntryCredit:   decimal.RequireFromString("90"),
	}}}
	job := NewIntegrityScanJob(store, client, nil, jobmetrics.NewMetrics(prometheus.NewRegistry()))

	task, err := NewIntegrityScanTask(IntegrityScanPayload{Since: "2024-01-01"})
	require.NoError(t, err)
	require.NoError(t, job.Handle(context.Background(), task))
	assert.Equal(t, 1, store.calls)
	assert.Equal(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), store.since)
	assert.False(t, mr.Exists(shared.LedgerScanLockKey(TaskLedgerIntegrityScan)), "lock must be released")
}

func TestIntegrityScanSkipsWhenLockHeld(t *testing.T) {
	client, mr := newRedis(t)
	require.NoError(t, mr.Set(shared.LedgerScanLockKey(TaskLedgerIntegrityScan), "other-worker"))
	store := &stubIntegrityStore{}
	job := NewIntegrityScanJob(store, client, nil, jobmetrics.NewMetrics(prometheus.NewRegistry()))

	require.NoError(t, job.Handle(context.Background(), asynq.NewTask(TaskLedgerIntegrityScan, nil)))
	assert.Zero(t, store.calls)
	got, err := mr.Get(shared.LedgerScanLockKey(TaskLedgerIntegrityScan))
	require.NoError(t, err)
	assert.Equal(t, "other-worker", got)
}

func TestIntegrityScanRejectsBadPayload(t *testing.T) {
	client, _ := newRedis(t)
	job := NewIntegrityScanJob(&stubIntegrityStore{}, client, nil, jobmetrics.NewMetrics(prometheus.NewRegistry()))

	err := job.Handle(context.Background(), asynq.NewTask(TaskLedgerIntegrityScan, []byte("{")))
	assert.ErrorIs(t, err, asynq.SkipRetry)

	raw, _ := json.Marshal(IntegrityScanPayload{Since: "yesterday"})
	err = job.Handle(context.Background(), asynq.NewTask(TaskLedgerIntegrityScan, raw))
	assert.ErrorIs(t, err, asynq.SkipRetry)
	assert.ErrorIs(t, err, shared.ErrValidation)
}

func TestIntegrityScanPropagatesStoreErrors(t *testing.T) {
	client, mr := newRedis(t)
	store := &stubIntegrityStore{err: errors.New("db down")}
	job := NewIntegrityScanJob(store, client, nil, jobmetrics.NewMetrics(prometheus.NewRegistry()))

	err := job.Handle(context.Background(), asynq.NewTask(TaskLedgerIntegrityScan, nil))
	assert.EqualError(t, err, "db down")
	assert.False(t, mr.Exists(shared.LedgerScanLockKey(TaskLedgerIntegrityScan)))
}

type stubCleaner struct {
	olderThan time.Duration
}

func (s *stubCleaner) Cleanup(ctx context.Context, olderThan time.Duration) (int64, error) {
	s.olderThan = olderThan
	return 4, nil
}

func TestIdempotencyCleanupUsesRetention(t *testing.T) {
	cleaner := &stubCleaner{}
	job := NewIdempotencyCleanupJob(cleaner, 48*time.Hour, nil, jobmetrics.NewMetrics(prometheus.NewRegistry()))

	task, err := NewIdempotencyCleanupTask(IdempotencyCleanupPayload{})
	require.NoError(t, err)
	require.NoError(t, job.Handle(context.Background(), task))
	assert.Equal(t, 48*time.Hour, cleaner.olderThan)

	task, err = NewIdempotencyCleanupTask(IdempotencyCleanupPayload{OlderThan: time.Hour})
	require.NoError(t, err)
	require.NoError(t, job.Handle(context.Background(), task))
	assert.Equal(t, time.Hour, cleaner.olderThan)
}

func TestNewTaskByName(t *testing.T) {
	task, err := NewTask(TaskIdempotencyCleanup)
	require.NoError(t, err)
	assert.Equal(t, TaskIdempotencyCleanup, task.Type())

	_, err = NewTask("mail:send")
	assert.Error(t, err)
}

type stubInspector struct {
	info *asynq.QueueInfo
	err  error
}

func (s stubInspector) GetQueueInfo(queue string) (*asynq.QueueInfo, error) {
	return s.info, s.err
}

func TestJobsHealth(t *testing.T) {
	serve := func(inspector QueueInspector) *httptest.ResponseRecorder {
		r := chi.NewRouter()
		r.Route("/jobs", NewHandler(inspector, nil).MountRoutes)
		rr := httptest.NewRecorder()
		r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/jobs/health", nil))
		return rr
	}

	rr := serve(stubInspector{info: &asynq.QueueInfo{Queue: QueueDefault, Pending: 3, Retry: 1}})
	require.Equal(t, http.StatusOK, rr.Code)
	var body queueHealth
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(t, 3, body.Pending)
	assert.Equal(t, 1, body.Retry)

	rr = serve(nil)
	assert.Equal(t, http.StatusOK, rr.Code)

	rr = serve(stubInspector{err: errors.New("redis down")})
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
}
