package jobs

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/odyssey-erp/odyssey-ledger/internal/jobs"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskLedgerIntegrityScan checks every posted voucher for balance.
	TaskLedgerIntegrityScan = "ledger:integrity_scan"
	// TaskIdempotencyCleanup purges expired idempotency keys.
	TaskIdempotencyCleanup = "idempotency:cleanup"
)

var defaultJobMetrics = jobmetrics.NewMetrics(nil)

// IntegrityScanPayload bounds the scan to vouchers posted on or after Since.
// An empty Since scans the whole ledger.
type IntegrityScanPayload struct {
	Since string `json:"since,omitempty"`
}

// NewIntegrityScanTask constructs the integrity scan task.
func NewIntegrityScanTask(payload IntegrityScanPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskLedgerIntegrityScan, data), nil
}

// IdempotencyCleanupPayload overrides the configured retention when set.
type IdempotencyCleanupPayload struct {
	OlderThan time.Duration `json:"olderThan,omitempty"`
}

// NewIdempotencyCleanupTask constructs the cleanup task.
func NewIdempotencyCleanupTask(payload IdempotencyCleanupPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskIdempotencyCleanup, data), nil
}

// NewTask builds a task by name with an empty payload.
func NewTask(name string) (*asynq.Task, error) {
	switch name {
	case TaskLedgerIntegrityScan:
		return NewIntegrityScanTask(IntegrityScanPayload{})
	case TaskIdempotencyCleanup:
		return NewIdempotencyCleanupTask(IdempotencyCleanupPayload{})
	default:
		return nil, fmt.Errorf("jobs: unknown task %q", name)
	}
}
