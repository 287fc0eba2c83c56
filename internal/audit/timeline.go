// Package audit serves the ledger audit trail recorded by period and
// voucher mutations.
package audit

import (
	"time"

	"github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

// TimelineFilters narrows the audit trail. Scope is mandatory; the other
// filters are optional.
type TimelineFilters struct {
	Scope    shared.Scope
	Entity   string
	EntityID string
	Action   string
	From     time.Time
	To       time.Time
	Page     shared.PageRequest
}

// Validate checks the scope and the time window.
func (f TimelineFilters) Validate() error {
	verr := &shared.ValidationError{}
	verr.Merge("entityType", f.Scope.Validate())
	if !f.From.IsZero() && !f.To.IsZero() && f.To.Before(f.From) {
		verr.Add("to", "must not be before from")
	}
	return verr.Err()
}

// TimelineRow is one audit record.
type TimelineRow struct {
	ID       int64
	At       time.Time
	ActorID  int64
	Action   string
	Entity   string
	EntityID string
	Scope    string
	Meta     map[string]any
}

// Result bundles a page of rows with its pagination.
type Result struct {
	Rows   []TimelineRow
	Paging shared.Pagination
}
