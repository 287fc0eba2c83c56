package periods

import (
	"fmt"
	"time"

	"github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

// PeriodType classifies the length of a fiscal period.
type PeriodType string

const (
	PeriodTypeMonthly   PeriodType = "MONTHLY"
	PeriodTypeQuarterly PeriodType = "QUARTERLY"
	PeriodTypeYearly    PeriodType = "YEARLY"
	PeriodTypeCustom    PeriodType = "CUSTOM"
)

// Valid reports whether t is a known period type.
func (t PeriodType) Valid() bool {
	switch t {
	case PeriodTypeMonthly, PeriodTypeQuarterly, PeriodTypeYearly, PeriodTypeCustom:
		return true
	}
	return false
}

var (
	// ErrPeriodNotFound indicates the period does not exist.
	ErrPeriodNotFound = fmt.Errorf("%w: accounting period", shared.ErrNotFound)
	// ErrPeriodClosed indicates a write into a closed period.
	ErrPeriodClosed = fmt.Errorf("%w: accounting period is closed", shared.ErrInvalidState)
	// ErrPeriodAlreadyClosed indicates a second close call.
	ErrPeriodAlreadyClosed = fmt.Errorf("%w: accounting period already closed", shared.ErrInvalidPeriodTransition)
	// ErrPeriodOverlap indicates the range collides with another open period of the scope.
	ErrPeriodOverlap = shared.NewValidationError("startDate", "overlaps another open period in this scope")
	// ErrDateOutsidePeriod indicates a voucher date outside the period window.
	ErrDateOutsidePeriod = shared.NewValidationError("voucherDate", "outside the accounting period")
)

// Period represents a fiscal period window. StartDate and EndDate are both inclusive.
type Period struct {
	ID        int64
	Name      string
	Type      PeriodType
	StartDate time.Time
	EndDate   time.Time
	Scope     shared.Scope
	IsActive  bool
	IsClosed  bool
	ClosedAt  *time.Time
	ClosedBy  *int64
	CreatedBy *int64
	CreatedAt time.Time
	UpdatedAt time.Time
}

// State maps the flags onto the period state machine.
func (p Period) State() string {
	if p.IsClosed {
		return shared.PeriodStateClosed
	}
	return shared.PeriodStateOpen
}

// Contains reports whether date falls inside the period.
func (p Period) Contains(date time.Time) bool {
	d := truncateDate(date)
	return !d.Before(truncateDate(p.StartDate)) && !d.After(truncateDate(p.EndDate))
}

// CheckPostable fails when the period cannot accept a voucher dated date.
func (p Period) CheckPostable(date time.Time) error {
	if p.IsClosed {
		return ErrPeriodClosed
	}
	if !p.Contains(date) {
		return ErrDateOutsidePeriod
	}
	return nil
}

// CreateInput captures validation rules for new periods.
type CreateInput struct {
	Name      string
	Type      PeriodType
	StartDate time.Time
	EndDate   time.Time
	Scope     shared.Scope
	ActorID   int64
}

// Validate ensures the create period input is coherent. The date range
// check runs regardless of other failures.
func (in CreateInput) Validate() error {
	verr := &shared.ValidationError{}
	if shared.NormalizeText(in.Name) == "" {
		verr.Add("periodName", "required")
	}
	if !in.Type.Valid() {
		verr.Add("periodType", "must be one of MONTHLY QUARTERLY YEARLY CUSTOM")
	}
	if in.StartDate.IsZero() {
		verr.Add("startDate", "required")
	}
	if in.EndDate.IsZero() {
		verr.Add("endDate", "required")
	}
	if !in.StartDate.IsZero() && !in.EndDate.IsZero() && !in.StartDate.Before(in.EndDate) {
		verr.Add("endDate", "must be after startDate")
	}
	verr.Merge("entityType", in.Scope.Validate())
	return verr.Err()
}

func truncateDate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
