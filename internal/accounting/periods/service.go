package periods

import (
	"context"
	"fmt"
	"time"

	"github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

// Service manages accounting period lifecycle.
type Service struct {
	repo RepositoryPort
	now  func() time.Time
}

// NewService constructs the period service.
func NewService(repo RepositoryPort) *Service {
	return &Service{repo: repo, now: time.Now}
}

// WithNow overrides the clock for testing.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// Create opens a new period for the scope.
func (s *Service) Create(ctx context.Context, in CreateInput) (Period, error) {
	in.Name = shared.NormalizeText(in.Name)
	if err := in.Validate(); err != nil {
		return Period{}, err
	}
	actor := shared.ActorFromContext(ctx)
	if err := shared.AuthorizeScope(ctx, in.Scope); err != nil {
		return Period{}, err
	}
	in.ActorID = actor.ID
	var period Period
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if err := tx.LockScope(ctx, in.Scope); err != nil {
			return err
		}
		overlap, err := tx.HasOverlap(ctx, in.Scope, in.StartDate, in.EndDate)
		if err != nil {
			return err
		}
		if overlap {
			return ErrPeriodOverlap
		}
		period, err = tx.InsertPeriod(ctx, in)
		if err != nil {
			return err
		}
		return tx.RecordAudit(ctx, s.auditLog(actor.ID, "period.create", period, map[string]any{
			"start_date": shared.FormatDate(period.StartDate),
			"end_date":   shared.FormatDate(period.EndDate),
		}))
	})
	if err != nil {
		return Period{}, err
	}
	return period, nil
}

// Close irreversibly closes the period. A second call fails with an invalid state error.
func (s *Service) Close(ctx context.Context, periodID int64) (Period, error) {
	if periodID <= 0 {
		return Period{}, shared.NewValidationError("id", "must be positive")
	}
	actor := shared.ActorFromContext(ctx)
	if actor == nil {
		return Period{}, shared.ErrUnauthorized
	}
	var period Period
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		current, err := tx.GetPeriodForUpdate(ctx, periodID)
		if err != nil {
			return err
		}
		if err := shared.AuthorizeScope(ctx, current.Scope); err != nil {
			return err
		}
		if err := shared.ValidatePeriodTransition(current.State(), shared.PeriodStateClosed); err != nil {
			return ErrPeriodAlreadyClosed
		}
		period, err = tx.MarkClosed(ctx, periodID, actor.ID, s.now())
		if err != nil {
			return err
		}
		return tx.RecordAudit(ctx, s.auditLog(actor.ID, "period.close", period, nil))
	})
	if err != nil {
		return Period{}, err
	}
	return period, nil
}

// List returns the periods of scope ordered by start date.
func (s *Service) List(ctx context.Context, scope shared.Scope) ([]Period, error) {
	if err := scope.Validate(); err != nil {
		return nil, err
	}
	if err := shared.AuthorizeScope(ctx, scope); err != nil {
		return nil, err
	}
	return s.repo.List(ctx, scope)
}

// Get returns one period the actor may see.
func (s *Service) Get(ctx context.Context, id int64) (Period, error) {
	if id <= 0 {
		return Period{}, shared.NewValidationError("id", "must be positive")
	}
	period, err := s.repo.Get(ctx, id)
	if err != nil {
		return Period{}, err
	}
	if err := shared.AuthorizeScope(ctx, period.Scope); err != nil {
		return Period{}, err
	}
	return period, nil
}

func (s *Service) auditLog(actorID int64, action string, p Period, meta map[string]any) shared.AuditLog {
	return shared.AuditLog{
		ActorID:  actorID,
		Action:   action,
		Entity:   "accounting_period",
		EntityID: fmt.Sprintf("%d", p.ID),
		Scope:    p.Scope.String(),
		Meta:     meta,
		At:       s.now(),
	}
}
