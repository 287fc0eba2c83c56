package reports

import (
	"context"

	"github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

// Service builds reports for a scope.
type Service struct {
	repo Repository
}

// NewService constructs the report service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// TrialBalance aggregates posted entries of every account in the scope.
func (s *Service) TrialBalance(ctx context.Context, filter Filter) (TrialBalance, error) {
	if err := filter.Validate(); err != nil {
		return TrialBalance{}, err
	}
	if err := shared.AuthorizeScope(ctx, filter.Scope); err != nil {
		return TrialBalance{}, err
	}
	balances, err := s.repo.AccountBalances(ctx, filter.Scope, filter.StartDate, filter.EndDate)
	if err != nil {
		return TrialBalance{}, err
	}
	tb := BuildTrialBalance(balances)
	tb.Filter = filter
	return tb, nil
}
