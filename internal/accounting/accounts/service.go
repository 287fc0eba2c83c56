package accounts

import (
	"context"

	"github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

// Service exposes read access to the chart of accounts.
type Service struct {
	repo Repository
}

// NewService constructs the service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// List returns the accounts of scope ordered by code.
func (s *Service) List(ctx context.Context, scope shared.Scope) ([]Account, error) {
	if err := scope.Validate(); err != nil {
		return nil, err
	}
	if err := shared.AuthorizeScope(ctx, scope); err != nil {
		return nil, err
	}
	return s.repo.List(ctx, scope)
}

// Get returns one account the actor may see.
func (s *Service) Get(ctx context.Context, id int64) (Account, error) {
	if id <= 0 {
		return Account{}, shared.NewValidationError("id", "must be positive")
	}
	account, err := s.repo.Get(ctx, id)
	if err != nil {
		return Account{}, err
	}
	if err := shared.AuthorizeScope(ctx, account.Scope); err != nil {
		return Account{}, err
	}
	return account, nil
}
