package ledger

import (
	"context"
	"strconv"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/accounts"
	"github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

// AccountLookup loads accounts by id.
type AccountLookup interface {
	Get(ctx context.Context, id int64) (accounts.Account, error)
}

// Cache stores query results under versioned keys.
type Cache interface {
	BuildKey(ctx context.Context, parts ...string) (string, error)
	FetchJSON(ctx context.Context, key string, dest any, loader func(context.Context) (any, error)) error
}

// Service answers ledger queries.
type Service struct {
	repo     Repository
	accounts AccountLookup
	cache    Cache
	maxLimit int
}

// NewService constructs the query service. cache may be nil.
func NewService(repo Repository, accounts AccountLookup, cache Cache, maxLimit int) *Service {
	return &Service{repo: repo, accounts: accounts, cache: cache, maxLimit: maxLimit}
}

// Query returns the ledger page of filter.AccountID. Without an account id
// no query is issued and an empty result is returned.
func (s *Service) Query(ctx context.Context, filter Filter) (Result, error) {
	filter.Page = shared.NewPageRequest(filter.Page.Page, filter.Page.Limit, s.maxLimit)
	if filter.AccountID == 0 {
		return emptyResult(filter), nil
	}
	if err := filter.Validate(); err != nil {
		return Result{}, err
	}
	if err := shared.AuthorizeScope(ctx, filter.Scope); err != nil {
		return Result{}, err
	}
	account, err := s.accounts.Get(ctx, filter.AccountID)
	if err != nil {
		return Result{}, err
	}
	if !account.Scope.Equal(filter.Scope) {
		return Result{}, accounts.ErrAccountNotFound
	}
	if s.cache == nil {
		return s.load(ctx, account, filter)
	}
	key, err := s.cache.BuildKey(ctx, cacheParts(filter)...)
	if err != nil {
		return s.load(ctx, account, filter)
	}
	var result Result
	err = s.cache.FetchJSON(ctx, key, &result, func(ctx context.Context) (any, error) {
		return s.load(ctx, account, filter)
	})
	return result, err
}

func (s *Service) load(ctx context.Context, account accounts.Account, filter Filter) (Result, error) {
	snap, err := s.repo.Snapshot(ctx, account.ID, filter.StartDate, filter.EndDate, filter.Page.Limit, filter.Page.Offset())
	if err != nil {
		return Result{}, err
	}
	side := account.NormalSide()
	opening, closing, lines, page := Build(side, snap)
	if lines == nil {
		lines = []Line{}
	}
	return Result{
		Account:        &account,
		NormalSide:     side,
		StartDate:      filter.StartDate,
		EndDate:        filter.EndDate,
		OpeningBalance: opening,
		ClosingBalance: closing,
		Totals:         snap.Window,
		PageTotals:     page,
		Lines:          lines,
		Pagination:     shared.NewPagination(filter.Page, snap.WindowCount),
	}, nil
}

func emptyResult(filter Filter) Result {
	return Result{
		StartDate:  filter.StartDate,
		EndDate:    filter.EndDate,
		Lines:      []Line{},
		Pagination: shared.NewPagination(filter.Page, 0),
	}
}

func cacheParts(f Filter) []string {
	return []string{
		"query",
		f.Scope.String(),
		strconv.FormatInt(f.AccountID, 10),
		shared.FormatDate(f.StartDate),
		shared.FormatDate(f.EndDate),
		strconv.Itoa(f.Page.Page),
		strconv.Itoa(f.Page.Limit),
	}
}
