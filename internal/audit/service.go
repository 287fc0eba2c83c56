package audit

import (
	"context"
	"fmt"

	"github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

const (
	defaultPageSize = 20
	maxPageSize     = 50
)

// Service reads the audit trail for the actor's scope.
type Service struct {
	repo Repository
}

// NewService builds the audit timeline service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Timeline returns one page of audit records.
func (s *Service) Timeline(ctx context.Context, f TimelineFilters) (Result, error) {
	if s.repo == nil {
		return Result{}, fmt.Errorf("audit: repository not configured")
	}
	if err := f.Validate(); err != nil {
		return Result{}, err
	}
	if err := shared.AuthorizeScope(ctx, f.Scope); err != nil {
		return Result{}, err
	}
	limit := f.Page.Limit
	if limit <= 0 {
		limit = defaultPageSize
	}
	f.Page = shared.NewPageRequest(f.Page.Page, limit, maxPageSize)
	f.Entity = shared.NormalizeText(f.Entity)
	f.EntityID = shared.NormalizeText(f.EntityID)
	f.Action = shared.NormalizeText(f.Action)
	rows, total, err := s.repo.Timeline(ctx, f)
	if err != nil {
		return Result{}, err
	}
	if rows == nil {
		rows = []TimelineRow{}
	}
	return Result{Rows: rows, Paging: shared.NewPagination(f.Page, total)}, nil
}
