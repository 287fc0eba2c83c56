package vouchers

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/money"
	"github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

// Invalidator drops cached ledger reads once balances change.
type Invalidator interface {
	Bump(ctx context.Context) error
}

// Recorder observes voucher lifecycle outcomes.
type Recorder interface {
	ObserveVoucher(action string, err error)
}

// Service coordinates creating, posting and reversing vouchers.
type Service struct {
	repo   RepositoryPort
	cache  Invalidator
	stats  Recorder
	logger *slog.Logger
	now    func() time.Time
}

// NewService constructs the voucher engine.
func NewService(repo RepositoryPort, cache Invalidator, stats Recorder) *Service {
	return &Service{repo: repo, cache: cache, stats: stats, now: time.Now}
}

// WithLogger sets the logger used for non-fatal failures.
func (s *Service) WithLogger(logger *slog.Logger) *Service {
	s.logger = logger
	return s
}

// WithNow overrides the clock for testing.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// Create stores a DRAFT voucher. Balance is not enforced until posting.
func (s *Service) Create(ctx context.Context, in CreateInput) (voucher Voucher, err error) {
	defer func() { s.observe("create", err) }()
	in.Narration = shared.NormalizeText(in.Narration)
	in.InternalNotes = shared.NormalizeText(in.InternalNotes)
	in.SourceModule = shared.NormalizeText(in.SourceModule)
	if err := in.Validate(); err != nil {
		return Voucher{}, err
	}
	if err := shared.AuthorizeScope(ctx, in.Scope); err != nil {
		return Voucher{}, err
	}
	actor := shared.ActorFromContext(ctx)
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		period, err := tx.LockPeriod(ctx, in.PeriodID)
		if err != nil {
			return err
		}
		if !period.Scope.Equal(in.Scope) {
			return shared.NewValidationError("periodId", "period belongs to another scope")
		}
		if err := period.CheckPostable(in.Date); err != nil {
			return err
		}
		ids := make([]int64, 0, len(in.Entries))
		for _, e := range in.Entries {
			ids = append(ids, e.AccountID)
		}
		accts, err := tx.GetAccounts(ctx, ids)
		if err != nil {
			return err
		}
		verr := &shared.ValidationError{}
		entries := make([]Entry, 0, len(in.Entries))
		for idx, e := range in.Entries {
			field := fmt.Sprintf("entries[%d].accountId", idx)
			acct, ok := accts[e.AccountID]
			switch {
			case !ok || !acct.Scope.Equal(in.Scope):
				verr.Add(field, "account not found in this scope")
			case !acct.IsActive:
				verr.Add(field, "account inactive")
			}
			entries = append(entries, Entry{
				AccountID:   e.AccountID,
				AccountCode: acct.Code,
				AccountName: acct.Name,
				Description: shared.NormalizeText(e.Description),
				Debit:       e.Debit,
				Credit:      e.Credit,
			})
		}
		if err := verr.Err(); err != nil {
			return err
		}
		seq, err := tx.NextSequence(ctx, in.Type, in.Date.Year())
		if err != nil {
			return err
		}
		debit, credit := ComputeTotals(entries)
		draft := Voucher{
			Number:        FormatNumber(in.Type, in.Date.Year(), seq),
			Type:          in.Type,
			Date:          in.Date,
			PeriodID:      in.PeriodID,
			Narration:     in.Narration,
			InternalNotes: in.InternalNotes,
			Scope:         in.Scope,
			Status:        StatusDraft,
			TotalDebit:    debit,
			TotalCredit:   credit,
			CreatedBy:     actor.ID,
		}
		if in.SourceModule != "" {
			module, ref := in.SourceModule, in.SourceID
			draft.SourceModule = &module
			draft.SourceID = &ref
		}
		inserted, err := tx.InsertVoucher(ctx, draft)
		if err != nil {
			return err
		}
		inserted.Entries, err = tx.InsertEntries(ctx, inserted.ID, inserted.Date, entries)
		if err != nil {
			return err
		}
		voucher = inserted
		return tx.RecordAudit(ctx, s.auditLog(actor.ID, "voucher.create", voucher, map[string]any{
			"number":       voucher.Number,
			"total_debit":  money.Format(voucher.TotalDebit),
			"total_credit": money.Format(voucher.TotalCredit),
		}))
	})
	if err != nil {
		return Voucher{}, err
	}
	return voucher, nil
}

// Get returns a voucher with its entries.
func (s *Service) Get(ctx context.Context, id int64) (Voucher, error) {
	if id <= 0 {
		return Voucher{}, shared.NewValidationError("id", "must be positive")
	}
	v, err := s.repo.Get(ctx, id)
	if err != nil {
		return Voucher{}, err
	}
	if err := shared.AuthorizeScope(ctx, v.Scope); err != nil {
		return Voucher{}, err
	}
	return v, nil
}

// List returns voucher headers of a scope.
func (s *Service) List(ctx context.Context, filter ListFilter) ([]Voucher, shared.Pagination, error) {
	if err := filter.Scope.Validate(); err != nil {
		return nil, shared.Pagination{}, err
	}
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, shared.Pagination{}, shared.NewValidationError("status", "must be one of DRAFT POSTED REVERSED")
	}
	if err := shared.AuthorizeScope(ctx, filter.Scope); err != nil {
		return nil, shared.Pagination{}, err
	}
	filter.Page = shared.NewPageRequest(filter.Page.Page, filter.Page.Limit, 0)
	items, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, shared.Pagination{}, err
	}
	return items, shared.NewPagination(filter.Page, total), nil
}

// Post transitions a DRAFT voucher to POSTED. Totals are recomputed from the
// entries inside the transaction and must balance.
func (s *Service) Post(ctx context.Context, id int64) (voucher Voucher, err error) {
	defer func() { s.observe("post", err) }()
	if id <= 0 {
		return Voucher{}, shared.NewValidationError("id", "must be positive")
	}
	actor := shared.ActorFromContext(ctx)
	if actor == nil {
		return Voucher{}, shared.ErrUnauthorized
	}
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		current, err := tx.GetVoucherForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if err := shared.AuthorizeScope(ctx, current.Scope); err != nil {
			return err
		}
		period, err := tx.LockPeriod(ctx, current.PeriodID)
		if err != nil {
			return err
		}
		if err := current.CheckPostable(); err != nil {
			return err
		}
		if err := period.CheckPostable(current.Date); err != nil {
			return err
		}
		debit, credit := ComputeTotals(current.Entries)
		at := s.now()
		if err := tx.MarkPosted(ctx, current.ID, debit, credit, at); err != nil {
			return err
		}
		current.Status = StatusPosted
		current.TotalDebit = debit
		current.TotalCredit = credit
		current.PostingDate = &at
		current.LockedAt = &at
		current.UpdatedAt = at
		voucher = current
		return tx.RecordAudit(ctx, s.auditLog(actor.ID, "voucher.post", voucher, map[string]any{"number": voucher.Number}))
	})
	if err != nil {
		return Voucher{}, err
	}
	s.invalidate(ctx)
	return voucher, nil
}

// Reverse creates a POSTED offsetting voucher and marks the original REVERSED.
// The offsetting voucher is dated on the original date inside the same
// period, which must still be open.
func (s *Service) Reverse(ctx context.Context, id int64, reason string) (voucher Voucher, err error) {
	defer func() { s.observe("reverse", err) }()
	if id <= 0 {
		return Voucher{}, shared.NewValidationError("id", "must be positive")
	}
	reason = shared.NormalizeText(reason)
	if reason == "" {
		return Voucher{}, ErrReasonRequired
	}
	actor := shared.ActorFromContext(ctx)
	if actor == nil {
		return Voucher{}, shared.ErrUnauthorized
	}
	var reversal Voucher
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		original, err := tx.GetVoucherForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if err := shared.AuthorizeScope(ctx, original.Scope); err != nil {
			return err
		}
		if err := original.CheckReversible(); err != nil {
			return err
		}
		period, err := tx.LockPeriod(ctx, original.PeriodID)
		if err != nil {
			return err
		}
		if err := period.CheckPostable(original.Date); err != nil {
			return err
		}
		seq, err := tx.NextSequence(ctx, original.Type, original.Date.Year())
		if err != nil {
			return err
		}
		at := s.now()
		lines := reverseEntries(original.Entries)
		debit, credit := ComputeTotals(lines)
		originalID := original.ID
		reversal = Voucher{
			Number:       FormatNumber(original.Type, original.Date.Year(), seq),
			Type:         original.Type,
			Date:         original.Date,
			PeriodID:     original.PeriodID,
			Narration:    fmt.Sprintf("Reversal of %s: %s", original.Number, reason),
			Scope:        original.Scope,
			Status:       StatusPosted,
			TotalDebit:   debit,
			TotalCredit:  credit,
			ReversalOfID: &originalID,
			CreatedBy:    actor.ID,
			PostingDate:  &at,
			LockedAt:     &at,
		}
		reversal, err = tx.InsertVoucher(ctx, reversal)
		if err != nil {
			return err
		}
		reversal.Entries, err = tx.InsertEntries(ctx, reversal.ID, reversal.Date, lines)
		if err != nil {
			return err
		}
		if err := tx.MarkReversed(ctx, original.ID, reversal.ID, actor.ID, reason, at); err != nil {
			return err
		}
		reversalID := reversal.ID
		actorID := actor.ID
		original.Status = StatusReversed
		original.IsReversed = true
		original.ReversalVoucherID = &reversalID
		original.ReversalReason = &reason
		original.ReversedAt = &at
		original.ReversedBy = &actorID
		original.UpdatedAt = at
		voucher = original
		return tx.RecordAudit(ctx, s.auditLog(actor.ID, "voucher.reverse", voucher, map[string]any{
			"number":          voucher.Number,
			"reversal_id":     reversal.ID,
			"reversal_number": reversal.Number,
			"reason":          reason,
		}))
	})
	if err != nil {
		return Voucher{}, err
	}
	s.invalidate(ctx)
	return voucher, nil
}

func reverseEntries(entries []Entry) []Entry {
	out := make([]Entry, 0, len(entries))
	for _, e := range entries {
		out = append(out, Entry{
			AccountID:   e.AccountID,
			AccountCode: e.AccountCode,
			AccountName: e.AccountName,
			Description: e.Description,
			Debit:       e.Credit,
			Credit:      e.Debit,
		})
	}
	return out
}

func (s *Service) invalidate(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Bump(context.WithoutCancel(ctx)); err != nil {
		s.log().Warn("ledger cache bump failed, cached reads may be stale until TTL",
			slog.Any("error", err))
	}
}

func (s *Service) log() *slog.Logger {
	if s.logger != nil {
		return s.logger
	}
	return slog.Default()
}

func (s *Service) observe(action string, err error) {
	if s.stats != nil {
		s.stats.ObserveVoucher(action, err)
	}
}

func (s *Service) auditLog(actorID int64, action string, v Voucher, meta map[string]any) shared.AuditLog {
	return shared.AuditLog{
		ActorID:  actorID,
		Action:   action,
		Entity:   "voucher",
		EntityID: fmt.Sprintf("%d", v.ID),
		Scope:    v.Scope.String(),
		Meta:     meta,
		At:       s.now(),
	}
}
