package shared

// Ledger permissions declared for RBAC.
const (
	PermLedgerRead         = "ledger.read"
	PermLedgerPeriodManage = "ledger.period.manage"
	PermLedgerVoucherWrite = "ledger.voucher.write"
	PermLedgerVoucherPost  = "ledger.voucher.post"
	PermLedgerReverse      = "ledger.voucher.reverse"
)

// LedgerScopes lists all permissions related to the ledger module.
func LedgerScopes() []string {
	return []string{
		PermLedgerRead,
		PermLedgerPeriodManage,
		PermLedgerVoucherWrite,
		PermLedgerVoucherPost,
		PermLedgerReverse,
	}
}
