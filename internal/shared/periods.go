package shared

import "fmt"

// Period states reused outside the periods package.
const (
	PeriodStateOpen   = "OPEN"
	PeriodStateClosed = "CLOSED"
)

// ErrInvalidPeriodTransition indicates status change not allowed.
var ErrInvalidPeriodTransition = fmt.Errorf("%w: period transition invalid", ErrInvalidState)

// ValidatePeriodTransition checks transitions according to policy. Closing
// is terminal: there is no reopen.
func ValidatePeriodTransition(current, target string) error {
	if current == PeriodStateOpen && target == PeriodStateClosed {
		return nil
	}
	return ErrInvalidPeriodTransition
}
