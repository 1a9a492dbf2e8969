package tournament

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidTournamentState = errors.New("invalid tournament state")
	ErrTableNotEmpty          = errors.New("table not empty")
	ErrTableFull              = errors.New("table full")
	ErrSeatOccupied           = errors.New("seat occupied")
	ErrInvalidSeatNumber      = errors.New("invalid seat number")
	ErrPlayerNotActive        = errors.New("player not active")
	ErrRegistrationNotFound   = errors.New("registration not found")
	ErrPartialBalanceFailure  = errors.New("partial balance failure")

	ErrTournamentNotFound = errors.New("tournament not found")
	ErrTableNotFound      = errors.New("table not found")
	ErrTableBroken        = errors.New("table broken")
	ErrAlreadyRegistered  = errors.New("player already registered")
	ErrReasonRequired     = errors.New("reason required")
	ErrRebuyNotAllowed    = errors.New("rebuy not allowed")
	ErrAddonNotAllowed    = errors.New("addon not allowed")
	ErrInvalidAmount      = errors.New("invalid amount")
	ErrInvalidDuration    = errors.New("invalid duration")
	ErrLedgerCorrupt      = errors.New("ledger hash chain broken")
)

// InvalidStateError reports a clock transition rejected for the current status.
type InvalidStateError struct {
	Op     string
	Status ClockStatus
}

func (e *InvalidStateError) Error() string {
	return fmt.Sprintf("invalid state: %s not allowed while %s", e.Op, e.Status)
}

func (e *InvalidStateError) Is(target error) bool { return target == ErrInvalidTournamentState }

func invalidState(op string, status ClockStatus) error {
	return &InvalidStateError{Op: op, Status: status}
}
