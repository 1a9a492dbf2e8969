package director

import (
	"errors"
	"fmt"

	"tourney-lite/tournament"
)

var errStaleMove = errors.New("player no longer at planned seat")

func notFound(sentinel error, what string, id uint64) error {
	return fmt.Errorf("%w: %s %d", sentinel, what, id)
}

// MoveFailure is a planned move that was skipped at apply time.
type MoveFailure struct {
	Move   tournament.Move `json:"move"`
	Reason string          `json:"reason"`
	Err    error           `json:"-"`
}

// BalanceResult reports, move by move, what a balance or break execution did.
type BalanceResult struct {
	Applied []tournament.Move   `json:"applied"`
	Failed  []MoveFailure       `json:"failed"`
	Broken  bool                `json:"table_broken,omitempty"`
	State   tournament.Snapshot `json:"state"`
}

func (r BalanceResult) Complete() bool { return len(r.Failed) == 0 }

// PartialFailureError is returned alongside a BalanceResult whose moves did
// not all land. The applied moves are committed.
type PartialFailureError struct {
	Result BalanceResult
	// Cause is set when the partial result also blocked a follow-up step,
	// such as breaking a table that still has occupants.
	Cause error
}

func (e *PartialFailureError) Error() string {
	msg := fmt.Sprintf("%s: %d applied, %d failed", tournament.ErrPartialBalanceFailure,
		len(e.Result.Applied), len(e.Result.Failed))
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *PartialFailureError) Is(target error) bool {
	return target == tournament.ErrPartialBalanceFailure
}

func (e *PartialFailureError) Unwrap() error { return e.Cause }
