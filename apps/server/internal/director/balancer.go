package director

import (
	"context"
	"errors"
	"fmt"
	"log"

	"tourney-lite/apps/server/internal/store"
	"tourney-lite/tournament"
)

func (d *Director) activeTables(ctx context.Context, tournamentID uint64) ([]tournament.Table, error) {
	return d.GetTables(ctx, tournamentID, tournament.TableActive)
}

// CalculateBalancePlan returns the moves that even out the active tables.
// Nothing is applied.
func (d *Director) CalculateBalancePlan(ctx context.Context, tournamentID uint64) ([]tournament.Move, error) {
	tables, err := d.activeTables(ctx, tournamentID)
	if err != nil {
		return nil, err
	}
	return tournament.PlanBalance(tables), nil
}

// SuggestTableBreak reports whether one table can be closed and, if so, the
// evacuation plan for it.
func (d *Director) SuggestTableBreak(ctx context.Context, tournamentID uint64) (tournament.BreakSuggestion, error) {
	tables, err := d.activeTables(ctx, tournamentID)
	if err != nil {
		return tournament.BreakSuggestion{}, err
	}
	return tournament.PlanBreak(tables), nil
}

func (d *Director) GetBalanceStatus(ctx context.Context, tournamentID uint64) (tournament.BalanceStatus, error) {
	tables, err := d.activeTables(ctx, tournamentID)
	if err != nil {
		return tournament.BalanceStatus{}, err
	}
	return tournament.Balance(tables), nil
}

// applyPlanned re-validates one planned move against current state and
// applies it.
func (o *op) applyPlanned(m tournament.Move) error {
	cur, err := o.tx.FindSeat(o.ctx, m.RegistrationID)
	if errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("%w: registration %d is not seated", errStaleMove, m.RegistrationID)
	}
	if err != nil {
		return err
	}
	if cur != m.From {
		return fmt.Errorf("%w: registration %d sits at %s, plan expected %s", errStaleMove, m.RegistrationID, cur, m.From)
	}
	if m.To.TableID == m.From.TableID {
		return fmt.Errorf("%w: move stays on table %d", errStaleMove, m.From.TableID)
	}
	_, err = o.move(m.RegistrationID, m.To)
	return err
}

// isMoveFailure separates per-move rejections from storage errors, which
// abort the whole execution.
func isMoveFailure(err error) bool {
	for _, sentinel := range []error{
		errStaleMove,
		tournament.ErrSeatOccupied,
		tournament.ErrTableFull,
		tournament.ErrInvalidSeatNumber,
		tournament.ErrPlayerNotActive,
		tournament.ErrRegistrationNotFound,
		tournament.ErrTableNotFound,
		tournament.ErrTableBroken,
	} {
		if errors.Is(err, sentinel) {
			return true
		}
	}
	return false
}

func (o *op) applyPlan(moves []tournament.Move, result *BalanceResult) error {
	for _, m := range moves {
		err := o.applyPlanned(m)
		switch {
		case err == nil:
			result.Applied = append(result.Applied, m)
		case isMoveFailure(err):
			result.Failed = append(result.Failed, MoveFailure{Move: m, Reason: err.Error(), Err: err})
		default:
			return err
		}
	}
	return nil
}

// ExecuteBalance applies moves one by one. Moves invalidated since planning
// are skipped and reported; the rest are committed. A *PartialFailureError
// accompanies the result when anything was skipped.
func (d *Director) ExecuteBalance(ctx context.Context, tournamentID, actor uint64, moves []tournament.Move) (BalanceResult, error) {
	result := BalanceResult{Applied: []tournament.Move{}, Failed: []MoveFailure{}}
	snap, err := d.run(ctx, tournamentID, actor, modeMutate, func(o *op) error {
		result.Applied, result.Failed = result.Applied[:0], result.Failed[:0]
		return o.applyPlan(moves, &result)
	})
	if err != nil {
		return BalanceResult{}, err
	}
	result.State = snap
	log.Printf("[Director] balance executed: tournament=%d applied=%d failed=%d", tournamentID, len(result.Applied), len(result.Failed))
	if !result.Complete() {
		return result, &PartialFailureError{Result: result}
	}
	return result, nil
}

// ExecuteTableBreak evacuates tableID with moves and then breaks it. If any
// occupant is left behind the landed moves stay committed, the table stays
// active, and the error matches both ErrPartialBalanceFailure and
// ErrTableNotEmpty.
func (d *Director) ExecuteTableBreak(ctx context.Context, tournamentID, actor, tableID uint64, moves []tournament.Move) (BalanceResult, error) {
	result := BalanceResult{Applied: []tournament.Move{}, Failed: []MoveFailure{}}
	var leftBehind int
	snap, err := d.run(ctx, tournamentID, actor, modeMutate, func(o *op) error {
		result.Applied, result.Failed, result.Broken = result.Applied[:0], result.Failed[:0], false
		t, err := o.table(tableID)
		if err != nil {
			return err
		}
		if t.Status != tournament.TableActive {
			return fmt.Errorf("%w: table %d", tournament.ErrTableBroken, tableID)
		}
		evacuating := make([]tournament.Move, 0, len(moves))
		for _, m := range moves {
			if m.From.TableID != tableID {
				result.Failed = append(result.Failed, MoveFailure{
					Move:   m,
					Reason: fmt.Sprintf("move does not leave table %d", tableID),
					Err:    errStaleMove,
				})
				continue
			}
			evacuating = append(evacuating, m)
		}
		if err := o.applyPlan(evacuating, &result); err != nil {
			return err
		}
		t, err = o.table(tableID)
		if err != nil {
			return err
		}
		if leftBehind = t.Occupied(); leftBehind > 0 {
			return nil
		}
		if err := o.breakTable(tableID); err != nil {
			return err
		}
		result.Broken = true
		return nil
	})
	if err != nil {
		return BalanceResult{}, err
	}
	result.State = snap
	log.Printf("[Director] table break executed: tournament=%d table=%d applied=%d failed=%d broken=%t",
		tournamentID, tableID, len(result.Applied), len(result.Failed), result.Broken)
	if leftBehind > 0 {
		return result, &PartialFailureError{
			Result: result,
			Cause:  fmt.Errorf("%w: table %d still has %d players", tournament.ErrTableNotEmpty, tableID, leftBehind),
		}
	}
	if !result.Complete() {
		return result, &PartialFailureError{Result: result}
	}
	return result, nil
}
