package director

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"tourney-lite/apps/server/internal/events"
	"tourney-lite/apps/server/internal/ledger"
	"tourney-lite/apps/server/internal/store"
	"tourney-lite/tournament"
)

// PlayerResult is the outcome of one player operation. Transaction is nil for
// operations that do not touch the ledger.
type PlayerResult struct {
	Registration tournament.Registration `json:"registration"`
	Transaction  *tournament.Transaction `json:"transaction,omitempty"`
	State        tournament.Snapshot     `json:"state"`
}

type withdrawal struct {
	PlayerID uint64 `json:"player_id"`
	Reason   string `json:"reason"`
}

// ledgered runs fn against the player's registration and appends the
// transaction it returns. The registration update and the ledger row commit
// together or not at all.
func (d *Director) ledgered(ctx context.Context, tournamentID, actor, playerID uint64, name string,
	load func(o *op) (tournament.Registration, error),
	fn func(o *op, r *tournament.Registration) (tournament.Transaction, error),
) (PlayerResult, error) {
	if load == nil {
		load = func(o *op) (tournament.Registration, error) { return o.registration(playerID) }
	}
	var res PlayerResult
	snap, err := d.run(ctx, tournamentID, actor, modeMutate, func(o *op) error {
		r, err := load(o)
		if err != nil {
			return err
		}
		t, err := fn(o, &r)
		if err != nil {
			return err
		}
		t.ActorUserID = actor
		if err := ledger.Append(o.ctx, o.tx, &t); err != nil {
			return err
		}
		if err := o.tx.UpdateRegistration(o.ctx, r); err != nil {
			return err
		}
		o.emit(events.KindTransactionAppended, t)
		res.Registration = r
		res.Transaction = &t
		return nil
	})
	if err != nil {
		return PlayerResult{}, err
	}
	res.State = snap
	log.Printf("[Director] %s applied: tournament=%d player=%d tx=%d amount=%s chips=%d",
		name, tournamentID, playerID, res.Transaction.ID, res.Transaction.Amount, res.Transaction.Chips)
	return res, nil
}

func (o *op) insertRegistration(playerID uint64) (tournament.Registration, error) {
	if playerID == 0 {
		return tournament.Registration{}, notFound(tournament.ErrRegistrationNotFound, "player", playerID)
	}
	r := tournament.NewRegistration(o.tx.TournamentID(), playerID, o.now)
	if err := o.tx.InsertRegistration(o.ctx, &r); err != nil {
		if errors.Is(err, store.ErrConflict) {
			return tournament.Registration{}, fmt.Errorf("%w: player %d", tournament.ErrAlreadyRegistered, playerID)
		}
		return tournament.Registration{}, err
	}
	return r, nil
}

// RegisterPlayer enters playerID with no chips and nothing paid.
func (d *Director) RegisterPlayer(ctx context.Context, tournamentID, actor, playerID uint64) (PlayerResult, error) {
	var res PlayerResult
	snap, err := d.run(ctx, tournamentID, actor, modeMutate, func(o *op) error {
		if o.clock.Status == tournament.ClockFinished {
			return &tournament.InvalidStateError{Op: "register", Status: o.clock.Status}
		}
		r, err := o.insertRegistration(playerID)
		res.Registration = r
		return err
	})
	if err != nil {
		return PlayerResult{}, err
	}
	res.State = snap
	log.Printf("[Director] player registered: tournament=%d player=%d registration=%d", tournamentID, playerID, res.Registration.ID)
	return res, nil
}

// ProcessBuyIn activates a player with their starting stack, registering
// them first if needed.
func (d *Director) ProcessBuyIn(ctx context.Context, tournamentID, actor, playerID uint64, amount tournament.Money, chips int64) (PlayerResult, error) {
	load := func(o *op) (tournament.Registration, error) {
		if o.clock.Status == tournament.ClockFinished {
			return tournament.Registration{}, &tournament.InvalidStateError{Op: "buyin", Status: o.clock.Status}
		}
		r, err := o.registration(playerID)
		if errors.Is(err, tournament.ErrRegistrationNotFound) {
			return o.insertRegistration(playerID)
		}
		return r, err
	}
	return d.ledgered(ctx, tournamentID, actor, playerID, "buyin", load, func(o *op, r *tournament.Registration) (tournament.Transaction, error) {
		return r.BuyIn(amount, chips, o.now)
	})
}

// ProcessBustout eliminates an active player and frees their seat.
// eliminatedBy may name any number of eliminators.
func (d *Director) ProcessBustout(ctx context.Context, tournamentID, actor, playerID uint64, eliminatedBy []uint64) (PlayerResult, error) {
	return d.ledgered(ctx, tournamentID, actor, playerID, "bustout", nil, func(o *op, r *tournament.Registration) (tournament.Transaction, error) {
		t, err := r.Bustout(eliminatedBy, o.now)
		if err != nil {
			return t, err
		}
		if _, err := o.unseat(r.ID); err != nil {
			return t, err
		}
		return t, nil
	})
}

// ProcessRebuy buys an active or busted player back in. A busted player
// returns unseated and is placed through MovePlayer.
func (d *Director) ProcessRebuy(ctx context.Context, tournamentID, actor, playerID uint64, amount tournament.Money, chips int64) (PlayerResult, error) {
	return d.ledgered(ctx, tournamentID, actor, playerID, "rebuy", nil, func(o *op, r *tournament.Registration) (tournament.Transaction, error) {
		if err := d.policy.AllowRebuy(o.clock, *r); err != nil {
			return tournament.Transaction{}, err
		}
		return r.Rebuy(amount, chips, o.now)
	})
}

func (d *Director) ProcessAddon(ctx context.Context, tournamentID, actor, playerID uint64, amount tournament.Money, chips int64) (PlayerResult, error) {
	return d.ledgered(ctx, tournamentID, actor, playerID, "addon", nil, func(o *op, r *tournament.Registration) (tournament.Transaction, error) {
		if err := d.policy.AllowAddon(o.clock, *r); err != nil {
			return tournament.Transaction{}, err
		}
		return r.Addon(amount, chips, o.now)
	})
}

// ProcessChipAdjustment applies a signed manual correction. reason is required.
func (d *Director) ProcessChipAdjustment(ctx context.Context, tournamentID, actor, playerID uint64, delta int64, reason string) (PlayerResult, error) {
	if strings.TrimSpace(reason) == "" {
		return PlayerResult{}, tournament.ErrReasonRequired
	}
	return d.ledgered(ctx, tournamentID, actor, playerID, "chip_adjustment", nil, func(o *op, r *tournament.Registration) (tournament.Transaction, error) {
		return r.AdjustChips(delta, reason, o.now)
	})
}

// ProcessWithdrawal retires a busted player who declined to re-enter. No
// ledger row is written; the reason is kept on the registration and sent as
// an audit event.
func (d *Director) ProcessWithdrawal(ctx context.Context, tournamentID, actor, playerID uint64, reason string) (PlayerResult, error) {
	var res PlayerResult
	snap, err := d.run(ctx, tournamentID, actor, modeMutate, func(o *op) error {
		r, err := o.registration(playerID)
		if err != nil {
			return err
		}
		if err := r.Withdraw(reason, o.now); err != nil {
			return err
		}
		if _, err := o.unseat(r.ID); err != nil {
			return err
		}
		if err := o.tx.UpdateRegistration(o.ctx, r); err != nil {
			return err
		}
		o.emit(events.KindPlayerWithdrawn, withdrawal{PlayerID: playerID, Reason: r.WithdrawReason})
		res.Registration = r
		return nil
	})
	if err != nil {
		return PlayerResult{}, err
	}
	res.State = snap
	log.Printf("[Director] player withdrawn: tournament=%d player=%d reason=%q", tournamentID, playerID, res.Registration.WithdrawReason)
	return res, nil
}

func (d *Director) GetRegistration(ctx context.Context, tournamentID, playerID uint64) (tournament.Registration, error) {
	var r tournament.Registration
	err := d.view(ctx, tournamentID, func(tx store.Tx) error {
		var err error
		r, err = tx.GetRegistration(ctx, playerID)
		if errors.Is(err, store.ErrNotFound) {
			return notFound(tournament.ErrRegistrationNotFound, "player", playerID)
		}
		return err
	})
	return r, err
}

func (d *Director) ListRegistrations(ctx context.Context, tournamentID uint64) ([]tournament.Registration, error) {
	var regs []tournament.Registration
	err := d.view(ctx, tournamentID, func(tx store.Tx) error {
		var err error
		regs, err = tx.ListRegistrations(ctx)
		return err
	})
	return regs, err
}
