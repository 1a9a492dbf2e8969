package tournament

import (
	"fmt"
	"strings"
	"time"
)

// NewRegistration returns a registered player with no chips and nothing paid.
func NewRegistration(tournamentID, playerID uint64, now time.Time) Registration {
	return Registration{
		TournamentID: tournamentID,
		PlayerID:     playerID,
		Status:       StatusRegistered,
		EliminatedBy: []uint64{},
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

func (r *Registration) requireStatus(op string, allowed ...RegistrationStatus) error {
	for _, s := range allowed {
		if r.Status == s {
			return nil
		}
	}
	return fmt.Errorf("%w: %s requires %v, player %d is %s", ErrPlayerNotActive, op, allowed, r.PlayerID, r.Status)
}

func (r *Registration) tx(typ TransactionType, amount Money, chips int64, now time.Time) Transaction {
	return Transaction{
		TournamentID:    r.TournamentID,
		PlayerID:        r.PlayerID,
		TransactionType: typ,
		Amount:          amount,
		Chips:           chips,
		CreatedAt:       now,
	}
}

func validatePurchase(amount Money, chips int64) error {
	if amount < 0 || chips < 0 {
		return fmt.Errorf("%w: amount=%s chips=%d", ErrInvalidAmount, amount, chips)
	}
	return nil
}

// BuyIn activates a registered player with their starting stack.
func (r *Registration) BuyIn(amount Money, chips int64, now time.Time) (Transaction, error) {
	if err := r.requireStatus("buyin", StatusRegistered); err != nil {
		return Transaction{}, err
	}
	if err := validatePurchase(amount, chips); err != nil {
		return Transaction{}, err
	}
	r.Status = StatusActive
	r.ChipCount += chips
	r.PaidAmount += amount
	r.UpdatedAt = now
	return r.tx(TxBuyIn, amount, chips, now), nil
}

// Bustout eliminates an active player. eliminatedBy may list any number of
// eliminators, including none.
func (r *Registration) Bustout(eliminatedBy []uint64, now time.Time) (Transaction, error) {
	if err := r.requireStatus("bustout", StatusActive); err != nil {
		return Transaction{}, err
	}
	hitmen := make([]uint64, 0, len(eliminatedBy))
	for _, id := range eliminatedBy {
		if id != 0 && id != r.PlayerID {
			hitmen = append(hitmen, id)
		}
	}
	t := r.tx(TxBustout, 0, -r.ChipCount, now)
	t.EliminatedBy = append([]uint64(nil), hitmen...)
	r.Status = StatusBusted
	r.ChipCount = 0
	r.EliminatedBy = hitmen
	r.UpdatedAt = now
	return t, nil
}

// Rebuy brings an active or busted player back in for amount.
func (r *Registration) Rebuy(amount Money, chips int64, now time.Time) (Transaction, error) {
	if err := r.requireStatus("rebuy", StatusActive, StatusBusted); err != nil {
		return Transaction{}, err
	}
	if err := validatePurchase(amount, chips); err != nil {
		return Transaction{}, err
	}
	r.Status = StatusActive
	r.RebuysCount++
	r.PaidAmount += amount
	r.ChipCount += chips
	r.EliminatedBy = []uint64{}
	r.UpdatedAt = now
	return r.tx(TxRebuy, amount, chips, now), nil
}

func (r *Registration) Addon(amount Money, chips int64, now time.Time) (Transaction, error) {
	if err := r.requireStatus("addon", StatusActive); err != nil {
		return Transaction{}, err
	}
	if err := validatePurchase(amount, chips); err != nil {
		return Transaction{}, err
	}
	r.AddonsCount++
	r.PaidAmount += amount
	r.ChipCount += chips
	r.UpdatedAt = now
	return r.tx(TxAddon, amount, chips, now), nil
}

// AdjustChips applies a signed manual correction to a player still in the
// tournament. The stack floors at zero but the ledger records delta as
// requested. Busted players get chips back only through Rebuy.
func (r *Registration) AdjustChips(delta int64, reason string, now time.Time) (Transaction, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return Transaction{}, ErrReasonRequired
	}
	if err := r.requireStatus("chip_adjustment", StatusRegistered, StatusActive); err != nil {
		return Transaction{}, err
	}
	r.ChipCount += delta
	if r.ChipCount < 0 {
		r.ChipCount = 0
	}
	r.UpdatedAt = now
	t := r.tx(TxChipAdjustment, 0, delta, now)
	t.Reason = reason
	return t, nil
}

// Withdraw retires a busted player who declined to re-enter. Terminal.
func (r *Registration) Withdraw(reason string, now time.Time) error {
	if err := r.requireStatus("withdraw", StatusBusted); err != nil {
		return err
	}
	r.Status = StatusWithdrawn
	r.WithdrawReason = strings.TrimSpace(reason)
	r.UpdatedAt = now
	return nil
}
