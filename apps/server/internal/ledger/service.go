// Package ledger is the append-only transaction log of a tournament. Money and
// chip aggregates are always summed from the rows, never cached.
package ledger

import (
	"context"
	"errors"
	"fmt"

	"tourney-lite/apps/server/internal/store"
	"tourney-lite/tournament"
)

const (
	defaultPageLimit = 100
	maxPageLimit     = 1000
)

type Order string

const (
	OrderAsc  Order = "asc"
	OrderDesc Order = "desc"
)

// Query filters and pages ledger reads. Zero values mean all types, all
// players, oldest first, default page size.
type Query struct {
	Type     tournament.TransactionType `json:"type,omitempty"`
	PlayerID uint64                     `json:"player_id,omitempty"`
	Order    Order                      `json:"order,omitempty"`
	Limit    int                        `json:"limit,omitempty"`
	Offset   int                        `json:"offset,omitempty"`
}

func (q Query) filter() (store.TransactionFilter, error) {
	if q.Type != "" && !q.Type.Valid() {
		return store.TransactionFilter{}, fmt.Errorf("unknown transaction type %q", q.Type)
	}
	f := store.TransactionFilter{
		Type:       q.Type,
		PlayerID:   q.PlayerID,
		Descending: q.Order == OrderDesc,
		Limit:      q.Limit,
		Offset:     q.Offset,
	}
	if f.Limit <= 0 {
		f.Limit = defaultPageLimit
	}
	if f.Limit > maxPageLimit {
		f.Limit = maxPageLimit
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
	return f, nil
}

// Summary is the ledger rolled up by type.
type Summary struct {
	BuyIns          store.Totals     `json:"buyins"`
	Rebuys          store.Totals     `json:"rebuys"`
	Addons          store.Totals     `json:"addons"`
	Bustouts        store.Totals     `json:"bustouts"`
	ChipAdjustments store.Totals     `json:"chip_adjustments"`
	PrizePool       tournament.Money `json:"prize_pool"`
}

// Reconciliation compares a registration with what its ledger rows imply.
type Reconciliation struct {
	PlayerID    uint64           `json:"player_id"`
	StoredPaid  tournament.Money `json:"stored_paid"`
	LedgerPaid  tournament.Money `json:"ledger_paid"`
	StoredChips int64            `json:"stored_chips"`
	LedgerChips int64            `json:"ledger_chips"`
	Rows        int              `json:"rows"`
}

func (r Reconciliation) Drift() bool {
	return r.StoredPaid != r.LedgerPaid || r.StoredChips != r.LedgerChips
}

// Append seals t onto the tournament's chain and stores it. It is the only
// write path and must run inside the same Update as the paired registration
// change.
func Append(ctx context.Context, tx store.Tx, t *tournament.Transaction) error {
	if !t.TransactionType.Valid() {
		return fmt.Errorf("append: unknown transaction type %q", t.TransactionType)
	}
	if t.TransactionType == tournament.TxChipAdjustment && t.Reason == "" {
		return tournament.ErrReasonRequired
	}
	prev := tournament.GenesisHash
	last, err := tx.LastTransaction(ctx)
	switch {
	case err == nil:
		prev = last.Hash
	case !errors.Is(err, store.ErrNotFound):
		return err
	}
	t.TournamentID = tx.TournamentID()
	t.Seal(prev)
	return tx.AppendTransaction(ctx, t)
}

// Summarize totals the ledger, for one player or the whole tournament when
// playerID is 0.
func Summarize(ctx context.Context, tx store.Tx, playerID uint64) (Summary, error) {
	sums, err := tx.SumTransactions(ctx, playerID)
	if err != nil {
		return Summary{}, err
	}
	s := Summary{
		BuyIns:          sums[tournament.TxBuyIn],
		Rebuys:          sums[tournament.TxRebuy],
		Addons:          sums[tournament.TxAddon],
		Bustouts:        sums[tournament.TxBustout],
		ChipAdjustments: sums[tournament.TxChipAdjustment],
	}
	s.PrizePool = s.BuyIns.Amount + s.Rebuys.Amount + s.Addons.Amount
	return s, nil
}

// Replay folds a player's rows, oldest first, into the paid amount and chip
// count they imply.
func Replay(txs []tournament.Transaction) (paid tournament.Money, chips int64) {
	for _, t := range txs {
		if t.TransactionType.Monetary() {
			paid += t.Amount
		}
		chips += t.Chips
		if chips < 0 {
			chips = 0
		}
	}
	return paid, chips
}

// Reconcile re-derives r's paid amount and chips from the ledger.
func Reconcile(ctx context.Context, tx store.Tx, r tournament.Registration) (Reconciliation, error) {
	txs, err := tx.ListTransactions(ctx, store.TransactionFilter{PlayerID: r.PlayerID})
	if err != nil {
		return Reconciliation{}, err
	}
	paid, chips := Replay(txs)
	return Reconciliation{
		PlayerID:    r.PlayerID,
		StoredPaid:  r.PaidAmount,
		LedgerPaid:  paid,
		StoredChips: r.ChipCount,
		LedgerChips: chips,
		Rows:        len(txs),
	}, nil
}

// Service is the read side of the ledger for callers outside an Update.
type Service struct {
	store store.Store
}

func NewService(s store.Store) *Service {
	return &Service{store: s}
}

func (s *Service) Transactions(ctx context.Context, tournamentID uint64, q Query) ([]tournament.Transaction, error) {
	f, err := q.filter()
	if err != nil {
		return nil, err
	}
	var out []tournament.Transaction
	err = s.store.View(ctx, tournamentID, func(tx store.Tx) error {
		var err error
		out, err = tx.ListTransactions(ctx, f)
		return err
	})
	return out, err
}

// Count returns the number of rows of typ, or of every type when typ is empty.
func (s *Service) Count(ctx context.Context, tournamentID uint64, typ tournament.TransactionType) (int, error) {
	var n int
	err := s.store.View(ctx, tournamentID, func(tx store.Tx) error {
		var err error
		n, err = tx.CountTransactions(ctx, typ)
		return err
	})
	return n, err
}

func (s *Service) Summary(ctx context.Context, tournamentID, playerID uint64) (Summary, error) {
	var out Summary
	err := s.store.View(ctx, tournamentID, func(tx store.Tx) error {
		var err error
		out, err = Summarize(ctx, tx, playerID)
		return err
	})
	return out, err
}

func (s *Service) PrizePool(ctx context.Context, tournamentID uint64) (tournament.Money, error) {
	sum, err := s.Summary(ctx, tournamentID, 0)
	return sum.PrizePool, err
}

// Verify recomputes the hash chain and returns how many rows it covered.
func (s *Service) Verify(ctx context.Context, tournamentID uint64) (int, error) {
	var n int
	err := s.store.View(ctx, tournamentID, func(tx store.Tx) error {
		txs, err := tx.ListTransactions(ctx, store.TransactionFilter{})
		if err != nil {
			return err
		}
		n = len(txs)
		return tournament.VerifyChain(txs)
	})
	return n, err
}

func (s *Service) Reconcile(ctx context.Context, tournamentID, playerID uint64) (Reconciliation, error) {
	var out Reconciliation
	err := s.store.View(ctx, tournamentID, func(tx store.Tx) error {
		r, err := tx.GetRegistration(ctx, playerID)
		if errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("%w: player %d", tournament.ErrRegistrationNotFound, playerID)
		}
		if err != nil {
			return err
		}
		out, err = Reconcile(ctx, tx, r)
		return err
	})
	return out, err
}
