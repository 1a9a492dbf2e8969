package ledger

import (
	"context"
	"errors"
	"testing"
	"time"

	"tourney-lite/apps/server/internal/store"
	"tourney-lite/tournament"
)

var t0 = time.Date(2026, 3, 1, 18, 0, 0, 0, time.UTC)

func seed(t *testing.T, s store.Store, tid uint64, rows ...tournament.Transaction) {
	t.Helper()
	ctx := context.Background()
	err := s.Update(ctx, tid, func(tx store.Tx) error {
		for i := range rows {
			if err := Append(ctx, tx, &rows[i]); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("seed err: %v", err)
	}
}

func TestAppendChainsAndVerifies(t *testing.T) {
	s := store.NewMemory()
	svc := NewService(s)
	seed(t, s, 1,
		tournament.Transaction{PlayerID: 1, TransactionType: tournament.TxBuyIn, Amount: 10000, Chips: 20000, CreatedAt: t0},
		tournament.Transaction{PlayerID: 2, TransactionType: tournament.TxBuyIn, Amount: 10000, Chips: 20000, CreatedAt: t0},
	)
	seed(t, s, 1, tournament.Transaction{PlayerID: 1, TransactionType: tournament.TxAddon, Amount: 2500, Chips: 5000, CreatedAt: t0})

	n, err := svc.Verify(context.Background(), 1)
	if err != nil || n != 3 {
		t.Fatalf("Verify = %d, %v; want 3 rows, nil", n, err)
	}
	txs, _ := svc.Transactions(context.Background(), 1, Query{})
	if txs[0].PrevHash != tournament.GenesisHash || txs[2].PrevHash != txs[1].Hash {
		t.Fatalf("rows not chained: %+v", txs)
	}
}

func TestVerifyDetectsForeignRow(t *testing.T) {
	s := store.NewMemory()
	svc := NewService(s)
	seed(t, s, 1, tournament.Transaction{PlayerID: 1, TransactionType: tournament.TxBuyIn, Amount: 10000, Chips: 20000, CreatedAt: t0})
	_ = s.Update(context.Background(), 1, func(tx store.Tx) error {
		forged := tournament.Transaction{PlayerID: 1, TransactionType: tournament.TxRebuy, Amount: 1, PrevHash: "0", Hash: "feed"}
		return tx.AppendTransaction(context.Background(), &forged)
	})
	if _, err := svc.Verify(context.Background(), 1); !errors.Is(err, tournament.ErrLedgerCorrupt) {
		t.Fatalf("expected ErrLedgerCorrupt, got %v", err)
	}
}

func TestAppendRequiresReasonForAdjustment(t *testing.T) {
	s := store.NewMemory()
	err := s.Update(context.Background(), 1, func(tx store.Tx) error {
		return Append(context.Background(), tx, &tournament.Transaction{PlayerID: 1, TransactionType: tournament.TxChipAdjustment, Chips: 5})
	})
	if !errors.Is(err, tournament.ErrReasonRequired) {
		t.Fatalf("expected ErrReasonRequired, got %v", err)
	}
}

func TestSummaryAndCounts(t *testing.T) {
	s := store.NewMemory()
	svc := NewService(s)
	seed(t, s, 7,
		tournament.Transaction{PlayerID: 1, TransactionType: tournament.TxBuyIn, Amount: 10000, Chips: 20000, CreatedAt: t0},
		tournament.Transaction{PlayerID: 2, TransactionType: tournament.TxBuyIn, Amount: 10000, Chips: 20000, CreatedAt: t0},
		tournament.Transaction{PlayerID: 1, TransactionType: tournament.TxBustout, Chips: -20000, EliminatedBy: []uint64{2}, CreatedAt: t0},
		tournament.Transaction{PlayerID: 1, TransactionType: tournament.TxRebuy, Amount: 10000, Chips: 20000, CreatedAt: t0},
		tournament.Transaction{PlayerID: 2, TransactionType: tournament.TxAddon, Amount: 5000, Chips: 10000, CreatedAt: t0},
	)
	ctx := context.Background()
	pool, _ := svc.PrizePool(ctx, 7)
	if pool != 35000 {
		t.Fatalf("prize pool = %s, want 350.00", pool)
	}
	mine, _ := svc.Summary(ctx, 7, 1)
	if mine.BuyIns.Count != 1 || mine.Rebuys.Amount != 10000 || mine.Bustouts.Count != 1 || mine.PrizePool != 20000 {
		t.Fatalf("unexpected player summary %+v", mine)
	}
	if n, _ := svc.Count(ctx, 7, tournament.TxBuyIn); n != 2 {
		t.Fatalf("buyin count = %d, want 2", n)
	}
	if n, _ := svc.Count(ctx, 7, ""); n != 5 {
		t.Fatalf("total count = %d, want 5", n)
	}
	page, _ := svc.Transactions(ctx, 7, Query{Order: OrderDesc, Limit: 2})
	if len(page) != 2 || page[0].TransactionType != tournament.TxAddon {
		t.Fatalf("unexpected newest page %+v", page)
	}
	if _, err := svc.Transactions(ctx, 7, Query{Type: "refund"}); err == nil {
		t.Fatal("expected error for unknown type filter")
	}
}

func TestReplayFloorsChips(t *testing.T) {
	paid, chips := Replay([]tournament.Transaction{
		{TransactionType: tournament.TxBuyIn, Amount: 10000, Chips: 1000},
		{TransactionType: tournament.TxChipAdjustment, Chips: -5000, Reason: "miscount"},
		{TransactionType: tournament.TxChipAdjustment, Chips: 300, Reason: "found chips"},
	})
	if paid != 10000 || chips != 300 {
		t.Fatalf("Replay = %s, %d; want 100.00, 300", paid, chips)
	}
}

func TestReconcileReportsDrift(t *testing.T) {
	s := store.NewMemory()
	svc := NewService(s)
	ctx := context.Background()
	r := tournament.NewRegistration(1, 9, t0)
	_ = s.Update(ctx, 1, func(tx store.Tx) error {
		if err := tx.InsertRegistration(ctx, &r); err != nil {
			return err
		}
		buyin, err := r.BuyIn(10000, 20000, t0)
		if err != nil {
			return err
		}
		if err := Append(ctx, tx, &buyin); err != nil {
			return err
		}
		return tx.UpdateRegistration(ctx, r)
	})

	rec, err := svc.Reconcile(ctx, 1, 9)
	if err != nil || rec.Drift() {
		t.Fatalf("expected clean reconciliation, got %+v err=%v", rec, err)
	}

	r.PaidAmount = 1
	_ = s.Update(ctx, 1, func(tx store.Tx) error { return tx.UpdateRegistration(ctx, r) })
	rec, _ = svc.Reconcile(ctx, 1, 9)
	if !rec.Drift() || rec.LedgerPaid != 10000 {
		t.Fatalf("expected drift against ledger 100.00, got %+v", rec)
	}

	if _, err := svc.Reconcile(ctx, 1, 404); !errors.Is(err, tournament.ErrRegistrationNotFound) {
		t.Fatalf("expected ErrRegistrationNotFound, got %v", err)
	}
}
