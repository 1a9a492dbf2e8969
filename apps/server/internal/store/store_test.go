package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"tourney-lite/tournament"
)

var t0 = time.Date(2026, 3, 1, 18, 0, 0, 0, time.UTC)

func forEachStore(t *testing.T, fn func(t *testing.T, s Store)) {
	t.Helper()
	t.Run("memory", func(t *testing.T) {
		fn(t, NewMemory())
	})
	t.Run("sqlite", func(t *testing.T) {
		s, err := NewSQLite(filepath.Join(t.TempDir(), "tourney.db"))
		if err != nil {
			t.Fatalf("NewSQLite err: %v", err)
		}
		t.Cleanup(func() { _ = s.Close() })
		fn(t, s)
	})
}

func mustUpdate(t *testing.T, s Store, tid uint64, fn func(tx Tx) error) {
	t.Helper()
	if err := s.Update(context.Background(), tid, fn); err != nil {
		t.Fatalf("Update err: %v", err)
	}
}

func TestClockRoundTrip(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		err := s.View(ctx, 1, func(tx Tx) error {
			_, err := tx.GetClock(ctx)
			return err
		})
		if !errors.Is(err, ErrNotFound) {
			t.Fatalf("expected ErrNotFound for a new tournament, got %v", err)
		}

		c := tournament.NewClockState(1, t0)
		_ = c.Start(900*time.Second, t0)
		c.Tick(t0.Add(1500 * time.Millisecond))
		mustUpdate(t, s, 1, func(tx Tx) error { return tx.PutClock(ctx, c) })

		var got tournament.ClockState
		_ = s.View(ctx, 1, func(tx Tx) error {
			var err error
			got, err = tx.GetClock(ctx)
			return err
		})
		if got.Status != tournament.ClockRunning || got.TimeRemaining != c.TimeRemaining || !got.UpdatedAt.Equal(c.UpdatedAt) {
			t.Fatalf("clock mismatch: stored %+v, loaded %+v", c, got)
		}
	})
}

func TestUpdateRollsBackOnError(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		boom := errors.New("boom")
		err := s.Update(ctx, 1, func(tx Tx) error {
			r := tournament.NewRegistration(1, 10, t0)
			if err := tx.InsertRegistration(ctx, &r); err != nil {
				return err
			}
			tbl := tournament.NewTable(1, 9, t0)
			if err := tx.InsertTable(ctx, &tbl); err != nil {
				return err
			}
			return boom
		})
		if !errors.Is(err, boom) {
			t.Fatalf("expected fn error to surface, got %v", err)
		}
		_ = s.View(ctx, 1, func(tx Tx) error {
			regs, _ := tx.ListRegistrations(ctx)
			tables, _ := tx.ListTables(ctx, "")
			if len(regs) != 0 || len(tables) != 0 {
				t.Fatalf("rolled back update left regs=%d tables=%d", len(regs), len(tables))
			}
			return nil
		})
	})
}

func TestSeatExclusivity(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		var a, b tournament.Table
		mustUpdate(t, s, 1, func(tx Tx) error {
			a = tournament.NewTable(1, 6, t0)
			b = tournament.NewTable(1, 6, t0)
			if err := tx.InsertTable(ctx, &a); err != nil {
				return err
			}
			return tx.InsertTable(ctx, &b)
		})
		seat := tournament.SeatRef{TableID: a.ID, SeatNumber: 3}
		mustUpdate(t, s, 1, func(tx Tx) error { return tx.OccupySeat(ctx, seat, 100) })

		err := s.Update(ctx, 1, func(tx Tx) error { return tx.OccupySeat(ctx, seat, 101) })
		if !errors.Is(err, tournament.ErrSeatOccupied) {
			t.Fatalf("expected ErrSeatOccupied, got %v", err)
		}
		err = s.Update(ctx, 1, func(tx Tx) error {
			return tx.OccupySeat(ctx, tournament.SeatRef{TableID: b.ID, SeatNumber: 1}, 100)
		})
		if !errors.Is(err, ErrConflict) {
			t.Fatalf("expected ErrConflict seating one registration twice, got %v", err)
		}
		err = s.Update(ctx, 1, func(tx Tx) error {
			return tx.OccupySeat(ctx, tournament.SeatRef{TableID: a.ID, SeatNumber: 7}, 102)
		})
		if !errors.Is(err, tournament.ErrInvalidSeatNumber) {
			t.Fatalf("expected ErrInvalidSeatNumber, got %v", err)
		}
		err = s.Update(ctx, 1, func(tx Tx) error {
			return tx.OccupySeat(ctx, tournament.SeatRef{TableID: 9999, SeatNumber: 1}, 102)
		})
		if !errors.Is(err, ErrNotFound) {
			t.Fatalf("expected ErrNotFound for unknown table, got %v", err)
		}

		_ = s.View(ctx, 1, func(tx Tx) error {
			ref, err := tx.FindSeat(ctx, 100)
			if err != nil || ref != seat {
				t.Fatalf("FindSeat got %v err=%v, want %v", ref, err, seat)
			}
			got, _ := tx.GetTable(ctx, a.ID)
			if got.Occupied() != 1 || got.Occupant(3) != 100 {
				t.Fatalf("unexpected table state %+v", got)
			}
			return nil
		})

		mustUpdate(t, s, 1, func(tx Tx) error { return tx.ClearSeat(ctx, seat) })
		_ = s.View(ctx, 1, func(tx Tx) error {
			if _, err := tx.FindSeat(ctx, 100); !errors.Is(err, ErrNotFound) {
				t.Fatalf("expected seat cleared, got %v", err)
			}
			return nil
		})
	})
}

func TestListTablesFiltersByStatus(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		var ids []uint64
		mustUpdate(t, s, 1, func(tx Tx) error {
			for i := 0; i < 3; i++ {
				tbl := tournament.NewTable(1, 9, t0)
				if err := tx.InsertTable(ctx, &tbl); err != nil {
					return err
				}
				ids = append(ids, tbl.ID)
			}
			return tx.SetTableStatus(ctx, ids[1], tournament.TableBroken)
		})
		_ = s.View(ctx, 1, func(tx Tx) error {
			active, _ := tx.ListTables(ctx, tournament.TableActive)
			all, _ := tx.ListTables(ctx, "")
			if len(active) != 2 || active[0].ID != ids[0] || active[1].ID != ids[2] {
				t.Fatalf("unexpected active tables %+v", active)
			}
			if len(all) != 3 || all[1].Status != tournament.TableBroken {
				t.Fatalf("unexpected table list %+v", all)
			}
			return nil
		})
		err := s.Update(ctx, 1, func(tx Tx) error { return tx.SetTableStatus(ctx, 9999, tournament.TableBroken) })
		if !errors.Is(err, ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
	})
}

func TestRegistrationUniquePerTournament(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		r := tournament.NewRegistration(1, 42, t0)
		mustUpdate(t, s, 1, func(tx Tx) error { return tx.InsertRegistration(ctx, &r) })

		dup := tournament.NewRegistration(1, 42, t0)
		if err := s.Update(ctx, 1, func(tx Tx) error { return tx.InsertRegistration(ctx, &dup) }); !errors.Is(err, ErrConflict) {
			t.Fatalf("expected ErrConflict, got %v", err)
		}
		other := tournament.NewRegistration(2, 42, t0)
		mustUpdate(t, s, 2, func(tx Tx) error { return tx.InsertRegistration(ctx, &other) })

		_, _ = r.BuyIn(10000, 20000, t0)
		_, _ = r.Bustout([]uint64{7, 8}, t0)
		mustUpdate(t, s, 1, func(tx Tx) error { return tx.UpdateRegistration(ctx, r) })

		_ = s.View(ctx, 1, func(tx Tx) error {
			got, err := tx.GetRegistration(ctx, 42)
			if err != nil {
				t.Fatalf("GetRegistration err: %v", err)
			}
			if got.Status != tournament.StatusBusted || got.PaidAmount != 10000 || len(got.EliminatedBy) != 2 {
				t.Fatalf("unexpected registration %+v", got)
			}
			byID, err := tx.GetRegistrationByID(ctx, r.ID)
			if err != nil || byID.PlayerID != 42 {
				t.Fatalf("GetRegistrationByID got %+v err=%v", byID, err)
			}
			return nil
		})
	})
}

func TestTransactionQueries(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		rows := []tournament.Transaction{
			{PlayerID: 1, TransactionType: tournament.TxBuyIn, Amount: 10000, Chips: 20000, CreatedAt: t0},
			{PlayerID: 2, TransactionType: tournament.TxBuyIn, Amount: 10000, Chips: 20000, CreatedAt: t0},
			{PlayerID: 1, TransactionType: tournament.TxBustout, Chips: -20000, EliminatedBy: []uint64{2}, CreatedAt: t0},
			{PlayerID: 1, TransactionType: tournament.TxRebuy, Amount: 5000, Chips: 15000, CreatedAt: t0},
		}
		mustUpdate(t, s, 1, func(tx Tx) error {
			prev := ""
			for i := range rows {
				rows[i].TournamentID = 1
				rows[i].Seal(prev)
				if err := tx.AppendTransaction(ctx, &rows[i]); err != nil {
					return err
				}
				prev = rows[i].Hash
			}
			return nil
		})

		_ = s.View(ctx, 1, func(tx Tx) error {
			all, _ := tx.ListTransactions(ctx, TransactionFilter{})
			if err := tournament.VerifyChain(all); err != nil {
				t.Fatalf("stored chain does not verify: %v", err)
			}
			if len(all[2].EliminatedBy) != 1 || all[2].EliminatedBy[0] != 2 {
				t.Fatalf("eliminated_by not persisted: %+v", all[2])
			}

			mine, _ := tx.ListTransactions(ctx, TransactionFilter{PlayerID: 1, Descending: true, Limit: 2})
			if len(mine) != 2 || mine[0].TransactionType != tournament.TxRebuy || mine[1].TransactionType != tournament.TxBustout {
				t.Fatalf("unexpected filtered page %+v", mine)
			}
			skipped, _ := tx.ListTransactions(ctx, TransactionFilter{Offset: 3})
			if len(skipped) != 1 || skipped[0].ID != rows[3].ID {
				t.Fatalf("unexpected offset page %+v", skipped)
			}

			n, _ := tx.CountTransactions(ctx, tournament.TxBuyIn)
			if n != 2 {
				t.Fatalf("expected 2 buyins, got %d", n)
			}
			sums, _ := tx.SumTransactions(ctx, 1)
			if sums[tournament.TxBuyIn].Amount != 10000 || sums[tournament.TxRebuy].Amount != 5000 || sums[tournament.TxBustout].Chips != -20000 {
				t.Fatalf("unexpected per-player sums %+v", sums)
			}
			last, err := tx.LastTransaction(ctx)
			if err != nil || last.Hash != rows[3].Hash {
				t.Fatalf("LastTransaction got %+v err=%v", last, err)
			}
			return nil
		})

		_ = s.View(ctx, 2, func(tx Tx) error {
			if _, err := tx.LastTransaction(ctx); !errors.Is(err, ErrNotFound) {
				t.Fatalf("expected empty ledger for another tournament, got %v", err)
			}
			return nil
		})
	})
}

func TestOpenRejectsUnknownMode(t *testing.T) {
	if _, _, err := Open("cassandra", "", ""); err == nil {
		t.Fatal("expected error for unknown mode")
	}
	s, mode, err := Open("MEM", "", "")
	if err != nil || mode != ModeMemory {
		t.Fatalf("Open(MEM) = %v %q %v", s, mode, err)
	}
}
