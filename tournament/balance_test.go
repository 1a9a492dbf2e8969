package tournament

import (
	"sort"
	"testing"
)

// seatedTables builds active tables with the given occupancy, seating
// registrations from seat 1 upward. Registration ids are unique across tables.
func seatedTables(t *testing.T, maxSeats int, counts ...int) []Table {
	t.Helper()
	var nextReg uint64 = 100
	tables := make([]Table, 0, len(counts))
	for i, n := range counts {
		if n > maxSeats {
			t.Fatalf("table %d: %d players exceed %d seats", i, n, maxSeats)
		}
		tbl := NewTable(1, maxSeats, t0)
		tbl.ID = uint64(i + 1)
		for s := 0; s < n; s++ {
			nextReg++
			tbl.Seats[s].RegistrationID = nextReg
		}
		tables = append(tables, tbl)
	}
	return tables
}

func applyPlan(t *testing.T, tables []Table, moves []Move) []Table {
	t.Helper()
	byID := map[uint64]int{}
	out := make([]Table, len(tables))
	for i, tbl := range tables {
		out[i] = tbl.Clone()
		byID[tbl.ID] = i
	}
	for _, m := range moves {
		from := &out[byID[m.From.TableID]]
		to := &out[byID[m.To.TableID]]
		if got := from.Occupant(m.From.SeatNumber); got != m.RegistrationID {
			t.Fatalf("move %+v: seat holds %d", m, got)
		}
		if !to.Seats[m.To.SeatNumber-1].Empty() {
			t.Fatalf("move %+v: target occupied", m)
		}
		from.Seats[m.From.SeatNumber-1].RegistrationID = 0
		to.Seats[m.To.SeatNumber-1].RegistrationID = m.RegistrationID
	}
	return out
}

func counts(tables []Table) []int {
	out := make([]int, len(tables))
	for i, t := range tables {
		out[i] = t.Occupied()
	}
	return out
}

// minimalMoves is the fewest moves that bring every table to within one
// player. Only total%n tables may end at the ceiling, and the fullest tables
// keep those slots; every other table ends at the floor.
func minimalMoves(seated []int) int {
	sorted := append([]int(nil), seated...)
	sort.Sort(sort.Reverse(sort.IntSlice(sorted)))
	total := 0
	for _, n := range sorted {
		total += n
	}
	floor, extra := total/len(sorted), total%len(sorted)
	moves := 0
	for i, n := range sorted {
		target := floor
		if i < extra {
			target++
		}
		if n > target {
			moves += n - target
		}
	}
	return moves
}

func TestPlanBalance_ConvergesFromNineNineOne(t *testing.T) {
	tables := seatedTables(t, 9, 9, 9, 1)
	moves := PlanBalance(tables)
	if len(moves) == 0 {
		t.Fatalf("expected moves for [9 9 1]")
	}
	after := applyPlan(t, tables, moves)
	if s := spread(after); s > 1 {
		t.Fatalf("spread after plan = %d, counts %v", s, counts(after))
	}
	total := 0
	for _, n := range counts(after) {
		total += n
	}
	if total != 19 {
		t.Fatalf("players lost or duplicated: %v", counts(after))
	}
	if want := minimalMoves(counts(tables)); len(moves) != want {
		t.Fatalf("expected %d moves, got %d", want, len(moves))
	}
	if len(moves) != 5 {
		t.Fatalf("expected 5 moves for [9 9 1], got %d", len(moves))
	}

	// fixed point
	for i := 0; i < 2; i++ {
		if again := PlanBalance(after); len(again) != 0 {
			t.Fatalf("replanning a balanced layout produced %d moves", len(again))
		}
	}
}

func TestPlanBalance_MovesHighestSeatToLowestEmpty(t *testing.T) {
	tables := seatedTables(t, 9, 5, 1)
	moves := PlanBalance(tables)
	if len(moves) != 2 {
		t.Fatalf("expected 2 moves for [5 1], got %d", len(moves))
	}
	if moves[0].From != (SeatRef{TableID: 1, SeatNumber: 5}) || moves[0].To != (SeatRef{TableID: 2, SeatNumber: 2}) {
		t.Fatalf("unexpected first move %+v", moves[0])
	}
	if moves[1].From != (SeatRef{TableID: 1, SeatNumber: 4}) || moves[1].To != (SeatRef{TableID: 2, SeatNumber: 3}) {
		t.Fatalf("unexpected second move %+v", moves[1])
	}
}

func TestPlanBalance_IgnoresBrokenTablesAndDoesNotMutate(t *testing.T) {
	tables := seatedTables(t, 6, 6, 2, 0)
	tables[2].Status = TableBroken
	moves := PlanBalance(tables)
	for _, m := range moves {
		if m.To.TableID == 3 {
			t.Fatalf("plan targets broken table: %+v", m)
		}
	}
	if tables[0].Occupied() != 6 {
		t.Fatalf("PlanBalance mutated its input")
	}
}

func TestPlanBreak(t *testing.T) {
	tables := seatedTables(t, 9, 6, 6, 3)
	brk := PlanBreak(tables)
	if !brk.CanBreak || brk.TableID != 3 {
		t.Fatalf("expected to break table 3, got %+v", brk)
	}
	if len(brk.Moves) != 3 {
		t.Fatalf("expected 3 evacuation moves, got %d", len(brk.Moves))
	}
	after := applyPlan(t, tables, brk.Moves)
	if after[2].Occupied() != 0 {
		t.Fatalf("broken table still seated: %v", counts(after))
	}
	if s := spread(after[:2]); s > 1 {
		t.Fatalf("evacuation unbalanced remaining tables: %v", counts(after))
	}

	if brk := PlanBreak(seatedTables(t, 9, 9, 9, 1)); brk.CanBreak {
		t.Fatalf("19 players cannot fit into 18 seats, got %+v", brk)
	}
	if brk := PlanBreak(seatedTables(t, 9, 5)); brk.CanBreak {
		t.Fatalf("a single table can never be broken")
	}
}

func TestBalanceStatus(t *testing.T) {
	st := Balance(seatedTables(t, 9, 9, 9, 1))
	if st.Spread != 8 || st.Balanced {
		t.Fatalf("unexpected status %+v", st)
	}
	if st.SeatedPlayers != 19 || st.BreakSuggested {
		t.Fatalf("unexpected status %+v", st)
	}
	st = Balance(seatedTables(t, 9, 4, 4))
	if !st.Balanced || !st.BreakSuggested || st.BreakTableID != 2 {
		t.Fatalf("expected balanced with break of table 2, got %+v", st)
	}
}
