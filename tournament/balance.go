package tournament

import "sort"

// Move relocates one registration between seats.
type Move struct {
	RegistrationID uint64  `json:"registration_id"`
	From           SeatRef `json:"from"`
	To             SeatRef `json:"to"`
}

// BreakSuggestion is the evacuation plan for one table, when a table can go.
type BreakSuggestion struct {
	CanBreak bool   `json:"can_break"`
	TableID  uint64 `json:"table_id,omitempty"`
	Moves    []Move `json:"moves"`
}

type TableCount struct {
	TableID  uint64 `json:"table_id"`
	Seated   int    `json:"seated"`
	MaxSeats int    `json:"max_seats"`
}

type BalanceStatus struct {
	Tables         []TableCount `json:"tables"`
	SeatedPlayers  int          `json:"seated_players"`
	Spread         int          `json:"spread"`
	Balanced       bool         `json:"balanced"`
	BreakSuggested bool         `json:"break_suggested"`
	BreakTableID   uint64       `json:"break_table_id,omitempty"`
}

func activeClones(tables []Table) []Table {
	out := make([]Table, 0, len(tables))
	for _, t := range tables {
		if t.Status == TableActive {
			out = append(out, t.Clone())
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func spread(tables []Table) int {
	if len(tables) == 0 {
		return 0
	}
	lo, hi := tables[0].Occupied(), tables[0].Occupied()
	for _, t := range tables[1:] {
		n := t.Occupied()
		if n < lo {
			lo = n
		}
		if n > hi {
			hi = n
		}
	}
	return hi - lo
}

// fullest returns the index of the table with the most players, first wins ties.
func fullest(tables []Table) int {
	best := -1
	for i, t := range tables {
		if best < 0 || t.Occupied() > tables[best].Occupied() {
			best = i
		}
	}
	return best
}

// emptiest returns the index of the table with the fewest players that still
// has a free seat, skipping skip. First wins ties.
func emptiest(tables []Table, skip int) int {
	best := -1
	for i, t := range tables {
		if i == skip || t.Occupied() >= t.MaxSeats {
			continue
		}
		if best < 0 || t.Occupied() < tables[best].Occupied() {
			best = i
		}
	}
	return best
}

func applyMove(tables []Table, from, to int) Move {
	fromSeat := tables[from].highestOccupiedSeat()
	toSeat := tables[to].lowestEmptySeat()
	reg := tables[from].Seats[fromSeat-1].RegistrationID
	tables[from].Seats[fromSeat-1].RegistrationID = 0
	tables[to].Seats[toSeat-1].RegistrationID = reg
	return Move{
		RegistrationID: reg,
		From:           SeatRef{TableID: tables[from].ID, SeatNumber: fromSeat},
		To:             SeatRef{TableID: tables[to].ID, SeatNumber: toSeat},
	}
}

// PlanBalance computes the moves that bring every active table within one
// player of every other. It repeatedly moves the highest-numbered occupied seat
// of the fullest table into the lowest-numbered empty seat of the emptiest
// table, stopping once the spread is at most one or no move can reduce it.
// The input is not modified.
func PlanBalance(tables []Table) []Move {
	sim := activeClones(tables)
	moves := []Move{}
	// every useful move lowers the sum of squared counts, so this bounds the loop
	limit := 0
	for _, t := range sim {
		limit += t.MaxSeats * t.MaxSeats
	}
	for i := 0; i < limit; i++ {
		if spread(sim) <= 1 {
			break
		}
		from := fullest(sim)
		to := emptiest(sim, from)
		if to < 0 || sim[from].Occupied()-sim[to].Occupied() <= 1 {
			break
		}
		moves = append(moves, applyMove(sim, from, to))
	}
	return moves
}

// PlanBreak decides whether the seated players fit into one table fewer and,
// if so, returns an evacuation plan for the table with the fewest players
// (latest created on ties). Evacuees are sent one by one to the emptiest
// remaining table so the result stays balanced.
func PlanBreak(tables []Table) BreakSuggestion {
	sim := activeClones(tables)
	if len(sim) < 2 {
		return BreakSuggestion{Moves: []Move{}}
	}
	victim := 0
	for i, t := range sim {
		if t.Occupied() <= sim[victim].Occupied() {
			victim = i
		}
	}
	seated, capacity := 0, 0
	for i, t := range sim {
		seated += t.Occupied()
		if i != victim {
			capacity += t.MaxSeats
		}
	}
	if seated > capacity {
		return BreakSuggestion{Moves: []Move{}}
	}

	moves := []Move{}
	for sim[victim].Occupied() > 0 {
		to := emptiest(sim, victim)
		if to < 0 {
			return BreakSuggestion{Moves: []Move{}}
		}
		seat := 0
		for _, s := range sim[victim].Seats {
			if !s.Empty() {
				seat = s.SeatNumber
				break
			}
		}
		toSeat := sim[to].lowestEmptySeat()
		reg := sim[victim].Seats[seat-1].RegistrationID
		sim[victim].Seats[seat-1].RegistrationID = 0
		sim[to].Seats[toSeat-1].RegistrationID = reg
		moves = append(moves, Move{
			RegistrationID: reg,
			From:           SeatRef{TableID: sim[victim].ID, SeatNumber: seat},
			To:             SeatRef{TableID: sim[to].ID, SeatNumber: toSeat},
		})
	}
	return BreakSuggestion{CanBreak: true, TableID: sim[victim].ID, Moves: moves}
}

// Balance summarizes the active tables for display.
func Balance(tables []Table) BalanceStatus {
	active := activeClones(tables)
	st := BalanceStatus{Tables: make([]TableCount, 0, len(active))}
	for _, t := range active {
		n := t.Occupied()
		st.SeatedPlayers += n
		st.Tables = append(st.Tables, TableCount{TableID: t.ID, Seated: n, MaxSeats: t.MaxSeats})
	}
	st.Spread = spread(active)
	st.Balanced = st.Spread <= 1 || len(PlanBalance(active)) == 0
	if brk := PlanBreak(active); brk.CanBreak {
		st.BreakSuggested = true
		st.BreakTableID = brk.TableID
	}
	return st
}
