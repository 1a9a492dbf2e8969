package tournament

import (
	"fmt"
	"time"
)

// ClockStatus is the phase of a tournament clock.
type ClockStatus string

const (
	ClockNotStarted ClockStatus = "not_started"
	ClockRunning    ClockStatus = "running"
	ClockPaused     ClockStatus = "paused"
	ClockOnBreak    ClockStatus = "on_break"
	ClockFinished   ClockStatus = "finished"
)

func (s ClockStatus) Valid() bool {
	switch s {
	case ClockNotStarted, ClockRunning, ClockPaused, ClockOnBreak, ClockFinished:
		return true
	}
	return false
}

// RegistrationStatus is where a player stands in the tournament.
type RegistrationStatus string

const (
	StatusRegistered RegistrationStatus = "registered"
	StatusActive     RegistrationStatus = "active"
	StatusBusted     RegistrationStatus = "busted"
	StatusWithdrawn  RegistrationStatus = "withdrawn"
)

func (s RegistrationStatus) Valid() bool {
	switch s {
	case StatusRegistered, StatusActive, StatusBusted, StatusWithdrawn:
		return true
	}
	return false
}

// Seatable reports whether a player in this status may occupy a seat.
func (s RegistrationStatus) Seatable() bool {
	return s == StatusRegistered || s == StatusActive
}

// TransactionType names a kind of ledger row.
type TransactionType string

const (
	TxBuyIn          TransactionType = "buyin"
	TxRebuy          TransactionType = "rebuy"
	TxAddon          TransactionType = "addon"
	TxBustout        TransactionType = "bustout"
	TxChipAdjustment TransactionType = "chip_adjustment"
)

func (t TransactionType) Valid() bool {
	switch t {
	case TxBuyIn, TxRebuy, TxAddon, TxBustout, TxChipAdjustment:
		return true
	}
	return false
}

// Monetary reports whether the type contributes to paid amounts and the prize pool.
func (t TransactionType) Monetary() bool {
	return t == TxBuyIn || t == TxRebuy || t == TxAddon
}

// TableStatus tells whether a table still seats players.
type TableStatus string

const (
	TableActive TableStatus = "active"
	TableBroken TableStatus = "broken"
)

func (s TableStatus) Valid() bool { return s == TableActive || s == TableBroken }

// Money is an amount in cents.
type Money int64

func (m Money) String() string {
	sign := ""
	v := int64(m)
	if v < 0 {
		sign = "-"
		v = -v
	}
	return fmt.Sprintf("%s%d.%02d", sign, v/100, v%100)
}

// Registration is one player's entry in a tournament.
type Registration struct {
	ID             uint64             `json:"id"`
	TournamentID   uint64             `json:"tournament_id"`
	PlayerID       uint64             `json:"player_id"`
	Status         RegistrationStatus `json:"status"`
	ChipCount      int64              `json:"chip_count"`
	PaidAmount     Money              `json:"paid_amount"`
	RebuysCount    int                `json:"rebuys_count"`
	AddonsCount    int                `json:"addons_count"`
	EliminatedBy   []uint64           `json:"eliminated_by"`
	WithdrawReason string             `json:"withdraw_reason,omitempty"`
	CreatedAt      time.Time          `json:"created_at"`
	UpdatedAt      time.Time          `json:"updated_at"`
}

// Clone returns a copy that shares no slices with r.
func (r Registration) Clone() Registration {
	r.EliminatedBy = append([]uint64(nil), r.EliminatedBy...)
	return r
}

// Transaction is one append-only ledger row, linked to its predecessor by hash.
type Transaction struct {
	ID              uint64          `json:"id"`
	TournamentID    uint64          `json:"tournament_id"`
	PlayerID        uint64          `json:"player_id"`
	TransactionType TransactionType `json:"transaction_type"`
	Amount          Money           `json:"amount"`
	Chips           int64           `json:"chips"`
	Reason          string          `json:"reason,omitempty"`
	EliminatedBy    []uint64        `json:"eliminated_by,omitempty"`
	ActorUserID     uint64          `json:"actor_user_id"`
	CreatedAt       time.Time       `json:"created_at"`
	PrevHash        string          `json:"prev_hash"`
	Hash            string          `json:"hash"`
}

// SeatRef identifies one seat.
type SeatRef struct {
	TableID    uint64 `json:"table_id"`
	SeatNumber int    `json:"seat_number"`
}

func (r SeatRef) String() string { return fmt.Sprintf("%d/%d", r.TableID, r.SeatNumber) }

// Seat is one position at a table. RegistrationID 0 means empty.
type Seat struct {
	SeatNumber     int    `json:"seat_number"`
	RegistrationID uint64 `json:"registration_id,omitempty"`
}

func (s Seat) Empty() bool { return s.RegistrationID == 0 }

// Table is a physical table and its seats.
type Table struct {
	ID           uint64      `json:"id"`
	TournamentID uint64      `json:"tournament_id"`
	MaxSeats     int         `json:"max_seats"`
	Status       TableStatus `json:"status"`
	CreatedAt    time.Time   `json:"created_at"`
	// Seats is indexed by seat number minus one.
	Seats []Seat `json:"seats"`
}

// NewTable returns an active table with every seat empty.
func NewTable(tournamentID uint64, maxSeats int, now time.Time) Table {
	t := Table{
		TournamentID: tournamentID,
		MaxSeats:     maxSeats,
		Status:       TableActive,
		CreatedAt:    now,
		Seats:        make([]Seat, maxSeats),
	}
	for i := range t.Seats {
		t.Seats[i].SeatNumber = i + 1
	}
	return t
}

func (t Table) Clone() Table {
	t.Seats = append([]Seat(nil), t.Seats...)
	return t
}

func (t Table) Occupied() int {
	n := 0
	for _, s := range t.Seats {
		if !s.Empty() {
			n++
		}
	}
	return n
}

func (t Table) ValidSeat(n int) bool { return n >= 1 && n <= t.MaxSeats }

// Occupant returns the registration seated at n, or 0.
func (t Table) Occupant(n int) uint64 {
	if !t.ValidSeat(n) || n > len(t.Seats) {
		return 0
	}
	return t.Seats[n-1].RegistrationID
}

func (t Table) lowestEmptySeat() int {
	for _, s := range t.Seats {
		if s.Empty() {
			return s.SeatNumber
		}
	}
	return 0
}

func (t Table) highestOccupiedSeat() int {
	for i := len(t.Seats) - 1; i >= 0; i-- {
		if !t.Seats[i].Empty() {
			return t.Seats[i].SeatNumber
		}
	}
	return 0
}
