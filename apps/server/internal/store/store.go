// Package store persists tournament aggregates. Every write goes through
// Update, which runs one atomic unit of work for a single tournament.
package store

import (
	"context"
	"errors"

	"tourney-lite/tournament"
)

var (
	ErrNotFound = errors.New("not found")
	// ErrConflict reports a uniqueness violation, such as a registration that
	// is already seated elsewhere or a player registered twice.
	ErrConflict = errors.New("conflict")
)

type Store interface {
	// Update runs fn inside a transaction scoped to tournamentID. If fn returns
	// an error nothing it wrote is kept.
	Update(ctx context.Context, tournamentID uint64, fn func(tx Tx) error) error
	// View runs fn against a consistent read of tournamentID.
	View(ctx context.Context, tournamentID uint64, fn func(tx Tx) error) error
	Close() error
}

// TransactionFilter selects ledger rows. Zero values mean "any".
type TransactionFilter struct {
	Type       tournament.TransactionType
	PlayerID   uint64
	Descending bool
	Limit      int
	Offset     int
}

// Totals aggregates ledger rows of one type.
type Totals struct {
	Count  int              `json:"count"`
	Amount tournament.Money `json:"amount"`
	Chips  int64            `json:"chips"`
}

// Tx is bound to one tournament; every method reads or writes only its rows.
type Tx interface {
	TournamentID() uint64

	GetClock(ctx context.Context) (tournament.ClockState, error)
	PutClock(ctx context.Context, c tournament.ClockState) error

	// InsertTable stores t with all seats and assigns t.ID.
	InsertTable(ctx context.Context, t *tournament.Table) error
	GetTable(ctx context.Context, tableID uint64) (tournament.Table, error)
	// ListTables returns tables in creation order. An empty status lists all.
	ListTables(ctx context.Context, status tournament.TableStatus) ([]tournament.Table, error)
	SetTableStatus(ctx context.Context, tableID uint64, status tournament.TableStatus) error
	// OccupySeat seats registrationID only if the seat is still empty.
	OccupySeat(ctx context.Context, ref tournament.SeatRef, registrationID uint64) error
	ClearSeat(ctx context.Context, ref tournament.SeatRef) error
	FindSeat(ctx context.Context, registrationID uint64) (tournament.SeatRef, error)

	// InsertRegistration assigns r.ID. Returns ErrConflict for a duplicate player.
	InsertRegistration(ctx context.Context, r *tournament.Registration) error
	GetRegistration(ctx context.Context, playerID uint64) (tournament.Registration, error)
	GetRegistrationByID(ctx context.Context, registrationID uint64) (tournament.Registration, error)
	ListRegistrations(ctx context.Context) ([]tournament.Registration, error)
	UpdateRegistration(ctx context.Context, r tournament.Registration) error

	// AppendTransaction assigns t.ID. Rows are never updated or deleted.
	AppendTransaction(ctx context.Context, t *tournament.Transaction) error
	LastTransaction(ctx context.Context) (tournament.Transaction, error)
	ListTransactions(ctx context.Context, f TransactionFilter) ([]tournament.Transaction, error)
	CountTransactions(ctx context.Context, typ tournament.TransactionType) (int, error)
	// SumTransactions totals the ledger by type, for one player or all when 0.
	SumTransactions(ctx context.Context, playerID uint64) (map[tournament.TransactionType]Totals, error)
}
