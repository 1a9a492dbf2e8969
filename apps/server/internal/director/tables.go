package director

import (
	"context"
	"errors"
	"fmt"
	"log"

	"tourney-lite/apps/server/internal/events"
	"tourney-lite/apps/server/internal/store"
	"tourney-lite/tournament"
)

// AddTable creates a table with every seat empty. maxSeats 0 uses the
// configured default.
func (d *Director) AddTable(ctx context.Context, tournamentID, actor uint64, maxSeats int) (tournament.Table, tournament.Snapshot, error) {
	if maxSeats == 0 {
		maxSeats = d.defaultMaxSeats
	}
	if maxSeats < 0 {
		return tournament.Table{}, tournament.Snapshot{}, fmt.Errorf("%w: max_seats=%d", tournament.ErrInvalidSeatNumber, maxSeats)
	}
	var created tournament.Table
	snap, err := d.run(ctx, tournamentID, actor, modeMutate, func(o *op) error {
		t := tournament.NewTable(tournamentID, maxSeats, o.now)
		if err := o.tx.InsertTable(o.ctx, &t); err != nil {
			return err
		}
		created = t
		o.emit(events.KindTableAdded, t)
		return nil
	})
	if err != nil {
		return tournament.Table{}, tournament.Snapshot{}, err
	}
	log.Printf("[Director] table added: tournament=%d table=%d seats=%d", tournamentID, created.ID, maxSeats)
	return created, snap, nil
}

// RemoveTable marks an empty table broken.
func (d *Director) RemoveTable(ctx context.Context, tournamentID, actor, tableID uint64) (tournament.Snapshot, error) {
	snap, err := d.run(ctx, tournamentID, actor, modeMutate, func(o *op) error {
		return o.breakTable(tableID)
	})
	if err != nil {
		return tournament.Snapshot{}, err
	}
	log.Printf("[Director] table removed: tournament=%d table=%d", tournamentID, tableID)
	return snap, nil
}

func (o *op) breakTable(tableID uint64) error {
	t, err := o.table(tableID)
	if err != nil {
		return err
	}
	if t.Status == tournament.TableBroken {
		return fmt.Errorf("%w: table %d", tournament.ErrTableBroken, tableID)
	}
	if n := t.Occupied(); n > 0 {
		return fmt.Errorf("%w: table %d has %d players", tournament.ErrTableNotEmpty, tableID, n)
	}
	if err := o.tx.SetTableStatus(o.ctx, tableID, tournament.TableBroken); err != nil {
		return err
	}
	t.Status = tournament.TableBroken
	o.emit(events.KindTableBroken, t)
	return nil
}

// GetTables lists tables in creation order. An empty status lists all.
func (d *Director) GetTables(ctx context.Context, tournamentID uint64, status tournament.TableStatus) ([]tournament.Table, error) {
	if status != "" && !status.Valid() {
		return nil, fmt.Errorf("unknown table status %q", status)
	}
	var tables []tournament.Table
	err := d.view(ctx, tournamentID, func(tx store.Tx) error {
		var err error
		tables, err = tx.ListTables(ctx, status)
		return err
	})
	return tables, err
}

// GetSeatedPlayerCount counts occupied seats across active tables.
func (d *Director) GetSeatedPlayerCount(ctx context.Context, tournamentID uint64) (int, error) {
	tables, err := d.GetTables(ctx, tournamentID, tournament.TableActive)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, t := range tables {
		n += t.Occupied()
	}
	return n, nil
}

// validateAssignment resolves and checks a target seat for registrationID.
// Seat number 0 picks the lowest empty seat.
func validateAssignment(ctx context.Context, tx store.Tx, registrationID uint64, to tournament.SeatRef) (tournament.SeatRef, error) {
	r, err := tx.GetRegistrationByID(ctx, registrationID)
	if errors.Is(err, store.ErrNotFound) {
		return to, notFound(tournament.ErrRegistrationNotFound, "registration", registrationID)
	}
	if err != nil {
		return to, err
	}
	if !r.Status.Seatable() {
		return to, fmt.Errorf("%w: player %d is %s", tournament.ErrPlayerNotActive, r.PlayerID, r.Status)
	}
	t, err := tx.GetTable(ctx, to.TableID)
	if errors.Is(err, store.ErrNotFound) {
		return to, notFound(tournament.ErrTableNotFound, "table", to.TableID)
	}
	if err != nil {
		return to, err
	}
	if t.Status != tournament.TableActive {
		return to, fmt.Errorf("%w: table %d", tournament.ErrTableBroken, t.ID)
	}
	if to.SeatNumber == 0 {
		for _, s := range t.Seats {
			if s.Empty() {
				to.SeatNumber = s.SeatNumber
				return to, nil
			}
		}
		return to, fmt.Errorf("%w: table %d", tournament.ErrTableFull, t.ID)
	}
	if !t.ValidSeat(to.SeatNumber) {
		return to, fmt.Errorf("%w: seat %d on a %d-seat table", tournament.ErrInvalidSeatNumber, to.SeatNumber, t.MaxSeats)
	}
	if occupant := t.Occupant(to.SeatNumber); occupant != 0 {
		return to, fmt.Errorf("%w: seat %s holds registration %d", tournament.ErrSeatOccupied, to, occupant)
	}
	return to, nil
}

// ValidateAssignment previews whether registrationID may take the seat. It
// returns the resolved seat and changes nothing.
func (d *Director) ValidateAssignment(ctx context.Context, tournamentID, registrationID, tableID uint64, seatNumber int) (tournament.SeatRef, error) {
	ref := tournament.SeatRef{TableID: tableID, SeatNumber: seatNumber}
	err := d.view(ctx, tournamentID, func(tx store.Tx) error {
		var err error
		ref, err = validateAssignment(ctx, tx, registrationID, ref)
		return err
	})
	return ref, err
}

// move clears the player's current seat, if any, and takes the target. The
// target is re-checked here so a concurrent change cannot double-book it.
func (o *op) move(registrationID uint64, to tournament.SeatRef) (tournament.Move, error) {
	to, err := validateAssignment(o.ctx, o.tx, registrationID, to)
	if err != nil {
		return tournament.Move{}, err
	}
	m := tournament.Move{RegistrationID: registrationID, To: to}
	from, err := o.tx.FindSeat(o.ctx, registrationID)
	seated := err == nil
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return tournament.Move{}, err
	}
	if seated {
		m.From = from
		if err := o.tx.ClearSeat(o.ctx, from); err != nil {
			return tournament.Move{}, err
		}
	}
	if err := o.tx.OccupySeat(o.ctx, to, registrationID); err != nil {
		if seated {
			if rerr := o.tx.OccupySeat(o.ctx, from, registrationID); rerr != nil {
				return tournament.Move{}, fmt.Errorf("restore seat %s: %w", from, rerr)
			}
		}
		if errors.Is(err, store.ErrConflict) {
			err = fmt.Errorf("%w: registration %d already seated", tournament.ErrSeatOccupied, registrationID)
		}
		return tournament.Move{}, err
	}
	o.emit(events.KindSeatMoved, m)
	return m, nil
}

func (o *op) unseat(registrationID uint64) (bool, error) {
	from, err := o.tx.FindSeat(o.ctx, registrationID)
	if errors.Is(err, store.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := o.tx.ClearSeat(o.ctx, from); err != nil {
		return false, err
	}
	o.emit(events.KindSeatMoved, tournament.Move{RegistrationID: registrationID, From: from})
	return true, nil
}

// MovePlayer seats registrationID at the target, leaving any previous seat.
func (d *Director) MovePlayer(ctx context.Context, tournamentID, actor, registrationID, tableID uint64, seatNumber int) (tournament.Snapshot, error) {
	var m tournament.Move
	snap, err := d.run(ctx, tournamentID, actor, modeMutate, func(o *op) error {
		var err error
		m, err = o.move(registrationID, tournament.SeatRef{TableID: tableID, SeatNumber: seatNumber})
		return err
	})
	if err != nil {
		return tournament.Snapshot{}, err
	}
	log.Printf("[Director] player moved: tournament=%d registration=%d from=%s to=%s", tournamentID, registrationID, m.From, m.To)
	return snap, nil
}

// UnseatPlayer frees the player's seat. A player without a seat is left as is.
func (d *Director) UnseatPlayer(ctx context.Context, tournamentID, actor, registrationID uint64) (tournament.Snapshot, error) {
	return d.run(ctx, tournamentID, actor, modeMutate, func(o *op) error {
		if _, err := o.registrationByID(registrationID); err != nil {
			return err
		}
		_, err := o.unseat(registrationID)
		return err
	})
}
