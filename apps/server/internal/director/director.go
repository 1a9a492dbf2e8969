// Package director is the operation API a tournament director's tools call.
// Every entry point runs as one serialized unit per tournament: tick the
// clock, validate, mutate, and return the resulting snapshot.
package director

import (
	"context"
	"errors"
	"log"
	"sync/atomic"
	"time"

	"tourney-lite/apps/server/internal/codec"
	"tourney-lite/apps/server/internal/events"
	"tourney-lite/apps/server/internal/ledger"
	"tourney-lite/apps/server/internal/lock"
	"tourney-lite/apps/server/internal/store"
	"tourney-lite/apps/server/internal/timesource"
	"tourney-lite/tournament"
)

const (
	DefaultMaxSeats = 9
	publishTimeout  = 2 * time.Second
)

// Options configures a Director. Only Store is required.
type Options struct {
	Store     store.Store
	Now       timesource.Source
	Policy    RebuyPolicy
	Publisher events.Publisher
	// Fanout receives an encoded snapshot after every committed mutation.
	Fanout          events.Fanout
	DefaultMaxSeats int
}

// Director serializes every operation on a tournament and publishes the
// committed result.
type Director struct {
	store           store.Store
	now             timesource.Source
	locks           *lock.Keyed
	policy          RebuyPolicy
	publisher       events.Publisher
	fanout          events.Fanout
	defaultMaxSeats int
	seq             atomic.Uint64
}

// New returns a Director with defaults filled in for any unset option.
func New(opts Options) *Director {
	d := &Director{
		store:           opts.Store,
		now:             opts.Now,
		locks:           lock.NewKeyed(),
		policy:          opts.Policy,
		publisher:       opts.Publisher,
		fanout:          opts.Fanout,
		defaultMaxSeats: opts.DefaultMaxSeats,
	}
	if d.now == nil {
		d.now = timesource.Real()
	}
	if d.policy == nil {
		d.policy = LevelPolicy{}
	}
	if d.publisher == nil {
		d.publisher = events.Noop()
	}
	if d.defaultMaxSeats <= 0 {
		d.defaultMaxSeats = DefaultMaxSeats
	}
	return d
}

// op is the state of one serialized unit of work.
type op struct {
	ctx        context.Context
	tx         store.Tx
	now        time.Time
	actor      uint64
	clock      tournament.ClockState
	clockDirty bool
	events     []events.Event
}

func (o *op) emit(kind events.Kind, payload any) {
	o.events = append(o.events, events.New(kind, o.tx.TournamentID(), o.actor, o.now, payload))
}

// loadClock creates the clock on first access and applies the pending tick.
func (o *op) loadClock() error {
	c, err := o.tx.GetClock(o.ctx)
	switch {
	case errors.Is(err, store.ErrNotFound):
		o.clock = tournament.NewClockState(o.tx.TournamentID(), o.now)
		o.clockDirty = true
		return nil
	case err != nil:
		return err
	}
	o.clock = c
	if o.clock.Status == tournament.ClockRunning {
		o.clock.Tick(o.now)
		o.clockDirty = true
	}
	return nil
}

func (o *op) registration(playerID uint64) (tournament.Registration, error) {
	r, err := o.tx.GetRegistration(o.ctx, playerID)
	if errors.Is(err, store.ErrNotFound) {
		return tournament.Registration{}, notFound(tournament.ErrRegistrationNotFound, "player", playerID)
	}
	return r, err
}

func (o *op) registrationByID(registrationID uint64) (tournament.Registration, error) {
	r, err := o.tx.GetRegistrationByID(o.ctx, registrationID)
	if errors.Is(err, store.ErrNotFound) {
		return tournament.Registration{}, notFound(tournament.ErrRegistrationNotFound, "registration", registrationID)
	}
	return r, err
}

func (o *op) table(tableID uint64) (tournament.Table, error) {
	t, err := o.tx.GetTable(o.ctx, tableID)
	if errors.Is(err, store.ErrNotFound) {
		return tournament.Table{}, notFound(tournament.ErrTableNotFound, "table", tableID)
	}
	return t, err
}

type runMode int

const (
	modeMutate runMode = iota
	// modeRead still persists the tick but publishes nothing.
	modeRead
)

// run executes fn under the tournament lock inside one store transaction and
// returns the snapshot as committed. Events and the broadcast go out after
// the lock is released.
func (d *Director) run(ctx context.Context, tournamentID, actor uint64, mode runMode, fn func(o *op) error) (tournament.Snapshot, error) {
	if tournamentID == 0 {
		return tournament.Snapshot{}, tournament.ErrTournamentNotFound
	}
	unlock, err := d.locks.Lock(ctx, tournamentID)
	if err != nil {
		return tournament.Snapshot{}, err
	}

	var (
		snap tournament.Snapshot
		o    *op
	)
	err = d.store.Update(ctx, tournamentID, func(tx store.Tx) error {
		o = &op{ctx: ctx, tx: tx, now: d.now.Now(), actor: actor}
		if err := o.loadClock(); err != nil {
			return err
		}
		if err := fn(o); err != nil {
			return err
		}
		if o.clockDirty {
			if err := tx.PutClock(ctx, o.clock); err != nil {
				return err
			}
		}
		var err error
		snap, err = buildSnapshot(ctx, tx, o.clock)
		return err
	})
	if err != nil {
		unlock()
		return tournament.Snapshot{}, err
	}

	var payload []byte
	if mode == modeMutate && d.fanout != nil {
		payload = codec.MarshalEnvelope(codec.WrapSnapshot(d.seq.Add(1), snap, o.now))
	}
	unlock()

	if mode == modeMutate {
		d.publish(ctx, tournamentID, o.events, payload)
	}
	return snap, nil
}

func (d *Director) publish(ctx context.Context, tournamentID uint64, evs []events.Event, payload []byte) {
	if len(evs) == 0 && payload == nil {
		return
	}
	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()
	for _, ev := range evs {
		if err := d.publisher.Publish(pubCtx, ev); err != nil {
			log.Printf("[Director] publish event failed: tournament=%d kind=%s id=%s err=%v", tournamentID, ev.Kind, ev.ID, err)
		}
	}
	if payload != nil {
		if err := d.fanout.Broadcast(pubCtx, tournamentID, payload); err != nil {
			log.Printf("[Director] broadcast snapshot failed: tournament=%d err=%v", tournamentID, err)
		}
	}
}

// view runs a read that does not need the clock.
func (d *Director) view(ctx context.Context, tournamentID uint64, fn func(tx store.Tx) error) error {
	if tournamentID == 0 {
		return tournament.ErrTournamentNotFound
	}
	return d.store.View(ctx, tournamentID, fn)
}

func buildSnapshot(ctx context.Context, tx store.Tx, clock tournament.ClockState) (tournament.Snapshot, error) {
	tables, err := tx.ListTables(ctx, tournament.TableActive)
	if err != nil {
		return tournament.Snapshot{}, err
	}
	regs, err := tx.ListRegistrations(ctx)
	if err != nil {
		return tournament.Snapshot{}, err
	}
	sum, err := ledger.Summarize(ctx, tx, 0)
	if err != nil {
		return tournament.Snapshot{}, err
	}
	snap := tournament.Snapshot{
		TournamentID: tx.TournamentID(),
		Clock:        clock,
		Tables:       tables,
		PrizePool:    sum.PrizePool,
	}
	snap.Summarize(regs)
	return snap, nil
}

// GetState ticks the clock and returns the current snapshot. The first call
// for a tournament initializes its clock.
func (d *Director) GetState(ctx context.Context, tournamentID uint64) (tournament.Snapshot, error) {
	return d.run(ctx, tournamentID, 0, modeRead, func(*op) error { return nil })
}

// PeekState returns the snapshot as GetState would, but writes nothing: the
// pending tick is applied to a copy and a tournament with no clock yet is
// ErrTournamentNotFound instead of being created.
func (d *Director) PeekState(ctx context.Context, tournamentID uint64) (tournament.Snapshot, error) {
	now := d.now.Now()
	var snap tournament.Snapshot
	err := d.view(ctx, tournamentID, func(tx store.Tx) error {
		clock, err := tx.GetClock(ctx)
		if errors.Is(err, store.ErrNotFound) {
			return notFound(tournament.ErrTournamentNotFound, "tournament", tournamentID)
		}
		if err != nil {
			return err
		}
		clock.Tick(now)
		snap, err = buildSnapshot(ctx, tx, clock)
		return err
	})
	return snap, err
}
