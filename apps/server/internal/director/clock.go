package director

import (
	"context"
	"log"
	"time"

	"tourney-lite/apps/server/internal/events"
	"tourney-lite/tournament"
)

type clockChange struct {
	Op    string                `json:"op"`
	Clock tournament.ClockState `json:"clock"`
}

func (d *Director) clockOp(ctx context.Context, tournamentID, actor uint64, name string, fn func(c *tournament.ClockState, now time.Time) error) (tournament.Snapshot, error) {
	snap, err := d.run(ctx, tournamentID, actor, modeMutate, func(o *op) error {
		if err := fn(&o.clock, o.now); err != nil {
			return err
		}
		o.clockDirty = true
		o.emit(events.KindClockChanged, clockChange{Op: name, Clock: o.clock})
		return nil
	})
	if err != nil {
		return tournament.Snapshot{}, err
	}
	log.Printf("[Director] clock %s: tournament=%d status=%s level=%d remaining=%s",
		name, tournamentID, snap.Clock.Status, snap.Clock.CurrentLevel, snap.Clock.TimeRemaining)
	return snap, nil
}

func (d *Director) StartClock(ctx context.Context, tournamentID, actor uint64, levelDuration time.Duration) (tournament.Snapshot, error) {
	return d.clockOp(ctx, tournamentID, actor, "start", func(c *tournament.ClockState, now time.Time) error {
		return c.Start(levelDuration, now)
	})
}

// PauseClock stores the caller's authoritative remaining time.
func (d *Director) PauseClock(ctx context.Context, tournamentID, actor uint64, remaining time.Duration) (tournament.Snapshot, error) {
	return d.clockOp(ctx, tournamentID, actor, "pause", func(c *tournament.ClockState, now time.Time) error {
		return c.Pause(remaining, now)
	})
}

func (d *Director) ResumeClock(ctx context.Context, tournamentID, actor uint64) (tournament.Snapshot, error) {
	return d.clockOp(ctx, tournamentID, actor, "resume", func(c *tournament.ClockState, now time.Time) error {
		return c.Resume(now)
	})
}

func (d *Director) AdvanceLevel(ctx context.Context, tournamentID, actor uint64, nextLevelDuration time.Duration) (tournament.Snapshot, error) {
	return d.clockOp(ctx, tournamentID, actor, "advance_level", func(c *tournament.ClockState, now time.Time) error {
		return c.AdvanceLevel(nextLevelDuration, now)
	})
}

func (d *Director) StartBreak(ctx context.Context, tournamentID, actor uint64, breakDuration time.Duration) (tournament.Snapshot, error) {
	return d.clockOp(ctx, tournamentID, actor, "start_break", func(c *tournament.ClockState, now time.Time) error {
		return c.StartBreak(breakDuration, now)
	})
}

func (d *Director) EndBreak(ctx context.Context, tournamentID, actor uint64, nextLevelDuration time.Duration) (tournament.Snapshot, error) {
	return d.clockOp(ctx, tournamentID, actor, "end_break", func(c *tournament.ClockState, now time.Time) error {
		return c.EndBreak(nextLevelDuration, now)
	})
}

// AddTime shifts the remaining time by delta, which may be negative.
func (d *Director) AddTime(ctx context.Context, tournamentID, actor uint64, delta time.Duration) (tournament.Snapshot, error) {
	return d.clockOp(ctx, tournamentID, actor, "add_time", func(c *tournament.ClockState, _ time.Time) error {
		return c.AddTime(delta)
	})
}

func (d *Director) FinishTournament(ctx context.Context, tournamentID, actor uint64) (tournament.Snapshot, error) {
	return d.clockOp(ctx, tournamentID, actor, "finish", func(c *tournament.ClockState, now time.Time) error {
		return c.Finish(now)
	})
}
