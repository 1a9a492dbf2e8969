package tournament

import "time"

// MaxTickElapsed caps the elapsed time a single tick may subtract.
const MaxTickElapsed = 30 * time.Second

// ClockState is the per-tournament clock. All time advancement is derived from
// UpdatedAt when the state is read; nothing runs in the background.
type ClockState struct {
	TournamentID  uint64        `json:"tournament_id"`
	Status        ClockStatus   `json:"status"`
	CurrentLevel  int           `json:"current_level"`
	TimeRemaining time.Duration `json:"time_remaining"`
	UpdatedAt     time.Time     `json:"updated_at"`
}

// NewClockState returns the initial not_started clock.
func NewClockState(tournamentID uint64, now time.Time) ClockState {
	return ClockState{
		TournamentID: tournamentID,
		Status:       ClockNotStarted,
		CurrentLevel: 1,
		UpdatedAt:    now,
	}
}

// Tick subtracts the wall-clock time elapsed since UpdatedAt when running and
// returns the amount actually applied. Elapsed is clamped to [0, MaxTickElapsed]
// and TimeRemaining floors at zero; reaching zero does not change the level.
func (c *ClockState) Tick(now time.Time) time.Duration {
	if c.Status != ClockRunning {
		return 0
	}
	return c.ApplyElapsed(now.Sub(c.UpdatedAt), now)
}

// ApplyElapsed is the tick step with a caller-supplied elapsed duration.
func (c *ClockState) ApplyElapsed(elapsed time.Duration, now time.Time) time.Duration {
	if c.Status != ClockRunning {
		return 0
	}
	if elapsed < 0 {
		elapsed = 0
	}
	if elapsed > MaxTickElapsed {
		elapsed = MaxTickElapsed
	}
	if elapsed > c.TimeRemaining {
		elapsed = c.TimeRemaining
	}
	c.TimeRemaining -= elapsed
	c.UpdatedAt = now
	return elapsed
}

func (c *ClockState) Start(levelDuration time.Duration, now time.Time) error {
	if c.Status != ClockNotStarted {
		return invalidState("start", c.Status)
	}
	if levelDuration <= 0 {
		return ErrInvalidDuration
	}
	c.Status = ClockRunning
	c.CurrentLevel = 1
	c.TimeRemaining = levelDuration
	c.UpdatedAt = now
	return nil
}

// Pause stores the caller's authoritative remaining time.
func (c *ClockState) Pause(remaining time.Duration, now time.Time) error {
	if c.Status != ClockRunning {
		return invalidState("pause", c.Status)
	}
	if remaining < 0 {
		return ErrInvalidDuration
	}
	c.Status = ClockPaused
	c.TimeRemaining = remaining
	c.UpdatedAt = now
	return nil
}

// Resume restarts the clock without subtracting the paused interval.
func (c *ClockState) Resume(now time.Time) error {
	if c.Status != ClockPaused {
		return invalidState("resume", c.Status)
	}
	c.Status = ClockRunning
	c.UpdatedAt = now
	return nil
}

func (c *ClockState) AdvanceLevel(nextLevelDuration time.Duration, now time.Time) error {
	if c.Status != ClockRunning && c.Status != ClockPaused {
		return invalidState("advance_level", c.Status)
	}
	if nextLevelDuration <= 0 {
		return ErrInvalidDuration
	}
	c.CurrentLevel++
	c.TimeRemaining = nextLevelDuration
	c.UpdatedAt = now
	return nil
}

func (c *ClockState) StartBreak(breakDuration time.Duration, now time.Time) error {
	if c.Status != ClockRunning && c.Status != ClockPaused {
		return invalidState("start_break", c.Status)
	}
	if breakDuration <= 0 {
		return ErrInvalidDuration
	}
	c.Status = ClockOnBreak
	c.TimeRemaining = breakDuration
	c.UpdatedAt = now
	return nil
}

func (c *ClockState) EndBreak(nextLevelDuration time.Duration, now time.Time) error {
	if c.Status != ClockOnBreak {
		return invalidState("end_break", c.Status)
	}
	if nextLevelDuration <= 0 {
		return ErrInvalidDuration
	}
	c.Status = ClockRunning
	c.CurrentLevel++
	c.TimeRemaining = nextLevelDuration
	c.UpdatedAt = now
	return nil
}

// AddTime adjusts the remaining time by delta, which may be negative.
func (c *ClockState) AddTime(delta time.Duration) error {
	switch c.Status {
	case ClockRunning, ClockPaused, ClockOnBreak:
	default:
		return invalidState("add_time", c.Status)
	}
	c.TimeRemaining += delta
	if c.TimeRemaining < 0 {
		c.TimeRemaining = 0
	}
	return nil
}

func (c *ClockState) Finish(now time.Time) error {
	if c.Status == ClockFinished {
		return invalidState("finish", c.Status)
	}
	c.Status = ClockFinished
	c.UpdatedAt = now
	return nil
}

// Expired reports whether the current level or break has run out.
func (c ClockState) Expired() bool {
	switch c.Status {
	case ClockRunning, ClockPaused, ClockOnBreak:
		return c.TimeRemaining == 0
	}
	return false
}
