package director

import (
	"fmt"

	"tourney-lite/tournament"
)

// RebuyPolicy decides whether the tournament currently accepts a purchase.
type RebuyPolicy interface {
	AllowRebuy(clock tournament.ClockState, r tournament.Registration) error
	AllowAddon(clock tournament.ClockState, r tournament.Registration) error
}

// LevelPolicy gates purchases by blind level. Zero values lift the matching
// limit; a finished tournament always refuses.
type LevelPolicy struct {
	RebuyUntilLevel int  `yaml:"rebuy_until_level"`
	MaxRebuys       int  `yaml:"max_rebuys"`
	AddonFromLevel  int  `yaml:"addon_from_level"`
	MaxAddons       int  `yaml:"max_addons"`
	AddonBreakOnly  bool `yaml:"addon_break_only"`
}

func (p LevelPolicy) AllowRebuy(clock tournament.ClockState, r tournament.Registration) error {
	switch {
	case clock.Status == tournament.ClockFinished:
		return fmt.Errorf("%w: tournament finished", tournament.ErrRebuyNotAllowed)
	case p.RebuyUntilLevel > 0 && clock.CurrentLevel > p.RebuyUntilLevel:
		return fmt.Errorf("%w: rebuys closed after level %d", tournament.ErrRebuyNotAllowed, p.RebuyUntilLevel)
	case p.MaxRebuys > 0 && r.RebuysCount >= p.MaxRebuys:
		return fmt.Errorf("%w: player %d reached %d rebuys", tournament.ErrRebuyNotAllowed, r.PlayerID, p.MaxRebuys)
	}
	return nil
}

func (p LevelPolicy) AllowAddon(clock tournament.ClockState, r tournament.Registration) error {
	switch {
	case clock.Status == tournament.ClockFinished:
		return fmt.Errorf("%w: tournament finished", tournament.ErrAddonNotAllowed)
	case p.AddonFromLevel > 0 && clock.CurrentLevel < p.AddonFromLevel:
		return fmt.Errorf("%w: add-ons open at level %d", tournament.ErrAddonNotAllowed, p.AddonFromLevel)
	case p.AddonBreakOnly && clock.Status != tournament.ClockOnBreak:
		return fmt.Errorf("%w: add-ons only during breaks", tournament.ErrAddonNotAllowed)
	case p.MaxAddons > 0 && r.AddonsCount >= p.MaxAddons:
		return fmt.Errorf("%w: player %d reached %d add-ons", tournament.ErrAddonNotAllowed, r.PlayerID, p.MaxAddons)
	}
	return nil
}
