package tournament

// Snapshot is the state returned to callers after every operation.
type Snapshot struct {
	TournamentID  uint64     `json:"tournament_id"`
	Clock         ClockState `json:"clock"`
	Tables        []Table    `json:"tables"`
	SeatedPlayers int        `json:"seated_players"`
	ActivePlayers int        `json:"active_players"`
	Entrants      int        `json:"entrants"`
	PrizePool     Money      `json:"prize_pool"`
}

// Summarize fills the player counts of s from the registrations.
func (s *Snapshot) Summarize(regs []Registration) {
	s.ActivePlayers, s.Entrants = 0, 0
	for _, r := range regs {
		if r.Status == StatusActive {
			s.ActivePlayers++
		}
		if r.Status != StatusRegistered {
			s.Entrants++
		}
	}
	s.SeatedPlayers = 0
	for _, t := range s.Tables {
		if t.Status == TableActive {
			s.SeatedPlayers += t.Occupied()
		}
	}
}
