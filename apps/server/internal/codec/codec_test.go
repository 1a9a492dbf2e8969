package codec

import (
	"testing"
	"time"

	"tourney-lite/tournament"
)

func TestEnvelopeCarriesSnapshot(t *testing.T) {
	now := time.Date(2026, 3, 1, 18, 0, 0, 0, time.UTC)
	clock := tournament.NewClockState(7, now)
	if err := clock.Start(900*time.Second, now); err != nil {
		t.Fatalf("Start err: %v", err)
	}
	table := tournament.NewTable(7, 9, now)
	table.ID = 3
	table.Seats[0].RegistrationID = 11
	table.Seats[8].RegistrationID = 12
	broken := tournament.NewTable(7, 6, now)
	broken.ID = 4
	broken.Status = tournament.TableBroken

	snap := tournament.Snapshot{
		TournamentID:  7,
		Clock:         clock,
		Tables:        []tournament.Table{table, broken},
		SeatedPlayers: 2,
		ActivePlayers: 2,
		Entrants:      3,
		PrizePool:     30000,
	}
	raw := MarshalEnvelope(WrapSnapshot(42, snap, now))

	env, err := UnmarshalEnvelope(raw)
	if err != nil {
		t.Fatalf("UnmarshalEnvelope err: %v", err)
	}
	if env.TournamentID != 7 || env.ServerSeq != 42 || !env.ServerTime.Equal(now) {
		t.Fatalf("unexpected envelope header %+v", env)
	}
	got := env.Snapshot
	if got.Clock.Status != tournament.ClockRunning || got.Clock.TimeRemaining != 900*time.Second || got.Clock.CurrentLevel != 1 {
		t.Fatalf("clock mismatch: %+v", got.Clock)
	}
	if len(got.Tables) != 2 {
		t.Fatalf("expected 2 tables, got %d", len(got.Tables))
	}
	if got.Tables[0].Occupant(1) != 11 || got.Tables[0].Occupant(9) != 12 || got.Tables[0].Occupied() != 2 {
		t.Fatalf("seat occupancy lost: %+v", got.Tables[0].Seats)
	}
	if got.Tables[1].Status != tournament.TableBroken || len(got.Tables[1].Seats) != 6 {
		t.Fatalf("broken table mismatch: %+v", got.Tables[1])
	}
	if got.PrizePool != 30000 || got.Entrants != 3 || got.SeatedPlayers != 2 {
		t.Fatalf("counts mismatch: %+v", got)
	}
}

func TestUnmarshalRejectsTruncatedInput(t *testing.T) {
	raw := MarshalSnapshot(tournament.Snapshot{TournamentID: 1, Tables: []tournament.Table{tournament.NewTable(1, 9, time.Time{})}})
	if _, err := UnmarshalSnapshot(raw[:len(raw)-3]); err == nil {
		t.Fatal("expected parse error for truncated payload")
	}
}
