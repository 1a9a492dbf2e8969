// Package codec encodes tournament snapshots in protobuf wire format for
// websocket clients. The messages are:
//
//	message ServerEnvelope {
//	  uint64 tournament_id = 1;
//	  uint64 server_seq = 2;
//	  int64 server_ts_ms = 3;
//	  TournamentSnapshot snapshot = 4;
//	}
//	message TournamentSnapshot {
//	  uint64 tournament_id = 1;
//	  ClockState clock = 2;
//	  repeated Table tables = 3;
//	  uint32 seated_players = 4;
//	  uint32 active_players = 5;
//	  uint32 entrants = 6;
//	  int64 prize_pool_cents = 7;
//	}
//	message ClockState {
//	  ClockStatus status = 1;
//	  uint32 current_level = 2;
//	  int64 time_remaining_ms = 3;
//	  int64 updated_at_ms = 4;
//	}
//	message Table { uint64 id = 1; uint32 max_seats = 2; TableStatus status = 3; repeated Seat seats = 4; }
//	message Seat { uint32 seat_number = 1; uint64 registration_id = 2; }
//
// Only occupied seats are written.
package codec

import (
	"fmt"
	"time"

	"google.golang.org/protobuf/encoding/protowire"

	"tourney-lite/tournament"
)

// Proto enum values for ClockStatus.
const (
	clockStatusUnspecified uint64 = iota
	clockStatusNotStarted
	clockStatusRunning
	clockStatusPaused
	clockStatusOnBreak
	clockStatusFinished
)

const (
	tableStatusUnspecified uint64 = iota
	tableStatusActive
	tableStatusBroken
)

type Envelope struct {
	TournamentID uint64
	ServerSeq    uint64
	ServerTime   time.Time
	Snapshot     tournament.Snapshot
}

// WrapSnapshot creates an Envelope stamped with the server time.
func WrapSnapshot(serverSeq uint64, snap tournament.Snapshot, now time.Time) Envelope {
	return Envelope{
		TournamentID: snap.TournamentID,
		ServerSeq:    serverSeq,
		ServerTime:   now,
		Snapshot:     snap,
	}
}

func MarshalEnvelope(env Envelope) []byte {
	var b []byte
	b = appendUint(b, 1, env.TournamentID)
	b = appendUint(b, 2, env.ServerSeq)
	b = appendInt(b, 3, env.ServerTime.UnixMilli())
	b = protowire.AppendTag(b, 4, protowire.BytesType)
	b = protowire.AppendBytes(b, MarshalSnapshot(env.Snapshot))
	return b
}

func UnmarshalEnvelope(b []byte) (Envelope, error) {
	var env Envelope
	err := walk(b, func(num protowire.Number, typ protowire.Type, v uint64, raw []byte) error {
		switch num {
		case 1:
			env.TournamentID = v
		case 2:
			env.ServerSeq = v
		case 3:
			env.ServerTime = time.UnixMilli(int64(v)).UTC()
		case 4:
			snap, err := UnmarshalSnapshot(raw)
			if err != nil {
				return err
			}
			env.Snapshot = snap
		}
		return nil
	})
	return env, err
}

func MarshalSnapshot(s tournament.Snapshot) []byte {
	var b []byte
	b = appendUint(b, 1, s.TournamentID)
	b = protowire.AppendTag(b, 2, protowire.BytesType)
	b = protowire.AppendBytes(b, marshalClock(s.Clock))
	for _, t := range s.Tables {
		b = protowire.AppendTag(b, 3, protowire.BytesType)
		b = protowire.AppendBytes(b, marshalTable(t))
	}
	b = appendUint(b, 4, uint64(s.SeatedPlayers))
	b = appendUint(b, 5, uint64(s.ActivePlayers))
	b = appendUint(b, 6, uint64(s.Entrants))
	b = appendInt(b, 7, int64(s.PrizePool))
	return b
}

func UnmarshalSnapshot(b []byte) (tournament.Snapshot, error) {
	s := tournament.Snapshot{Tables: []tournament.Table{}}
	err := walk(b, func(num protowire.Number, typ protowire.Type, v uint64, raw []byte) error {
		switch num {
		case 1:
			s.TournamentID = v
		case 2:
			c, err := unmarshalClock(raw)
			if err != nil {
				return err
			}
			s.Clock = c
		case 3:
			t, err := unmarshalTable(raw)
			if err != nil {
				return err
			}
			s.Tables = append(s.Tables, t)
		case 4:
			s.SeatedPlayers = int(v)
		case 5:
			s.ActivePlayers = int(v)
		case 6:
			s.Entrants = int(v)
		case 7:
			s.PrizePool = tournament.Money(int64(v))
		}
		return nil
	})
	if err != nil {
		return tournament.Snapshot{}, err
	}
	s.Clock.TournamentID = s.TournamentID
	for i := range s.Tables {
		s.Tables[i].TournamentID = s.TournamentID
	}
	return s, nil
}

func marshalClock(c tournament.ClockState) []byte {
	var b []byte
	b = appendUint(b, 1, clockStatusToProto(c.Status))
	b = appendUint(b, 2, uint64(c.CurrentLevel))
	b = appendInt(b, 3, c.TimeRemaining.Milliseconds())
	b = appendInt(b, 4, c.UpdatedAt.UnixMilli())
	return b
}

func unmarshalClock(b []byte) (tournament.ClockState, error) {
	var c tournament.ClockState
	err := walk(b, func(num protowire.Number, _ protowire.Type, v uint64, _ []byte) error {
		switch num {
		case 1:
			c.Status = protoToClockStatus(v)
		case 2:
			c.CurrentLevel = int(v)
		case 3:
			c.TimeRemaining = time.Duration(int64(v)) * time.Millisecond
		case 4:
			c.UpdatedAt = time.UnixMilli(int64(v)).UTC()
		}
		return nil
	})
	return c, err
}

func marshalTable(t tournament.Table) []byte {
	var b []byte
	b = appendUint(b, 1, t.ID)
	b = appendUint(b, 2, uint64(t.MaxSeats))
	b = appendUint(b, 3, tableStatusToProto(t.Status))
	for _, seat := range t.Seats {
		if seat.Empty() {
			continue
		}
		var sb []byte
		sb = appendUint(sb, 1, uint64(seat.SeatNumber))
		sb = appendUint(sb, 2, seat.RegistrationID)
		b = protowire.AppendTag(b, 4, protowire.BytesType)
		b = protowire.AppendBytes(b, sb)
	}
	return b
}

func unmarshalTable(b []byte) (tournament.Table, error) {
	var (
		t     tournament.Table
		seats []tournament.Seat
	)
	err := walk(b, func(num protowire.Number, _ protowire.Type, v uint64, raw []byte) error {
		switch num {
		case 1:
			t.ID = v
		case 2:
			t.MaxSeats = int(v)
		case 3:
			t.Status = protoToTableStatus(v)
		case 4:
			var seat tournament.Seat
			err := walk(raw, func(num protowire.Number, _ protowire.Type, v uint64, _ []byte) error {
				switch num {
				case 1:
					seat.SeatNumber = int(v)
				case 2:
					seat.RegistrationID = v
				}
				return nil
			})
			if err != nil {
				return err
			}
			seats = append(seats, seat)
		}
		return nil
	})
	if err != nil {
		return tournament.Table{}, err
	}
	full := tournament.NewTable(0, t.MaxSeats, time.Time{})
	full.ID = t.ID
	full.Status = t.Status
	for _, seat := range seats {
		if !full.ValidSeat(seat.SeatNumber) {
			return tournament.Table{}, fmt.Errorf("table %d: seat %d out of range", t.ID, seat.SeatNumber)
		}
		full.Seats[seat.SeatNumber-1].RegistrationID = seat.RegistrationID
	}
	return full, nil
}

func appendUint(b []byte, num protowire.Number, v uint64) []byte {
	if v == 0 {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, v)
}

func appendInt(b []byte, num protowire.Number, v int64) []byte {
	return appendUint(b, num, uint64(v))
}

// walk visits every field of a message. v holds varint values, raw holds
// length-delimited payloads. Unknown wire types are skipped.
func walk(b []byte, fn func(num protowire.Number, typ protowire.Type, v uint64, raw []byte) error) error {
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return protowire.ParseError(n)
		}
		b = b[n:]
		switch typ {
		case protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return protowire.ParseError(n)
			}
			b = b[n:]
			if err := fn(num, typ, v, nil); err != nil {
				return err
			}
		case protowire.BytesType:
			raw, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return protowire.ParseError(n)
			}
			b = b[n:]
			if err := fn(num, typ, 0, raw); err != nil {
				return err
			}
		default:
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return protowire.ParseError(n)
			}
			b = b[n:]
		}
	}
	return nil
}

func clockStatusToProto(s tournament.ClockStatus) uint64 {
	switch s {
	case tournament.ClockNotStarted:
		return clockStatusNotStarted
	case tournament.ClockRunning:
		return clockStatusRunning
	case tournament.ClockPaused:
		return clockStatusPaused
	case tournament.ClockOnBreak:
		return clockStatusOnBreak
	case tournament.ClockFinished:
		return clockStatusFinished
	default:
		return clockStatusUnspecified
	}
}

func protoToClockStatus(v uint64) tournament.ClockStatus {
	switch v {
	case clockStatusNotStarted:
		return tournament.ClockNotStarted
	case clockStatusRunning:
		return tournament.ClockRunning
	case clockStatusPaused:
		return tournament.ClockPaused
	case clockStatusOnBreak:
		return tournament.ClockOnBreak
	case clockStatusFinished:
		return tournament.ClockFinished
	default:
		return ""
	}
}

func tableStatusToProto(s tournament.TableStatus) uint64 {
	switch s {
	case tournament.TableActive:
		return tableStatusActive
	case tournament.TableBroken:
		return tableStatusBroken
	default:
		return tableStatusUnspecified
	}
}

func protoToTableStatus(v uint64) tournament.TableStatus {
	switch v {
	case tableStatusActive:
		return tournament.TableActive
	case tableStatusBroken:
		return tournament.TableBroken
	default:
		return ""
	}
}
