// Package events carries post-commit notifications out of the director:
// durable audit events to RabbitMQ and live state snapshots to subscribers.
package events

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

type Kind string

const (
	KindTransactionAppended Kind = "transaction.appended"
	KindClockChanged        Kind = "clock.changed"
	KindTableAdded          Kind = "table.added"
	KindTableBroken         Kind = "table.broken"
	KindPlayerWithdrawn     Kind = "player.withdrawn"
	KindSeatMoved           Kind = "seat.moved"
)

type Event struct {
	ID           string    `json:"id"`
	Kind         Kind      `json:"kind"`
	TournamentID uint64    `json:"tournament_id"`
	ActorUserID  uint64    `json:"actor_user_id,omitempty"`
	OccurredAt   time.Time `json:"occurred_at"`
	Payload      any       `json:"payload,omitempty"`
}

func New(kind Kind, tournamentID, actorUserID uint64, now time.Time, payload any) Event {
	return Event{
		ID:           uuid.NewString(),
		Kind:         kind,
		TournamentID: tournamentID,
		ActorUserID:  actorUserID,
		OccurredAt:   now,
		Payload:      payload,
	}
}

// Publisher delivers events. Callers treat failures as non-fatal.
type Publisher interface {
	Publish(ctx context.Context, ev Event) error
	Close() error
}

type noopPublisher struct{}

func (noopPublisher) Publish(context.Context, Event) error { return nil }
func (noopPublisher) Close() error                         { return nil }

func Noop() Publisher { return noopPublisher{} }

// Recorder keeps published events in memory.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *Recorder) Publish(_ context.Context, ev Event) error {
	r.mu.Lock()
	r.events = append(r.events, ev)
	r.mu.Unlock()
	return nil
}

func (r *Recorder) Close() error { return nil }

func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

// Kinds lists the recorded event kinds in publish order.
func (r *Recorder) Kinds() []Kind {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Kind, len(r.events))
	for i, ev := range r.events {
		out[i] = ev.Kind
	}
	return out
}
