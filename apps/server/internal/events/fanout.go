package events

import (
	"context"
	"log"
	"sync"
)

const subscriberBuffer = 16

// Fanout pushes encoded snapshots to everyone watching a tournament.
type Fanout interface {
	Broadcast(ctx context.Context, tournamentID uint64, payload []byte) error
	// Subscribe returns a channel of payloads and a func that ends the
	// subscription and closes the channel.
	Subscribe(tournamentID uint64) (<-chan []byte, func())
	Close() error
}

// Hub is the in-process Fanout. A slow subscriber drops payloads rather than
// stalling the broadcaster; every payload is a full snapshot so the next one
// catches it up.
type Hub struct {
	mu   sync.Mutex
	subs map[uint64]map[chan []byte]struct{}
}

func NewHub() *Hub {
	return &Hub{subs: make(map[uint64]map[chan []byte]struct{})}
}

func (h *Hub) Broadcast(_ context.Context, tournamentID uint64, payload []byte) error {
	h.Deliver(tournamentID, payload)
	return nil
}

// Deliver hands payload to the local subscribers of tournamentID.
func (h *Hub) Deliver(tournamentID uint64, payload []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.subs[tournamentID] {
		select {
		case ch <- payload:
		default:
			log.Printf("[Events] subscriber lagging, dropped snapshot: tournament=%d", tournamentID)
		}
	}
}

func (h *Hub) Subscribe(tournamentID uint64) (<-chan []byte, func()) {
	ch := make(chan []byte, subscriberBuffer)
	h.mu.Lock()
	set, ok := h.subs[tournamentID]
	if !ok {
		set = make(map[chan []byte]struct{})
		h.subs[tournamentID] = set
	}
	set[ch] = struct{}{}
	h.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			if set, ok := h.subs[tournamentID]; ok {
				if _, ok := set[ch]; ok {
					delete(set, ch)
					close(ch)
				}
				if len(set) == 0 {
					delete(h.subs, tournamentID)
				}
			}
			h.mu.Unlock()
		})
	}
}

// Subscribers reports how many local subscribers watch tournamentID.
func (h *Hub) Subscribers(tournamentID uint64) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs[tournamentID])
}

func (h *Hub) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	for tid, set := range h.subs {
		for ch := range set {
			close(ch)
		}
		delete(h.subs, tid)
	}
	return nil
}
