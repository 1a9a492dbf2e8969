package events

import (
	"context"
	"testing"
	"time"
)

func TestHubDeliversPerTournament(t *testing.T) {
	h := NewHub()
	a, cancelA := h.Subscribe(1)
	b, cancelB := h.Subscribe(2)
	defer cancelB()

	_ = h.Broadcast(context.Background(), 1, []byte("snap-1"))
	select {
	case got := <-a:
		if string(got) != "snap-1" {
			t.Fatalf("got %q, want snap-1", got)
		}
	case <-time.After(time.Second):
		t.Fatal("subscriber of tournament 1 got nothing")
	}
	select {
	case got := <-b:
		t.Fatalf("tournament 2 subscriber received %q", got)
	default:
	}

	cancelA()
	cancelA()
	if _, ok := <-a; ok {
		t.Fatal("expected channel closed after cancel")
	}
	if n := h.Subscribers(1); n != 0 {
		t.Fatalf("expected no subscribers left, got %d", n)
	}
}

func TestHubDropsForSlowSubscriber(t *testing.T) {
	h := NewHub()
	ch, cancel := h.Subscribe(1)
	defer cancel()
	for i := 0; i < subscriberBuffer+5; i++ {
		_ = h.Broadcast(context.Background(), 1, []byte{byte(i)})
	}
	if n := len(ch); n != subscriberBuffer {
		t.Fatalf("expected buffer to cap at %d, got %d", subscriberBuffer, n)
	}
}

func TestRecorderAndEventIDs(t *testing.T) {
	var r Recorder
	now := time.Date(2026, 3, 1, 18, 0, 0, 0, time.UTC)
	a := New(KindTableAdded, 1, 5, now, nil)
	b := New(KindTableBroken, 1, 5, now, nil)
	if a.ID == "" || a.ID == b.ID {
		t.Fatalf("expected distinct event ids, got %q and %q", a.ID, b.ID)
	}
	_ = r.Publish(context.Background(), a)
	_ = r.Publish(context.Background(), b)
	kinds := r.Kinds()
	if len(kinds) != 2 || kinds[0] != KindTableAdded || kinds[1] != KindTableBroken {
		t.Fatalf("unexpected kinds %v", kinds)
	}
	if Channel(42) != "tourney:42:state" {
		t.Fatalf("unexpected channel name %q", Channel(42))
	}
}
