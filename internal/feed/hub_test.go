package feed

import (
	"context"
	"testing"
)

func TestHub_ListenAndPublish(t *testing.T) {
	hub := NewHub()
	ctx := context.Background()

	var a, b int
	cancelA := hub.Listen("u1_u2", func() { a++ })
	_ = hub.Listen("u1_u2", func() { b++ }) // second subscriber of the same room

	if err := hub.Publish(ctx, "u1_u2"); err != nil {
		t.Fatalf("expected publish success, got error: %v", err)
	}
	if a != 1 || b != 1 {
		t.Fatalf("both listeners should be woken once, got a=%d b=%d", a, b)
	}

	// cancel A and ensure it no longer receives notifications
	cancelA()
	cancelA() // idempotent

	if err := hub.Publish(ctx, "u1_u2"); err != nil {
		t.Fatalf("publish after cancel: %v", err)
	}
	if a != 1 || b != 2 {
		t.Fatalf("after cancel: a=%d b=%d", a, b)
	}
}

func TestHub_PublishWithoutListeners(t *testing.T) {
	hub := NewHub()

	if err := hub.Publish(context.Background(), "nobody_here"); err != nil {
		t.Fatalf("publishing to an idle room should not fail: %v", err)
	}
}

func TestHub_RoomsAreIsolated(t *testing.T) {
	hub := NewHub()

	var woke bool
	cancel := hub.Listen("u1_u3", func() { woke = true })
	defer cancel()

	_ = hub.Publish(context.Background(), "u1_u2")
	if woke {
		t.Fatal("listener of another room was woken")
	}
}

func TestHub_CleansEmptyRooms(t *testing.T) {
	hub := NewHub()

	c1 := hub.Listen("r", func() {})
	c2 := hub.Listen("r", func() {})
	if n := hub.Listeners("r"); n != 2 {
		t.Fatalf("Listeners = %d, want 2", n)
	}
	c1()
	c2()
	if n := hub.Listeners("r"); n != 0 {
		t.Fatalf("Listeners = %d after cancel, want 0", n)
	}

	hub.mu.RLock()
	defer hub.mu.RUnlock()
	if _, ok := hub.listeners["r"]; ok {
		t.Fatal("empty room entry should be removed")
	}
}
