package engine

import (
	"context"
	"sync"
	"testing"
	"time"

	"zapmenu/pkg/bus"
)

type orderedHandler struct {
	mu      sync.Mutex
	byUser  map[string][]string
	handled chan struct{}
}

func newOrderedHandler() *orderedHandler {
	return &orderedHandler{
		byUser:  make(map[string][]string),
		handled: make(chan struct{}, 100),
	}
}

func (h *orderedHandler) HandleInbound(ctx context.Context, msg bus.InboundMessage) error {
	h.mu.Lock()
	h.byUser[msg.UserID] = append(h.byUser[msg.UserID], msg.Text)
	h.mu.Unlock()
	h.handled <- struct{}{}
	return nil
}

func (h *orderedHandler) texts(userID string) []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]string, len(h.byUser[userID]))
	copy(out, h.byUser[userID])
	return out
}

func TestDispatcherPreservesPerUserOrder(t *testing.T) {
	handler := newOrderedHandler()
	mb := bus.NewMessageBus()
	d := NewDispatcher(handler, mb, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- d.Run(ctx) }()

	const perUser = 5
	for i := 0; i < perUser; i++ {
		mb.PublishInbound(bus.InboundMessage{UserID: "a", Text: string(rune('0' + i))})
		mb.PublishInbound(bus.InboundMessage{UserID: "b", Text: string(rune('0' + i))})
	}

	for i := 0; i < 2*perUser; i++ {
		select {
		case <-handler.handled:
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out waiting for message %d", i)
		}
	}

	for _, userID := range []string{"a", "b"} {
		got := handler.texts(userID)
		if len(got) != perUser {
			t.Fatalf("user %s: got %d messages, want %d", userID, len(got), perUser)
		}
		for i := 0; i < perUser; i++ {
			if got[i] != string(rune('0'+i)) {
				t.Fatalf("user %s: out of order at %d: %v", userID, i, got)
			}
		}
	}

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("dispatcher did not stop")
	}
}

func TestDispatcherStopsWhenBusCloses(t *testing.T) {
	handler := newOrderedHandler()
	mb := bus.NewMessageBus()
	d := NewDispatcher(handler, mb, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- d.Run(ctx) }()

	mb.PublishInbound(bus.InboundMessage{UserID: "a", Text: "oi"})
	select {
	case <-handler.handled:
	case <-time.After(2 * time.Second):
		t.Fatalf("message never handled")
	}

	if got := d.WorkerCount(); got != 1 {
		t.Fatalf("expected one live worker, got %d", got)
	}

	// Closing the bus ends the consume loop; cancelling the context lets
	// the idle worker exit so Run can return.
	mb.Close()
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("dispatcher did not stop")
	}
	if got := d.WorkerCount(); got != 0 {
		t.Fatalf("workers should be gone after shutdown, got %d", got)
	}
}
