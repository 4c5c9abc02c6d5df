package bus

import (
	"context"
	"testing"
	"time"
)

func TestPublishAndConsume(t *testing.T) {
	mb := NewMessageBus()
	defer mb.Close()

	mb.PublishInbound(InboundMessage{UserID: "u1", Text: "oi", Ref: MessageRef{ID: "m1"}})

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	msg, ok := mb.ConsumeInbound(ctx)
	if !ok {
		t.Fatalf("expected a message")
	}
	if msg.UserID != "u1" || msg.Text != "oi" || msg.Ref.ID != "m1" {
		t.Fatalf("unexpected message: %+v", msg)
	}
}

func TestConsumeStopsOnContextCancel(t *testing.T) {
	mb := NewMessageBus()
	defer mb.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, ok := mb.ConsumeInbound(ctx); ok {
		t.Fatalf("cancelled consume should report not ok")
	}
}

func TestPublishAfterCloseIsSafe(t *testing.T) {
	mb := NewMessageBus()
	mb.Close()
	mb.Close()

	// Must not panic.
	mb.PublishInbound(InboundMessage{UserID: "u1", Text: "oi"})
}

func TestConsumeAfterCloseDrainsThenStops(t *testing.T) {
	mb := NewMessageBus()
	mb.PublishInbound(InboundMessage{UserID: "u1", Text: "oi"})
	mb.Close()

	ctx := context.Background()
	if msg, ok := mb.ConsumeInbound(ctx); !ok || msg.UserID != "u1" {
		t.Fatalf("buffered message should survive close: %+v ok=%v", msg, ok)
	}
	if _, ok := mb.ConsumeInbound(ctx); ok {
		t.Fatalf("drained closed bus should report not ok")
	}
}
