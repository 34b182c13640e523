package broker

import (
	"context"
	"testing"
	"time"
)

func recvPayload(t *testing.T, ch <-chan []byte) []byte {
	t.Helper()
	select {
	case payload, ok := <-ch:
		if !ok {
			t.Fatal("subscription channel closed")
		}
		return payload
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for payload")
	}
	return nil
}

func assertNoPayload(t *testing.T, ch <-chan []byte, wait time.Duration) {
	t.Helper()
	select {
	case payload, ok := <-ch:
		if ok {
			t.Fatalf("unexpected payload: %s", payload)
		}
	case <-time.After(wait):
	}
}

func TestMemoryBroker_FanOutPerRoom(t *testing.T) {
	b := NewMemoryBroker()
	defer b.Close()
	ctx := context.Background()

	sub1, err := b.Subscribe(ctx, 1)
	if err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}
	sub2, _ := b.Subscribe(ctx, 1)
	other, _ := b.Subscribe(ctx, 2)

	if err := b.Publish(ctx, 1, []byte("hello")); err != nil {
		t.Fatalf("Publish failed: %v", err)
	}

	if got := recvPayload(t, sub1.C()); string(got) != "hello" {
		t.Errorf("sub1 payload: got %q, want hello", got)
	}
	if got := recvPayload(t, sub2.C()); string(got) != "hello" {
		t.Errorf("sub2 payload: got %q, want hello", got)
	}
	assertNoPayload(t, other.C(), 50*time.Millisecond)
}

func TestMemoryBroker_OrderPreserved(t *testing.T) {
	b := NewMemoryBroker()
	defer b.Close()
	ctx := context.Background()

	sub, _ := b.Subscribe(ctx, 1)
	for _, payload := range []string{"one", "two", "three"} {
		b.Publish(ctx, 1, []byte(payload))
	}

	for _, want := range []string{"one", "two", "three"} {
		if got := recvPayload(t, sub.C()); string(got) != want {
			t.Errorf("payload: got %q, want %q", got, want)
		}
	}
}

func TestMemoryBroker_SubscriptionClose(t *testing.T) {
	b := NewMemoryBroker()
	defer b.Close()
	ctx := context.Background()

	sub, _ := b.Subscribe(ctx, 1)
	if err := sub.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	// Closing twice is a no-op.
	if err := sub.Close(); err != nil {
		t.Fatalf("second Close failed: %v", err)
	}

	if err := b.Publish(ctx, 1, []byte("after")); err != nil {
		t.Fatalf("Publish failed: %v", err)
	}
	if _, ok := <-sub.C(); ok {
		t.Error("expected closed channel after Close")
	}
}

func TestMemoryBroker_Closed(t *testing.T) {
	b := NewMemoryBroker()
	ctx := context.Background()

	sub, _ := b.Subscribe(ctx, 1)
	if err := b.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	if _, ok := <-sub.C(); ok {
		t.Error("expected subscription channel closed by broker Close")
	}
	if err := b.Publish(ctx, 1, []byte("x")); err != ErrBrokerClosed {
		t.Errorf("Publish after Close: got %v, want ErrBrokerClosed", err)
	}
	if _, err := b.Subscribe(ctx, 1); err != ErrBrokerClosed {
		t.Errorf("Subscribe after Close: got %v, want ErrBrokerClosed", err)
	}
}

func TestTopic(t *testing.T) {
	if got := Topic(7); got != "room.7" {
		t.Errorf("Topic(7): got %q, want room.7", got)
	}
}
