package events

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
)

type pingEvent struct {
	BaseEvent
}

func (pingEvent) EventName() string { return "test.ping" }

type pongEvent struct {
	BaseEvent
}

func (pongEvent) EventName() string { return "test.pong" }

func TestPublishRecoversFromPanickingHandler(t *testing.T) {
	bus := NewInMemoryBus(nil)
	var delivered int32
	bus.Subscribe("test.ping", HandlerFunc(func(context.Context, Event) error {
		panic("handler exploded")
	}))
	bus.Subscribe("test.ping", HandlerFunc(func(context.Context, Event) error {
		atomic.AddInt32(&delivered, 1)
		return nil
	}))

	bus.Publish(context.Background(), pingEvent{BaseEvent: NewBaseEvent()})
	bus.Wait()

	if atomic.LoadInt32(&delivered) != 1 {
		t.Fatalf("expected healthy handler to receive the event")
	}
}

func TestPublishOutlivesCancelledContext(t *testing.T) {
	bus := NewInMemoryBus(nil)
	var sawCancel atomic.Bool
	bus.Subscribe("test.ping", HandlerFunc(func(ctx context.Context, _ Event) error {
		sawCancel.Store(ctx.Err() != nil)
		return nil
	}))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	bus.Publish(ctx, pingEvent{BaseEvent: NewBaseEvent()})
	bus.Wait()

	if sawCancel.Load() {
		t.Fatal("handlers must not inherit the publisher's cancellation")
	}
}

func TestSubscribeAllRoutesEveryName(t *testing.T) {
	bus := NewInMemoryBus(nil)
	var mu sync.Mutex
	seen := map[string]string{}
	SubscribeAll(bus, HandlerFunc(func(_ context.Context, e Event) error {
		mu.Lock()
		defer mu.Unlock()
		seen[e.EventName()] = e.EventID()
		return nil
	}), "test.ping", "test.pong")

	bus.Publish(context.Background(), pingEvent{BaseEvent: NewBaseEvent()})
	bus.Publish(context.Background(), pongEvent{BaseEvent: NewBaseEvent()})
	bus.Wait()

	if len(seen) != 2 || seen["test.ping"] == "" || seen["test.ping"] == seen["test.pong"] {
		t.Fatalf("expected both events with distinct ids, got %v", seen)
	}
}

func TestPublishWithoutSubscribersIsNoop(t *testing.T) {
	bus := NewInMemoryBus(nil)
	bus.Publish(context.Background(), pingEvent{BaseEvent: NewBaseEvent()})
	bus.Wait()
}
