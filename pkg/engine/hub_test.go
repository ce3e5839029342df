package engine_test

import (
	"context"
	"testing"
	"time"

	"imulink/pkg/engine"
	"imulink/pkg/protocol"
)

func TestHubDoesNotBlockOnSlowConsumer(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	hub := engine.NewHub(engine.WithBroadcastBuffer(1), engine.WithClientBuffer(1))
	go hub.Run(ctx)

	fast := hub.SubscribeWithBuffer(128)
	slow := hub.SubscribeWithBuffer(1)

	done := make(chan struct{})
	go func() {
		for i := 0; i < 50; i++ {
			hub.Publish(protocol.Event{Record: protocol.Quaternion{W: float32(i)}})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(1 * time.Second):
		t.Fatalf("publish blocked on slow consumer")
	}

	received := 0
	timeout := time.After(1 * time.Second)
	for received < 50 {
		select {
		case <-fast:
			received++
		case <-timeout:
			t.Fatalf("fast consumer timeout after %d events", received)
		}
	}

	count := 0
	for {
		select {
		case <-slow:
			count++
			continue
		default:
		}
		break
	}
	if count > 2 {
		t.Fatalf("slow consumer received %d events, expected drops", count)
	}
}

func TestHubUnsubscribeClosesChannel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	hub := engine.NewHub()
	go hub.Run(ctx)

	ch := hub.Subscribe()
	hub.Unsubscribe(ch)

	select {
	case _, ok := <-ch:
		if ok {
			t.Fatalf("expected closed channel after unsubscribe")
		}
	case <-time.After(1 * time.Second):
		t.Fatalf("timeout waiting for channel close")
	}
}

func TestHubDeliversInOrder(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	hub := engine.NewHub()
	go hub.Run(ctx)

	sub := hub.SubscribeWithBuffer(16)
	for i := 0; i < 10; i++ {
		hub.Publish(protocol.Event{Record: protocol.LinearAccel{Z: float32(i)}})
	}

	for i := 0; i < 10; i++ {
		select {
		case evt := <-sub:
			accel, ok := evt.Record.(protocol.LinearAccel)
			if !ok {
				t.Fatalf("unexpected record type: %T", evt.Record)
			}
			if accel.Z != float32(i) {
				t.Fatalf("out of order: got %v want %d", accel.Z, i)
			}
		case <-time.After(1 * time.Second):
			t.Fatalf("timeout waiting for event %d", i)
		}
	}
}
