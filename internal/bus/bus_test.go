package bus

import (
	"sync"
	"testing"
	"time"
)

func TestBusPublishSubscribe(t *testing.T) {
	b := NewBus(64)
	defer b.Close()

	var mu sync.Mutex
	var received []Event

	b.Subscribe(func(e Event) {
		mu.Lock()
		received = append(received, e)
		mu.Unlock()
	}, EventIngested)

	b.Publish(NewEvent(EventIngested, map[string]any{"id": "e1"}))
	b.Publish(NewEvent(EventDuplicate, map[string]any{"id": "e1"}))

	time.Sleep(50 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()

	if len(received) != 1 {
		t.Fatalf("expected 1 event, got %d", len(received))
	}
	if received[0].Type != EventIngested {
		t.Errorf("expected ingested, got %s", received[0].Type)
	}
}

func TestBusSubscribeAll(t *testing.T) {
	b := NewBus(64)
	defer b.Close()

	var mu sync.Mutex
	count := 0

	b.Subscribe(func(e Event) {
		mu.Lock()
		count++
		mu.Unlock()
	})

	b.Publish(NewEvent(EventIngested, nil))
	b.Publish(NewEvent(EventStreamsInferred, nil))

	time.Sleep(50 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()

	if count != 2 {
		t.Errorf("expected 2 events, got %d", count)
	}
}

func TestRingBuffer(t *testing.T) {
	rb := NewRingBuffer(3)

	for i := 0; i < 5; i++ {
		rb.Add(NewEvent(EventIngested, map[string]any{"i": i}))
	}

	got := rb.Get(10)
	if len(got) != 3 {
		t.Fatalf("expected 3 events, got %d", len(got))
	}
	if got[2].Payload["i"] != 4 {
		t.Errorf("expected last event i=4, got %v", got[2].Payload["i"])
	}
}

func TestSubscribeChan(t *testing.T) {
	b := NewBus(64)
	defer b.Close()

	ch, unsub := b.SubscribeChan(8, EventIngested)
	defer unsub()

	b.Publish(NewEvent(EventIngested, map[string]any{"id": "e1"}))

	select {
	case e := <-ch:
		if e.Type != EventIngested {
			t.Errorf("expected ingested, got %s", e.Type)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for event")
	}
}

func TestBusCloseStopsDelivery(t *testing.T) {
	b := NewBus(8)
	b.Close()

	// Publish after close must not panic and must not deliver.
	b.Publish(NewEvent(EventIngested, nil))

	if err := b.PublishCtx(nil, NewEvent(EventIngested, nil)); err != ErrBusClosed { //nolint:staticcheck
		t.Errorf("expected ErrBusClosed, got %v", err)
	}
}
