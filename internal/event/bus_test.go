package event

import (
	"bytes"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/Iron-Ham/seda/internal/logging"
)

func TestBus_SubscribeAndPublish(t *testing.T) {
	bus := NewBus()

	var received Event
	id := bus.Subscribe(TypePoolResized, func(e Event) {
		received = e
	})
	if id == "" {
		t.Fatal("Subscribe should return a non-empty ID")
	}

	bus.Publish(NewPoolResizedEvent("parse", "parse-2", 1, 2))

	pe, ok := received.(PoolResizedEvent)
	if !ok {
		t.Fatalf("received %T, want PoolResizedEvent", received)
	}
	if pe.Stage != "parse" || pe.From != 1 || pe.To != 2 || pe.Worker != "parse-2" {
		t.Errorf("unexpected event payload: %+v", pe)
	}
	if pe.Timestamp().IsZero() {
		t.Error("Timestamp should be set")
	}
}

func TestBus_PublishNoMatchingHandlers(t *testing.T) {
	bus := NewBus()

	bus.Subscribe(TypeProcessFailed, func(e Event) {
		t.Error("handler should not be called for non-matching event type")
	})

	bus.Publish(NewStageStatusEvent("parse", "RUNNING", "SHUTTING_DOWN"))
}

func TestBus_SubscribeAllOrder(t *testing.T) {
	bus := NewBus()

	var order []string
	bus.SubscribeAll(func(e Event) {
		order = append(order, "wildcard:"+e.EventType())
	})
	bus.Subscribe(TypeStageAdjusted, func(e Event) {
		order = append(order, "specific:"+e.EventType())
	})

	bus.Publish(NewStageAdjustedEvent("sink"))

	want := []string{"specific:stage.adjusted", "wildcard:stage.adjusted"}
	if len(order) != len(want) {
		t.Fatalf("calls = %v, want %v", order, want)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Errorf("call %d = %q, want %q", i, order[i], want[i])
		}
	}
}

func TestBus_Unsubscribe(t *testing.T) {
	bus := NewBus()

	calls := make(map[string]int)
	id1 := bus.Subscribe(TypeMessagesDropped, func(e Event) { calls["first"]++ })
	bus.Subscribe(TypeMessagesDropped, func(e Event) { calls["second"]++ })

	if !bus.Unsubscribe(id1) {
		t.Error("Unsubscribe should return true when subscription exists")
	}
	if bus.Unsubscribe(id1) {
		t.Error("Unsubscribe should return false the second time")
	}

	bus.Publish(NewMessagesDroppedEvent("parse", 10, 2))

	if calls["first"] != 0 {
		t.Error("first handler should not be called after unsubscribing")
	}
	if calls["second"] != 1 {
		t.Error("second handler should still be called")
	}
}

func TestBus_HasSubscribers(t *testing.T) {
	var nilBus *Bus
	if nilBus.HasSubscribers(TypeStageAdjusted) {
		t.Error("nil bus should report no subscribers")
	}
	nilBus.Publish(NewStageAdjustedEvent("x"))

	bus := NewBus()
	if bus.HasSubscribers(TypeStageAdjusted) {
		t.Error("empty bus should report no subscribers")
	}

	id := bus.Subscribe(TypeStageAdjusted, func(Event) {})
	if !bus.HasSubscribers(TypeStageAdjusted) {
		t.Error("expected subscribers after Subscribe")
	}
	if bus.HasSubscribers(TypePoolResized) {
		t.Error("subscription to a different type should not count")
	}
	bus.Unsubscribe(id)

	bus.SubscribeAll(func(Event) {})
	if !bus.HasSubscribers(TypePoolResized) {
		t.Error("wildcard subscription should count for every type")
	}
}

func TestBus_HandlerPanicRecovery(t *testing.T) {
	var buf bytes.Buffer
	bus := NewBus(WithLogger(logging.NewWriterLogger(&buf, logging.LevelError, logging.FormatText)))

	calls := 0
	bus.Subscribe(TypeProcessFailed, func(e Event) {
		calls++
		panic("handler panic")
	})
	bus.Subscribe(TypeProcessFailed, func(e Event) {
		calls++
	})

	bus.Publish(NewProcessFailedEvent("parse", "parse-1", errors.New("bad input"), false))

	if calls != 2 {
		t.Errorf("expected both handlers to be called despite panic, got %d calls", calls)
	}
	if !strings.Contains(buf.String(), "event handler panicked") {
		t.Errorf("expected panic to be logged, got %q", buf.String())
	}
}

func TestBus_Clear(t *testing.T) {
	bus := NewBus()

	bus.Subscribe(TypeStageStatus, func(e Event) {})
	bus.Subscribe(TypePoolResized, func(e Event) {})
	bus.SubscribeAll(func(e Event) {})

	if bus.SubscriptionCount() != 3 {
		t.Errorf("expected 3 subscriptions before clear, got %d", bus.SubscriptionCount())
	}

	bus.Clear()

	if bus.SubscriptionCount() != 0 {
		t.Errorf("expected 0 subscriptions after clear, got %d", bus.SubscriptionCount())
	}
}

func TestBus_ConcurrentPublish(t *testing.T) {
	bus := NewBus()

	var mu sync.Mutex
	calls := 0
	bus.Subscribe(TypePoolResized, func(e Event) {
		mu.Lock()
		calls++
		mu.Unlock()
	})

	var wg sync.WaitGroup
	for range 100 {
		wg.Go(func() {
			bus.Publish(NewPoolResizedEvent("s", "s-1", 1, 2))
		})
	}
	wg.Wait()

	if calls != 100 {
		t.Errorf("expected 100 calls, got %d", calls)
	}
}

func TestBus_ConcurrentSubscribeUnsubscribe(t *testing.T) {
	bus := NewBus()

	var wg sync.WaitGroup
	for range 50 {
		wg.Go(func() {
			id := bus.Subscribe(TypeStageStatus, func(e Event) {})
			bus.Unsubscribe(id)
		})
	}
	wg.Wait()

	if bus.SubscriptionCount() != 0 {
		t.Errorf("expected 0 subscriptions after concurrent add/remove, got %d", bus.SubscriptionCount())
	}
}

func TestMessagesDroppedEvent_Total(t *testing.T) {
	e := NewMessagesDroppedEvent("parse", 7, 3)
	if e.Total() != 10 {
		t.Errorf("Total() = %d, want 10", e.Total())
	}
	if e.EventType() != TypeMessagesDropped {
		t.Errorf("EventType() = %q", e.EventType())
	}
}
