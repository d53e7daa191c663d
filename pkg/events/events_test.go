package events

import (
	"testing"
	"time"
)

func TestPublish_DeliversToSubscriber(t *testing.T) {
	h := NewHub()
	sub := h.Subscribe("s1", 10)

	h.Publish(Event{Type: TypeOrderAssigned, Payload: "order-1"})

	got := sub.Drain()
	if len(got) != 1 || got[0].Type != TypeOrderAssigned {
		t.Fatalf("expected 1 order-assigned event, got %+v", got)
	}
}

func TestPublish_StampsTimestampWhenZero(t *testing.T) {
	h := NewHub()
	sub := h.Subscribe("s1", 10)

	before := time.Now()
	h.Publish(Event{Type: TypeOrderAssigned})
	after := time.Now()

	got := sub.Drain()
	if len(got) != 1 {
		t.Fatalf("expected 1 event, got %d", len(got))
	}
	if got[0].Timestamp.Before(before) || got[0].Timestamp.After(after) {
		t.Errorf("expected timestamp to be stamped within the call window, got %v", got[0].Timestamp)
	}
}

func TestPublish_FanOutToMultipleSubscribers(t *testing.T) {
	h := NewHub()
	a := h.Subscribe("a", 10)
	b := h.Subscribe("b", 10)

	h.Publish(Event{Type: TypeStateChanged})

	if len(a.Drain()) != 1 {
		t.Error("expected subscriber a to receive the event")
	}
	if len(b.Drain()) != 1 {
		t.Error("expected subscriber b to receive the event")
	}
}

func TestDrain_IsEmptyAfterDraining(t *testing.T) {
	h := NewHub()
	sub := h.Subscribe("s1", 10)
	h.Publish(Event{Type: TypeStateChanged})
	sub.Drain()

	if got := sub.Drain(); len(got) != 0 {
		t.Errorf("expected a second drain to be empty, got %d events", len(got))
	}
}

func TestPublish_OverflowDropsOldestAndEmitsSubscriberLag(t *testing.T) {
	h := NewHub()
	sub := h.Subscribe("s1", 2)

	h.Publish(Event{Type: TypeOrderAssigned, Payload: "first"})
	h.Publish(Event{Type: TypeOrderAssigned, Payload: "second"})
	h.Publish(Event{Type: TypeOrderAssigned, Payload: "third"}) // overflows the 2-slot queue

	got := sub.Drain()
	if len(got) != 2 {
		t.Fatalf("expected the queue to stay capped at 2, got %d", len(got))
	}
	if got[0].Payload != "third" {
		t.Errorf("expected the oldest entry dropped and the lag notice to follow, first kept event=%+v", got[0])
	}
	if got[1].Type != TypeSubscriberLag {
		t.Errorf("expected a subscriber_lag event after overflow, got %v", got[1].Type)
	}
}

func TestUnsubscribe_StopsDelivery(t *testing.T) {
	h := NewHub()
	sub := h.Subscribe("s1", 10)
	h.Unsubscribe("s1")

	h.Publish(Event{Type: TypeStateChanged})
	if got := sub.Drain(); len(got) != 0 {
		t.Errorf("expected no events after unsubscribing, got %d", len(got))
	}
}

func TestSubscription_CloseRemovesFromHub(t *testing.T) {
	h := NewHub()
	sub := h.Subscribe("s1", 10)
	sub.Close()

	h.Publish(Event{Type: TypeStateChanged})
	if got := sub.Drain(); len(got) != 0 {
		t.Errorf("expected no events after Close, got %d", len(got))
	}
}

func TestSubscription_NotifyReceivesSignalOnPublish(t *testing.T) {
	h := NewHub()
	sub := h.Subscribe("s1", 10)

	h.Publish(Event{Type: TypeStateChanged})

	select {
	case <-sub.Notify():
	case <-time.After(time.Second):
		t.Fatal("expected a notify signal after publish")
	}
}

func TestSubscribe_DuplicateNameReplacesPriorQueue(t *testing.T) {
	h := NewHub()
	first := h.Subscribe("s1", 10)
	h.Publish(Event{Type: TypeStateChanged})
	if len(first.Drain()) != 1 {
		t.Fatal("expected the original subscription to have received the first event")
	}

	second := h.Subscribe("s1", 10)
	h.Publish(Event{Type: TypeOrderAssigned})

	if got := second.Drain(); len(got) != 1 || got[0].Type != TypeOrderAssigned {
		t.Errorf("expected the replacement subscription to only see events published after it registered, got %+v", got)
	}
}
