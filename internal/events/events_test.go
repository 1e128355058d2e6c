package events

import (
	"encoding/json"
	"testing"
)

func TestEventBus(t *testing.T) {
	bus := NewEventBus()

	var received *Event
	var callCount int

	handler := func(event *Event) error {
		received = event
		callCount++
		return nil
	}

	bus.Subscribe(EventCheckoutUpdated, handler)

	payload := CheckoutEventPayload{
		TenantID:  "shop-1",
		CartToken: "cart-abc",
		Raw:       json.RawMessage(`{"cart_token":"cart-abc"}`),
	}
	err := bus.PublishJSON(EventCheckoutUpdated, payload)
	if err != nil {
		t.Fatalf("PublishJSON failed: %v", err)
	}

	if callCount != 1 {
		t.Errorf("expected 1 call, got %d", callCount)
	}

	if received.Type != EventCheckoutUpdated {
		t.Errorf("expected type %s, got %s", EventCheckoutUpdated, received.Type)
	}

	var decoded CheckoutEventPayload
	if err := json.Unmarshal(received.Payload, &decoded); err != nil {
		t.Fatalf("failed to decode payload: %v", err)
	}

	if decoded.CartToken != "cart-abc" {
		t.Errorf("expected cart-abc, got %s", decoded.CartToken)
	}
}

func TestEventBusMultipleSubscribers(t *testing.T) {
	bus := NewEventBus()
	var count1, count2 int

	bus.Subscribe("event", func(_ *Event) error { count1++; return nil })
	bus.Subscribe("event", func(_ *Event) error { count2++; return nil })

	bus.Publish(&Event{Type: "event"})

	if count1 != 1 || count2 != 1 {
		t.Errorf("expected both handlers to be called once, got %d and %d", count1, count2)
	}
}

func TestEventBusNoSubscribers(t *testing.T) {
	bus := NewEventBus()
	// Publishing with no subscribers must not panic.
	bus.Publish(&Event{Type: "unknown"})
	if err := bus.PublishJSON("unknown", map[string]string{"a": "b"}); err != nil {
		t.Fatalf("PublishJSON failed: %v", err)
	}
}

func TestEventBusNilReceiver(t *testing.T) {
	var bus *EventBus
	if err := bus.PublishJSON("event", "payload"); err != nil {
		t.Fatalf("nil bus PublishJSON should be a no-op, got %v", err)
	}
}
