package eventbus

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublishDeliversToMatchingSubscriber(t *testing.T) {
	bus := New()
	sub := bus.Subscribe("round.completed")
	defer sub.Unsubscribe()

	bus.Publish(Event{Type: "round.completed", Payload: 7})

	select {
	case e := <-sub.Events():
		assert.Equal(t, 7, e.Payload)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
	}
}

func TestPublishIgnoresNonMatchingType(t *testing.T) {
	bus := New()
	sub := bus.Subscribe("round.completed")
	defer sub.Unsubscribe()

	bus.Publish(Event{Type: "presentation.possession", Payload: 1})

	select {
	case e := <-sub.Events():
		t.Fatalf("unexpected event delivered: %+v", e)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestWildcardSubscriberReceivesEverything(t *testing.T) {
	bus := New()
	sub := bus.Subscribe(Wildcard)
	defer sub.Unsubscribe()

	bus.Publish(Event{Type: "a"})
	bus.Publish(Event{Type: "b"})

	for _, want := range []string{"a", "b"} {
		select {
		case e := <-sub.Events():
			assert.Equal(t, want, e.Type)
		case <-time.After(time.Second):
			t.Fatal("timed out waiting for wildcard event")
		}
	}
}

func TestOverflowDropsOldestEvent(t *testing.T) {
	bus := New(WithBufferSize(2))
	sub := bus.Subscribe("x")
	defer sub.Unsubscribe()

	bus.Publish(Event{Type: "x", Payload: 1})
	bus.Publish(Event{Type: "x", Payload: 2})
	bus.Publish(Event{Type: "x", Payload: 3})

	first := <-sub.Events()
	second := <-sub.Events()
	assert.Equal(t, 2, first.Payload, "oldest (1) should have been dropped")
	assert.Equal(t, 3, second.Payload)
}

func TestUnsubscribeClosesChannel(t *testing.T) {
	bus := New()
	sub := bus.Subscribe("x")
	sub.Unsubscribe()

	_, ok := <-sub.Events()
	require.False(t, ok)

	assert.NotPanics(t, func() { sub.Unsubscribe() })
}
