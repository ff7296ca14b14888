package eventhub

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHub_PublishDeliversToMatchingSubscriber(t *testing.T) {
	h := New(10)
	sub := h.Subscribe(Filter{Project: "demo"})
	defer sub.Unsubscribe()

	h.Publish(StreamEvent{Project: "demo", Log: &LogEvent{ProcessName: "web", Entry: LogEntry{Content: "hello"}}})

	select {
	case env := <-sub.Events():
		require.NotNil(t, env.Event.Log)
		assert.Equal(t, "hello", env.Event.Log.Entry.Content)
		assert.Equal(t, 0, env.LaggedBy)
	case <-time.After(time.Second):
		t.Fatal("expected event, got none")
	}
}

func TestHub_FilterByProjectExcludesOthers(t *testing.T) {
	h := New(10)
	sub := h.Subscribe(Filter{Project: "demo"})
	defer sub.Unsubscribe()

	h.Publish(StreamEvent{Project: "other", Log: &LogEvent{ProcessName: "web", Entry: LogEntry{Content: "nope"}}})

	select {
	case <-sub.Events():
		t.Fatal("event from a different project should not be delivered")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestHub_FilterByProcessNames(t *testing.T) {
	h := New(10)
	sub := h.Subscribe(Filter{ProcessNames: []string{"web"}})
	defer sub.Unsubscribe()

	h.Publish(StreamEvent{Project: "demo", Log: &LogEvent{ProcessName: "worker", Entry: LogEntry{Content: "skip me"}}})
	h.Publish(StreamEvent{Project: "demo", Log: &LogEvent{ProcessName: "web", Entry: LogEntry{Content: "take me"}}})

	select {
	case env := <-sub.Events():
		assert.Equal(t, "take me", env.Event.Log.Entry.Content)
	case <-time.After(time.Second):
		t.Fatal("expected the matching event")
	}
}

func TestHub_IncludeEventsGatesProcessVariant(t *testing.T) {
	h := New(10)
	sub := h.Subscribe(Filter{IncludeEvents: false})
	defer sub.Unsubscribe()

	h.Publish(StreamEvent{Project: "demo", Process: &ProcessEvent{EventType: EventStarted, Name: "web"}})

	select {
	case <-sub.Events():
		t.Fatal("process event should be dropped when IncludeEvents is false")
	case <-time.After(50 * time.Millisecond):
	}

	sub2 := h.Subscribe(Filter{IncludeEvents: true})
	defer sub2.Unsubscribe()
	h.Publish(StreamEvent{Project: "demo", Process: &ProcessEvent{EventType: EventStarted, Name: "web"}})

	select {
	case env := <-sub2.Events():
		require.NotNil(t, env.Event.Process)
		assert.Equal(t, EventStarted, env.Event.Process.EventType)
	case <-time.After(time.Second):
		t.Fatal("expected the process event when IncludeEvents is true")
	}
}

func TestHub_OverflowSignalsLag(t *testing.T) {
	h := New(1)
	sub := h.Subscribe(Filter{})
	defer sub.Unsubscribe()

	h.Publish(StreamEvent{Project: "demo", Log: &LogEvent{Entry: LogEntry{Content: "1"}}})
	h.Publish(StreamEvent{Project: "demo", Log: &LogEvent{Entry: LogEntry{Content: "2"}}}) // dropped, buffer full
	h.Publish(StreamEvent{Project: "demo", Log: &LogEvent{Entry: LogEntry{Content: "3"}}}) // dropped, buffer full

	env := <-sub.Events()
	assert.Equal(t, "1", env.Event.Log.Entry.Content)
	assert.Equal(t, 0, env.LaggedBy)

	// Drain the channel now that it has room, publish a fresh event, and
	// confirm the subscriber is told how many it missed.
	h.Publish(StreamEvent{Project: "demo", Log: &LogEvent{Entry: LogEntry{Content: "4"}}})
	env = <-sub.Events()
	assert.Equal(t, "4", env.Event.Log.Entry.Content)
	assert.Equal(t, 2, env.LaggedBy)
}

func TestHub_UnsubscribeIsIdempotentAndClosesChannel(t *testing.T) {
	h := New(10)
	sub := h.Subscribe(Filter{})
	sub.Unsubscribe()
	sub.Unsubscribe()

	_, ok := <-sub.Events()
	assert.False(t, ok)
	assert.Equal(t, 0, h.SubscriberCount())
}
