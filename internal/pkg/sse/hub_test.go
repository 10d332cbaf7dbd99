package sse

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHubPublishReachesOnlyOwnUser(t *testing.T) {
	hub := NewHub()

	chA, cleanupA := hub.Subscribe("user-a")
	defer cleanupA()
	chB, cleanupB := hub.Subscribe("user-b")
	defer cleanupB()

	hub.Publish("user-a", Event{UserID: "user-a", Event: "attendance.clock_in"})

	select {
	case ev := <-chA:
		assert.Equal(t, "attendance.clock_in", ev.Event)
	default:
		t.Fatal("subscriber of user-a received nothing")
	}

	select {
	case ev := <-chB:
		t.Fatalf("subscriber of user-b received %v", ev)
	default:
	}
}

func TestHubCleanupRemovesSubscriber(t *testing.T) {
	hub := NewHub()

	_, cleanup := hub.Subscribe("user-a")
	require.Equal(t, 1, hub.SubscriberCount("user-a"))

	cleanup()
	assert.Equal(t, 0, hub.SubscriberCount("user-a"))

	// Publishing to a user with no subscribers must not panic.
	hub.Publish("user-a", Event{UserID: "user-a", Event: "attendance.clock_out"})
}

func TestHubFullChannelDoesNotBlockPublish(t *testing.T) {
	hub := NewHub()

	ch, cleanup := hub.Subscribe("user-a")
	defer cleanup()

	for i := 0; i < cap(ch)+5; i++ {
		hub.Publish("user-a", Event{UserID: "user-a", Event: "attendance.tick"})
	}

	assert.Len(t, ch, cap(ch))
}
