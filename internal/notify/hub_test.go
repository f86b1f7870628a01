package notify

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/workboard/internal/model"
)

func TestHubPublishReachesSubscriber(t *testing.T) {
	hub := NewHub()
	ch, cancel := hub.Subscribe("u1")
	defer cancel()

	hub.Publish(model.Notification{ID: "n1", RecipientID: "u1"})

	select {
	case n := <-ch:
		assert.Equal(t, "n1", n.ID)
	default:
		t.Fatal("expected a delivered notification")
	}
}

func TestHubPublishSkipsOtherUsers(t *testing.T) {
	hub := NewHub()
	ch, cancel := hub.Subscribe("u1")
	defer cancel()

	hub.Publish(model.Notification{ID: "n1", RecipientID: "u2"})

	assert.Empty(t, ch)
}

func TestHubSlowSubscriberDrops(t *testing.T) {
	hub := NewHub()
	ch, cancel := hub.Subscribe("u1")
	defer cancel()

	for i := 0; i < subscriberBuffer+5; i++ {
		hub.Publish(model.Notification{RecipientID: "u1"})
	}

	assert.Len(t, ch, subscriberBuffer, "overflow drops instead of blocking")
}

func TestHubCancelClosesChannel(t *testing.T) {
	hub := NewHub()
	ch, cancel := hub.Subscribe("u1")

	cancel()
	cancel() // second cancel is a no-op

	_, open := <-ch
	require.False(t, open)

	// Publishing after cancel must not panic.
	hub.Publish(model.Notification{RecipientID: "u1"})
}
