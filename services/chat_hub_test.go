package services

import (
	"testing"
	"time"

	"habitnestAPI/internal/types/chat"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testMessage(challengeID uuid.UUID, text string) *chat.Message {
	return &chat.Message{
		ID:          uuid.New(),
		ChallengeID: challengeID,
		UserID:      uuid.New(),
		Username:    "tester",
		Text:        text,
		CreatedAt:   time.Now(),
	}
}

func TestChatHubDeliversInPublishOrder(t *testing.T) {
	hub := NewChatHub()
	challengeID := uuid.New()

	sub := hub.Subscribe(challengeID)
	defer sub.Unsubscribe()

	first := testMessage(challengeID, "first")
	second := testMessage(challengeID, "second")
	third := testMessage(challengeID, "third")

	hub.Publish(first)
	hub.Publish(second)
	hub.Publish(third)

	assert.Equal(t, first.ID, (<-sub.Messages()).ID)
	assert.Equal(t, second.ID, (<-sub.Messages()).ID)
	assert.Equal(t, third.ID, (<-sub.Messages()).ID)
}

func TestChatHubFansOutToAllSubscribers(t *testing.T) {
	hub := NewChatHub()
	challengeID := uuid.New()

	a := hub.Subscribe(challengeID)
	defer a.Unsubscribe()
	b := hub.Subscribe(challengeID)
	defer b.Unsubscribe()

	assert.Equal(t, 2, hub.Subscribers(challengeID))

	msg := testMessage(challengeID, "hello")
	hub.Publish(msg)

	assert.Equal(t, msg.ID, (<-a.Messages()).ID)
	assert.Equal(t, msg.ID, (<-b.Messages()).ID)
}

func TestChatHubIsolatesRooms(t *testing.T) {
	hub := NewChatHub()
	roomA := uuid.New()
	roomB := uuid.New()

	subA := hub.Subscribe(roomA)
	defer subA.Unsubscribe()
	subB := hub.Subscribe(roomB)
	defer subB.Unsubscribe()

	hub.Publish(testMessage(roomA, "only for A"))

	select {
	case <-subB.Messages():
		t.Fatal("message for room A leaked into room B")
	default:
	}

	require.Len(t, subA.Messages(), 1)
}

func TestChatHubUnsubscribeClosesChannelAndRemovesRoom(t *testing.T) {
	hub := NewChatHub()
	challengeID := uuid.New()

	sub := hub.Subscribe(challengeID)
	require.Equal(t, 1, hub.Subscribers(challengeID))

	sub.Unsubscribe()

	_, open := <-sub.Messages()
	assert.False(t, open, "channel should be closed after Unsubscribe")
	assert.Equal(t, 0, hub.Subscribers(challengeID))

	// Safe to call again.
	sub.Unsubscribe()
}

func TestChatHubDropsSlowSubscriber(t *testing.T) {
	hub := NewChatHub()
	challengeID := uuid.New()

	slow := hub.Subscribe(challengeID)
	healthy := hub.Subscribe(challengeID)
	defer healthy.Unsubscribe()

	// Fill the slow subscriber's buffer without draining it, then push one
	// more. The overflowing publish must evict it.
	for i := 0; i <= subscriberBuffer; i++ {
		hub.Publish(testMessage(challengeID, "flood"))
		for len(healthy.Messages()) > 0 {
			<-healthy.Messages()
		}
	}

	assert.Equal(t, 1, hub.Subscribers(challengeID))

	drained := 0
	for range slow.Messages() {
		drained++
	}
	assert.Equal(t, subscriberBuffer, drained, "buffer contents stay readable, then the channel closes")

	// Unsubscribing an already dropped subscription must not panic.
	slow.Unsubscribe()
}

func TestChatHubPublishToEmptyRoomIsNoop(t *testing.T) {
	hub := NewChatHub()
	hub.Publish(testMessage(uuid.New(), "nobody listening"))
}
