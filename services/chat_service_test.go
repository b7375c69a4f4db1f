package services

import (
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestPostLockIsStablePerChallenge(t *testing.T) {
	svc := NewChatService(nil, NewChatHub())
	challengeID := uuid.New()

	assert.Same(t, svc.postLock(challengeID), svc.postLock(challengeID))
}

func TestPostLockSeparatesChallenges(t *testing.T) {
	svc := NewChatService(nil, NewChatHub())

	a := svc.postLock(uuid.New())
	b := svc.postLock(uuid.New())
	assert.NotSame(t, a, b)

	// Holding one room's lock must not block another room's posts.
	a.Lock()
	defer a.Unlock()
	b.Lock()
	b.Unlock()
}

func TestPostLockConcurrentAccess(t *testing.T) {
	svc := NewChatService(nil, NewChatHub())
	challengeID := uuid.New()

	var wg sync.WaitGroup
	locks := make([]*sync.Mutex, 16)
	for i := range locks {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			locks[i] = svc.postLock(challengeID)
		}(i)
	}
	wg.Wait()

	for _, l := range locks {
		assert.Same(t, locks[0], l)
	}
}

func TestPostsSerializeUnderTheChallengeLock(t *testing.T) {
	// Simulates the insert-then-publish critical section: with every
	// poster holding the challenge lock, subscribers observe exactly the
	// sequence the posters committed.
	svc := NewChatService(nil, NewChatHub())
	hub := svc.Hub()
	challengeID := uuid.New()

	sub := hub.Subscribe(challengeID)
	defer sub.Unsubscribe()

	const posters = 8
	var order []uuid.UUID
	var wg sync.WaitGroup
	var orderMu sync.Mutex

	for i := 0; i < posters; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			lock := svc.postLock(challengeID)
			lock.Lock()
			defer lock.Unlock()

			m := testMessage(challengeID, "serialized")
			orderMu.Lock()
			order = append(order, m.ID)
			orderMu.Unlock()
			hub.Publish(m)
		}()
	}
	wg.Wait()

	for i := 0; i < posters; i++ {
		got := <-sub.Messages()
		assert.Equal(t, order[i], got.ID)
	}
}
