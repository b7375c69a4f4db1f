package services

import (
	"sync"

	"habitnestAPI/internal/types/chat"

	"github.com/google/uuid"
)

// subscriberBuffer bounds how far a live viewer may fall behind before the
// hub drops it. A dropped viewer sees its channel closed and re-opens the
// chat view, which replays history.
const subscriberBuffer = 256

// ChatHub fans persisted chat messages out to the viewers currently
// holding a challenge's chat open. Rooms exist only while they have
// subscribers; an empty room is removed on the last unsubscribe.
type ChatHub struct {
	mu    sync.Mutex
	rooms map[uuid.UUID]map[*Subscription]struct{}
}

func NewChatHub() *ChatHub {
	return &ChatHub{
		rooms: make(map[uuid.UUID]map[*Subscription]struct{}),
	}
}

// Subscription is the handle a viewer holds for the lifetime of an open
// chat view. Unsubscribe is idempotent and must be called on every exit
// path; an abandoned subscription pins its room forever.
type Subscription struct {
	hub         *ChatHub
	challengeID uuid.UUID
	ch          chan *chat.Message
	once        sync.Once
}

// Messages delivers every message published to the challenge after the
// subscription was registered, in creation order. The channel closes on
// Unsubscribe, or if the subscriber falls too far behind.
func (s *Subscription) Messages() <-chan *chat.Message {
	return s.ch
}

func (s *Subscription) Unsubscribe() {
	s.once.Do(func() {
		s.hub.remove(s)
	})
}

// Subscribe registers a live listener on the challenge's room, creating
// the room if this is the first viewer.
func (h *ChatHub) Subscribe(challengeID uuid.UUID) *Subscription {
	h.mu.Lock()
	defer h.mu.Unlock()

	subs, ok := h.rooms[challengeID]
	if !ok {
		subs = make(map[*Subscription]struct{})
		h.rooms[challengeID] = subs
	}

	sub := &Subscription{
		hub:         h,
		challengeID: challengeID,
		ch:          make(chan *chat.Message, subscriberBuffer),
	}
	subs[sub] = struct{}{}
	return sub
}

// Publish fans one message out to every current subscriber of its
// challenge. Delivery order matches publish order per subscriber because
// the hub lock serializes publishes and each subscriber has its own
// ordered channel.
func (h *ChatHub) Publish(msg *chat.Message) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for sub := range h.rooms[msg.ChallengeID] {
		select {
		case sub.ch <- msg:
		default:
			// Subscriber stopped draining; cut it loose like any other
			// dead connection.
			h.removeLocked(sub)
		}
	}
}

func (h *ChatHub) remove(sub *Subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removeLocked(sub)
}

func (h *ChatHub) removeLocked(sub *Subscription) {
	subs, ok := h.rooms[sub.challengeID]
	if !ok {
		return
	}
	if _, ok := subs[sub]; !ok {
		return
	}
	delete(subs, sub)
	close(sub.ch)
	if len(subs) == 0 {
		delete(h.rooms, sub.challengeID)
	}
}

// Subscribers reports the current viewer count for a challenge.
func (h *ChatHub) Subscribers(challengeID uuid.UUID) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.rooms[challengeID])
}
