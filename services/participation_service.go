package services

import (
	"context"
	"time"

	"habitnestAPI/internal/types/chat"
	"habitnestAPI/internal/types/completion"
	"habitnestAPI/internal/types/membership"

	"github.com/google/uuid"
)

// The coordinator composes the stores through narrow interfaces so the
// read model and the completion path can be exercised without a database.

type membershipLister interface {
	ListMemberships(ctx context.Context, clerkID string) ([]*membership.JoinedChallenge, error)
}

type completionRecorder interface {
	Record(ctx context.Context, clerkID string, challengeID uuid.UUID, photoURL string, day time.Time) (*completion.Completion, error)
	CompletedChallengeIDs(ctx context.Context, clerkID string, day time.Time) (map[uuid.UUID]struct{}, error)
	CompletionsForDay(ctx context.Context, clerkID string, day time.Time) ([]*completion.WithChallenge, error)
}

type chatReader interface {
	History(ctx context.Context, challengeID uuid.UUID) ([]*chat.Message, error)
}

type subscriber interface {
	Subscribe(challengeID uuid.UUID) *Subscription
}

// ParticipationService is the single entry point the presentation layer
// talks to for the habit list, proof submission, and chat views.
type ParticipationService struct {
	memberships membershipLister
	completions completionRecorder
	chat        chatReader
	hub         subscriber
	now         func() time.Time
}

func NewParticipationService(memberships *MembershipService, completions *CompletionService, chat *ChatService) *ParticipationService {
	return &ParticipationService{
		memberships: memberships,
		completions: completions,
		chat:        chat,
		hub:         chat.Hub(),
		now:         time.Now,
	}
}

// Today truncates the coordinator's clock to a calendar day.
func (s *ParticipationService) Today() time.Time {
	y, m, d := s.now().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// JoinedWithTodayStatus is the dashboard read model: every challenge the
// user belongs to, flagged with whether it was completed today.
func (s *ParticipationService) JoinedWithTodayStatus(ctx context.Context, clerkID string) ([]*membership.HabitStatus, error) {
	joined, err := s.memberships.ListMemberships(ctx, clerkID)
	if err != nil {
		return nil, err
	}

	completed, err := s.completions.CompletedChallengeIDs(ctx, clerkID, s.Today())
	if err != nil {
		return nil, err
	}

	statuses := make([]*membership.HabitStatus, 0, len(joined))
	for _, jc := range joined {
		_, done := completed[jc.Challenge.ID]
		statuses = append(statuses, &membership.HabitStatus{
			JoinedChallenge: *jc,
			CompletedToday:  done,
		})
	}

	return statuses, nil
}

// CompleteWithProof records today's completion for the challenge. All
// validation and the uniqueness guarantee live in the completion recorder;
// this never bypasses it.
func (s *ParticipationService) CompleteWithProof(ctx context.Context, clerkID string, challengeID uuid.UUID, photoURL string) (*completion.Completion, error) {
	return s.completions.Record(ctx, clerkID, challengeID, photoURL, s.Today())
}

// CompletionsOn lists the user's completions for one calendar day with
// their challenge metadata, the detail feed under the dashboard.
func (s *ParticipationService) CompletionsOn(ctx context.Context, clerkID string, day time.Time) ([]*completion.WithChallenge, error) {
	return s.completions.CompletionsForDay(ctx, clerkID, day)
}

// CompleteWithProofOn is CompleteWithProof for an explicit calendar day.
func (s *ParticipationService) CompleteWithProofOn(ctx context.Context, clerkID string, challengeID uuid.UUID, photoURL string, day time.Time) (*completion.Completion, error) {
	return s.completions.Record(ctx, clerkID, challengeID, photoURL, day)
}

// ChatView is a scoped acquisition over a challenge's chat: history for
// initial render plus a live channel. Close releases the subscription and
// must run on every exit path of the consumer.
type ChatView struct {
	History []*chat.Message
	Live    <-chan *chat.Message
	sub     *Subscription
}

func (v *ChatView) Close() {
	v.sub.Unsubscribe()
}

// OpenChat subscribes before fetching history so nothing posted in
// between is lost; messages that land in both are filtered from the live
// stream by id.
func (s *ParticipationService) OpenChat(ctx context.Context, challengeID uuid.UUID) (*ChatView, error) {
	sub := s.hub.Subscribe(challengeID)

	history, err := s.chat.History(ctx, challengeID)
	if err != nil {
		sub.Unsubscribe()
		return nil, err
	}

	seen := make(map[uuid.UUID]struct{}, len(history))
	for _, m := range history {
		seen[m.ID] = struct{}{}
	}

	live := make(chan *chat.Message, subscriberBuffer)
	go func() {
		defer close(live)
		for m := range sub.Messages() {
			if _, dup := seen[m.ID]; dup {
				continue
			}
			live <- m
		}
	}()

	return &ChatView{History: history, Live: live, sub: sub}, nil
}
