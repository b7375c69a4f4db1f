package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"habitnestAPI/internal/apperr"
	"habitnestAPI/internal/types/challenge"
	"habitnestAPI/internal/types/chat"
	"habitnestAPI/internal/types/completion"
	"habitnestAPI/internal/types/membership"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeMemberships struct {
	joined []*membership.JoinedChallenge
	err    error
}

func (f *fakeMemberships) ListMemberships(ctx context.Context, clerkID string) ([]*membership.JoinedChallenge, error) {
	return f.joined, f.err
}

type fakeCompletions struct {
	recorded    []*completion.Completion
	recordErr   error
	completedOn map[uuid.UUID]struct{}
	lastDay     time.Time
}

func (f *fakeCompletions) Record(ctx context.Context, clerkID string, challengeID uuid.UUID, photoURL string, day time.Time) (*completion.Completion, error) {
	if f.recordErr != nil {
		return nil, f.recordErr
	}
	f.lastDay = day
	c := &completion.Completion{
		ID:           uuid.New(),
		ChallengeID:  challengeID,
		CompletedOn:  day,
		PhotoURL:     photoURL,
		PointsEarned: completion.PointsPerCompletion,
	}
	f.recorded = append(f.recorded, c)
	return c, nil
}

func (f *fakeCompletions) CompletedChallengeIDs(ctx context.Context, clerkID string, day time.Time) (map[uuid.UUID]struct{}, error) {
	return f.completedOn, nil
}

func (f *fakeCompletions) CompletionsForDay(ctx context.Context, clerkID string, day time.Time) ([]*completion.WithChallenge, error) {
	out := make([]*completion.WithChallenge, 0, len(f.recorded))
	for _, c := range f.recorded {
		if c.CompletedOn.Equal(day) {
			out = append(out, &completion.WithChallenge{Completion: *c})
		}
	}
	return out, nil
}

type fakeChat struct {
	history []*chat.Message
	err     error
}

func (f *fakeChat) History(ctx context.Context, challengeID uuid.UUID) ([]*chat.Message, error) {
	return f.history, f.err
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func joinedChallenge(id uuid.UUID, title string) *membership.JoinedChallenge {
	return &membership.JoinedChallenge{
		MembershipID: uuid.New(),
		JoinedAt:     time.Now(),
		Challenge:    challenge.Challenge{ID: id, Title: title},
	}
}

func TestJoinedWithTodayStatusFlagsCompletedChallenges(t *testing.T) {
	done := uuid.New()
	pending := uuid.New()

	svc := &ParticipationService{
		memberships: &fakeMemberships{joined: []*membership.JoinedChallenge{
			joinedChallenge(done, "morning run"),
			joinedChallenge(pending, "read 20 pages"),
		}},
		completions: &fakeCompletions{completedOn: map[uuid.UUID]struct{}{done: {}}},
		now:         fixedClock(time.Date(2025, 6, 15, 14, 30, 0, 0, time.UTC)),
	}

	statuses, err := svc.JoinedWithTodayStatus(context.Background(), "clerk_1")
	require.NoError(t, err)
	require.Len(t, statuses, 2)

	assert.True(t, statuses[0].CompletedToday)
	assert.Equal(t, "morning run", statuses[0].Challenge.Title)
	assert.False(t, statuses[1].CompletedToday)
}

func TestJoinedWithTodayStatusEmptyMembership(t *testing.T) {
	svc := &ParticipationService{
		memberships: &fakeMemberships{},
		completions: &fakeCompletions{},
		now:         time.Now,
	}

	statuses, err := svc.JoinedWithTodayStatus(context.Background(), "clerk_1")
	require.NoError(t, err)
	assert.NotNil(t, statuses)
	assert.Empty(t, statuses)
}

func TestCompleteWithProofUsesTruncatedDay(t *testing.T) {
	completions := &fakeCompletions{}
	svc := &ParticipationService{
		completions: completions,
		now:         fixedClock(time.Date(2025, 6, 15, 23, 59, 58, 0, time.UTC)),
	}

	c, err := svc.CompleteWithProof(context.Background(), "clerk_1", uuid.New(), "https://cdn.example/p.jpg")
	require.NoError(t, err)

	assert.Equal(t, time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC), completions.lastDay)
	assert.Equal(t, completion.PointsPerCompletion, c.PointsEarned)
}

func TestCompleteWithProofPropagatesDuplicate(t *testing.T) {
	svc := &ParticipationService{
		completions: &fakeCompletions{recordErr: apperr.ErrDuplicateCompletion},
		now:         time.Now,
	}

	_, err := svc.CompleteWithProof(context.Background(), "clerk_1", uuid.New(), "https://cdn.example/p.jpg")
	assert.ErrorIs(t, err, apperr.ErrDuplicateCompletion)
}

func TestOpenChatReplaysHistoryAndStreamsLive(t *testing.T) {
	hub := NewChatHub()
	challengeID := uuid.New()

	past := testMessage(challengeID, "yesterday")
	svc := &ParticipationService{
		chat: &fakeChat{history: []*chat.Message{past}},
		hub:  hub,
		now:  time.Now,
	}

	view, err := svc.OpenChat(context.Background(), challengeID)
	require.NoError(t, err)
	defer view.Close()

	require.Len(t, view.History, 1)
	assert.Equal(t, past.ID, view.History[0].ID)
	assert.Equal(t, 1, hub.Subscribers(challengeID))

	fresh := testMessage(challengeID, "just now")
	hub.Publish(fresh)

	select {
	case m := <-view.Live:
		assert.Equal(t, fresh.ID, m.ID)
	case <-time.After(time.Second):
		t.Fatal("live message never arrived")
	}
}

func TestOpenChatFiltersMessagesAlreadyInHistory(t *testing.T) {
	hub := NewChatHub()
	challengeID := uuid.New()

	// Simulate a post racing the history fetch: the same message is both in
	// history and published to the live subscription.
	racer := testMessage(challengeID, "raced")
	fresh := testMessage(challengeID, "after")

	svc := &ParticipationService{
		chat: &fakeChat{history: []*chat.Message{racer}},
		hub:  hub,
		now:  time.Now,
	}

	view, err := svc.OpenChat(context.Background(), challengeID)
	require.NoError(t, err)
	defer view.Close()

	hub.Publish(racer)
	hub.Publish(fresh)

	select {
	case m := <-view.Live:
		assert.Equal(t, fresh.ID, m.ID, "duplicate of history must be skipped")
	case <-time.After(time.Second):
		t.Fatal("live message never arrived")
	}
}

func TestOpenChatReleasesSubscriptionOnHistoryError(t *testing.T) {
	hub := NewChatHub()
	challengeID := uuid.New()

	svc := &ParticipationService{
		chat: &fakeChat{err: errors.New("db down")},
		hub:  hub,
		now:  time.Now,
	}

	_, err := svc.OpenChat(context.Background(), challengeID)
	require.Error(t, err)
	assert.Equal(t, 0, hub.Subscribers(challengeID), "failed open must not leak a subscription")
}

func TestChatViewCloseEndsLiveStream(t *testing.T) {
	hub := NewChatHub()
	challengeID := uuid.New()

	svc := &ParticipationService{
		chat: &fakeChat{},
		hub:  hub,
		now:  time.Now,
	}

	view, err := svc.OpenChat(context.Background(), challengeID)
	require.NoError(t, err)

	view.Close()

	select {
	case _, open := <-view.Live:
		assert.False(t, open, "live channel should close after Close")
	case <-time.After(time.Second):
		t.Fatal("live channel did not close")
	}
	assert.Equal(t, 0, hub.Subscribers(challengeID))

	// Close is idempotent.
	view.Close()
}
