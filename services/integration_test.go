package services

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"habitnestAPI/internal/apperr"
	"habitnestAPI/internal/types/challenge"
	"habitnestAPI/internal/types/completion"
	"habitnestAPI/internal/types/user"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// These tests exercise the real SQL paths, including the unique
// constraints the services lean on. They run only against a disposable
// database reachable via TEST_DATABASE_URL with the migrations applied.

func testPool(t *testing.T) *pgxpool.Pool {
	t.Helper()

	dbURL := os.Getenv("TEST_DATABASE_URL")
	if dbURL == "" {
		t.Skip("TEST_DATABASE_URL not set, skipping integration test")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, dbURL)
	require.NoError(t, err)
	require.NoError(t, pool.Ping(ctx))

	t.Cleanup(pool.Close)
	return pool
}

func createTestUser(t *testing.T, pool *pgxpool.Pool) string {
	t.Helper()

	clerkID := "clerk_test_" + uuid.NewString()
	svc := NewUserService(pool)
	_, err := svc.CreateUser(context.Background(), &user.CreateUserRequest{
		ClerkID:  clerkID,
		Email:    clerkID + "@example.com",
		Username: "itest_" + uuid.NewString()[:8],
	})
	require.NoError(t, err)

	t.Cleanup(func() {
		svc.DeleteUserByClerkID(context.Background(), clerkID)
	})
	return clerkID
}

func createTestChallenge(t *testing.T, pool *pgxpool.Pool, creator string) *challenge.Challenge {
	t.Helper()

	svc := NewCatalogService(pool)
	c, err := svc.Create(context.Background(), creator, &challenge.CreateChallengeRequest{
		Title:       fmt.Sprintf("itest challenge %s", uuid.NewString()[:8]),
		Description: "integration fixture",
		Category:    "fitness",
	})
	require.NoError(t, err)
	return c
}

func TestMembershipLifecycle(t *testing.T) {
	pool := testPool(t)
	ctx := context.Background()

	creator := createTestUser(t, pool)
	joiner := createTestUser(t, pool)
	ch := createTestChallenge(t, pool, creator)

	memberships := NewMembershipService(pool)

	// Creator was auto-joined.
	isMember, err := memberships.IsMember(ctx, creator, ch.ID)
	require.NoError(t, err)
	assert.True(t, isMember)
	assert.Equal(t, 1, ch.MemberCount)

	_, err = memberships.Join(ctx, joiner, ch.ID)
	require.NoError(t, err)

	_, err = memberships.Join(ctx, joiner, ch.ID)
	assert.ErrorIs(t, err, apperr.ErrAlreadyMember)

	joined, err := memberships.ListMemberships(ctx, joiner)
	require.NoError(t, err)
	require.Len(t, joined, 1)
	assert.Equal(t, ch.ID, joined[0].Challenge.ID)
	assert.Equal(t, 2, joined[0].Challenge.MemberCount)

	require.NoError(t, memberships.Leave(ctx, joiner, ch.ID))
	assert.ErrorIs(t, memberships.Leave(ctx, joiner, ch.ID), apperr.ErrNotMember)
}

func TestJoinUnknownChallenge(t *testing.T) {
	pool := testPool(t)

	clerkID := createTestUser(t, pool)
	memberships := NewMembershipService(pool)

	_, err := memberships.Join(context.Background(), clerkID, uuid.New())
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestCompletionOncePerDayAndCredit(t *testing.T) {
	pool := testPool(t)
	ctx := context.Background()

	clerkID := createTestUser(t, pool)
	ch := createTestChallenge(t, pool, clerkID)

	completions := NewCompletionService(pool)
	rewards := NewRewardsService(pool)
	day := time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC)

	c, err := completions.Record(ctx, clerkID, ch.ID, "https://cdn.example/proof.jpg", day)
	require.NoError(t, err)
	assert.Equal(t, completion.PointsPerCompletion, c.PointsEarned)

	_, err = completions.Record(ctx, clerkID, ch.ID, "https://cdn.example/proof2.jpg", day)
	assert.ErrorIs(t, err, apperr.ErrDuplicateCompletion)

	// The next day is a fresh slot.
	_, err = completions.Record(ctx, clerkID, ch.ID, "https://cdn.example/proof3.jpg", day.AddDate(0, 0, 1))
	require.NoError(t, err)

	balance, err := rewards.GetBalance(ctx, clerkID)
	require.NoError(t, err)
	assert.Equal(t, 2*completion.PointsPerCompletion, balance.Points)
}

func TestCompletionRequiresMembershipAndProof(t *testing.T) {
	pool := testPool(t)
	ctx := context.Background()

	member := createTestUser(t, pool)
	outsider := createTestUser(t, pool)
	ch := createTestChallenge(t, pool, member)

	completions := NewCompletionService(pool)
	day := time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC)

	_, err := completions.Record(ctx, outsider, ch.ID, "https://cdn.example/proof.jpg", day)
	assert.ErrorIs(t, err, apperr.ErrNotMember)

	_, err = completions.Record(ctx, member, ch.ID, "   ", day)
	assert.ErrorIs(t, err, apperr.ErrMissingProof)
}

func TestRedeemFloorsToFullUnits(t *testing.T) {
	pool := testPool(t)
	ctx := context.Background()

	clerkID := createTestUser(t, pool)
	rewards := NewRewardsService(pool)

	_, err := rewards.Redeem(ctx, clerkID)
	assert.ErrorIs(t, err, apperr.ErrInsufficientBalance)

	require.NoError(t, rewards.Credit(ctx, clerkID, 250))

	res, err := rewards.Redeem(ctx, clerkID)
	require.NoError(t, err)
	assert.Equal(t, 200, res.PointsRedeemed)
	assert.Equal(t, 20.0, res.AmountEarned)
	assert.Equal(t, 50, res.Points)
	assert.Equal(t, 20.0, res.TotalEarned)

	_, err = rewards.Redeem(ctx, clerkID)
	assert.ErrorIs(t, err, apperr.ErrInsufficientBalance)
}

func TestChatPostRequiresMembershipAndBroadcasts(t *testing.T) {
	pool := testPool(t)
	ctx := context.Background()

	member := createTestUser(t, pool)
	outsider := createTestUser(t, pool)
	ch := createTestChallenge(t, pool, member)

	hub := NewChatHub()
	chatSvc := NewChatService(pool, hub)

	_, err := chatSvc.Post(ctx, outsider, ch.ID, "let me in")
	assert.ErrorIs(t, err, apperr.ErrNotMember)

	_, err = chatSvc.Post(ctx, member, ch.ID, "   ")
	assert.ErrorIs(t, err, apperr.ErrEmptyMessage)

	sub := hub.Subscribe(ch.ID)
	defer sub.Unsubscribe()

	posted, err := chatSvc.Post(ctx, member, ch.ID, "day 3 done")
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, posted.ID)
	assert.NotEmpty(t, posted.Username)

	select {
	case got := <-sub.Messages():
		assert.Equal(t, posted.ID, got.ID)
		assert.Equal(t, "day 3 done", got.Text)
	case <-time.After(time.Second):
		t.Fatal("posted message was not broadcast")
	}

	history, err := chatSvc.History(ctx, ch.ID)
	require.NoError(t, err)
	require.NotEmpty(t, history)
	assert.Equal(t, posted.ID, history[len(history)-1].ID)
}
