package membership

import (
	"time"

	"habitnestAPI/internal/types/challenge"

	"github.com/google/uuid"
)

type Membership struct {
	ID          uuid.UUID `json:"id" db:"id"`
	ChallengeID uuid.UUID `json:"challenge_id" db:"challenge_id"`
	UserID      uuid.UUID `json:"user_id" db:"user_id"`
	JoinedAt    time.Time `json:"joined_at" db:"joined_at"`
}

// JoinedChallenge pairs a membership with the full challenge row, the
// shape the habit list renders from.
type JoinedChallenge struct {
	MembershipID uuid.UUID           `json:"membership_id"`
	JoinedAt     time.Time           `json:"joined_at"`
	Challenge    challenge.Challenge `json:"challenge"`
}

// HabitStatus is JoinedChallenge plus today's completion flag.
type HabitStatus struct {
	JoinedChallenge
	CompletedToday bool `json:"completed_today"`
}
