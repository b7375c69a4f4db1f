package completion

import (
	"time"

	"github.com/google/uuid"
)

// PointsPerCompletion is the fixed award for one proof-backed completion.
const PointsPerCompletion = 10

type Completion struct {
	ID           uuid.UUID `json:"id" db:"id"`
	ChallengeID  uuid.UUID `json:"challenge_id" db:"challenge_id"`
	UserID       uuid.UUID `json:"user_id" db:"user_id"`
	CompletedOn  time.Time `json:"completed_on" db:"completed_on"`
	PhotoURL     string    `json:"photo_url" db:"photo_url"`
	PointsEarned int       `json:"points_earned" db:"points_earned"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
}

// WithChallenge decorates a completion with catalog metadata for display.
type WithChallenge struct {
	Completion
	ChallengeTitle    string `json:"challenge_title"`
	ChallengeCategory string `json:"challenge_category"`
}
