package challenge

import (
	"time"

	"github.com/google/uuid"
)

const DefaultCategory = "general"

type Challenge struct {
	ID          uuid.UUID `json:"id" db:"id"`
	Title       string    `json:"title" db:"title"`
	Description string    `json:"description" db:"description"`
	Category    string    `json:"category" db:"category"`
	CreatorID   uuid.UUID `json:"creator_id" db:"creator_id"`
	IsPublic    bool      `json:"is_public" db:"is_public"`
	MemberCount int       `json:"member_count" db:"member_count"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
}

type CreateChallengeRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Category    string `json:"category"`
}

// ListedChallenge is a catalog row decorated with the caller's
// membership state.
type ListedChallenge struct {
	Challenge
	Joined bool `json:"joined"`
}
