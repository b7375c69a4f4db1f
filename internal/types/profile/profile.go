package profile

import (
	"time"

	"github.com/google/uuid"
)

// Profile carries the rewards ledger state for one user. Points only move
// through the completion and redemption transactions; TotalEarned is the
// lifetime currency credited by redemptions, in rupees with 2 decimals.
type Profile struct {
	ID          uuid.UUID `json:"id" db:"id"`
	UserID      uuid.UUID `json:"user_id" db:"user_id"`
	Username    string    `json:"username"`
	AvatarURL   *string   `json:"avatar_url,omitempty" db:"avatar_url"`
	Points      int       `json:"points" db:"points"`
	TotalEarned float64   `json:"total_earned" db:"total_earned"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time `json:"updated_at" db:"updated_at"`
}

type Balance struct {
	Points          int     `json:"points"`
	TotalEarned     float64 `json:"total_earned"`
	RedeemableUnits int     `json:"redeemable_units"`
	RedeemableValue float64 `json:"redeemable_value"`
}

type RedeemResult struct {
	PointsRedeemed int     `json:"points_redeemed"`
	AmountEarned   float64 `json:"amount_earned"`
	Points         int     `json:"points"`
	TotalEarned    float64 `json:"total_earned"`
}
