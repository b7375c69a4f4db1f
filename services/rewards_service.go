package services

import (
	"context"
	"errors"
	"fmt"

	"habitnestAPI/internal/apperr"
	"habitnestAPI/internal/types/profile"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	// RedemptionUnit is the points debited per redeemed unit.
	RedemptionUnit = 100
	// RedemptionValue is the currency credited per redeemed unit.
	RedemptionValue = 10
)

type RewardsService struct {
	db *pgxpool.Pool
}

func NewRewardsService(db *pgxpool.Pool) *RewardsService {
	return &RewardsService{db: db}
}

// redeemableUnits is floor arithmetic on whole points; currency never
// enters the computation until the unit count is fixed.
func redeemableUnits(points int) int {
	return points / RedemptionUnit
}

// Credit adds points to the user's balance. Point balances only ever move
// through relative updates, never absolute writes from a read snapshot.
func (s *RewardsService) Credit(ctx context.Context, clerkID string, points int) error {
	if points <= 0 {
		return apperr.ErrInvalidAmount
	}

	userID, err := resolveUserID(ctx, s.db, clerkID)
	if err != nil {
		return err
	}

	result, err := s.db.Exec(ctx, `UPDATE profiles SET points = points + $1, updated_at = NOW() WHERE user_id = $2`, points, userID)
	if err != nil {
		return fmt.Errorf("failed to credit points: %w", err)
	}
	if result.RowsAffected() == 0 {
		return apperr.ErrNotFound
	}

	return nil
}

// creditTx applies a point credit inside an existing transaction. The
// completion recorder uses it so the completion row and the award commit
// or roll back together.
func creditTx(ctx context.Context, tx pgx.Tx, userID uuid.UUID, points int) error {
	if points <= 0 {
		return apperr.ErrInvalidAmount
	}

	result, err := tx.Exec(ctx, `UPDATE profiles SET points = points + $1, updated_at = NOW() WHERE user_id = $2`, points, userID)
	if err != nil {
		return fmt.Errorf("failed to credit points: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("no profile to credit for user %s", userID)
	}

	return nil
}

// Redeem converts every full block of 100 points into 10 currency units.
// The balance row is locked for the whole transaction, so a concurrent
// redemption by the same user waits and then sees the already-debited
// balance instead of double-spending a stale snapshot.
func (s *RewardsService) Redeem(ctx context.Context, clerkID string) (*profile.RedeemResult, error) {
	userID, err := resolveUserID(ctx, s.db, clerkID)
	if err != nil {
		return nil, err
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var balance int
	err = tx.QueryRow(ctx, `SELECT points FROM profiles WHERE user_id = $1 FOR UPDATE`, userID).Scan(&balance)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.ErrNotFound
		}
		return nil, fmt.Errorf("failed to lock balance: %w", err)
	}

	units := redeemableUnits(balance)
	if units == 0 {
		return nil, apperr.ErrInsufficientBalance
	}

	res := &profile.RedeemResult{
		PointsRedeemed: units * RedemptionUnit,
		AmountEarned:   float64(units * RedemptionValue),
	}

	updateQuery := `
	UPDATE profiles
	SET points = points - $1,
		total_earned = total_earned + $2,
		updated_at = NOW()
	WHERE user_id = $3
	RETURNING points, total_earned
	`
	err = tx.QueryRow(ctx, updateQuery, res.PointsRedeemed, res.AmountEarned, userID).Scan(&res.Points, &res.TotalEarned)
	if err != nil {
		return nil, fmt.Errorf("failed to redeem points: %w", err)
	}

	if err = tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return res, nil
}

// GetBalance returns the current point balance and lifetime earnings,
// plus the derived redeemable amounts the rewards page shows.
func (s *RewardsService) GetBalance(ctx context.Context, clerkID string) (*profile.Balance, error) {
	userID, err := resolveUserID(ctx, s.db, clerkID)
	if err != nil {
		return nil, err
	}

	b := &profile.Balance{}
	query := `SELECT points, total_earned FROM profiles WHERE user_id = $1`
	err = s.db.QueryRow(ctx, query, userID).Scan(&b.Points, &b.TotalEarned)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get balance: %w", err)
	}

	b.RedeemableUnits = redeemableUnits(b.Points)
	b.RedeemableValue = float64(b.RedeemableUnits) * RedemptionValue

	return b, nil
}
