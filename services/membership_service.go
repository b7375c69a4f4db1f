package services

import (
	"context"
	"errors"
	"fmt"

	"habitnestAPI/internal/apperr"
	"habitnestAPI/internal/types/membership"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type MembershipService struct {
	db *pgxpool.Pool
}

func NewMembershipService(db *pgxpool.Pool) *MembershipService {
	return &MembershipService{db: db}
}

// isUniqueViolation reports whether err is a Postgres unique-constraint
// rejection (SQLSTATE 23505). Uniqueness lives in the schema, so a race
// between two sessions surfaces here rather than as a stale read.
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// resolveUserID maps the authenticated Clerk identity to the internal
// user id referenced by every domain table.
func resolveUserID(ctx context.Context, db *pgxpool.Pool, clerkID string) (uuid.UUID, error) {
	var userID uuid.UUID
	err := db.QueryRow(ctx, `SELECT id FROM users WHERE clerk_id = $1`, clerkID).Scan(&userID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return uuid.Nil, apperr.ErrNotFound
		}
		return uuid.Nil, fmt.Errorf("failed to resolve user: %w", err)
	}
	return userID, nil
}

// Join enrolls the user in a challenge and bumps its member count in the
// same transaction. Joining twice fails with ErrAlreadyMember and leaves
// the count untouched.
func (s *MembershipService) Join(ctx context.Context, clerkID string, challengeID uuid.UUID) (*membership.Membership, error) {
	userID, err := resolveUserID(ctx, s.db, clerkID)
	if err != nil {
		return nil, err
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	m, err := joinTx(ctx, tx, challengeID, userID)
	if err != nil {
		return nil, err
	}

	if err = tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return m, nil
}

// joinTx is the membership insert + counter increment, shared with the
// catalog's create-and-auto-join transaction.
func joinTx(ctx context.Context, tx pgx.Tx, challengeID, userID uuid.UUID) (*membership.Membership, error) {
	m := &membership.Membership{
		ChallengeID: challengeID,
		UserID:      userID,
	}

	insertQuery := `
	INSERT INTO challenge_members (challenge_id, user_id)
	VALUES ($1, $2)
	RETURNING id, joined_at
	`
	err := tx.QueryRow(ctx, insertQuery, challengeID, userID).Scan(&m.ID, &m.JoinedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, apperr.ErrAlreadyMember
		}
		return nil, fmt.Errorf("failed to join challenge: %w", err)
	}

	result, err := tx.Exec(ctx, `UPDATE challenges SET member_count = member_count + 1 WHERE id = $1`, challengeID)
	if err != nil {
		return nil, fmt.Errorf("failed to update member count: %w", err)
	}
	if result.RowsAffected() == 0 {
		return nil, apperr.ErrNotFound
	}

	return m, nil
}

// Leave removes the membership and decrements member_count, floored at 0.
func (s *MembershipService) Leave(ctx context.Context, clerkID string, challengeID uuid.UUID) error {
	userID, err := resolveUserID(ctx, s.db, clerkID)
	if err != nil {
		return err
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	result, err := tx.Exec(ctx, `DELETE FROM challenge_members WHERE challenge_id = $1 AND user_id = $2`, challengeID, userID)
	if err != nil {
		return fmt.Errorf("failed to leave challenge: %w", err)
	}
	if result.RowsAffected() == 0 {
		return apperr.ErrNotMember
	}

	_, err = tx.Exec(ctx, `UPDATE challenges SET member_count = GREATEST(member_count - 1, 0) WHERE id = $1`, challengeID)
	if err != nil {
		return fmt.Errorf("failed to update member count: %w", err)
	}

	if err = tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// ListMemberships returns the challenges the user currently belongs to,
// joined with full challenge data, stable by challenge id.
func (s *MembershipService) ListMemberships(ctx context.Context, clerkID string) ([]*membership.JoinedChallenge, error) {
	userID, err := resolveUserID(ctx, s.db, clerkID)
	if err != nil {
		return nil, err
	}

	query := `
	SELECT
		m.id,
		m.joined_at,
		c.id,
		c.title,
		c.description,
		c.category,
		c.creator_id,
		c.is_public,
		c.member_count,
		c.created_at
	FROM challenge_members m
	JOIN challenges c ON c.id = m.challenge_id
	WHERE m.user_id = $1
	ORDER BY c.id
	`

	rows, err := s.db.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list memberships: %w", err)
	}
	defer rows.Close()

	joined := make([]*membership.JoinedChallenge, 0)
	for rows.Next() {
		var jc membership.JoinedChallenge
		err := rows.Scan(
			&jc.MembershipID,
			&jc.JoinedAt,
			&jc.Challenge.ID,
			&jc.Challenge.Title,
			&jc.Challenge.Description,
			&jc.Challenge.Category,
			&jc.Challenge.CreatorID,
			&jc.Challenge.IsPublic,
			&jc.Challenge.MemberCount,
			&jc.Challenge.CreatedAt,
		)
		if err != nil {
			return nil, err
		}
		joined = append(joined, &jc)
	}

	if err = rows.Err(); err != nil {
		return nil, err
	}

	return joined, nil
}

// IsMember reports whether a live membership exists for the pair.
func (s *MembershipService) IsMember(ctx context.Context, clerkID string, challengeID uuid.UUID) (bool, error) {
	userID, err := resolveUserID(ctx, s.db, clerkID)
	if err != nil {
		return false, err
	}

	var exists bool
	query := `SELECT EXISTS(SELECT 1 FROM challenge_members WHERE challenge_id = $1 AND user_id = $2)`
	if err := s.db.QueryRow(ctx, query, challengeID, userID).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check membership: %w", err)
	}

	return exists, nil
}
