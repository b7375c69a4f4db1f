package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"habitnestAPI/internal/apperr"
	"habitnestAPI/internal/types/completion"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

type CompletionService struct {
	db *pgxpool.Pool
}

func NewCompletionService(db *pgxpool.Pool) *CompletionService {
	return &CompletionService{db: db}
}

// Record stores one proof-backed completion for (user, challenge, day) and
// credits the fixed point award, all in one transaction. The once-per-day
// rule is the completions_once_per_day unique constraint: a double-tap race
// loses the insert and comes back as ErrDuplicateCompletion, so at most one
// award is ever paid out. Day is a calendar date, not a 24h window.
func (s *CompletionService) Record(ctx context.Context, clerkID string, challengeID uuid.UUID, photoURL string, day time.Time) (*completion.Completion, error) {
	if strings.TrimSpace(photoURL) == "" {
		return nil, apperr.ErrMissingProof
	}

	userID, err := resolveUserID(ctx, s.db, clerkID)
	if err != nil {
		return nil, err
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var isMember bool
	memberQuery := `SELECT EXISTS(SELECT 1 FROM challenge_members WHERE challenge_id = $1 AND user_id = $2)`
	if err := tx.QueryRow(ctx, memberQuery, challengeID, userID).Scan(&isMember); err != nil {
		return nil, fmt.Errorf("failed to check membership: %w", err)
	}
	if !isMember {
		return nil, apperr.ErrNotMember
	}

	c := &completion.Completion{
		ChallengeID:  challengeID,
		UserID:       userID,
		CompletedOn:  day,
		PhotoURL:     photoURL,
		PointsEarned: completion.PointsPerCompletion,
	}

	insertQuery := `
	INSERT INTO completions (challenge_id, user_id, completed_on, photo_url, points_earned)
	VALUES ($1, $2, $3, $4, $5)
	RETURNING id, completed_on, created_at
	`
	err = tx.QueryRow(ctx, insertQuery,
		c.ChallengeID,
		c.UserID,
		day,
		c.PhotoURL,
		c.PointsEarned,
	).Scan(&c.ID, &c.CompletedOn, &c.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, apperr.ErrDuplicateCompletion
		}
		return nil, fmt.Errorf("failed to record completion: %w", err)
	}

	if err := creditTx(ctx, tx, userID, c.PointsEarned); err != nil {
		return nil, err
	}

	if err = tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return c, nil
}

// CompletionsForDay returns the user's completions on one calendar day,
// joined with challenge metadata for display.
func (s *CompletionService) CompletionsForDay(ctx context.Context, clerkID string, day time.Time) ([]*completion.WithChallenge, error) {
	userID, err := resolveUserID(ctx, s.db, clerkID)
	if err != nil {
		return nil, err
	}

	query := `
	SELECT
		co.id,
		co.challenge_id,
		co.user_id,
		co.completed_on,
		co.photo_url,
		co.points_earned,
		co.created_at,
		c.title,
		c.category
	FROM completions co
	JOIN challenges c ON c.id = co.challenge_id
	WHERE co.user_id = $1 AND co.completed_on = $2
	ORDER BY co.created_at
	`

	rows, err := s.db.Query(ctx, query, userID, day)
	if err != nil {
		return nil, fmt.Errorf("failed to get completions: %w", err)
	}
	defer rows.Close()

	completions := make([]*completion.WithChallenge, 0)
	for rows.Next() {
		var wc completion.WithChallenge
		err := rows.Scan(
			&wc.ID,
			&wc.ChallengeID,
			&wc.UserID,
			&wc.CompletedOn,
			&wc.PhotoURL,
			&wc.PointsEarned,
			&wc.CreatedAt,
			&wc.ChallengeTitle,
			&wc.ChallengeCategory,
		)
		if err != nil {
			return nil, err
		}
		completions = append(completions, &wc)
	}

	if err = rows.Err(); err != nil {
		return nil, err
	}

	return completions, nil
}

// CompletedChallengeIDs returns the set of challenges the user completed
// on the given day, for decorating the habit list in one query.
func (s *CompletionService) CompletedChallengeIDs(ctx context.Context, clerkID string, day time.Time) (map[uuid.UUID]struct{}, error) {
	userID, err := resolveUserID(ctx, s.db, clerkID)
	if err != nil {
		return nil, err
	}

	rows, err := s.db.Query(ctx, `SELECT challenge_id FROM completions WHERE user_id = $1 AND completed_on = $2`, userID, day)
	if err != nil {
		return nil, fmt.Errorf("failed to get completions: %w", err)
	}
	defer rows.Close()

	ids := make(map[uuid.UUID]struct{})
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids[id] = struct{}{}
	}

	if err = rows.Err(); err != nil {
		return nil, err
	}

	return ids, nil
}

// IsCompletedOn answers the same uniqueness rule Record enforces: does a
// completion row exist for (user, challenge, day).
func (s *CompletionService) IsCompletedOn(ctx context.Context, clerkID string, challengeID uuid.UUID, day time.Time) (bool, error) {
	userID, err := resolveUserID(ctx, s.db, clerkID)
	if err != nil {
		return false, err
	}

	var exists bool
	query := `SELECT EXISTS(SELECT 1 FROM completions WHERE user_id = $1 AND challenge_id = $2 AND completed_on = $3)`
	if err := s.db.QueryRow(ctx, query, userID, challengeID, day).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check completion: %w", err)
	}

	return exists, nil
}
