package services

import (
	"context"
	"fmt"
	"strings"

	"habitnestAPI/internal/apperr"
	"habitnestAPI/internal/types/challenge"

	"github.com/jackc/pgx/v5/pgxpool"
)

type CatalogService struct {
	db *pgxpool.Pool
}

func NewCatalogService(db *pgxpool.Pool) *CatalogService {
	return &CatalogService{db: db}
}

// Create inserts a public challenge and auto-joins the creator in the
// same transaction. A challenge without its creator as a member is not a
// legal end state, so the two inserts commit or roll back together.
func (s *CatalogService) Create(ctx context.Context, clerkID string, req *challenge.CreateChallengeRequest) (*challenge.Challenge, error) {
	title := strings.TrimSpace(req.Title)
	if title == "" {
		return nil, apperr.ErrInvalidInput
	}

	category := strings.TrimSpace(req.Category)
	if category == "" {
		category = challenge.DefaultCategory
	}

	creatorID, err := resolveUserID(ctx, s.db, clerkID)
	if err != nil {
		return nil, err
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	c := &challenge.Challenge{
		Title:       title,
		Description: strings.TrimSpace(req.Description),
		Category:    category,
		CreatorID:   creatorID,
		IsPublic:    true,
	}

	insertQuery := `
	INSERT INTO challenges (title, description, category, creator_id, is_public)
	VALUES ($1, $2, $3, $4, $5)
	RETURNING id, member_count, created_at
	`
	err = tx.QueryRow(ctx, insertQuery,
		c.Title,
		c.Description,
		c.Category,
		c.CreatorID,
		c.IsPublic,
	).Scan(&c.ID, &c.MemberCount, &c.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create challenge: %w", err)
	}

	if _, err := joinTx(ctx, tx, c.ID, creatorID); err != nil {
		return nil, fmt.Errorf("failed to auto-join creator: %w", err)
	}
	c.MemberCount = 1

	if err = tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return c, nil
}

// ListPublic returns public challenges newest first, filtered by a
// case-insensitive match on title or description when search is non-empty.
// Each row carries whether the calling user has already joined it.
func (s *CatalogService) ListPublic(ctx context.Context, clerkID string, search string) ([]*challenge.ListedChallenge, error) {
	userID, err := resolveUserID(ctx, s.db, clerkID)
	if err != nil {
		return nil, err
	}

	searchPattern := "%" + strings.TrimSpace(search) + "%"

	query := `
	SELECT
		c.id,
		c.title,
		c.description,
		c.category,
		c.creator_id,
		c.is_public,
		c.member_count,
		c.created_at,
		EXISTS(
			SELECT 1 FROM challenge_members m
			WHERE m.challenge_id = c.id AND m.user_id = $1
		) AS joined
	FROM challenges c
	WHERE c.is_public = TRUE
		AND (c.title ILIKE $2 OR c.description ILIKE $2)
	ORDER BY c.created_at DESC
	`

	rows, err := s.db.Query(ctx, query, userID, searchPattern)
	if err != nil {
		return nil, fmt.Errorf("failed to list challenges: %w", err)
	}
	defer rows.Close()

	challenges := make([]*challenge.ListedChallenge, 0)
	for rows.Next() {
		var lc challenge.ListedChallenge
		err := rows.Scan(
			&lc.ID,
			&lc.Title,
			&lc.Description,
			&lc.Category,
			&lc.CreatorID,
			&lc.IsPublic,
			&lc.MemberCount,
			&lc.CreatedAt,
			&lc.Joined,
		)
		if err != nil {
			return nil, err
		}
		challenges = append(challenges, &lc)
	}

	if err = rows.Err(); err != nil {
		return nil, err
	}

	return challenges, nil
}
