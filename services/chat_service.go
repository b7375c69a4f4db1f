package services

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"habitnestAPI/internal/apperr"
	"habitnestAPI/internal/types/chat"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

type ChatService struct {
	db  *pgxpool.Pool
	hub *ChatHub

	mu    sync.Mutex
	posts map[uuid.UUID]*sync.Mutex
}

func NewChatService(db *pgxpool.Pool, hub *ChatHub) *ChatService {
	return &ChatService{
		db:    db,
		hub:   hub,
		posts: make(map[uuid.UUID]*sync.Mutex),
	}
}

// postLock returns the mutex serializing insert-then-publish for one
// challenge, so live delivery order always matches the stored order.
func (s *ChatService) postLock(challengeID uuid.UUID) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()

	l, ok := s.posts[challengeID]
	if !ok {
		l = &sync.Mutex{}
		s.posts[challengeID] = l
	}
	return l
}

// Hub exposes the live fan-out for subscription by the websocket layer.
func (s *ChatService) Hub() *ChatHub {
	return s.hub
}

// Post appends an immutable message to the challenge's chat and fans it
// out to live viewers. Only current members may post. The row is the
// source of truth; the hub delivery happens after commit, so a viewer
// that misses the push still sees the message on the next history load.
func (s *ChatService) Post(ctx context.Context, clerkID string, challengeID uuid.UUID, text string) (*chat.Message, error) {
	if strings.TrimSpace(text) == "" {
		return nil, apperr.ErrEmptyMessage
	}

	userID, err := resolveUserID(ctx, s.db, clerkID)
	if err != nil {
		return nil, err
	}

	var isMember bool
	memberQuery := `SELECT EXISTS(SELECT 1 FROM challenge_members WHERE challenge_id = $1 AND user_id = $2)`
	if err := s.db.QueryRow(ctx, memberQuery, challengeID, userID).Scan(&isMember); err != nil {
		return nil, fmt.Errorf("failed to check membership: %w", err)
	}
	if !isMember {
		return nil, apperr.ErrNotMember
	}

	m := &chat.Message{
		ChallengeID: challengeID,
		UserID:      userID,
		Text:        text,
	}

	// Insert and publish under the per-challenge lock: without it, two
	// concurrent posts could publish in an order that disagrees with
	// their created_at order in history.
	lock := s.postLock(challengeID)
	lock.Lock()
	defer lock.Unlock()

	insertQuery := `
	WITH inserted AS (
		INSERT INTO chat_messages (challenge_id, user_id, message)
		VALUES ($1, $2, $3)
		RETURNING id, user_id, created_at
	)
	SELECT i.id, i.created_at, u.username
	FROM inserted i
	JOIN users u ON u.id = i.user_id
	`
	err = s.db.QueryRow(ctx, insertQuery, challengeID, userID, text).Scan(&m.ID, &m.CreatedAt, &m.Username)
	if err != nil {
		return nil, fmt.Errorf("failed to post message: %w", err)
	}

	s.hub.Publish(m)

	return m, nil
}

// History returns the challenge's full message log, oldest first, for
// populating a chat view before its live subscription takes over.
func (s *ChatService) History(ctx context.Context, challengeID uuid.UUID) ([]*chat.Message, error) {
	query := `
	SELECT
		cm.id,
		cm.challenge_id,
		cm.user_id,
		u.username,
		cm.message,
		cm.created_at
	FROM chat_messages cm
	JOIN users u ON u.id = cm.user_id
	WHERE cm.challenge_id = $1
	ORDER BY cm.created_at ASC, cm.id ASC
	`

	rows, err := s.db.Query(ctx, query, challengeID)
	if err != nil {
		return nil, fmt.Errorf("failed to get chat history: %w", err)
	}
	defer rows.Close()

	messages := make([]*chat.Message, 0)
	for rows.Next() {
		var m chat.Message
		err := rows.Scan(&m.ID, &m.ChallengeID, &m.UserID, &m.Username, &m.Text, &m.CreatedAt)
		if err != nil {
			return nil, err
		}
		messages = append(messages, &m)
	}

	if err = rows.Err(); err != nil {
		return nil, err
	}

	return messages, nil
}
