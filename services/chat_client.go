package services

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"time"

	"habitnestAPI/internal/apperr"
	"habitnestAPI/middleware"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 4096
)

// ChatClient bridges one websocket connection to a challenge chat view:
// history and live messages flow out through the write pump, posts flow
// in through the read pump. The view is released when either pump exits,
// so a dropped connection never leaks its subscription.
type ChatClient struct {
	conn        *websocket.Conn
	chat        *ChatService
	view        *ChatView
	clerkID     string
	challengeID uuid.UUID
}

func NewChatClient(conn *websocket.Conn, chat *ChatService, view *ChatView, clerkID string, challengeID uuid.UUID) *ChatClient {
	return &ChatClient{
		conn:        conn,
		chat:        chat,
		view:        view,
		clerkID:     clerkID,
		challengeID: challengeID,
	}
}

// Run services the connection until the peer goes away. It blocks.
func (c *ChatClient) Run() {
	go c.writePump()
	c.readPump()
}

type inboundPayload struct {
	Message string `json:"message"`
}

func (c *ChatClient) readPump() {
	defer func() {
		c.view.Close()
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("chat read error: %v", err)
			}
			return
		}

		var payload inboundPayload
		if err := json.Unmarshal(raw, &payload); err != nil {
			continue
		}

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		_, err = c.chat.Post(ctx, c.clerkID, c.challengeID, payload.Message)
		cancel()
		if err != nil {
			if errors.Is(err, apperr.ErrEmptyMessage) {
				continue
			}
			log.Printf("chat post failed: %v", err)
			continue
		}
		middleware.CountChatMessage()
	}
}

func (c *ChatClient) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	// Replay history before any live message so the viewer always sees
	// creation order.
	for _, m := range c.view.History {
		c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.conn.WriteJSON(m); err != nil {
			return
		}
	}

	for {
		select {
		case m, ok := <-c.view.Live:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(m); err != nil {
				return
			}

		case <-ticker.C:
			// Heartbeat: keep connection alive
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
