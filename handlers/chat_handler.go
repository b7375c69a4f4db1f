package handlers

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"habitnestAPI/middleware"
	"habitnestAPI/services"

	"github.com/clerk/clerk-sdk-go/v2/jwt"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

type ChatHandler struct {
	chatService          *services.ChatService
	membershipService    *services.MembershipService
	participationService *services.ParticipationService
}

func NewChatHandler(chatService *services.ChatService, membershipService *services.MembershipService, participationService *services.ParticipationService) *ChatHandler {
	return &ChatHandler{
		chatService:          chatService,
		membershipService:    membershipService,
		participationService: participationService,
	}
}

// GetMessages returns the full message history for a challenge, oldest first.
func (h *ChatHandler) GetMessages(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	clerkID, ok := middleware.GetClerkID(ctx)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "User not authenticated")
		return
	}

	challengeID, err := uuid.Parse(mux.Vars(r)["challengeID"])
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid challenge ID")
		return
	}

	member, err := h.membershipService.IsMember(ctx, clerkID, challengeID)
	if err != nil {
		respondWithServiceError(w, err)
		return
	}
	if !member {
		respondWithError(w, http.StatusForbidden, "Join the challenge to view its chat")
		return
	}

	messages, err := h.chatService.History(ctx, challengeID)
	if err != nil {
		respondWithServiceError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"messages": messages,
	})
}

type postMessageRequest struct {
	Message string `json:"message"`
}

// PostMessage stores a message and fans it out to live chat subscribers.
func (h *ChatHandler) PostMessage(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	clerkID, ok := middleware.GetClerkID(ctx)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "User not authenticated")
		return
	}

	challengeID, err := uuid.Parse(mux.Vars(r)["challengeID"])
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid challenge ID")
		return
	}

	var req postMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	message, err := h.chatService.Post(ctx, clerkID, challengeID, req.Message)
	if err != nil {
		respondWithServiceError(w, err)
		return
	}

	middleware.CountChatMessage()
	respondWithJSON(w, http.StatusCreated, message)
}

// ServeChat upgrades the connection to a websocket and streams challenge
// chat: history first, then live messages. The route sits outside the auth
// middleware because browsers cannot set headers on websocket dials, so the
// token travels as a query parameter instead.
func (h *ChatHandler) ServeChat(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	claims, err := jwt.Verify(r.Context(), &jwt.VerifyParams{Token: token})
	if err != nil {
		log.Printf("Chat token verification failed: %v", err)
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	clerkID := claims.Subject

	challengeID, err := uuid.Parse(mux.Vars(r)["challengeID"])
	if err != nil {
		http.Error(w, "Invalid challenge ID", http.StatusBadRequest)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	member, err := h.membershipService.IsMember(ctx, clerkID, challengeID)
	cancel()
	if err != nil {
		http.Error(w, "Something went wrong", http.StatusInternalServerError)
		return
	}
	if !member {
		http.Error(w, "Join the challenge to use its chat", http.StatusForbidden)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("Could not upgrade connection: %v", err)
		return
	}

	ctx, cancel = context.WithTimeout(context.Background(), 5*time.Second)
	view, err := h.participationService.OpenChat(ctx, challengeID)
	cancel()
	if err != nil {
		log.Printf("Could not open chat for challenge %s: %v", challengeID, err)
		conn.Close()
		return
	}

	client := services.NewChatClient(conn, h.chatService, view, clerkID, challengeID)
	client.Run()
}
