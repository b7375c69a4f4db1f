package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"habitnestAPI/middleware"
	"habitnestAPI/services"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
)

type ParticipationHandler struct {
	participationService *services.ParticipationService
}

func NewParticipationHandler(participationService *services.ParticipationService) *ParticipationHandler {
	return &ParticipationHandler{
		participationService: participationService,
	}
}

// GetHabits serves the habit list: every joined challenge with today's
// completion flag.
func (h *ParticipationHandler) GetHabits(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	clerkID, ok := middleware.GetClerkID(ctx)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "User not authenticated")
		return
	}

	habits, err := h.participationService.JoinedWithTodayStatus(ctx, clerkID)
	if err != nil {
		respondWithServiceError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, habits)
}

// GetCompletions lists the caller's completions for one day, defaulting
// to today.
func (h *ParticipationHandler) GetCompletions(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	clerkID, ok := middleware.GetClerkID(ctx)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "User not authenticated")
		return
	}

	day := h.participationService.Today()
	if d := r.URL.Query().Get("date"); d != "" {
		parsed, err := time.Parse("2006-01-02", d)
		if err != nil {
			respondWithError(w, http.StatusBadRequest, "Invalid date, expected YYYY-MM-DD")
			return
		}
		day = parsed
	}

	completions, err := h.participationService.CompletionsOn(ctx, clerkID, day)
	if err != nil {
		respondWithServiceError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, completions)
}

type completeRequest struct {
	PhotoURL string `json:"photo_url"`
	// Date is optional, formatted 2006-01-02; empty means today.
	Date string `json:"date,omitempty"`
}

// CompleteChallenge records today's proof-backed completion and awards
// points. The uniqueness rule lives below; a duplicate comes back 409.
func (h *ParticipationHandler) CompleteChallenge(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
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

	var req completeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if req.Date != "" {
		day, err := time.Parse("2006-01-02", req.Date)
		if err != nil {
			respondWithError(w, http.StatusBadRequest, "Invalid date, expected YYYY-MM-DD")
			return
		}
		c, err := h.participationService.CompleteWithProofOn(ctx, clerkID, challengeID, req.PhotoURL, day)
		if err != nil {
			respondWithServiceError(w, err)
			return
		}
		middleware.CountCompletion()
		respondWithJSON(w, http.StatusCreated, c)
		return
	}

	c, err := h.participationService.CompleteWithProof(ctx, clerkID, challengeID, req.PhotoURL)
	if err != nil {
		respondWithServiceError(w, err)
		return
	}

	middleware.CountCompletion()
	respondWithJSON(w, http.StatusCreated, c)
}
