package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"habitnestAPI/internal/apperr"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRespondWithServiceErrorMapsTaxonomy(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code int
	}{
		{"invalid input", apperr.ErrInvalidInput, http.StatusBadRequest},
		{"missing proof", apperr.ErrMissingProof, http.StatusBadRequest},
		{"empty message", apperr.ErrEmptyMessage, http.StatusBadRequest},
		{"invalid amount", apperr.ErrInvalidAmount, http.StatusBadRequest},
		{"not a member", apperr.ErrNotMember, http.StatusForbidden},
		{"not found", apperr.ErrNotFound, http.StatusNotFound},
		{"already member", apperr.ErrAlreadyMember, http.StatusConflict},
		{"duplicate completion", apperr.ErrDuplicateCompletion, http.StatusConflict},
		{"insufficient balance", apperr.ErrInsufficientBalance, http.StatusUnprocessableEntity},
		{"unknown error", errors.New("pool exhausted"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			respondWithServiceError(rec, tt.err)

			assert.Equal(t, tt.code, rec.Code)
			assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

			var body map[string]string
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.NotEmpty(t, body["error"])
		})
	}
}

func TestRespondWithServiceErrorUnwrapsCauses(t *testing.T) {
	wrapped := fmt.Errorf("failed to join challenge: %w", apperr.ErrAlreadyMember)

	rec := httptest.NewRecorder()
	respondWithServiceError(rec, wrapped)

	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestRespondWithServiceErrorHidesInternals(t *testing.T) {
	rec := httptest.NewRecorder()
	respondWithServiceError(rec, errors.New("connection to 10.0.0.5 refused"))

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "Something went wrong", body["error"])
}
