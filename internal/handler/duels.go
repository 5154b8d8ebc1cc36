package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/userpets/internal/domain"
)

type challengeRequest struct {
	ChallengerPetID int64 `json:"challenger_pet_id"`
	OpponentPetID   int64 `json:"opponent_pet_id"`
}

// challengeStatusCode maps a duel result to its HTTP status
func challengeStatusCode(res domain.ChallengeResult) int {
	switch res.Status {
	case domain.ChallengeSuccess:
		return http.StatusOK
	case domain.ChallengePetsNotFound:
		return http.StatusNotFound
	case domain.ChallengeSamePet:
		return http.StatusBadRequest
	case domain.ChallengeDuelAlreadyExists:
		return http.StatusConflict
	case domain.ChallengeOnCooldown:
		return http.StatusTooManyRequests
	case domain.ChallengeUserDisabled:
		return http.StatusForbidden
	}

	switch {
	case errors.Is(res.Err, domain.ErrDuelNotFound):
		return http.StatusNotFound
	case errors.Is(res.Err, domain.ErrNotDuelOpponent):
		return http.StatusForbidden
	case errors.Is(res.Err, domain.ErrDuelNotPending):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handler) writeChallengeResult(w http.ResponseWriter, res domain.ChallengeResult) {
	h.writeJSON(w, challengeStatusCode(res), APIResponse{
		Success: res.IsSuccess(),
		Data:    res,
	})
}

// CreateChallenge opens a duel from the acting user's pet
func (h *Handler) CreateChallenge(w http.ResponseWriter, r *http.Request) {
	userID, ok := actingUser(r)
	if !ok {
		h.writeError(w, http.StatusForbidden, "forbidden", domain.ErrForbidden)
		return
	}

	var req challengeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.ChallengerPetID <= 0 || req.OpponentPetID <= 0 {
		h.writeError(w, http.StatusBadRequest, "invalid_request", domain.ErrInvalidRequest)
		return
	}

	own, err := h.pets.GetPetByUser(r.Context(), userID)
	if errors.Is(err, domain.ErrPetNotFound) {
		h.writeChallengeResult(w, domain.ChallengeResult{Status: domain.ChallengePetsNotFound})
		return
	}
	if err != nil {
		h.writeServiceError(w, r, "failed to load challenger pet", err)
		return
	}
	if own.PetID != req.ChallengerPetID {
		h.writeError(w, http.StatusForbidden, "forbidden", domain.ErrForbidden)
		return
	}

	h.writeChallengeResult(w, h.duels.CreateChallenge(r.Context(), req.ChallengerPetID, req.OpponentPetID))
}

// AcceptChallenge accepts a pending duel on behalf of the acting user
func (h *Handler) AcceptChallenge(w http.ResponseWriter, r *http.Request) {
	h.answerChallenge(w, r, h.duels.AcceptChallenge)
}

// RejectChallenge declines a pending duel on behalf of the acting user
func (h *Handler) RejectChallenge(w http.ResponseWriter, r *http.Request) {
	h.answerChallenge(w, r, h.duels.RejectChallenge)
}

func (h *Handler) answerChallenge(w http.ResponseWriter, r *http.Request, answer func(ctx context.Context, duelID, userID int64) domain.ChallengeResult) {
	userID, ok := actingUser(r)
	if !ok {
		h.writeError(w, http.StatusForbidden, "forbidden", domain.ErrForbidden)
		return
	}
	duelID, ok := pathID(r, "duelID")
	if !ok {
		h.writeError(w, http.StatusBadRequest, "invalid_request", domain.ErrInvalidRequest)
		return
	}

	h.writeChallengeResult(w, answer(r.Context(), duelID, userID))
}

// GetDuel returns a duel by id
func (h *Handler) GetDuel(w http.ResponseWriter, r *http.Request) {
	duelID, ok := pathID(r, "duelID")
	if !ok {
		h.writeError(w, http.StatusBadRequest, "invalid_request", domain.ErrInvalidRequest)
		return
	}

	d, err := h.duels.GetDuel(r.Context(), duelID)
	if err != nil {
		h.writeServiceError(w, r, "failed to get duel", err)
		return
	}

	h.writeSuccess(w, d)
}

// ListAlgorithms returns the registered duel algorithms
func (h *Handler) ListAlgorithms(w http.ResponseWriter, r *http.Request) {
	h.writeSuccess(w, h.duels.Algorithms())
}
