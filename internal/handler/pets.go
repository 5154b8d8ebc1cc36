package handler

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/userpets/internal/domain"
)

type actionRequest struct {
	Action string `json:"action"`
}

type experienceRequest struct {
	Amount int64 `json:"amount"`
}

// GetPet returns a user's pet, hatching it on first access
func (h *Handler) GetPet(w http.ResponseWriter, r *http.Request) {
	userID, ok := pathID(r, "userID")
	if !ok {
		h.writeError(w, http.StatusBadRequest, "invalid_request", domain.ErrInvalidRequest)
		return
	}

	p, err := h.pets.GetOrCreatePet(r.Context(), userID)
	if err != nil {
		h.writeServiceError(w, r, "failed to get pet", err)
		return
	}

	h.writeSuccess(w, h.pets.Status(p))
}

// PerformAction runs a care action on the acting user's pet
func (h *Handler) PerformAction(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.requireSelf(w, r)
	if !ok {
		return
	}

	var req actionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid_request", domain.ErrInvalidRequest)
		return
	}

	status, err := h.activity.PerformAction(r.Context(), userID, req.Action)
	if err != nil {
		h.writeServiceError(w, r, "failed to perform pet action", err)
		return
	}

	h.writeSuccess(w, status)
}

// AwardExperience is the host's reward hook. Callers are trusted by the
// gateway.
func (h *Handler) AwardExperience(w http.ResponseWriter, r *http.Request) {
	userID, ok := pathID(r, "userID")
	if !ok {
		h.writeError(w, http.StatusBadRequest, "invalid_request", domain.ErrInvalidRequest)
		return
	}

	var req experienceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Amount <= 0 {
		h.writeError(w, http.StatusBadRequest, "invalid_request", domain.ErrInvalidRequest)
		return
	}

	leveledUp, err := h.pets.AwardExperience(r.Context(), userID, req.Amount, false)
	if err != nil {
		h.writeServiceError(w, r, "failed to award experience", err)
		return
	}

	h.writeSuccess(w, map[string]any{
		"user_id":    userID,
		"amount":     req.Amount,
		"leveled_up": leveledUp,
	})
}

// ListPetDuels returns a user's duel history and record
func (h *Handler) ListPetDuels(w http.ResponseWriter, r *http.Request) {
	userID, ok := pathID(r, "userID")
	if !ok {
		h.writeError(w, http.StatusBadRequest, "invalid_request", domain.ErrInvalidRequest)
		return
	}

	limit := 0
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if l, err := strconv.Atoi(limitStr); err == nil && l > 0 {
			limit = l
		}
	}

	duels, err := h.duels.ListUserDuels(r.Context(), userID, limit)
	if err != nil {
		h.writeServiceError(w, r, "failed to list duels", err)
		return
	}

	record, err := h.duels.Record(r.Context(), userID)
	if err != nil {
		h.writeServiceError(w, r, "failed to get duel record", err)
		return
	}

	if duels == nil {
		duels = []domain.Duel{}
	}
	h.writeSuccess(w, map[string]any{
		"duels":  duels,
		"record": record,
	})
}
