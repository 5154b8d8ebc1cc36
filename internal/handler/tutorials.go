package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/userpets/internal/domain"
)

type profileRequest struct {
	Username     string `json:"username"`
	PetsDisabled bool   `json:"pets_disabled"`
	AvatarURL    string `json:"avatar_url"`
}

// ListTutorials returns the tutorial catalog with the user's progress
func (h *Handler) ListTutorials(w http.ResponseWriter, r *http.Request) {
	userID, ok := pathID(r, "userID")
	if !ok {
		h.writeError(w, http.StatusBadRequest, "invalid_request", domain.ErrInvalidRequest)
		return
	}

	progress, err := h.tutorials.List(r.Context(), userID)
	if err != nil {
		h.writeServiceError(w, r, "failed to list tutorials", err)
		return
	}

	h.writeSuccess(w, progress)
}

// CompleteTutorial marks a tutorial done for the acting user
func (h *Handler) CompleteTutorial(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.requireSelf(w, r)
	if !ok {
		return
	}
	key := chi.URLParam(r, "key")

	newly, err := h.tutorials.Complete(r.Context(), userID, key)
	if err != nil {
		h.writeServiceError(w, r, "failed to complete tutorial", err)
		return
	}

	h.writeSuccess(w, map[string]any{
		"tutorial_id":     key,
		"newly_completed": newly,
	})
}

// UpdateProfile stores the profile fields the host pushes for a user
func (h *Handler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	userID, ok := pathID(r, "userID")
	if !ok {
		h.writeError(w, http.StatusBadRequest, "invalid_request", domain.ErrInvalidRequest)
		return
	}

	var req profileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid_request", domain.ErrInvalidRequest)
		return
	}

	profile := &domain.UserProfile{
		UserID:       userID,
		Username:     req.Username,
		PetsDisabled: req.PetsDisabled,
		AvatarURL:    req.AvatarURL,
	}
	if err := h.activity.UpdateProfile(r.Context(), profile); err != nil {
		h.writeServiceError(w, r, "failed to update profile", err)
		return
	}

	h.writeSuccess(w, profile)
}
