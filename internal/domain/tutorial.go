package domain

import "time"

// TutorialCompletion records a user finishing a one-time tutorial
type TutorialCompletion struct {
	UserID      int64     `json:"user_id"`
	TutorialKey string    `json:"tutorial_key"`
	Completed   bool      `json:"completed"`
	CompletedAt time.Time `json:"completed_at"`
}

// TutorialProgress is one catalog entry with the user's completion state
type TutorialProgress struct {
	Key       string `json:"tutorial_id"`
	Title     string `json:"title"`
	RewardExp int64  `json:"reward_exp"`
	Completed bool   `json:"completed"`
}

// UserProfile mirrors the host's user fields the engine needs
type UserProfile struct {
	UserID       int64     `json:"user_id"`
	Username     string    `json:"username"`
	PetsDisabled bool      `json:"pets_disabled"`
	AvatarURL    string    `json:"avatar_url,omitempty"`
	UpdatedAt    time.Time `json:"updated_at"`
}
