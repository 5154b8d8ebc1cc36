package domain

import "time"

// DuelStatus represents the lifecycle state of a duel
type DuelStatus string

const (
	DuelStatusPending   DuelStatus = "pending"
	DuelStatusAccepted  DuelStatus = "accepted"
	DuelStatusDeclined  DuelStatus = "declined"
	DuelStatusCompleted DuelStatus = "completed"
)

// IsTerminal reports whether no further transition is allowed
func (s DuelStatus) IsTerminal() bool {
	return s == DuelStatusDeclined || s == DuelStatusCompleted
}

// Duel is a two-phase contest between two pets
type Duel struct {
	DuelID          int64      `json:"duel_id"`
	ChallengerPetID int64      `json:"challenger_pet_id"`
	OpponentPetID   int64      `json:"opponent_pet_id"`
	Status          DuelStatus `json:"status"`
	WinnerPetID     int64      `json:"winner_pet_id"`
	LoserPetID      int64      `json:"loser_pet_id"`
	CreatedAt       time.Time  `json:"created_at"`
	AcceptedAt      time.Time  `json:"accepted_at,omitempty"`
	CompletedAt     time.Time  `json:"completed_at,omitempty"`
}

// Involves reports whether the pet takes part in the duel
func (d *Duel) Involves(petID int64) bool {
	return d.ChallengerPetID == petID || d.OpponentPetID == petID
}

// ChallengeStatus is the closed set of outcomes for duel endpoints
type ChallengeStatus string

const (
	ChallengeSuccess           ChallengeStatus = "success"
	ChallengePetsNotFound      ChallengeStatus = "pets_not_found"
	ChallengeSamePet           ChallengeStatus = "same_pet"
	ChallengeDuelAlreadyExists ChallengeStatus = "duel_already_exists"
	ChallengeOnCooldown        ChallengeStatus = "on_cooldown"
	ChallengeUserDisabled      ChallengeStatus = "user_disabled"
	ChallengeUnknown           ChallengeStatus = "unknown"
)

// ChallengeResult carries the outcome of a challenge, accept or reject
type ChallengeResult struct {
	Status ChallengeStatus `json:"status"`
	Duel   *Duel           `json:"duel,omitempty"`
	Data   map[string]any  `json:"data,omitempty"`

	// Err is the cause behind an unknown status
	Err error `json:"-"`
}

// IsSuccess reports whether the operation succeeded
func (r ChallengeResult) IsSuccess() bool {
	return r.Status == ChallengeSuccess
}

// DuelRecord holds win/loss counts for a user
type DuelRecord struct {
	UserID int64 `json:"user_id"`
	Wins   int64 `json:"wins"`
	Losses int64 `json:"losses"`
}
