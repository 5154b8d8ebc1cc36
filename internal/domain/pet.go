package domain

import (
	"fmt"
	"time"
)

// StatMax and StatMin bound every pet stat.
const (
	StatMin = 0
	StatMax = 100
)

// StateIdle is the composite state of a pet with no critical stat.
const StateIdle = "Idle"

// Action is a user-initiated pet care action
type Action int

const (
	ActionUnknown Action = iota
	ActionFeed
	ActionSleep
	ActionPlay
)

// ParseAction converts the wire name of an action.
func ParseAction(s string) (Action, error) {
	switch s {
	case "feed":
		return ActionFeed, nil
	case "sleep":
		return ActionSleep, nil
	case "play":
		return ActionPlay, nil
	default:
		return ActionUnknown, fmt.Errorf("%w: %q", ErrInvalidAction, s)
	}
}

func (a Action) String() string {
	switch a {
	case ActionFeed:
		return "feed"
	case ActionSleep:
		return "sleep"
	case ActionPlay:
		return "play"
	default:
		return "unknown"
	}
}

// Pet represents a user's pet. One pet per user.
type Pet struct {
	PetID          int64     `json:"pet_id"`
	UserID         int64     `json:"user_id"`
	Level          int       `json:"level"`
	Experience     int64     `json:"experience"`
	Hunger         int       `json:"hunger"`
	Sleepiness     int       `json:"sleepiness"`
	Happiness      int       `json:"happiness"`
	State          string    `json:"state"`
	LastUpdate     time.Time `json:"last_update"`
	LastActionTime time.Time `json:"last_action_time,omitempty"`
	LastDuelTime   time.Time `json:"last_duel_time,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	Version        int64     `json:"-"`
}

// NewPet returns a freshly hatched pet for a user
func NewPet(userID int64, now time.Time) *Pet {
	return &Pet{
		UserID:     userID,
		Level:      1,
		Experience: 0,
		Hunger:     StatMax,
		Sleepiness: StatMax,
		Happiness:  StatMax,
		State:      StateIdle,
		LastUpdate: now,
		CreatedAt:  now,
	}
}

// PetStatus is the view returned to callers after reading or acting on a pet
type PetStatus struct {
	Pet                  *Pet      `json:"pet"`
	LevelProgress        float64   `json:"level_progress"`
	ExperienceToNext     int64     `json:"experience_to_next_level"`
	NextActionAt         time.Time `json:"next_action_at"`
	ActionCooldownSecond int64     `json:"action_cooldown_seconds"`
	ServerTime           time.Time `json:"server_time"`
}
