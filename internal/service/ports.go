package service

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/userpets/internal/domain"
)

// PetStore persists pets. UpdatePet must reject a stale Version with
// domain.ErrPetConflict and bump Version on success.
type PetStore interface {
	GetPet(ctx context.Context, petID int64) (*domain.Pet, error)
	GetPetByUser(ctx context.Context, userID int64) (*domain.Pet, error)
	CreatePet(ctx context.Context, pet *domain.Pet) (*domain.Pet, error)
	UpdatePet(ctx context.Context, pet *domain.Pet) error
}

// DuelStore persists duels. Transitions report false when the duel was not
// in the expected source status.
type DuelStore interface {
	CreateDuel(ctx context.Context, duel *domain.Duel) error
	GetDuel(ctx context.Context, duelID int64) (*domain.Duel, error)
	FindPendingDuel(ctx context.Context, petA, petB int64) (*domain.Duel, error)
	AcceptDuel(ctx context.Context, duelID int64, at time.Time) (bool, error)
	DeclineDuel(ctx context.Context, duelID int64) (bool, error)
	CompleteDuel(ctx context.Context, duelID, winnerPetID, loserPetID int64, at time.Time) (bool, error)
	ListPetDuels(ctx context.Context, petID int64, limit int) ([]domain.Duel, error)
	CountDuelResults(ctx context.Context, petID int64) (wins, losses int64, err error)
}

// TutorialStore persists tutorial completions
type TutorialStore interface {
	IsTutorialCompleted(ctx context.Context, userID int64, key string) (bool, error)
	CompleteTutorial(ctx context.Context, userID int64, key string, at time.Time) (bool, error)
	ListTutorialCompletions(ctx context.Context, userID int64) ([]domain.TutorialCompletion, error)
}

// ProfileStore persists the user profile mirror
type ProfileStore interface {
	GetProfile(ctx context.Context, userID int64) (*domain.UserProfile, error)
	UpsertProfile(ctx context.Context, profile *domain.UserProfile) error
}

// ProfileCache is a read-through cache in front of ProfileStore
type ProfileCache interface {
	GetProfile(ctx context.Context, userID int64) (*domain.UserProfile, error)
	SetProfile(ctx context.Context, profile *domain.UserProfile) error
}

// JobQueue accepts background jobs
type JobQueue interface {
	Enqueue(ctx context.Context, job *domain.Job) error
}

// Notifier delivers alerts. Delivery is fire-and-forget.
type Notifier interface {
	Notify(n domain.Notification)
}

// ProfileLookup answers the opt-out and display questions the engine asks
type ProfileLookup interface {
	IsDisabled(ctx context.Context, userID int64) (bool, error)
	Username(ctx context.Context, userID int64) string
}

func newJob(jobType domain.JobType, now time.Time) *domain.Job {
	return &domain.Job{
		ID:         uuid.NewString(),
		Type:       jobType,
		EnqueuedAt: now,
	}
}

func newNotification(userID, fromUserID int64, t domain.NotificationType, contentID int64, payload map[string]any, autoRead bool, now time.Time) domain.Notification {
	return domain.Notification{
		ID:         uuid.NewString(),
		UserID:     userID,
		FromUserID: fromUserID,
		Type:       t,
		ContentID:  contentID,
		Payload:    payload,
		AutoRead:   autoRead,
		CreatedAt:  now,
	}
}
