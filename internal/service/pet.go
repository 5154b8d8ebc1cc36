package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/userpets/internal/config"
	"github.com/userpets/internal/domain"
	"github.com/userpets/internal/pet"
)

// maxPetWriteAttempts bounds reload-and-retry after a version conflict
const maxPetWriteAttempts = 3

// errSkipSave tells modify that the mutation left nothing to persist
var errSkipSave = errors.New("nothing to save")

// PetService owns every write to the pet row
type PetService struct {
	pets     PetStore
	profiles ProfileLookup
	notifier Notifier
	engine   *pet.Engine
	leveling *pet.Leveling
	cooldown time.Duration
	clock    func() time.Time
	logger   *slog.Logger
}

// NewPetService creates a new pet service
func NewPetService(
	pets PetStore,
	profiles ProfileLookup,
	notifier Notifier,
	engine *pet.Engine,
	leveling *pet.Leveling,
	cfg config.ActionsConfig,
	clock func() time.Time,
	logger *slog.Logger,
) *PetService {
	if clock == nil {
		clock = time.Now
	}
	return &PetService{
		pets:     pets,
		profiles: profiles,
		notifier: notifier,
		engine:   engine,
		leveling: leveling,
		cooldown: cfg.Cooldown,
		clock:    clock,
		logger:   logger,
	}
}

type petLoader func(ctx context.Context) (*domain.Pet, error)

func (s *PetService) byUser(userID int64) petLoader {
	return func(ctx context.Context) (*domain.Pet, error) {
		return s.pets.GetPetByUser(ctx, userID)
	}
}

func (s *PetService) byID(petID int64) petLoader {
	return func(ctx context.Context) (*domain.Pet, error) {
		return s.pets.GetPet(ctx, petID)
	}
}

// modify loads a pet, applies fn and saves it, reloading and reapplying fn
// when another writer got there first. initial, when set, is used for the
// first attempt instead of loading.
func (s *PetService) modify(ctx context.Context, initial *domain.Pet, load petLoader, fn func(p *domain.Pet) error) (*domain.Pet, error) {
	var err error
	for attempt := 1; attempt <= maxPetWriteAttempts; attempt++ {
		p := initial
		initial = nil
		if p == nil {
			p, err = load(ctx)
			if err != nil {
				return nil, err
			}
		}

		if err := fn(p); err != nil {
			if errors.Is(err, errSkipSave) {
				return p, nil
			}
			return nil, err
		}

		err = s.pets.UpdatePet(ctx, p)
		if err == nil {
			return p, nil
		}
		if !errors.Is(err, domain.ErrPetConflict) {
			return nil, fmt.Errorf("saving pet: %w", err)
		}
		s.logger.Debug("pet write conflict, retrying", "pet_id", p.PetID, "attempt", attempt)
	}
	return nil, err
}

// ModifyPet applies fn to the pet with the given id and persists it
func (s *PetService) ModifyPet(ctx context.Context, petID int64, fn func(p *domain.Pet) error) (*domain.Pet, error) {
	return s.modify(ctx, nil, s.byID(petID), fn)
}

// GetPetByUser returns a user's pet without creating it or applying decay
func (s *PetService) GetPetByUser(ctx context.Context, userID int64) (*domain.Pet, error) {
	return s.pets.GetPetByUser(ctx, userID)
}

// GetOrCreatePet returns the user's pet, hatching one on first access and
// catching up on decay
func (s *PetService) GetOrCreatePet(ctx context.Context, userID int64) (*domain.Pet, error) {
	if userID <= 0 {
		return nil, domain.ErrInvalidRequest
	}

	p, err := s.pets.GetPetByUser(ctx, userID)
	if errors.Is(err, domain.ErrPetNotFound) {
		p, err = s.pets.CreatePet(ctx, domain.NewPet(userID, s.clock()))
		if err != nil {
			return nil, fmt.Errorf("creating pet: %w", err)
		}
		s.logger.Info("pet created", "user_id", userID, "pet_id", p.PetID)
	} else if err != nil {
		return nil, fmt.Errorf("getting pet: %w", err)
	}

	return s.modify(ctx, p, s.byUser(userID), func(p *domain.Pet) error {
		if !s.engine.UpdateStats(p) {
			return errSkipSave
		}
		return nil
	})
}

// actionCooldownRemaining is the time left before the pet may act again
func (s *PetService) actionCooldownRemaining(p *domain.Pet, now time.Time) time.Duration {
	if p.LastActionTime.IsZero() {
		return 0
	}
	return s.cooldown - now.Sub(p.LastActionTime)
}

// PerformAction runs a user care action on the user's pet. Checks run in
// order: pet exists, cooldown, action name.
func (s *PetService) PerformAction(ctx context.Context, userID int64, actionName string) (*domain.PetStatus, error) {
	disabled, err := s.profiles.IsDisabled(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("checking opt-out: %w", err)
	}

	var (
		leveledUp bool
		oldLevel  int
		gained    int64
	)
	p, err := s.modify(ctx, nil, s.byUser(userID), func(p *domain.Pet) error {
		now := s.clock()
		if remaining := s.actionCooldownRemaining(p, now); remaining > 0 {
			return &domain.CooldownError{Remaining: remaining}
		}

		action, err := domain.ParseAction(actionName)
		if err != nil {
			return err
		}

		s.engine.PerformAction(p, action)

		leveledUp, oldLevel, gained = false, p.Level, 0
		if !disabled {
			gained = s.leveling.ExperienceForAction(action)
			leveledUp, oldLevel = s.leveling.AddExperience(p, gained)
		}
		p.LastActionTime = now
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Debug("pet action performed", "user_id", userID, "pet_id", p.PetID, "action", actionName)
	if leveledUp {
		s.notifyLevelUp(p, oldLevel, gained)
	}
	return s.Status(p), nil
}

// AwardExperience grants experience to a user's pet. Opted-out users,
// users without a pet and non-positive amounts are ignored. touchActionTime
// also restarts the action cooldown.
func (s *PetService) AwardExperience(ctx context.Context, userID, amount int64, touchActionTime bool) (bool, error) {
	if amount <= 0 {
		return false, nil
	}

	disabled, err := s.profiles.IsDisabled(ctx, userID)
	if err != nil {
		return false, fmt.Errorf("checking opt-out: %w", err)
	}
	if disabled {
		return false, nil
	}

	var (
		leveledUp bool
		oldLevel  int
	)
	p, err := s.modify(ctx, nil, s.byUser(userID), func(p *domain.Pet) error {
		leveledUp, oldLevel = s.leveling.AddExperience(p, amount)
		if touchActionTime {
			p.LastActionTime = s.clock()
		}
		return nil
	})
	if errors.Is(err, domain.ErrPetNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("awarding experience: %w", err)
	}

	if leveledUp {
		s.notifyLevelUp(p, oldLevel, amount)
	}
	return leveledUp, nil
}

func (s *PetService) notifyLevelUp(p *domain.Pet, oldLevel int, amount int64) {
	s.logger.Info("pet leveled up", "user_id", p.UserID, "pet_id", p.PetID, "old_level", oldLevel, "new_level", p.Level)
	s.notifier.Notify(newNotification(p.UserID, p.UserID, domain.NotificationLevelUp, p.PetID, map[string]any{
		"old_level":  oldLevel,
		"new_level":  p.Level,
		"exp_amount": amount,
	}, true, s.clock()))
}

// Status builds the caller view of a pet
func (s *PetService) Status(p *domain.Pet) *domain.PetStatus {
	now := s.clock()
	status := &domain.PetStatus{
		Pet:              p,
		LevelProgress:    s.leveling.LevelProgressPercentage(p),
		ExperienceToNext: s.leveling.ExperienceNeededToLevelUp(p),
		NextActionAt:     now,
		ServerTime:       now,
	}
	if remaining := s.actionCooldownRemaining(p, now); remaining > 0 {
		status.NextActionAt = p.LastActionTime.Add(s.cooldown)
		status.ActionCooldownSecond = (&domain.CooldownError{Remaining: remaining}).RemainingSeconds()
	}
	return status
}
