package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/userpets/internal/domain"
	"github.com/userpets/internal/tutorial"
)

// TutorialService records one-time tutorial completions and pays their
// rewards through background jobs
type TutorialService struct {
	store      TutorialStore
	registry   *tutorial.Registry
	petService *PetService
	profiles   ProfileLookup
	notifier   Notifier
	jobs       JobQueue
	clock      func() time.Time
	logger     *slog.Logger
}

// NewTutorialService creates a new tutorial service
func NewTutorialService(
	store TutorialStore,
	registry *tutorial.Registry,
	petService *PetService,
	profiles ProfileLookup,
	notifier Notifier,
	jobs JobQueue,
	clock func() time.Time,
	logger *slog.Logger,
) *TutorialService {
	if clock == nil {
		clock = time.Now
	}
	return &TutorialService{
		store:      store,
		registry:   registry,
		petService: petService,
		profiles:   profiles,
		notifier:   notifier,
		jobs:       jobs,
		clock:      clock,
		logger:     logger,
	}
}

// IsCompleted reports whether the user finished a tutorial
func (s *TutorialService) IsCompleted(ctx context.Context, userID int64, key string) (bool, error) {
	if _, err := s.registry.Get(key); err != nil {
		return false, err
	}
	return s.store.IsTutorialCompleted(ctx, userID, key)
}

// Complete marks a tutorial as done. Completing it again is a no-op; the
// first completion queues the reward. Returns whether this call completed it.
func (s *TutorialService) Complete(ctx context.Context, userID int64, key string) (bool, error) {
	t, err := s.registry.Get(key)
	if err != nil {
		return false, err
	}
	if !s.registry.Enabled() || userID <= 0 {
		return false, nil
	}

	now := s.clock()
	completed, err := s.store.CompleteTutorial(ctx, userID, key, now)
	if err != nil {
		return false, fmt.Errorf("completing tutorial: %w", err)
	}
	if !completed {
		return false, nil
	}

	if t.RewardExp > 0 {
		job := newJob(domain.JobTypeTutorialReward, now)
		job.UserID = userID
		job.ExpAmount = t.RewardExp
		job.TutorialKey = key
		if err := s.jobs.Enqueue(ctx, job); err != nil {
			s.logger.Error("failed to queue tutorial reward", "user_id", userID, "tutorial_key", key, "error", err)
		} else {
			s.logger.Info("queued tutorial reward", "user_id", userID, "exp_amount", t.RewardExp, "tutorial_key", key)
		}
	}
	return true, nil
}

// List returns the catalog with the user's completion state
func (s *TutorialService) List(ctx context.Context, userID int64) ([]domain.TutorialProgress, error) {
	completions, err := s.store.ListTutorialCompletions(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("listing tutorial completions: %w", err)
	}

	done := make(map[string]bool, len(completions))
	for _, c := range completions {
		done[c.TutorialKey] = c.Completed
	}

	all := s.registry.All()
	progress := make([]domain.TutorialProgress, 0, len(all))
	for _, t := range all {
		progress = append(progress, domain.TutorialProgress{
			Key:       t.Key,
			Title:     t.Title,
			RewardExp: t.RewardExp,
			Completed: done[t.Key],
		})
	}
	return progress, nil
}

// HandleReward is the tutorial_reward job handler
func (s *TutorialService) HandleReward(ctx context.Context, job *domain.Job) error {
	if job.UserID == 0 || job.ExpAmount <= 0 {
		return nil
	}

	if _, err := s.petService.AwardExperience(ctx, job.UserID, job.ExpAmount, false); err != nil {
		return err
	}

	title := "Unknown Tutorial"
	if t, err := s.registry.Get(job.TutorialKey); err == nil {
		title = t.Title
	}

	disabled, err := s.profiles.IsDisabled(ctx, job.UserID)
	if err != nil {
		return fmt.Errorf("checking opt-out: %w", err)
	}
	if !disabled {
		var petID int64
		p, err := s.petService.GetPetByUser(ctx, job.UserID)
		if err != nil && !errors.Is(err, domain.ErrPetNotFound) {
			return fmt.Errorf("loading pet: %w", err)
		}
		if p != nil {
			petID = p.PetID
		}
		s.notifier.Notify(newNotification(job.UserID, job.UserID, domain.NotificationTutorial, petID, map[string]any{
			"exp_amount":     job.ExpAmount,
			"tutorial_key":   job.TutorialKey,
			"tutorial_title": title,
		}, true, s.clock()))
	}

	s.logger.Info("awarded tutorial reward",
		"user_id", job.UserID,
		"exp_amount", job.ExpAmount,
		"tutorial_key", job.TutorialKey,
		"tutorial_title", title,
	)
	return nil
}
