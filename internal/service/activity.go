package service

import (
	"context"
	"log/slog"

	"github.com/userpets/internal/config"
	"github.com/userpets/internal/domain"
	"github.com/userpets/internal/tutorial"
)

// ActivityService turns forum activity and user actions into experience and
// tutorial progress
type ActivityService struct {
	pets      *PetService
	tutorials *TutorialService
	profiles  *ProfileService
	cfg       config.ActivityConfig
	logger    *slog.Logger
}

// NewActivityService creates a new activity service
func NewActivityService(
	pets *PetService,
	tutorials *TutorialService,
	profiles *ProfileService,
	cfg config.ActivityConfig,
	logger *slog.Logger,
) *ActivityService {
	return &ActivityService{
		pets:      pets,
		tutorials: tutorials,
		profiles:  profiles,
		cfg:       cfg,
		logger:    logger,
	}
}

// PerformAction runs a care action and counts it towards the first-action
// tutorial
func (s *ActivityService) PerformAction(ctx context.Context, userID int64, action string) (*domain.PetStatus, error) {
	status, err := s.pets.PerformAction(ctx, userID, action)
	if err != nil {
		return nil, err
	}
	s.completeTutorial(ctx, userID, tutorial.KeyCompleteAction)
	return status, nil
}

// HandleEvent applies one forum activity event
func (s *ActivityService) HandleEvent(ctx context.Context, event domain.ActivityEvent) error {
	if event.UserID <= 0 {
		return nil
	}

	switch event.Type {
	case domain.ActivityPostCreated:
		// position 0 is the thread starter, rewarded as a thread
		if event.Position <= 0 {
			return nil
		}
		if _, err := s.pets.AwardExperience(ctx, event.UserID, s.cfg.ExperiencePerPost, false); err != nil {
			return err
		}
		s.completeTutorial(ctx, event.UserID, tutorial.KeyPostFirstMessage)
	case domain.ActivityThreadCreated:
		if _, err := s.pets.AwardExperience(ctx, event.UserID, s.cfg.ExperiencePerThread, false); err != nil {
			return err
		}
	case domain.ActivityReactionAdded:
		s.completeTutorial(ctx, event.UserID, tutorial.KeyReactToPost)
	case domain.ActivityAvatarUploaded:
		s.completeTutorial(ctx, event.UserID, tutorial.KeyUploadAvatar)
	default:
		s.logger.Warn("unknown activity type", "type", event.Type, "user_id", event.UserID)
	}
	return nil
}

// UpdateProfile stores a profile pushed by the host. A new avatar counts as
// an avatar upload.
func (s *ActivityService) UpdateProfile(ctx context.Context, profile *domain.UserProfile) error {
	avatarChanged, err := s.profiles.UpdateProfile(ctx, profile)
	if err != nil {
		return err
	}
	if avatarChanged {
		s.completeTutorial(ctx, profile.UserID, tutorial.KeyUploadAvatar)
	}
	return nil
}

// completeTutorial never fails the triggering activity
func (s *ActivityService) completeTutorial(ctx context.Context, userID int64, key string) {
	if _, err := s.tutorials.Complete(ctx, userID, key); err != nil {
		s.logger.Error("error completing tutorial", "user_id", userID, "tutorial_key", key, "error", err)
	}
}
