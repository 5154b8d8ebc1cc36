package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/userpets/internal/domain"
)

const unknownUsername = "Unknown"

// ProfileService reads and writes the user profile mirror with a cache in
// front of the database
type ProfileService struct {
	store  ProfileStore
	cache  ProfileCache
	clock  func() time.Time
	logger *slog.Logger
}

// NewProfileService creates a new profile service
func NewProfileService(store ProfileStore, cache ProfileCache, clock func() time.Time, logger *slog.Logger) *ProfileService {
	if clock == nil {
		clock = time.Now
	}
	return &ProfileService{
		store:  store,
		cache:  cache,
		clock:  clock,
		logger: logger,
	}
}

// GetProfile returns the profile for a user. Users the host never pushed
// get an empty profile that has pets enabled.
func (s *ProfileService) GetProfile(ctx context.Context, userID int64) (*domain.UserProfile, error) {
	profile, err := s.cache.GetProfile(ctx, userID)
	if err == nil {
		return profile, nil
	}
	if !errors.Is(err, domain.ErrProfileNotFound) {
		s.logger.Warn("failed to read profile from cache", "user_id", userID, "error", err)
	}

	profile, err = s.store.GetProfile(ctx, userID)
	if errors.Is(err, domain.ErrProfileNotFound) {
		return &domain.UserProfile{UserID: userID}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting profile: %w", err)
	}

	if err := s.cache.SetProfile(ctx, profile); err != nil {
		s.logger.Warn("failed to cache profile", "user_id", userID, "error", err)
	}
	return profile, nil
}

// IsDisabled reports whether the user opted out of pets
func (s *ProfileService) IsDisabled(ctx context.Context, userID int64) (bool, error) {
	if userID == 0 {
		return false, nil
	}
	profile, err := s.GetProfile(ctx, userID)
	if err != nil {
		return false, err
	}
	return profile.PetsDisabled, nil
}

// Username returns the display name used in notification payloads
func (s *ProfileService) Username(ctx context.Context, userID int64) string {
	profile, err := s.GetProfile(ctx, userID)
	if err != nil {
		s.logger.Warn("failed to resolve username", "user_id", userID, "error", err)
		return unknownUsername
	}
	if profile.Username == "" {
		return unknownUsername
	}
	return profile.Username
}

// UpdateProfile stores the host's view of a user and reports whether a new
// avatar was set
func (s *ProfileService) UpdateProfile(ctx context.Context, profile *domain.UserProfile) (avatarChanged bool, err error) {
	if profile.UserID <= 0 {
		return false, domain.ErrInvalidRequest
	}

	previous, err := s.store.GetProfile(ctx, profile.UserID)
	if err != nil && !errors.Is(err, domain.ErrProfileNotFound) {
		return false, fmt.Errorf("getting previous profile: %w", err)
	}

	profile.UpdatedAt = s.clock()
	if err := s.store.UpsertProfile(ctx, profile); err != nil {
		return false, fmt.Errorf("saving profile: %w", err)
	}

	if err := s.cache.SetProfile(ctx, profile); err != nil {
		s.logger.Warn("failed to cache profile", "user_id", profile.UserID, "error", err)
	}

	avatarChanged = profile.AvatarURL != "" && (previous == nil || previous.AvatarURL != profile.AvatarURL)
	return avatarChanged, nil
}
