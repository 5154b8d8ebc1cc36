package redis

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/userpets/internal/domain"
)

// GetProfile reads a cached profile
func (s *Store) GetProfile(ctx context.Context, userID int64) (*domain.UserProfile, error) {
	result, err := s.client.HGetAll(ctx, s.profileKey(userID)).Result()
	if err != nil {
		return nil, fmt.Errorf("getting cached profile: %w", err)
	}

	if len(result) == 0 {
		return nil, domain.ErrProfileNotFound
	}

	disabled, _ := strconv.ParseBool(result["pets_disabled"])
	updatedAt, _ := strconv.ParseInt(result["updated_at"], 10, 64)

	return &domain.UserProfile{
		UserID:       userID,
		Username:     result["username"],
		PetsDisabled: disabled,
		AvatarURL:    result["avatar_url"],
		UpdatedAt:    time.UnixMilli(updatedAt).UTC(),
	}, nil
}

// SetProfile caches a profile for the configured TTL
func (s *Store) SetProfile(ctx context.Context, profile *domain.UserProfile) error {
	key := s.profileKey(profile.UserID)

	pipe := s.client.TxPipeline()
	pipe.Del(ctx, key)
	pipe.HSet(ctx, key,
		"username", profile.Username,
		"pets_disabled", strconv.FormatBool(profile.PetsDisabled),
		"avatar_url", profile.AvatarURL,
		"updated_at", profile.UpdatedAt.UnixMilli(),
	)
	if s.profileTTL > 0 {
		pipe.Expire(ctx, key, s.profileTTL)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("caching profile: %w", err)
	}
	return nil
}
