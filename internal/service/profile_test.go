package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/userpets/internal/domain"
)

func TestProfileService_GetProfile_ReadsThroughCache(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.profiles.profiles[3] = domain.UserProfile{UserID: 3, Username: "carol"}

	p, err := h.profileService.GetProfile(ctx, 3)
	require.NoError(t, err)
	assert.Equal(t, "carol", p.Username)
	assert.Equal(t, 1, h.profiles.reads)

	_, err = h.profileService.GetProfile(ctx, 3)
	require.NoError(t, err)
	assert.Equal(t, 1, h.profiles.reads, "second read is served from cache")
}

func TestProfileService_UnknownUser(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	disabled, err := h.profileService.IsDisabled(ctx, 99)
	require.NoError(t, err)
	assert.False(t, disabled)
	assert.Equal(t, unknownUsername, h.profileService.Username(ctx, 99))
}

func TestProfileService_UpdateProfile(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	changed, err := h.profileService.UpdateProfile(ctx, &domain.UserProfile{UserID: 3, Username: "carol"})
	require.NoError(t, err)
	assert.False(t, changed)

	changed, err = h.profileService.UpdateProfile(ctx, &domain.UserProfile{UserID: 3, Username: "carol", AvatarURL: "a.png"})
	require.NoError(t, err)
	assert.True(t, changed)

	changed, err = h.profileService.UpdateProfile(ctx, &domain.UserProfile{UserID: 3, Username: "carol", AvatarURL: "a.png", PetsDisabled: true})
	require.NoError(t, err)
	assert.False(t, changed)

	disabled, err := h.profileService.IsDisabled(ctx, 3)
	require.NoError(t, err)
	assert.True(t, disabled, "the cache is refreshed on update")

	_, err = h.profileService.UpdateProfile(ctx, &domain.UserProfile{})
	assert.ErrorIs(t, err, domain.ErrInvalidRequest)
}
