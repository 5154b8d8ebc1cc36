package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/userpets/internal/domain"
)

func TestPetService_GetOrCreatePet_CreatesLazily(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	p, err := h.petService.GetOrCreatePet(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, int64(7), p.UserID)
	assert.Equal(t, 1, p.Level)
	assert.Equal(t, int64(0), p.Experience)
	assert.Equal(t, 100, p.Hunger)
	assert.Equal(t, domain.StateIdle, p.State)

	again, err := h.petService.GetOrCreatePet(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, p.PetID, again.PetID)
	assert.Len(t, h.pets.pets, 1)
}

func TestPetService_GetOrCreatePet_AppliesDecay(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	created := h.addPet(7, "alice")

	h.clock.Advance(30 * time.Minute)
	p, err := h.petService.GetOrCreatePet(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, 40, p.Hunger)
	assert.Equal(t, 70, p.Sleepiness)
	assert.Equal(t, 70, p.Happiness)

	stored := h.pets.get(t, created.PetID)
	assert.Equal(t, 40, stored.Hunger)
	assert.Equal(t, h.clock.Now(), stored.LastUpdate)
}

func TestPetService_GetOrCreatePet_NoWriteWithinInterval(t *testing.T) {
	h := newHarness(t)
	h.addPet(7, "alice")

	h.clock.Advance(20 * time.Second)
	_, err := h.petService.GetOrCreatePet(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, 0, h.pets.updates)
}

func TestPetService_GetOrCreatePet_InvalidUser(t *testing.T) {
	h := newHarness(t)
	_, err := h.petService.GetOrCreatePet(context.Background(), 0)
	assert.ErrorIs(t, err, domain.ErrInvalidRequest)
}

func TestPetService_PerformAction(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	created := h.addPet(7, "alice")
	hungry := h.pets.get(t, created.PetID)
	hungry.Hunger = 50
	h.pets.pets[created.PetID] = hungry

	status, err := h.petService.PerformAction(ctx, 7, "feed")
	require.NoError(t, err)
	assert.Equal(t, 70, status.Pet.Hunger)
	assert.Equal(t, int64(10), status.Pet.Experience)
	assert.Equal(t, h.clock.Now(), status.Pet.LastActionTime)
	assert.Equal(t, h.clock.Now().Add(time.Minute), status.NextActionAt)
	assert.Equal(t, int64(60), status.ActionCooldownSecond)

	stored := h.pets.get(t, created.PetID)
	assert.Equal(t, 70, stored.Hunger)
	assert.Equal(t, int64(10), stored.Experience)
}

func TestPetService_PerformAction_CheckOrder(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.petService.PerformAction(ctx, 7, "dance")
	assert.ErrorIs(t, err, domain.ErrPetNotFound, "missing pet is reported before anything else")

	h.addPet(7, "alice")
	_, err = h.petService.PerformAction(ctx, 7, "dance")
	assert.ErrorIs(t, err, domain.ErrInvalidAction)

	_, err = h.petService.PerformAction(ctx, 7, "play")
	require.NoError(t, err)

	h.clock.Advance(15 * time.Second)
	_, err = h.petService.PerformAction(ctx, 7, "dance")
	var cooldown *domain.CooldownError
	require.True(t, errors.As(err, &cooldown), "cooldown is checked before the action name")
	assert.Equal(t, int64(45), cooldown.RemainingSeconds())
	assert.ErrorIs(t, err, domain.ErrCooldownActive)
}

func TestPetService_PerformAction_CooldownElapses(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.addPet(7, "alice")

	_, err := h.petService.PerformAction(ctx, 7, "sleep")
	require.NoError(t, err)

	h.clock.Advance(time.Minute)
	status, err := h.petService.PerformAction(ctx, 7, "sleep")
	require.NoError(t, err)
	assert.Equal(t, int64(20), status.Pet.Experience)
}

func TestPetService_PerformAction_LevelUpNotifies(t *testing.T) {
	h := newHarness(t)
	created := h.addPet(7, "alice")
	p := h.pets.get(t, created.PetID)
	p.Experience = 280
	h.pets.pets[p.PetID] = p

	status, err := h.petService.PerformAction(context.Background(), 7, "feed")
	require.NoError(t, err)
	assert.Equal(t, 2, status.Pet.Level)

	sent := h.notifier.ofType(domain.NotificationLevelUp)
	require.Len(t, sent, 1)
	assert.Equal(t, int64(7), sent[0].UserID)
	assert.True(t, sent[0].AutoRead)
	assert.Equal(t, 1, sent[0].Payload["old_level"])
	assert.Equal(t, 2, sent[0].Payload["new_level"])
	assert.Equal(t, int64(10), sent[0].Payload["exp_amount"])
}

func TestPetService_PerformAction_OptedOutGainsNoExperience(t *testing.T) {
	h := newHarness(t)
	h.addPet(7, "alice")
	h.optOut(7)

	status, err := h.petService.PerformAction(context.Background(), 7, "feed")
	require.NoError(t, err)
	assert.Equal(t, int64(0), status.Pet.Experience)
	assert.Equal(t, h.clock.Now(), status.Pet.LastActionTime)
}

func TestPetService_PerformAction_RetriesOnConflict(t *testing.T) {
	h := newHarness(t)
	created := h.addPet(7, "alice")
	h.pets.conflicts = 2

	status, err := h.petService.PerformAction(context.Background(), 7, "feed")
	require.NoError(t, err)
	assert.Equal(t, int64(10), status.Pet.Experience)
	assert.Equal(t, int64(10), h.pets.get(t, created.PetID).Experience)
}

func TestPetService_PerformAction_GivesUpAfterConflicts(t *testing.T) {
	h := newHarness(t)
	h.addPet(7, "alice")
	h.pets.conflicts = maxPetWriteAttempts

	_, err := h.petService.PerformAction(context.Background(), 7, "feed")
	assert.ErrorIs(t, err, domain.ErrPetConflict)
}

func TestPetService_PerformAction_PersistenceFailure(t *testing.T) {
	h := newHarness(t)
	h.addPet(7, "alice")
	h.pets.updateErr = errors.New("connection reset")

	_, err := h.petService.PerformAction(context.Background(), 7, "feed")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "saving pet")
}

func TestPetService_AwardExperience(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	created := h.addPet(7, "alice")

	leveledUp, err := h.petService.AwardExperience(ctx, 7, 282, false)
	require.NoError(t, err)
	assert.False(t, leveledUp)
	assert.True(t, h.pets.get(t, created.PetID).LastActionTime.IsZero())

	leveledUp, err = h.petService.AwardExperience(ctx, 7, 1, true)
	require.NoError(t, err)
	assert.True(t, leveledUp)

	stored := h.pets.get(t, created.PetID)
	assert.Equal(t, 2, stored.Level)
	assert.Equal(t, int64(283), stored.Experience)
	assert.Equal(t, h.clock.Now(), stored.LastActionTime)
	assert.Len(t, h.notifier.ofType(domain.NotificationLevelUp), 1)
}

func TestPetService_AwardExperience_Ignored(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	leveledUp, err := h.petService.AwardExperience(ctx, 7, 500, false)
	require.NoError(t, err, "a user without a pet is not an error")
	assert.False(t, leveledUp)

	created := h.addPet(7, "alice")
	for _, amount := range []int64{0, -10} {
		_, err = h.petService.AwardExperience(ctx, 7, amount, false)
		require.NoError(t, err)
	}

	h.optOut(7)
	_, err = h.petService.AwardExperience(ctx, 7, 500, false)
	require.NoError(t, err)

	assert.Equal(t, int64(0), h.pets.get(t, created.PetID).Experience)
	assert.Empty(t, h.notifier.sent)
}
