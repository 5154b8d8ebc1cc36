package tutorial

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/userpets/internal/config"
	"github.com/userpets/internal/domain"
)

func TestNewRegistry(t *testing.T) {
	r, err := NewRegistry(config.TutorialConfig{
		Enabled: true,
		Rewards: map[string]int64{KeyCompleteAction: 30, KeyReactToPost: -4},
	})
	require.NoError(t, err)
	assert.True(t, r.Enabled())

	all := r.All()
	require.Len(t, all, 4)
	assert.Equal(t, KeyCompleteAction, all[0].Key)
	assert.Equal(t, int64(30), all[0].RewardExp)

	react, err := r.Get(KeyReactToPost)
	require.NoError(t, err)
	assert.Equal(t, int64(0), react.RewardExp, "negative rewards are floored")

	avatar, err := r.Get(KeyUploadAvatar)
	require.NoError(t, err)
	assert.Equal(t, int64(0), avatar.RewardExp)
}

func TestNewRegistry_UnknownRewardKey(t *testing.T) {
	_, err := NewRegistry(config.TutorialConfig{Rewards: map[string]int64{"fly_to_moon": 5}})
	assert.ErrorIs(t, err, domain.ErrTutorialNotFound)
}

func TestRegistry_Get_Unknown(t *testing.T) {
	r, err := NewRegistry(config.DefaultConfig().Tutorials)
	require.NoError(t, err)

	_, err = r.Get("nope")
	assert.ErrorIs(t, err, domain.ErrTutorialNotFound)
}

func TestRegistry_AllIsACopy(t *testing.T) {
	r, err := NewRegistry(config.DefaultConfig().Tutorials)
	require.NoError(t, err)

	all := r.All()
	all[0].RewardExp = 9999

	got, err := r.Get(all[0].Key)
	require.NoError(t, err)
	assert.Equal(t, int64(25), got.RewardExp)
	assert.Equal(t, int64(25), r.All()[0].RewardExp)
}
