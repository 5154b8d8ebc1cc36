package pet

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/userpets/internal/config"
	"github.com/userpets/internal/domain"
)

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func newTestEngine(t *testing.T) (*Engine, *fakeClock) {
	t.Helper()
	clock := &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	return NewEngine(config.DefaultConfig().Stats, clock.Now), clock
}

func TestEngine_UpdateStats_GatedByInterval(t *testing.T) {
	engine, clock := newTestEngine(t)
	p := domain.NewPet(1, clock.Now())

	clock.Advance(59 * time.Second)
	assert.False(t, engine.UpdateStats(p))
	assert.Equal(t, 100, p.Hunger)

	clock.Advance(time.Second)
	require.True(t, engine.UpdateStats(p))
	assert.Equal(t, 98, p.Hunger)
	assert.Equal(t, 99, p.Sleepiness)
	assert.Equal(t, 99, p.Happiness)
	assert.Equal(t, clock.Now(), p.LastUpdate)
}

func TestEngine_UpdateStats_BatchesIntervals(t *testing.T) {
	cfg := config.DefaultConfig().Stats
	cfg.UpdateInterval = 5 * time.Minute
	clock := &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	engine := NewEngine(cfg, clock.Now)
	p := domain.NewPet(1, clock.Now())

	clock.Advance(4 * time.Minute)
	assert.False(t, engine.UpdateStats(p))

	clock.Advance(10 * time.Minute)
	require.True(t, engine.UpdateStats(p))
	// 14 minutes = 2 whole intervals
	assert.Equal(t, 96, p.Hunger)
	assert.Equal(t, 98, p.Sleepiness)
}

func TestEngine_UpdateStats_FloorsAtZero(t *testing.T) {
	engine, clock := newTestEngine(t)
	p := domain.NewPet(1, clock.Now())

	clock.Advance(72 * time.Hour)
	require.True(t, engine.UpdateStats(p))
	assert.Equal(t, 0, p.Hunger)
	assert.Equal(t, 0, p.Sleepiness)
	assert.Equal(t, 0, p.Happiness)
	assert.Equal(t, "Hungry, Tired, Unhappy", p.State)
}

func TestEngine_DetermineState(t *testing.T) {
	engine, clock := newTestEngine(t)
	p := domain.NewPet(1, clock.Now())

	engine.DetermineState(p)
	assert.Equal(t, domain.StateIdle, p.State)

	p.Sleepiness = 20
	engine.DetermineState(p)
	assert.Equal(t, "Tired", p.State)

	p.Hunger = 3
	engine.DetermineState(p)
	assert.Equal(t, "Hungry, Tired", p.State)
}

func TestEngine_PerformAction(t *testing.T) {
	engine, clock := newTestEngine(t)
	p := domain.NewPet(1, clock.Now())
	p.Hunger, p.Sleepiness, p.Happiness = 10, 10, 10

	require.True(t, engine.PerformAction(p, domain.ActionFeed))
	assert.Equal(t, 30, p.Hunger)
	assert.Equal(t, "Tired, Unhappy", p.State)

	require.True(t, engine.PerformAction(p, domain.ActionSleep))
	assert.Equal(t, 30, p.Sleepiness)

	require.True(t, engine.PerformAction(p, domain.ActionPlay))
	assert.Equal(t, 30, p.Happiness)
	assert.Equal(t, 25, p.Hunger)
	assert.Equal(t, domain.StateIdle, p.State)
}

func TestEngine_PerformAction_DecayBeforeAction(t *testing.T) {
	engine, clock := newTestEngine(t)
	p := domain.NewPet(1, clock.Now())
	p.Hunger = 50

	clock.Advance(10 * time.Minute)
	require.True(t, engine.PerformAction(p, domain.ActionFeed))
	assert.Equal(t, 50-20+20, p.Hunger)
	assert.Equal(t, clock.Now(), p.LastUpdate)
}

func TestEngine_PerformAction_TwiceDoesNotDoubleDecay(t *testing.T) {
	engine, clock := newTestEngine(t)
	p := domain.NewPet(1, clock.Now())
	p.Hunger = 40

	clock.Advance(3 * time.Minute)
	require.True(t, engine.PerformAction(p, domain.ActionFeed))
	assert.Equal(t, 40-6+20, p.Hunger)

	require.True(t, engine.PerformAction(p, domain.ActionFeed))
	assert.Equal(t, 40-6+20+20, p.Hunger)
}

func TestEngine_PerformAction_UnknownIsNoop(t *testing.T) {
	engine, clock := newTestEngine(t)
	p := domain.NewPet(1, clock.Now())
	p.Hunger = 40

	assert.False(t, engine.PerformAction(p, domain.ActionUnknown))
	assert.False(t, engine.PerformAction(p, domain.Action(42)))
	assert.Equal(t, 40, p.Hunger)
}
