package pet

import (
	"strings"
	"time"

	"github.com/userpets/internal/config"
	"github.com/userpets/internal/domain"
)

// Engine applies lazy decay and care actions to pets. It holds no pet state
// between calls and performs no I/O; callers persist the pet afterwards.
type Engine struct {
	cfg   config.StatsConfig
	clock func() time.Time
}

// NewEngine creates a stat engine. A nil clock means time.Now.
func NewEngine(cfg config.StatsConfig, clock func() time.Time) *Engine {
	if clock == nil {
		clock = time.Now
	}
	return &Engine{cfg: cfg, clock: clock}
}

// petStats is the working set of stats for one pet
type petStats struct {
	hunger     *Stat
	sleepiness *Stat
	happiness  *Stat
}

func (e *Engine) load(p *domain.Pet) petStats {
	return petStats{
		hunger:     NewStat(p.Hunger, e.cfg.Hunger),
		sleepiness: NewStat(p.Sleepiness, e.cfg.Sleepiness),
		happiness:  NewStat(p.Happiness, e.cfg.Happiness),
	}
}

func (s petStats) store(p *domain.Pet) {
	p.Hunger = s.hunger.Value()
	p.Sleepiness = s.sleepiness.Value()
	p.Happiness = s.happiness.Value()
}

// intervalMinutes is the decay granularity, never below one minute
func (e *Engine) intervalMinutes() int64 {
	return max(1, int64(e.cfg.UpdateInterval/time.Minute))
}

// UpdateStats applies the decay owed since the pet's last update. Time
// shorter than one update interval is left to accumulate. Reports whether
// the pet changed.
func (e *Engine) UpdateStats(p *domain.Pet) bool {
	now := e.clock()
	elapsedMinutes := int64(now.Sub(p.LastUpdate) / time.Minute)
	interval := e.intervalMinutes()
	if elapsedMinutes < interval {
		return false
	}
	intervals := int(elapsedMinutes / interval)

	stats := e.load(p)
	stats.hunger.Update(intervals)
	stats.sleepiness.Update(intervals)
	stats.happiness.Update(intervals)
	stats.store(p)

	p.State = stats.state()
	p.LastUpdate = now
	return true
}

// DetermineState recomputes the composite state label
func (e *Engine) DetermineState(p *domain.Pet) {
	p.State = e.load(p).state()
}

func (s petStats) state() string {
	var labels []string
	for _, st := range []*Stat{s.hunger, s.sleepiness, s.happiness} {
		if st.IsCritical() {
			labels = append(labels, st.CriticalLabel())
		}
	}
	if len(labels) == 0 {
		return domain.StateIdle
	}
	return strings.Join(labels, ", ")
}

// PerformAction catches up decay and then applies a care action. Unknown
// actions leave the stats untouched and return false.
func (e *Engine) PerformAction(p *domain.Pet, action domain.Action) bool {
	e.UpdateStats(p)

	stats := e.load(p)
	switch action {
	case domain.ActionFeed:
		Feed(stats.hunger, e.cfg.FeedAmount)
	case domain.ActionSleep:
		Sleep(stats.sleepiness, e.cfg.SleepAmount)
	case domain.ActionPlay:
		Play(stats.happiness, stats.hunger, e.cfg.PlayAmount, e.cfg.PlayHungerCost)
	case domain.ActionUnknown:
		return false
	default:
		return false
	}
	stats.store(p)
	p.State = stats.state()
	return true
}
