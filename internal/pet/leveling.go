package pet

import (
	"math"

	"github.com/userpets/internal/config"
	"github.com/userpets/internal/domain"
)

// Leveling maps experience to levels on a polynomial curve:
// required(level) = ceil(baseCoefficient * level^polynomialPower), level 1 = 0.
type Leveling struct {
	cfg config.LevelingConfig
}

// NewLeveling creates a leveling engine
func NewLeveling(cfg config.LevelingConfig) *Leveling {
	return &Leveling{cfg: cfg}
}

// ExperienceRequiredForLevel returns the total experience needed to reach level
func (l *Leveling) ExperienceRequiredForLevel(level int) int64 {
	if level <= 1 {
		return 0
	}
	return int64(math.Ceil(l.cfg.BaseCoefficient * math.Pow(float64(level), l.cfg.PolynomialPower)))
}

// CalculateLevelFromExperience returns the largest level whose threshold is
// at most exp. The scan stops at MaxLevel.
func (l *Leveling) CalculateLevelFromExperience(exp int64) int {
	level := 1
	for (l.cfg.MaxLevel <= 0 || level < l.cfg.MaxLevel) && l.ExperienceRequiredForLevel(level+1) <= exp {
		level++
	}
	return level
}

// AddExperience adds amount to the pet and raises its level when a threshold
// is crossed. Non-positive amounts are ignored.
func (l *Leveling) AddExperience(p *domain.Pet, amount int64) (leveledUp bool, oldLevel int) {
	oldLevel = p.Level
	if amount <= 0 {
		return false, oldLevel
	}
	p.Experience += amount

	newLevel := l.CalculateLevelFromExperience(p.Experience)
	if newLevel > oldLevel {
		p.Level = newLevel
		return true, oldLevel
	}
	return false, oldLevel
}

// atCap reports whether level is the highest level CalculateLevelFromExperience
// can return
func (l *Leveling) atCap(level int) bool {
	return l.cfg.MaxLevel > 0 && level >= l.cfg.MaxLevel
}

// ExperienceNeededToLevelUp returns the experience left until the next level,
// or 0 at the level cap
func (l *Leveling) ExperienceNeededToLevelUp(p *domain.Pet) int64 {
	if l.atCap(p.Level) {
		return 0
	}
	return max(0, l.ExperienceRequiredForLevel(p.Level+1)-p.Experience)
}

// LevelProgressPercentage returns progress towards the next level in [0,100].
// A capped pet is at 100.
func (l *Leveling) LevelProgressPercentage(p *domain.Pet) float64 {
	if l.atCap(p.Level) {
		return 100
	}
	current := l.ExperienceRequiredForLevel(p.Level)
	next := l.ExperienceRequiredForLevel(p.Level + 1)

	diff := next - current
	if diff <= 0 {
		return 100
	}
	progress := float64(p.Experience-current) / float64(diff) * 100
	return math.Min(100, math.Max(0, progress))
}

// ExperienceForAction returns the configured reward for a care action
func (l *Leveling) ExperienceForAction(action domain.Action) int64 {
	switch action {
	case domain.ActionFeed:
		return l.cfg.ExperiencePerFeed
	case domain.ActionSleep:
		return l.cfg.ExperiencePerSleep
	case domain.ActionPlay:
		return l.cfg.ExperiencePerPlay
	default:
		return l.cfg.ExperienceForDefault
	}
}
