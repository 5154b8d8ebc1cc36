package pet

import (
	"github.com/userpets/internal/config"
	"github.com/userpets/internal/domain"
)

// Stat is a clamped gauge with linear decay. Hunger, sleepiness and
// happiness differ only in configuration and in the actions that use them.
type Stat struct {
	value             int
	decayRate         int
	criticalThreshold int
	criticalLabel     string
}

// NewStat creates a stat seeded with a persisted value
func NewStat(value int, cfg config.StatConfig) *Stat {
	s := &Stat{
		decayRate:         max(0, cfg.DecayRate),
		criticalThreshold: cfg.CriticalThreshold,
		criticalLabel:     cfg.CriticalLabel,
	}
	s.SetValue(value)
	return s
}

// Value returns the current value
func (s *Stat) Value() int {
	return s.value
}

// SetValue stores v clamped to [StatMin, StatMax]
func (s *Stat) SetValue(v int) {
	s.value = min(domain.StatMax, max(domain.StatMin, v))
}

// Increase adds amount then clamps
func (s *Stat) Increase(amount int) {
	s.SetValue(s.value + amount)
}

// Decrease subtracts amount then clamps
func (s *Stat) Decrease(amount int) {
	s.SetValue(s.value - amount)
}

// Update applies decay for the given number of elapsed intervals
func (s *Stat) Update(intervals int) {
	if intervals <= 0 {
		return
	}
	s.Decrease(s.decayRate * intervals)
}

// IsCritical reports whether the value is at or below the threshold
func (s *Stat) IsCritical() bool {
	return s.value <= s.criticalThreshold
}

// CriticalLabel is the state label contributed while critical
func (s *Stat) CriticalLabel() string {
	return s.criticalLabel
}

// Feed raises hunger.
func Feed(hunger *Stat, amount int) {
	hunger.Increase(amount)
}

// Sleep raises sleepiness.
func Sleep(sleepiness *Stat, amount int) {
	sleepiness.Increase(amount)
}

// Play raises happiness and costs hunger.
func Play(happiness, hunger *Stat, amount, hungerCost int) {
	happiness.Increase(amount)
	hunger.Decrease(hungerCost)
}
