package duel

import (
	"math"

	"github.com/userpets/internal/domain"
)

// Snapshot is the flattened view of a pet an algorithm scores
type Snapshot struct {
	PetID      int64
	Level      int
	Experience int64
	Happiness  int
	Hunger     int
	Sleepiness int
}

// SnapshotOf captures a pet's current stats
func SnapshotOf(p *domain.Pet) Snapshot {
	return Snapshot{
		PetID:      p.PetID,
		Level:      p.Level,
		Experience: p.Experience,
		Happiness:  p.Happiness,
		Hunger:     p.Hunger,
		Sleepiness: p.Sleepiness,
	}
}

// care is the shared happiness-minus-needs term
func (s Snapshot) care() float64 {
	return float64(s.Happiness - s.Hunger - s.Sleepiness)
}

// Algorithm picks a duel winner. Implementations must be pure apart from
// their random source and return one of the two snapshots unchanged.
type Algorithm interface {
	Key() string
	Label() string
	CalculateWinner(a, b Snapshot) Snapshot
}

// RandFunc returns a uniform draw in [0,1)
type RandFunc func() float64

// pick returns a when the draw falls below chanceA
func pick(a, b Snapshot, chanceA float64, rnd RandFunc) Snapshot {
	if rnd() < chanceA {
		return a
	}
	return b
}

// ratioChance turns two scores into A's win probability, scoreA/(scoreA+scoreB).
// A zero or non-finite sum counts as an even match. Scores of mixed sign push
// the ratio outside [0,1], so it is clamped.
func ratioChance(scoreA, scoreB float64) float64 {
	sum := scoreA + scoreB
	if sum == 0 || math.IsNaN(sum) || math.IsInf(sum, 0) {
		return 0.5
	}
	return math.Min(1, math.Max(0, scoreA/sum))
}

// DefaultAlgorithm is a fair coin flip
type DefaultAlgorithm struct {
	rnd RandFunc
}

func (DefaultAlgorithm) Key() string   { return "default" }
func (DefaultAlgorithm) Label() string { return "Coin flip" }

func (d DefaultAlgorithm) CalculateWinner(a, b Snapshot) Snapshot {
	return pick(a, b, 0.5, d.rnd)
}

// CareAlgorithm favours the better cared-for pet, never beyond 5%/95%
type CareAlgorithm struct {
	rnd RandFunc
}

const (
	careMinChance = 0.05
	careMaxChance = 0.95
)

func (CareAlgorithm) Key() string   { return "care" }
func (CareAlgorithm) Label() string { return "Care based" }

// WinChance is A's probability of winning against b
func (CareAlgorithm) WinChance(a, b Snapshot) float64 {
	modA := a.care() / 200
	modB := b.care() / 200
	return math.Min(careMaxChance, math.Max(careMinChance, 0.5+modA-modB))
}

func (c CareAlgorithm) CalculateWinner(a, b Snapshot) Snapshot {
	return pick(a, b, c.WinChance(a, b), c.rnd)
}

// ExperienceAlgorithm weighs level, log experience and care
type ExperienceAlgorithm struct {
	rnd RandFunc
}

func (ExperienceAlgorithm) Key() string   { return "exp" }
func (ExperienceAlgorithm) Label() string { return "Experience based" }

func experienceScore(s Snapshot) float64 {
	return float64(s.Level) + math.Log(float64(s.Experience)+1) + s.care()/100
}

// WinChance is A's probability of winning against b
func (ExperienceAlgorithm) WinChance(a, b Snapshot) float64 {
	return ratioChance(experienceScore(a), experienceScore(b))
}

func (e ExperienceAlgorithm) CalculateWinner(a, b Snapshot) Snapshot {
	return pick(a, b, e.WinChance(a, b), e.rnd)
}

// WeightedAlgorithm scales level by care
type WeightedAlgorithm struct {
	rnd RandFunc
}

func (WeightedAlgorithm) Key() string   { return "weight" }
func (WeightedAlgorithm) Label() string { return "Weighted" }

func weightedScore(s Snapshot) float64 {
	return float64(s.Level) * (1 + s.care()/100)
}

// WinChance is A's probability of winning against b
func (WeightedAlgorithm) WinChance(a, b Snapshot) float64 {
	return ratioChance(weightedScore(a), weightedScore(b))
}

func (w WeightedAlgorithm) CalculateWinner(a, b Snapshot) Snapshot {
	return pick(a, b, w.WinChance(a, b), w.rnd)
}
