package duel

import (
	"math/rand/v2"
	"sync"
)

// DefaultKey is the algorithm used when a configured key is unknown
const DefaultKey = "default"

// Info describes a registered algorithm
type Info struct {
	Key   string `json:"key"`
	Label string `json:"label"`
}

// Registry is the lookup of duel algorithms by configuration key. It is
// built at startup and passed to the components that resolve duels.
type Registry struct {
	mu         sync.RWMutex
	algorithms map[string]Algorithm
	order      []string
}

// NewRegistry creates a registry holding the built-in algorithms. A nil
// rnd uses math/rand/v2.
func NewRegistry(rnd RandFunc) *Registry {
	if rnd == nil {
		rnd = rand.Float64
	}
	r := &Registry{algorithms: make(map[string]Algorithm)}
	r.Register(DefaultAlgorithm{rnd: rnd})
	r.Register(CareAlgorithm{rnd: rnd})
	r.Register(ExperienceAlgorithm{rnd: rnd})
	r.Register(WeightedAlgorithm{rnd: rnd})
	return r
}

// Register adds an algorithm, replacing any with the same key
func (r *Registry) Register(a Algorithm) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.algorithms[a.Key()]; !exists {
		r.order = append(r.order, a.Key())
	}
	r.algorithms[a.Key()] = a
}

// Resolve returns the algorithm for key, falling back to the default
func (r *Registry) Resolve(key string) Algorithm {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if a, ok := r.algorithms[key]; ok {
		return a
	}
	return r.algorithms[DefaultKey]
}

// All lists registered algorithms in registration order
func (r *Registry) All() []Info {
	r.mu.RLock()
	defer r.mu.RUnlock()

	infos := make([]Info, 0, len(r.order))
	for _, key := range r.order {
		a := r.algorithms[key]
		infos = append(infos, Info{Key: a.Key(), Label: a.Label()})
	}
	return infos
}
