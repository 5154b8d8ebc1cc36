package tutorial

import (
	"fmt"

	"github.com/userpets/internal/config"
	"github.com/userpets/internal/domain"
)

// Tutorial keys known to the engine
const (
	KeyCompleteAction   = "complete_action"
	KeyUploadAvatar     = "upload_pfp"
	KeyPostFirstMessage = "post_first_message"
	KeyReactToPost      = "react_to_post"
)

// Tutorial is one catalog entry
type Tutorial struct {
	Key       string
	Title     string
	RewardExp int64
}

var catalog = []Tutorial{
	{Key: KeyCompleteAction, Title: "Complete your first pet action"},
	{Key: KeyUploadAvatar, Title: "Upload a profile picture"},
	{Key: KeyPostFirstMessage, Title: "Post your first message"},
	{Key: KeyReactToPost, Title: "React to a post"},
}

// Registry is the read-only tutorial catalog with configured rewards.
// It never changes after NewRegistry returns.
type Registry struct {
	enabled   bool
	tutorials []Tutorial
	byKey     map[string]Tutorial
}

// NewRegistry builds the catalog. Rewards for keys outside the catalog are
// rejected so typos in configuration surface at startup.
func NewRegistry(cfg config.TutorialConfig) (*Registry, error) {
	r := &Registry{
		enabled: cfg.Enabled,
		byKey:   make(map[string]Tutorial, len(catalog)),
	}
	for _, t := range catalog {
		t.RewardExp = max(0, cfg.Rewards[t.Key])
		r.tutorials = append(r.tutorials, t)
		r.byKey[t.Key] = t
	}
	for key := range cfg.Rewards {
		if _, ok := r.byKey[key]; !ok {
			return nil, fmt.Errorf("tutorial reward for %q: %w", key, domain.ErrTutorialNotFound)
		}
	}
	return r, nil
}

// Enabled reports whether tutorials are switched on
func (r *Registry) Enabled() bool {
	return r.enabled
}

// Get returns a tutorial by key
func (r *Registry) Get(key string) (Tutorial, error) {
	t, ok := r.byKey[key]
	if !ok {
		return Tutorial{}, fmt.Errorf("%w: %q", domain.ErrTutorialNotFound, key)
	}
	return t, nil
}

// All returns the catalog in display order
func (r *Registry) All() []Tutorial {
	out := make([]Tutorial, len(r.tutorials))
	copy(out, r.tutorials)
	return out
}
