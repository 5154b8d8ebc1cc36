package service

import (
	"context"
	"io"
	"log/slog"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/userpets/internal/config"
	"github.com/userpets/internal/domain"
	"github.com/userpets/internal/duel"
	"github.com/userpets/internal/pet"
	"github.com/userpets/internal/tutorial"
)

type fakePetStore struct {
	mu     sync.Mutex
	pets   map[int64]domain.Pet
	nextID int64

	// conflicts makes the next n updates fail with ErrPetConflict
	conflicts int
	updateErr error
	updates   int
}

func newFakePetStore() *fakePetStore {
	return &fakePetStore{pets: make(map[int64]domain.Pet)}
}

func (f *fakePetStore) GetPet(_ context.Context, petID int64) (*domain.Pet, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.pets[petID]
	if !ok {
		return nil, domain.ErrPetNotFound
	}
	return &p, nil
}

func (f *fakePetStore) GetPetByUser(_ context.Context, userID int64) (*domain.Pet, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, p := range f.pets {
		if p.UserID == userID {
			return &p, nil
		}
	}
	return nil, domain.ErrPetNotFound
}

func (f *fakePetStore) CreatePet(_ context.Context, p *domain.Pet) (*domain.Pet, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, existing := range f.pets {
		if existing.UserID == p.UserID {
			return &existing, nil
		}
	}
	f.nextID++
	created := *p
	created.PetID = f.nextID
	created.Version = 1
	f.pets[created.PetID] = created
	return &created, nil
}

func (f *fakePetStore) UpdatePet(ctx context.Context, p *domain.Pet) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.updateErr != nil {
		return f.updateErr
	}
	stored, ok := f.pets[p.PetID]
	if !ok {
		return domain.ErrPetNotFound
	}
	if f.conflicts > 0 {
		f.conflicts--
		stored.Version++
		f.pets[p.PetID] = stored
		return domain.ErrPetConflict
	}
	if stored.Version != p.Version {
		return domain.ErrPetConflict
	}
	p.Version++
	f.pets[p.PetID] = *p
	f.updates++
	return nil
}

func (f *fakePetStore) put(p domain.Pet) *domain.Pet {
	f.mu.Lock()
	defer f.mu.Unlock()
	if p.PetID == 0 {
		f.nextID++
		p.PetID = f.nextID
	} else if p.PetID > f.nextID {
		f.nextID = p.PetID
	}
	if p.Version == 0 {
		p.Version = 1
	}
	f.pets[p.PetID] = p
	return &p
}

func (f *fakePetStore) get(t *testing.T, petID int64) domain.Pet {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.pets[petID]
	require.True(t, ok, "pet %d", petID)
	return p
}

type fakeDuelStore struct {
	mu     sync.Mutex
	duels  map[int64]domain.Duel
	nextID int64
	err    error

	// afterAccept runs once a duel has been accepted
	afterAccept func()
}

func newFakeDuelStore() *fakeDuelStore {
	return &fakeDuelStore{duels: make(map[int64]domain.Duel)}
}

func (f *fakeDuelStore) CreateDuel(_ context.Context, d *domain.Duel) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.nextID++
	d.DuelID = f.nextID
	f.duels[d.DuelID] = *d
	return nil
}

func (f *fakeDuelStore) GetDuel(_ context.Context, duelID int64) (*domain.Duel, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	d, ok := f.duels[duelID]
	if !ok {
		return nil, domain.ErrDuelNotFound
	}
	return &d, nil
}

func (f *fakeDuelStore) FindPendingDuel(_ context.Context, petA, petB int64) (*domain.Duel, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, d := range f.duels {
		if d.Status == domain.DuelStatusPending && d.Involves(petA) && d.Involves(petB) {
			return &d, nil
		}
	}
	return nil, nil
}

func (f *fakeDuelStore) transition(duelID int64, from domain.DuelStatus, apply func(d *domain.Duel)) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return false, f.err
	}
	d, ok := f.duels[duelID]
	if !ok || d.Status != from {
		return false, nil
	}
	apply(&d)
	f.duels[duelID] = d
	return true, nil
}

func (f *fakeDuelStore) AcceptDuel(_ context.Context, duelID int64, at time.Time) (bool, error) {
	ok, err := f.transition(duelID, domain.DuelStatusPending, func(d *domain.Duel) {
		d.Status = domain.DuelStatusAccepted
		d.AcceptedAt = at
	})
	if ok && f.afterAccept != nil {
		f.afterAccept()
	}
	return ok, err
}

func (f *fakeDuelStore) DeclineDuel(_ context.Context, duelID int64) (bool, error) {
	return f.transition(duelID, domain.DuelStatusPending, func(d *domain.Duel) {
		d.Status = domain.DuelStatusDeclined
	})
}

func (f *fakeDuelStore) CompleteDuel(_ context.Context, duelID, winnerPetID, loserPetID int64, at time.Time) (bool, error) {
	return f.transition(duelID, domain.DuelStatusAccepted, func(d *domain.Duel) {
		d.Status = domain.DuelStatusCompleted
		d.WinnerPetID = winnerPetID
		d.LoserPetID = loserPetID
		d.CompletedAt = at
	})
}

func (f *fakeDuelStore) ListPetDuels(_ context.Context, petID int64, limit int) ([]domain.Duel, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.Duel
	for _, d := range f.duels {
		if d.Involves(petID) {
			out = append(out, d)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DuelID > out[j].DuelID })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeDuelStore) CountDuelResults(_ context.Context, petID int64) (int64, int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var wins, losses int64
	for _, d := range f.duels {
		if d.Status != domain.DuelStatusCompleted {
			continue
		}
		switch petID {
		case d.WinnerPetID:
			wins++
		case d.LoserPetID:
			losses++
		}
	}
	return wins, losses, nil
}

func (f *fakeDuelStore) get(t *testing.T, duelID int64) domain.Duel {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	d, ok := f.duels[duelID]
	require.True(t, ok, "duel %d", duelID)
	return d
}

type tutorialKey struct {
	userID int64
	key    string
}

type fakeTutorialStore struct {
	mu   sync.Mutex
	done map[tutorialKey]time.Time
}

func newFakeTutorialStore() *fakeTutorialStore {
	return &fakeTutorialStore{done: make(map[tutorialKey]time.Time)}
}

func (f *fakeTutorialStore) IsTutorialCompleted(_ context.Context, userID int64, key string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.done[tutorialKey{userID, key}]
	return ok, nil
}

func (f *fakeTutorialStore) CompleteTutorial(_ context.Context, userID int64, key string, at time.Time) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	k := tutorialKey{userID, key}
	if _, ok := f.done[k]; ok {
		return false, nil
	}
	f.done[k] = at
	return true, nil
}

func (f *fakeTutorialStore) ListTutorialCompletions(_ context.Context, userID int64) ([]domain.TutorialCompletion, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.TutorialCompletion
	for k, at := range f.done {
		if k.userID == userID {
			out = append(out, domain.TutorialCompletion{UserID: userID, TutorialKey: k.key, Completed: true, CompletedAt: at})
		}
	}
	return out, nil
}

type fakeProfileStore struct {
	mu       sync.Mutex
	profiles map[int64]domain.UserProfile
	reads    int
}

func newFakeProfileStore() *fakeProfileStore {
	return &fakeProfileStore{profiles: make(map[int64]domain.UserProfile)}
}

func (f *fakeProfileStore) GetProfile(_ context.Context, userID int64) (*domain.UserProfile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reads++
	p, ok := f.profiles[userID]
	if !ok {
		return nil, domain.ErrProfileNotFound
	}
	return &p, nil
}

func (f *fakeProfileStore) UpsertProfile(_ context.Context, p *domain.UserProfile) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.profiles[p.UserID] = *p
	return nil
}

type fakeProfileCache struct {
	mu       sync.Mutex
	profiles map[int64]domain.UserProfile
}

func newFakeProfileCache() *fakeProfileCache {
	return &fakeProfileCache{profiles: make(map[int64]domain.UserProfile)}
}

func (f *fakeProfileCache) GetProfile(_ context.Context, userID int64) (*domain.UserProfile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.profiles[userID]
	if !ok {
		return nil, domain.ErrProfileNotFound
	}
	return &p, nil
}

func (f *fakeProfileCache) SetProfile(_ context.Context, p *domain.UserProfile) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.profiles[p.UserID] = *p
	return nil
}

type fakeQueue struct {
	mu   sync.Mutex
	jobs []domain.Job
	err  error
}

func (f *fakeQueue) Enqueue(ctx context.Context, job *domain.Job) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.jobs = append(f.jobs, *job)
	return nil
}

func (f *fakeQueue) all() []domain.Job {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.Job(nil), f.jobs...)
}

type fakeNotifier struct {
	mu   sync.Mutex
	sent []domain.Notification
}

func (f *fakeNotifier) Notify(n domain.Notification) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, n)
}

func (f *fakeNotifier) ofType(t domain.NotificationType) []domain.Notification {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.Notification
	for _, n := range f.sent {
		if n.Type == t {
			out = append(out, n)
		}
	}
	return out
}

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// harness wires every service against in-memory fakes
type harness struct {
	cfg       *config.Config
	clock     *testClock
	pets      *fakePetStore
	duels     *fakeDuelStore
	tutorials *fakeTutorialStore
	profiles  *fakeProfileStore
	cache     *fakeProfileCache
	queue     *fakeQueue
	notifier  *fakeNotifier
	draw      float64

	profileService  *ProfileService
	petService      *PetService
	duelService     *DuelService
	tutorialService *TutorialService
	activityService *ActivityService
}

func newHarness(t *testing.T, mutate ...func(cfg *config.Config)) *harness {
	t.Helper()

	cfg := config.DefaultConfig()
	for _, m := range mutate {
		m(cfg)
	}

	h := &harness{
		cfg:       cfg,
		clock:     &testClock{now: time.Date(2026, 5, 10, 9, 0, 0, 0, time.UTC)},
		pets:      newFakePetStore(),
		duels:     newFakeDuelStore(),
		tutorials: newFakeTutorialStore(),
		profiles:  newFakeProfileStore(),
		cache:     newFakeProfileCache(),
		queue:     &fakeQueue{},
		notifier:  &fakeNotifier{},
		draw:      0.1,
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	registry, err := tutorial.NewRegistry(cfg.Tutorials)
	require.NoError(t, err)
	algorithms := duel.NewRegistry(func() float64 { return h.draw })

	h.profileService = NewProfileService(h.profiles, h.cache, h.clock.Now, logger)
	h.petService = NewPetService(
		h.pets, h.profileService, h.notifier,
		pet.NewEngine(cfg.Stats, h.clock.Now),
		pet.NewLeveling(cfg.Leveling),
		cfg.Actions, h.clock.Now, logger,
	)
	h.duelService = NewDuelService(
		h.duels, h.pets, h.petService, h.profileService, h.notifier, h.queue,
		algorithms, cfg.Duel, h.clock.Now, logger,
	)
	h.tutorialService = NewTutorialService(
		h.tutorials, registry, h.petService, h.profileService, h.notifier, h.queue, h.clock.Now, logger,
	)
	h.activityService = NewActivityService(h.petService, h.tutorialService, h.profileService, cfg.Activity, logger)
	return h
}

// addPet stores a pet with full stats for userID and a named profile
func (h *harness) addPet(userID int64, name string) *domain.Pet {
	h.profiles.profiles[userID] = domain.UserProfile{UserID: userID, Username: name}
	return h.pets.put(*domain.NewPet(userID, h.clock.Now()))
}

func (h *harness) optOut(userID int64) {
	p := h.profiles.profiles[userID]
	p.UserID = userID
	p.PetsDisabled = true
	h.profiles.profiles[userID] = p
	delete(h.cache.profiles, userID)
}

func (h *harness) jobsOfType(t domain.JobType) []domain.Job {
	var out []domain.Job
	for _, j := range h.queue.all() {
		if j.Type == t {
			out = append(out, j)
		}
	}
	return out
}
