package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/userpets/internal/config"
	"github.com/userpets/internal/domain"
	"github.com/userpets/internal/duel"
)

const defaultDuelHistoryLimit = 20

// DuelService runs the duel lifecycle: challenge, accept or reject, and the
// background resolution of accepted duels
type DuelService struct {
	duels      DuelStore
	pets       PetStore
	petService *PetService
	profiles   ProfileLookup
	notifier   Notifier
	jobs       JobQueue
	algorithms *duel.Registry
	cfg        config.DuelConfig
	clock      func() time.Time
	logger     *slog.Logger
}

// NewDuelService creates a new duel service
func NewDuelService(
	duels DuelStore,
	pets PetStore,
	petService *PetService,
	profiles ProfileLookup,
	notifier Notifier,
	jobs JobQueue,
	algorithms *duel.Registry,
	cfg config.DuelConfig,
	clock func() time.Time,
	logger *slog.Logger,
) *DuelService {
	if clock == nil {
		clock = time.Now
	}
	return &DuelService{
		duels:      duels,
		pets:       pets,
		petService: petService,
		profiles:   profiles,
		notifier:   notifier,
		jobs:       jobs,
		algorithms: algorithms,
		cfg:        cfg,
		clock:      clock,
		logger:     logger,
	}
}

func failed(status domain.ChallengeStatus, err error, message string) domain.ChallengeResult {
	return domain.ChallengeResult{
		Status: status,
		Data:   map[string]any{"error": message},
		Err:    err,
	}
}

func (s *DuelService) internalFailure(msg string, err error, attrs ...any) domain.ChallengeResult {
	s.logger.Error(msg, append(attrs, "error", err)...)
	return failed(domain.ChallengeUnknown, err, "internal error")
}

// Algorithms lists the registered duel algorithms
func (s *DuelService) Algorithms() []duel.Info {
	return s.algorithms.All()
}

// CreateChallenge opens a pending duel from one pet to another
func (s *DuelService) CreateChallenge(ctx context.Context, challengerPetID, opponentPetID int64) domain.ChallengeResult {
	logAttrs := []any{"challenger_pet_id", challengerPetID, "opponent_pet_id", opponentPetID}

	challenger, err := s.pets.GetPet(ctx, challengerPetID)
	if err != nil && !errors.Is(err, domain.ErrPetNotFound) {
		return s.internalFailure("failed to load challenger pet", err, logAttrs...)
	}
	opponent, err2 := s.pets.GetPet(ctx, opponentPetID)
	if err2 != nil && !errors.Is(err2, domain.ErrPetNotFound) {
		return s.internalFailure("failed to load opponent pet", err2, logAttrs...)
	}
	if err != nil || err2 != nil {
		return domain.ChallengeResult{Status: domain.ChallengePetsNotFound}
	}

	if challengerPetID == opponentPetID {
		return domain.ChallengeResult{Status: domain.ChallengeSamePet}
	}

	challengerDisabled, err := s.profiles.IsDisabled(ctx, challenger.UserID)
	if err != nil {
		return s.internalFailure("failed to check opt-out", err, logAttrs...)
	}
	opponentDisabled, err := s.profiles.IsDisabled(ctx, opponent.UserID)
	if err != nil {
		return s.internalFailure("failed to check opt-out", err, logAttrs...)
	}
	if challengerDisabled || opponentDisabled {
		return domain.ChallengeResult{Status: domain.ChallengeUserDisabled}
	}

	now := s.clock()
	if !challenger.LastDuelTime.IsZero() {
		if readyAt := challenger.LastDuelTime.Add(s.cfg.Cooldown); readyAt.After(now) {
			cooldown := &domain.CooldownError{Remaining: readyAt.Sub(now)}
			return domain.ChallengeResult{
				Status: domain.ChallengeOnCooldown,
				Data:   map[string]any{"remaining_time": cooldown.RemainingSeconds()},
			}
		}
	}

	existing, err := s.duels.FindPendingDuel(ctx, challengerPetID, opponentPetID)
	if err != nil {
		return s.internalFailure("failed to look up pending duel", err, logAttrs...)
	}
	if existing != nil {
		return domain.ChallengeResult{Status: domain.ChallengeDuelAlreadyExists, Duel: existing}
	}

	d := &domain.Duel{
		ChallengerPetID: challengerPetID,
		OpponentPetID:   opponentPetID,
		Status:          domain.DuelStatusPending,
		CreatedAt:       now,
	}
	if err := s.duels.CreateDuel(ctx, d); err != nil {
		if errors.Is(err, domain.ErrDuelExists) {
			existing, _ = s.duels.FindPendingDuel(ctx, challengerPetID, opponentPetID)
			return domain.ChallengeResult{Status: domain.ChallengeDuelAlreadyExists, Duel: existing}
		}
		return s.internalFailure("failed to create duel challenge", err, logAttrs...)
	}

	s.notifier.Notify(newNotification(opponent.UserID, challenger.UserID, domain.NotificationDuelChallenge, opponent.PetID, map[string]any{
		"challenger_name": s.profiles.Username(ctx, challenger.UserID),
		"duel_id":         d.DuelID,
	}, false, now))

	s.logger.Info("duel challenge created", append(logAttrs, "duel_id", d.DuelID)...)
	return domain.ChallengeResult{Status: domain.ChallengeSuccess, Duel: d}
}

// loadForOpponent loads a pending duel and checks that userID owns the
// opponent pet
func (s *DuelService) loadForOpponent(ctx context.Context, duelID, userID int64, verb string) (*domain.Duel, *domain.Pet, *domain.ChallengeResult) {
	d, err := s.duels.GetDuel(ctx, duelID)
	if errors.Is(err, domain.ErrDuelNotFound) {
		r := failed(domain.ChallengeUnknown, domain.ErrDuelNotFound, "Duel not found")
		return nil, nil, &r
	}
	if err != nil {
		r := s.internalFailure("failed to load duel", err, "duel_id", duelID)
		return nil, nil, &r
	}

	p, err := s.pets.GetPetByUser(ctx, userID)
	if err != nil && !errors.Is(err, domain.ErrPetNotFound) {
		r := s.internalFailure("failed to load pet", err, "duel_id", duelID, "user_id", userID)
		return nil, nil, &r
	}
	if p == nil || err != nil || p.PetID != d.OpponentPetID {
		r := failed(domain.ChallengeUnknown, domain.ErrNotDuelOpponent, fmt.Sprintf("Cannot %s others duels", verb))
		return nil, nil, &r
	}

	if d.Status != domain.DuelStatusPending {
		r := failed(domain.ChallengeUnknown, domain.ErrDuelNotPending, "Duel no longer pending")
		return nil, nil, &r
	}
	return d, p, nil
}

// AcceptChallenge accepts a pending duel on behalf of the opponent's owner.
// The challenger's duel cooldown starts here and resolution is queued. Once
// the duel row is accepted the call reports success; a resolution job that
// could not be queued is picked up again by the stuck-duel sweep.
func (s *DuelService) AcceptChallenge(ctx context.Context, duelID, userID int64) domain.ChallengeResult {
	d, _, res := s.loadForOpponent(ctx, duelID, userID, "accept")
	if res != nil {
		return *res
	}

	now := s.clock()
	ok, err := s.duels.AcceptDuel(ctx, duelID, now)
	if err != nil {
		return s.internalFailure("failed to accept duel", err, "duel_id", duelID, "user_id", userID)
	}
	if !ok {
		return failed(domain.ChallengeUnknown, domain.ErrDuelNotPending, "Duel no longer pending")
	}
	d.Status = domain.DuelStatusAccepted
	d.AcceptedAt = now

	// The duel is committed; finish the follow-up writes even if the caller goes away.
	ctx = context.WithoutCancel(ctx)

	_, err = s.petService.ModifyPet(ctx, d.ChallengerPetID, func(p *domain.Pet) error {
		p.LastDuelTime = now
		return nil
	})
	if err != nil && !errors.Is(err, domain.ErrPetNotFound) {
		s.logger.Error("failed to start duel cooldown", "duel_id", duelID, "error", err)
	}

	if err := s.RequeueResolution(ctx, duelID); err != nil {
		s.logger.Error("duel accepted without resolution job", "duel_id", duelID, "error", err)
	}

	s.logger.Info("duel accepted", "duel_id", duelID, "user_id", userID)
	return domain.ChallengeResult{Status: domain.ChallengeSuccess, Duel: d}
}

// RequeueResolution queues a duel_resolve job for an accepted duel
func (s *DuelService) RequeueResolution(ctx context.Context, duelID int64) error {
	job := newJob(domain.JobTypeDuelResolve, s.clock())
	job.DuelID = duelID
	if err := s.jobs.Enqueue(ctx, job); err != nil {
		return fmt.Errorf("enqueueing duel resolution: %w", err)
	}
	s.logger.Debug("duel resolution queued", "duel_id", duelID, "job_id", job.ID)
	return nil
}

// RejectChallenge declines a pending duel and tells the challenger
func (s *DuelService) RejectChallenge(ctx context.Context, duelID, userID int64) domain.ChallengeResult {
	d, opponent, res := s.loadForOpponent(ctx, duelID, userID, "reject")
	if res != nil {
		return *res
	}

	ok, err := s.duels.DeclineDuel(ctx, duelID)
	if err != nil {
		return s.internalFailure("failed to decline duel", err, "duel_id", duelID, "user_id", userID)
	}
	if !ok {
		return failed(domain.ChallengeUnknown, domain.ErrDuelNotPending, "Duel no longer pending")
	}
	d.Status = domain.DuelStatusDeclined

	challenger, err := s.pets.GetPet(ctx, d.ChallengerPetID)
	if err == nil {
		s.notifier.Notify(newNotification(challenger.UserID, opponent.UserID, domain.NotificationDuelDeclined, challenger.PetID, map[string]any{
			"opponent_name": s.profiles.Username(ctx, opponent.UserID),
		}, false, s.clock()))
	} else {
		s.logger.Warn("declined duel has no challenger pet", "duel_id", duelID, "error", err)
	}

	s.logger.Info("duel declined", "duel_id", duelID, "user_id", userID)
	return domain.ChallengeResult{Status: domain.ChallengeSuccess, Duel: d}
}

// GetDuel returns a duel by id
func (s *DuelService) GetDuel(ctx context.Context, duelID int64) (*domain.Duel, error) {
	return s.duels.GetDuel(ctx, duelID)
}

// ListUserDuels returns the duels of a user's pet, newest first
func (s *DuelService) ListUserDuels(ctx context.Context, userID int64, limit int) ([]domain.Duel, error) {
	if limit <= 0 || limit > 100 {
		limit = defaultDuelHistoryLimit
	}

	p, err := s.pets.GetPetByUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	duels, err := s.duels.ListPetDuels(ctx, p.PetID, limit)
	if err != nil {
		return nil, fmt.Errorf("listing duels: %w", err)
	}
	return duels, nil
}

// Record returns a user's completed duel wins and losses
func (s *DuelService) Record(ctx context.Context, userID int64) (*domain.DuelRecord, error) {
	p, err := s.pets.GetPetByUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	wins, losses, err := s.duels.CountDuelResults(ctx, p.PetID)
	if err != nil {
		return nil, fmt.Errorf("counting duel results: %w", err)
	}
	return &domain.DuelRecord{UserID: userID, Wins: wins, Losses: losses}, nil
}

// ResolveDuel is the duel_resolve job handler. Duels that are gone, no
// longer accepted, or missing a pet complete the job without changes.
// Errors are retried by the job runner, which means the winner's award may
// be applied again when a later step fails.
func (s *DuelService) ResolveDuel(ctx context.Context, job *domain.Job) error {
	if job.DuelID == 0 {
		return nil
	}

	d, err := s.duels.GetDuel(ctx, job.DuelID)
	if errors.Is(err, domain.ErrDuelNotFound) {
		s.logger.Error("duel job found invalid duel", "duel_id", job.DuelID, "status", "missing")
		return nil
	}
	if err != nil {
		return fmt.Errorf("loading duel: %w", err)
	}
	if d.Status != domain.DuelStatusAccepted {
		s.logger.Error("duel job found invalid duel", "duel_id", job.DuelID, "status", d.Status)
		return nil
	}

	challenger, err := s.pets.GetPet(ctx, d.ChallengerPetID)
	if err != nil && !errors.Is(err, domain.ErrPetNotFound) {
		return fmt.Errorf("loading challenger pet: %w", err)
	}
	opponent, err2 := s.pets.GetPet(ctx, d.OpponentPetID)
	if err2 != nil && !errors.Is(err2, domain.ErrPetNotFound) {
		return fmt.Errorf("loading opponent pet: %w", err2)
	}
	if err != nil || err2 != nil {
		s.logger.Error("duel job found missing pets",
			"duel_id", d.DuelID,
			"challenger_pet_id", d.ChallengerPetID,
			"opponent_pet_id", d.OpponentPetID,
		)
		return nil
	}

	algorithm := s.algorithms.Resolve(s.cfg.Algorithm)
	result := algorithm.CalculateWinner(duel.SnapshotOf(challenger), duel.SnapshotOf(opponent))

	winner, loser := opponent, challenger
	if result.PetID == challenger.PetID {
		winner, loser = challenger, opponent
	}

	if s.cfg.WinExperience > 0 {
		if _, err := s.petService.AwardExperience(ctx, winner.UserID, s.cfg.WinExperience, false); err != nil {
			return fmt.Errorf("awarding winner: %w", err)
		}
	}

	if penalty := s.cfg.LossStatPenalty; penalty > 0 {
		_, err := s.petService.ModifyPet(ctx, loser.PetID, func(p *domain.Pet) error {
			p.Hunger = max(domain.StatMin, p.Hunger-penalty)
			p.Happiness = max(domain.StatMin, p.Happiness-penalty)
			p.Sleepiness = max(domain.StatMin, p.Sleepiness-penalty)
			s.petService.engine.DetermineState(p)
			return nil
		})
		if err != nil && !errors.Is(err, domain.ErrPetNotFound) {
			return fmt.Errorf("applying loss penalty: %w", err)
		}
	}

	now := s.clock()
	ok, err := s.duels.CompleteDuel(ctx, d.DuelID, winner.PetID, loser.PetID, now)
	if err != nil {
		return fmt.Errorf("completing duel: %w", err)
	}
	if !ok {
		s.logger.Warn("duel was resolved concurrently", "duel_id", d.DuelID)
		return nil
	}

	winnerName := s.profiles.Username(ctx, winner.UserID)
	loserName := s.profiles.Username(ctx, loser.UserID)

	s.notifyUnlessDisabled(ctx, newNotification(winner.UserID, winner.UserID, domain.NotificationDuelWin, winner.PetID, map[string]any{
		"opponent_name": loserName,
		"exp_gained":    s.cfg.WinExperience,
	}, false, now))
	s.notifyUnlessDisabled(ctx, newNotification(loser.UserID, loser.UserID, domain.NotificationDuelLoss, loser.PetID, map[string]any{
		"opponent_name": winnerName,
		"stats_lost":    s.cfg.LossStatPenalty,
	}, false, now))

	s.logger.Info("duel completed",
		"duel_id", d.DuelID,
		"algorithm", algorithm.Key(),
		"winner_pet_id", winner.PetID,
		"winner_user_id", winner.UserID,
		"loser_pet_id", loser.PetID,
		"loser_user_id", loser.UserID,
	)
	return nil
}

func (s *DuelService) notifyUnlessDisabled(ctx context.Context, n domain.Notification) {
	disabled, err := s.profiles.IsDisabled(ctx, n.UserID)
	if err != nil {
		s.logger.Warn("failed to check opt-out for notification", "user_id", n.UserID, "type", n.Type, "error", err)
		return
	}
	if !disabled {
		s.notifier.Notify(n)
	}
}
