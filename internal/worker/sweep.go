package worker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-co-op/gocron/v2"

	"github.com/userpets/internal/config"
	"github.com/userpets/internal/domain"
)

// StuckDuelLister finds accepted duels that never completed
type StuckDuelLister interface {
	ListStuckDuels(ctx context.Context, acceptedBefore time.Time) ([]domain.Duel, error)
}

// ResolutionRequeuer queues resolution for an accepted duel again
type ResolutionRequeuer interface {
	RequeueResolution(ctx context.Context, duelID int64) error
}

// DuelSweeper periodically finds duels stuck in the accepted state and
// queues their resolution again. A nil requeuer only logs them.
type DuelSweeper struct {
	duels     StuckDuelLister
	requeuer  ResolutionRequeuer
	config    *config.SweepConfig
	clock     func() time.Time
	logger    *slog.Logger
	scheduler gocron.Scheduler
}

// NewDuelSweeper creates a new sweeper
func NewDuelSweeper(duels StuckDuelLister, requeuer ResolutionRequeuer, cfg *config.SweepConfig, clock func() time.Time, logger *slog.Logger) *DuelSweeper {
	if clock == nil {
		clock = time.Now
	}
	return &DuelSweeper{
		duels:    duels,
		requeuer: requeuer,
		config:   cfg,
		clock:    clock,
		logger:   logger,
	}
}

// Start schedules the sweep
func (s *DuelSweeper) Start(ctx context.Context) error {
	sched, err := gocron.NewScheduler()
	if err != nil {
		return fmt.Errorf("creating scheduler: %w", err)
	}

	_, err = sched.NewJob(
		gocron.DurationJob(s.config.Interval),
		gocron.NewTask(func() {
			s.Sweep(ctx)
		}),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		_ = sched.Shutdown()
		return fmt.Errorf("scheduling duel sweep: %w", err)
	}

	s.scheduler = sched
	sched.Start()
	s.logger.Info("duel sweeper started", "interval", s.config.Interval, "stuck_after", s.config.StuckAfter)
	return nil
}

// Stop shuts the scheduler down
func (s *DuelSweeper) Stop() error {
	if s.scheduler == nil {
		return nil
	}
	if err := s.scheduler.Shutdown(); err != nil {
		return fmt.Errorf("stopping scheduler: %w", err)
	}
	s.logger.Info("duel sweeper stopped")
	return nil
}

// Sweep requeues every duel accepted longer than StuckAfter ago and returns them
func (s *DuelSweeper) Sweep(ctx context.Context) []domain.Duel {
	cutoff := s.clock().Add(-s.config.StuckAfter)
	stuck, err := s.duels.ListStuckDuels(ctx, cutoff)
	if err != nil {
		s.logger.Error("failed to list stuck duels", "error", err)
		return nil
	}

	for _, d := range stuck {
		s.logger.Warn("duel stuck in accepted state",
			"duel_id", d.DuelID,
			"challenger_pet_id", d.ChallengerPetID,
			"opponent_pet_id", d.OpponentPetID,
			"accepted_at", d.AcceptedAt,
		)
		if s.requeuer == nil {
			continue
		}
		if err := s.requeuer.RequeueResolution(ctx, d.DuelID); err != nil {
			s.logger.Error("failed to requeue stuck duel", "duel_id", d.DuelID, "error", err)
		}
	}
	if len(stuck) > 0 {
		s.logger.Info("duel sweep completed", "stuck", len(stuck))
	}
	return stuck
}
