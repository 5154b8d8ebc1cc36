package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/userpets/internal/config"
	"github.com/userpets/internal/domain"
	"github.com/userpets/internal/duel"
	"github.com/userpets/internal/handler"
	"github.com/userpets/internal/kafka"
	"github.com/userpets/internal/pet"
	"github.com/userpets/internal/postgres"
	"github.com/userpets/internal/redis"
	"github.com/userpets/internal/service"
	"github.com/userpets/internal/tutorial"
	"github.com/userpets/internal/websocket"
	"github.com/userpets/internal/worker"
)

func main() {
	// Parse command line flags
	configPath := flag.String("config", "config.yaml", "Path to configuration file")
	flag.Parse()

	// Setup structured logging
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, *configPath, logger); err != nil {
		logger.Error("fatal", "error", err)
		os.Exit(1)
	}
	logger.Info("server stopped")
}

func run(ctx context.Context, configPath string, logger *slog.Logger) error {
	// Load configuration
	cfg, err := config.Load(configPath)
	if err != nil {
		logger.Warn("failed to load config file, using defaults", "error", err)
		cfg = config.DefaultConfig()
	}

	// Initialize Redis
	logger.Info("connecting to redis", "addr", cfg.Redis.Addr)
	redisStore, err := redis.NewStore(ctx, &cfg.Redis, logger)
	if err != nil {
		return fmt.Errorf("connecting to redis: %w", err)
	}
	defer redisStore.Close()
	logger.Info("connected to redis")

	// Initialize PostgreSQL
	logger.Info("connecting to postgres", "host", cfg.Postgres.Host, "database", cfg.Postgres.Database)
	repo, err := postgres.NewRepository(ctx, &cfg.Postgres, logger)
	if err != nil {
		return fmt.Errorf("connecting to postgres: %w", err)
	}
	defer repo.Close()
	logger.Info("connected to postgres")

	if err := repo.RunMigrations(ctx); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}

	// Initialize WebSocket hub
	wsHub := websocket.NewHub(logger)
	go wsHub.Run()
	defer wsHub.Stop()

	// One clock for every component so cooldowns and decay agree
	clock := time.Now

	tutorials, err := tutorial.NewRegistry(cfg.Tutorials)
	if err != nil {
		return fmt.Errorf("building tutorial registry: %w", err)
	}
	algorithms := duel.NewRegistry(nil)
	logger.Info("duel algorithm configured",
		"algorithm", algorithms.Resolve(cfg.Duel.Algorithm).Key(),
		"requested", cfg.Duel.Algorithm,
	)

	// Initialize services
	profileService := service.NewProfileService(repo, redisStore, clock, logger)
	petService := service.NewPetService(
		repo,
		profileService,
		wsHub,
		pet.NewEngine(cfg.Stats, clock),
		pet.NewLeveling(cfg.Leveling),
		cfg.Actions,
		clock,
		logger,
	)
	tutorialService := service.NewTutorialService(repo, tutorials, petService, profileService, wsHub, redisStore, clock, logger)
	duelService := service.NewDuelService(repo, repo, petService, profileService, wsHub, redisStore, algorithms, cfg.Duel, clock, logger)
	activityService := service.NewActivityService(petService, tutorialService, profileService, cfg.Activity, logger)

	// Background jobs
	jobRunner := worker.NewJobRunner(redisStore, &cfg.Jobs, clock, logger)
	jobRunner.Handle(domain.JobTypeDuelResolve, duelService.ResolveDuel)
	jobRunner.Handle(domain.JobTypeTutorialReward, tutorialService.HandleReward)
	if cfg.Jobs.Enabled {
		if err := jobRunner.Start(ctx); err != nil {
			return fmt.Errorf("starting job runner: %w", err)
		}
	}

	sweeper := worker.NewDuelSweeper(repo, duelService, &cfg.Sweep, clock, logger)
	if cfg.Sweep.Enabled {
		if err := sweeper.Start(ctx); err != nil {
			return fmt.Errorf("starting duel sweeper: %w", err)
		}
	}

	// Initialize Kafka consumer for forum activity
	var kafkaConsumer *kafka.Consumer
	if cfg.Kafka.Enabled {
		logger.Info("initializing kafka consumer",
			"brokers", cfg.Kafka.Brokers,
			"topic", cfg.Kafka.Topic,
		)
		kafkaConsumer, err = kafka.NewConsumer(&cfg.Kafka, activityService, logger)
		if err != nil {
			logger.Warn("failed to create kafka consumer, continuing without kafka", "error", err)
			kafkaConsumer = nil
		} else if err := kafkaConsumer.Start(); err != nil {
			logger.Warn("failed to start kafka consumer, continuing without kafka", "error", err)
			kafkaConsumer = nil
		}
	}

	httpHandler := handler.NewHandler(handler.Services{
		Pets:      petService,
		Activity:  activityService,
		Duels:     duelService,
		Tutorials: tutorialService,
	}, wsHub, map[string]handler.Pinger{
		"postgres": repo,
		"redis":    redisStore,
	}, logger)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      httpHandler.Router(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("starting http server", "port", cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if kafkaConsumer != nil {
			if err := kafkaConsumer.Stop(); err != nil {
				logger.Error("failed to stop kafka consumer", "error", err)
			}
		}
		if err := sweeper.Stop(); err != nil {
			logger.Error("failed to stop duel sweeper", "error", err)
		}
		if err := jobRunner.Stop(); err != nil {
			logger.Error("failed to stop job runner", "error", err)
		}
		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutting down http server: %w", err)
		}
		return nil
	})

	return g.Wait()
}
