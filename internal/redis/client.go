package redis

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/userpets/internal/config"
)

// Store wraps the Redis client shared by the job queue and profile cache
type Store struct {
	client     *redis.Client
	prefix     string
	profileTTL time.Duration
	logger     *slog.Logger
}

// NewStore connects to Redis
func NewStore(ctx context.Context, cfg *config.RedisConfig, logger *slog.Logger) (*Store, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	})

	// Test connection
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connecting to redis: %w", err)
	}

	return NewStoreWithClient(client, cfg.KeyPrefix, cfg.ProfileTTL, logger), nil
}

// NewStoreWithClient wraps an existing client
func NewStoreWithClient(client *redis.Client, prefix string, profileTTL time.Duration, logger *slog.Logger) *Store {
	if prefix == "" {
		prefix = "userpets"
	}
	return &Store{
		client:     client,
		prefix:     prefix,
		profileTTL: profileTTL,
		logger:     logger,
	}
}

// Close closes the Redis connection
func (s *Store) Close() error {
	return s.client.Close()
}

// Ping checks Redis connectivity
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// readyKey is the list of jobs that can run now
func (s *Store) readyKey() string {
	return s.prefix + ":jobs:ready"
}

// delayedKey is the sorted set of jobs scored by run-at in unix milliseconds
func (s *Store) delayedKey() string {
	return s.prefix + ":jobs:delayed"
}

func (s *Store) profileKey(userID int64) string {
	return fmt.Sprintf("%s:profile:%d", s.prefix, userID)
}
