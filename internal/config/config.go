package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config represents the application configuration
type Config struct {
	Server    ServerConfig   `yaml:"server"`
	Redis     RedisConfig    `yaml:"redis"`
	Postgres  PostgresConfig `yaml:"postgres"`
	Kafka     KafkaConfig    `yaml:"kafka"`
	Jobs      JobsConfig     `yaml:"jobs"`
	Sweep     SweepConfig    `yaml:"sweep"`
	Stats     StatsConfig    `yaml:"stats"`
	Leveling  LevelingConfig `yaml:"leveling"`
	Actions   ActionsConfig  `yaml:"actions"`
	Activity  ActivityConfig `yaml:"activity"`
	Duel      DuelConfig     `yaml:"duel"`
	Tutorials TutorialConfig `yaml:"tutorials"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port         int           `yaml:"port" env:"USERPETS_PORT"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
	IdleTimeout  time.Duration `yaml:"idle_timeout"`
}

// RedisConfig holds Redis connection configuration
type RedisConfig struct {
	Addr         string        `yaml:"addr" env:"USERPETS_REDIS_ADDR"`
	Password     string        `yaml:"password" env:"USERPETS_REDIS_PASSWORD"`
	DB           int           `yaml:"db"`
	PoolSize     int           `yaml:"pool_size"`
	MinIdleConns int           `yaml:"min_idle_conns"`
	DialTimeout  time.Duration `yaml:"dial_timeout"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
	KeyPrefix    string        `yaml:"key_prefix"`
	ProfileTTL   time.Duration `yaml:"profile_ttl"`
}

// PostgresConfig holds PostgreSQL connection configuration
type PostgresConfig struct {
	Host            string        `yaml:"host" env:"USERPETS_POSTGRES_HOST"`
	Port            int           `yaml:"port" env:"USERPETS_POSTGRES_PORT"`
	User            string        `yaml:"user" env:"USERPETS_POSTGRES_USER"`
	Password        string        `yaml:"password" env:"USERPETS_POSTGRES_PASSWORD"`
	Database        string        `yaml:"database" env:"USERPETS_POSTGRES_DATABASE"`
	SSLMode         string        `yaml:"ssl_mode"`
	MaxConnections  int           `yaml:"max_connections"`
	MinConnections  int           `yaml:"min_connections"`
	MaxConnLifetime time.Duration `yaml:"max_conn_lifetime"`
	MaxConnIdleTime time.Duration `yaml:"max_conn_idle_time"`
}

// ConnectionString returns the PostgreSQL connection string
func (c *PostgresConfig) ConnectionString() string {
	sslMode := c.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.Database, sslMode,
	)
}

// KafkaConfig holds Kafka connection configuration for forum activity events
type KafkaConfig struct {
	Brokers      []string      `yaml:"brokers" env:"USERPETS_KAFKA_BROKERS"`
	Topic        string        `yaml:"topic"`
	GroupID      string        `yaml:"group_id"`
	Enabled      bool          `yaml:"enabled" env:"USERPETS_KAFKA_ENABLED"`
	BatchSize    int           `yaml:"batch_size"`
	BatchTimeout time.Duration `yaml:"batch_timeout"`
}

// JobsConfig holds background job runner configuration
type JobsConfig struct {
	Enabled      bool          `yaml:"enabled"`
	PollInterval time.Duration `yaml:"poll_interval"`
	BatchSize    int           `yaml:"batch_size"`
	MaxAttempts  int           `yaml:"max_attempts"`
	RetryDelay   time.Duration `yaml:"retry_delay"`
}

// SweepConfig holds the stuck-duel report schedule
type SweepConfig struct {
	Enabled    bool          `yaml:"enabled"`
	Interval   time.Duration `yaml:"interval"`
	StuckAfter time.Duration `yaml:"stuck_after"`
}

// StatConfig configures one pet stat
type StatConfig struct {
	DecayRate         int    `yaml:"decay_rate"`
	CriticalThreshold int    `yaml:"critical_threshold"`
	CriticalLabel     string `yaml:"critical_label"`
}

// StatsConfig holds decay and action amounts for pet stats
type StatsConfig struct {
	UpdateInterval time.Duration `yaml:"update_interval"`
	Hunger         StatConfig    `yaml:"hunger"`
	Sleepiness     StatConfig    `yaml:"sleepiness"`
	Happiness      StatConfig    `yaml:"happiness"`
	FeedAmount     int           `yaml:"feed_amount"`
	SleepAmount    int           `yaml:"sleep_amount"`
	PlayAmount     int           `yaml:"play_amount"`
	PlayHungerCost int           `yaml:"play_hunger_cost"`
}

// LevelingConfig holds the experience curve
type LevelingConfig struct {
	BaseCoefficient      float64 `yaml:"base_coefficient" env:"USERPETS_BASE_COEFFICIENT"`
	PolynomialPower      float64 `yaml:"polynomial_power" env:"USERPETS_POLYNOMIAL_POWER"`
	MaxLevel             int     `yaml:"max_level"`
	ExperiencePerFeed    int64   `yaml:"experience_per_feed"`
	ExperiencePerSleep   int64   `yaml:"experience_per_sleep"`
	ExperiencePerPlay    int64   `yaml:"experience_per_play"`
	ExperienceForDefault int64   `yaml:"experience_default"`
}

// ActionsConfig holds the user action rate limit
type ActionsConfig struct {
	Cooldown time.Duration `yaml:"cooldown" env:"USERPETS_ACTION_COOLDOWN"`
}

// ActivityConfig holds experience granted for forum activity
type ActivityConfig struct {
	ExperiencePerPost   int64 `yaml:"experience_per_post"`
	ExperiencePerThread int64 `yaml:"experience_per_thread"`
}

// DuelConfig holds duel rules
type DuelConfig struct {
	Cooldown        time.Duration `yaml:"cooldown" env:"USERPETS_DUEL_COOLDOWN"`
	Algorithm       string        `yaml:"algorithm" env:"USERPETS_DUEL_ALGORITHM"`
	WinExperience   int64         `yaml:"win_experience"`
	LossStatPenalty int           `yaml:"loss_stat_penalty"`
}

// TutorialConfig holds tutorial switches and rewards keyed by tutorial key
type TutorialConfig struct {
	Enabled bool             `yaml:"enabled" env:"USERPETS_TUTORIALS_ENABLED"`
	Rewards map[string]int64 `yaml:"rewards" env:"USERPETS_TUTORIAL_REWARDS"`
}

// Load reads configuration from an optional .env file, a YAML file and
// USERPETS_* environment overrides, in that order.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("loading .env file: %w", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	// Expand environment variables
	data = []byte(os.ExpandEnv(string(data)))

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parsing environment overrides: %w", err)
	}

	cfg.applyDefaults()

	return cfg, nil
}

// applyDefaults fills in values that must never be zero
func (c *Config) applyDefaults() {
	// Server defaults
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Server.ReadTimeout == 0 {
		c.Server.ReadTimeout = 5 * time.Second
	}
	if c.Server.WriteTimeout == 0 {
		c.Server.WriteTimeout = 10 * time.Second
	}
	if c.Server.IdleTimeout == 0 {
		c.Server.IdleTimeout = 120 * time.Second
	}

	// Redis defaults
	if c.Redis.Addr == "" {
		c.Redis.Addr = "localhost:6379"
	}
	if c.Redis.PoolSize == 0 {
		c.Redis.PoolSize = 100
	}
	if c.Redis.MinIdleConns == 0 {
		c.Redis.MinIdleConns = 10
	}
	if c.Redis.DialTimeout == 0 {
		c.Redis.DialTimeout = 5 * time.Second
	}
	if c.Redis.ReadTimeout == 0 {
		c.Redis.ReadTimeout = 3 * time.Second
	}
	if c.Redis.WriteTimeout == 0 {
		c.Redis.WriteTimeout = 3 * time.Second
	}
	if c.Redis.KeyPrefix == "" {
		c.Redis.KeyPrefix = "userpets"
	}
	if c.Redis.ProfileTTL == 0 {
		c.Redis.ProfileTTL = 10 * time.Minute
	}

	// PostgreSQL defaults
	if c.Postgres.Host == "" {
		c.Postgres.Host = "localhost"
	}
	if c.Postgres.Port == 0 {
		c.Postgres.Port = 5432
	}
	if c.Postgres.MaxConnections == 0 {
		c.Postgres.MaxConnections = 50
	}
	if c.Postgres.MinConnections == 0 {
		c.Postgres.MinConnections = 5
	}
	if c.Postgres.MaxConnLifetime == 0 {
		c.Postgres.MaxConnLifetime = 1 * time.Hour
	}
	if c.Postgres.MaxConnIdleTime == 0 {
		c.Postgres.MaxConnIdleTime = 30 * time.Minute
	}

	// Kafka defaults
	if len(c.Kafka.Brokers) == 0 {
		c.Kafka.Brokers = []string{"localhost:9092"}
	}
	if c.Kafka.Topic == "" {
		c.Kafka.Topic = "forum-activity"
	}
	if c.Kafka.GroupID == "" {
		c.Kafka.GroupID = "userpets-activity"
	}
	if c.Kafka.BatchSize == 0 {
		c.Kafka.BatchSize = 100
	}
	if c.Kafka.BatchTimeout == 0 {
		c.Kafka.BatchTimeout = 1 * time.Second
	}

	// Job defaults
	if c.Jobs.PollInterval == 0 {
		c.Jobs.PollInterval = 1 * time.Second
	}
	if c.Jobs.BatchSize == 0 {
		c.Jobs.BatchSize = 50
	}
	if c.Jobs.MaxAttempts == 0 {
		c.Jobs.MaxAttempts = 5
	}
	if c.Jobs.RetryDelay == 0 {
		c.Jobs.RetryDelay = 30 * time.Second
	}

	// Sweep defaults
	if c.Sweep.Interval == 0 {
		c.Sweep.Interval = 15 * time.Minute
	}
	if c.Sweep.StuckAfter == 0 {
		c.Sweep.StuckAfter = 1 * time.Hour
	}

	// Stat defaults
	if c.Stats.UpdateInterval < time.Minute {
		c.Stats.UpdateInterval = time.Minute
	}

	// Leveling defaults
	if c.Leveling.BaseCoefficient <= 0 {
		c.Leveling.BaseCoefficient = 100
	}
	if c.Leveling.PolynomialPower <= 0 {
		c.Leveling.PolynomialPower = 1.5
	}
	if c.Leveling.MaxLevel <= 0 {
		c.Leveling.MaxLevel = 1000
	}

	// Duel defaults
	if c.Duel.Algorithm == "" {
		c.Duel.Algorithm = "default"
	}
}

// DefaultConfig returns a configuration with all defaults
func DefaultConfig() *Config {
	cfg := &Config{
		Jobs: JobsConfig{
			Enabled: true,
		},
		Sweep: SweepConfig{
			Enabled: true,
		},
		Stats: StatsConfig{
			UpdateInterval: time.Minute,
			Hunger:         StatConfig{DecayRate: 2, CriticalThreshold: 20, CriticalLabel: "Hungry"},
			Sleepiness:     StatConfig{DecayRate: 1, CriticalThreshold: 20, CriticalLabel: "Tired"},
			Happiness:      StatConfig{DecayRate: 1, CriticalThreshold: 20, CriticalLabel: "Unhappy"},
			FeedAmount:     20,
			SleepAmount:    20,
			PlayAmount:     20,
			PlayHungerCost: 5,
		},
		Leveling: LevelingConfig{
			BaseCoefficient:      100,
			PolynomialPower:      1.5,
			MaxLevel:             1000,
			ExperiencePerFeed:    10,
			ExperiencePerSleep:   10,
			ExperiencePerPlay:    10,
			ExperienceForDefault: 10,
		},
		Actions: ActionsConfig{
			Cooldown: 60 * time.Second,
		},
		Activity: ActivityConfig{
			ExperiencePerPost:   5,
			ExperiencePerThread: 10,
		},
		Duel: DuelConfig{
			Cooldown:        24 * time.Hour,
			Algorithm:       "default",
			WinExperience:   50,
			LossStatPenalty: 10,
		},
		Tutorials: TutorialConfig{
			Enabled: true,
			Rewards: map[string]int64{
				"complete_action":    25,
				"upload_pfp":         25,
				"post_first_message": 25,
				"react_to_post":      25,
			},
		},
	}
	cfg.applyDefaults()
	return cfg
}
