package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	DatabaseURL   string `yaml:"-"`
	ServerAddress string `yaml:"-"`
	// APIKeyHash is the hex SHA3-256 digest of the shared api key.
	APIKeyHash string `yaml:"-"`
	RedisAddr  string `yaml:"-"`

	Log       LogConfig       `yaml:"log"`
	Database  DatabaseConfig  `yaml:"database"`
	Timeouts  TimeoutConfig   `yaml:"timeouts"`
	Sweeper   SweeperConfig   `yaml:"sweeper"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

type DatabaseConfig struct {
	MaxConnections int32 `yaml:"max_connections"`
}

type TimeoutConfig struct {
	Store      time.Duration `yaml:"store"`
	Statistics time.Duration `yaml:"statistics"`
}

type SweeperConfig struct {
	Cron    string        `yaml:"cron"`
	Timeout time.Duration `yaml:"timeout"`
}

type RateLimitConfig struct {
	// Rate is tokens per second; Burst is the bucket size and, with Redis,
	// the per-window request limit.
	Rate   float64       `yaml:"rate"`
	Burst  float64       `yaml:"burst"`
	Window time.Duration `yaml:"window"`
}

func Default() *Config {
	return &Config{
		Log:      LogConfig{Level: "debug", Format: "text"},
		Database: DatabaseConfig{MaxConnections: 20},
		Timeouts: TimeoutConfig{
			Store:      300 * time.Millisecond,
			Statistics: 300 * time.Millisecond,
		},
		Sweeper: SweeperConfig{
			Cron:    "1/60 * * * * *",
			Timeout: 30 * time.Second,
		},
		RateLimit: RateLimitConfig{Rate: 1, Burst: 10, Window: 10 * time.Second},
	}
}

// Load reads .env when present, applies the YAML file named by CONFIG_FILE,
// then the environment. DATABASE_URL and SERVER_ADDRESS are required.
func Load() (*Config, error) {
	_ = godotenv.Load() // Ignore error if .env not found (e.g. prod)

	cfg := Default()
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	cfg.ServerAddress = os.Getenv("SERVER_ADDRESS")
	cfg.APIKeyHash = strings.ToLower(strings.TrimSpace(os.Getenv("ENCRYPTED_API_KEY")))
	cfg.RedisAddr = os.Getenv("REDIS_ADDR")
	cfg.Log.Level = getEnv("LOG_LEVEL", cfg.Log.Level)
	cfg.Log.Format = getEnv("LOG_FORMAT", cfg.Log.Format)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

func (c *Config) Validate() error {
	var errs []error
	if c.DatabaseURL == "" {
		errs = append(errs, errors.New("environment variable DATABASE_URL is required"))
	}
	if c.ServerAddress == "" {
		errs = append(errs, errors.New("environment variable SERVER_ADDRESS is required"))
	}
	if c.Database.MaxConnections <= 0 {
		errs = append(errs, fmt.Errorf("database.max_connections must be positive, got %d", c.Database.MaxConnections))
	}
	if c.Timeouts.Store <= 0 {
		errs = append(errs, fmt.Errorf("timeouts.store must be positive, got %s", c.Timeouts.Store))
	}
	if c.Timeouts.Statistics <= 0 {
		errs = append(errs, fmt.Errorf("timeouts.statistics must be positive, got %s", c.Timeouts.Statistics))
	}
	if c.Sweeper.Cron == "" {
		errs = append(errs, errors.New("sweeper.cron is required"))
	}
	if c.RateLimit.Rate <= 0 || c.RateLimit.Burst <= 0 {
		errs = append(errs, errors.New("rate_limit.rate and rate_limit.burst must be positive"))
	}
	if c.RateLimit.Window <= 0 {
		errs = append(errs, fmt.Errorf("rate_limit.window must be positive, got %s", c.RateLimit.Window))
	}
	return errors.Join(errs...)
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}
