package config

import (
	"fmt"
	"time"

	"github.com/Netflix/go-env"
)

type Config struct {
	Quality      int    `env:"SQUEEZE_QUALITY,default=70"`
	BudgetMB     int    `env:"SQUEEZE_BUDGET_MB,default=50"`
	Workers      int    `env:"SQUEEZE_WORKERS,default=4"`
	StaggerMS    int    `env:"SQUEEZE_STAGGER_MS,default=100"`
	DiscardStale bool   `env:"SQUEEZE_DISCARD_STALE,default=false"`
	LogLevel     string `env:"SQUEEZE_LOG_LEVEL,default=info"`
	LogFile      string `env:"SQUEEZE_LOG_FILE"`
}

func Load() (*Config, error) {
	var cfg Config
	_, err := env.UnmarshalFromEnviron(&cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	if c.Quality < 1 || c.Quality > 100 {
		return fmt.Errorf("quality must be between 1 and 100, got %d", c.Quality)
	}
	if c.BudgetMB <= 0 {
		return fmt.Errorf("budget must be positive, got %d MB", c.BudgetMB)
	}
	if c.Workers <= 0 {
		return fmt.Errorf("workers must be positive, got %d", c.Workers)
	}
	if c.StaggerMS < 0 {
		return fmt.Errorf("stagger must not be negative, got %d ms", c.StaggerMS)
	}
	return nil
}

// BudgetKB is the batch ceiling on summed original sizes.
func (c *Config) BudgetKB() float64 {
	return float64(c.BudgetMB) * 1024
}

func (c *Config) Stagger() time.Duration {
	return time.Duration(c.StaggerMS) * time.Millisecond
}
