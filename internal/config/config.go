package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"daily-quiz-service/internal/app"
	"daily-quiz-service/internal/questiongen"
)

type Config struct {
	Server struct {
		Port string `yaml:"port"`
	} `yaml:"server"`
	Redis struct {
		Addr       string `yaml:"addr"`
		Password   string `yaml:"password"`
		DB         int    `yaml:"db"`
		TTL        string `yaml:"ttl"`
		SessionTTL string `yaml:"session_ttl"`
	} `yaml:"redis"`
	Postgres struct {
		URL string `yaml:"url"`
	} `yaml:"postgres"`
	Activity struct {
		TTL string `yaml:"ttl"`
	} `yaml:"activity"`
	Game Game `yaml:"game"`
	Log  struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"log"`
}

// Game holds the daily quiz rules.
type Game struct {
	WindowStartHour  int    `yaml:"window_start_hour"`
	WindowEndHour    int    `yaml:"window_end_hour"`
	Timezone         string `yaml:"timezone"`
	DailyLimit       int    `yaml:"daily_limit"`
	MinQuestions     int    `yaml:"min_questions"`
	MaxQuestions     int    `yaml:"max_questions"`
	SessionBudget    string `yaml:"session_budget"`
	TickInterval     string `yaml:"tick_interval"`
	ImpulseThreshold string `yaml:"impulse_threshold"`
	DailyBudget      string `yaml:"daily_budget"`
	ShareCategory    string `yaml:"share_category"`
}

// Default returns the configuration used when a key is absent from the file.
func Default() Config {
	cfg := Config{}
	cfg.Server.Port = "8080"
	cfg.Redis.TTL = "5m"
	cfg.Redis.SessionTTL = "24h"
	cfg.Activity.TTL = "1m"
	cfg.Game = Game{
		WindowStartHour:  21,
		WindowEndHour:    23,
		Timezone:         "Local",
		DailyLimit:       1,
		MinQuestions:     3,
		MaxQuestions:     5,
		SessionBudget:    "300s",
		TickInterval:     "1s",
		ImpulseThreshold: "200",
		DailyBudget:      "1000",
		ShareCategory:    questiongen.CategoryFood,
	}
	cfg.Log.Level = "info"
	cfg.Log.Format = "json"
	return cfg
}

// Load reads YAML config from path on top of Default, then applies
// PORT, REDIS_ADDR, POSTGRES_URL and LOG_LEVEL from the environment.
// A missing file is not an error.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return cfg, err
	default:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse %s: %w", path, err)
		}
	}
	cfg.applyEnv()
	return cfg, cfg.Validate()
}

func (c *Config) applyEnv() {
	if v := os.Getenv("PORT"); v != "" {
		c.Server.Port = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		c.Redis.Addr = v
	}
	if v := os.Getenv("POSTGRES_URL"); v != "" {
		c.Postgres.URL = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
}

// Validate rejects rule sets the quiz cannot run with.
func (c Config) Validate() error {
	g := c.Game
	var errs []error
	if g.WindowStartHour < 0 || g.WindowStartHour > 23 || g.WindowEndHour < 0 || g.WindowEndHour > 23 {
		errs = append(errs, fmt.Errorf("game window hours must be within 0-23, got %d-%d", g.WindowStartHour, g.WindowEndHour))
	}
	if g.WindowStartHour == g.WindowEndHour {
		errs = append(errs, fmt.Errorf("game window is empty (%02d:00-%02d:00)", g.WindowStartHour, g.WindowEndHour))
	}
	if g.DailyLimit < 1 {
		errs = append(errs, fmt.Errorf("game daily_limit must be at least 1, got %d", g.DailyLimit))
	}
	if g.MinQuestions < 3 || g.MaxQuestions > 5 || g.MinQuestions > g.MaxQuestions {
		errs = append(errs, fmt.Errorf("game questions must satisfy 3 <= min <= max <= 5, got %d..%d", g.MinQuestions, g.MaxQuestions))
	}
	if _, err := time.LoadLocation(g.Timezone); err != nil {
		errs = append(errs, fmt.Errorf("game timezone: %w", err))
	}
	for name, raw := range map[string]string{"session_budget": g.SessionBudget, "tick_interval": g.TickInterval} {
		if d, err := time.ParseDuration(raw); err != nil || d <= 0 {
			errs = append(errs, fmt.Errorf("game %s must be a positive duration, got %q", name, raw))
		}
	}
	for name, raw := range map[string]string{"impulse_threshold": g.ImpulseThreshold, "daily_budget": g.DailyBudget} {
		if d, err := decimal.NewFromString(raw); err != nil || !d.IsPositive() {
			errs = append(errs, fmt.Errorf("game %s must be a positive amount, got %q", name, raw))
		}
	}
	return errors.Join(errs...)
}

// GameConfig converts the game section into the service rule set.
func (c Config) GameConfig() (app.GameConfig, error) {
	loc, err := time.LoadLocation(c.Game.Timezone)
	if err != nil {
		return app.GameConfig{}, fmt.Errorf("game timezone: %w", err)
	}
	def := app.DefaultGameConfig()
	return app.GameConfig{
		Window:        app.Window{StartHour: c.Game.WindowStartHour, EndHour: c.Game.WindowEndHour},
		Location:      loc,
		DailyLimit:    c.Game.DailyLimit,
		MinQuestions:  c.Game.MinQuestions,
		MaxQuestions:  c.Game.MaxQuestions,
		SessionBudget: TTLDuration(c.Game.SessionBudget, def.SessionBudget),
		TickInterval:  TTLDuration(c.Game.TickInterval, def.TickInterval),
	}, nil
}

// CatalogConfig returns the question archetype thresholds.
func (c Config) CatalogConfig() questiongen.CatalogConfig {
	cfg := questiongen.DefaultCatalogConfig()
	if d, err := decimal.NewFromString(c.Game.ImpulseThreshold); err == nil {
		cfg.ImpulseThreshold = d
	}
	if d, err := decimal.NewFromString(c.Game.DailyBudget); err == nil {
		cfg.DailyBudget = d
	}
	if v := strings.ToLower(strings.TrimSpace(c.Game.ShareCategory)); v != "" {
		cfg.ShareCategory = v
	}
	return cfg
}

// TTLDuration parses a duration string or returns the fallback if empty.
func TTLDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d
	}
	return fallback
}
