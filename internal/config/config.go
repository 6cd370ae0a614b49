package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Server       ServerConfig       `yaml:"server" envPrefix:"SERVER_"`
	Log          LogConfig          `yaml:"log" envPrefix:"LOG_"`
	Redis        RedisConfig        `yaml:"redis" envPrefix:"REDIS_"`
	Postgres     PostgresConfig     `yaml:"postgres" envPrefix:"POSTGRES_"`
	Quiz         QuizConfig         `yaml:"quiz" envPrefix:"QUIZ_"`
	Gamification GamificationConfig `yaml:"gamification" envPrefix:"GAMIFICATION_"`
	Ranking      RankingConfig      `yaml:"ranking" envPrefix:"RANKING_"`
	Schedule     ScheduleConfig     `yaml:"schedule" envPrefix:"SCHEDULE_"`
}

type ServerConfig struct {
	Port string `yaml:"port" env:"PORT"`
}

type LogConfig struct {
	Level  string `yaml:"level" env:"LEVEL"`
	Format string `yaml:"format" env:"FORMAT"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr" env:"ADDR"`
	Password string `yaml:"password" env:"PASSWORD"`
	DB       int    `yaml:"db" env:"DB"`
	TTL      string `yaml:"ttl" env:"TTL"`
}

type PostgresConfig struct {
	URL string `yaml:"url" env:"URL"`
}

type QuizConfig struct {
	TTL string `yaml:"ttl" env:"TTL"`
}

type GamificationConfig struct {
	// Timezone defines calendar days for streaks, daily quizzes and resets.
	Timezone              string `yaml:"timezone" env:"TIMEZONE"`
	ReferralReward        int64  `yaml:"referral_reward" env:"REFERRAL_REWARD"`
	RecomputeOnCompletion bool   `yaml:"recompute_on_completion" env:"RECOMPUTE_ON_COMPLETION"`
}

type RankingConfig struct {
	Workers      int `yaml:"workers" env:"WORKERS"`
	PublishLimit int `yaml:"publish_limit" env:"PUBLISH_LIMIT"`
}

type ScheduleConfig struct {
	Enabled       bool   `yaml:"enabled" env:"ENABLED"`
	DailyReset    string `yaml:"daily_reset" env:"DAILY_RESET"`
	WeeklyReset   string `yaml:"weekly_reset" env:"WEEKLY_RESET"`
	MonthlyReset  string `yaml:"monthly_reset" env:"MONTHLY_RESET"`
	RankRecompute string `yaml:"rank_recompute" env:"RANK_RECOMPUTE"`
}

// Default returns the configuration used for anything the file and environment leave unset.
func Default() Config {
	return Config{
		Server: ServerConfig{Port: "8080"},
		Log:    LogConfig{Level: "info", Format: "json"},
		Redis:  RedisConfig{TTL: "10m"},
		Quiz:   QuizConfig{TTL: "10m"},
		Gamification: GamificationConfig{
			Timezone:              "UTC",
			ReferralReward:        500,
			RecomputeOnCompletion: true,
		},
		Ranking: RankingConfig{Workers: 8, PublishLimit: 100},
		Schedule: ScheduleConfig{
			Enabled:       true,
			DailyReset:    "0 0 * * *",
			WeeklyReset:   "0 0 * * 1",
			MonthlyReset:  "0 0 1 * *",
			RankRecompute: "*/15 * * * *",
		},
	}
}

// Load reads YAML config from path over the defaults, then applies a .env file
// (when present) and environment variables on top.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, err
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse %s: %w", path, err)
		}
	}
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return cfg, fmt.Errorf("load .env: %w", err)
	}
	if err := env.Parse(&cfg); err != nil {
		return cfg, fmt.Errorf("parsing environment: %w", err)
	}
	return cfg, nil
}

// Location resolves the gamification timezone, falling back to UTC.
func (c Config) Location() (*time.Location, error) {
	if c.Gamification.Timezone == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(c.Gamification.Timezone)
	if err != nil {
		return nil, fmt.Errorf("timezone %q: %w", c.Gamification.Timezone, err)
	}
	return loc, nil
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
