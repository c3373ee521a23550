// Package config validates required environment configuration and layers
// optional operator defaults on top via viper. Required variables fail fast
// at startup with every problem reported at once, the way the teacher's
// ValidateEnv does; optional variables (rate limits, default game settings,
// idle TTL) come from viper so they can also be supplied through a
// SOUNDCLASH_-prefixed env var or an optional config.yaml without a second
// required-field check.
package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/BenArtzi4/Sound-Clash-sub000/internal/logging"
)

// Config holds validated, ready-to-use configuration for the server.
type Config struct {
	// Required
	Port        string
	CatalogAddr string

	// Optional, soft-defaulted via viper
	GoEnv            string
	LogLevel         string
	AllowedOrigins   []string
	IdleTTL          time.Duration
	DefaultMaxRounds int
	DefaultGenres    []string

	RateLimitAPIGlobal string
	RateLimitWsConnect string
}

// Load validates required environment variables and layers viper-sourced
// defaults on top. It returns every validation problem at once rather than
// failing on the first one.
func Load() (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("SOUNDCLASH")
	v.AutomaticEnv()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	v.SetDefault("go_env", "production")
	v.SetDefault("log_level", "info")
	v.SetDefault("allowed_origins", "http://localhost:3000")
	v.SetDefault("idle_ttl", "4h")
	v.SetDefault("default_max_rounds", 10)
	v.SetDefault("default_genres", "rock,pop,soundtrack")
	v.SetDefault("rate_limit_api_global", "100-M")
	v.SetDefault("rate_limit_ws_connect", "20-M")
	v.SetDefault("port", "")
	v.SetDefault("catalog_addr", "")

	// A missing config.yaml is not an error; its absence just means every
	// value comes from env vars or the defaults above.
	if err := v.ReadInConfig(); err != nil {
		if _, notFound := err.(viper.ConfigFileNotFoundError); !notFound {
			return nil, fmt.Errorf("reading config.yaml: %w", err)
		}
	}

	var problems []string

	cfg := &Config{}

	cfg.Port = v.GetString("port")
	if cfg.Port == "" {
		problems = append(problems, "SOUNDCLASH_PORT is required")
	} else if port, err := strconv.Atoi(cfg.Port); err != nil || port < 1 || port > 65535 {
		problems = append(problems, fmt.Sprintf("SOUNDCLASH_PORT must be a valid port number (got %q)", cfg.Port))
	}

	cfg.CatalogAddr = v.GetString("catalog_addr")
	if cfg.CatalogAddr == "" {
		problems = append(problems, "SOUNDCLASH_CATALOG_ADDR is required")
	}

	cfg.GoEnv = v.GetString("go_env")
	cfg.LogLevel = v.GetString("log_level")
	cfg.AllowedOrigins = splitCSV(v.GetString("allowed_origins"))
	cfg.IdleTTL = v.GetDuration("idle_ttl")
	cfg.DefaultMaxRounds = v.GetInt("default_max_rounds")
	cfg.DefaultGenres = splitCSV(v.GetString("default_genres"))
	cfg.RateLimitAPIGlobal = v.GetString("rate_limit_api_global")
	cfg.RateLimitWsConnect = v.GetString("rate_limit_ws_connect")

	if cfg.DefaultMaxRounds < 1 {
		problems = append(problems, "default_max_rounds must be at least 1")
	}

	if len(problems) > 0 {
		return nil, fmt.Errorf("configuration invalid:\n  - %s", strings.Join(problems, "\n  - "))
	}

	logValidatedConfig(cfg)

	return cfg, nil
}

func splitCSV(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

func logValidatedConfig(cfg *Config) {
	logging.Info(nil, "configuration loaded",
		zap.String("port", cfg.Port),
		zap.String("catalog_addr", cfg.CatalogAddr),
		zap.String("go_env", cfg.GoEnv),
		zap.String("log_level", cfg.LogLevel),
		zap.Duration("idle_ttl", cfg.IdleTTL),
		zap.Int("default_max_rounds", cfg.DefaultMaxRounds),
	)
}
