// Package config reads server settings from the environment. A .env
// file, if present, is loaded by the entrypoint before this runs.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config is the full server configuration.
type Config struct {
	// Addr is the HTTP listen address.
	Addr string

	// TableSize is how many players each game seats.
	TableSize int

	// ReactionTimeout bounds block/challenge windows.
	ReactionTimeout time.Duration

	// LogLevel is a logrus level name.
	LogLevel string

	// RedisAddr enables the game historian when non-empty.
	RedisAddr string

	// AllowedOrigins restricts websocket origins; empty allows all.
	AllowedOrigins []string
}

// Load reads OVERTHROW_* variables, falling back to defaults.
func Load() (Config, error) {
	cfg := Config{
		Addr:            envOr("OVERTHROW_ADDR", ":8080"),
		LogLevel:        envOr("OVERTHROW_LOG_LEVEL", "info"),
		RedisAddr:       os.Getenv("OVERTHROW_REDIS_ADDR"),
		ReactionTimeout: 10 * time.Second,
		TableSize:       2,
	}

	if v := os.Getenv("OVERTHROW_TABLE_SIZE"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return Config{}, fmt.Errorf("config: OVERTHROW_TABLE_SIZE: %w", err)
		}
		cfg.TableSize = n
	}
	if v := os.Getenv("OVERTHROW_REACTION_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return Config{}, fmt.Errorf("config: OVERTHROW_REACTION_TIMEOUT: %w", err)
		}
		cfg.ReactionTimeout = d
	}
	if v := os.Getenv("OVERTHROW_ALLOWED_ORIGINS"); v != "" {
		for _, origin := range strings.Split(v, ",") {
			if origin = strings.TrimSpace(origin); origin != "" {
				cfg.AllowedOrigins = append(cfg.AllowedOrigins, origin)
			}
		}
	}
	return cfg, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
