package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/i474232898/river-hud/internal/conditions"
)

type AppConfig struct {
	Port      string
	LogLevel  string
	LogFormat string

	// HTTPTimeout bounds every outbound upstream request.
	HTTPTimeout time.Duration
	UserAgent   string

	// EarlyWarningTolerance is the slack added to an upstream gauge's lead
	// time before its reading is too old to project.
	EarlyWarningTolerance time.Duration

	// WarmInterval controls how often the cache warmer rebuilds every
	// snapshot. Zero disables the warmer.
	WarmInterval time.Duration

	ShutdownTimeout time.Duration
}

// Load reads configuration from .env and the environment with sensible defaults.
func Load() (*AppConfig, error) {
	if err := godotenv.Load(); err != nil {
		slog.Debug("no .env file loaded", "error", err)
	}
	cfg := &AppConfig{}

	cfg.Port = getenvDefault("PORT", "8080")
	if n, err := strconv.Atoi(cfg.Port); err != nil || n <= 0 || n > 65535 {
		return nil, fmt.Errorf("invalid PORT %q", cfg.Port)
	}

	cfg.LogLevel = strings.ToLower(getenvDefault("LOG_LEVEL", "info"))
	switch cfg.LogLevel {
	case "debug", "info", "warn", "warning", "error":
	default:
		return nil, fmt.Errorf("invalid LOG_LEVEL %q", cfg.LogLevel)
	}

	cfg.LogFormat = strings.ToLower(getenvDefault("LOG_FORMAT", "json"))
	if cfg.LogFormat != "json" && cfg.LogFormat != "text" {
		return nil, fmt.Errorf("invalid LOG_FORMAT %q", cfg.LogFormat)
	}

	var err error
	if cfg.HTTPTimeout, err = getenvDuration("HTTP_TIMEOUT", "10s"); err != nil {
		return nil, err
	}
	if cfg.HTTPTimeout <= 0 {
		return nil, fmt.Errorf("invalid HTTP_TIMEOUT: must be positive")
	}

	cfg.UserAgent = getenvDefault("USER_AGENT", "PittsburghWaterHUD/2.0")

	// Defaults to the gauge TTL so a just-expired upstream reading still counts.
	if cfg.EarlyWarningTolerance, err = getenvDuration("EARLY_WARNING_TOLERANCE", conditions.SourceGauge.TTL().String()); err != nil {
		return nil, err
	}
	if cfg.EarlyWarningTolerance < 0 {
		return nil, fmt.Errorf("invalid EARLY_WARNING_TOLERANCE: must not be negative")
	}

	if cfg.WarmInterval, err = getenvDuration("WARM_INTERVAL", "0s"); err != nil {
		return nil, err
	}
	if cfg.WarmInterval < 0 {
		return nil, fmt.Errorf("invalid WARM_INTERVAL: must not be negative")
	}

	if cfg.ShutdownTimeout, err = getenvDuration("SHUTDOWN_TIMEOUT", "10s"); err != nil {
		return nil, err
	}
	if cfg.ShutdownTimeout <= 0 {
		return nil, fmt.Errorf("invalid SHUTDOWN_TIMEOUT: must be positive")
	}

	return cfg, nil
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvDuration(key, def string) (time.Duration, error) {
	d, err := time.ParseDuration(getenvDefault(key, def))
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}
