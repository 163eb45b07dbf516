package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
	"warzone-tracker/internal/constants"

	"github.com/joho/godotenv"
	"go.uber.org/fx"
)

type Config struct {
	// Browser-session headers the tracker API expects; an empty
	// user-agent gets served an HTML challenge page.
	TrackerUserAgent string
	TrackerCookie    string

	CachePath     string
	ArchiveDBPath string
	OutputDir     string

	// RequestDelay gaps every outbound API call.
	RequestDelay time.Duration

	// KDPrecision is the number of decimals a match team KD is rounded
	// to. The tracker's own site shows 1; 3 keeps more signal for the
	// daily averages.
	KDPrecision int

	LogLevel string
}

func Load() (*Config, error) {
	// A missing .env file is fine; plain environment variables win.
	_ = godotenv.Load()

	cfg := &Config{
		TrackerUserAgent: getEnv("TRACKER_USER_AGENT", ""),
		TrackerCookie:    getEnv("TRACKER_COOKIE", ""),
		CachePath:        getEnv("CACHE_PATH", "matches.json.gz"),
		ArchiveDBPath:    getEnv("ARCHIVE_DB_PATH", "warzone.db"),
		OutputDir:        getEnv("OUTPUT_DIR", "plots"),
		RequestDelay:     constants.RequestDelay,
		KDPrecision:      1,
		LogLevel:         getEnv("LOG_LEVEL", "info"),
	}

	if v := os.Getenv("REQUEST_DELAY"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("invalid REQUEST_DELAY %q: %w", v, err)
		}
		cfg.RequestDelay = d
	}

	if v := os.Getenv("KD_PRECISION"); v != "" {
		p, err := strconv.Atoi(v)
		if err != nil || (p != 1 && p != 3) {
			return nil, fmt.Errorf("KD_PRECISION must be 1 or 3, got %q", v)
		}
		cfg.KDPrecision = p
	}

	if cfg.TrackerUserAgent == "" {
		return nil, fmt.Errorf("TRACKER_USER_AGENT is required")
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

var Module = fx.Provide(Load)
