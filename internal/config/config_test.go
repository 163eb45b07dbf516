package config

import (
	"testing"
	"warzone-tracker/internal/constants"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"TRACKER_USER_AGENT", "TRACKER_COOKIE", "CACHE_PATH",
		"ARCHIVE_DB_PATH", "OUTPUT_DIR", "REQUEST_DELAY",
		"KD_PRECISION", "LOG_LEVEL",
	} {
		t.Setenv(key, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)
	t.Setenv("TRACKER_USER_AGENT", "Mozilla/5.0")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load(): %v", err)
	}

	if cfg.RequestDelay != constants.RequestDelay {
		t.Errorf("RequestDelay = %v, want %v", cfg.RequestDelay, constants.RequestDelay)
	}
	if cfg.KDPrecision != 1 {
		t.Errorf("KDPrecision = %d, want 1", cfg.KDPrecision)
	}
	if cfg.LogLevel != "info" {
		t.Errorf("LogLevel = %q, want info", cfg.LogLevel)
	}
	if cfg.CachePath != "matches.json.gz" {
		t.Errorf("CachePath = %q, want matches.json.gz", cfg.CachePath)
	}
}

func TestLoadRequiresUserAgent(t *testing.T) {
	clearEnv(t)
	if _, err := Load(); err == nil {
		t.Fatal("Load() accepted an empty TRACKER_USER_AGENT")
	}
}

func TestLoadRejectsBadPrecision(t *testing.T) {
	clearEnv(t)
	t.Setenv("TRACKER_USER_AGENT", "Mozilla/5.0")
	t.Setenv("KD_PRECISION", "2")

	if _, err := Load(); err == nil {
		t.Fatal("Load() accepted KD_PRECISION=2")
	}
}

func TestLoadParsesRequestDelay(t *testing.T) {
	clearEnv(t)
	t.Setenv("TRACKER_USER_AGENT", "Mozilla/5.0")
	t.Setenv("REQUEST_DELAY", "5s")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load(): %v", err)
	}
	if cfg.RequestDelay.Seconds() != 5 {
		t.Errorf("RequestDelay = %v, want 5s", cfg.RequestDelay)
	}
}
