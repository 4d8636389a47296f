package config

import (
	"strings"
	"testing"
	"time"
)

func setMandatory(t *testing.T) {
	t.Helper()
	t.Setenv("GCP_AIR_QUALITY_API_KEY", "gcp-key")
	t.Setenv("GCP_PROJECT_ID", "project-1")
	t.Setenv("OPENWEATHER_API_KEY", "ow-key")
}

func clearOptional(t *testing.T) {
	t.Helper()
	for _, v := range []string{
		"COLLECT_INTERVAL", "HTTP_TIMEOUT", "DATA_DIR", "CLEANUP_DAYS",
		"MONGO_URI", "MONGO_DATABASE", "WEBHOOK_URL", "WEBHOOK_SECRET",
		"CUSTOM_API_URL", "CUSTOM_API_KEY", "DATABASE_URL", "PORT",
		"DEFAULT_LATITUDE", "DEFAULT_LONGITUDE", "DEFAULT_CITY", "DEFAULT_COUNTRY",
	} {
		t.Setenv(v, "")
	}
}

func TestLoadFailsWithoutMandatoryVars(t *testing.T) {
	setMandatory(t)
	clearOptional(t)
	t.Setenv("OPENWEATHER_API_KEY", "")

	_, err := Load()
	if err == nil {
		t.Fatal("expected error for missing mandatory variable")
	}
	if !strings.Contains(err.Error(), "OPENWEATHER_API_KEY") {
		t.Fatalf("error should name the missing variable, got: %v", err)
	}
}

func TestLoadDefaults(t *testing.T) {
	setMandatory(t)
	clearOptional(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.CollectInterval != time.Hour {
		t.Errorf("expected default interval 1h, got %v", cfg.CollectInterval)
	}
	if cfg.HTTPTimeout != 30*time.Second {
		t.Errorf("expected default timeout 30s, got %v", cfg.HTTPTimeout)
	}
	if cfg.DataDir != "data" {
		t.Errorf("expected default data dir, got %q", cfg.DataDir)
	}
	if cfg.CleanupDays != 7 {
		t.Errorf("expected default cleanup days 7, got %d", cfg.CleanupDays)
	}
	if cfg.MongoDatabase != "meteo" {
		t.Errorf("expected default mongo database, got %q", cfg.MongoDatabase)
	}
	if cfg.Port != "8080" {
		t.Errorf("expected default port, got %q", cfg.Port)
	}

	// Paris fallback.
	if cfg.DefaultLocation.Latitude != defaultLatitude || cfg.DefaultLocation.Longitude != defaultLongitude {
		t.Errorf("expected Paris fallback, got %+v", cfg.DefaultLocation)
	}
}

func TestLoadExplicitValues(t *testing.T) {
	setMandatory(t)
	clearOptional(t)
	t.Setenv("COLLECT_INTERVAL", "15m")
	t.Setenv("HTTP_TIMEOUT", "5s")
	t.Setenv("DATA_DIR", "/tmp/meteo")
	t.Setenv("CLEANUP_DAYS", "30")
	t.Setenv("DEFAULT_LATITUDE", "43.6045")
	t.Setenv("DEFAULT_LONGITUDE", "1.444")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.CollectInterval != 15*time.Minute {
		t.Errorf("expected 15m interval, got %v", cfg.CollectInterval)
	}
	if cfg.HTTPTimeout != 5*time.Second {
		t.Errorf("expected 5s timeout, got %v", cfg.HTTPTimeout)
	}
	if cfg.DataDir != "/tmp/meteo" {
		t.Errorf("expected explicit data dir, got %q", cfg.DataDir)
	}
	if cfg.CleanupDays != 30 {
		t.Errorf("expected cleanup days 30, got %d", cfg.CleanupDays)
	}
	if cfg.DefaultLocation.Latitude != 43.6045 || cfg.DefaultLocation.Longitude != 1.444 {
		t.Errorf("unexpected default location: %+v", cfg.DefaultLocation)
	}
}

func TestLoadRejectsInvalidDurations(t *testing.T) {
	setMandatory(t)
	clearOptional(t)
	t.Setenv("COLLECT_INTERVAL", "soon")

	if _, err := Load(); err == nil {
		t.Fatal("expected error for invalid COLLECT_INTERVAL")
	}
}

func TestLoadRejectsPartialCoordinate(t *testing.T) {
	setMandatory(t)
	clearOptional(t)
	t.Setenv("DEFAULT_LATITUDE", "43.6045")

	if _, err := Load(); err == nil {
		t.Fatal("expected error when only one coordinate component is set")
	}
}

func TestMissingMandatory(t *testing.T) {
	setMandatory(t)
	if missing := MissingMandatory(); len(missing) != 0 {
		t.Fatalf("expected nothing missing, got %v", missing)
	}

	t.Setenv("GCP_PROJECT_ID", "")
	missing := MissingMandatory()
	if len(missing) != 1 || missing[0] != "GCP_PROJECT_ID" {
		t.Fatalf("expected only GCP_PROJECT_ID missing, got %v", missing)
	}
}

func TestGetenvInt(t *testing.T) {
	t.Setenv("SOME_INT", "42")
	if got := getenvInt("SOME_INT", 7); got != 42 {
		t.Errorf("expected 42, got %d", got)
	}
	t.Setenv("SOME_INT", "not-a-number")
	if got := getenvInt("SOME_INT", 7); got != 7 {
		t.Errorf("expected fallback 7, got %d", got)
	}
}
