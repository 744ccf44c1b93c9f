package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Port != 5001 {
		t.Errorf("Port = %d", cfg.Server.Port)
	}
	if cfg.Geocoding.RequestDelayMS != 50 {
		t.Errorf("RequestDelayMS = %d", cfg.Geocoding.RequestDelayMS)
	}
	if cfg.Optimization.PollIntervalSecs != 5 {
		t.Errorf("PollIntervalSecs = %d", cfg.Optimization.PollIntervalSecs)
	}
	if cfg.Cache.MaxAgeDays != 30 {
		t.Errorf("MaxAgeDays = %d", cfg.Cache.MaxAgeDays)
	}
}

func TestLoadOverridesFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	content := `
[server]
port = 8080

[geocoding]
proximity_radius_m = 2500

[reports.day_dates]
M = "2025-06-02"
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("Port = %d", cfg.Server.Port)
	}
	if cfg.Geocoding.ProximityRadiusM != 2500 {
		t.Errorf("ProximityRadiusM = %d", cfg.Geocoding.ProximityRadiusM)
	}
	if cfg.Reports.DayDates["M"] != "2025-06-02" {
		t.Errorf("DayDates = %v", cfg.Reports.DayDates)
	}
	// Untouched sections keep their defaults.
	if cfg.Geocoding.RequestDelayMS != 50 {
		t.Errorf("RequestDelayMS = %d", cfg.Geocoding.RequestDelayMS)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("GEOCODING_API_KEY", "env-geo-key")
	t.Setenv("JWT_SECRET", "env-secret")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Geocoding.APIKey != "env-geo-key" {
		t.Errorf("APIKey = %q", cfg.Geocoding.APIKey)
	}
	if cfg.Auth.JWTSecret != "env-secret" {
		t.Errorf("JWTSecret = %q", cfg.Auth.JWTSecret)
	}
}

func TestValidate(t *testing.T) {
	cfg := Default()
	cfg.Server.Port = -1
	if err := cfg.Validate(); err == nil {
		t.Error("negative port accepted")
	}

	cfg = Default()
	cfg.Reports.DayDates = map[string]string{"X": "2025-06-02"}
	if err := cfg.Validate(); err == nil {
		t.Error("invalid day letter accepted")
	}

	cfg = Default()
	cfg.Reports.DayDates = map[string]string{"M": "2025-06-02", "F": "2025-06-06"}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate: %v", err)
	}
}
