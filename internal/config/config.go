package config

import (
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
)

// Config is the top-level application configuration, loaded from a TOML
// file with secrets overridable from the environment.
type Config struct {
	Server       ServerConfig       `toml:"server"`
	Auth         AuthConfig         `toml:"auth"`
	Geocoding    GeocodingConfig    `toml:"geocoding"`
	Optimization OptimizationConfig `toml:"optimization"`
	Cache        CacheConfig        `toml:"cache"`
	Storage      StorageConfig      `toml:"storage"`
	Reports      ReportsConfig      `toml:"reports"`
	Logging      LoggingConfig      `toml:"logging"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Host               string   `toml:"host"`
	Port               int      `toml:"port"`
	CORSAllowedOrigins []string `toml:"cors_allowed_origins"`
	StaticFilesDir     string   `toml:"static_files_dir"`
	MaxUploadSizeMB    int      `toml:"max_upload_size_mb"`
	ReadTimeoutSecs    int      `toml:"read_timeout_secs"`
	WriteTimeoutSecs   int      `toml:"write_timeout_secs"`
}

// AuthConfig contains login and token settings. JWTSecret, LoginEmail and
// LoginPassword may be overridden via JWT_SECRET, LOGIN_EMAIL and
// LOGIN_PASSWORD environment variables.
type AuthConfig struct {
	JWTSecret     string `toml:"jwt_secret"`
	LoginEmail    string `toml:"login_email"`
	LoginPassword string `toml:"login_password"`
	TokenTTLHours int    `toml:"token_ttl_hours"`
}

// GeocodingConfig contains settings for the external geocoding service.
type GeocodingConfig struct {
	BaseURL            string  `toml:"base_url"`
	APIKey             string  `toml:"api_key"` // overridable via GEOCODING_API_KEY
	TimeoutSecs        int     `toml:"timeout_secs"`
	RequestDelayMS     int     `toml:"request_delay_ms"`
	ProximityRadiusM   int     `toml:"proximity_radius_m"`
	AddressSearchScore float64 `toml:"address_search_score"`
}

// OptimizationConfig contains settings for the external route-optimization
// service.
type OptimizationConfig struct {
	BaseURL           string `toml:"base_url"`
	APIKey            string `toml:"api_key"` // overridable via OPTIMIZATION_API_KEY
	PollIntervalSecs  int    `toml:"poll_interval_secs"`
	PollTimeoutSecs   int    `toml:"poll_timeout_secs"`
	SubmitConcurrency int    `toml:"submit_concurrency"`
	PollConcurrency   int    `toml:"poll_concurrency"`
	// DepotLocations maps an uploaded file-name prefix to the depot
	// "lat,lng" used as the vehicle start/end when the client supplies none.
	DepotLocations map[string]string `toml:"depot_locations"`
}

// CacheConfig contains geocode cache persistence settings.
type CacheConfig struct {
	FilePath   string `toml:"file_path"`
	MaxAgeDays int    `toml:"max_age_days"`
}

// StorageConfig contains settings for the processed-upload store.
type StorageConfig struct {
	SQLitePath string `toml:"sqlite_path"`
}

// ReportsConfig contains report-layout settings that vary per deployment.
type ReportsConfig struct {
	// DayDates maps a POC report day letter (M/T/W/R/F) to a calendar date
	// (YYYY-MM-DD) used to stamp route start/end times.
	DayDates map[string]string `toml:"day_dates"`
	// EquipmentTypes is the vocabulary of equipment-type codes recognized
	// in Omnitracs reports.
	EquipmentTypes []string `toml:"equipment_types"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// Default returns a configuration with sensible defaults for local use.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:             "0.0.0.0",
			Port:             5001,
			StaticFilesDir:   "dist",
			MaxUploadSizeMB:  10,
			ReadTimeoutSecs:  30,
			WriteTimeoutSecs: 300,
		},
		Auth: AuthConfig{
			TokenTTLHours: 96,
		},
		Geocoding: GeocodingConfig{
			BaseURL:            "https://api.nextbillion.io/h/discover",
			TimeoutSecs:        10,
			RequestDelayMS:     50,
			ProximityRadiusM:   5000,
			AddressSearchScore: 0.75,
		},
		Optimization: OptimizationConfig{
			BaseURL:           "https://api.nextbillion.io/optimization/v2",
			PollIntervalSecs:  5,
			PollTimeoutSecs:   600,
			SubmitConcurrency: 12,
			PollConcurrency:   8,
		},
		Cache: CacheConfig{
			FilePath:   "data/geocode-cache.json",
			MaxAgeDays: 30,
		},
		Storage: StorageConfig{
			SQLitePath: "data/uploads.db",
		},
		Reports: ReportsConfig{
			EquipmentTypes: []string{"14BAY", "32LG", "28LG", "40LG", "18BT", "48LG", "48FT"},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// Load reads the TOML file at path on top of the defaults and applies
// environment overrides for secrets. A missing file is not an error; the
// defaults are returned.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			if _, err := toml.DecodeFile(path, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
			}
		}
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("JWT_SECRET"); v != "" {
		cfg.Auth.JWTSecret = v
	}
	if v := os.Getenv("LOGIN_EMAIL"); v != "" {
		cfg.Auth.LoginEmail = v
	}
	if v := os.Getenv("LOGIN_PASSWORD"); v != "" {
		cfg.Auth.LoginPassword = v
	}
	if v := os.Getenv("GEOCODING_API_KEY"); v != "" {
		cfg.Geocoding.APIKey = v
	}
	if v := os.Getenv("OPTIMIZATION_API_KEY"); v != "" {
		cfg.Optimization.APIKey = v
	}
}

// Validate checks settings that would otherwise fail at an awkward moment.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if c.Geocoding.TimeoutSecs <= 0 {
		return fmt.Errorf("geocoding timeout must be positive, got %d", c.Geocoding.TimeoutSecs)
	}
	if c.Cache.MaxAgeDays <= 0 {
		return fmt.Errorf("cache max age must be positive, got %d", c.Cache.MaxAgeDays)
	}
	for day := range c.Reports.DayDates {
		switch day {
		case "M", "T", "W", "R", "F":
		default:
			return fmt.Errorf("invalid day letter in reports.day_dates: %q", day)
		}
	}
	return nil
}

// GeocodingTimeout returns the geocoding request timeout as a duration.
func (c *Config) GeocodingTimeout() time.Duration {
	return time.Duration(c.Geocoding.TimeoutSecs) * time.Second
}

// RequestDelay returns the inter-request delay for geocoding calls.
func (c *Config) RequestDelay() time.Duration {
	return time.Duration(c.Geocoding.RequestDelayMS) * time.Millisecond
}

// PollInterval returns the optimization polling interval.
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.Optimization.PollIntervalSecs) * time.Second
}
