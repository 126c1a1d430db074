package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"

	"gopkg.in/yaml.v3"
)

// Config is the runtime configuration of the server and the operator CLI.
// File values are optional; environment variables win over the file.
type Config struct {
	Timezone  string         `yaml:"timezone"`
	CompanyID int64          `yaml:"company_id"`
	DB        DBConfig       `yaml:"db"`
	Provider  ProviderConfig `yaml:"provider"`
	Cache     CacheConfig    `yaml:"cache"`
	Server    ServerConfig   `yaml:"server"`
	Log       LogConfig      `yaml:"log"`
}

type DBConfig struct {
	Driver string `yaml:"driver"`
	DSN    string `yaml:"dsn"`
}

type ProviderConfig struct {
	// APIKey is only ever read from the environment.
	APIKey          string        `yaml:"-"`
	BaseURL         string        `yaml:"base_url"`
	SingleTimeout   time.Duration `yaml:"single_timeout"`
	BatchTimeout    time.Duration `yaml:"batch_timeout"`
	MaxAttempts     int           `yaml:"max_attempts"`
	Traffic         bool          `yaml:"traffic"`
	BreakerFailures int           `yaml:"breaker_failures"`
	BreakerReset    time.Duration `yaml:"breaker_reset"`
}

type CacheConfig struct {
	RetentionMonths     int      `yaml:"retention_months"`
	TopN                int      `yaml:"top_n"`
	CostPerCall         float64  `yaml:"cost_per_call"`
	PreloadDestinations []string `yaml:"preload_destinations"`
}

type ServerConfig struct {
	Port string `yaml:"port"`
}

type LogConfig struct {
	Level string `yaml:"level"`
	JSON  bool   `yaml:"json"`
}

// Default returns the shipped configuration.
func Default() Config {
	return Config{
		Timezone:  "Europe/Berlin",
		CompanyID: 1,
		DB: DBConfig{
			Driver: "sqlite",
			DSN:    "data/ridelog.db",
		},
		Provider: ProviderConfig{
			BaseURL:         "https://maps.googleapis.com/maps/api",
			SingleTimeout:   10 * time.Second,
			BatchTimeout:    30 * time.Second,
			MaxAttempts:     4,
			Traffic:         true,
			BreakerFailures: 5,
			BreakerReset:    time.Minute,
		},
		Cache: CacheConfig{
			RetentionMonths: 6,
			TopN:            10,
			CostPerCall:     0.005,
		},
		Server: ServerConfig{Port: "8080"},
		Log:    LogConfig{Level: "info"},
	}
}

// Load reads a YAML file over the defaults. An empty path yields the defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	if strings.TrimSpace(path) == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return cfg, fmt.Errorf("load config: read %q: %w", path, err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("load config: parse %q: %w", path, err)
	}

	return cfg, nil
}

// FromEnv loads the file named by RIDELOG_CONFIG (if any), applies
// environment overrides and validates the result.
func FromEnv() (Config, error) {
	cfg, err := Load(Get("RIDELOG_CONFIG", ""))
	if err != nil {
		return cfg, err
	}

	if err := cfg.applyEnv(); err != nil {
		return cfg, err
	}

	return cfg, cfg.Validate()
}

func (c *Config) applyEnv() error {
	c.Timezone = Get("TIMEZONE", c.Timezone)
	c.DB.Driver = Get("DB_DRIVER", c.DB.Driver)
	c.Server.Port = Get("PORT", c.Server.Port)
	c.Log.Level = Get("LOG_LEVEL", c.Log.Level)
	c.Provider.APIKey = strings.TrimSpace(os.Getenv("GOOGLE_MAPS_API_KEY"))
	c.Provider.BaseURL = Get("GOOGLE_MAPS_BASE_URL", c.Provider.BaseURL)

	// DATABASE_URL names a Postgres server and implies the pgx driver
	// unless DB_DRIVER says otherwise.
	if url := os.Getenv("DATABASE_URL"); url != "" {
		c.DB.DSN = url
		if os.Getenv("DB_DRIVER") == "" {
			c.DB.Driver = "pgx"
		}
	}
	c.DB.DSN = Get("DB_PATH", c.DB.DSN)

	if v := os.Getenv("COMPANY_ID"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("config: COMPANY_ID %q: %w", v, err)
		}
		c.CompanyID = id
	}

	return nil
}

// Validate rejects settings no component can run with.
func (c Config) Validate() error {
	var errs []error

	switch c.DB.Driver {
	case "sqlite", "pgx":
	default:
		errs = append(errs, fmt.Errorf("db.driver must be sqlite or pgx, got %q", c.DB.Driver))
	}
	if strings.TrimSpace(c.DB.DSN) == "" {
		errs = append(errs, errors.New("db.dsn is required"))
	}
	if c.Provider.SingleTimeout <= 0 || c.Provider.BatchTimeout <= 0 {
		errs = append(errs, errors.New("provider timeouts must be positive"))
	}
	if c.Provider.MaxAttempts < 1 {
		errs = append(errs, errors.New("provider.max_attempts must be at least 1"))
	}
	if c.Cache.RetentionMonths < 1 {
		errs = append(errs, errors.New("cache.retention_months must be at least 1"))
	}
	if c.CompanyID < 1 {
		errs = append(errs, errors.New("company_id must be positive"))
	}
	if _, err := c.Location(); err != nil {
		errs = append(errs, err)
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}

// Location resolves the civil time zone all timestamps are stored in.
func (c Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}

// Get returns the environment value of key or fallback when unset.
func Get(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
