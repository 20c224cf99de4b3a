package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Port          string  `mapstructure:"PORT"`
	Env           string  `mapstructure:"ENV"`
	DatabaseURL   string  `mapstructure:"DATABASE_URL"`
	DBMaxConns    int32   `mapstructure:"DB_MAX_CONNS"`
	DBMinConns    int32   `mapstructure:"DB_MIN_CONNS"`
	Timezone      string  `mapstructure:"TIMEZONE"`
	JWTSecret     string  `mapstructure:"JWT_SECRET"`
	MigrationsDir string  `mapstructure:"MIGRATIONS_DIR"`

	// Scheduling defaults.
	SlotMinutes     int `mapstructure:"SLOT_MINUTES"`
	SlotStepMinutes int `mapstructure:"SLOT_STEP_MINUTES"`

	// Dashboard snapshot staleness tolerance, in seconds.
	DashboardTTLSeconds int `mapstructure:"DASHBOARD_TTL_SECONDS"`

	RateLimitRPS   float64 `mapstructure:"RATE_LIMIT_RPS"`
	RateLimitBurst int     `mapstructure:"RATE_LIMIT_BURST"`
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("PORT", "8000")
	v.SetDefault("ENV", "development")
	v.SetDefault("DB_MAX_CONNS", 20)
	v.SetDefault("DB_MIN_CONNS", 5)
	v.SetDefault("TIMEZONE", "America/Mexico_City")
	v.SetDefault("MIGRATIONS_DIR", "migrations")
	v.SetDefault("SLOT_MINUTES", 30)
	v.SetDefault("SLOT_STEP_MINUTES", 30)
	v.SetDefault("DASHBOARD_TTL_SECONDS", 60)
	v.SetDefault("RATE_LIMIT_RPS", 100)
	v.SetDefault("RATE_LIMIT_BURST", 200)

	// Bind env vars explicitly so Unmarshal picks them up
	v.BindEnv("PORT")
	v.BindEnv("ENV")
	v.BindEnv("DATABASE_URL")
	v.BindEnv("DB_MAX_CONNS")
	v.BindEnv("DB_MIN_CONNS")
	v.BindEnv("TIMEZONE")
	v.BindEnv("JWT_SECRET")
	v.BindEnv("MIGRATIONS_DIR")
	v.BindEnv("SLOT_MINUTES")
	v.BindEnv("SLOT_STEP_MINUTES")
	v.BindEnv("DASHBOARD_TTL_SECONDS")
	v.BindEnv("RATE_LIMIT_RPS")
	v.BindEnv("RATE_LIMIT_BURST")

	// Try reading .env file, but don't fail if missing
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	return cfg, nil
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

// IsProduction returns true when the server is configured for production mode.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// Location resolves the configured reference timezone. All day-boundary math
// in the scheduling engine happens in this zone.
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}

// Validate checks that the configuration is safe to run. In production a JWT
// secret is required so that actor identity is enforced.
func (c *Config) Validate() error {
	if c.IsProduction() && c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required in production")
	}
	if c.SlotMinutes < 1 || c.SlotMinutes > 1440 {
		return fmt.Errorf("SLOT_MINUTES must be between 1 and 1440, got %d", c.SlotMinutes)
	}
	if c.SlotStepMinutes < 1 {
		return fmt.Errorf("SLOT_STEP_MINUTES must be positive, got %d", c.SlotStepMinutes)
	}
	if c.DashboardTTLSeconds < 0 {
		return fmt.Errorf("DASHBOARD_TTL_SECONDS must not be negative, got %d", c.DashboardTTLSeconds)
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	return nil
}
