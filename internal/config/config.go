// Package config loads server settings from defaults, an optional YAML
// file, and CADENCE_* environment variables, in increasing precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/spf13/viper"

	"github.com/dukerupert/cadence/internal/backup"
)

const envPrefix = "CADENCE"

type Config struct {
	Env             string        `mapstructure:"env" validate:"oneof=development production"`
	Port            string        `mapstructure:"port" validate:"required,numeric"`
	DBPath          string        `mapstructure:"db_path" validate:"required"`
	LogLevel        string        `mapstructure:"log_level" validate:"oneof=debug info warn error"`
	LogFormat       string        `mapstructure:"log_format" validate:"oneof=text json"`
	Timezone        string        `mapstructure:"timezone" validate:"required"`
	JWTSecret       string        `mapstructure:"jwt_secret"`
	SessionTTL      time.Duration `mapstructure:"session_ttl" validate:"min=1m"`
	ConflictRetries uint64        `mapstructure:"conflict_retries" validate:"max=10"`
	AuthRateLimit   int           `mapstructure:"auth_rate_limit" validate:"min=1"`
	OriginPatterns  []string      `mapstructure:"origin_patterns"`
	Backup          Backup        `mapstructure:"backup"`

	location *time.Location
}

// Backup configures encrypted database snapshots. Snapshots are off
// unless S3 is set.
type Backup struct {
	S3         backup.S3Config `mapstructure:"s3"`
	Passphrase string          `mapstructure:"passphrase"`
	Interval   time.Duration   `mapstructure:"interval" validate:"min=0"`
	Retention  time.Duration   `mapstructure:"retention" validate:"min=0"`
}

// Location is the loaded Timezone.
func (c *Config) Location() *time.Location {
	return c.location
}

// Development reports whether the server runs with development defaults.
func (c *Config) Development() bool {
	return c.Env == "development"
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("env", "development")
	v.SetDefault("port", "8080")
	v.SetDefault("db_path", "cadence.db")
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "text")
	v.SetDefault("timezone", "Local")
	v.SetDefault("jwt_secret", "")
	v.SetDefault("session_ttl", 30*24*time.Hour)
	v.SetDefault("conflict_retries", 3)
	v.SetDefault("auth_rate_limit", 10)
	v.SetDefault("origin_patterns", []string{})

	// Every key needs a default for AutomaticEnv to find it on Unmarshal.
	v.SetDefault("backup.s3.endpoint", "")
	v.SetDefault("backup.s3.bucket", "")
	v.SetDefault("backup.s3.region", "us-east-1")
	v.SetDefault("backup.s3.access_key", "")
	v.SetDefault("backup.s3.secret_key", "")
	v.SetDefault("backup.s3.prefix", "cadence")
	v.SetDefault("backup.passphrase", "")
	v.SetDefault("backup.interval", 24*time.Hour)
	v.SetDefault("backup.retention", 30*24*time.Hour)
}

// Load reads path when it is non-empty and exists, then applies the
// environment. A missing file is not an error.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) && !errors.Is(err, os.ErrNotExist) {
				return nil, fmt.Errorf("reading config %s: %w", path, err)
			}
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return fmt.Errorf("invalid config: timezone %q: %w", c.Timezone, err)
	}
	c.location = loc

	if c.JWTSecret == "" {
		if !c.Development() {
			return errors.New("invalid config: jwt_secret is required outside development")
		}
		// Tokens do not survive a restart in development.
		c.JWTSecret = uuid.NewString()
	}

	if c.Backup.S3.Enabled() && c.Backup.Passphrase == "" {
		return errors.New("invalid config: backup.passphrase is required when backup.s3 is set")
	}
	return nil
}
