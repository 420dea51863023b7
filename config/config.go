// Package config loads the service configuration. Values are layered as
// built-in defaults, then an optional YAML file, then environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
	EnvTest        = "test"
)

// Config is the full service configuration.
type Config struct {
	Server  Server  `yaml:"server"`
	Log     Log     `yaml:"log"`
	CORS    CORS    `yaml:"cors"`
	Library Library `yaml:"library"`
	Workers Workers `yaml:"workers"`
}

// Server configures the HTTP listener.
type Server struct {
	Port            int           `yaml:"port"`
	Env             string        `yaml:"env"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// Addr is the listen address for the HTTP server.
func (s Server) Addr() string {
	return fmt.Sprintf(":%d", s.Port)
}

// Development reports whether internal error details may be exposed.
func (s Server) Development() bool {
	return s.Env == EnvDevelopment
}

// Log selects the logrus level and formatter.
type Log struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// CORS lists the cross-origin rules applied to every route.
type CORS struct {
	AllowOrigins []string `yaml:"allow_origins"`
}

// Library holds the circulation policy.
type Library struct {
	LoanPeriodDays        int     `yaml:"loan_period_days"`
	FineRatePerDay        float64 `yaml:"fine_rate_per_day"`
	MaxActiveReservations int     `yaml:"max_active_reservations"`
	DefaultMaxWaitDays    int     `yaml:"default_max_wait_days"`
}

// Workers configures background jobs.
type Workers struct {
	ExpiryInterval time.Duration `yaml:"expiry_interval"`
}

// Default returns the configuration used when nothing else is given.
func Default() Config {
	return Config{
		Server: Server{
			Port:            3000,
			Env:             EnvDevelopment,
			ReadTimeout:     10 * time.Second,
			WriteTimeout:    10 * time.Second,
			ShutdownTimeout: 5 * time.Second,
		},
		Log: Log{
			Level:  "info",
			Format: "text",
		},
		CORS: CORS{
			AllowOrigins: []string{"*"},
		},
		Library: Library{
			LoanPeriodDays:        14,
			FineRatePerDay:        0.50,
			MaxActiveReservations: 3,
			DefaultMaxWaitDays:    14,
		},
		Workers: Workers{
			ExpiryInterval: time.Hour,
		},
	}
}

// Load builds the configuration from the defaults, the YAML file at path (if
// path is not empty) and the environment, then validates it.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config file %s: %w", path, err)
		}
	}

	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return Config{}, err
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	if v, ok := lookup("PORT"); ok && v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid PORT %q: %w", v, err)
		}
		c.Server.Port = port
	}
	if v, ok := lookup("APP_ENV"); ok && v != "" {
		c.Server.Env = v
	}
	if v, ok := lookup("LOG_LEVEL"); ok && v != "" {
		c.Log.Level = v
	}
	if v, ok := lookup("LOG_FORMAT"); ok && v != "" {
		c.Log.Format = v
	}
	if v, ok := lookup("CORS_ALLOW_ORIGINS"); ok && v != "" {
		var origins []string
		for _, origin := range strings.Split(v, ",") {
			if origin = strings.TrimSpace(origin); origin != "" {
				origins = append(origins, origin)
			}
		}
		c.CORS.AllowOrigins = origins
	}
	return nil
}

// Validate reports every invalid setting.
func (c Config) Validate() error {
	var result *multierror.Error
	fail := func(format string, args ...any) {
		result = multierror.Append(result, fmt.Errorf(format, args...))
	}

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		fail("server.port must be between 1 and 65535, got %d", c.Server.Port)
	}
	switch c.Server.Env {
	case EnvDevelopment, EnvProduction, EnvTest:
	default:
		fail("server.env must be one of development, production, test, got %q", c.Server.Env)
	}
	if c.Server.ShutdownTimeout <= 0 {
		fail("server.shutdown_timeout must be positive")
	}
	if _, err := logrus.ParseLevel(c.Log.Level); err != nil {
		fail("log.level: %v", err)
	}
	if c.Log.Format != "json" && c.Log.Format != "text" {
		fail("log.format must be json or text, got %q", c.Log.Format)
	}
	if len(c.CORS.AllowOrigins) == 0 {
		fail("cors.allow_origins must not be empty")
	}
	if c.Library.LoanPeriodDays <= 0 {
		fail("library.loan_period_days must be positive")
	}
	if c.Library.FineRatePerDay < 0 {
		fail("library.fine_rate_per_day must not be negative")
	}
	if c.Library.MaxActiveReservations <= 0 {
		fail("library.max_active_reservations must be positive")
	}
	if c.Library.DefaultMaxWaitDays < 1 || c.Library.DefaultMaxWaitDays > 30 {
		fail("library.default_max_wait_days must be between 1 and 30")
	}
	if c.Workers.ExpiryInterval <= 0 {
		fail("workers.expiry_interval must be positive")
	}

	if err := result.ErrorOrNil(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

// YAML renders the configuration in the file format Load accepts.
func (c Config) YAML() ([]byte, error) {
	return yaml.Marshal(c)
}
