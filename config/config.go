// Package config loads authclient settings from YAML and the environment.
//
// Source precedence:
//  1. an explicit path passed to Load or MustLoad;
//  2. the CONFIG_PATH environment variable;
//  3. ./local.yaml in the working directory;
//  4. environment variables only.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// Config is the root configuration.
type Config struct {
	Env      string         `yaml:"env" env:"ENV" env-default:"local"`
	API      APIConfig      `yaml:"api"`
	Identity IdentityConfig `yaml:"identity"`
	Storage  StorageConfig  `yaml:"storage"`
	Metrics  MetricsConfig  `yaml:"metrics"`
	Log      LogConfig      `yaml:"log"`
}

// APIConfig holds the backend origins.
type APIConfig struct {
	// URL is the business API origin.
	URL string `yaml:"url" env:"API_URL"`
	// AuthURL is the identity and user API origin.
	AuthURL string        `yaml:"auth_url" env:"AUTH_API_URL"`
	Timeout time.Duration `yaml:"timeout" env:"API_TIMEOUT" env-default:"30s"`
}

// IdentityConfig describes the hosted identity provider.
type IdentityConfig struct {
	ClientID       string        `yaml:"client_id" env:"IDENTITY_CLIENT_ID"`
	ClientSecret   string        `yaml:"client_secret" env:"IDENTITY_CLIENT_SECRET"`
	Domain         string        `yaml:"domain" env:"IDENTITY_DOMAIN"`
	Audience       string        `yaml:"audience" env:"IDENTITY_AUDIENCE"`
	RedirectURL    string        `yaml:"redirect_url" env:"IDENTITY_REDIRECT_URL"`
	RoleNamespace  string        `yaml:"role_namespace" env:"IDENTITY_ROLE_NAMESPACE"`
	Scopes         []string      `yaml:"scopes" env:"IDENTITY_SCOPES" env-separator:"," env-default:"openid,profile,email,offline_access"`
	RenewalTimeout time.Duration `yaml:"renewal_timeout" env:"IDENTITY_RENEWAL_TIMEOUT" env-default:"30s"`
}

// StorageConfig selects the credential storage backend.
type StorageConfig struct {
	// Driver is one of memory, file or redis.
	Driver string      `yaml:"driver" env:"STORAGE_DRIVER" env-default:"memory"`
	Path   string      `yaml:"path" env:"STORAGE_PATH"`
	Key    string      `yaml:"key" env:"STORAGE_KEY" env-default:"userCredentials"`
	Redis  RedisConfig `yaml:"redis"`
}

// RedisConfig is used when StorageConfig.Driver is redis.
type RedisConfig struct {
	Addr     string        `yaml:"addr" env:"REDIS_ADDR" env-default:"127.0.0.1:6379"`
	Password string        `yaml:"password" env:"REDIS_PASSWORD"`
	DB       int           `yaml:"db" env:"REDIS_DB" env-default:"0"`
	Prefix   string        `yaml:"prefix" env:"REDIS_PREFIX" env-default:"authclient"`
	TTL      time.Duration `yaml:"ttl" env:"REDIS_TTL" env-default:"0s"`
}

// MetricsConfig controls the Prometheus endpoint. An empty Addr disables it.
type MetricsConfig struct {
	Addr string `yaml:"addr" env:"METRICS_ADDR"`
}

// LogConfig sets the log level (debug, info, warn, error).
type LogConfig struct {
	Level string `yaml:"level" env:"LOG_LEVEL" env-default:"info"`
}

// MustLoad is Load that panics on error.
func MustLoad(path string) *Config {
	cfg, err := Load(path)
	if err != nil {
		panic(err)
	}
	return cfg
}

// Load reads the configuration following the package precedence rules and
// validates it.
func Load(path string) (*Config, error) {
	var cfg Config

	switch {
	case path != "":
		if err := readFile(path, &cfg); err != nil {
			return nil, err
		}
	case os.Getenv("CONFIG_PATH") != "":
		if err := readFile(os.Getenv("CONFIG_PATH"), &cfg); err != nil {
			return nil, err
		}
	default:
		if _, err := os.Stat("local.yaml"); err == nil {
			if err := cleanenv.ReadConfig("local.yaml", &cfg); err != nil {
				return nil, fmt.Errorf("failed to read local.yaml: %w", err)
			}
		} else if err := cleanenv.ReadEnv(&cfg); err != nil {
			return nil, fmt.Errorf("config not found: provide a path, CONFIG_PATH, local.yaml or env vars: %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func readFile(path string, cfg *Config) error {
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("config file does not exist: %s", path)
	}
	if err := cleanenv.ReadConfig(path, cfg); err != nil {
		return fmt.Errorf("failed to read config: %w", err)
	}
	return nil
}

// Validate checks required origins and enumerated values. All problems are
// reported together.
func (c *Config) Validate() error {
	var errs []error

	if c.API.URL == "" {
		errs = append(errs, errors.New("api.url is required"))
	} else if err := checkOrigin(c.API.URL); err != nil {
		errs = append(errs, fmt.Errorf("api.url: %w", err))
	}
	if c.API.AuthURL != "" {
		if err := checkOrigin(c.API.AuthURL); err != nil {
			errs = append(errs, fmt.Errorf("api.auth_url: %w", err))
		}
	}
	if c.API.Timeout < 0 {
		errs = append(errs, errors.New("api.timeout cannot be negative"))
	}
	if c.Identity.RenewalTimeout < 0 {
		errs = append(errs, errors.New("identity.renewal_timeout cannot be negative"))
	}

	switch strings.ToLower(c.Storage.Driver) {
	case "", "memory", "redis":
	case "file":
		if c.Storage.Path == "" {
			errs = append(errs, errors.New("storage.path is required for the file driver"))
		}
	default:
		errs = append(errs, fmt.Errorf("storage.driver %q is not one of memory, file, redis", c.Storage.Driver))
	}

	switch strings.ToLower(c.Log.Level) {
	case "", "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("log.level %q is not one of debug, info, warn, error", c.Log.Level))
	}

	return errors.Join(errs...)
}

// AuthOrigin returns the identity API origin, falling back to the business
// API origin when none is configured.
func (c *Config) AuthOrigin() string {
	if c.API.AuthURL != "" {
		return c.API.AuthURL
	}
	return c.API.URL
}

func checkOrigin(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("scheme must be http or https, got %q", u.Scheme)
	}
	if u.Host == "" {
		return errors.New("host is required")
	}
	return nil
}
