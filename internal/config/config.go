// Package config loads movegate configuration from an optional YAML file and
// MOVEGATE_* environment variables.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"golang.org/x/crypto/bcrypt"
)

// EnvPrefix prefixes every environment variable read by Load. Nested keys are
// separated by a double underscore, e.g. MOVEGATE_SESSION__SECRET.
const EnvPrefix = "MOVEGATE_"

// DefaultFile is read when Load is given no path. It may be absent.
const DefaultFile = "config.yaml"

type Config struct {
	Server     ServerConfig     `koanf:"server"`
	Log        LogConfig        `koanf:"log"`
	Session    SessionConfig    `koanf:"session"`
	Storage    StorageConfig    `koanf:"storage"`
	Auth       AuthConfig       `koanf:"auth"`
	Balancer   BalancerConfig   `koanf:"balancer"`
	Classifier ClassifierConfig `koanf:"classifier"`
	Tracing    TracingConfig    `koanf:"tracing"`
}

type ServerConfig struct {
	Port          int           `koanf:"port"`
	Timeout       time.Duration `koanf:"timeout"`
	SecureCookies bool          `koanf:"secure_cookies"`
}

type LogConfig struct {
	Level string `koanf:"level"` // debug, info, warn, error
}

type SessionConfig struct {
	Secret     string        `koanf:"secret"`
	TTL        time.Duration `koanf:"ttl"`
	CookieName string        `koanf:"cookie_name"`
}

type StorageConfig struct {
	Type   string       `koanf:"type"` // memory, sqlite, postgres
	SQLite SQLiteConfig `koanf:"sqlite"`
	// Database holds the connection string for server databases.
	Database DatabaseConfig `koanf:"database"`
}

type SQLiteConfig struct {
	Path string `koanf:"path"`
}

type DatabaseConfig struct {
	DSN string `koanf:"dsn"`
}

type AuthConfig struct {
	BcryptCost int `koanf:"bcrypt_cost"`
	// AdminEmail and AdminPasswordHash seed an admin account at startup.
	AdminEmail        string `koanf:"admin_email"`
	AdminPasswordHash string `koanf:"admin_password_hash"`
}

type BalancerConfig struct {
	Instances []string `koanf:"instances"`
}

type ClassifierConfig struct {
	// MaxSentenceTokens rejects longer sentences. Zero disables the limit.
	MaxSentenceTokens int `koanf:"max_sentence_tokens"`
}

type TracingConfig struct {
	Exporter string `koanf:"exporter"` // none, stdout
}

var defaults = map[string]any{
	"server.port":                    8080,
	"server.timeout":                 "30s",
	"log.level":                      "info",
	"session.ttl":                    "720h",
	"session.cookie_name":            "movegate_session",
	"storage.type":                   "memory",
	"storage.sqlite.path":            "movegate.db",
	"auth.bcrypt_cost":               10,
	"classifier.max_sentence_tokens": 256,
	"tracing.exporter":               "none",
}

var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// Load reads configuration from path, then from the environment, which
// overrides the file. An empty path reads DefaultFile if it exists.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	optional := path == ""
	if optional {
		path = DefaultFile
	}
	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		if !optional || !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
	}

	// Load environment variables (can override file config)
	if err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		return strings.Replace(strings.ToLower(strings.TrimPrefix(s, EnvPrefix)), "__", ".", -1)
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment: %w", err)
	}

	// Default values
	for key, value := range defaults {
		if !k.Exists(key) {
			k.Set(key, value)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	cfg.Session.Secret = substituteEnvVars(cfg.Session.Secret)
	cfg.Storage.Database.DSN = substituteEnvVars(cfg.Storage.Database.DSN)
	cfg.Balancer.Instances = splitList(cfg.Balancer.Instances)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks values that cannot be defaulted.
func (c *Config) Validate() error {
	if len(c.Session.Secret) < 32 {
		return fmt.Errorf("session.secret must be at least 32 bytes")
	}
	switch c.Storage.Type {
	case "memory", "sqlite", "postgres":
	default:
		return fmt.Errorf("unknown storage.type: %s", c.Storage.Type)
	}
	if c.Storage.Type == "postgres" && c.Storage.Database.DSN == "" {
		return fmt.Errorf("storage.database.dsn is required for postgres")
	}
	switch c.Tracing.Exporter {
	case "none", "stdout":
	default:
		return fmt.Errorf("unknown tracing.exporter: %s", c.Tracing.Exporter)
	}
	if _, err := c.Log.SlogLevel(); err != nil {
		return err
	}
	if c.Auth.BcryptCost < bcrypt.MinCost || c.Auth.BcryptCost > bcrypt.MaxCost {
		return fmt.Errorf("auth.bcrypt_cost must be between %d and %d", bcrypt.MinCost, bcrypt.MaxCost)
	}
	if (c.Auth.AdminEmail == "") != (c.Auth.AdminPasswordHash == "") {
		return fmt.Errorf("auth.admin_email and auth.admin_password_hash must be set together")
	}
	return nil
}

// StorageDSN returns the connection string for the configured storage type.
func (c *Config) StorageDSN() string {
	switch c.Storage.Type {
	case "sqlite":
		return c.Storage.SQLite.Path
	case "postgres":
		return c.Storage.Database.DSN
	default:
		return ""
	}
}

// SlogLevel parses the configured log level.
func (l LogConfig) SlogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(l.Level)); err != nil {
		return slog.LevelInfo, fmt.Errorf("invalid log.level %q: %w", l.Level, err)
	}
	return level, nil
}

// splitList flattens comma separated entries, as given by a single
// environment variable, and drops blanks.
func splitList(items []string) []string {
	var out []string
	for _, item := range items {
		for _, part := range strings.Split(item, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

func substituteEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		// Extract variable name from ${VAR_NAME}
		varName := envVarPattern.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}
