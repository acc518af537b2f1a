// Package config loads the YAML server configuration and applies
// environment overrides.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultConfigFile is the config path used when none is given.
const DefaultConfigFile = "config.yaml"

// Config is the full server configuration.
type Config struct {
	Server ServerConfig `yaml:"server"`
	DB     DBConfig     `yaml:"db"`
	Auth   AuthConfig   `yaml:"auth"`
	Log    LogConfig    `yaml:"log"`
}

// ServerConfig controls the HTTP listener.
type ServerConfig struct {
	Addr           string   `yaml:"addr"`            // Listen address, e.g. ":8080".
	AllowedOrigins []string `yaml:"allowed-origins"` // CORS origins; empty allows any.
}

// DBConfig controls database connectivity.
type DBConfig struct {
	DSN string `yaml:"dsn"` // Postgres DSN or SQLite path.
}

// Duration is a time.Duration that unmarshals from YAML strings like
// "12h" or "30m".
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if errDecode := value.Decode(&raw); errDecode != nil {
		return errDecode
	}
	parsed, errParse := time.ParseDuration(strings.TrimSpace(raw))
	if errParse != nil {
		return fmt.Errorf("parse duration %q: %w", raw, errParse)
	}
	*d = Duration(parsed)
	return nil
}

// Std returns the value as a time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// AuthConfig controls token issuance and the admin credential.
type AuthConfig struct {
	JWTSecret         string   `yaml:"jwt-secret"`          // HMAC signing secret.
	TokenTTL          Duration `yaml:"token-ttl"`           // Filial token lifetime.
	AdminTokenTTL     Duration `yaml:"admin-token-ttl"`     // Admin token lifetime.
	AdminPasswordHash string   `yaml:"admin-password-hash"` // bcrypt hash of the admin password.
}

// LogConfig controls log output and rotation.
type LogConfig struct {
	Level      string `yaml:"level"`       // logrus level name; empty means info.
	File       string `yaml:"file"`        // Log file path; empty logs to stderr only.
	MaxSizeMB  int    `yaml:"max-size"`    // Rotate after this many megabytes.
	MaxBackups int    `yaml:"max-backups"` // Rotated files to retain.
	MaxAgeDays int    `yaml:"max-age"`     // Days to retain rotated files.
}

// ResolveConfigPath returns the effective config path, falling back to
// the default file next to the working directory.
func ResolveConfigPath(path string) string {
	if trimmed := strings.TrimSpace(path); trimmed != "" {
		return trimmed
	}
	if fromEnv := strings.TrimSpace(os.Getenv("TABRA_CONFIG")); fromEnv != "" {
		return fromEnv
	}
	return DefaultConfigFile
}

// Load reads the config file, fills defaults, and applies environment
// overrides. A missing file is not an error when the environment
// provides the required values.
func Load(path string) (*Config, error) {
	cfg := defaults()

	data, errRead := os.ReadFile(path)
	switch {
	case errRead == nil:
		if errDecode := yaml.Unmarshal(data, cfg); errDecode != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, errDecode)
		}
	case os.IsNotExist(errRead):
		// Fall through to env-only configuration.
	default:
		return nil, fmt.Errorf("read config %s: %w", path, errRead)
	}

	applyEnv(cfg)
	fillDefaults(cfg)

	if errValidate := cfg.validate(); errValidate != nil {
		return nil, errValidate
	}
	return cfg, nil
}

func defaults() *Config {
	return &Config{
		Server: ServerConfig{Addr: ":8080"},
		Log:    LogConfig{Level: "info", MaxSizeMB: 100, MaxBackups: 5, MaxAgeDays: 30},
	}
}

// applyEnv lets deployment environments override file values without
// editing the file.
func applyEnv(cfg *Config) {
	if v := strings.TrimSpace(os.Getenv("TABRA_ADDR")); v != "" {
		cfg.Server.Addr = v
	}
	if v := strings.TrimSpace(os.Getenv("TABRA_DB_DSN")); v != "" {
		cfg.DB.DSN = v
	}
	if v := strings.TrimSpace(os.Getenv("TABRA_JWT_SECRET")); v != "" {
		cfg.Auth.JWTSecret = v
	}
	if v := strings.TrimSpace(os.Getenv("TABRA_ADMIN_PASSWORD_HASH")); v != "" {
		cfg.Auth.AdminPasswordHash = v
	}
	if v := strings.TrimSpace(os.Getenv("TABRA_LOG_LEVEL")); v != "" {
		cfg.Log.Level = v
	}
	if v := strings.TrimSpace(os.Getenv("TABRA_LOG_FILE")); v != "" {
		cfg.Log.File = v
	}
	if v := strings.TrimSpace(os.Getenv("TABRA_ALLOWED_ORIGINS")); v != "" {
		parts := strings.Split(v, ",")
		origins := make([]string, 0, len(parts))
		for _, p := range parts {
			if origin := strings.TrimSpace(p); origin != "" {
				origins = append(origins, origin)
			}
		}
		cfg.Server.AllowedOrigins = origins
	}
}

func fillDefaults(cfg *Config) {
	if strings.TrimSpace(cfg.Server.Addr) == "" {
		cfg.Server.Addr = ":8080"
	}
	if strings.TrimSpace(cfg.DB.DSN) == "" {
		cfg.DB.DSN = filepath.Join("data", "tabra.db")
	}
	if cfg.Auth.TokenTTL <= 0 {
		cfg.Auth.TokenTTL = Duration(12 * time.Hour)
	}
	if cfg.Auth.AdminTokenTTL <= 0 {
		cfg.Auth.AdminTokenTTL = Duration(12 * time.Hour)
	}
	if strings.TrimSpace(cfg.Log.Level) == "" {
		cfg.Log.Level = "info"
	}
}

func (c *Config) validate() error {
	if strings.TrimSpace(c.Auth.JWTSecret) == "" {
		return fmt.Errorf("config: auth.jwt-secret is required")
	}
	if strings.TrimSpace(c.Auth.AdminPasswordHash) == "" {
		return fmt.Errorf("config: auth.admin-password-hash is required")
	}
	return nil
}
