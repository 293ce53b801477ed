package config

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"strings"
	"time"
	"unicode"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Defaults applied by Validate to unset values.
const (
	DefaultServerTimeout  = 30 * time.Second
	DefaultSessionMaxAge  = 24 * time.Hour
	DefaultWorkspaceTTL   = 2 * time.Hour
	DefaultBackendTimeout = 10 * time.Second
	DefaultLoginPath      = "/api/admin/user/login"
	DefaultAuditRetention = 30 * 24 * time.Hour

	minSecretLength      = 32
	releaseSecretClasses = 3
	maxPageSize          = 100
)

// Config is the top-level application configuration.
type Config struct {
	Server   ServerConfig   `koanf:"server"`
	Session  SessionConfig  `koanf:"session"`
	Backend  BackendConfig  `koanf:"backend"`
	Database DatabaseConfig `koanf:"database"`
	Audit    AuditConfig    `koanf:"audit"`
	Log      LogConfig      `koanf:"log"`

	// GeneratedSecrets names the secrets Validate replaced with random
	// values. Sessions signed with them do not survive a restart.
	GeneratedSecrets []string `koanf:"-"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host           string          `koanf:"host"`
	Port           int             `koanf:"port"`
	Mode           string          `koanf:"mode"`
	CSRFSecret     string          `koanf:"csrf_secret"`
	Timeout        time.Duration   `koanf:"timeout"`
	LoginRateLimit RateLimitConfig `koanf:"login_rate_limit"`
}

// RateLimitConfig holds token bucket settings.
type RateLimitConfig struct {
	Enabled bool    `koanf:"enabled"`
	RPS     float64 `koanf:"rps"`
	Burst   int     `koanf:"burst"`
}

// SessionConfig holds browser session settings.
type SessionConfig struct {
	Secret       string        `koanf:"secret"`
	MaxAge       time.Duration `koanf:"max_age"`
	WorkspaceTTL time.Duration `koanf:"workspace_ttl"`
}

// BackendConfig describes the hdbPilot backend the console talks to.
type BackendConfig struct {
	BaseURL   string          `koanf:"base_url"`
	Timeout   time.Duration   `koanf:"timeout"`
	LoginPath string          `koanf:"login_path"`
	RateLimit RateLimitConfig `koanf:"rate_limit"`
	PageSizes PageSizesConfig `koanf:"page_sizes"`
}

// PageSizesConfig is the page size of each list view.
type PageSizesConfig struct {
	Users      int `koanf:"users"`
	Properties int `koanf:"properties"`
	Pending    int `koanf:"pending"`
	Reviews    int `koanf:"reviews"`
}

// DatabaseConfig holds database connection settings.
type DatabaseConfig struct {
	Driver   string         `koanf:"driver"`
	SQLite   SQLiteConfig   `koanf:"sqlite"`
	Postgres PostgresConfig `koanf:"postgres"`
	Pool     PoolConfig     `koanf:"pool"`
}

// SQLiteConfig holds SQLite-specific settings.
type SQLiteConfig struct {
	Path string `koanf:"path"`
}

// PostgresConfig holds PostgreSQL-specific settings.
type PostgresConfig struct {
	Host     string `koanf:"host"`
	Port     int    `koanf:"port"`
	User     string `koanf:"user"`
	Password string `koanf:"password"`
	DBName   string `koanf:"dbname"`
	SSLMode  string `koanf:"sslmode"`
}

// PoolConfig holds database connection pool settings.
type PoolConfig struct {
	MaxIdleConns    int           `koanf:"max_idle_conns"`
	MaxOpenConns    int           `koanf:"max_open_conns"`
	ConnMaxLifetime time.Duration `koanf:"conn_max_lifetime"`
}

// AuditConfig controls the local mutation log.
type AuditConfig struct {
	Enabled   bool          `koanf:"enabled"`
	Retention time.Duration `koanf:"retention"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level           string `koanf:"level"`
	Format          string `koanf:"format"`
	Color           *bool  `koanf:"color"`
	FilePath        string `koanf:"file_path"`
	MaxSizeMB       int    `koanf:"max_size_mb"`
	RetentionDays   int    `koanf:"retention_days"`
	MaxBackups      int    `koanf:"max_backups"`
	CompressRotated *bool  `koanf:"compress_rotated"`
}

// Load reads a .env file when one exists, then the YAML file at configPath,
// then overlays environment variables. Environment variables use the prefix
// "APP__" and a double underscore as the hierarchy separator, so
// APP__BACKEND__BASE_URL overrides backend.base_url.
func Load(configPath string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	k := koanf.New(".")

	if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
		return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
	}

	if err := k.Load(env.Provider("APP__", ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("failed to load env variables: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func envKey(s string) string {
	key := strings.TrimPrefix(s, "APP__")
	key = strings.ToLower(key)
	return strings.ReplaceAll(key, "__", ".")
}

// Validate normalises values, fills defaults and rejects invalid settings.
// Placeholder secrets are replaced with random ones outside release mode.
func (c *Config) Validate() error {
	c.GeneratedSecrets = nil
	if err := c.validateServer(); err != nil {
		return err
	}
	if err := c.validateSession(); err != nil {
		return err
	}
	if err := c.validateBackend(); err != nil {
		return err
	}
	if c.Audit.Enabled {
		if err := c.Database.validate(c.Server.Mode); err != nil {
			return err
		}
		if c.Audit.Retention == 0 {
			c.Audit.Retention = DefaultAuditRetention
		}
		if c.Audit.Retention < 0 {
			return fmt.Errorf("invalid audit.retention %s: must be greater than 0", c.Audit.Retention)
		}
	}
	return c.Log.validate()
}

func (c *Config) validateServer() error {
	mode := strings.TrimSpace(c.Server.Mode)
	switch mode {
	case gin.DebugMode, gin.ReleaseMode, gin.TestMode:
		c.Server.Mode = mode
	default:
		return fmt.Errorf("invalid server.mode %q: must be one of %q, %q, %q", c.Server.Mode, gin.DebugMode, gin.ReleaseMode, gin.TestMode)
	}

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server.port %d: must be between 1 and 65535", c.Server.Port)
	}

	host := strings.TrimSpace(c.Server.Host)
	if host == "" {
		return errors.New("server.host is required")
	}
	c.Server.Host = host

	if c.Server.Timeout == 0 {
		c.Server.Timeout = DefaultServerTimeout
	}
	if c.Server.Timeout < 0 {
		return fmt.Errorf("invalid server.timeout %s: must be greater than 0", c.Server.Timeout)
	}

	if err := c.Server.LoginRateLimit.validate("server.login_rate_limit"); err != nil {
		return err
	}

	secret, err := c.resolveSecret("server.csrf_secret", c.Server.CSRFSecret)
	if err != nil {
		return err
	}
	c.Server.CSRFSecret = secret
	return nil
}

func (c *Config) validateSession() error {
	secret, err := c.resolveSecret("session.secret", c.Session.Secret)
	if err != nil {
		return err
	}
	c.Session.Secret = secret

	if c.Session.MaxAge == 0 {
		c.Session.MaxAge = DefaultSessionMaxAge
	}
	if c.Session.MaxAge < time.Minute {
		return fmt.Errorf("invalid session.max_age %s: must be at least 1m", c.Session.MaxAge)
	}

	if c.Session.WorkspaceTTL == 0 {
		c.Session.WorkspaceTTL = DefaultWorkspaceTTL
	}
	if c.Session.WorkspaceTTL < 0 {
		return fmt.Errorf("invalid session.workspace_ttl %s: must be greater than 0", c.Session.WorkspaceTTL)
	}
	return nil
}

func (c *Config) validateBackend() error {
	b := &c.Backend

	b.BaseURL = strings.TrimRight(strings.TrimSpace(b.BaseURL), "/")
	if b.BaseURL == "" {
		return errors.New("backend.base_url is required")
	}
	u, err := url.Parse(b.BaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("invalid backend.base_url %q: must be an absolute http or https URL", b.BaseURL)
	}
	if c.Server.Mode == gin.ReleaseMode && u.Scheme != "https" && !isLoopback(u.Hostname()) {
		return fmt.Errorf("invalid backend.base_url %q: must use https in release mode", b.BaseURL)
	}

	if b.Timeout == 0 {
		b.Timeout = DefaultBackendTimeout
	}
	if b.Timeout < 0 {
		return fmt.Errorf("invalid backend.timeout %s: must be greater than 0", b.Timeout)
	}

	b.LoginPath = strings.TrimSpace(b.LoginPath)
	if b.LoginPath == "" {
		b.LoginPath = DefaultLoginPath
	}
	if !strings.HasPrefix(b.LoginPath, "/") {
		return fmt.Errorf("invalid backend.login_path %q: must start with '/'", b.LoginPath)
	}

	if err := b.RateLimit.validate("backend.rate_limit"); err != nil {
		return err
	}

	sizes := []struct {
		name  string
		value *int
		def   int
	}{
		{"backend.page_sizes.users", &b.PageSizes.Users, 10},
		{"backend.page_sizes.properties", &b.PageSizes.Properties, 10},
		{"backend.page_sizes.pending", &b.PageSizes.Pending, 5},
		{"backend.page_sizes.reviews", &b.PageSizes.Reviews, 5},
	}
	for _, s := range sizes {
		if *s.value == 0 {
			*s.value = s.def
		}
		if *s.value < 1 || *s.value > maxPageSize {
			return fmt.Errorf("invalid %s %d: must be between 1 and %d", s.name, *s.value, maxPageSize)
		}
	}
	return nil
}

func (r *RateLimitConfig) validate(name string) error {
	if !r.Enabled {
		return nil
	}
	if r.RPS <= 0 {
		return fmt.Errorf("invalid %s.rps %v: must be positive when rate limiting is enabled", name, r.RPS)
	}
	if r.Burst <= 0 {
		return fmt.Errorf("invalid %s.burst %d: must be positive when rate limiting is enabled", name, r.Burst)
	}
	return nil
}

func (d *DatabaseConfig) validate(mode string) error {
	switch d.Driver {
	case "sqlite":
		path := strings.TrimSpace(d.SQLite.Path)
		if path == "" {
			return errors.New("database.sqlite.path is required when driver is sqlite")
		}
		d.SQLite.Path = path
	case "postgres":
		if err := d.Postgres.validate(mode); err != nil {
			return err
		}
	default:
		return fmt.Errorf("invalid database.driver %q: must be one of %q, %q", d.Driver, "sqlite", "postgres")
	}

	if d.Pool.ConnMaxLifetime < 0 {
		return fmt.Errorf("invalid database.pool.conn_max_lifetime %s: must be greater than 0", d.Pool.ConnMaxLifetime)
	}
	return nil
}

func (p *PostgresConfig) validate(mode string) error {
	p.Host = strings.TrimSpace(p.Host)
	p.User = strings.TrimSpace(p.User)
	p.DBName = strings.TrimSpace(p.DBName)
	p.SSLMode = strings.TrimSpace(p.SSLMode)

	if p.Host == "" {
		return errors.New("database.postgres.host is required when driver is postgres")
	}
	if p.Port < 1 || p.Port > 65535 {
		return fmt.Errorf("invalid database.postgres.port %d: must be between 1 and 65535", p.Port)
	}
	if p.User == "" {
		return errors.New("database.postgres.user is required when driver is postgres")
	}
	if p.DBName == "" {
		return errors.New("database.postgres.dbname is required when driver is postgres")
	}

	switch p.SSLMode {
	case "disable", "allow", "prefer":
		if mode == gin.ReleaseMode {
			return fmt.Errorf("invalid database.postgres.sslmode %q for server.mode %q: must be one of %q, %q, %q", p.SSLMode, gin.ReleaseMode, "require", "verify-ca", "verify-full")
		}
	case "require", "verify-ca", "verify-full":
	default:
		return fmt.Errorf("invalid database.postgres.sslmode %q: must be one of %q, %q, %q, %q, %q, %q", p.SSLMode, "disable", "allow", "prefer", "require", "verify-ca", "verify-full")
	}
	return nil
}

func (l *LogConfig) validate() error {
	level := strings.ToLower(strings.TrimSpace(l.Level))
	switch level {
	case "debug", "info", "warn", "error":
		l.Level = level
	default:
		return fmt.Errorf("invalid log.level %q: must be one of %q, %q, %q, %q", l.Level, "debug", "info", "warn", "error")
	}

	format := strings.ToLower(strings.TrimSpace(l.Format))
	switch format {
	case "text", "json":
		l.Format = format
	default:
		return fmt.Errorf("invalid log.format %q: must be one of %q, %q", l.Format, "text", "json")
	}
	return nil
}

// IsPlaceholderSecret reports whether secret is empty or one of the sample
// values shipped in configs/config.yaml.
func IsPlaceholderSecret(secret string) bool {
	s := strings.ToLower(strings.TrimSpace(secret))
	return s == "" || strings.HasPrefix(s, "change-me")
}

// resolveSecret returns secret when it is usable. A placeholder is an error
// in release mode and is replaced by a random value otherwise.
func (c *Config) resolveSecret(name, secret string) (string, error) {
	mode := c.Server.Mode
	secret = strings.TrimSpace(secret)
	if IsPlaceholderSecret(secret) {
		if mode == gin.ReleaseMode {
			return "", fmt.Errorf("%s must be set to a non-placeholder value in release mode", name)
		}
		b := make([]byte, minSecretLength)
		if _, err := rand.Read(b); err != nil {
			return "", fmt.Errorf("generate %s: %w", name, err)
		}
		c.GeneratedSecrets = append(c.GeneratedSecrets, name)
		return hex.EncodeToString(b), nil
	}

	if len(secret) < minSecretLength {
		return "", fmt.Errorf("invalid %s: must be at least %d characters", name, minSecretLength)
	}
	if mode == gin.ReleaseMode && CountSecretClasses(secret) < releaseSecretClasses {
		return "", fmt.Errorf("%s must include at least %d character classes (lowercase, uppercase, digit, symbol) in release mode", name, releaseSecretClasses)
	}
	return secret, nil
}

func isLoopback(host string) bool {
	return host == "localhost" || host == "127.0.0.1" || host == "::1"
}

// CountSecretClasses counts how many character classes (lowercase, uppercase,
// digit, symbol) appear in secret.
func CountSecretClasses(secret string) int {
	var lower, upper, digit, symbol int
	for _, r := range secret {
		switch {
		case unicode.IsLower(r):
			lower = 1
		case unicode.IsUpper(r):
			upper = 1
		case unicode.IsDigit(r):
			digit = 1
		default:
			symbol = 1
		}
	}
	return lower + upper + digit + symbol
}
