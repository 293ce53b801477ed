package config

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// Pool limits used when the configuration leaves them unset. The audit
// log writes one row per mutation, so a small pool is plenty.
const (
	defaultMaxIdleConns    = 2
	defaultMaxOpenConns    = 10
	defaultConnMaxLifetime = time.Hour

	slowAuditQuery = 200 * time.Millisecond
)

// dialects builds the GORM dialector for each supported driver.
var dialects = map[string]func(*DatabaseConfig) (gorm.Dialector, error){
	"sqlite":   sqliteDialector,
	"postgres": postgresDialector,
}

// SetupDatabase opens the audit database and applies the pool limits. SQL
// goes to logger under component=audit-db: every statement when logger is
// at debug level, otherwise slow statements and errors.
func SetupDatabase(cfg *DatabaseConfig, logger *slog.Logger) (*gorm.DB, error) {
	switch {
	case cfg == nil:
		return nil, errors.New("database config is nil")
	case logger == nil:
		return nil, errors.New("logger is nil")
	}

	build, ok := dialects[cfg.Driver]
	if !ok {
		return nil, fmt.Errorf("unsupported database driver: %s", cfg.Driver)
	}
	dialector, err := build(cfg)
	if err != nil {
		return nil, err
	}

	db, err := gorm.Open(dialector, &gorm.Config{Logger: auditSQLLogger(logger)})
	if err != nil {
		return nil, fmt.Errorf("open %s audit database: %w", cfg.Driver, err)
	}

	pool := cfg.Pool.limits()
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("audit database handle: %w", err)
	}
	pool.apply(sqlDB)

	logger.Info("audit database ready",
		slog.String("driver", cfg.Driver),
		slog.Int("max_idle_conns", pool.MaxIdleConns),
		slog.Int("max_open_conns", pool.MaxOpenConns),
		slog.Duration("conn_max_lifetime", pool.ConnMaxLifetime),
	)
	return db, nil
}

func auditSQLLogger(logger *slog.Logger) gormlogger.Interface {
	level := gormlogger.Warn
	if logger.Enabled(context.Background(), slog.LevelDebug) {
		level = gormlogger.Info
	}
	return gormlogger.NewSlogLogger(logger.With(slog.String("component", "audit-db")), gormlogger.Config{
		SlowThreshold:             slowAuditQuery,
		LogLevel:                  level,
		IgnoreRecordNotFoundError: true,
	})
}

// sqliteDialector creates the directory holding the database file.
func sqliteDialector(cfg *DatabaseConfig) (gorm.Dialector, error) {
	if dir := filepath.Dir(cfg.SQLite.Path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create audit database directory %q: %w", dir, err)
		}
	}
	return sqlite.Open(cfg.SQLite.Path), nil
}

func postgresDialector(cfg *DatabaseConfig) (gorm.Dialector, error) {
	return postgres.Open(cfg.Postgres.DSN()), nil
}

// DSN renders the settings as a postgres:// URL. The password is escaped.
func (p PostgresConfig) DSN() string {
	u := url.URL{
		Scheme: "postgres",
		Host:   net.JoinHostPort(p.Host, strconv.Itoa(p.Port)),
		Path:   p.DBName,
	}
	if p.User != "" || p.Password != "" {
		u.User = url.UserPassword(p.User, p.Password)
	}
	if p.SSLMode != "" {
		u.RawQuery = url.Values{"sslmode": {p.SSLMode}}.Encode()
	}
	return u.String()
}

// limits returns p with unset or negative values replaced by defaults.
func (p PoolConfig) limits() PoolConfig {
	return PoolConfig{
		MaxIdleConns:    positiveOr(p.MaxIdleConns, defaultMaxIdleConns),
		MaxOpenConns:    positiveOr(p.MaxOpenConns, defaultMaxOpenConns),
		ConnMaxLifetime: positiveOr(p.ConnMaxLifetime, defaultConnMaxLifetime),
	}
}

type sqlPool interface {
	SetMaxIdleConns(n int)
	SetMaxOpenConns(n int)
	SetConnMaxLifetime(d time.Duration)
}

func (p PoolConfig) apply(db sqlPool) {
	db.SetMaxIdleConns(p.MaxIdleConns)
	db.SetMaxOpenConns(p.MaxOpenConns)
	db.SetConnMaxLifetime(p.ConnMaxLifetime)
}

func positiveOr[T int | time.Duration](v, def T) T {
	if v <= 0 {
		return def
	}
	return v
}
