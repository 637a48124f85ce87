// File: store/store.go

// Package store keeps the history of provisioning runs in MySQL.
package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	mysqldriver "github.com/go-sql-driver/mysql"
	"github.com/google/uuid"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	"gorm.io/gorm/schema"

	"github.com/uslanozan/fault-diagnosis-agent/models"
)

// DefaultLimit is used by Recent when the caller passes a non-positive limit.
const DefaultLimit = 20

var (
	// ErrNotConfigured is returned by the no-op recorder when history is requested.
	ErrNotConfigured = errors.New("run history is not configured (set DB_DSN)")
	ErrInvalidDSN    = errors.New("invalid DB_DSN")
)

// Recorder persists provisioning runs.
type Recorder interface {
	Record(ctx context.Context, run *models.ProvisioningRun) error
	Recent(ctx context.Context, limit int) ([]models.ProvisioningRun, error)
}

// Options control how Open connects.
type Options struct {
	DSN         string
	AutoMigrate bool
	// Verbose logs every SQL statement.
	Verbose bool
}

// Store is the gorm backed Recorder.
type Store struct {
	db *gorm.DB
}

// New wraps an already opened connection.
func New(db *gorm.DB) *Store { return &Store{db: db} }

// DB exposes the underlying connection.
func (s *Store) DB() *gorm.DB { return s.db }

// Open creates the database when missing, connects and optionally migrates the
// run table.
func Open(ctx context.Context, opts Options) (*Store, error) {
	if opts.DSN == "" {
		return nil, ErrNotConfigured
	}

	// --- STEP 1: create the database if it is missing ---
	rootDSN, dbName, err := splitDSN(opts.DSN)
	if err != nil {
		return nil, err
	}
	if dbName != "" {
		ensureDatabase(ctx, rootDSN, dbName)
	}

	// --- STEP 2: real connection ---
	level := logger.Warn
	if opts.Verbose {
		level = logger.Info
	}
	db, err := gorm.Open(mysql.Open(opts.DSN), gormConfig(level))
	if err != nil {
		return nil, fmt.Errorf("connect mysql: %w", err)
	}
	slog.Debug("mysql connection established", "database", dbName)

	// --- STEP 3: migrate only when DB_AUTO_MIGRATE=true ---
	if opts.AutoMigrate {
		if err := migrate(ctx, db); err != nil {
			return nil, err
		}
		slog.Info("run table migrated")
	} else {
		slog.Debug("auto migrate skipped", "env", "DB_AUTO_MIGRATE")
	}

	return New(db), nil
}

// migrate creates or updates the run table. The pool is closed on failure.
func migrate(ctx context.Context, db *gorm.DB) error {
	if err := db.WithContext(ctx).AutoMigrate(&models.ProvisioningRun{}); err != nil {
		if sqlDB, derr := db.DB(); derr == nil {
			sqlDB.Close()
		}
		return fmt.Errorf("migrate provisioning_run: %w", err)
	}
	return nil
}

// Close releases the connection pool.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Record inserts run, filling RunID and CreatedAt when they are empty.
func (s *Store) Record(ctx context.Context, run *models.ProvisioningRun) error {
	if run.RunID == "" {
		run.RunID = uuid.NewString()
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now().UTC()
	}
	if err := s.db.WithContext(ctx).Create(run).Error; err != nil {
		return fmt.Errorf("record run %s: %w", run.RunID, err)
	}
	return nil
}

// Recent returns the newest runs first.
func (s *Store) Recent(ctx context.Context, limit int) ([]models.ProvisioningRun, error) {
	var runs []models.ProvisioningRun
	if err := recentQuery(s.db.WithContext(ctx), limit).Find(&runs).Error; err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	return runs, nil
}

func recentQuery(tx *gorm.DB, limit int) *gorm.DB {
	if limit <= 0 {
		limit = DefaultLimit
	}
	return tx.Model(&models.ProvisioningRun{}).Order("created_at DESC").Order("id DESC").Limit(limit)
}

// Nop is used when no database is configured.
type Nop struct{}

func (Nop) Record(context.Context, *models.ProvisioningRun) error { return nil }

func (Nop) Recent(context.Context, int) ([]models.ProvisioningRun, error) {
	return nil, ErrNotConfigured
}

func gormConfig(level logger.LogLevel) *gorm.Config {
	return &gorm.Config{
		Logger:                 logger.Default.LogMode(level),
		SkipDefaultTransaction: true,
		NamingStrategy: schema.NamingStrategy{
			SingularTable: true,
		},
	}
}

// splitDSN returns the server level DSN (no database selected) and the
// database name.
func splitDSN(dsn string) (string, string, error) {
	cfg, err := mysqldriver.ParseDSN(dsn)
	if err != nil {
		return "", "", fmt.Errorf("%w: %v", ErrInvalidDSN, err)
	}
	name := cfg.DBName
	if strings.ContainsAny(name, "`; ") {
		return "", "", fmt.Errorf("%w: database name %q", ErrInvalidDSN, name)
	}
	cfg.DBName = ""
	return cfg.FormatDSN(), name, nil
}

// ensureDatabase is best effort; a server that refuses the connection is
// reported by the real connect that follows.
func ensureDatabase(ctx context.Context, rootDSN, name string) {
	tmp, err := gorm.Open(mysql.Open(rootDSN), gormConfig(logger.Silent))
	if err != nil {
		slog.Debug("database check skipped", "database", name, "err", err)
		return
	}
	defer func() {
		if sqlDB, err := tmp.DB(); err == nil {
			sqlDB.Close()
		}
	}()

	slog.Debug("ensuring database exists", "database", name)
	if err := tmp.WithContext(ctx).Exec(createDatabaseSQL(name)).Error; err != nil {
		slog.Warn("create database failed", "database", name, "err", err)
	}
}

func createDatabaseSQL(name string) string {
	return fmt.Sprintf("CREATE DATABASE IF NOT EXISTS `%s` CHARACTER SET utf8mb4 COLLATE utf8mb4_unicode_ci", name)
}
