package database

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/charlesng35/uniauth/pkg/logger"
)

// Config contains database connection options.
type Config struct {
	Driver   string
	Path     string // SQLite database path when Driver == sqlite
	DSN      string // Optional DSN override
	Host     string
	Port     int
	Name     string
	User     string
	Password string
	Options  map[string]string

	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// Open initialises a gorm.DB using the provided configuration.
func Open(cfg Config) (*gorm.DB, error) {
	driver, err := normaliseDriver(cfg.Driver)
	if err != nil {
		return nil, err
	}

	dial, err := dialector(driver, cfg)
	if err != nil {
		return nil, err
	}

	db, err := gorm.Open(dial, gormConfig())
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", driver, err)
	}

	if driver == "sqlite" {
		if err := enableSQLiteForeignKeys(db); err != nil {
			return nil, err
		}
	}

	if err := configurePool(db, cfg); err != nil {
		return nil, err
	}
	return db, nil
}

// Migrate applies all pending schema migrations.
func Migrate(db *gorm.DB) error {
	if db == nil {
		return errors.New("nil database handle")
	}

	if err := newMigrator(db).Migrate(); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

func gormConfig() *gorm.Config {
	return &gorm.Config{
		Logger:                                   NewLogger(logger.WithModule("gorm")),
		DisableForeignKeyConstraintWhenMigrating: false,
		TranslateError:                           true,
	}
}

func configurePool(db *gorm.DB, cfg Config) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	if cfg.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}
	return nil
}
