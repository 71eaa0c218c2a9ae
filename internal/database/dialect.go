package database

import (
	"fmt"
	"strings"

	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// normaliseDriver maps configured driver names onto the supported backends.
func normaliseDriver(name string) (string, error) {
	switch driver := strings.ToLower(strings.TrimSpace(name)); driver {
	case "", "sqlite", "sqlite3":
		return "sqlite", nil
	case "postgres", "postgresql":
		return "postgres", nil
	case "mysql":
		return "mysql", nil
	default:
		return "", fmt.Errorf("unsupported database driver %q", name)
	}
}

func dialector(driver string, cfg Config) (gorm.Dialector, error) {
	var (
		dsn string
		err error
	)
	switch driver {
	case "sqlite":
		if dsn, err = sqliteDSN(cfg); err != nil {
			return nil, err
		}
		return sqlite.Open(dsn), nil
	case "postgres":
		if dsn, err = buildPostgresDSN(cfg); err != nil {
			return nil, err
		}
		return postgres.Open(dsn), nil
	default:
		if dsn, err = buildMySQLDSN(cfg); err != nil {
			return nil, err
		}
		return mysql.Open(dsn), nil
	}
}

// enableSQLiteForeignKeys turns on cascade checks for DSNs that did not ask for them.
func enableSQLiteForeignKeys(db *gorm.DB) error {
	return db.Exec("PRAGMA foreign_keys = ON").Error
}
