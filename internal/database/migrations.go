package database

import (
	"fmt"

	"github.com/go-gormigrate/gormigrate/v2"
	"gorm.io/gorm"

	"github.com/charlesng35/uniauth/internal/database/migration_20240301_0001"
	"github.com/charlesng35/uniauth/internal/database/migration_20240301_0002"
)

// Migrations lists schema changes in application order. Each migration
// carries its own model snapshot so its effect never follows internal/models.
func Migrations() []*gormigrate.Migration {
	return []*gormigrate.Migration{
		migration_20240301_0001.Migrate(),
		migration_20240301_0002.Migrate(),
	}
}

const migrationsTable = "schema_migrations"

func newMigrator(db *gorm.DB) *gormigrate.Gormigrate {
	opts := *gormigrate.DefaultOptions
	opts.TableName = migrationsTable
	return gormigrate.New(db, &opts, Migrations())
}

// PendingMigrations returns the IDs of known migrations not yet applied, in
// application order.
func PendingMigrations(db *gorm.DB) ([]string, error) {
	applied := make(map[string]bool)
	if db.Migrator().HasTable(migrationsTable) {
		var ids []string
		if err := db.Table(migrationsTable).Pluck(gormigrate.DefaultOptions.IDColumnName, &ids).Error; err != nil {
			return nil, fmt.Errorf("list applied migrations: %w", err)
		}
		for _, id := range ids {
			applied[id] = true
		}
	}

	var pending []string
	for _, m := range Migrations() {
		if !applied[m.ID] {
			pending = append(pending, m.ID)
		}
	}
	return pending, nil
}

// RollbackLast reverts the most recently applied migration.
func RollbackLast(db *gorm.DB) error {
	return newMigrator(db).RollbackLast()
}
