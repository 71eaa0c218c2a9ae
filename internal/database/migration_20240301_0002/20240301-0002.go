package migration_20240301_0002

import (
	"time"

	"github.com/go-gormigrate/gormigrate/v2"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// AuditLog is frozen as it was when this migration shipped.
type AuditLog struct {
	ID        string  `gorm:"primaryKey;size:36"`
	UserID    *string `gorm:"size:36;index"`
	Username  string
	Action    string `gorm:"not null;index"`
	Resource  string `gorm:"index"`
	Result    string `gorm:"not null"`
	Metadata  datatypes.JSON
	IPAddress string    `gorm:"size:64"`
	UserAgent string    `gorm:"size:512"`
	RequestID string    `gorm:"size:64;index"`
	CreatedAt time.Time `gorm:"index"`
}

// ID never changes once released.
const ID = "20240301_0002_audit_logs"

// Migrate creates the audit log table.
func Migrate() *gormigrate.Migration {
	return &gormigrate.Migration{
		ID: ID,
		Migrate: func(tx *gorm.DB) error {
			return tx.AutoMigrate(&AuditLog{})
		},
		Rollback: func(tx *gorm.DB) error {
			return tx.Migrator().DropTable(&AuditLog{})
		},
	}
}
