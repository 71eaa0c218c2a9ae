package migration_20240301_0001

import (
	"time"

	"github.com/go-gormigrate/gormigrate/v2"
	"gorm.io/gorm"
)

// Models are frozen as they were when this migration shipped. Later changes
// to internal/models belong in a new migration.

type Base struct {
	ID        string    `gorm:"primaryKey;size:36"`
	CreatedAt time.Time `gorm:"index"`
	UpdatedAt time.Time
}

type User struct {
	Base
	Username   string    `gorm:"uniqueIndex;size:150;not null"`
	Email      string    `gorm:"index;size:254"`
	Password   string
	IsActive   bool      `gorm:"not null"`
	DateJoined time.Time `gorm:"column:date_joined;index;not null"`
}

type UserProfile struct {
	Base
	UserID string `gorm:"size:36;uniqueIndex;not null"`
	User   *User  `gorm:"foreignKey:UserID"`
}

type LinkedEmail struct {
	Base
	ProfileID  string       `gorm:"size:36;index;not null"`
	Profile    *UserProfile `gorm:"foreignKey:ProfileID"`
	Address    string       `gorm:"size:254;index;not null"`
	IsVerified bool         `gorm:"not null;default:false"`
}

type Institution struct {
	Base
	Name         string `gorm:"size:30;not null"`
	Slug         string `gorm:"size:30;uniqueIndex;not null"`
	CASServerURL string `gorm:"column:cas_server_url;not null"`
}

type InstitutionAccount struct {
	Base
	ProfileID     string       `gorm:"size:36;index;not null"`
	Profile       *UserProfile `gorm:"foreignKey:ProfileID"`
	InstitutionID string       `gorm:"size:36;index;not null"`
	Institution   *Institution `gorm:"foreignKey:InstitutionID"`
	CASID         string       `gorm:"column:cas_id;size:30;index;not null"`
}

// ID never changes once released.
const ID = "20240301_0001_identity"

// Migrate creates the identity tables.
func Migrate() *gormigrate.Migration {
	return &gormigrate.Migration{
		ID: ID,
		Migrate: func(tx *gorm.DB) error {
			return tx.AutoMigrate(
				&User{},
				&UserProfile{},
				&LinkedEmail{},
				&Institution{},
				&InstitutionAccount{},
			)
		},
		Rollback: func(tx *gorm.DB) error {
			// children first
			return tx.Migrator().DropTable(
				&InstitutionAccount{},
				&LinkedEmail{},
				&UserProfile{},
				&Institution{},
				&User{},
			)
		},
	}
}
