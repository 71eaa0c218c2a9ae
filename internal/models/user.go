package models

import (
	"strings"
	"time"

	"gorm.io/gorm"
)

// User is a local account. Usernames carrying the temporary prefix belong to
// placeholder accounts created during an unfinished sign-up.
type User struct {
	BaseModel

	Username string `gorm:"uniqueIndex;size:150;not null" json:"username"`
	Email    string `gorm:"index;size:254" json:"email"`
	Password string `json:"-"`
	IsActive bool   `gorm:"not null" json:"is_active"`

	// DateJoined is stored in UTC and drives the temporary account retention sweep.
	DateJoined time.Time `gorm:"column:date_joined;index;not null" json:"date_joined"`

	Profile *UserProfile `gorm:"foreignKey:UserID" json:"profile,omitempty"`
}

// BeforeCreate assigns the identifier and stamps the join date.
func (u *User) BeforeCreate(tx *gorm.DB) error {
	if err := u.BaseModel.BeforeCreate(tx); err != nil {
		return err
	}
	if u.DateJoined.IsZero() {
		u.DateJoined = time.Now()
	}
	u.DateJoined = u.DateJoined.UTC()
	return nil
}

// IsTemporary reports whether the username carries the given temporary prefix.
func (u *User) IsTemporary(prefix string) bool {
	return u != nil && prefix != "" && strings.HasPrefix(u.Username, prefix)
}

func (u *User) String() string {
	if u == nil {
		return NullMarker
	}
	return u.Username
}
