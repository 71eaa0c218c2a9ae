package models

import "fmt"

// LinkedEmail is an address attached to a profile. Addresses seeded from the
// user's own email at creation are always verified.
type LinkedEmail struct {
	BaseModel

	ProfileID string       `gorm:"size:36;index;not null" json:"profile_id"`
	Profile   *UserProfile `gorm:"foreignKey:ProfileID" json:"-"`

	Address    string `gorm:"size:254;index;not null" json:"address"`
	IsVerified bool   `gorm:"not null;default:false" json:"is_verified"`
}

func (e *LinkedEmail) String() string {
	if e == nil || e.Profile == nil {
		return NullMarker
	}
	return fmt.Sprintf("%s | %s", e.Profile, e.Address)
}
