package models

import "fmt"

// InstitutionAccount links a profile to the identifier an institution's CAS
// server returned for it. A profile may hold several accounts at one institution.
type InstitutionAccount struct {
	BaseModel

	ProfileID string       `gorm:"size:36;index;not null" json:"profile_id"`
	Profile   *UserProfile `gorm:"foreignKey:ProfileID" json:"-"`

	InstitutionID string       `gorm:"size:36;index;not null" json:"institution_id"`
	Institution   *Institution `gorm:"foreignKey:InstitutionID" json:"institution,omitempty"`

	CASID string `gorm:"column:cas_id;size:30;index;not null" json:"cas_id"`
}

func (a *InstitutionAccount) String() string {
	if a == nil || a.Profile == nil || a.Institution == nil {
		return NullMarker
	}
	return fmt.Sprintf("%s | %s | account", a.Profile, a.Institution)
}
