package models

// Institution is an organisation operating its own CAS server.
type Institution struct {
	BaseModel

	Name         string `gorm:"size:30;not null" json:"name"`
	Slug         string `gorm:"size:30;uniqueIndex;not null" json:"slug"`
	CASServerURL string `gorm:"column:cas_server_url;not null" json:"cas_server_url"`

	Accounts []InstitutionAccount `gorm:"foreignKey:InstitutionID" json:"-"`
}

func (i *Institution) String() string {
	if i == nil || i.Slug == "" {
		return NullMarker
	}
	return i.Slug
}
