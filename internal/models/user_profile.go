package models

// UserProfile extends a User with the identity links UniAuth maintains.
// Exactly one profile exists per user.
type UserProfile struct {
	BaseModel

	UserID string `gorm:"size:36;uniqueIndex;not null" json:"user_id"`
	User   *User  `gorm:"foreignKey:UserID" json:"user,omitempty"`

	LinkedEmails []LinkedEmail        `gorm:"foreignKey:ProfileID" json:"linked_emails,omitempty"`
	Accounts     []InstitutionAccount `gorm:"foreignKey:ProfileID" json:"accounts,omitempty"`
}

// String renders the owner's email, falling back to the username.
func (p *UserProfile) String() string {
	if p == nil || p.User == nil {
		return NullMarker
	}
	if p.User.Email != "" {
		return p.User.Email
	}
	return p.User.Username
}
