package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// AuditLog records identity lifecycle events. UserID is kept without a foreign
// key so entries outlive the accounts they describe.
type AuditLog struct {
	ID        string         `gorm:"primaryKey;size:36" json:"id"`
	UserID    *string        `gorm:"size:36;index" json:"user_id"`
	Username  string         `json:"username"`
	Action    string         `gorm:"not null;index" json:"action"`
	Resource  string         `gorm:"index" json:"resource"`
	Result    string         `gorm:"not null" json:"result"`
	Metadata  datatypes.JSON `json:"metadata"`
	IPAddress string         `gorm:"size:64" json:"ip_address,omitempty"`
	UserAgent string         `gorm:"size:512" json:"user_agent,omitempty"`
	RequestID string         `gorm:"size:64;index" json:"request_id,omitempty"`
	CreatedAt time.Time      `gorm:"index" json:"created_at"`
}

func (a *AuditLog) BeforeCreate(tx *gorm.DB) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	return nil
}
