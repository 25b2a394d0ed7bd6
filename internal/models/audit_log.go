package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// AuditLog stores one credential lifecycle event (issuance, validation attempt,
// expiry sweep) for later review.
type AuditLog struct {
	ID           string         `gorm:"primaryKey;type:varchar(36)" json:"id"`
	Action       string         `gorm:"not null;index" json:"action"`
	Result       string         `gorm:"not null" json:"result"`
	SubjectID    string         `gorm:"index" json:"subject_id"`
	CredentialID string         `gorm:"index" json:"credential_id"`
	EventID      string         `json:"event_id"`
	Actor        string         `json:"actor"`
	Metadata     datatypes.JSON `json:"metadata"`
	CreatedAt    time.Time      `gorm:"index" json:"created_at"`
}

func (a *AuditLog) BeforeCreate(tx *gorm.DB) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	return nil
}
