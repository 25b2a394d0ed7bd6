package models

import "time"

// DeactivationReason records why a credential stopped being active.
type DeactivationReason string

const (
	DeactivationSuperseded DeactivationReason = "superseded"
	DeactivationConsumed   DeactivationReason = "consumed"
	DeactivationExpired    DeactivationReason = "expired"
)

// Credential is a persisted check-in credential. At most one row per subject
// has IsActive set; rows are never reactivated or deleted.
type Credential struct {
	BaseModel

	SubjectID          string             `gorm:"type:varchar(191);not null;index" json:"subject_id"`
	CredentialID       string             `gorm:"type:varchar(64);not null;uniqueIndex" json:"credential_id"`
	RenderedPayload    string             `gorm:"type:text;not null" json:"rendered_payload"`
	Signature          string             `gorm:"type:varchar(128);not null" json:"signature"`
	EventID            *string            `gorm:"type:varchar(191);index" json:"event_id,omitempty"`
	IssuedAt           time.Time          `gorm:"not null" json:"issued_at"`
	LastValidatedAt    *time.Time         `json:"last_validated_at,omitempty"`
	IsActive           bool               `gorm:"not null;index" json:"is_active"`
	ExpiresAt          *time.Time         `gorm:"index" json:"expires_at,omitempty"`
	DeactivatedAt      *time.Time         `json:"deactivated_at,omitempty"`
	DeactivationReason DeactivationReason `gorm:"type:varchar(32)" json:"deactivation_reason,omitempty"`

	// QRImage holds the PNG rendered at issuance time. It is not persisted.
	QRImage []byte `gorm:"-" json:"-"`
}

// TableName pins the table name used by the atomic update statements.
func (Credential) TableName() string {
	return "credentials"
}

// ExpiredAt reports whether the credential carries an expiry at or before now.
func (c *Credential) ExpiredAt(now time.Time) bool {
	return c != nil && c.ExpiresAt != nil && !c.ExpiresAt.After(now)
}

// EventIDValue returns the event id or the empty string when unset.
func (c *Credential) EventIDValue() string {
	if c == nil || c.EventID == nil {
		return ""
	}
	return *c.EventID
}
