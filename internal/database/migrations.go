package database

import (
	"gorm.io/gorm"

	"github.com/LACC-DEVLINK/checkin-exercito-api/internal/models"
)

// ActiveCredentialIndex is the partial unique index guaranteeing at most one
// active credential per subject on dialects that support partial indexes.
const ActiveCredentialIndex = "uniq_credentials_active_subject"

// AutoMigrate creates or updates the database schema for all models.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.Credential{},
		&models.AuditLog{},
	)
}

// EnsureActiveCredentialIndex creates the partial unique index on sqlite and
// postgres. MySQL has no partial indexes; there the supersession UPDATE takes
// next-key locks on the subject range, which serialises concurrent issuers.
func EnsureActiveCredentialIndex(db *gorm.DB) error {
	if !SupportsPartialIndex(db) {
		return nil
	}
	return db.Exec("CREATE UNIQUE INDEX IF NOT EXISTS " + ActiveCredentialIndex +
		" ON credentials (subject_id) WHERE is_active").Error
}

// SupportsPartialIndex reports whether the dialect can express the
// single-active-credential index.
func SupportsPartialIndex(db *gorm.DB) bool {
	if db == nil || db.Dialector == nil {
		return false
	}
	switch db.Dialector.Name() {
	case "sqlite", "postgres":
		return true
	default:
		return false
	}
}
