package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/LACC-DEVLINK/checkin-exercito-api/internal/credential"
	"github.com/LACC-DEVLINK/checkin-exercito-api/internal/models"
)

// CredentialStore persists credentials through gorm. Both deactivation paths
// are single conditional UPDATE statements.
type CredentialStore struct {
	db *gorm.DB
}

// NewCredentialStore constructs a store over the given database handle.
func NewCredentialStore(db *gorm.DB) (*CredentialStore, error) {
	if db == nil {
		return nil, errors.New("credential store: db is required")
	}
	return &CredentialStore{db: db}, nil
}

// Create inserts the record. Unique violations map to ErrDuplicateCredentialID.
func (s *CredentialStore) Create(ctx context.Context, cred *models.Credential) error {
	if cred == nil {
		return errors.New("credential store: credential is required")
	}
	if err := s.db.WithContext(ctx).Create(cred).Error; err != nil {
		if isUniqueViolation(err) {
			return credential.ErrDuplicateCredentialID.WithInternal(err)
		}
		return fmt.Errorf("credential store: create: %w", err)
	}
	return nil
}

// DeactivateBySubject supersedes every active credential of the subject.
func (s *CredentialStore) DeactivateBySubject(ctx context.Context, subjectID string, at time.Time) (int64, error) {
	result := s.db.WithContext(ctx).
		Model(&models.Credential{}).
		Where("subject_id = ? AND is_active = ?", subjectID, true).
		Updates(map[string]any{
			"is_active":           false,
			"deactivated_at":      at,
			"deactivation_reason": models.DeactivationSuperseded,
		})
	if result.Error != nil {
		return 0, fmt.Errorf("credential store: deactivate subject: %w", result.Error)
	}
	return result.RowsAffected, nil
}

// ConsumeIfActive is the compare-and-set used by validation: exactly one
// caller observes RowsAffected == 1.
func (s *CredentialStore) ConsumeIfActive(ctx context.Context, credentialID string, at time.Time) (bool, error) {
	result := s.db.WithContext(ctx).
		Model(&models.Credential{}).
		Where("credential_id = ? AND is_active = ?", credentialID, true).
		Updates(map[string]any{
			"is_active":           false,
			"last_validated_at":   at,
			"deactivated_at":      at,
			"deactivation_reason": models.DeactivationConsumed,
		})
	if result.Error != nil {
		return false, fmt.Errorf("credential store: consume: %w", result.Error)
	}
	return result.RowsAffected == 1, nil
}

// FindActiveByCredentialID loads the active record carrying the credential id.
func (s *CredentialStore) FindActiveByCredentialID(ctx context.Context, credentialID string) (*models.Credential, error) {
	var cred models.Credential
	if err := s.db.WithContext(ctx).
		Where("credential_id = ? AND is_active = ?", credentialID, true).
		First(&cred).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, credential.ErrNotFoundOrAlreadyUsed
		}
		return nil, fmt.Errorf("credential store: find by credential id: %w", err)
	}
	return &cred, nil
}

// Atomically runs fn inside a database transaction.
func (s *CredentialStore) Atomically(ctx context.Context, fn func(tx credential.Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&CredentialStore{db: tx})
	})
}

// FindActiveBySubject returns the subject's active credential.
func (s *CredentialStore) FindActiveBySubject(ctx context.Context, subjectID string) (*models.Credential, error) {
	var cred models.Credential
	if err := s.db.WithContext(ctx).
		Where("subject_id = ? AND is_active = ?", subjectID, true).
		First(&cred).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, credential.ErrNotFoundOrAlreadyUsed
		}
		return nil, fmt.Errorf("credential store: find by subject: %w", err)
	}
	return &cred, nil
}

// ListBySubject returns every credential ever issued to the subject, newest first.
func (s *CredentialStore) ListBySubject(ctx context.Context, subjectID string) ([]models.Credential, error) {
	var creds []models.Credential
	if err := s.db.WithContext(ctx).
		Where("subject_id = ?", subjectID).
		Order("issued_at DESC").
		Find(&creds).Error; err != nil {
		return nil, fmt.Errorf("credential store: list by subject: %w", err)
	}
	return creds, nil
}

// DeactivateExpired marks active credentials whose expiry is at or before now
// as expired and returns how many changed.
func (s *CredentialStore) DeactivateExpired(ctx context.Context, now time.Time) (int64, error) {
	result := s.db.WithContext(ctx).
		Model(&models.Credential{}).
		Where("is_active = ? AND expires_at IS NOT NULL AND expires_at <= ?", true, now).
		Updates(map[string]any{
			"is_active":           false,
			"deactivated_at":      now,
			"deactivation_reason": models.DeactivationExpired,
		})
	if result.Error != nil {
		return 0, fmt.Errorf("credential store: deactivate expired: %w", result.Error)
	}
	return result.RowsAffected, nil
}

var _ credential.Store = (*CredentialStore)(nil)
