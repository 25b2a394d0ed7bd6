package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/LACC-DEVLINK/checkin-exercito-api/internal/auditctx"
	"github.com/LACC-DEVLINK/checkin-exercito-api/internal/credential"
	"github.com/LACC-DEVLINK/checkin-exercito-api/internal/models"
)

// AuditEntry captures a single audit event to persist.
type AuditEntry struct {
	Action       string
	Result       string
	SubjectID    string
	CredentialID string
	EventID      string
	Actor        string
	Metadata     map[string]any
}

// AuditFilters encapsulates optional filters when querying audit logs.
type AuditFilters struct {
	Action       string
	Result       string
	SubjectID    string
	CredentialID string
	Since        *time.Time
	Until        *time.Time
}

// AuditListOptions controls pagination and filtering for audit queries.
type AuditListOptions struct {
	Page     int
	PageSize int
	Filters  AuditFilters
}

// AuditOption customises the AuditService.
type AuditOption func(*AuditService)

// WithAuditActor stamps entries that carry no actor of their own and whose
// context holds none either.
func WithAuditActor(actor string) AuditOption {
	return func(s *AuditService) {
		s.actor = strings.TrimSpace(actor)
	}
}

// WithAuditClock overrides the clock used for retention cutoffs.
func WithAuditClock(now func() time.Time) AuditOption {
	return func(s *AuditService) {
		if now != nil {
			s.now = now
		}
	}
}

// AuditService persists and retrieves audit log entries.
type AuditService struct {
	db    *gorm.DB
	actor string
	now   func() time.Time
}

// NewAuditService constructs an AuditService using the provided database handle.
func NewAuditService(db *gorm.DB, opts ...AuditOption) (*AuditService, error) {
	if db == nil {
		return nil, errors.New("audit service: db is required")
	}
	svc := &AuditService{db: db, now: time.Now}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

// Log stores an audit entry, marshalling metadata into JSON form.
func (s *AuditService) Log(ctx context.Context, entry AuditEntry) error {
	ctx = ensureContext(ctx)

	if strings.TrimSpace(entry.Action) == "" {
		return errors.New("audit service: action is required")
	}
	if strings.TrimSpace(entry.Result) == "" {
		return errors.New("audit service: result is required")
	}

	var payload datatypes.JSON
	if entry.Metadata != nil {
		encoded, err := json.Marshal(entry.Metadata)
		if err != nil {
			return fmt.Errorf("audit service: marshal metadata: %w", err)
		}
		payload = datatypes.JSON(encoded)
	}

	actor := strings.TrimSpace(entry.Actor)
	if actor == "" {
		if fromCtx, ok := auditctx.FromContext(ctx); ok {
			actor = fromCtx.String()
		}
	}
	if actor == "" {
		actor = s.actor
	}

	log := models.AuditLog{
		Action:       strings.TrimSpace(entry.Action),
		Result:       strings.TrimSpace(entry.Result),
		SubjectID:    strings.TrimSpace(entry.SubjectID),
		CredentialID: strings.TrimSpace(entry.CredentialID),
		EventID:      strings.TrimSpace(entry.EventID),
		Actor:        actor,
		Metadata:     payload,
	}

	if err := s.db.WithContext(ctx).Create(&log).Error; err != nil {
		return fmt.Errorf("audit service: create log: %w", err)
	}
	return nil
}

// Record adapts credential lifecycle events to audit entries.
func (s *AuditService) Record(ctx context.Context, event credential.AuditEvent) error {
	return s.Log(ctx, AuditEntry{
		Action:       event.Action,
		Result:       event.Result,
		SubjectID:    event.SubjectID,
		CredentialID: event.CredentialID,
		EventID:      event.EventID,
		Metadata:     event.Metadata,
	})
}

// List returns paginated audit logs ordered by creation time descending.
func (s *AuditService) List(ctx context.Context, opts AuditListOptions) ([]models.AuditLog, int64, error) {
	ctx = ensureContext(ctx)

	page := opts.Page
	if page <= 0 {
		page = 1
	}
	perPage := opts.PageSize
	if perPage <= 0 || perPage > 200 {
		perPage = 50
	}

	var (
		results []models.AuditLog
		total   int64
	)

	query := s.db.WithContext(ctx).Model(&models.AuditLog{})
	query = applyAuditFilters(query, opts.Filters)

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("audit service: count logs: %w", err)
	}

	if err := query.
		Order("created_at DESC").
		Offset((page - 1) * perPage).
		Limit(perPage).
		Find(&results).Error; err != nil {
		return nil, 0, fmt.Errorf("audit service: list logs: %w", err)
	}

	return results, total, nil
}

// Export returns audit logs that match the provided filters without pagination.
func (s *AuditService) Export(ctx context.Context, filters AuditFilters) ([]models.AuditLog, error) {
	ctx = ensureContext(ctx)

	var logs []models.AuditLog
	query := s.db.WithContext(ctx).Model(&models.AuditLog{})
	query = applyAuditFilters(query, filters)

	if err := query.Order("created_at DESC").Find(&logs).Error; err != nil {
		return nil, fmt.Errorf("audit service: export logs: %w", err)
	}

	return logs, nil
}

// CleanupOlderThan removes audit logs older than the supplied retention window (in days).
func (s *AuditService) CleanupOlderThan(ctx context.Context, retentionDays int) (int64, error) {
	ctx = ensureContext(ctx)

	if retentionDays <= 0 {
		return 0, errors.New("audit service: retentionDays must be positive")
	}

	cutoff := s.now().UTC().AddDate(0, 0, -retentionDays)

	result := s.db.WithContext(ctx).Where("created_at < ?", cutoff).Delete(&models.AuditLog{})
	if result.Error != nil {
		return 0, fmt.Errorf("audit service: cleanup logs: %w", result.Error)
	}

	return result.RowsAffected, nil
}

func applyAuditFilters(query *gorm.DB, filters AuditFilters) *gorm.DB {
	if filters.Action != "" {
		query = query.Where("action = ?", filters.Action)
	}
	if filters.Result != "" {
		query = query.Where("result = ?", filters.Result)
	}
	if filters.SubjectID != "" {
		query = query.Where("subject_id = ?", filters.SubjectID)
	}
	if filters.CredentialID != "" {
		query = query.Where("credential_id = ?", filters.CredentialID)
	}
	if filters.Since != nil {
		query = query.Where("created_at >= ?", *filters.Since)
	}
	if filters.Until != nil {
		query = query.Where("created_at <= ?", *filters.Until)
	}
	return query
}

var _ credential.Auditor = (*AuditService)(nil)
