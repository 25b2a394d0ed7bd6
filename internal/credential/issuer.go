package credential

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/LACC-DEVLINK/checkin-exercito-api/internal/models"
	"github.com/LACC-DEVLINK/checkin-exercito-api/pkg/logger"
	"github.com/LACC-DEVLINK/checkin-exercito-api/pkg/metrics"
	"github.com/LACC-DEVLINK/checkin-exercito-api/pkg/validator"
)

const defaultIssueAttempts = 3

// IssuerOption customises the Issuer.
type IssuerOption func(*Issuer)

// WithEncoder renders every new payload before it is persisted; an encoding
// failure fails the issuance.
func WithEncoder(enc Encoder) IssuerOption {
	return func(i *Issuer) {
		i.encoder = enc
	}
}

// WithTTL sets expiresAt on new credentials. Zero disables expiry.
func WithTTL(ttl time.Duration) IssuerOption {
	return func(i *Issuer) {
		if ttl > 0 {
			i.ttl = ttl
		}
	}
}

// WithIssuerClock injects a custom time source.
func WithIssuerClock(clock func() time.Time) IssuerOption {
	return func(i *Issuer) {
		if clock != nil {
			i.now = clock
		}
	}
}

// WithIDGenerator overrides credential id generation, primarily for testing.
func WithIDGenerator(gen func() string) IssuerOption {
	return func(i *Issuer) {
		if gen != nil {
			i.newID = gen
		}
	}
}

// WithIssueAttempts bounds how many fresh ids are tried after uniqueness conflicts.
func WithIssueAttempts(n int) IssuerOption {
	return func(i *Issuer) {
		if n > 0 {
			i.attempts = n
		}
	}
}

// WithIssuerAuditor records every issuance outcome.
func WithIssuerAuditor(a Auditor) IssuerOption {
	return func(i *Issuer) {
		i.auditor = a
	}
}

// WithIssuerLogger overrides the module logger.
func WithIssuerLogger(l *zap.Logger) IssuerOption {
	return func(i *Issuer) {
		if l != nil {
			i.log = l
		}
	}
}

// Issuer creates signed credentials and supersedes a subject's previous one.
type Issuer struct {
	store    Store
	signer   *Signer
	encoder  Encoder
	auditor  Auditor
	ttl      time.Duration
	attempts int
	now      func() time.Time
	newID    func() string
	log      *zap.Logger
}

// NewIssuer constructs an Issuer backed by the store and signer.
func NewIssuer(store Store, signer *Signer, opts ...IssuerOption) (*Issuer, error) {
	if store == nil {
		return nil, errors.New("issuer: store is required")
	}
	if signer == nil {
		return nil, errors.New("issuer: signer is required")
	}

	issuer := &Issuer{
		store:    store,
		signer:   signer,
		attempts: defaultIssueAttempts,
		now:      time.Now,
		newID:    uuid.NewString,
		log:      logger.WithModule("credential.issuer"),
	}

	for _, opt := range opts {
		opt(issuer)
	}

	return issuer, nil
}

// Issue creates a new active credential for the subject and deactivates every
// credential it held before. Supersession and insert commit atomically.
func (i *Issuer) Issue(ctx context.Context, subjectID, eventID string) (*models.Credential, error) {
	if err := checkID(subjectID, "required,nodelim"); err != nil {
		return nil, ErrInvalidInput.WithInternal(fmt.Errorf("subject id: %w", err))
	}
	if err := checkID(eventID, "nodelim"); err != nil {
		return nil, ErrInvalidInput.WithInternal(fmt.Errorf("event id: %w", err))
	}

	var lastErr error
	for attempt := 1; attempt <= i.attempts; attempt++ {
		cred, err := i.build(subjectID, eventID)
		if err != nil {
			i.finish(ctx, subjectID, eventID, nil, err)
			return nil, err
		}

		err = i.store.Atomically(ctx, func(tx Store) error {
			if _, err := tx.DeactivateBySubject(ctx, subjectID, cred.IssuedAt); err != nil {
				return err
			}
			return tx.Create(ctx, cred)
		})
		if err == nil {
			i.finish(ctx, subjectID, eventID, cred, nil)
			return cred, nil
		}

		lastErr = err
		if !errors.Is(err, ErrDuplicateCredentialID) {
			break
		}
		metrics.IssueRetries.Inc()
		i.log.Debug("credential id conflict, regenerating",
			zap.String("subject_id", subjectID),
			zap.Int("attempt", attempt),
		)
	}

	err := ErrStorageUnavailable.WithInternal(lastErr)
	i.finish(ctx, subjectID, eventID, nil, err)
	return nil, err
}

// checkID validates an opaque identifier. Ids are never normalised, so
// surrounding whitespace is rejected rather than trimmed.
func checkID(id, tag string) error {
	if id != strings.TrimSpace(id) {
		return errors.New("surrounding whitespace")
	}
	return validator.ValidateVar(id, tag)
}

func (i *Issuer) build(subjectID, eventID string) (*models.Credential, error) {
	issuedAt := i.now().UTC().Truncate(time.Millisecond)

	payload := Payload{
		SubjectID:    subjectID,
		CredentialID: i.newID(),
		IssuedAt:     issuedAt.UnixMilli(),
		EventID:      optionalString(eventID),
	}
	payload.Signature = i.signer.Sign(payload.Fields())

	rendered, err := payload.Encode()
	if err != nil {
		return nil, fmt.Errorf("issuer: encode payload: %w", err)
	}

	cred := &models.Credential{
		SubjectID:       subjectID,
		CredentialID:    payload.CredentialID,
		RenderedPayload: rendered,
		Signature:       payload.Signature,
		EventID:         payload.EventID,
		IssuedAt:        issuedAt,
		IsActive:        true,
	}

	if i.ttl > 0 {
		expires := issuedAt.Add(i.ttl)
		cred.ExpiresAt = &expires
	}

	if i.encoder != nil {
		image, err := i.encoder.Encode(rendered)
		if err != nil {
			return nil, ErrRenderFailed.WithInternal(err)
		}
		cred.QRImage = image
	}

	return cred, nil
}

func (i *Issuer) finish(ctx context.Context, subjectID, eventID string, cred *models.Credential, err error) {
	result := "success"
	if err != nil {
		result = "failure"
	}
	metrics.CredentialsIssued.WithLabelValues(result).Inc()

	event := AuditEvent{
		Action:    AuditActionIssue,
		Result:    result,
		SubjectID: subjectID,
		EventID:   eventID,
	}

	if err != nil {
		i.log.Warn("credential issuance failed", zap.String("subject_id", subjectID), zap.Error(err))
		event.Metadata = map[string]any{"error": err.Error()}
	} else {
		i.log.Info("credential issued",
			zap.String("subject_id", subjectID),
			zap.String("credential_id", cred.CredentialID),
		)
		event.CredentialID = cred.CredentialID
	}

	if i.auditor != nil {
		if auditErr := i.auditor.Record(ctx, event); auditErr != nil {
			i.log.Warn("audit record failed", zap.String("action", event.Action), zap.Error(auditErr))
		}
	}
}
