package credential

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/LACC-DEVLINK/checkin-exercito-api/internal/models"
	"github.com/LACC-DEVLINK/checkin-exercito-api/pkg/logger"
	"github.com/LACC-DEVLINK/checkin-exercito-api/pkg/metrics"
)

// Result is the outcome of one validation attempt.
type Result struct {
	Valid        bool      `json:"valid"`
	Reason       Reason    `json:"reason"`
	Message      string    `json:"message"`
	SubjectID    string    `json:"subject_id,omitempty"`
	CredentialID string    `json:"credential_id,omitempty"`
	EventID      string    `json:"event_id,omitempty"`
	ValidatedAt  time.Time `json:"validated_at"`
}

// Err returns the sentinel for a failed result, or nil when valid.
func (r Result) Err() error {
	if r.Valid {
		return nil
	}
	return r.Reason.Err()
}

// ValidatorOption customises the Validator.
type ValidatorOption func(*Validator)

// WithValidatorClock injects a custom time source.
func WithValidatorClock(clock func() time.Time) ValidatorOption {
	return func(v *Validator) {
		if clock != nil {
			v.now = clock
		}
	}
}

// WithValidatorAuditor records every validation attempt.
func WithValidatorAuditor(a Auditor) ValidatorOption {
	return func(v *Validator) {
		v.auditor = a
	}
}

// WithValidatorLogger overrides the module logger.
func WithValidatorLogger(l *zap.Logger) ValidatorOption {
	return func(v *Validator) {
		if l != nil {
			v.log = l
		}
	}
}

// Validator checks scanned payloads and consumes valid credentials exactly once.
type Validator struct {
	store   Store
	signer  *Signer
	auditor Auditor
	now     func() time.Time
	log     *zap.Logger
}

// NewValidator constructs a Validator backed by the store and signer.
func NewValidator(store Store, signer *Signer, opts ...ValidatorOption) (*Validator, error) {
	if store == nil {
		return nil, errors.New("validator: store is required")
	}
	if signer == nil {
		return nil, errors.New("validator: signer is required")
	}

	v := &Validator{
		store:  store,
		signer: signer,
		now:    time.Now,
		log:    logger.WithModule("credential.validator"),
	}

	for _, opt := range opts {
		opt(v)
	}

	return v, nil
}

// Validate parses the raw payload, checks it against the active record and,
// on success, deactivates the record so a second scan always fails. The error
// is non-nil only when storage was unavailable.
func (v *Validator) Validate(ctx context.Context, raw string) (Result, error) {
	now := v.now().UTC()

	payload, err := ParsePayload(raw)
	if err != nil {
		v.log.Debug("malformed credential payload", zap.Error(err))
		return v.finish(ctx, now, Payload{}, ReasonMalformedPayload, nil), nil
	}

	record, err := v.store.FindActiveByCredentialID(ctx, payload.CredentialID)
	if err != nil {
		if errors.Is(err, ErrNotFoundOrAlreadyUsed) {
			return v.finish(ctx, now, payload, ReasonNotFoundOrAlreadyUsed, nil), nil
		}
		storeErr := ErrStorageUnavailable.WithInternal(err)
		return v.finish(ctx, now, payload, ReasonStorageUnavailable, storeErr), storeErr
	}

	if record.ExpiredAt(now) {
		return v.finish(ctx, now, payload, ReasonExpired, nil), nil
	}

	if !v.signer.Verify(payload.Fields(), payload.Signature) || !matchesRecord(payload, record) {
		return v.finish(ctx, now, payload, ReasonBadSignature, nil), nil
	}

	consumed, err := v.store.ConsumeIfActive(ctx, payload.CredentialID, now)
	if err != nil {
		storeErr := ErrStorageUnavailable.WithInternal(err)
		return v.finish(ctx, now, payload, ReasonStorageUnavailable, storeErr), storeErr
	}
	if !consumed {
		return v.finish(ctx, now, payload, ReasonNotFoundOrAlreadyUsed, nil), nil
	}

	return v.finish(ctx, now, payload, ReasonValid, nil), nil
}

// matchesRecord guards against a validly signed payload being paired with a
// record of a different subject or event.
func matchesRecord(p Payload, record *models.Credential) bool {
	return p.SubjectID == record.SubjectID && p.Fields().EventID == record.EventIDValue()
}

func (v *Validator) finish(ctx context.Context, now time.Time, p Payload, reason Reason, cause error) Result {
	result := Result{
		Valid:        reason == ReasonValid,
		Reason:       reason,
		Message:      reason.Message(),
		CredentialID: p.CredentialID,
		ValidatedAt:  now,
	}
	if result.Valid {
		result.SubjectID = p.SubjectID
		result.EventID = p.Fields().EventID
	}

	metrics.Validations.WithLabelValues(string(reason)).Inc()

	fields := []zap.Field{
		zap.String("reason", string(reason)),
		zap.String("credential_id", p.CredentialID),
	}
	switch {
	case cause != nil:
		v.log.Error("credential validation failed", append(fields, zap.Error(cause))...)
	case result.Valid:
		v.log.Info("credential validated", append(fields, zap.String("subject_id", p.SubjectID))...)
	default:
		v.log.Info("credential rejected", fields...)
	}

	if v.auditor != nil {
		outcome := "failure"
		if result.Valid {
			outcome = "success"
		}
		event := AuditEvent{
			Action:       AuditActionValidate,
			Result:       outcome,
			SubjectID:    p.SubjectID,
			CredentialID: p.CredentialID,
			EventID:      p.Fields().EventID,
			Metadata:     map[string]any{"reason": string(reason)},
		}
		if err := v.auditor.Record(ctx, event); err != nil {
			v.log.Warn("audit record failed", zap.String("action", event.Action), zap.Error(err))
		}
	}

	return result
}
