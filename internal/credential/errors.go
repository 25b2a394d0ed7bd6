package credential

import (
	apperrors "github.com/LACC-DEVLINK/checkin-exercito-api/pkg/errors"
)

// Reason classifies the outcome of a validation attempt. Messages attached to
// the failure reasons are deliberately low-information.
type Reason string

const (
	ReasonValid                 Reason = "Valid"
	ReasonMalformedPayload      Reason = "MalformedPayload"
	ReasonBadSignature          Reason = "BadSignature"
	ReasonNotFoundOrAlreadyUsed Reason = "NotFoundOrAlreadyUsed"
	ReasonExpired               Reason = "Expired"
	ReasonStorageUnavailable    Reason = "StorageUnavailable"
)

var (
	// ErrMalformedPayload is returned when a scanned payload does not decode into
	// the exact credential shape.
	ErrMalformedPayload = apperrors.New("credential.malformed_payload", "Credential format is invalid")
	// ErrBadSignature signals a payload whose signature does not match its fields.
	ErrBadSignature = apperrors.New("credential.bad_signature", "Credential signature is invalid")
	// ErrNotFoundOrAlreadyUsed covers unknown, superseded and consumed credentials alike.
	ErrNotFoundOrAlreadyUsed = apperrors.New("credential.not_found_or_used", "Credential is invalid, already used or not found")
	// ErrExpired signals a credential whose expiry has passed.
	ErrExpired = apperrors.New("credential.expired", "Credential has expired")
	// ErrStorageUnavailable wraps any persistence failure surfaced to callers.
	ErrStorageUnavailable = apperrors.New("credential.storage_unavailable", "Credential storage is unavailable")
	// ErrDuplicateCredentialID is returned by stores on a uniqueness conflict. The
	// issuer retries with a fresh id and never surfaces it.
	ErrDuplicateCredentialID = apperrors.New("credential.duplicate_id", "Credential id already exists")
	// ErrRenderFailed signals that the payload could not be encoded for scanning.
	ErrRenderFailed = apperrors.New("credential.render_failed", "Credential could not be rendered")
	// ErrInvalidInput rejects empty subject ids and ids containing the canonical delimiter.
	ErrInvalidInput = apperrors.New("credential.invalid_input", "Subject or event identifier is invalid")
)

// Err maps a failure reason to its sentinel error. ReasonValid maps to nil.
func (r Reason) Err() error {
	switch r {
	case ReasonMalformedPayload:
		return ErrMalformedPayload
	case ReasonBadSignature:
		return ErrBadSignature
	case ReasonNotFoundOrAlreadyUsed:
		return ErrNotFoundOrAlreadyUsed
	case ReasonExpired:
		return ErrExpired
	case ReasonStorageUnavailable:
		return ErrStorageUnavailable
	default:
		return nil
	}
}

// Message returns the operator facing message for the reason.
func (r Reason) Message() string {
	if r == ReasonValid {
		return "Credential validated"
	}
	if err := apperrors.FromError(r.Err()); err != nil {
		return err.Message
	}
	return string(r)
}
