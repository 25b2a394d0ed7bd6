package credential

import (
	"context"
	"time"

	"github.com/LACC-DEVLINK/checkin-exercito-api/internal/models"
)

// Store is the persistence boundary of the credential lifecycle. Implementations
// must perform DeactivateBySubject and ConsumeIfActive as single conditional
// updates, never as a read followed by a write.
type Store interface {
	// Create inserts a new record. A uniqueness conflict (credential id, or a
	// second active row for the subject) returns ErrDuplicateCredentialID.
	Create(ctx context.Context, cred *models.Credential) error
	// DeactivateBySubject marks every active record of the subject as superseded
	// and returns how many rows changed.
	DeactivateBySubject(ctx context.Context, subjectID string, at time.Time) (int64, error)
	// ConsumeIfActive flips the record inactive only if it is still active and
	// reports whether this call performed the transition.
	ConsumeIfActive(ctx context.Context, credentialID string, at time.Time) (bool, error)
	// FindActiveByCredentialID returns ErrNotFoundOrAlreadyUsed when no active
	// record carries the id.
	FindActiveByCredentialID(ctx context.Context, credentialID string) (*models.Credential, error)
	// Atomically runs fn against a transactional view; all writes in fn commit
	// together or not at all.
	Atomically(ctx context.Context, fn func(tx Store) error) error
}

// AuditEvent describes a lifecycle event handed to an Auditor.
type AuditEvent struct {
	Action       string
	Result       string
	SubjectID    string
	CredentialID string
	EventID      string
	Metadata     map[string]any
}

// Auditor receives lifecycle events. Failures are logged by the caller and
// never change an operation's outcome.
type Auditor interface {
	Record(ctx context.Context, event AuditEvent) error
}

// Encoder turns a rendered payload into a scannable image.
type Encoder interface {
	Encode(payload string) ([]byte, error)
}

const (
	AuditActionIssue    = "credential.issue"
	AuditActionValidate = "credential.validate"
)
