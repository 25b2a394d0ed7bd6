package credential_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/LACC-DEVLINK/checkin-exercito-api/internal/credential"
	"github.com/LACC-DEVLINK/checkin-exercito-api/internal/models"
	"github.com/LACC-DEVLINK/checkin-exercito-api/internal/store"
)

const testSecret = "unit-test-secret"

func newSigner(t *testing.T) *credential.Signer {
	t.Helper()
	signer, err := credential.NewSigner(testSecret)
	require.NoError(t, err)
	return signer
}

func fixedClock(ts time.Time) func() time.Time {
	return func() time.Time { return ts }
}

type harness struct {
	store     *store.MemoryStore
	signer    *credential.Signer
	issuer    *credential.Issuer
	validator *credential.Validator
}

func newHarness(t *testing.T, issuerOpts []credential.IssuerOption, validatorOpts []credential.ValidatorOption) *harness {
	t.Helper()

	st := store.NewMemoryStore()
	signer := newSigner(t)

	issuer, err := credential.NewIssuer(st, signer, issuerOpts...)
	require.NoError(t, err)

	validator, err := credential.NewValidator(st, signer, validatorOpts...)
	require.NoError(t, err)

	return &harness{store: st, signer: signer, issuer: issuer, validator: validator}
}

// failingCreateStore wraps a store and fails every insert for one subject.
type failingCreateStore struct {
	*store.MemoryStore
	subject string
}

func (f *failingCreateStore) Atomically(ctx context.Context, fn func(tx credential.Store) error) error {
	return f.MemoryStore.Atomically(ctx, func(tx credential.Store) error {
		return fn(&failingCreateTx{Store: tx, subject: f.subject})
	})
}

type failingCreateTx struct {
	credential.Store
	subject string
}

func (f *failingCreateTx) Create(ctx context.Context, cred *models.Credential) error {
	if cred.SubjectID == f.subject {
		return errors.New("disk full")
	}
	return f.Store.Create(ctx, cred)
}

// unavailableStore fails every operation.
type unavailableStore struct{}

var errUnavailable = errors.New("connection refused")

func (unavailableStore) Create(context.Context, *models.Credential) error { return errUnavailable }
func (unavailableStore) DeactivateBySubject(context.Context, string, time.Time) (int64, error) {
	return 0, errUnavailable
}
func (unavailableStore) ConsumeIfActive(context.Context, string, time.Time) (bool, error) {
	return false, errUnavailable
}
func (unavailableStore) FindActiveByCredentialID(context.Context, string) (*models.Credential, error) {
	return nil, errUnavailable
}
func (unavailableStore) Atomically(context.Context, func(credential.Store) error) error {
	return errUnavailable
}

// recordingAuditor collects audit events.
type recordingAuditor struct {
	mu     sync.Mutex
	events []credential.AuditEvent
}

func (r *recordingAuditor) Record(_ context.Context, event credential.AuditEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return nil
}

func (r *recordingAuditor) Events() []credential.AuditEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]credential.AuditEvent, len(r.events))
	copy(out, r.events)
	return out
}

func flipHexChar(s string, idx int) string {
	b := []byte(s)
	if b[idx] == '0' {
		b[idx] = '1'
	} else {
		b[idx] = '0'
	}
	return string(b)
}

// upperHexChar uppercases the hex letter at idx; digits are left unchanged.
func upperHexChar(s string, idx int) string {
	b := []byte(s)
	if b[idx] >= 'a' && b[idx] <= 'f' {
		b[idx] -= 'a' - 'A'
	}
	return string(b)
}
