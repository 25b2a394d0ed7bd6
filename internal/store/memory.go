package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/LACC-DEVLINK/checkin-exercito-api/internal/credential"
	"github.com/LACC-DEVLINK/checkin-exercito-api/internal/models"
)

// MemoryStore is an in-memory credential store for tests and local use. A single
// mutex makes every operation, and every Atomically block, linearizable.
type MemoryStore struct {
	mu    sync.Mutex
	creds map[string]models.Credential // keyed by credential id
	now   func() time.Time
}

// NewMemoryStore constructs an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		creds: make(map[string]models.Credential),
		now:   time.Now,
	}
}

// Create inserts the record; it enforces the same uniqueness rules as the
// database schema.
func (s *MemoryStore) Create(_ context.Context, cred *models.Credential) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.create(cred)
	return err
}

// DeactivateBySubject supersedes every active credential of the subject.
func (s *MemoryStore) DeactivateBySubject(_ context.Context, subjectID string, at time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, _ := s.deactivateSubject(subjectID, at)
	return n, nil
}

// ConsumeIfActive deactivates the credential when it is still active.
func (s *MemoryStore) ConsumeIfActive(_ context.Context, credentialID string, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ok, _ := s.consume(credentialID, at)
	return ok, nil
}

// FindActiveByCredentialID returns a copy of the active record.
func (s *MemoryStore) FindActiveByCredentialID(_ context.Context, credentialID string) (*models.Credential, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.findActive(credentialID)
}

// Atomically runs fn while holding the store lock. Writes made through tx are
// rolled back if fn returns an error.
func (s *MemoryStore) Atomically(ctx context.Context, fn func(tx credential.Store) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &memoryTx{store: s}
	if err := fn(tx); err != nil {
		tx.rollback()
		return err
	}
	return nil
}

// FindActiveBySubject returns the subject's active credential.
func (s *MemoryStore) FindActiveBySubject(_ context.Context, subjectID string) (*models.Credential, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.creds {
		if c.SubjectID == subjectID && c.IsActive {
			cpy := c
			return &cpy, nil
		}
	}
	return nil, credential.ErrNotFoundOrAlreadyUsed
}

// ListBySubject returns every credential of the subject, newest first.
func (s *MemoryStore) ListBySubject(_ context.Context, subjectID string) ([]models.Credential, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []models.Credential
	for _, c := range s.creds {
		if c.SubjectID == subjectID {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].IssuedAt.After(out[j].IssuedAt)
	})
	return out, nil
}

// DeactivateExpired marks active credentials past their expiry as expired.
func (s *MemoryStore) DeactivateExpired(_ context.Context, now time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	for id, c := range s.creds {
		if c.IsActive && c.ExpiredAt(now) {
			c.IsActive = false
			c.DeactivatedAt = &now
			c.DeactivationReason = models.DeactivationExpired
			s.creds[id] = c
			n++
		}
	}
	return n, nil
}

// ActiveCount returns the number of active credentials held by the subject.
func (s *MemoryStore) ActiveCount(subjectID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for _, c := range s.creds {
		if c.SubjectID == subjectID && c.IsActive {
			n++
		}
	}
	return n
}

// The helpers below require s.mu to be held. Each returns an undo closure used
// by memoryTx to roll back.

func (s *MemoryStore) create(cred *models.Credential) (func(), error) {
	if _, exists := s.creds[cred.CredentialID]; exists {
		return nil, credential.ErrDuplicateCredentialID
	}
	if cred.IsActive {
		for _, c := range s.creds {
			if c.SubjectID == cred.SubjectID && c.IsActive {
				return nil, credential.ErrDuplicateCredentialID
			}
		}
	}

	now := s.now()
	if cred.ID == "" {
		cred.ID = uuid.NewString()
	}
	cred.CreatedAt = now
	cred.UpdatedAt = now

	stored := *cred
	stored.QRImage = nil
	s.creds[cred.CredentialID] = stored

	id := cred.CredentialID
	return func() { delete(s.creds, id) }, nil
}

func (s *MemoryStore) deactivateSubject(subjectID string, at time.Time) (int64, func()) {
	var (
		n    int64
		prev []models.Credential
	)
	for id, c := range s.creds {
		if c.SubjectID != subjectID || !c.IsActive {
			continue
		}
		prev = append(prev, c)
		c.IsActive = false
		c.DeactivatedAt = &at
		c.DeactivationReason = models.DeactivationSuperseded
		c.UpdatedAt = at
		s.creds[id] = c
		n++
	}
	return n, func() {
		for _, c := range prev {
			s.creds[c.CredentialID] = c
		}
	}
}

func (s *MemoryStore) consume(credentialID string, at time.Time) (bool, func()) {
	c, ok := s.creds[credentialID]
	if !ok || !c.IsActive {
		return false, func() {}
	}
	prev := c
	c.IsActive = false
	c.LastValidatedAt = &at
	c.DeactivatedAt = &at
	c.DeactivationReason = models.DeactivationConsumed
	c.UpdatedAt = at
	s.creds[credentialID] = c
	return true, func() { s.creds[credentialID] = prev }
}

func (s *MemoryStore) findActive(credentialID string) (*models.Credential, error) {
	c, ok := s.creds[credentialID]
	if !ok || !c.IsActive {
		return nil, credential.ErrNotFoundOrAlreadyUsed
	}
	return &c, nil
}

// memoryTx is the transactional view handed to Atomically callbacks. The store
// lock is already held.
type memoryTx struct {
	store *MemoryStore
	undo  []func()
}

func (t *memoryTx) Create(_ context.Context, cred *models.Credential) error {
	undo, err := t.store.create(cred)
	if err != nil {
		return err
	}
	t.undo = append(t.undo, undo)
	return nil
}

func (t *memoryTx) DeactivateBySubject(_ context.Context, subjectID string, at time.Time) (int64, error) {
	n, undo := t.store.deactivateSubject(subjectID, at)
	t.undo = append(t.undo, undo)
	return n, nil
}

func (t *memoryTx) ConsumeIfActive(_ context.Context, credentialID string, at time.Time) (bool, error) {
	ok, undo := t.store.consume(credentialID, at)
	t.undo = append(t.undo, undo)
	return ok, nil
}

func (t *memoryTx) FindActiveByCredentialID(_ context.Context, credentialID string) (*models.Credential, error) {
	return t.store.findActive(credentialID)
}

func (t *memoryTx) Atomically(_ context.Context, fn func(tx credential.Store) error) error {
	return fn(t)
}

func (t *memoryTx) rollback() {
	for i := len(t.undo) - 1; i >= 0; i-- {
		t.undo[i]()
	}
	t.undo = nil
}

var (
	_ credential.Store = (*MemoryStore)(nil)
	_ credential.Store = (*memoryTx)(nil)
)
