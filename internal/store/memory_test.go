package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/LACC-DEVLINK/checkin-exercito-api/internal/credential"
	"github.com/LACC-DEVLINK/checkin-exercito-api/internal/models"
)

func TestMemoryStoreUniqueness(t *testing.T) {
	st := NewMemoryStore()
	ctx := context.Background()
	now := time.Now().UTC()

	rec := newRecord("subject-1", "cred-1", now)
	require.NoError(t, st.Create(ctx, rec))
	require.NotEmpty(t, rec.ID)

	require.ErrorIs(t, st.Create(ctx, newRecord("subject-2", "cred-1", now)), credential.ErrDuplicateCredentialID)
	require.ErrorIs(t, st.Create(ctx, newRecord("subject-1", "cred-2", now)), credential.ErrDuplicateCredentialID)

	inactive := newRecord("subject-1", "cred-3", now)
	inactive.IsActive = false
	require.NoError(t, st.Create(ctx, inactive))
}

func TestMemoryStoreConsumeAndSupersede(t *testing.T) {
	st := NewMemoryStore()
	ctx := context.Background()
	now := time.Now().UTC()

	require.NoError(t, st.Create(ctx, newRecord("subject-1", "cred-1", now)))

	n, err := st.DeactivateBySubject(ctx, "subject-1", now)
	require.NoError(t, err)
	require.EqualValues(t, 1, n)

	ok, err := st.ConsumeIfActive(ctx, "cred-1", now)
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, st.Create(ctx, newRecord("subject-1", "cred-2", now)))
	ok, err = st.ConsumeIfActive(ctx, "cred-2", now)
	require.NoError(t, err)
	require.True(t, ok)

	_, err = st.FindActiveByCredentialID(ctx, "cred-2")
	require.ErrorIs(t, err, credential.ErrNotFoundOrAlreadyUsed)
	require.Zero(t, st.ActiveCount("subject-1"))
}

func TestMemoryStoreAtomicallyRollsBack(t *testing.T) {
	st := NewMemoryStore()
	ctx := context.Background()
	now := time.Now().UTC()

	require.NoError(t, st.Create(ctx, newRecord("subject-1", "cred-1", now)))

	boom := errors.New("boom")
	err := st.Atomically(ctx, func(tx credential.Store) error {
		if _, err := tx.DeactivateBySubject(ctx, "subject-1", now); err != nil {
			return err
		}
		if err := tx.Create(ctx, newRecord("subject-1", "cred-2", now)); err != nil {
			return err
		}
		if _, err := tx.ConsumeIfActive(ctx, "cred-2", now); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	active, err := st.FindActiveBySubject(ctx, "subject-1")
	require.NoError(t, err)
	require.Equal(t, "cred-1", active.CredentialID)

	history, err := st.ListBySubject(ctx, "subject-1")
	require.NoError(t, err)
	require.Len(t, history, 1)
}

func TestMemoryStoreAtomicallyHonoursCancelledContext(t *testing.T) {
	st := NewMemoryStore()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	called := false
	err := st.Atomically(ctx, func(credential.Store) error {
		called = true
		return nil
	})
	require.ErrorIs(t, err, context.Canceled)
	require.False(t, called)
}

func TestMemoryStoreListAndExpire(t *testing.T) {
	st := NewMemoryStore()
	ctx := context.Background()
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

	older := newRecord("subject-1", "cred-1", now.Add(-time.Hour))
	older.IsActive = false
	past := now.Add(-time.Second)
	newer := newRecord("subject-1", "cred-2", now)
	newer.ExpiresAt = &past

	require.NoError(t, st.Create(ctx, older))
	require.NoError(t, st.Create(ctx, newer))

	history, err := st.ListBySubject(ctx, "subject-1")
	require.NoError(t, err)
	require.Len(t, history, 2)
	require.Equal(t, "cred-2", history[0].CredentialID)

	n, err := st.DeactivateExpired(ctx, now)
	require.NoError(t, err)
	require.EqualValues(t, 1, n)

	history, err = st.ListBySubject(ctx, "subject-1")
	require.NoError(t, err)
	require.Equal(t, models.DeactivationExpired, history[0].DeactivationReason)
}
