package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestCredentialExpiredAt(t *testing.T) {
	now := time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC)

	var nilCred *Credential
	require.False(t, nilCred.ExpiredAt(now))

	cred := &Credential{}
	require.False(t, cred.ExpiredAt(now), "no expiry never expires")

	future := now.Add(time.Minute)
	cred.ExpiresAt = &future
	require.False(t, cred.ExpiredAt(now))

	cred.ExpiresAt = &now
	require.True(t, cred.ExpiredAt(now), "expiry instant counts as expired")
}

func TestCredentialEventIDValue(t *testing.T) {
	cred := &Credential{}
	require.Empty(t, cred.EventIDValue())

	event := "event-9"
	cred.EventID = &event
	require.Equal(t, "event-9", cred.EventIDValue())
}

func TestBaseModelBeforeCreateAssignsID(t *testing.T) {
	m := &BaseModel{}
	require.NoError(t, m.BeforeCreate(nil))
	require.NotEmpty(t, m.ID)

	m2 := &BaseModel{ID: "fixed"}
	require.NoError(t, m2.BeforeCreate(nil))
	require.Equal(t, "fixed", m2.ID)
}
